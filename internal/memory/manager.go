package memory

import (
	"sync"

	storage "PaperCompass/db"
)

// Manager 按会话 id 隔离记忆，避免不同会话之间共享检索指针和关键词
type Manager struct {
	mu       sync.Mutex
	db       storage.PaperStorage
	opts     []Option
	sessions map[string]*Store
}

func NewManager(db storage.PaperStorage, opts ...Option) *Manager {
	return &Manager{db: db, opts: opts, sessions: make(map[string]*Store)}
}

// Session 不存在时创建
func (m *Manager) Session(id string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := NewStore(id, m.db, m.opts...)
	m.sessions[id] = s
	return s
}

func (m *Manager) Drop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
