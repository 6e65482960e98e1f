package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	storage "PaperCompass/db"
	"PaperCompass/internal/intent"
	"PaperCompass/internal/models"
	"PaperCompass/pkg/logger"
)

const DefaultRetention = 30 * 24 * time.Hour

// PaperSource 编号所指向的来源
type PaperSource string

const (
	SourceDatabase PaperSource = "database"
	SourceWeb      PaperSource = "web"
)

type Input struct {
	Text string    `json:"text"`
	At   time.Time `json:"ts"`
}

// Upload 导入成功后的引用，只用于按时间排序，数据以本地库为准
type Upload struct {
	PaperID  int64
	Title    string
	DedupKey string
	At       time.Time
}

// SearchSet 一次网络检索的结果集，写入后不再修改
type SearchSet struct {
	Key     string
	Kind    intent.WebKind
	Keyword string
	Papers  []*models.Paper
	At      time.Time
}

type UploadResult struct {
	ID    int64
	Known bool
}

// Store 单个会话的记忆。过期判断在读写时进行：读时隐藏，写时清理
type Store struct {
	mu        sync.Mutex
	sessionID string
	db        storage.PaperStorage
	now       func() time.Time
	retention time.Duration
	journal   *Journal
	log       *logger.Logger

	inputs   []Input
	uploads  []Upload
	searches map[string]*SearchSet
	state    intent.State
}

type Option func(*Store)

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithRetention(d time.Duration) Option { return func(s *Store) { s.retention = d } }

func WithJournal(j *Journal) Option { return func(s *Store) { s.journal = j } }

func WithLogger(l *logger.Logger) Option { return func(s *Store) { s.log = l } }

func NewStore(sessionID string, db storage.PaperStorage, opts ...Option) *Store {
	s := &Store{
		sessionID: sessionID,
		db:        db,
		now:       time.Now,
		retention: DefaultRetention,
		searches:  make(map[string]*SearchSet),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retention <= 0 {
		s.retention = DefaultRetention
	}
	if s.log == nil {
		s.log = logger.WithPrefix("memory")
	}
	return s
}

func (s *Store) SessionID() string { return s.sessionID }

func (s *Store) RememberInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in := Input{Text: text, At: s.now()}
	s.inputs = append(s.inputs, in)
	s.pruneLocked()

	if s.journal != nil {
		if err := s.journal.Append(s.sessionID, in); err != nil {
			s.log.Warn("写入输入日志失败: %v", err)
		}
	}
}

// RememberUploaded 按去重键写入本地库；已存在时不写入也不报错，返回 Known=true
func (s *Store) RememberUploaded(p *models.Paper) (UploadResult, error) {
	if p == nil || strings.TrimSpace(p.DedupKey) == "" {
		return UploadResult{}, fmt.Errorf("上传记录缺少去重键")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	id, inserted, err := s.db.Insert(p)
	if err != nil {
		return UploadResult{}, fmt.Errorf("写入论文失败: %w", err)
	}
	if !inserted {
		s.log.Info("论文已存在，跳过写入: %s", p.Title)
		return UploadResult{ID: id, Known: true}, nil
	}

	s.uploads = append(s.uploads, Upload{PaperID: id, Title: p.Title, DedupKey: p.DedupKey, At: s.now()})
	s.pruneLocked()
	return UploadResult{ID: id}, nil
}

// RememberSearch 空结果返回 ("", false) 且不改变记忆；否则保存结果集并替换最近检索指针
func (s *Store) RememberSearch(kind intent.WebKind, keyword string, papers []*models.Paper, key string) (string, bool) {
	if len(papers) == 0 {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if key == "" {
		key = fmt.Sprintf("%s_results_%s", kind, uuid.NewString())
	}
	at := s.now()
	s.searches[key] = &SearchSet{
		Key:     key,
		Kind:    kind,
		Keyword: keyword,
		Papers:  append([]*models.Paper(nil), papers...),
		At:      at,
	}
	s.state.LastWeb = &intent.WebRef{Kind: kind, Key: key, Keyword: keyword, At: at}
	s.pruneLocked()

	s.log.Debug("保存检索结果 %s，共 %d 篇", key, len(papers))
	return key, true
}

func (s *Store) Search(key string) (*SearchSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.searches[key]
	if !ok || !s.visible(set.At) {
		return nil, false
	}
	return set, true
}

// LastWebSearch 返回最近检索指针和它指向的结果集；指针与结果集一同过期
func (s *Store) LastWebSearch() (*intent.WebRef, *SearchSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := s.lastWebLocked()
	if ref == nil {
		return nil, nil
	}
	set, ok := s.searches[ref.Key]
	if !ok || !s.visible(set.At) {
		return ref, nil
	}
	return ref, set
}

// lastWebLocked 过期的指针视同不存在
func (s *Store) lastWebLocked() *intent.WebRef {
	if s.state.LastWeb == nil || !s.visible(s.state.LastWeb.At) {
		return nil
	}
	ref := *s.state.LastWeb
	return &ref
}

func (s *Store) GetRecentSearches(limit int) []*SearchSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*SearchSet
	for _, set := range s.searches {
		if s.visible(set.At) {
			out = append(out, set)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) Inputs() []Input {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Input
	for _, in := range s.inputs {
		if s.visible(in.At) {
			out = append(out, in)
		}
	}
	return out
}

// GetRecentPapers 先列出记忆中的近期上传（新到旧），再补上本地库中的其余论文
func (s *Store) GetRecentPapers(limit int) ([]*models.Paper, error) {
	s.mu.Lock()
	uploads := make([]Upload, 0, len(s.uploads))
	for _, u := range s.uploads {
		if s.visible(u.At) {
			uploads = append(uploads, u)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(uploads, func(i, j int) bool { return uploads[i].At.After(uploads[j].At) })

	seen := make(map[int64]struct{})
	var out []*models.Paper
	full := func() bool { return limit > 0 && len(out) >= limit }

	for _, u := range uploads {
		if full() {
			return out, nil
		}
		if _, dup := seen[u.PaperID]; dup {
			continue
		}
		p, err := s.db.Get(u.PaperID)
		if err != nil {
			return nil, fmt.Errorf("读取论文失败: %w", err)
		}
		if p == nil {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}

	stored, err := s.db.List(0)
	if err != nil {
		return nil, fmt.Errorf("读取本地论文列表失败: %w", err)
	}
	for _, p := range stored {
		if full() {
			break
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// GetPaperByIndex index 为 1-based；越界返回 nil 而不是错误，第二个返回值是可用数量
func (s *Store) GetPaperByIndex(index int, source PaperSource) (*models.Paper, int, error) {
	var papers []*models.Paper
	switch source {
	case SourceDatabase:
		list, err := s.GetRecentPapers(0)
		if err != nil {
			return nil, 0, err
		}
		papers = list
	case SourceWeb:
		if _, set := s.LastWebSearch(); set != nil {
			papers = set.Papers
		}
	default:
		return nil, 0, fmt.Errorf("未知的论文来源: %s", source)
	}

	if index <= 0 || index > len(papers) {
		return nil, len(papers), nil
	}
	return papers[index-1], len(papers), nil
}

// State 当前会话的解析上下文快照
func (s *Store) State() intent.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return intent.State{LastKeyword: s.state.LastKeyword, LastWeb: s.lastWebLocked()}
}

// SetLastKeyword 写回解析器更新后的关键词；最近检索指针只由 RememberSearch 修改
func (s *Store) SetLastKeyword(keyword string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastKeyword = keyword
}

func (s *Store) visible(at time.Time) bool {
	return s.now().Sub(at) <= s.retention
}

func (s *Store) pruneLocked() {
	inputs := s.inputs[:0]
	for _, in := range s.inputs {
		if s.visible(in.At) {
			inputs = append(inputs, in)
		}
	}
	s.inputs = inputs

	uploads := s.uploads[:0]
	for _, u := range s.uploads {
		if s.visible(u.At) {
			uploads = append(uploads, u)
		}
	}
	s.uploads = uploads

	for key, set := range s.searches {
		if !s.visible(set.At) {
			delete(s.searches, key)
		}
	}
	if s.state.LastWeb != nil && !s.visible(s.state.LastWeb.At) {
		s.state.LastWeb = nil
	}
}
