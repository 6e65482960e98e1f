package memory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Journal 把用户输入按天追加到 inputs-YYYYMMDD.jsonl，超过 ttlDays 的文件在 Cleanup 时删除
type Journal struct {
	dir     string
	ttlDays int
	now     func() time.Time
}

type journalEntry struct {
	Session string    `json:"session"`
	Text    string    `json:"text"`
	TS      time.Time `json:"ts"`
}

func NewJournal(dir string, ttlDays int) (*Journal, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("获取用户目录失败: %w", err)
		}
		dir = filepath.Join(home, ".papercompass", "memory")
	}
	if ttlDays <= 0 {
		ttlDays = 30
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建记忆目录失败: %w", err)
	}
	return &Journal{dir: dir, ttlDays: ttlDays, now: time.Now}, nil
}

func (j *Journal) Append(session string, in Input) error {
	if in.At.IsZero() {
		in.At = j.now()
	}
	filename := filepath.Join(j.dir, fmt.Sprintf("inputs-%s.jsonl", in.At.Format("20060102")))
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开输入日志失败: %w", err)
	}
	defer f.Close()

	entry := journalEntry{Session: session, Text: in.Text, TS: in.At.UTC()}
	if err := json.NewEncoder(f).Encode(entry); err != nil {
		return fmt.Errorf("写入输入日志失败: %w", err)
	}
	return nil
}

// Load 读取某会话在 windowDays 内的输入，session 为空表示全部
func (j *Journal) Load(session string, windowDays int) ([]Input, error) {
	cutoff := j.now().AddDate(0, 0, -windowDays)
	files, err := j.files()
	if err != nil {
		return nil, err
	}

	var inputs []Input
	for _, f := range files {
		if f.day.Before(cutoff.Truncate(24 * time.Hour)) {
			continue
		}
		evs, err := readEntries(f.path, cutoff, session)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, evs...)
	}
	sort.Slice(inputs, func(a, b int) bool { return inputs[a].At.Before(inputs[b].At) })
	return inputs, nil
}

func (j *Journal) Cleanup() {
	cutoff := j.now().AddDate(0, 0, -j.ttlDays)
	files, err := j.files()
	if err != nil {
		return
	}
	for _, f := range files {
		if f.day.Before(cutoff) {
			_ = os.Remove(f.path)
		}
	}
}

type journalFile struct {
	path string
	day  time.Time
}

func (j *Journal) files() ([]journalFile, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, fmt.Errorf("读取记忆目录失败: %w", err)
	}
	var out []journalFile
	for _, fi := range entries {
		if fi.IsDir() {
			continue
		}
		name := fi.Name()
		if !strings.HasPrefix(name, "inputs-") || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		datePart := strings.TrimSuffix(strings.TrimPrefix(name, "inputs-"), ".jsonl")
		t, err := time.Parse("20060102", datePart)
		if err != nil {
			continue
		}
		out = append(out, journalFile{path: filepath.Join(j.dir, name), day: t})
	}
	return out, nil
}

func readEntries(path string, cutoff time.Time, session string) ([]Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开输入日志失败: %w", err)
	}
	defer f.Close()

	var inputs []Input
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e journalEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if e.TS.IsZero() || e.TS.Before(cutoff) {
			continue
		}
		if session != "" && e.Session != session {
			continue
		}
		inputs = append(inputs, Input{Text: e.Text, At: e.TS})
	}
	return inputs, scanner.Err()
}
