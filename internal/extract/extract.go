package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"PaperCompass/internal/llm"
	"PaperCompass/pkg/logger"
)

// Source 标记抽取结果来自 LLM 还是确定性回退
type Source int

const (
	SourceFallback Source = iota
	SourceLLM
)

func (s Source) String() string {
	if s == SourceLLM {
		return "llm"
	}
	return "fallback"
}

// GeneralKeyword 无法得到关键词时的兜底值，保证下游检索永远有查询词
const GeneralKeyword = "general"

const (
	DefaultMaxResults = 5
	maxResultsCeiling = 100
)

type IndexList struct {
	Values []int
	Source Source
}

// Pair 两个 1-based 编号，保持文本中的先后顺序
type Pair struct {
	First  int
	Second int
}

type Topic struct {
	Text   string
	Source Source
}

// Unavailable 为 true 表示 LLM 不可用，空 Text 不能被解读为"确实没有主题"
func (t Topic) Unavailable() bool { return t.Source == SourceFallback }

type Keyword struct {
	Text   string
	Source Source
}

// Filters Days 为 0 表示不限时间
type Filters struct {
	MaxResults int
	Days       int
}

type Extractor struct {
	llm     llm.Completer
	policy  llm.Policy
	timeout time.Duration
	vocab   Vocabulary
	log     *logger.Logger
}

type Option func(*Extractor)

func WithPolicy(p llm.Policy) Option { return func(e *Extractor) { e.policy = p } }

// WithTimeout 单次 LLM 调用的超时
func WithTimeout(d time.Duration) Option { return func(e *Extractor) { e.timeout = d } }

func WithVocabulary(v Vocabulary) Option { return func(e *Extractor) { e.vocab = v } }

func WithLogger(l *logger.Logger) Option { return func(e *Extractor) { e.log = l } }

// New completer 为 nil 时所有抽取都走回退
func New(completer llm.Completer, opts ...Option) *Extractor {
	e := &Extractor{
		llm:     completer,
		policy:  llm.DefaultPolicy(),
		timeout: 20 * time.Second,
		vocab:   DefaultVocabulary(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.WithPrefix("extract")
	}
	return e
}

func (e *Extractor) ask(ctx context.Context, req llm.Request, parse func(string) error) error {
	if e.llm == nil {
		return fmt.Errorf("LLM 未配置")
	}
	return llm.Retry(ctx, e.policy, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		out, err := e.llm.Complete(callCtx, req)
		if err != nil {
			return err
		}
		if err := parse(out); err != nil {
			return llm.Permanent(err)
		}
		return nil
	})
}

// Indices 返回指令中出现的全部论文编号（1-based，文本顺序）
func (e *Extractor) Indices(ctx context.Context, command string) IndexList {
	var values []int
	err := e.ask(ctx, llm.Request{
		System:      "你是一個語意理解助手，能從自然語言中找出要比較的論文編號。",
		User:        indicesPrompt(command),
		Temperature: 0.1,
	}, func(out string) error {
		var parsed struct {
			Compare []json.RawMessage `json:"compare"`
		}
		if err := json.Unmarshal([]byte(llm.ExtractJSONObject(out)), &parsed); err != nil {
			return fmt.Errorf("编号 JSON 解析失败: %w", err)
		}
		if parsed.Compare == nil {
			return fmt.Errorf("编号格式不正确: %s", out)
		}
		values = values[:0]
		for _, raw := range parsed.Compare {
			if n, ok := parseJSONIndex(raw); ok {
				values = append(values, n)
			}
		}
		return nil
	})
	if err == nil {
		return IndexList{Values: values, Source: SourceLLM}
	}

	e.log.Debug("编号抽取回退: %v", err)
	return IndexList{Values: fallbackIndices(command), Source: SourceFallback}
}

// CompareIndices 恰好两个编号时才返回 true，不做猜测
func (e *Extractor) CompareIndices(ctx context.Context, command string) (Pair, bool) {
	list := e.Indices(ctx, command)
	if len(list.Values) != 2 {
		return Pair{}, false
	}
	return Pair{First: list.Values[0], Second: list.Values[1]}, true
}

func (e *Extractor) Topic(ctx context.Context, command string) Topic {
	var topic string
	err := e.ask(ctx, llm.Request{
		System:      "你是一個擅長從句子中提取主題的語意分析員。",
		User:        fmt.Sprintf("使用者輸入：'%s'\n請從中擷取比較的主題或關鍵詞（例如 'transformer'），若無明確主題則回傳空字串，僅輸出主題詞，不要加說明或句號。", command),
		Temperature: 0.2,
	}, func(out string) error {
		topic = cleanTopic(out)
		return nil
	})
	if err == nil {
		return Topic{Text: topic, Source: SourceLLM}
	}

	e.log.Debug("主题抽取回退: %v", err)
	return Topic{Text: e.vocab.fallbackTopic(command), Source: SourceFallback}
}

// Keywords 永远不返回空字符串
func (e *Extractor) Keywords(ctx context.Context, command string) Keyword {
	var kw string
	err := e.ask(ctx, llm.Request{
		System:      "你是一個擅長從句子中提取主題的語意分析員。",
		User:        keywordsPrompt(command),
		Temperature: 0.2,
	}, func(out string) error {
		kw = e.vocab.stripSourceWords(cleanTopic(out))
		return nil
	})
	if err == nil {
		if kw == "" {
			kw = GeneralKeyword
		}
		return Keyword{Text: kw, Source: SourceLLM}
	}

	e.log.Debug("关键词抽取回退: %v", err)
	kw = e.vocab.fallbackKeyword(command)
	if kw == "" {
		kw = GeneralKeyword
	}
	return Keyword{Text: kw, Source: SourceFallback}
}

// Filters 纯规则匹配，不调用 LLM
func (e *Extractor) Filters(command string) Filters {
	return ParseFilters(command)
}

func ParseFilters(command string) Filters {
	f := Filters{MaxResults: DefaultMaxResults}
	if m := maxResultsRe.FindStringSubmatch(command); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			f.MaxResults = n
		}
	}
	if f.MaxResults < 1 {
		f.MaxResults = 1
	}
	if f.MaxResults > maxResultsCeiling {
		f.MaxResults = maxResultsCeiling
	}
	if m := daysRe.FindStringSubmatch(command); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			f.Days = n
		}
	}
	return f
}

func parseJSONIndex(raw json.RawMessage) (int, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func cleanTopic(out string) string {
	out = llm.StripCodeFence(out)
	out = strings.Trim(out, " \t\r\n\"'`「」『』“”。.")
	switch strings.ToLower(out) {
	case "", "none", "null", "空字串", "空字符串", "無", "无":
		return ""
	}
	return out
}

func indicesPrompt(command string) string {
	return fmt.Sprintf(`請從下面指令中找出要比較的論文編號，區分 arXiv 和本地論文。
- 如果指令包含 'arxiv' 和 '本地'，提取兩個編號：第一個為 arXiv 論文編號，第二個為本地論文編號。
- 否則，假設兩個編號均為同一來源（例如 arXiv 或本地），並保持指令中的先後順序。
- 以 JSON 格式回應，例如：{"compare": [2, 6]}，只能包含整數。
指令：%s`, command)
}

func keywordsPrompt(command string) string {
	return fmt.Sprintf(`使用者輸入：'%s'
請從中擷取適合用於 arXiv 或 Semantic Scholar 查詢的英文關鍵字或主題，僅輸出主題詞（多詞用空格分隔）。
排除來源詞（如 'arxiv', 'semantic', 'scholar', '查詢', '查'），不要加說明或句號。
若無明確主題，返回 'general'。`, command)
}
