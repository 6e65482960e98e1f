package intent

import (
	"time"

	"PaperCompass/internal/extract"
)

// Kind 指令意图，封闭枚举
type Kind int

const (
	Unknown Kind = iota
	HistoryList
	LocalQuery
	ArxivSearch
	SemanticSearch
	CompareCustom
	CompareDefault
	CompareWebResults
	CompareArxivLocal
	ArxivVsLocalCompare
)

var kindNames = map[Kind]string{
	Unknown:             "unknown",
	HistoryList:         "history_list",
	LocalQuery:          "local_query",
	ArxivSearch:         "arxiv_search",
	SemanticSearch:      "semantic_search",
	CompareCustom:       "compare_custom",
	CompareDefault:      "compare_default",
	CompareWebResults:   "compare_web_results",
	CompareArxivLocal:   "compare_arxiv_local",
	ArxivVsLocalCompare: "arxiv_vs_local_compare",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsCompare 需要引用解析的意图
func (k Kind) IsCompare() bool {
	switch k {
	case CompareCustom, CompareDefault, CompareWebResults, CompareArxivLocal, ArxivVsLocalCompare:
		return true
	}
	return false
}

type WebKind string

const (
	WebArxiv    WebKind = "arxiv"
	WebSemantic WebKind = "semantic"
)

// WebRef 指向会话里最近一次网络检索的结果集
type WebRef struct {
	Kind    WebKind
	Key     string
	Keyword string
	At      time.Time
}

// State 解析指令所需的会话上下文，显式传入传出
type State struct {
	LastKeyword string
	LastWeb     *WebRef
}

func (s State) clone() State {
	out := State{LastKeyword: s.LastKeyword}
	if s.LastWeb != nil {
		ref := *s.LastWeb
		out.LastWeb = &ref
	}
	return out
}

// Params 各意图的参数载荷
type Params interface {
	isParams()
}

type NoParams struct{}

// CompareParams 用于 CompareCustom / CompareWebResults / CompareArxivLocal；
// CompareArxivLocal 时 Pair.First 是 arXiv 侧，Pair.Second 是本地侧
type CompareParams struct {
	Pair        extract.Pair
	Topic       string
	TopicSource extract.Source
}

type CompareDefaultParams struct {
	Topic string
}

type SearchParams struct {
	Keyword       string
	KeywordSource extract.Source
	MaxResults    int
	Days          int
}

type LocalQueryParams struct {
	Keyword string
	// Vector 为空表示没有可用的向量服务
	Vector []float32
}

type ArxivVsLocalParams struct {
	Keyword    string
	LocalIndex int
}

type UnknownParams struct {
	Command string
}

func (NoParams) isParams()             {}
func (CompareParams) isParams()        {}
func (CompareDefaultParams) isParams() {}
func (SearchParams) isParams()         {}
func (LocalQueryParams) isParams()     {}
func (ArxivVsLocalParams) isParams()   {}
func (UnknownParams) isParams()        {}

type Result struct {
	Kind    Kind
	Params  Params
	Command string
}

func (r Result) Compare() (CompareParams, bool) {
	p, ok := r.Params.(CompareParams)
	return p, ok
}

func (r Result) Search() (SearchParams, bool) {
	p, ok := r.Params.(SearchParams)
	return p, ok
}
