package intent

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"PaperCompass/internal/extract"
	"PaperCompass/pkg/logger"
)

// Embedder 本地语义查询用的向量服务，可选
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Classifier 有序规则链，第一条满足的规则胜出：
//
//	1 本地清单  2 比较（arXiv+本地 > 网络结果 > 两个编号 > 默认）
//	3 arXiv 检索  4 Semantic Scholar 检索  5 本地查询  6 arXiv 对本地  7 未知
type Classifier struct {
	ex       *extract.Extractor
	triggers Triggers
	embedder Embedder
	log      *logger.Logger
}

type Option func(*Classifier)

func WithTriggers(t Triggers) Option { return func(c *Classifier) { c.triggers = t } }

func WithEmbedder(e Embedder) Option { return func(c *Classifier) { c.embedder = e } }

func WithLogger(l *logger.Logger) Option { return func(c *Classifier) { c.log = l } }

func NewClassifier(ex *extract.Extractor, opts ...Option) *Classifier {
	c := &Classifier{ex: ex, triggers: DefaultTriggers()}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.WithPrefix("intent")
	}
	return c
}

// Resolve 返回意图和更新后的会话状态，入参 state 不会被修改
func (c *Classifier) Resolve(ctx context.Context, command string, state State) (Result, State) {
	next := state.clone()
	lower := strings.ToLower(strings.TrimSpace(command))

	res := c.resolve(ctx, command, lower, &next)
	res.Command = command
	c.log.Debug("指令 %q 解析为 %s", command, res.Kind)
	return res, next
}

func (c *Classifier) resolve(ctx context.Context, command, lower string, st *State) Result {
	t := c.triggers
	hasCompare := containsAny(lower, t.Compare)
	hasArxiv := containsAny(lower, t.Arxiv)

	var cached *extract.IndexList
	indicesOnce := func() extract.IndexList {
		if cached == nil {
			list := c.ex.Indices(ctx, command)
			cached = &list
		}
		return *cached
	}

	// 1
	if containsAny(lower, t.HistoryList) {
		return Result{Kind: HistoryList, Params: NoParams{}}
	}

	// 2
	if hasCompare && hasOrdinal(lower, t.Ordinal) {
		indices := indicesOnce()
		if len(indices.Values) == 2 {
			topic := c.ex.Topic(ctx, command)
			params := CompareParams{
				Pair:        extract.Pair{First: indices.Values[0], Second: indices.Values[1]},
				Topic:       topic.Text,
				TopicSource: topic.Source,
			}
			switch {
			case hasArxiv && containsAny(lower, t.Local):
				params.Topic = resolveTopic(topic.Text, st.LastKeyword)
				return Result{Kind: CompareArxivLocal, Params: params}
			case st.LastWeb != nil || containsAny(lower, t.Web):
				params.Topic = resolveTopic(topic.Text, st.LastKeyword)
				return Result{Kind: CompareWebResults, Params: params}
			default:
				return Result{Kind: CompareCustom, Params: params}
			}
		}
		// 只有一个编号且提到 arXiv 时交给规则 6
		if !(hasArxiv && len(indices.Values) == 1) {
			topic := c.ex.Topic(ctx, command)
			text := topic.Text
			if text == "" {
				text = firstContained(lower, t.DefaultSubjects)
			}
			return Result{Kind: CompareDefault, Params: CompareDefaultParams{Topic: text}}
		}
	}

	// 3-5 让位给规则 6：比较词加 arXiv 且恰好一个编号。
	// 「比較新的」这类用法里的比较词不影响检索
	if !(hasCompare && hasArxiv && len(indicesOnce().Values) == 1) {
		if containsAny(lower, t.ArxivSearch) {
			kw := c.ex.Keywords(ctx, command)
			f := c.ex.Filters(command)
			st.LastKeyword = kw.Text
			return Result{Kind: ArxivSearch, Params: SearchParams{
				Keyword: kw.Text, KeywordSource: kw.Source, MaxResults: f.MaxResults, Days: f.Days,
			}}
		}

		if containsAny(lower, t.SemanticSearch) {
			kw := c.ex.Keywords(ctx, command)
			f := c.ex.Filters(command)
			st.LastKeyword = kw.Text
			return Result{Kind: SemanticSearch, Params: SearchParams{
				Keyword: kw.Text, KeywordSource: kw.Source, MaxResults: f.MaxResults, Days: f.Days,
			}}
		}

		if containsAny(lower, t.LocalQuery) {
			kw := c.ex.Keywords(ctx, command)
			st.LastKeyword = kw.Text
			return Result{Kind: LocalQuery, Params: LocalQueryParams{Keyword: kw.Text, Vector: c.embed(ctx, command)}}
		}
	}

	// 6
	if hasArxiv && hasCompare {
		indices := indicesOnce()
		if len(indices.Values) == 1 {
			kw := c.ex.Keywords(ctx, command)
			st.LastKeyword = kw.Text
			return Result{Kind: ArxivVsLocalCompare, Params: ArxivVsLocalParams{Keyword: kw.Text, LocalIndex: indices.Values[0]}}
		}
	}

	return Result{Kind: Unknown, Params: UnknownParams{Command: command}}
}

func (c *Classifier) embed(ctx context.Context, command string) []float32 {
	if c.embedder == nil {
		return nil
	}
	vec, err := c.embedder.EmbedQuery(ctx, command)
	if err != nil {
		c.log.Debug("查询向量不可用: %v", err)
		return nil
	}
	return vec
}

// resolveTopic 明确的主题优先，其次是上一次检索关键词
func resolveTopic(topic, lastKeyword string) string {
	if topic != "" {
		return topic
	}
	return lastKeyword
}

// hasOrdinal 序号词旁边紧挨着数字才算序号，「papers」「比較新的」都不算
func hasOrdinal(s string, markers []string) bool {
	for _, m := range markers {
		if m == "" {
			continue
		}
		for from := 0; ; {
			i := strings.Index(s[from:], m)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(m)
			if numberAfter(s[end:]) || numberBefore(s[:start]) {
				return true
			}
			from = end
		}
	}
	return false
}

func numberAfter(s string) bool {
	r, _ := utf8.DecodeRuneInString(strings.TrimLeft(s, " \t"))
	return isNumeral(r)
}

func numberBefore(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(strings.TrimRight(s, " \t"))
	return isNumeral(r)
}

func isNumeral(r rune) bool {
	return unicode.IsDigit(r) || strings.ContainsRune("零〇一二兩两三四五六七八九十百", r)
}
