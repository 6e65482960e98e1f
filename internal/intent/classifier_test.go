package intent

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperCompass/internal/extract"
	"PaperCompass/internal/llm"
	"PaperCompass/pkg/logger"
)

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

func newTestClassifier(opts ...Option) *Classifier {
	quiet := logger.New(io.Discard, "ERROR")
	ex := extract.New(nil,
		extract.WithPolicy(llm.Policy{Attempts: 1}),
		extract.WithLogger(quiet),
	)
	return NewClassifier(ex, append([]Option{WithLogger(quiet)}, opts...)...)
}

func TestResolveArxivSearch(t *testing.T) {
	c := newTestClassifier()
	res, st := c.Resolve(context.Background(), "查詢 arxiv 的 vit", State{})

	require.Equal(t, ArxivSearch, res.Kind)
	p, ok := res.Search()
	require.True(t, ok)
	assert.Equal(t, "vit", p.Keyword)
	assert.NotContains(t, p.Keyword, "arxiv")
	assert.Equal(t, extract.DefaultMaxResults, p.MaxResults)
	assert.Equal(t, "vit", st.LastKeyword)
}

func TestResolveCompareArxivLocalKeepsOrder(t *testing.T) {
	c := newTestClassifier()
	prev := State{LastKeyword: "vit"}
	res, st := c.Resolve(context.Background(), "比較 arxiv 第2篇與本地第6篇", prev)

	require.Equal(t, CompareArxivLocal, res.Kind)
	p, ok := res.Compare()
	require.True(t, ok)
	assert.Equal(t, extract.Pair{First: 2, Second: 6}, p.Pair)
	assert.Equal(t, "vit", p.Topic)
	assert.Equal(t, prev, st)
}

type fixedCompleter string

func (f fixedCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	return string(f), nil
}

func TestResolveCompareTopicBeatsLastKeyword(t *testing.T) {
	quiet := logger.New(io.Discard, "ERROR")
	ex := extract.New(fixedCompleter("transformer"), extract.WithPolicy(llm.Policy{Attempts: 1}), extract.WithLogger(quiet))
	c := NewClassifier(ex, WithLogger(quiet))

	res, _ := c.Resolve(context.Background(), "比較 arxiv 第2篇與本地第6篇的 transformer", State{LastKeyword: "vit"})
	require.Equal(t, CompareArxivLocal, res.Kind)
	p, _ := res.Compare()
	assert.Equal(t, "transformer", p.Topic)
	assert.Equal(t, extract.Pair{First: 2, Second: 6}, p.Pair)
}

func TestResolvePrecedence(t *testing.T) {
	webState := State{LastKeyword: "gan", LastWeb: &WebRef{Kind: WebArxiv, Key: "arxiv_results_1", At: time.Now()}}

	tests := []struct {
		name  string
		cmd   string
		state State
		want  Kind
	}{
		{"history list", "本地論文清單", State{}, HistoryList},
		{"history beats compare", "比較 本地論文清單 第1篇 第2篇", State{}, HistoryList},
		{"plain two index compare", "比較第1篇和第3篇", State{}, CompareCustom},
		{"prior web search wins over plain", "比較第1篇和第3篇", webState, CompareWebResults},
		{"web wording", "比較剛剛的第1篇和第2篇", State{}, CompareWebResults},
		{"arxiv plus local beats web state", "比較 arxiv 第1篇 和 本地 第2篇", webState, CompareArxivLocal},
		{"one index falls back to default", "比較第1篇", State{}, CompareDefault},
		{"english compare", "compare paper 1 and paper 2", State{}, CompareCustom},
		{"arxiv with one index", "比較 arxiv diffusion 與 本地 第6篇", State{}, ArxivVsLocalCompare},
		{"semantic search", "semantic scholar 查詢 graph 最多 3 筆", State{}, SemanticSearch},
		{"relative 比較 stays arxiv search", "查詢 arxiv 比較新的 diffusion 論文", State{}, ArxivSearch},
		{"relative 比較 with count stays semantic", "semantic scholar 查詢 比較新的 graph 最多 3 筆", State{}, SemanticSearch},
		{"plural papers is not an ordinal", "compare arxiv transformer papers", State{}, ArxivSearch},
		{"bare numbers are not ordinals", "compare 1 and 3", State{}, Unknown},
		{"local query", "本地有哪些關於 transformer 的論文", State{}, LocalQuery},
		{"unknown", "hello there", State{}, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier()
			res, _ := c.Resolve(context.Background(), tt.cmd, tt.state)
			assert.Equal(t, tt.want, res.Kind, res.Kind.String())
		})
	}
}

func TestHasOrdinal(t *testing.T) {
	markers := DefaultTriggers().Ordinal
	assert.True(t, hasOrdinal("比較第1篇", markers))
	assert.True(t, hasOrdinal("比較第 十 篇", markers))
	assert.True(t, hasOrdinal("compare paper 2", markers))
	assert.True(t, hasOrdinal("compare #3", markers))
	assert.True(t, hasOrdinal("比較 3 篇", markers))
	assert.False(t, hasOrdinal("compare transformer papers", markers))
	assert.False(t, hasOrdinal("比較新的論文", markers))
	assert.False(t, hasOrdinal("最多 3 筆", markers))
}

func TestResolveCompareIndicesInTextOrder(t *testing.T) {
	c := newTestClassifier()
	cmds := map[string]extract.Pair{
		"比較第5篇和第2篇":                  {First: 5, Second: 2},
		"compare paper 9 with paper 4":  {First: 9, Second: 4},
		"比較第十篇與第三篇":                  {First: 10, Second: 3},
		"compare #1 and #12 on pruning": {First: 1, Second: 12},
	}
	for cmd, want := range cmds {
		res, _ := c.Resolve(context.Background(), cmd, State{})
		p, ok := res.Compare()
		require.True(t, ok, cmd)
		assert.Equal(t, want, p.Pair, cmd)
	}
}

func TestResolveCompareDefaultTopic(t *testing.T) {
	c := newTestClassifier()

	res, _ := c.Resolve(context.Background(), "比較第1篇 diffusion", State{})
	require.Equal(t, CompareDefault, res.Kind)
	assert.Equal(t, CompareDefaultParams{Topic: "diffusion"}, res.Params)

	res, _ = c.Resolve(context.Background(), "比較第1篇", State{})
	assert.Equal(t, CompareDefaultParams{Topic: ""}, res.Params)
}

func TestResolveSemanticFilters(t *testing.T) {
	c := newTestClassifier()
	res, st := c.Resolve(context.Background(), "semantic scholar 查詢 graph 最多 3 筆 最近 30 天", State{})

	p, ok := res.Search()
	require.True(t, ok)
	assert.Equal(t, SearchParams{Keyword: "graph", KeywordSource: extract.SourceFallback, MaxResults: 3, Days: 30}, p)
	assert.Equal(t, "graph", st.LastKeyword)
}

func TestResolveLocalQueryVector(t *testing.T) {
	res, st := newTestClassifier(WithEmbedder(fakeEmbedder{})).Resolve(context.Background(), "本地有哪些關於 transformer 的論文", State{})
	p, ok := res.Params.(LocalQueryParams)
	require.True(t, ok)
	assert.Equal(t, "transformer", p.Keyword)
	assert.Equal(t, []float32{0.1, 0.2}, p.Vector)
	assert.Equal(t, "transformer", st.LastKeyword)

	res, _ = newTestClassifier(WithEmbedder(fakeEmbedder{err: errors.New("down")})).Resolve(context.Background(), "本地摘要", State{})
	p = res.Params.(LocalQueryParams)
	assert.Nil(t, p.Vector)
	assert.Equal(t, extract.GeneralKeyword, p.Keyword)
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	c := newTestClassifier()
	in := State{LastKeyword: "old", LastWeb: &WebRef{Kind: WebSemantic, Key: "k"}}
	_, out := c.Resolve(context.Background(), "查詢 arxiv 的 vit", in)

	assert.Equal(t, "old", in.LastKeyword)
	assert.Equal(t, "vit", out.LastKeyword)
	out.LastWeb.Key = "changed"
	assert.Equal(t, "k", in.LastWeb.Key)
}

func TestResolveUnknownEchoesCommand(t *testing.T) {
	res, _ := newTestClassifier().Resolve(context.Background(), "Hello There", State{})
	assert.Equal(t, UnknownParams{Command: "Hello There"}, res.Params)
	assert.Equal(t, "Hello There", res.Command)
}

func TestLoadTriggersOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triggers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("compare:\n  - 對比\n  - Contrast\n"), 0o644))

	tr, err := LoadTriggers(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"對比", "contrast"}, tr.Compare)
	assert.Equal(t, DefaultTriggers().Arxiv, tr.Arxiv)

	res, _ := newTestClassifier(WithTriggers(tr)).Resolve(context.Background(), "對比第1篇和第2篇", State{})
	assert.Equal(t, CompareCustom, res.Kind)

	_, err = LoadTriggers(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
