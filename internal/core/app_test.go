package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlite "PaperCompass/db/sqlite"
	"PaperCompass/internal/intent"
	"PaperCompass/internal/models"
	"PaperCompass/internal/pdf"
	"PaperCompass/internal/platform"
	"PaperCompass/internal/resolver"
	"PaperCompass/pkg/download"
)

type fakePlatform struct {
	name    string
	papers  []*models.Paper
	err     error
	queries []platform.Query
}

func (f *fakePlatform) Name() string               { return f.name }
func (f *fakePlatform) GetConfig() platform.Config { return nil }

func (f *fakePlatform) Search(ctx context.Context, q platform.Query) (platform.Result, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return platform.Result{}, f.err
	}
	papers := f.papers
	if q.Limit > 0 && len(papers) > q.Limit {
		papers = papers[:q.Limit]
	}
	return platform.Result{Total: len(papers), Papers: papers}, nil
}

func webPaper(id, title string) *models.Paper {
	return &models.Paper{
		Source:   "arxiv",
		SourceID: id,
		Title:    title,
		Abstract: "We study " + title + " and report results on several benchmarks with careful ablations.",
		URL:      "https://arxiv.org/abs/" + id,
	}
}

type testEnv struct {
	app      *App
	db       *sqlite.SQLiteDB
	arxiv    *fakePlatform
	semantic *fakePlatform
}

func newTestApp(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.NewSQLiteDB(filepath.Join(t.TempDir(), "papers.db"))
	require.NoError(t, err)

	arxiv := &fakePlatform{name: PlatformArxiv}
	semantic := &fakePlatform{name: PlatformSemantic}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	web := NewWebSearch(nil, WithPlatform(arxiv), WithPlatform(semantic), WithWebClock(func() time.Time { return now }))

	app := NewApp(store, nil, nil, WithSearcher(web))
	t.Cleanup(func() { app.Close() })
	return &testEnv{app: app, db: store, arxiv: arxiv, semantic: semantic}
}

func TestHandleRejectsBadCommands(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()

	_, err := env.app.Handle(ctx, "s", "   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = env.app.Handle(ctx, "s", strings.Repeat("論", DefaultMaxCommandLength+1))
	assert.ErrorIs(t, err, ErrCommandTooLong)

	resp, err := env.app.Handle(ctx, "s", strings.Repeat("論", DefaultMaxCommandLength))
	require.NoError(t, err)
	assert.Equal(t, intent.Unknown, resp.Intent)
}

func TestHandleHistoryListEmpty(t *testing.T) {
	env := newTestApp(t)
	resp, err := env.app.Handle(context.Background(), "s", "本地論文清單")
	require.NoError(t, err)
	assert.Equal(t, intent.HistoryList, resp.Intent)
	assert.Equal(t, "本地資料庫", resp.SourceLabel)
	assert.Empty(t, resp.Papers)
	assert.Equal(t, "本地資料庫無論文。", resp.Message)
}

func TestHandleArxivSearch(t *testing.T) {
	env := newTestApp(t)
	env.arxiv.papers = []*models.Paper{webPaper("2401.1", "ViT Scaling"), webPaper("2401.2", "ViT Pruning")}

	resp, err := env.app.Handle(context.Background(), "s", "查詢 arxiv 的 vit")
	require.NoError(t, err)
	assert.Equal(t, intent.ArxivSearch, resp.Intent)
	assert.Equal(t, "arXiv", resp.SourceLabel)
	assert.Equal(t, "vit", resp.Keywords)
	assert.Len(t, resp.Papers, 2)
	assert.True(t, strings.HasPrefix(resp.SearchKey, "arxiv_results_"))
	require.Len(t, env.arxiv.queries, 1)
	assert.Equal(t, []string{"vit"}, env.arxiv.queries[0].Keywords)
}

func TestHandleArxivSearchNoResults(t *testing.T) {
	env := newTestApp(t)
	env.arxiv.err = errors.New("boom")

	resp, err := env.app.Handle(context.Background(), "s", "查詢 arxiv 的 vit")
	require.NoError(t, err)
	assert.Empty(t, resp.Papers)
	assert.Empty(t, resp.SearchKey)
	assert.Equal(t, "arXiv 搜尋無結果。", resp.Message)
}

func TestHandleSemanticSearchPassesDays(t *testing.T) {
	env := newTestApp(t)
	env.semantic.papers = []*models.Paper{webPaper("s1", "Graph Learning")}

	resp, err := env.app.Handle(context.Background(), "s", "semantic scholar 查詢 graph 最近 7 天")
	require.NoError(t, err)
	assert.Equal(t, intent.SemanticSearch, resp.Intent)
	assert.Equal(t, "Semantic Scholar", resp.SourceLabel)
	require.Len(t, env.semantic.queries, 1)
	assert.Equal(t, "2025-05-25", env.semantic.queries[0].DateFrom)
	assert.True(t, strings.HasPrefix(resp.SearchKey, "semantic_results_"))
}

func TestImportResult(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()

	_, err := env.app.ImportResult(ctx, "s", 1)
	assert.ErrorIs(t, err, resolver.ErrNoWebSearch)

	env.arxiv.papers = []*models.Paper{webPaper("2401.1", "ViT Scaling"), webPaper("2401.2", "ViT Pruning")}
	_, err = env.app.Handle(ctx, "s", "查詢 arxiv 的 vit")
	require.NoError(t, err)

	res, err := env.app.ImportResult(ctx, "s", 2)
	require.NoError(t, err)
	assert.False(t, res.Known)
	assert.Equal(t, "ViT Pruning", res.Title)

	again, err := env.app.ImportResult(ctx, "s", 2)
	require.NoError(t, err)
	assert.True(t, again.Known)
	assert.Equal(t, res.ID, again.ID)

	_, err = env.app.ImportResult(ctx, "s", 5)
	var refErr *resolver.RefError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, 2, refErr.Available)

	stored, err := env.db.Get(res.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, DedupKey(stored.Title, stored.Abstract), stored.DedupKey)

	// 刚导入的论文排在本地第一篇
	resp, err := env.app.Handle(ctx, "s", "本地論文清單")
	require.NoError(t, err)
	require.Len(t, resp.Papers, 1)
	assert.Equal(t, "ViT Pruning", resp.Papers[0].Title)
}

func TestDownloadResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	store, err := sqlite.NewSQLiteDB(filepath.Join(t.TempDir(), "papers.db"))
	require.NoError(t, err)
	dl, err := download.New(srv.Client(), t.TempDir())
	require.NoError(t, err)
	arxiv := &fakePlatform{name: PlatformArxiv}
	p := webPaper("2401.1", "ViT Scaling")
	p.PDFURL = srv.URL + "/pdf/2401.1"
	arxiv.papers = []*models.Paper{p, webPaper("2401.2", "No PDF")}

	app := NewApp(store, nil, nil, WithSearcher(NewWebSearch(nil, WithPlatform(arxiv))), WithDownloader(dl))
	defer app.Close()
	ctx := context.Background()

	_, err = app.DownloadResult(ctx, "s", 1)
	assert.ErrorIs(t, err, resolver.ErrNoWebSearch)

	_, err = app.Handle(ctx, "s", "查詢 arxiv 的 vit")
	require.NoError(t, err)

	path, err := app.DownloadResult(ctx, "s", 1)
	require.NoError(t, err)
	assert.Equal(t, dl.Dir(), filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "2401.1_"))

	_, err = app.DownloadResult(ctx, "s", 2)
	assert.Error(t, err)
}

func TestHandleCompareWebResults(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()
	env.arxiv.papers = []*models.Paper{webPaper("2401.1", "ViT Scaling"), webPaper("2401.2", "ViT Pruning")}

	_, err := env.app.Handle(ctx, "s", "查詢 arxiv 的 vit")
	require.NoError(t, err)

	resp, err := env.app.Handle(ctx, "s", "比較第1篇和第2篇")
	require.NoError(t, err)
	assert.Equal(t, intent.CompareWebResults, resp.Intent)
	assert.Equal(t, "Arxiv (比較)", resp.SourceLabel)
	assert.Equal(t, "vit", resp.Keywords)
	require.NotNil(t, resp.Comparison)
	assert.Equal(t, "ViT Scaling", resp.Left.Title)
	assert.Equal(t, "ViT Pruning", resp.Right.Title)
	// 未配置 LLM 与向量服务
	assert.False(t, resp.Comparison.Generated)
	assert.Zero(t, resp.Comparison.Similarity)
}

func TestHandleCompareLocalPapers(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"Older Paper", "Newer Paper"} {
		p := webPaper("", title)
		p.Source = SourceUpload
		p.DedupKey = title
		p.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		_, _, err := env.db.Insert(p)
		require.NoError(t, err)
	}

	resp, err := env.app.Handle(ctx, "s", "比較第1篇和第2篇")
	require.NoError(t, err)
	assert.Equal(t, intent.CompareCustom, resp.Intent)
	assert.Equal(t, "本地資料庫 (比較)", resp.SourceLabel)
	assert.Equal(t, "Newer Paper", resp.Left.Title)
	assert.Equal(t, "Older Paper", resp.Right.Title)

	resp, err = env.app.Handle(ctx, "s", "比較第1篇和第9篇")
	var refErr *resolver.RefError
	require.ErrorAs(t, err, &refErr)
	require.NotNil(t, resp)
	assert.Equal(t, "本地資料庫 (比較)", resp.SourceLabel)
	assert.Nil(t, resp.Comparison)
	assert.NotEmpty(t, resp.Message)
}

func TestHandleLocalQuery(t *testing.T) {
	env := newTestApp(t)
	for _, title := range []string{"Diffusion Models Beat GANs", "Speech Recognition"} {
		p := webPaper("", title)
		p.DedupKey = title
		_, _, err := env.db.Insert(p)
		require.NoError(t, err)
	}

	resp, err := env.app.Handle(context.Background(), "s", "查詢 diffusion")
	require.NoError(t, err)
	assert.Equal(t, intent.LocalQuery, resp.Intent)
	require.Len(t, resp.Papers, 1)
	assert.Equal(t, "Diffusion Models Beat GANs", resp.Papers[0].Title)
}

func TestHandleUnknown(t *testing.T) {
	env := newTestApp(t)
	resp, err := env.app.Handle(context.Background(), "s", "hello there")
	require.NoError(t, err)
	assert.Equal(t, intent.Unknown, resp.Intent)
	assert.Equal(t, "未知", resp.SourceLabel)
	assert.Contains(t, resp.Message, "未知指令：hello there")
}

func TestSessionsAreIsolated(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()
	env.arxiv.papers = []*models.Paper{webPaper("2401.1", "ViT Scaling")}

	_, err := env.app.Handle(ctx, "a", "查詢 arxiv 的 vit")
	require.NoError(t, err)

	_, err = env.app.ImportResult(ctx, "b", 1)
	assert.ErrorIs(t, err, resolver.ErrNoWebSearch)
}

func TestUploadPDF(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()

	_, err := env.app.UploadPDF(ctx, "s", "broken.pdf", []byte("not a pdf"))
	assert.Error(t, err)

	data := []byte("%PDF-1.4 already stored")
	_, _, err = env.db.Insert(&models.Paper{Title: "Stored", DedupKey: pdf.ContentHash(data), Source: SourceUpload})
	require.NoError(t, err)

	res, err := env.app.UploadPDF(ctx, "s", "stored.pdf", data)
	require.NoError(t, err)
	assert.True(t, res.Known)
}

func TestExport(t *testing.T) {
	env := newTestApp(t)
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "papers.json")

	_, err := env.app.Export(ctx, "json", out, 0)
	assert.Error(t, err)

	p := webPaper("2401.1", "ViT Scaling")
	p.DedupKey = "k"
	_, _, err = env.db.Insert(p)
	require.NoError(t, err)

	n, err := env.app.Export(ctx, "json", out, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var doc struct {
		Total  int             `json:"total"`
		Papers []struct {
			Title string `json:"title"`
		} `json:"papers"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, 1, doc.Total)
	assert.Equal(t, "ViT Scaling", doc.Papers[0].Title)

	_, err = env.app.Export(ctx, "xml", out, 0)
	assert.Error(t, err)
}

func TestDisplayKeywords(t *testing.T) {
	tests := []struct {
		name string
		res  intent.Result
		last string
		want string
	}{
		{"search strips source words", intent.Result{Kind: intent.ArxivSearch, Params: intent.SearchParams{Keyword: "arxiv ViT"}}, "", "ViT"},
		{"empty search", intent.Result{Kind: intent.ArxivSearch, Params: intent.SearchParams{Keyword: "query"}}, "", "無"},
		{"custom topic", intent.Result{Kind: intent.CompareCustom, Params: intent.CompareParams{Topic: "attention"}}, "vit", "attention"},
		{"custom without topic", intent.Result{Kind: intent.CompareCustom, Params: intent.CompareParams{}}, "vit", "無"},
		{"web compare falls back to last keyword", intent.Result{Kind: intent.CompareWebResults, Params: intent.CompareParams{}}, "vit", "vit"},
		{"history", intent.Result{Kind: intent.HistoryList, Params: intent.NoParams{}}, "vit", "無"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, displayKeywords(tt.res, tt.last))
		})
	}
}

func TestSourceLabel(t *testing.T) {
	assert.Equal(t, "Semantic (比較)", sourceLabel(intent.CompareWebResults, &intent.WebRef{Kind: intent.WebSemantic}))
	assert.Equal(t, "Web (比較)", sourceLabel(intent.CompareWebResults, nil))
	assert.Equal(t, "arXiv + 本地資料庫 (比較)", sourceLabel(intent.ArxivVsLocalCompare, nil))
	assert.Equal(t, "未知", sourceLabel(intent.Unknown, nil))
}
