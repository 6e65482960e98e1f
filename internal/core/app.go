package core

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	storage "PaperCompass/db"
	"PaperCompass/internal/compare"
	exporter "PaperCompass/internal/core/export"
	csv "PaperCompass/internal/core/export/csv"
	json "PaperCompass/internal/core/export/json"
	emb "PaperCompass/internal/embedding"
	"PaperCompass/internal/extract"
	"PaperCompass/internal/intent"
	"PaperCompass/internal/llm"
	"PaperCompass/internal/memory"
	"PaperCompass/internal/models"
	"PaperCompass/internal/pdf"
	"PaperCompass/internal/platform"
	"PaperCompass/internal/resolver"
	"PaperCompass/pkg/download"
	"PaperCompass/pkg/logger"
)

const (
	DefaultMaxCommandLength = 500
	localQueryTopK          = 5
	downloadTimeout         = 120

	SourceUpload = "web_upload"
)

var (
	ErrEmptyCommand   = errors.New("指令不能为空")
	ErrCommandTooLong = errors.New("指令過長，請縮短後再試")
)

// Response 一条指令的执行结果，CLI 负责渲染
type Response struct {
	Intent      intent.Kind
	SourceLabel string
	Keywords    string

	Papers    []*models.Paper
	SearchKey string

	Left       *models.Paper
	Right      *models.Paper
	LeftLabel  string
	RightLabel string
	Comparison *compare.Comparison

	Message string
}

type ImportResult struct {
	ID    int64
	Title string
	Known bool
}

type UploadResult struct {
	Name   string
	ID     int64
	Title  string
	Known  bool
	Source pdf.AbstractSource
}

type App struct {
	db         storage.PaperStorage
	embedder   emb.Service
	sessions   *memory.Manager
	classifier *intent.Classifier
	resolver   *resolver.Resolver
	web        resolver.Searcher
	local      *Searcher
	comparer   *compare.Generator
	pdf        *pdf.Extractor
	downloader *download.Downloader
	maxLen     int
	log        *logger.Logger
}

type settings struct {
	platforms  map[string]platform.Config
	web        resolver.Searcher
	triggers   intent.Triggers
	policy     llm.Policy
	timeout    time.Duration
	maxLen     int
	memoryOpts []memory.Option
	downloader *download.Downloader
}

type Option func(*settings)

func WithPlatforms(cfgs map[string]platform.Config) Option {
	return func(s *settings) { s.platforms = cfgs }
}

// WithSearcher 替换在线检索实现
func WithSearcher(web resolver.Searcher) Option { return func(s *settings) { s.web = web } }

func WithTriggers(t intent.Triggers) Option { return func(s *settings) { s.triggers = t } }

func WithRetryPolicy(p llm.Policy) Option { return func(s *settings) { s.policy = p } }

func WithCallTimeout(d time.Duration) Option { return func(s *settings) { s.timeout = d } }

func WithMaxCommandLength(n int) Option { return func(s *settings) { s.maxLen = n } }

func WithDownloader(d *download.Downloader) Option { return func(s *settings) { s.downloader = d } }

func WithMemoryOptions(opts ...memory.Option) Option {
	return func(s *settings) { s.memoryOpts = append(s.memoryOpts, opts...) }
}

// NewApp completer 为 nil 时所有 LLM 步骤走规则回退
func NewApp(db storage.PaperStorage, embedder emb.Service, completer llm.Completer, opts ...Option) *App {
	s := settings{
		triggers: intent.DefaultTriggers(),
		policy:   llm.DefaultPolicy(),
		timeout:  20 * time.Second,
		maxLen:   DefaultMaxCommandLength,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.web == nil {
		s.web = NewWebSearch(s.platforms)
	}

	if s.downloader == nil {
		if d, err := download.New(NewHTTPClient(downloadTimeout, ""), ""); err == nil {
			s.downloader = d
		}
	}

	ex := extract.New(completer, extract.WithPolicy(s.policy), extract.WithTimeout(s.timeout))
	classifierOpts := []intent.Option{intent.WithTriggers(s.triggers)}
	var vecs compare.Embedder
	if emb.Available(embedder) {
		classifierOpts = append(classifierOpts, intent.WithEmbedder(embedder))
		vecs = embedder
	}

	return &App{
		db:         db,
		embedder:   embedder,
		sessions:   memory.NewManager(db, s.memoryOpts...),
		classifier: intent.NewClassifier(ex, classifierOpts...),
		resolver:   resolver.New(s.web),
		web:        s.web,
		local:      NewSearcher(db, embedder),
		comparer:   compare.New(completer, vecs, compare.WithPolicy(s.policy)),
		pdf:        pdf.New(completer, pdf.WithPolicy(s.policy)),
		downloader: s.downloader,
		maxLen:     s.maxLen,
		log:        logger.WithPrefix("app"),
	}
}

func (a *App) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Handle 解析并执行一条自然语言指令。引用解析失败时同时返回已填好来源信息的 Response 和错误
func (a *App) Handle(ctx context.Context, sessionID, command string) (*Response, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, ErrEmptyCommand
	}
	if utf8.RuneCountInString(command) > a.maxLen {
		return nil, ErrCommandTooLong
	}

	store := a.sessions.Session(sessionID)
	store.RememberInput(command)

	res, next := a.classifier.Resolve(ctx, command, store.State())
	store.SetLastKeyword(next.LastKeyword)
	a.log.Info("指令 %q -> %s", command, res.Kind)

	resp := &Response{
		Intent:      res.Kind,
		SourceLabel: sourceLabel(res.Kind, next.LastWeb),
		Keywords:    displayKeywords(res, next.LastKeyword),
	}

	var err error
	switch res.Kind {
	case intent.HistoryList:
		err = a.historyList(store, resp)
	case intent.LocalQuery:
		err = a.localQuery(ctx, res, resp)
	case intent.ArxivSearch, intent.SemanticSearch:
		a.webSearch(ctx, store, res, resp)
	case intent.CompareCustom, intent.CompareDefault, intent.CompareWebResults,
		intent.CompareArxivLocal, intent.ArxivVsLocalCompare:
		err = a.compare(ctx, store, res, resp)
	default:
		resp.Message = fmt.Sprintf("未知指令：%s。請嘗試例如：查詢 arxiv 的 vit、比較 arxiv 第二篇與本地六篇", command)
	}
	return resp, err
}

func (a *App) historyList(store *memory.Store, resp *Response) error {
	papers, err := store.GetRecentPapers(0)
	if err != nil {
		return err
	}
	resp.Papers = papers
	if len(papers) == 0 {
		resp.Message = "本地資料庫無論文。"
	}
	return nil
}

func (a *App) localQuery(ctx context.Context, res intent.Result, resp *Response) error {
	p, _ := res.Params.(intent.LocalQueryParams)
	papers, err := a.local.Query(ctx, p.Keyword, p.Vector, localQueryTopK)
	if err != nil {
		return err
	}
	resp.Papers = papers
	if len(papers) == 0 {
		resp.Message = "未找到相關論文。"
	}
	return nil
}

func (a *App) webSearch(ctx context.Context, store *memory.Store, res intent.Result, resp *Response) {
	p, _ := res.Search()

	var papers []*models.Paper
	kind := intent.WebArxiv
	name := "arXiv"
	if res.Kind == intent.SemanticSearch {
		kind = intent.WebSemantic
		name = "Semantic Scholar"
		papers = a.web.SearchSemantic(ctx, p.Keyword, p.MaxResults, p.Days)
	} else {
		papers = a.web.SearchArxiv(ctx, p.Keyword, p.MaxResults)
	}

	resp.Papers = papers
	key, ok := store.RememberSearch(kind, p.Keyword, papers, "")
	if !ok {
		resp.Message = name + " 搜尋無結果。"
		return
	}
	resp.SearchKey = key
}

func (a *App) compare(ctx context.Context, store *memory.Store, res intent.Result, resp *Response) error {
	pair, err := a.resolver.Pair(ctx, store, res)
	if res.Kind == intent.CompareWebResults {
		// 重新检索可能改变了结果集类型
		ref, _ := store.LastWebSearch()
		resp.SourceLabel = sourceLabel(res.Kind, ref)
	}
	if err != nil {
		resp.Message = err.Error()
		return err
	}

	c := a.comparer.Compare(ctx, pair.Left, pair.Right, pair.Topic)
	resp.Left, resp.Right = pair.Left, pair.Right
	resp.LeftLabel, resp.RightLabel = pair.LeftLabel, pair.RightLabel
	resp.Comparison = &c
	return nil
}

// ImportResult 把最近一次网络检索的第 index 篇写入本地库
func (a *App) ImportResult(ctx context.Context, sessionID string, index int) (*ImportResult, error) {
	store := a.sessions.Session(sessionID)
	p, err := webResult(store, index)
	if err != nil {
		return nil, err
	}

	paper := *p
	paper.ID = 0
	paper.CreatedAt = time.Time{}
	paper.DedupKey = DedupKey(paper.Title, paper.Abstract)

	up, err := store.RememberUploaded(&paper)
	if err != nil {
		return nil, err
	}
	if !up.Known {
		paper.ID = up.ID
		a.local.Index(ctx, &paper)
	}
	return &ImportResult{ID: up.ID, Title: paper.Title, Known: up.Known}, nil
}

// UploadPDF 内容哈希已存在时不解析也不写入
func (a *App) UploadPDF(ctx context.Context, sessionID, name string, data []byte) (*UploadResult, error) {
	hash := pdf.ContentHash(data)
	known, err := a.db.KnownDedupKeys()
	if err != nil {
		return nil, fmt.Errorf("读取已知文件哈希失败: %w", err)
	}
	if _, ok := known[hash]; ok {
		a.log.Info("文件已存在: %s", name)
		return &UploadResult{Name: name, Known: true}, nil
	}

	doc, err := a.pdf.Extract(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("解析 %s 失败: %w", name, err)
	}

	paper := &models.Paper{
		Source:   SourceUpload,
		SourceID: name,
		Title:    doc.Title,
		Abstract: doc.Abstract,
		DedupKey: hash,
	}
	up, err := a.sessions.Session(sessionID).RememberUploaded(paper)
	if err != nil {
		return nil, err
	}
	if !up.Known {
		paper.ID = up.ID
		a.local.Index(ctx, paper)
	}
	return &UploadResult{Name: name, ID: up.ID, Title: doc.Title, Known: up.Known, Source: doc.AbstractSource}, nil
}

// DownloadResult 下载最近一次网络检索第 index 篇的 PDF，返回本地路径
func (a *App) DownloadResult(ctx context.Context, sessionID string, index int) (string, error) {
	if a.downloader == nil {
		return "", fmt.Errorf("下载目录不可用")
	}
	p, err := webResult(a.sessions.Session(sessionID), index)
	if err != nil {
		return "", err
	}
	name := p.SourceID
	if name == "" {
		name = p.Title
	}
	return a.downloader.Download(ctx, p.PDFURL, name)
}

// RecentPapers 与比较指令使用同一套编号
func (a *App) RecentPapers(sessionID string, limit int) ([]*models.Paper, error) {
	return a.sessions.Session(sessionID).GetRecentPapers(limit)
}

// Export 导出本地库中最近的 limit 篇论文（limit<=0 表示全部）
func (a *App) Export(ctx context.Context, format, outputPath string, limit int) (int, error) {
	a.log.Info("开始导出论文: 格式=%s, 输出=%s", format, outputPath)

	var exp exporter.Exporter
	switch strings.ToLower(format) {
	case "csv":
		exp = csv.NewCSVExporter()
	case "json":
		exp = json.NewJSONExporter()
	default:
		return 0, fmt.Errorf("不支持的导出格式: %s", format)
	}

	papers, err := a.db.List(limit)
	if err != nil {
		return 0, fmt.Errorf("查询论文失败: %w", err)
	}
	if len(papers) == 0 {
		return 0, fmt.Errorf("本地资料库没有论文")
	}

	if err := exp.Export(papers, outputPath); err != nil {
		return 0, fmt.Errorf("导出失败: %w", err)
	}
	a.log.Info("导出成功: %d 篇论文 -> %s", len(papers), outputPath)
	return len(papers), nil
}

// webResult 取最近一次网络检索的第 index 篇，不触发重新检索
func webResult(store *memory.Store, index int) (*models.Paper, error) {
	p, n, err := store.GetPaperByIndex(index, memory.SourceWeb)
	if err != nil {
		return nil, err
	}
	if p == nil {
		if n == 0 {
			return nil, resolver.ErrNoWebSearch
		}
		return nil, &resolver.RefError{Side: resolver.SideWeb, Index: index, Available: n}
	}
	return p, nil
}

// DedupKey 网络检索结果入库时的去重键：md5(标题+摘要)
func DedupKey(title, abstract string) string {
	sum := md5.Sum([]byte(title + abstract))
	return hex.EncodeToString(sum[:])
}

func sourceLabel(kind intent.Kind, last *intent.WebRef) string {
	switch kind {
	case intent.HistoryList, intent.LocalQuery:
		return "本地資料庫"
	case intent.ArxivSearch:
		return "arXiv"
	case intent.SemanticSearch:
		return "Semantic Scholar"
	case intent.CompareCustom, intent.CompareDefault:
		return "本地資料庫 (比較)"
	case intent.CompareArxivLocal, intent.ArxivVsLocalCompare:
		return "arXiv + 本地資料庫 (比較)"
	case intent.CompareWebResults:
		if last == nil {
			return "Web (比較)"
		}
		k := string(last.Kind)
		return strings.ToUpper(k[:1]) + k[1:] + " (比較)"
	}
	return "未知"
}

var sourceWords = map[string]struct{}{"arxiv": {}, "semantic": {}, "scholar": {}, "query": {}, "search": {}}

func stripSourceWords(s string) string {
	var kept []string
	for _, w := range strings.Fields(s) {
		if _, skip := sourceWords[strings.ToLower(w)]; !skip {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "無"
	}
	return s
}

func displayKeywords(res intent.Result, lastKeyword string) string {
	switch p := res.Params.(type) {
	case intent.SearchParams:
		return orNone(stripSourceWords(p.Keyword))
	case intent.LocalQueryParams:
		return orNone(stripSourceWords(p.Keyword))
	case intent.ArxivVsLocalParams:
		return orNone(stripSourceWords(p.Keyword))
	case intent.CompareDefaultParams:
		return orNone(p.Topic)
	case intent.CompareParams:
		if res.Kind == intent.CompareCustom {
			return orNone(p.Topic)
		}
		topic := p.Topic
		if topic == "" {
			topic = lastKeyword
		}
		return orNone(stripSourceWords(topic))
	}
	return "無"
}
