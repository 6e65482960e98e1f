package resolver

import (
	"context"
	"errors"
	"fmt"

	"PaperCompass/internal/intent"
	"PaperCompass/internal/memory"
	"PaperCompass/internal/models"
	"PaperCompass/pkg/logger"
)

var (
	ErrNoWebSearch     = errors.New("没有可用的网络检索结果，请先执行 arXiv 或 Semantic Scholar 检索")
	ErrMissingAbstract = errors.New("论文缺少有效摘要，无法比较")
	ErrNotEnoughPapers = errors.New("本地库中至少需要两篇论文才能比较")
	ErrNotArxivSearch  = errors.New("最近一次检索不是 arXiv 检索，请先执行 arXiv 检索")
)

// RefError 编号越界或来源没有数据
type RefError struct {
	Side      string
	Index     int
	Available int
}

func (e *RefError) Error() string {
	if e.Available == 0 {
		return fmt.Sprintf("%s 没有可用论文（第 %d 篇）", e.Side, e.Index)
	}
	return fmt.Sprintf("%s 第 %d 篇超出范围（仅有 %d 篇）", e.Side, e.Index, e.Available)
}

const (
	SideLocal = "本地"
	SideArxiv = "arXiv"
	SideWeb   = "Web"
)

// Memory 解析编号所需的会话记忆
type Memory interface {
	GetPaperByIndex(index int, source memory.PaperSource) (*models.Paper, int, error)
	LastWebSearch() (*intent.WebRef, *memory.SearchSet)
	RememberSearch(kind intent.WebKind, keyword string, papers []*models.Paper, key string) (string, bool)
	State() intent.State
}

// Searcher 网络检索，失败时返回空切片
type Searcher interface {
	SearchArxiv(ctx context.Context, keyword string, maxResults int) []*models.Paper
	SearchSemantic(ctx context.Context, keyword string, maxResults, days int) []*models.Paper
}

// Pair 一次比较的两篇论文
type Pair struct {
	Left       *models.Paper
	Right      *models.Paper
	LeftLabel  string
	RightLabel string
	Topic      string
	WebKind    intent.WebKind
}

const researchMin = 10

type Resolver struct {
	searcher Searcher
	log      *logger.Logger
}

type Option func(*Resolver)

func WithLogger(l *logger.Logger) Option { return func(r *Resolver) { r.log = l } }

func New(searcher Searcher, opts ...Option) *Resolver {
	r := &Resolver{searcher: searcher}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.WithPrefix("resolver")
	}
	return r
}

// Local 按近期顺序解析本地编号
func (r *Resolver) Local(mem Memory, index int) (*models.Paper, error) {
	p, n, err := mem.GetPaperByIndex(index, memory.SourceDatabase)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &RefError{Side: SideLocal, Index: index, Available: n}
	}
	return p, nil
}

// Web 解析最近一次检索中的编号，结果集缺失时最多重新检索一次
func (r *Resolver) Web(ctx context.Context, mem Memory, index int) (*models.Paper, error) {
	papers, kind, err := r.webPapers(ctx, mem, "", index)
	if err != nil {
		return nil, err
	}
	return pick(papers, index, webSide(kind))
}

// Pair 把比较意图的编号解析成两篇论文
func (r *Resolver) Pair(ctx context.Context, mem Memory, res intent.Result) (*Pair, error) {
	var pair *Pair
	var err error

	switch res.Kind {
	case intent.CompareCustom:
		pair, err = r.localPair(mem, res)
	case intent.CompareDefault:
		pair, err = r.defaultPair(mem, res)
	case intent.CompareWebResults:
		pair, err = r.webPair(ctx, mem, res)
	case intent.CompareArxivLocal:
		pair, err = r.arxivLocalPair(ctx, mem, res)
	case intent.ArxivVsLocalCompare:
		pair, err = r.arxivVsLocal(ctx, mem, res)
	default:
		return nil, fmt.Errorf("意图 %s 不是比较指令", res.Kind)
	}
	if err != nil {
		return nil, err
	}
	if err := checkAbstracts(pair); err != nil {
		return nil, err
	}
	return pair, nil
}

func (r *Resolver) localPair(mem Memory, res intent.Result) (*Pair, error) {
	p, ok := res.Compare()
	if !ok {
		return nil, fmt.Errorf("比较参数缺失")
	}
	left, errL := r.Local(mem, p.Pair.First)
	right, errR := r.Local(mem, p.Pair.Second)
	if err := errors.Join(errL, errR); err != nil {
		return nil, err
	}
	return &Pair{
		Left: left, Right: right,
		LeftLabel:  fmt.Sprintf("第%d篇", p.Pair.First),
		RightLabel: fmt.Sprintf("第%d篇", p.Pair.Second),
		Topic:      p.Topic,
	}, nil
}

// defaultPair 没有明确编号时比较本地最近的两篇
func (r *Resolver) defaultPair(mem Memory, res intent.Result) (*Pair, error) {
	var topic string
	if p, ok := res.Params.(intent.CompareDefaultParams); ok {
		topic = p.Topic
	}
	left, _, err := mem.GetPaperByIndex(1, memory.SourceDatabase)
	if err != nil {
		return nil, err
	}
	right, _, err := mem.GetPaperByIndex(2, memory.SourceDatabase)
	if err != nil {
		return nil, err
	}
	if left == nil || right == nil {
		return nil, ErrNotEnoughPapers
	}
	return &Pair{Left: left, Right: right, LeftLabel: "第1篇", RightLabel: "第2篇", Topic: topic}, nil
}

func (r *Resolver) webPair(ctx context.Context, mem Memory, res intent.Result) (*Pair, error) {
	p, ok := res.Compare()
	if !ok {
		return nil, fmt.Errorf("比较参数缺失")
	}
	need := max(p.Pair.First, p.Pair.Second)
	papers, kind, err := r.webPapers(ctx, mem, "", need)
	if err != nil {
		return nil, err
	}
	side := webSide(kind)
	left, errL := pick(papers, p.Pair.First, side)
	right, errR := pick(papers, p.Pair.Second, side)
	if err := errors.Join(errL, errR); err != nil {
		return nil, err
	}
	return &Pair{
		Left: left, Right: right,
		LeftLabel:  fmt.Sprintf("%s 第%d篇", side, p.Pair.First),
		RightLabel: fmt.Sprintf("%s 第%d篇", side, p.Pair.Second),
		Topic:      p.Topic,
		WebKind:    kind,
	}, nil
}

// arxivLocalPair Pair.First 是 arXiv 编号，Pair.Second 是本地编号；两侧分别校验
func (r *Resolver) arxivLocalPair(ctx context.Context, mem Memory, res intent.Result) (*Pair, error) {
	p, ok := res.Compare()
	if !ok {
		return nil, fmt.Errorf("比较参数缺失")
	}

	var left *models.Paper
	var papers []*models.Paper
	var errL error
	if ref, _ := mem.LastWebSearch(); ref != nil && ref.Kind != intent.WebArxiv {
		// 最近一次是其他来源的检索，不替用户换成 arXiv
		errL = fmt.Errorf("%s: %w", SideArxiv, ErrNotArxivSearch)
	} else if papers, _, errL = r.webPapers(ctx, mem, intent.WebArxiv, p.Pair.First); errL == nil {
		left, errL = pick(papers, p.Pair.First, SideArxiv)
	} else {
		errL = fmt.Errorf("%s: %w", SideArxiv, errL)
	}
	right, errR := r.Local(mem, p.Pair.Second)

	if err := errors.Join(errL, errR); err != nil {
		return nil, err
	}
	return &Pair{
		Left: left, Right: right,
		LeftLabel:  fmt.Sprintf("arXiv 第%d篇", p.Pair.First),
		RightLabel: fmt.Sprintf("本地 第%d篇", p.Pair.Second),
		Topic:      p.Topic,
		WebKind:    intent.WebArxiv,
	}, nil
}

// arxivVsLocal 本地编号对比 arXiv 关键词检索的第一条结果，检索结果不写入会话
func (r *Resolver) arxivVsLocal(ctx context.Context, mem Memory, res intent.Result) (*Pair, error) {
	p, ok := res.Params.(intent.ArxivVsLocalParams)
	if !ok {
		return nil, fmt.Errorf("比较参数缺失")
	}
	local, err := r.Local(mem, p.LocalIndex)
	if err != nil {
		return nil, err
	}
	if r.searcher == nil {
		return nil, ErrNoWebSearch
	}
	results := r.searcher.SearchArxiv(ctx, p.Keyword, 1)
	if len(results) == 0 {
		return nil, fmt.Errorf("arXiv 检索 %q 无结果: %w", p.Keyword, ErrNoWebSearch)
	}
	return &Pair{
		Left: local, Right: results[0],
		LeftLabel:  fmt.Sprintf("本地 第%d篇", p.LocalIndex),
		RightLabel: "arXiv",
		Topic:      p.Keyword,
		WebKind:    intent.WebArxiv,
	}, nil
}

// webPapers want 非空时要求结果集类型一致，否则视同缺失
func (r *Resolver) webPapers(ctx context.Context, mem Memory, want intent.WebKind, need int) ([]*models.Paper, intent.WebKind, error) {
	ref, set := mem.LastWebSearch()
	if set != nil && len(set.Papers) > 0 && (want == "" || set.Kind == want) {
		return set.Papers, set.Kind, nil
	}

	kind := want
	if kind == "" {
		kind = intent.WebArxiv
		if ref != nil {
			kind = ref.Kind
		}
	}
	var keyword string
	if ref != nil {
		keyword = ref.Keyword
	}
	if keyword == "" {
		keyword = mem.State().LastKeyword
	}
	if keyword == "" || r.searcher == nil {
		return nil, kind, ErrNoWebSearch
	}

	limit := max(need, researchMin)
	r.log.Info("最近的检索结果不可用，使用关键词 %q 重新检索 %s", keyword, kind)

	var papers []*models.Paper
	switch kind {
	case intent.WebSemantic:
		papers = r.searcher.SearchSemantic(ctx, keyword, limit, 0)
	default:
		papers = r.searcher.SearchArxiv(ctx, keyword, limit)
	}
	if len(papers) == 0 {
		return nil, kind, fmt.Errorf("重新检索 %q 无结果: %w", keyword, ErrNoWebSearch)
	}
	mem.RememberSearch(kind, keyword, papers, "")
	return papers, kind, nil
}

func pick(papers []*models.Paper, index int, side string) (*models.Paper, error) {
	if index <= 0 || index > len(papers) {
		return nil, &RefError{Side: side, Index: index, Available: len(papers)}
	}
	return papers[index-1], nil
}

func webSide(kind intent.WebKind) string {
	switch kind {
	case intent.WebArxiv:
		return SideArxiv
	case intent.WebSemantic:
		return "Semantic Scholar"
	}
	return SideWeb
}

func checkAbstracts(p *Pair) error {
	var errs []error
	if !p.Left.HasAbstract() {
		errs = append(errs, fmt.Errorf("%s《%s》: %w", p.LeftLabel, p.Left.Title, ErrMissingAbstract))
	}
	if !p.Right.HasAbstract() {
		errs = append(errs, fmt.Errorf("%s《%s》: %w", p.RightLabel, p.Right.Title, ErrMissingAbstract))
	}
	return errors.Join(errs...)
}
