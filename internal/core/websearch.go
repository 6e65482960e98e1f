package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"PaperCompass/internal/models"
	"PaperCompass/internal/platform"
	"PaperCompass/pkg/logger"
)

const (
	PlatformArxiv    = "arxiv"
	PlatformSemantic = "semantic"
)

// WebSearch 在线检索入口；任何失败都记日志并返回空切片，不向上抛错
type WebSearch struct {
	configs map[string]platform.Config
	now     func() time.Time
	log     *logger.Logger

	mu     sync.Mutex
	opened map[string]platform.Platform
}

type WebSearchOption func(*WebSearch)

// WithPlatform 直接使用给定实例，不经过注册表（测试里注入假平台）
func WithPlatform(p platform.Platform) WebSearchOption {
	return func(w *WebSearch) { w.opened[p.Name()] = p }
}

func WithWebClock(now func() time.Time) WebSearchOption {
	return func(w *WebSearch) { w.now = now }
}

func NewWebSearch(configs map[string]platform.Config, opts ...WebSearchOption) *WebSearch {
	if configs == nil {
		configs = map[string]platform.Config{}
	}
	w := &WebSearch{
		configs: configs,
		now:     time.Now,
		log:     logger.WithPrefix("websearch"),
		opened:  make(map[string]platform.Platform),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WebSearch) SearchArxiv(ctx context.Context, keyword string, maxResults int) []*models.Paper {
	return w.search(ctx, PlatformArxiv, platform.Query{Keywords: []string{keyword}, Limit: maxResults})
}

// SearchSemantic days<=0 表示不限发表日期
func (w *WebSearch) SearchSemantic(ctx context.Context, keyword string, maxResults, days int) []*models.Paper {
	q := platform.Query{Keywords: []string{keyword}, Limit: maxResults}
	if days > 0 {
		q.DateFrom = w.now().AddDate(0, 0, -days).Format("2006-01-02")
	}
	return w.search(ctx, PlatformSemantic, q)
}

func (w *WebSearch) search(ctx context.Context, name string, q platform.Query) []*models.Paper {
	if len(q.Keywords) == 0 || strings.TrimSpace(q.Keywords[0]) == "" {
		w.log.Warn("%s 检索关键词为空", name)
		return []*models.Paper{}
	}

	plat, err := w.platform(name)
	if err != nil {
		w.log.Error("创建平台实例失败: %v", err)
		return []*models.Paper{}
	}

	res, err := plat.Search(ctx, q)
	if err != nil {
		w.log.Error("%s 检索失败: %v", name, err)
		return []*models.Paper{}
	}

	papers := make([]*models.Paper, 0, len(res.Papers))
	for _, p := range res.Papers {
		if p != nil {
			papers = append(papers, p)
		}
	}
	w.log.Info("%s 检索 %q 返回 %d 篇", name, q.Keywords[0], len(papers))
	return papers
}

func (w *WebSearch) platform(name string) (platform.Platform, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.opened[name]; ok {
		return p, nil
	}
	p, err := Open(name, w.configs[name])
	if err != nil {
		return nil, err
	}
	w.opened[name] = p
	return p, nil
}
