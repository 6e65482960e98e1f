package arxiv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PaperCompass/internal/core"
	"PaperCompass/internal/models"
	"PaperCompass/internal/platform"
	"PaperCompass/pkg/logger"
)

const (
	userAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"
	maxAttempts = 3
)

type Adapter struct {
	config     *Config
	httpClient *http.Client
	log        *logger.Logger

	// 翻页间隔与重试退避的基准，arXiv 对频繁请求会返回 429
	pageDelay  time.Duration
	retryDelay time.Duration
}

func NewAdapter(config *Config) (*Adapter, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Adapter{
		config:     config,
		httpClient: core.NewHTTPClient(config.Timeout, config.Proxy),
		log:        logger.WithPrefix("arxiv"),
		pageDelay:  time.Second,
		retryDelay: 2 * time.Second,
	}, nil
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) GetConfig() platform.Config { return a.config }

func (a *Adapter) Search(ctx context.Context, q platform.Query) (platform.Result, error) {
	if a.config.UseAPI {
		return a.searchViaAPI(ctx, q)
	}
	return a.searchViaWeb(ctx, q)
}

// searchViaAPI 使用官方 Atom API，按相关度排序分页抓取
func (a *Adapter) searchViaAPI(ctx context.Context, q platform.Query) (platform.Result, error) {
	searchQuery := a.buildAPIQuery(q)

	targetLimit := q.Limit
	if targetLimit <= 0 {
		targetLimit = a.config.Step
	}
	pageSize := min(a.config.Step, 200)

	var allPapers []*models.Paper
	totalFound := 0
	start := q.Offset

	for len(allPapers) < targetLimit {
		currentPageSize := min(pageSize, targetLimit-len(allPapers))

		params := url.Values{}
		params.Add("search_query", searchQuery)
		params.Add("start", fmt.Sprintf("%d", start))
		params.Add("max_results", fmt.Sprintf("%d", currentPageSize))

		apiURL := a.config.APIBase + "?" + params.Encode()
		a.log.Debug("API 请求: start=%d, max=%d", start, currentPageSize)

		content, err := a.request(ctx, apiURL)
		if err != nil {
			return platform.Result{}, fmt.Errorf("API request failed: %w", err)
		}

		papers, total, err := ParseAtomFeed(content)
		if err != nil {
			return platform.Result{}, fmt.Errorf("failed to parse API response: %w", err)
		}
		if totalFound == 0 {
			totalFound = total
		}

		allPapers = append(allPapers, papers...)
		a.log.Debug("已抓取 %d/%d 篇", len(allPapers), totalFound)

		if len(papers) == 0 || len(allPapers) >= totalFound {
			break
		}
		start += len(papers)
		if err := sleep(ctx, a.pageDelay); err != nil {
			return platform.Result{}, err
		}
	}

	if len(allPapers) > targetLimit {
		allPapers = allPapers[:targetLimit]
	}
	a.log.Info("API 抓取完成，共 %d 篇论文", len(allPapers))
	return platform.Result{Total: totalFound, Papers: allPapers}, nil
}

// searchViaWeb 使用高级搜索网页，结果按公布日期倒序
func (a *Adapter) searchViaWeb(ctx context.Context, q platform.Query) (platform.Result, error) {
	content, err := a.request(ctx, a.buildWebQuery(q))
	if err != nil {
		return platform.Result{}, fmt.Errorf("web request failed: %w", err)
	}

	papers, totalFound, err := ParseSearchHTML(content)
	if err != nil {
		return platform.Result{}, fmt.Errorf("failed to parse web response: %w", err)
	}
	a.log.Debug("总共找到 %d 篇论文，第 1 页返回 %d 篇", totalFound, len(papers))

	targetLimit := q.Limit
	if targetLimit == 0 || targetLimit > totalFound {
		targetLimit = totalFound
	}

	for len(papers) < targetLimit {
		q.Offset = len(papers)
		if err := sleep(ctx, a.pageDelay); err != nil {
			return platform.Result{}, err
		}

		content, err := a.request(ctx, a.buildWebQuery(q))
		if err != nil {
			a.log.Warn("抓取 offset=%d 失败: %v", q.Offset, err)
			break
		}
		pagePapers, _, err := ParseSearchHTML(content)
		if err != nil {
			a.log.Warn("解析 offset=%d 失败: %v", q.Offset, err)
			break
		}
		if len(pagePapers) == 0 {
			break
		}
		papers = append(papers, pagePapers...)
	}

	if q.Limit > 0 && len(papers) > q.Limit {
		papers = papers[:q.Limit]
	}
	a.log.Info("Web 抓取完成，共 %d 篇论文", len(papers))
	return platform.Result{Total: totalFound, Papers: papers}, nil
}

// buildAPIQuery 关键词用 all: 字段，多个词之间 AND
func (a *Adapter) buildAPIQuery(q platform.Query) string {
	var parts []string

	for _, kw := range q.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(kw, " ") {
			kw = fmt.Sprintf(`"%s"`, kw)
		}
		parts = append(parts, "all:"+kw)
	}

	for _, cat := range q.Categories {
		cat = strings.TrimSpace(cat)
		if cat == "" {
			continue
		}
		parts = append(parts, "cat:"+cat)
	}

	if len(parts) == 0 {
		a.log.Debug("没有关键词和类别，回退到 cat:cs.*")
		return "cat:cs.*"
	}

	query := strings.Join(parts, " AND ")

	if q.DateFrom != "" || q.DateTo != "" {
		from, to := "*", "*"
		if t, err := time.Parse("2006-01-02", q.DateFrom); err == nil {
			from = t.Format("200601021504")
		}
		if t, err := time.Parse("2006-01-02", q.DateTo); err == nil {
			to = t.Format("200601021504")
		}
		query += fmt.Sprintf(" AND submittedDate:[%s TO %s]", from, to)
	}
	return query
}

func (a *Adapter) buildWebQuery(q platform.Query) string {
	params := url.Values{}
	params.Add("advanced", "1")

	termIndex := 0
	for _, kw := range q.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(kw, " ") && !(strings.HasPrefix(kw, `"`) && strings.HasSuffix(kw, `"`)) {
			kw = fmt.Sprintf(`"%s"`, kw)
		}
		if termIndex > 0 {
			params.Add(fmt.Sprintf("terms-%d-operator", termIndex), "AND")
		}
		params.Add(fmt.Sprintf("terms-%d-term", termIndex), kw)
		params.Add(fmt.Sprintf("terms-%d-field", termIndex), "all")
		termIndex++
	}

	for i, cat := range q.Categories {
		cat = strings.TrimSpace(cat)
		if cat == "" {
			continue
		}
		operator := "AND"
		if i > 0 {
			operator = "OR"
		}
		if termIndex > 0 {
			params.Add(fmt.Sprintf("terms-%d-operator", termIndex), operator)
		}
		params.Add(fmt.Sprintf("terms-%d-term", termIndex), cat)
		params.Add(fmt.Sprintf("terms-%d-field", termIndex), "cross_list_category")
		termIndex++
	}

	params.Add("classification-include_cross_list", "include")
	params.Add("abstracts", "show")

	// 网页搜索的每页大小只接受 25/50/100/200
	params.Add("size", "50")
	params.Add("order", "-announced_date_first")
	if q.Offset > 0 {
		params.Add("start", fmt.Sprintf("%d", q.Offset))
	}

	if q.DateFrom != "" || q.DateTo != "" {
		params.Add("date-filter_by", "date_range")
		if t, err := time.Parse("2006-01-02", q.DateFrom); err == nil {
			params.Add("date-from_date", t.Format("2006-01-02"))
		}
		if t, err := time.Parse("2006-01-02", q.DateTo); err == nil {
			params.Add("date-to_date", t.Format("2006-01-02"))
		}
	}

	return a.config.WebBase + "?" + params.Encode()
}

// request 网络错误和非 200 响应最多重试 3 次，退避 2s、4s
func (a *Adapter) request(ctx context.Context, target string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, a.retryDelay<<(attempt-1)); err != nil {
				return "", err
			}
		}

		body, retry, err := a.fetch(ctx, target)
		if err == nil {
			return body, nil
		}
		if !retry {
			return "", err
		}
		lastErr = err
		a.log.Debug("第 %d 次请求失败: %v", attempt+1, err)
	}
	return "", lastErr
}

func (a *Adapter) fetch(ctx context.Context, target string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", true, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read response: %w", err)
	}
	return string(body), false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
