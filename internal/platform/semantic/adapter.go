package semantic

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"PaperCompass/internal/core"
	"PaperCompass/internal/platform"
	"PaperCompass/pkg/logger"
)

const maxAttempts = 3

type Adapter struct {
	config     *Config
	httpClient *http.Client
	log        *logger.Logger
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
		log:        logger.WithPrefix("semantic"),
		retryDelay: 2 * time.Second,
	}, nil
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) GetConfig() platform.Config { return a.config }

// Search 多取一倍结果再过滤，最后截断到 q.Limit
func (a *Adapter) Search(ctx context.Context, q platform.Query) (platform.Result, error) {
	keyword := strings.TrimSpace(strings.Join(q.Keywords, " "))
	if keyword == "" {
		return platform.Result{}, fmt.Errorf("keyword cannot be empty")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	var since time.Time
	if q.DateFrom != "" {
		t, err := time.Parse("2006-01-02", q.DateFrom)
		if err != nil {
			return platform.Result{}, fmt.Errorf("invalid date_from %q: %w", q.DateFrom, err)
		}
		since = t
	}

	params := url.Values{}
	params.Set("query", keyword)
	params.Set("limit", strconv.Itoa(min(limit*2, 100)))
	params.Set("fields", fields)
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	endpoint := strings.TrimRight(a.config.APIBase, "/") + "/paper/search?" + params.Encode()
	a.log.Debug("请求: %s", endpoint)

	body, err := a.request(ctx, endpoint)
	if err != nil {
		return platform.Result{}, err
	}

	papers, total, err := ParseSearchResponse(body, since)
	if err != nil {
		return platform.Result{}, err
	}
	if len(papers) > limit {
		papers = papers[:limit]
	}
	a.log.Info("关键词 %q 找到 %d 篇论文", keyword, len(papers))
	return platform.Result{Total: total, Papers: papers}, nil
}

// request 429 和 5xx 重试，其余非 200 直接失败
func (a *Adapter) request(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(a.retryDelay << (attempt - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if a.config.APIKey != "" {
			req.Header.Set("x-api-key", a.config.APIKey)
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("HTTP error: %d", resp.StatusCode)
			a.log.Debug("第 %d 次请求失败: %v", attempt+1, lastErr)
		default:
			return nil, fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
	}
	return nil, lastErr
}
