package platform

import (
	"context"

	"PaperCompass/internal/models"
)

// Query 平台查询参数（统一接口）
type Query struct {
	Keywords   []string
	Categories []string
	DateFrom   string // YYYY-MM-DD，为空表示不限
	DateTo     string // YYYY-MM-DD
	Limit      int
	Offset     int
}

// Result 查询结果
type Result struct {
	Total  int
	Papers []*models.Paper
}

// Platform 在线论文源（arXiv / Semantic Scholar）都需实现
type Platform interface {
	Name() string

	Search(ctx context.Context, q Query) (Result, error)

	GetConfig() Config
}

type Config interface {
	Validate() error
}
