package models

import (
	"time"
)

// SearchCondition 本地检索的过滤条件
type SearchCondition struct {
	Sources  []string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
}
