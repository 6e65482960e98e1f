package models

import (
	"strings"
	"time"
)

// NoAbstract 摘要缺失时的占位文本，比较前必须排除
const NoAbstract = "(No abstract)"

// NoValidAbstract PDF 中未找到有效摘要时写入的占位文本
const NoValidAbstract = "(No valid abstract found.)"

type SimilarPaper struct {
	Paper      Paper
	Similarity float32 // 与查询的相似度
}

// Paper 统一的论文数据模型，本地库、arXiv、Semantic Scholar 共用
type Paper struct {
	ID               int64     `db:"id" json:"id,omitempty"`
	// Source 取值如 "arxiv"、"semantic"、"web_upload"、"web_search"
	Source           string    `db:"source" json:"source"`
	SourceID         string    `db:"source_id" json:"source_id"`
	URL              string    `db:"url" json:"url,omitempty"`
	Title            string    `db:"title" json:"title"`
	Authors          []string  `db:"-" json:"authors,omitempty"`
	Abstract         string    `db:"abstract" json:"abstract"`
	Categories       []string  `db:"-" json:"categories,omitempty"`
	Venue            string    `db:"venue" json:"venue,omitempty"`
	Year             string    `db:"year" json:"year,omitempty"`
	CitationCount    int       `db:"citation_count" json:"citation_count,omitempty"`
	InfluentialCount int       `db:"influential_count" json:"influential_citation_count,omitempty"`
	DOI              string    `db:"doi" json:"doi,omitempty"`
	PDFURL           string    `db:"pdf_url" json:"pdf_url,omitempty"`
	DedupKey         string    `db:"dedup_key" json:"dedup_key,omitempty"`
	PublishedAt      time.Time `db:"published_at" json:"published_at,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at,omitempty"`
}

// AuthorsCSV 返回以逗号分隔的作者名
func (p *Paper) AuthorsCSV() string {
	return strings.Join(p.Authors, ", ")
}

// CategoriesCSV 返回以逗号分隔的类别
func (p *Paper) CategoriesCSV() string {
	return strings.Join(p.Categories, ", ")
}

// HasAbstract 摘要非空且不是占位文本
func (p *Paper) HasAbstract() bool {
	if p == nil {
		return false
	}
	abs := strings.TrimSpace(p.Abstract)
	return abs != "" && abs != NoAbstract && abs != NoValidAbstract
}
