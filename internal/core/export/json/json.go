package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"PaperCompass/internal/models"
)

// document 导出文件的顶层结构
type document struct {
	ExportedAt string   `json:"exported_at"`
	Total      int      `json:"total"`
	Papers     []record `json:"papers"`
}

// record 与 CSV 导出的列一一对应，摘要保留全文；去重键和 PDF 地址属于内部字段，不导出
type record struct {
	ID            int64    `json:"id"`
	Source        string   `json:"source"`
	SourceID      string   `json:"source_id,omitempty"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Abstract      string   `json:"abstract"`
	Categories    []string `json:"categories"`
	Venue         string   `json:"venue,omitempty"`
	Year          string   `json:"year,omitempty"`
	CitationCount int      `json:"citation_count"`
	DOI           string   `json:"doi,omitempty"`
	URL           string   `json:"url,omitempty"`
	PublishedAt   string   `json:"published_at,omitempty"`
	CreatedAt     string   `json:"created_at,omitempty"`
}

type JSONExporter struct {
	now func() time.Time
}

func NewJSONExporter() *JSONExporter {
	return &JSONExporter{now: time.Now}
}

// Export 先写临时文件再改名，失败时不会留下半个文件
func (e *JSONExporter) Export(papers []*models.Paper, outputPath string) error {
	doc := document{
		ExportedAt: e.now().UTC().Format(time.RFC3339),
		Papers:     make([]record, 0, len(papers)),
	}
	for _, p := range papers {
		if p == nil {
			continue
		}
		doc.Papers = append(doc.Papers, toRecord(p))
	}
	doc.Total = len(doc.Papers)

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".export-*.json")
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false) // 标题里常有 < > &

	if err := encoder.Encode(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("写入 JSON 失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入 JSON 失败: %w", err)
	}
	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		return fmt.Errorf("保存导出文件失败: %w", err)
	}
	return nil
}

func toRecord(p *models.Paper) record {
	r := record{
		ID:            p.ID,
		Source:        p.Source,
		SourceID:      p.SourceID,
		Title:         p.Title,
		Authors:       p.Authors,
		Abstract:      p.Abstract,
		Categories:    p.Categories,
		Venue:         p.Venue,
		Year:          p.Year,
		CitationCount: p.CitationCount,
		DOI:           p.DOI,
		URL:           p.URL,
		PublishedAt:   formatDate(p.PublishedAt),
		CreatedAt:     formatDate(p.CreatedAt),
	}
	if r.Authors == nil {
		r.Authors = []string{}
	}
	if r.Categories == nil {
		r.Categories = []string{}
	}
	return r
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
