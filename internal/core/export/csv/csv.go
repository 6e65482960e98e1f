package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"PaperCompass/internal/models"
)

const abstractLimit = 500

type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) Export(papers []*models.Paper, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	defer file.Close()

	// Excel 需要 BOM 才能识别 UTF-8
	if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("写入 BOM 失败: %w", err)
	}

	writer := csv.NewWriter(file)

	headers := []string{
		"ID", "来源", "平台ID", "标题", "作者", "摘要", "分类",
		"期刊/会议", "年份", "引用数", "DOI", "URL", "发布日期", "入库时间",
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}

	for _, p := range papers {
		record := []string{
			strconv.FormatInt(p.ID, 10),
			p.Source,
			p.SourceID,
			p.Title,
			strings.Join(p.Authors, "; "),
			truncate(p.Abstract, abstractLimit),
			strings.Join(p.Categories, "; "),
			p.Venue,
			p.Year,
			strconv.Itoa(p.CitationCount),
			p.DOI,
			p.URL,
			formatTime(p.PublishedAt),
			formatTime(p.CreatedAt),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("写入数据失败: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// truncate 按字符截断，避免切断多字节字符
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
