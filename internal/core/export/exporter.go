package export

import (
	"PaperCompass/internal/models"
)

// Exporter 本地论文导出
type Exporter interface {
	// Export 导出论文到指定文件
	Export(papers []*models.Paper, outputPath string) error
}
