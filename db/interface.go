package db

import (
	"PaperCompass/internal/models"
)

// PaperStorage 本地论文库，会话记忆之外的唯一事实来源
type PaperStorage interface {
	// Insert 按 dedup_key 去重写入；已存在时 inserted=false，id 为已有记录
	Insert(paper *models.Paper) (id int64, inserted bool, err error)

	// List 按写入时间倒序返回论文，limit<=0 表示全部
	List(limit int) ([]*models.Paper, error)

	Get(id int64) (*models.Paper, error)

	KnownDedupKeys() (map[string]struct{}, error)

	SaveEmbedding(paperID int64, model string, text string, vec []float32) error

	SearchByEmbedding(queryVec []float32, model string, cond models.SearchCondition, topK int) ([]*models.SimilarPaper, error)

	SearchByKeywords(query string, cond models.SearchCondition) ([]*models.Paper, error)

	Count() (int, error)

	DeletePapers(ids []int64) (int, error)

	Close() error
}
