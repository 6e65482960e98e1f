package core

import (
	"context"
	"fmt"
	"strings"

	storage "PaperCompass/db"
	emb "PaperCompass/internal/embedding"
	"PaperCompass/internal/ir"
	"PaperCompass/internal/models"
	"PaperCompass/pkg/logger"
)

// minVectorSimilarity 向量命中的最低相似度，低于它的结果不展示
const minVectorSimilarity = 0.3

// Searcher 本地检索：关键词命中按 BM25 排序，再补上向量相似的论文，按标题去重
type Searcher struct {
	db       storage.PaperStorage
	embedder emb.Service
	log      *logger.Logger
}

func NewSearcher(db storage.PaperStorage, embedder emb.Service) *Searcher {
	return &Searcher{db: db, embedder: embedder, log: logger.WithPrefix("local")}
}

// Query vec 为空时只做关键词检索
func (s *Searcher) Query(ctx context.Context, keyword string, vec []float32, topK int) ([]*models.Paper, error) {
	keyword = strings.TrimSpace(keyword)
	var out []*models.Paper
	seen := make(map[string]struct{})
	add := func(p *models.Paper) {
		key := strings.ToLower(strings.TrimSpace(p.Title))
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}

	if keyword != "" {
		hits, err := s.db.SearchByKeywords(keyword, models.SearchCondition{})
		if err != nil {
			return nil, fmt.Errorf("关键词检索失败: %w", err)
		}
		for _, p := range ir.Rank(hits, keyword, 0) {
			add(p)
		}
		s.log.Debug("关键词 %q 命中 %d 篇", keyword, len(out))
	}

	if len(vec) > 0 && emb.Available(s.embedder) {
		similar, err := s.db.SearchByEmbedding(vec, s.embedder.ModelName(), models.SearchCondition{}, topK)
		if err != nil {
			s.log.Warn("向量检索失败: %v", err)
		}
		for _, sp := range similar {
			if sp.Similarity < minVectorSimilarity {
				continue
			}
			p := sp.Paper
			add(&p)
		}
	}
	return out, nil
}

// Index 为论文生成并保存向量；向量服务不可用时直接跳过
func (s *Searcher) Index(ctx context.Context, p *models.Paper) {
	if p == nil || p.ID == 0 || !emb.Available(s.embedder) {
		return
	}
	text := emb.BuildEmbeddingText(p)
	vec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		s.log.Warn("向量生成失败 [paper_id=%d]: %v", p.ID, err)
		return
	}
	if err := s.db.SaveEmbedding(p.ID, s.embedder.ModelName(), text, vec); err != nil {
		s.log.Warn("向量保存失败 [paper_id=%d]: %v", p.ID, err)
		return
	}
	s.log.Debug("向量保存成功: paper_id=%d, dim=%d", p.ID, len(vec))
}
