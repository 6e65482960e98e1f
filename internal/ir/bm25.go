package ir

import (
	"math"
	"sort"

	"PaperCompass/internal/models"
)

// SearchResult 一条 BM25 命中
type SearchResult struct {
	DocID int64
	Score float64
	Paper *models.Paper
}

// BM25Searcher 标题命中的词额外加权
type BM25Searcher struct {
	index       *InvertedIndex
	tokenizer   *Tokenizer
	k1          float64 // 词频饱和度
	b           float64 // 长度归一化
	titleWeight float64
}

func NewBM25Searcher(index *InvertedIndex, tokenizer *Tokenizer) *BM25Searcher {
	return &BM25Searcher{index: index, tokenizer: tokenizer, k1: 1.5, b: 0.75, titleWeight: 2.0}
}

func (s *BM25Searcher) SetParameters(k1, b float64) {
	s.k1 = k1
	s.b = b
}

func (s *BM25Searcher) GetParameters() (k1, b float64) {
	return s.k1, s.b
}

// Search 分数相同按 DocID 降序（新写入的论文 ID 更大）
func (s *BM25Searcher) Search(query string, topK int) []*SearchResult {
	terms := s.tokenizer.Tokenize(query)
	if len(terms) == 0 {
		return []*SearchResult{}
	}

	scores := make(map[int64]float64)
	for _, term := range terms {
		idf := s.computeIDF(term)
		if idf == 0 {
			continue
		}
		for _, p := range s.index.GetPostingList(term) {
			scores[p.DocID] += s.termScore(idf, p)
		}
	}

	results := make([]*SearchResult, 0, len(scores))
	for docID, score := range scores {
		if score <= 0 {
			continue
		}
		results = append(results, &SearchResult{DocID: docID, Score: score, Paper: s.index.Paper(docID)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID > results[j].DocID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// termScore BM25(q,d) = IDF × tf×(k1+1) / (tf + k1×(1-b+b×|d|/avgdl))
func (s *BM25Searcher) termScore(idf float64, p Posting) float64 {
	avg := s.index.GetAverageDocumentLength()
	docLen := s.index.GetDocumentLength(p.DocID)
	if avg == 0 || docLen == 0 || p.TermFreq == 0 {
		return 0
	}
	tf := float64(p.TermFreq)
	score := idf * tf * (s.k1 + 1) / (tf + s.k1*(1-s.b+s.b*float64(docLen)/avg))
	if p.TitleFreq > 0 {
		score *= 1 + (s.titleWeight-1)*float64(p.TitleFreq)/tf
	}
	return score
}

// computeIDF 小语料下用 log(N/df)，所有文档都出现的词给一个很小的正值
func (s *BM25Searcher) computeIDF(term string) float64 {
	df := s.index.GetDocumentFrequency(term)
	total := s.index.GetTotalDocs()
	if df == 0 || total == 0 {
		return 0
	}
	if df == total {
		return 0.1
	}
	return math.Log(float64(total) / float64(df))
}

// Rank 对候选论文临时建索引并按 BM25 排序，只返回有命中的论文
func Rank(papers []*models.Paper, query string, topK int) []*models.Paper {
	tokenizer := NewTokenizer()
	index := NewInvertedIndex(tokenizer)
	index.AddDocuments(papers)

	results := NewBM25Searcher(index, tokenizer).Search(query, topK)
	ranked := make([]*models.Paper, 0, len(results))
	for _, r := range results {
		ranked = append(ranked, r.Paper)
	}
	return ranked
}
