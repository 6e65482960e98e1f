package ir

import (
	"testing"

	"PaperCompass/internal/models"
)

func newSearcher(papers []*models.Paper) *BM25Searcher {
	tokenizer := NewTokenizer()
	index := NewInvertedIndex(tokenizer)
	index.AddDocuments(papers)
	return NewBM25Searcher(index, tokenizer)
}

func TestNewBM25Searcher(t *testing.T) {
	searcher := newSearcher(nil)

	k1, b := searcher.GetParameters()
	if k1 != 1.5 {
		t.Errorf("Expected default k1 = 1.5, got %.2f", k1)
	}
	if b != 0.75 {
		t.Errorf("Expected default b = 0.75, got %.2f", b)
	}

	searcher.SetParameters(1.2, 0.8)
	if k1, b = searcher.GetParameters(); k1 != 1.2 || b != 0.8 {
		t.Errorf("SetParameters not applied: k1=%.2f b=%.2f", k1, b)
	}
}

func TestBM25Searcher_Search(t *testing.T) {
	searcher := newSearcher([]*models.Paper{
		{ID: 1, Title: "Machine Learning", Abstract: "Introduction to machine learning algorithms and applications."},
		{ID: 2, Title: "Deep Learning Neural Networks", Abstract: "This comprehensive paper explores deep learning architectures using neural networks for various machine learning tasks including computer vision and natural language processing."},
		{ID: 3, Title: "Computer Vision", Abstract: "Image processing and analysis."},
	})

	tests := []struct {
		name        string
		query       string
		expectedLen int
		firstDocID  int64
	}{
		{name: "search for deep", query: "deep", expectedLen: 1, firstDocID: 2},
		{name: "search for vision", query: "vision", expectedLen: 2, firstDocID: 3},
		{name: "search for machine", query: "machine", expectedLen: 2, firstDocID: 1},
		{name: "nonexistent term", query: "nonexistent", expectedLen: 0},
		{name: "empty query", query: "", expectedLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := searcher.Search(tt.query, 10)
			if len(results) != tt.expectedLen {
				t.Fatalf("Expected %d results, got %d", tt.expectedLen, len(results))
			}
			for i := 1; i < len(results); i++ {
				if results[i-1].Score < results[i].Score {
					t.Errorf("Results not sorted: %.4f < %.4f", results[i-1].Score, results[i].Score)
				}
			}
			if len(results) > 0 && results[0].DocID != tt.firstDocID {
				t.Errorf("Expected first DocID = %d, got %d", tt.firstDocID, results[0].DocID)
			}
			for _, r := range results {
				if r.Score <= 0 {
					t.Errorf("Expected positive score, got %.4f for doc %d", r.Score, r.DocID)
				}
				if r.Paper == nil || r.Paper.ID != r.DocID {
					t.Errorf("Result %d missing paper", r.DocID)
				}
			}
		})
	}
}

func TestBM25Searcher_computeIDF(t *testing.T) {
	searcher := newSearcher([]*models.Paper{
		{ID: 1, Title: "machine learning", Abstract: "introduction"},
		{ID: 2, Title: "deep learning", Abstract: "advanced techniques"},
		{ID: 3, Title: "neural networks", Abstract: "overview"},
	})

	rare := searcher.computeIDF("machine")
	common := searcher.computeIDF("learning")
	if rare <= common {
		t.Errorf("Expected rare term to have higher IDF: rare=%.4f, common=%.4f", rare, common)
	}
	if idf := searcher.computeIDF("nonexistent"); idf != 0 {
		t.Errorf("Expected IDF 0 for nonexistent term, got %.4f", idf)
	}
}

func TestBM25Searcher_TitleBoost(t *testing.T) {
	searcher := newSearcher([]*models.Paper{
		{ID: 1, Title: "Transformers", Abstract: "attention layers everywhere"},
		{ID: 2, Title: "Recurrent Models", Abstract: "compared against transformers baseline"},
		{ID: 3, Title: "Other", Abstract: "unrelated content"},
	})

	results := searcher.Search("transformers", 10)
	if len(results) != 2 || results[0].DocID != 1 {
		t.Fatalf("Expected title hit first, got %+v", results)
	}
}

func TestRank(t *testing.T) {
	papers := []*models.Paper{
		{ID: 10, Title: "擴散模型綜述", Abstract: "(No abstract)"},
		{ID: 11, Title: "Graph Networks", Abstract: "message passing"},
		{ID: 12, Title: "Diffusion Models", Abstract: "denoising diffusion probabilistic models"},
	}

	ranked := Rank(papers, "diffusion", 5)
	if len(ranked) != 1 || ranked[0].ID != 12 {
		t.Fatalf("Expected only paper 12, got %v", ranked)
	}

	ranked = Rank(papers, "擴散模型", 5)
	if len(ranked) != 1 || ranked[0].ID != 10 {
		t.Fatalf("Expected Chinese title match, got %v", ranked)
	}

	if got := Rank(papers, "", 5); len(got) != 0 {
		t.Errorf("Expected no results for empty query, got %d", len(got))
	}
}
