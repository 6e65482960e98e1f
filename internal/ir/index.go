package ir

import (
	"PaperCompass/internal/models"
)

// Posting 倒排列表中的一项
type Posting struct {
	DocID        int64
	TermFreq     int // 标题 + 摘要
	TitleFreq    int
	AbstractFreq int
}

// InvertedIndex 按论文 ID 建立的倒排索引，每次本地查询临时构建
type InvertedIndex struct {
	index        map[string][]Posting
	docLengths   map[int64]int
	papers       map[int64]*models.Paper
	tokenizer    *Tokenizer
	totalLength  int
	avgDocLength float64
}

func NewInvertedIndex(tokenizer *Tokenizer) *InvertedIndex {
	return &InvertedIndex{
		index:      make(map[string][]Posting),
		docLengths: make(map[int64]int),
		papers:     make(map[int64]*models.Paper),
		tokenizer:  tokenizer,
	}
}

// AddDocument 重复的 ID 会被忽略
func (ii *InvertedIndex) AddDocument(paper *models.Paper) {
	if paper == nil {
		return
	}
	if _, exists := ii.papers[paper.ID]; exists {
		return
	}

	titleTokens := ii.tokenizer.Tokenize(paper.Title)
	var abstractTokens []string
	if paper.HasAbstract() {
		abstractTokens = ii.tokenizer.Tokenize(paper.Abstract)
	}

	titleFreqs := make(map[string]int)
	for _, tok := range titleTokens {
		titleFreqs[tok]++
	}
	abstractFreqs := make(map[string]int)
	for _, tok := range abstractTokens {
		abstractFreqs[tok]++
	}

	terms := make(map[string]struct{}, len(titleFreqs)+len(abstractFreqs))
	for term := range titleFreqs {
		terms[term] = struct{}{}
	}
	for term := range abstractFreqs {
		terms[term] = struct{}{}
	}
	for term := range terms {
		ii.index[term] = append(ii.index[term], Posting{
			DocID:        paper.ID,
			TermFreq:     titleFreqs[term] + abstractFreqs[term],
			TitleFreq:    titleFreqs[term],
			AbstractFreq: abstractFreqs[term],
		})
	}

	length := len(titleTokens) + len(abstractTokens)
	ii.papers[paper.ID] = paper
	ii.docLengths[paper.ID] = length
	ii.totalLength += length
	ii.avgDocLength = float64(ii.totalLength) / float64(len(ii.papers))
}

func (ii *InvertedIndex) AddDocuments(papers []*models.Paper) {
	for _, p := range papers {
		ii.AddDocument(p)
	}
}

func (ii *InvertedIndex) GetPostingList(term string) []Posting {
	return ii.index[term]
}

func (ii *InvertedIndex) GetDocumentFrequency(term string) int {
	return len(ii.index[term])
}

func (ii *InvertedIndex) GetDocumentLength(docID int64) int {
	return ii.docLengths[docID]
}

func (ii *InvertedIndex) GetAverageDocumentLength() float64 {
	return ii.avgDocLength
}

func (ii *InvertedIndex) GetTotalDocs() int {
	return len(ii.papers)
}

func (ii *InvertedIndex) Paper(docID int64) *models.Paper {
	return ii.papers[docID]
}
