package ir

import (
	"strings"
	"unicode"
)

var defaultStopWords = []string{
	"a", "an", "the",
	"and", "or", "but", "nor", "for", "so", "yet",
	"in", "on", "at", "to", "of", "with", "by", "from", "up", "about", "into", "through", "during",
	"i", "you", "he", "she", "it", "we", "they", "this", "that", "these", "those", "our", "their",
	"is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "having", "do", "does", "did", "doing", "done",
	"will", "would", "should", "could", "can", "may", "might", "must",
	"as", "if", "than", "then", "when", "where", "why", "how",
	"all", "each", "every", "both", "few", "more", "most", "other", "some", "such", "no", "not", "only", "own", "same", "too", "very",
}

// Tokenizer 英文按词切分并去停用词，中文按相邻两字切分
type Tokenizer struct {
	stopWords map[string]bool
}

func NewTokenizer() *Tokenizer {
	stop := make(map[string]bool, len(defaultStopWords))
	for _, w := range defaultStopWords {
		stop[w] = true
	}
	return &Tokenizer{stopWords: stop}
}

func (t *Tokenizer) Tokenize(text string) []string {
	if text == "" {
		return []string{}
	}

	tokens := make([]string, 0, 16)
	var word []rune
	var han []rune

	flushWord := func() {
		if len(word) > 1 {
			if w := string(word); !t.stopWords[w] {
				tokens = append(tokens, w)
			}
		}
		word = word[:0]
	}
	flushHan := func() {
		switch {
		case len(han) == 1:
			tokens = append(tokens, string(han))
		case len(han) > 1:
			for i := 0; i+1 < len(han); i++ {
				tokens = append(tokens, string(han[i:i+2]))
			}
		}
		han = han[:0]
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flushWord()
			han = append(han, r)
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			flushHan()
			word = append(word, r)
		default:
			flushWord()
			flushHan()
		}
	}
	flushWord()
	flushHan()
	return tokens
}
