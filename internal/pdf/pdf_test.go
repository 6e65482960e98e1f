package pdf

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperCompass/internal/llm"
	"PaperCompass/internal/models"
	"PaperCompass/pkg/logger"
)

type fakeLLM struct {
	answer string
	err    error
	calls  int
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.calls++
	return f.answer, f.err
}

const samplePaper = `Attention Is All You Need For Paper Comparison
Jane Doe, John Roe
Abstract
We propose a new method for comparing research abstracts using embeddings and
language models. Our approach combines semantic similarity with structured
summaries, and results show consistent gains over keyword baselines.

1 Introduction
Comparing papers is hard.`

func newTestExtractor(c llm.Completer) *Extractor {
	return New(c,
		WithPolicy(llm.Policy{Attempts: 2, BaseDelay: time.Millisecond}),
		WithLogger(logger.New(io.Discard, "ERROR")),
	)
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", ContentHash([]byte("hello")))
	assert.NotEqual(t, ContentHash([]byte("a")), ContentHash([]byte("b")))
}

func TestParseTextHeaderAbstract(t *testing.T) {
	doc := newTestExtractor(nil).ParseText(context.Background(), samplePaper)

	assert.Equal(t, "Attention Is All You Need For Paper Comparison", doc.Title)
	assert.Equal(t, AbstractFromHeader, doc.AbstractSource)
	assert.True(t, strings.HasPrefix(doc.Abstract, "We propose a new method"))
	assert.NotContains(t, doc.Abstract, "Introduction")
	assert.Equal(t, samplePaper, doc.FullText)
}

func TestParseTextInlineHeader(t *testing.T) {
	text := "A Study Of Inline Abstracts\nAbstract—We propose an approach that measures things carefully and reports results on many benchmarks with strong baselines included.\n\nIntroduction"
	doc := newTestExtractor(nil).ParseText(context.Background(), text)
	assert.Equal(t, AbstractFromHeader, doc.AbstractSource)
	assert.True(t, strings.HasPrefix(doc.Abstract, "We propose an approach"))
}

func TestParseTextLLMRejectsAll(t *testing.T) {
	f := &fakeLLM{answer: "No."}
	doc := newTestExtractor(f).ParseText(context.Background(), samplePaper)
	assert.Equal(t, AbstractInvalid, doc.AbstractSource)
	assert.Equal(t, models.NoValidAbstract, doc.Abstract)
	assert.Equal(t, 2, f.calls)
}

func TestParseTextLLMFailureUsesHeuristic(t *testing.T) {
	f := &fakeLLM{err: errors.New("rate limited")}
	doc := newTestExtractor(f).ParseText(context.Background(), samplePaper)
	assert.Equal(t, AbstractFromHeader, doc.AbstractSource)
	assert.Equal(t, 2, f.calls)
}

func TestParseTextLeadingFallback(t *testing.T) {
	text := "Short\nA Long Enough Title For Testing\nThis work presents a method for evaluating retrieval systems.\nWe report results on three datasets and analyse the approach in depth.\nKeywords: retrieval"
	doc := newTestExtractor(nil).ParseText(context.Background(), text)
	assert.Equal(t, "A Long Enough Title For Testing", doc.Title)
	assert.Equal(t, AbstractFromFallback, doc.AbstractSource)
	assert.NotContains(t, doc.Abstract, "Keywords")
}

func TestParseTextNothingUsable(t *testing.T) {
	doc := newTestExtractor(nil).ParseText(context.Background(), "tiny\nabstract\nshort")
	assert.Equal(t, untitled, doc.Title)
	assert.Equal(t, models.NoValidAbstract, doc.Abstract)
}

func TestExtractRejectsGarbage(t *testing.T) {
	doc, err := newTestExtractor(nil).Extract(context.Background(), []byte("definitely not a pdf"))
	require.Error(t, err)
	assert.Equal(t, untitled, doc.Title)
	assert.Equal(t, AbstractInvalid, doc.AbstractSource)
}

func TestIsSectionStart(t *testing.T) {
	for _, line := range []string{"Introduction", "1 Introduction", "I. INTRODUCTION", "Keywords: x", "Index Terms—y"} {
		assert.True(t, isSectionStart(line), line)
	}
	assert.False(t, isSectionStart("In this paper we"))
}
