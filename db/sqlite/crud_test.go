package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperCompass/internal/models"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	store, err := NewSQLiteDB(filepath.Join(t.TempDir(), "papers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertDeduplicates(t *testing.T) {
	store := newTestDB(t)

	p := &models.Paper{Title: "Vision Transformers", Abstract: "An image is worth 16x16 words.", DedupKey: "k1"}
	id, inserted, err := store.Insert(p)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Positive(t, id)

	again := &models.Paper{Title: "Vision Transformers (copy)", DedupKey: "k1"}
	id2, inserted, err := store.Insert(again)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, id, id2)

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Vision Transformers", got.Title)
	assert.Equal(t, "internal_upload", got.Source)
}

func TestInsertRequiresDedupKey(t *testing.T) {
	store := newTestDB(t)
	_, _, err := store.Insert(&models.Paper{Title: "no key"})
	assert.Error(t, err)
}

func TestListIsRecentFirst(t *testing.T) {
	store := newTestDB(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, key := range []string{"a", "b", "c"} {
		_, _, err := store.Insert(&models.Paper{
			Title:     "paper " + key,
			DedupKey:  key,
			Authors:   []string{"Alice", "Bob"},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	papers, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, papers, 3)
	assert.Equal(t, "paper c", papers[0].Title)
	assert.Equal(t, "paper a", papers[2].Title)
	assert.Equal(t, []string{"Alice", "Bob"}, papers[0].Authors)

	limited, err := store.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := newTestDB(t)
	p, err := store.Get(42)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestKnownDedupKeysAndDelete(t *testing.T) {
	store := newTestDB(t)
	id1, _, err := store.Insert(&models.Paper{Title: "one", DedupKey: "h1"})
	require.NoError(t, err)
	_, _, err = store.Insert(&models.Paper{Title: "two", DedupKey: "h2"})
	require.NoError(t, err)

	keys, err := store.KnownDedupKeys()
	require.NoError(t, err)
	assert.Contains(t, keys, "h1")
	assert.Contains(t, keys, "h2")

	n, err := store.DeletePapers([]int64{id1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	keys, err = store.KnownDedupKeys()
	require.NoError(t, err)
	assert.NotContains(t, keys, "h1")
}

func TestSearchByEmbedding(t *testing.T) {
	store := newTestDB(t)
	idA, _, err := store.Insert(&models.Paper{Title: "A", DedupKey: "a"})
	require.NoError(t, err)
	idB, _, err := store.Insert(&models.Paper{Title: "B", DedupKey: "b"})
	require.NoError(t, err)

	require.NoError(t, store.SaveEmbedding(idA, "m", "A", []float32{1, 0}))
	require.NoError(t, store.SaveEmbedding(idB, "m", "B", []float32{0, 1}))

	res, err := store.SearchByEmbedding([]float32{0.9, 0.1}, "m", models.SearchCondition{}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "A", res[0].Title)
	assert.InDelta(t, 0.99, res[0].Similarity, 0.01)

	other, err := store.SearchByEmbedding([]float32{1, 0}, "other-model", models.SearchCondition{}, 5)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSearchByKeywords(t *testing.T) {
	store := newTestDB(t)
	_, _, err := store.Insert(&models.Paper{Title: "Diffusion models", Abstract: "denoising", DedupKey: "d"})
	require.NoError(t, err)
	_, _, err = store.Insert(&models.Paper{Title: "Graph networks", Abstract: "message passing with diffusion", DedupKey: "g", Source: "arxiv"})
	require.NoError(t, err)
	_, _, err = store.Insert(&models.Paper{Title: "Speech", Abstract: "audio", DedupKey: "s"})
	require.NoError(t, err)

	all, err := store.SearchByKeywords("diffusion", models.SearchCondition{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	arxivOnly, err := store.SearchByKeywords("diffusion", models.SearchCondition{Sources: []string{"arxiv"}})
	require.NoError(t, err)
	require.Len(t, arxivOnly, 1)
	assert.Equal(t, "Graph networks", arxivOnly[0].Title)
}
