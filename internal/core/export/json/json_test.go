package json

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperCompass/internal/models"
)

func TestExportDocument(t *testing.T) {
	out := filepath.Join(t.TempDir(), "papers.json")
	e := NewJSONExporter()
	e.now = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }

	papers := []*models.Paper{
		{
			ID: 1, Source: "arxiv", SourceID: "2401.00001", Title: "A < B & C",
			Authors: []string{"Alice", "Bob"}, Abstract: "full abstract",
			Year: "2024", DOI: "10.1/x", DedupKey: "secret",
			PublishedAt: time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC),
		},
		nil,
		{ID: 2, Source: "web_upload", Title: "Uploaded", Abstract: "abs"},
	}
	require.NoError(t, e.Export(papers, out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "A < B & C")
	assert.NotContains(t, string(raw), "secret")

	var doc struct {
		ExportedAt string                   `json:"exported_at"`
		Total      int                      `json:"total"`
		Papers     []map[string]interface{} `json:"papers"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "2025-06-01T08:00:00Z", doc.ExportedAt)
	assert.Equal(t, 2, doc.Total)
	require.Len(t, doc.Papers, 2)
	assert.Equal(t, "2024-01-02", doc.Papers[0]["published_at"])
	assert.Equal(t, []interface{}{"Alice", "Bob"}, doc.Papers[0]["authors"])
	assert.Equal(t, []interface{}{}, doc.Papers[1]["authors"])
	assert.NotContains(t, doc.Papers[1], "published_at")

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExportMissingDirectory(t *testing.T) {
	err := NewJSONExporter().Export(nil, filepath.Join(t.TempDir(), "missing", "papers.json"))
	assert.Error(t, err)
}
