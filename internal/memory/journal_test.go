package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalAppendLoadCleanup(t *testing.T) {
	dir := t.TempDir()
	j, err := NewJournal(dir, 30)
	require.NoError(t, err)

	now := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	require.NoError(t, j.Append("s1", Input{Text: "查詢 arxiv 的 vit", At: now.Add(-time.Hour)}))
	require.NoError(t, j.Append("s2", Input{Text: "other session", At: now.Add(-time.Minute)}))
	require.NoError(t, j.Append("s1", Input{Text: "ancient", At: now.AddDate(0, 0, -40)}))

	inputs, err := j.Load("s1", 7)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "查詢 arxiv 的 vit", inputs[0].Text)

	all, err := j.Load("", 7)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	j.Cleanup()
	_, err = os.Stat(filepath.Join(dir, "inputs-"+now.AddDate(0, 0, -40).Format("20060102")+".jsonl"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "inputs-"+now.Format("20060102")+".jsonl"))
	assert.NoError(t, err)
}

func TestStoreWritesJournal(t *testing.T) {
	s, _, clock := newTestStore(t)
	j, err := NewJournal(t.TempDir(), 30)
	require.NoError(t, err)
	j.now = clock.Now
	s.journal = j

	s.RememberInput("hello")
	inputs, err := j.Load("s1", 1)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "hello", inputs[0].Text)
}
