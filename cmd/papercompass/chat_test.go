package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "PaperCompass/db/sqlite"
	"PaperCompass/internal/core"
	"PaperCompass/internal/models"
)

func newChatApp(t *testing.T) (*core.App, *storage.SQLiteDB) {
	t.Helper()
	store, err := storage.NewSQLiteDB(filepath.Join(t.TempDir(), "papers.db"))
	require.NoError(t, err)
	app := core.NewApp(store, nil, nil)
	t.Cleanup(func() { app.Close() })
	return app, store
}

func TestRunChatSessionCommands(t *testing.T) {
	app, store := newChatApp(t)
	_, _, err := store.Insert(&models.Paper{
		Title:    "Vision Transformers",
		Abstract: "An image is worth 16x16 words.",
		DedupKey: "vit",
	})
	require.NoError(t, err)

	in := strings.NewReader(strings.Join([]string{
		":help",
		":recent",
		":import 1",
		":import x",
		":bogus",
		"本地論文清單",
		":quit",
		"本地論文清單",
	}, "\n"))
	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), app, in, &out))

	text := out.String()
	assert.Contains(t, text, ":import N")
	assert.Equal(t, 2, strings.Count(text, "Vision Transformers"))
	assert.Contains(t, text, "没有可用的网络检索结果")
	assert.Contains(t, text, "用法：:import N")
	assert.Contains(t, text, "未知命令 :bogus")
	assert.Contains(t, text, "本地資料庫")
}

func TestRunChatStopsAtEOF(t *testing.T) {
	app, _ := newChatApp(t)
	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), app, strings.NewReader("hello there\n"), &out))
	assert.Contains(t, out.String(), "未知指令：hello there")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b", snippet("  a \n b "))
	long := strings.Repeat("論", snippetRunes+5)
	assert.True(t, strings.HasSuffix(snippet(long), "…"))
	assert.Equal(t, snippetRunes+1, len([]rune(snippet(long))))
}
