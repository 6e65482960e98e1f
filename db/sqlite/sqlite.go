package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("无法创建目录，请检查权限问题: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("无法打开数据库，请检查权限问题: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("无法连接到数据库: %w", err)
	}

	sqlDB := &SQLiteDB{db: db}

	if err := sqlDB.initTable(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("数据库创建失败: %w", err)
	}

	return sqlDB, nil
}

func (d *SQLiteDB) Close() error { return d.db.Close() }

func (d *SQLiteDB) initTable() error {
	schema := `
CREATE TABLE IF NOT EXISTS papers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source TEXT NOT NULL DEFAULT 'internal_upload',
  source_id TEXT,
  url TEXT,
  title TEXT NOT NULL,
  authors TEXT,
  abstract TEXT,
  categories TEXT,
  venue TEXT,
  year TEXT,
  citation_count INTEGER DEFAULT 0,
  influential_count INTEGER DEFAULT 0,
  doi TEXT,
  pdf_url TEXT,
  dedup_key TEXT UNIQUE NOT NULL,  -- 内容哈希（文件字节或 标题+摘要）
  published_at DATETIME,
  created_at DATETIME NOT NULL,

  embedding_text TEXT,
  embedding BLOB,                  -- float32 数组（小端）
  embedding_model TEXT,
  embedding_updated_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_papers_source ON papers(source);
CREATE INDEX IF NOT EXISTS idx_papers_created ON papers(created_at);
CREATE INDEX IF NOT EXISTS idx_papers_model ON papers(embedding_model);
	`

	_, err := d.db.Exec(schema)
	return err
}
