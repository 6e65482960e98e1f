package db

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"PaperCompass/internal/models"
	"PaperCompass/pkg/similarity"

	_ "github.com/mattn/go-sqlite3"
)

const paperColumns = `id, source, source_id, url, title, authors, abstract, categories,
	venue, year, citation_count, influential_count, doi, pdf_url, dedup_key,
	published_at, created_at`

// Insert 写入论文；dedup_key 冲突时不覆盖已有记录，返回已有 id 和 inserted=false
func (s *SQLiteDB) Insert(p *models.Paper) (int64, bool, error) {
	if p == nil {
		return 0, false, fmt.Errorf("论文不能为空")
	}
	if strings.TrimSpace(p.DedupKey) == "" {
		return 0, false, fmt.Errorf("缺少去重键: %s", p.Title)
	}
	if p.Source == "" {
		p.Source = "internal_upload"
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO papers (
		source, source_id, url, title, authors, abstract, categories,
		venue, year, citation_count, influential_count, doi, pdf_url,
		dedup_key, published_at, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(dedup_key) DO NOTHING
	RETURNING id
	`

	var id int64
	err := s.db.QueryRow(query,
		p.Source, p.SourceID, p.URL, p.Title, joinList(p.Authors), p.Abstract,
		joinList(p.Categories), p.Venue, p.Year, p.CitationCount, p.InfluentialCount,
		p.DOI, p.PDFURL, p.DedupKey, nullTime(p.PublishedAt), p.CreatedAt,
	).Scan(&id)
	if err == nil {
		p.ID = id
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}

	if err := s.db.QueryRow(`SELECT id FROM papers WHERE dedup_key = ?`, p.DedupKey).Scan(&id); err != nil {
		return 0, false, fmt.Errorf("查询已存在论文失败: %w", err)
	}
	return id, false, nil
}

func (s *SQLiteDB) List(limit int) ([]*models.Paper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers ORDER BY created_at DESC, id DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanPapers(rows)
}

// Get 不存在时返回 (nil, nil)
func (s *SQLiteDB) Get(id int64) (*models.Paper, error) {
	rows, err := s.db.Query(`SELECT `+paperColumns+` FROM papers WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	papers, err := s.scanPapers(rows)
	if err != nil {
		return nil, err
	}
	if len(papers) == 0 {
		return nil, nil
	}
	return papers[0], nil
}

func (s *SQLiteDB) KnownDedupKeys() (map[string]struct{}, error) {
	rows, err := s.db.Query(`SELECT dedup_key FROM papers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}

// SaveEmbedding 保存论文的向量表示
func (s *SQLiteDB) SaveEmbedding(paperID int64, model, text string, vec []float32) error {
	query := `
	UPDATE papers SET
		embedding_text = ?,
		embedding = ?,
		embedding_model = ?,
		embedding_updated_at = CURRENT_TIMESTAMP
	WHERE id = ?
	`
	_, err := s.db.Exec(query, text, encodeVec(vec), model, paperID)
	return err
}

// SearchByEmbedding 基于向量相似度检索论文
func (s *SQLiteDB) SearchByEmbedding(queryVec []float32, model string, cond models.SearchCondition, topK int) ([]*models.SimilarPaper, error) {
	where := []string{"embedding IS NOT NULL", "embedding_model = ?"}
	args := []interface{}{model}
	where, args = applyCondition(where, args, cond)

	query := `SELECT ` + paperColumns + `, embedding FROM papers WHERE ` + strings.Join(where, " AND ")

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*models.SimilarPaper
	for rows.Next() {
		var embBlob []byte
		p, err := scanPaper(rows, &embBlob)
		if err != nil {
			return nil, err
		}
		results = append(results, &models.SimilarPaper{
			Paper:      *p,
			Similarity: similarity.CosineSimilarity(queryVec, decodeVec(embBlob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *SQLiteDB) SearchByKeywords(query string, cond models.SearchCondition) ([]*models.Paper, error) {
	pattern := "%" + query + "%"
	where := []string{"(title LIKE ? OR abstract LIKE ?)"}
	args := []interface{}{pattern, pattern}
	where, args = applyCondition(where, args, cond)

	sqlQuery := `SELECT ` + paperColumns + ` FROM papers WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC`
	if cond.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, cond.Limit)
	}

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanPapers(rows)
}

func (s *SQLiteDB) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM papers").Scan(&count)
	return count, err
}

func (s *SQLiteDB) DeletePapers(ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := s.db.Exec("DELETE FROM papers WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, err
	}
	count, err := result.RowsAffected()
	return int(count), err
}

func applyCondition(where []string, args []interface{}, cond models.SearchCondition) ([]string, []interface{}) {
	if len(cond.Sources) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cond.Sources)), ",")
		where = append(where, "source IN ("+placeholders+")")
		for _, src := range cond.Sources {
			args = append(args, src)
		}
	}
	if cond.DateFrom != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *cond.DateFrom)
	}
	if cond.DateTo != nil {
		where = append(where, "created_at <= ?")
		args = append(args, *cond.DateTo)
	}
	return where, args
}

func (s *SQLiteDB) scanPapers(rows *sql.Rows) ([]*models.Paper, error) {
	var papers []*models.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

func scanPaper(rows *sql.Rows, extra ...interface{}) (*models.Paper, error) {
	var p models.Paper
	var sourceID, url, authors, abstract, categories, venue, year, doi, pdfURL sql.NullString
	var published sql.NullTime

	dest := []interface{}{
		&p.ID, &p.Source, &sourceID, &url, &p.Title, &authors, &abstract, &categories,
		&venue, &year, &p.CitationCount, &p.InfluentialCount, &doi, &pdfURL, &p.DedupKey,
		&published, &p.CreatedAt,
	}
	if err := rows.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	p.SourceID = sourceID.String
	p.URL = url.String
	p.Abstract = abstract.String
	p.Venue = venue.String
	p.Year = year.String
	p.DOI = doi.String
	p.PDFURL = pdfURL.String
	p.Authors = splitList(authors.String)
	p.Categories = splitList(categories.String)
	if published.Valid {
		p.PublishedAt = published.Time
	}
	return &p, nil
}

// 列表字段存成 ",a1,a2," 便于 LIKE 精确匹配
func joinList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return "," + strings.Join(items, ",") + ","
}

func splitList(s string) []string {
	s = strings.Trim(s, ",")
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func encodeVec(vec []float32) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, vec)
	return buf.Bytes()
}

func decodeVec(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	_ = binary.Read(bytes.NewReader(blob), binary.LittleEndian, &vec)
	return vec
}
