package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

const articleColumns = `id, org_id, user_id, slug, version, source_type, status,
	headline, blobs, content, rich_content, request_json, created_at, updated_at`

// CreateArticle inserts a new article version for (orgID, slug), allocating
// the next version number atomically. The INSERT..SELECT runs as a single
// statement, so two concurrent creates for the same lineage cannot collide.
func (db *DB) CreateArticle(orgID, userID, slug, sourceType, requestJSON string) (*Article, error) {
	slug = NormalizeSlug(slug)
	if slug == "" {
		return nil, fmt.Errorf("empty slug after normalization")
	}

	result, err := db.conn.Exec(
		`INSERT INTO articles (org_id, user_id, slug, version, source_type, status, request_json)
		SELECT ?, ?, ?, COALESCE(MAX(version), 0) + 1, ?, ?, ?
		FROM articles WHERE org_id = ? AND slug = ?`,
		orgID, userID, slug, sourceType, StatusPending, requestJSON, orgID, slug,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting article: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.GetArticle(id)
}

// GetArticle returns an article by ID, or nil if it does not exist.
func (db *DB) GetArticle(id int64) (*Article, error) {
	row := db.conn.QueryRow(
		`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id,
	)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetLatestArticle returns the highest version for (orgID, slug), or nil.
func (db *DB) GetLatestArticle(orgID, slug string) (*Article, error) {
	row := db.conn.QueryRow(
		`SELECT `+articleColumns+` FROM articles
		WHERE org_id = ? AND slug = ? ORDER BY version DESC LIMIT 1`,
		orgID, NormalizeSlug(slug),
	)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListArticles returns the most recent articles, newest first.
func (db *DB) ListArticles(limit int) ([]Article, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(
		`SELECT `+articleColumns+` FROM articles ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticleRows(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

// UpdateArticleStatus writes a progress or terminal status for an article.
func (db *DB) UpdateArticleStatus(articleID int64, userID, status string) error {
	_, err := db.conn.Exec(
		`UPDATE articles SET status = ?, updated_at = datetime('now')
		WHERE id = ? AND user_id = ?`,
		status, articleID, userID,
	)
	return err
}

// UpdateArticleResults performs the terminal write for a pipeline run. On
// success it stores the generated content and marks the article completed;
// on failure it marks the article failed and leaves content untouched.
func (db *DB) UpdateArticleResults(articleID int64, userID string, success bool, headline string, blobs []string, content, richContent string) error {
	if !success {
		return db.UpdateArticleStatus(articleID, userID, StatusFailed)
	}

	blobsJSON, err := json.Marshal(blobs)
	if err != nil {
		return fmt.Errorf("marshaling blobs: %w", err)
	}

	var rich *string
	if richContent != "" {
		rich = &richContent
	}

	_, err = db.conn.Exec(
		`UPDATE articles SET status = ?, headline = ?, blobs = ?, content = ?,
		rich_content = ?, updated_at = datetime('now')
		WHERE id = ? AND user_id = ?`,
		StatusCompleted, headline, string(blobsJSON), content, rich, articleID, userID,
	)
	return err
}

// GetStats returns summary counts for the status command.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	err := db.conn.QueryRow(`SELECT
		COUNT(*),
		COUNT(CASE WHEN status = ? THEN 1 END),
		COUNT(CASE WHEN status = ? THEN 1 END)
		FROM articles`, StatusCompleted, StatusFailed,
	).Scan(&s.TotalArticles, &s.CompletedArticles, &s.FailedArticles)
	if err != nil {
		return nil, err
	}
	s.InProgress = s.TotalArticles - s.CompletedArticles - s.FailedArticles

	err = db.conn.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(cost_usd), 0) FROM runs`,
	).Scan(&s.TotalRuns, &s.TotalCostUSD)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row *sql.Row) (*Article, error) {
	return scanArticleFrom(row)
}

func scanArticleRows(rows *sql.Rows) (*Article, error) {
	return scanArticleFrom(rows)
}

func scanArticleFrom(r rowScanner) (*Article, error) {
	var a Article
	var blobs *string
	if err := r.Scan(&a.ID, &a.OrgID, &a.UserID, &a.Slug, &a.Version, &a.SourceType,
		&a.Status, &a.Headline, &blobs, &a.Content, &a.RichContent,
		&a.RequestJSON, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if blobs != nil && *blobs != "" {
		if err := json.Unmarshal([]byte(*blobs), &a.Blobs); err != nil {
			return nil, fmt.Errorf("unmarshaling blobs for article %d: %w", a.ID, err)
		}
	}
	return &a, nil
}
