package database

import "database/sql"

// CreateRun inserts a run record for an article before pipeline execution.
func (db *DB) CreateRun(articleID int64, orgID, userID string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO runs (article_id, org_id, user_id) VALUES (?, ?, ?)`,
		articleID, orgID, userID,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UpdateRunTotals writes the final cost and token totals for a run. Called
// exactly once, after the pipeline finishes (zeros when it failed early).
func (db *DB) UpdateRunTotals(runID int64, costUSD float64, inputTokens, outputTokens int64) error {
	_, err := db.conn.Exec(
		`UPDATE runs SET cost_usd = ?, input_tokens = ?, output_tokens = ?,
		updated_at = datetime('now') WHERE id = ?`,
		costUSD, inputTokens, outputTokens, runID,
	)
	return err
}

// GetRun returns a run by ID, or nil if it does not exist.
func (db *DB) GetRun(id int64) (*Run, error) {
	row := db.conn.QueryRow(
		`SELECT id, article_id, org_id, user_id, cost_usd, input_tokens, output_tokens,
		created_at, updated_at FROM runs WHERE id = ?`, id,
	)
	var r Run
	if err := row.Scan(&r.ID, &r.ArticleID, &r.OrgID, &r.UserID, &r.CostUSD,
		&r.InputTokens, &r.OutputTokens, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// GetRunsForArticle returns all runs for an article, newest first.
func (db *DB) GetRunsForArticle(articleID int64) ([]Run, error) {
	rows, err := db.conn.Query(
		`SELECT id, article_id, org_id, user_id, cost_usd, input_tokens, output_tokens,
		created_at, updated_at FROM runs WHERE article_id = ? ORDER BY id DESC`, articleID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.ArticleID, &r.OrgID, &r.UserID, &r.CostUSD,
			&r.InputTokens, &r.OutputTokens, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
