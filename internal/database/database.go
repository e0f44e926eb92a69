package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"veritas/internal/pipeline"
)

// MemoryDSN keeps the store in process memory for the lifetime of the Database
const MemoryDSN = ":memory:"

// Database handles SQLite result storage
type Database struct {
	db *sql.DB
}

// ResultSummary is a lightweight row for listings
type ResultSummary struct {
	ID             string         `json:"result_id"`
	OwnerID        string         `json:"owner_id"`
	Filename       string         `json:"filename"`
	Classification pipeline.Label `json:"classification"`
	Confidence     float64        `json:"confidence"`
	CreatedAt      time.Time      `json:"timestamp"`
}

// New opens the database at dsn. The connection pool is pinned to one
// connection so an in-memory database is shared by every caller.
func New(dsn string) (*Database, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)

	if !isMemory(dsn) {
		// Enable WAL mode for better concurrent access
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	return &Database{db: db}, nil
}

func isMemory(dsn string) bool {
	return dsn == MemoryDSN || strings.Contains(dsn, "mode=memory")
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping verifies the database is reachable
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate runs database migrations
func (d *Database) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS analysis_results (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			owner_id TEXT NOT NULL,
			filename TEXT,
			classification TEXT NOT NULL,
			confidence REAL NOT NULL,
			created_at INTEGER NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_owner_time ON analysis_results(owner_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_results_time ON analysis_results(created_at DESC)`,
	}

	for _, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveResult stores a result. ResultID, OwnerID and Timestamp must be set.
func (d *Database) SaveResult(ctx context.Context, result *pipeline.AnalysisResult) error {
	if result.ResultID == "" || result.OwnerID == "" || result.Timestamp == nil {
		return fmt.Errorf("result id, owner and timestamp are required")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `INSERT INTO analysis_results
		(id, owner_id, filename, classification, confidence, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = d.db.ExecContext(ctx, query, result.ResultID, result.OwnerID, result.Filename,
		string(result.Classification), result.Confidence, result.Timestamp.UnixNano(), string(payload))
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// GetResult retrieves a result by ID, or nil if none exists
func (d *Database) GetResult(ctx context.Context, id string) (*pipeline.AnalysisResult, error) {
	var payload string
	err := d.db.QueryRowContext(ctx, `SELECT payload FROM analysis_results WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return decodeResult(payload)
}

// ListResultsByOwner returns an owner's results, newest first
func (d *Database) ListResultsByOwner(ctx context.Context, ownerID string, limit int) ([]*pipeline.AnalysisResult, error) {
	return d.listResults(ctx, ownerID, limit)
}

// ListResults returns every stored result, newest first
func (d *Database) ListResults(ctx context.Context, limit int) ([]*pipeline.AnalysisResult, error) {
	return d.listResults(ctx, "", limit)
}

func (d *Database) listResults(ctx context.Context, ownerID string, limit int) ([]*pipeline.AnalysisResult, error) {
	query := `SELECT payload FROM analysis_results WHERE 1=1`
	args := []interface{}{}

	if ownerID != "" {
		query += " AND owner_id = ?"
		args = append(args, ownerID)
	}

	query += " ORDER BY created_at DESC, seq DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	results := make([]*pipeline.AnalysisResult, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		result, err := decodeResult(payload)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}
	return results, nil
}

// ListSummaries returns listing rows without decoding payloads, newest first
func (d *Database) ListSummaries(ctx context.Context, ownerID string, limit int) ([]*ResultSummary, error) {
	query := `SELECT id, owner_id, filename, classification, confidence, created_at
		FROM analysis_results WHERE 1=1`
	args := []interface{}{}

	if ownerID != "" {
		query += " AND owner_id = ?"
		args = append(args, ownerID)
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]*ResultSummary, 0)
	for rows.Next() {
		var s ResultSummary
		var label string
		var createdAt int64
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Filename, &label, &s.Confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		s.Classification = pipeline.Label(label)
		s.CreatedAt = time.Unix(0, createdAt).UTC()
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate summaries: %w", err)
	}
	return summaries, nil
}

// DeleteResult deletes a result by ID and reports whether it existed
func (d *Database) DeleteResult(ctx context.Context, id string) (bool, error) {
	res, err := d.db.ExecContext(ctx, "DELETE FROM analysis_results WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// CountResults returns the number of stored results
func (d *Database) CountResults(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analysis_results").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n, nil
}

func decodeResult(payload string) (*pipeline.AnalysisResult, error) {
	var result pipeline.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}
