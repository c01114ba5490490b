package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/digitrace/internal/models"
)

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates the catalog database at dbPath and
// initializes the schema. Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingest_runs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL UNIQUE,
		cache_key TEXT NOT NULL,
		input_paths TEXT NOT NULL,
		files INTEGER NOT NULL,
		entries INTEGER NOT NULL,
		tokens INTEGER NOT NULL,
		failures INTEGER NOT NULL,
		cache_hit INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_cache_key ON ingest_runs(cache_key);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON ingest_runs(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordRun inserts a run. A zero CreatedAt is set to now.
func (c *SQLiteCatalog) RecordRun(ctx context.Context, run models.Run) error {
	inputs := run.Inputs
	if inputs == nil {
		inputs = []string{}
	}
	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return fmt.Errorf("failed to marshal input paths: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (request_id, cache_key, input_paths, files, entries, tokens, failures, cache_hit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RequestID, run.Key, string(inputsJSON), run.Files, run.Entries, run.Tokens, run.Failures, run.CacheHit, run.CreatedAt.UTC(),
	)
	return err
}

const selectRuns = `SELECT request_id, cache_key, input_paths, files, entries, tokens, failures, cache_hit, created_at
	FROM ingest_runs ORDER BY seq DESC`

// ListRuns returns runs newest first.
func (c *SQLiteCatalog) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.QueryContext(ctx, selectRuns+` LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently recorded run.
func (c *SQLiteCatalog) LatestRun(ctx context.Context) (models.Run, error) {
	run, err := scanRun(c.db.QueryRowContext(ctx, selectRuns+` LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Run{}, fmt.Errorf("%w: no ingestion runs recorded", ErrNotFound)
	}
	return run, err
}

// CountRuns returns the number of recorded runs.
func (c *SQLiteCatalog) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingest_runs`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (models.Run, error) {
	var run models.Run
	var inputsJSON string
	if err := row.Scan(&run.RequestID, &run.Key, &inputsJSON, &run.Files, &run.Entries,
		&run.Tokens, &run.Failures, &run.CacheHit, &run.CreatedAt); err != nil {
		return models.Run{}, err
	}
	if inputsJSON != "" {
		if err := json.Unmarshal([]byte(inputsJSON), &run.Inputs); err != nil {
			return models.Run{}, fmt.Errorf("failed to unmarshal input paths: %w", err)
		}
	}
	return run, nil
}
