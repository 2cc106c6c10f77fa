package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens the SQLite cache at the given path.
// It creates the parent directory, switches the journal to WAL and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	// A single writer keeps WAL mode free of SQLITE_BUSY under the sync loops.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the cache tables.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS seen_activities (
			strava_id INTEGER PRIMARY KEY,
			seen_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS seen_routes (
			route_id INTEGER PRIMARY KEY,
			updated_at TEXT,
			checksum TEXT,
			synced_at TEXT NOT NULL
		);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// Stats returns the row count of every cache table.
func Stats(ctx context.Context, db *sql.DB) (CacheStats, error) {
	var s CacheStats
	counts := []struct {
		table string
		dst   *int64
	}{
		{"checkpoints", &s.Checkpoints},
		{"seen_activities", &s.SeenActivities},
		{"seen_routes", &s.SeenRoutes},
	}
	for _, c := range counts {
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return CacheStats{}, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}
	return s, nil
}

// ResetAll empties every cache table in one transaction and returns how many rows were removed.
func ResetAll(ctx context.Context, db *sql.DB) (CacheStats, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return CacheStats{}, fmt.Errorf("failed to begin reset: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var s CacheStats
	deletes := []struct {
		table string
		dst   *int64
	}{
		{"checkpoints", &s.Checkpoints},
		{"seen_activities", &s.SeenActivities},
		{"seen_routes", &s.SeenRoutes},
	}
	for _, d := range deletes {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+d.table)
		if err != nil {
			return CacheStats{}, fmt.Errorf("failed to clear %s: %w", d.table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return CacheStats{}, err
		}
		*d.dst = n
	}

	if err := tx.Commit(); err != nil {
		return CacheStats{}, fmt.Errorf("failed to commit reset: %w", err)
	}
	return s, nil
}
