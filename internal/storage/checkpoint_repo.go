package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_checkpoint_store.go -package=mocks stravation/internal/storage CheckpointStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CheckpointStore defines the interface for checkpoint storage operations.
type CheckpointStore interface {
	// Get returns the value stored under key. The bool is false when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}

// CheckpointRepo provides methods for checkpoint operations.
// It implements the CheckpointStore interface.
type CheckpointRepo struct {
	db *sql.DB
}

// NewCheckpointRepo creates a new CheckpointRepo.
func NewCheckpointRepo(db *sql.DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

// Get returns the value stored under key.
func (r *CheckpointRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := r.db.QueryRowContext(ctx, "SELECT value FROM checkpoints WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query checkpoint: %w", err)
	}
	return value.String, true, nil
}

// Set upserts a checkpoint.
func (r *CheckpointRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO checkpoints (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}
	return nil
}
