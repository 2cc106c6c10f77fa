package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_seen_store.go -package=mocks stravation/internal/storage SeenStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SeenStore tracks Strava activities already written to Notion.
type SeenStore interface {
	IsSeen(ctx context.Context, stravaID int64) (bool, error)
	// MarkSeen records the activity. Marking twice is a no-op.
	MarkSeen(ctx context.Context, stravaID int64) error
	// Clear forgets every activity and returns how many were removed.
	Clear(ctx context.Context) (int64, error)
}

// SeenRepo implements SeenStore on the seen_activities table.
type SeenRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewSeenRepo creates a new SeenRepo.
func NewSeenRepo(db *sql.DB) *SeenRepo {
	return &SeenRepo{db: db, now: time.Now}
}

// IsSeen reports whether stravaID has a seen marker.
func (r *SeenRepo) IsSeen(ctx context.Context, stravaID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM seen_activities WHERE strava_id = ?", stravaID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query seen activity: %w", err)
	}
	return true, nil
}

// MarkSeen inserts a seen marker, keeping the first timestamp when one already exists.
func (r *SeenRepo) MarkSeen(ctx context.Context, stravaID int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO seen_activities (strava_id, seen_at) VALUES (?, ?)",
		stravaID, r.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to mark activity seen: %w", err)
	}
	return nil
}

// Clear deletes all seen markers.
func (r *SeenRepo) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM seen_activities")
	if err != nil {
		return 0, fmt.Errorf("failed to clear seen activities: %w", err)
	}
	return res.RowsAffected()
}
