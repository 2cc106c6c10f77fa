package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_route_state_store.go -package=mocks stravation/internal/storage RouteStateStore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// RouteStateStore defines the interface for route fingerprint storage.
type RouteStateStore interface {
	// All returns every known route keyed by route id.
	All(ctx context.Context) (map[int64]RouteState, error)
	// MarkSynced upserts the fingerprint of a route that was written successfully.
	MarkSynced(ctx context.Context, routeID int64, updatedAt, checksum string) error
	// Forget removes the given routes so the next run re-processes them.
	Forget(ctx context.Context, routeIDs ...int64) (int64, error)
}

// RouteStateRepo implements RouteStateStore on the seen_routes table.
type RouteStateRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewRouteStateRepo creates a new RouteStateRepo.
func NewRouteStateRepo(db *sql.DB) *RouteStateRepo {
	return &RouteStateRepo{db: db, now: time.Now}
}

// All loads the whole seen_routes table.
func (r *RouteStateRepo) All(ctx context.Context) (map[int64]RouteState, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT route_id, updated_at, checksum, synced_at FROM seen_routes")
	if err != nil {
		return nil, fmt.Errorf("failed to query seen routes: %w", err)
	}
	defer rows.Close()

	states := make(map[int64]RouteState)
	for rows.Next() {
		var (
			st        RouteState
			updatedAt sql.NullString
			checksum  sql.NullString
			syncedAt  string
		)
		if err := rows.Scan(&st.RouteID, &updatedAt, &checksum, &syncedAt); err != nil {
			return nil, err
		}
		st.UpdatedAt = updatedAt.String
		st.Checksum = checksum.String
		// Unparseable timestamps are left zero; they only matter for display.
		st.SyncedAt, _ = time.Parse(timeLayout, syncedAt)
		states[st.RouteID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return states, nil
}

// MarkSynced upserts a route fingerprint with synced_at set to now.
func (r *RouteStateRepo) MarkSynced(ctx context.Context, routeID int64, updatedAt, checksum string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO seen_routes (route_id, updated_at, checksum, synced_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(route_id) DO UPDATE SET
			updated_at = excluded.updated_at,
			checksum = excluded.checksum,
			synced_at = excluded.synced_at`,
		routeID, updatedAt, checksum, r.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to mark route synced: %w", err)
	}
	return nil
}

// Forget deletes the given route ids. Calling it with no ids is a no-op.
func (r *RouteStateRepo) Forget(ctx context.Context, routeIDs ...int64) (int64, error) {
	if len(routeIDs) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(routeIDs)), ",")
	args := make([]any, len(routeIDs))
	for i, id := range routeIDs {
		args[i] = id
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM seen_routes WHERE route_id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to forget routes: %w", err)
	}
	return res.RowsAffected()
}
