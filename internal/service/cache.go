package service

import (
	"context"
	"database/sql"

	"stravation/internal/contextutil"
	"stravation/internal/storage"
)

// CacheService inspects and clears the local cache.
type CacheService struct {
	db   *sql.DB
	sync SyncService
}

// NewCacheService creates a CacheService. When sync is set, Reset refuses to
// run while a sync is active.
func NewCacheService(db *sql.DB, sync SyncService) *CacheService {
	return &CacheService{db: db, sync: sync}
}

// Stats returns the row counts of the cache tables.
func (s *CacheService) Stats(ctx context.Context) (storage.CacheStats, error) {
	st, err := storage.Stats(ctx, s.db)
	if err != nil {
		return storage.CacheStats{}, WrapError(err, "failed to read cache stats")
	}
	return st, nil
}

// Reset clears every cache table and returns what was removed.
func (s *CacheService) Reset(ctx context.Context) (storage.CacheStats, error) {
	if s.sync != nil {
		if kind := s.sync.Running(); kind != "" {
			return storage.CacheStats{}, WrapError(ErrSyncInProgress, kind)
		}
	}
	removed, err := storage.ResetAll(ctx, s.db)
	if err != nil {
		return storage.CacheStats{}, WrapError(err, "failed to reset cache")
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "cache reset",
		"checkpoints", removed.Checkpoints,
		"seen_activities", removed.SeenActivities,
		"seen_routes", removed.SeenRoutes)
	return removed, nil
}
