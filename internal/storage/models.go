package storage

import "time"

// timeLayout is how every timestamp is written to the cache.
const timeLayout = time.RFC3339

// RouteState is the last synced fingerprint of a Strava route.
type RouteState struct {
	RouteID   int64
	UpdatedAt string // Strava updated_at as received
	Checksum  string // SHA-1 over the route's synced fields
	SyncedAt  time.Time
}

// CacheStats holds per-table row counts.
type CacheStats struct {
	Checkpoints    int64 `json:"checkpoints"`
	SeenActivities int64 `json:"seen_activities"`
	SeenRoutes     int64 `json:"seen_routes"`
}

// Checkpoint keys.
const (
	CheckpointLastSync = "last_sync_epoch"
)
