package handlers

import (
	"context"
	"net/http"

	"stravation/internal/storage"
)

// CacheService reads and clears the local cache.
type CacheService interface {
	Stats(ctx context.Context) (storage.CacheStats, error)
	Reset(ctx context.Context) (storage.CacheStats, error)
}

// CacheHandler handles the cache endpoints.
type CacheHandler struct {
	cache CacheService
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(cache CacheService) *CacheHandler {
	return &CacheHandler{cache: cache}
}

// ResetResponse lists the removed rows.
type ResetResponse struct {
	Removed storage.CacheStats `json:"removed"`
}

// Stats handles GET /api/cache/stats.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := h.cache.Stats(ctx)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to read cache stats")
		return
	}
	writeJSON(ctx, w, http.StatusOK, st)
}

// Reset handles POST /api/cache/reset.
func (h *CacheHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	removed, err := h.cache.Reset(ctx)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to reset cache")
		return
	}
	writeJSON(ctx, w, http.StatusOK, ResetResponse{Removed: removed})
}
