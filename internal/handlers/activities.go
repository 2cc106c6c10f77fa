package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"stravation/internal/service"
	"stravation/internal/strava"
)

// ActivityService browses and edits Strava activities.
type ActivityService interface {
	Recent(ctx context.Context, days int) ([]strava.SummaryActivity, error)
	Update(ctx context.Context, id int64, upd strava.ActivityUpdate) (*strava.DetailedActivity, error)
}

// ActivityHandler handles the activity endpoints.
type ActivityHandler struct {
	activities ActivityService
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(activities ActivityService) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

// ActivityListResponse holds recent activities.
type ActivityListResponse struct {
	Activities []strava.SummaryActivity `json:"activities"`
}

// List handles GET /api/activities?days=N (default 7).
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days, err := queryInt(r, "days", 7)
	if err != nil {
		handleServiceError(w, ctx, err, "Invalid days")
		return
	}
	acts, err := h.activities.Recent(ctx, days)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list activities")
		return
	}
	if acts == nil {
		acts = []strava.SummaryActivity{}
	}
	writeJSON(ctx, w, http.StatusOK, ActivityListResponse{Activities: acts})
}

// Update handles PUT /api/activities/{id} with a strava.ActivityUpdate body.
func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil {
		handleServiceError(w, ctx, &service.ValidationError{Field: "id", Message: "must be numeric"}, "Invalid id")
		return
	}
	var upd strava.ActivityUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	act, err := h.activities.Update(ctx, id, upd)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to update activity")
		return
	}
	writeJSON(ctx, w, http.StatusOK, act)
}
