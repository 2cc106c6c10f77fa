package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"stravation/internal/contextutil"
	"stravation/internal/plans"
)

// PlanService lists and edits planned sessions.
type PlanService interface {
	List(ctx context.Context, from, to time.Time) ([]plans.Session, error)
	Day(ctx context.Context, day time.Time) ([]plans.Session, error)
	Create(ctx context.Context, in plans.PlanInput) (string, error)
	Update(ctx context.Context, id string, in plans.PlanInput) error
}

// PlanHandler handles the planning endpoints.
type PlanHandler struct {
	plans PlanService
	loc   *time.Location
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(plans PlanService, loc *time.Location) *PlanHandler {
	if loc == nil {
		loc = time.Local
	}
	return &PlanHandler{plans: plans, loc: loc}
}

// PlanRequest is the body of create and update calls. Date accepts
// YYYY-MM-DD or RFC 3339.
type PlanRequest struct {
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	Sport       string   `json:"sport"`
	Types       []string `json:"types"`
	DistanceKm  *float64 `json:"distance_km"`
	DPlusM      *int     `json:"dplus_m"`
	DurationMin *int     `json:"duration_min"`
	Notes       string   `json:"notes"`
	Status      string   `json:"status"`
}

// PlanListResponse holds the sessions of a range.
type PlanListResponse struct {
	Sessions []plans.Session `json:"sessions"`
}

// PlanCreatedResponse returns the new page id.
type PlanCreatedResponse struct {
	ID string `json:"id"`
}

func (h *PlanHandler) decode(w http.ResponseWriter, r *http.Request) (plans.PlanInput, bool) {
	ctx := r.Context()
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return plans.PlanInput{}, false
	}
	var date time.Time
	if strings.TrimSpace(req.Date) != "" {
		d, err := parseDay(req.Date, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return plans.PlanInput{}, false
		}
		date = d
	}
	return plans.PlanInput{
		Title:       strings.TrimSpace(req.Title),
		Date:        date,
		Sport:       req.Sport,
		Types:       req.Types,
		DistanceKm:  req.DistanceKm,
		DPlusM:      req.DPlusM,
		DurationMin: req.DurationMin,
		Notes:       req.Notes,
		Status:      req.Status,
	}, true
}

// List handles GET /api/plans?from&to. to defaults to a week after from.
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	from, to, err := dayRange(r, h.loc, 7*24*time.Hour)
	if err != nil {
		handleServiceError(w, ctx, err, "Invalid range")
		return
	}
	sessions, err := h.plans.List(ctx, from, to)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []plans.Session{}
	}
	writeJSON(ctx, w, http.StatusOK, PlanListResponse{Sessions: sessions})
}

// Day handles GET /api/plans/day/{date}.
func (h *PlanHandler) Day(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	day, err := parseDay(chi.URLParam(r, "date"), h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessions, err := h.plans.Day(ctx, day)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []plans.Session{}
	}
	writeJSON(ctx, w, http.StatusOK, PlanListResponse{Sessions: sessions})
}

// Create handles POST /api/plans.
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	id, err := h.plans.Create(ctx, in)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to create session")
		return
	}
	writeJSON(ctx, w, http.StatusCreated, PlanCreatedResponse{ID: id})
}

// Update handles PUT /api/plans/{id}.
func (h *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	in, ok := h.decode(w, r)
	if !ok {
		return
	}
	if err := h.plans.Update(ctx, id, in); err != nil {
		handleServiceError(w, ctx, err, "Failed to update session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
