package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stravation/internal/contextutil"
	"stravation/internal/service"
	"stravation/internal/syncer"
)

// SyncHandler starts sync runs.
//
// By default a run is started in the background and the request returns 202
// Accepted; with wait=true it runs inline and the counts are returned.
// Background runs are cancelled when base is done.
type SyncHandler struct {
	base        context.Context
	syncService service.SyncService
	loc         *time.Location
}

// NewSyncHandler creates a new SyncHandler. loc is used to read the since date.
func NewSyncHandler(base context.Context, syncService service.SyncService, loc *time.Location) *SyncHandler {
	if base == nil {
		base = context.Background()
	}
	if loc == nil {
		loc = time.Local
	}
	return &SyncHandler{base: base, syncService: syncService, loc: loc}
}

// SyncResponse reports a started or finished run.
type SyncResponse struct {
	Kind    string         `json:"kind"`
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Result  *syncer.Result `json:"result,omitempty"`
}

// StatusResponse reports the active run.
type StatusResponse struct {
	Running string `json:"running"`
	Busy    bool   `json:"busy"`
}

func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &service.ValidationError{Field: key, Message: "must be an integer"}
	}
	return n, nil
}

// start runs fn inline when wait=true, otherwise in the background.
func (h *SyncHandler) start(w http.ResponseWriter, r *http.Request, kind string, fn func(context.Context) (syncer.Result, error)) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if queryBool(r, "wait") {
		res, err := fn(ctx)
		if err != nil {
			handleServiceError(w, ctx, err, "Sync failed")
			return
		}
		writeJSON(ctx, w, http.StatusOK, SyncResponse{Kind: kind, Status: "done", Result: &res})
		return
	}

	if active := h.syncService.Running(); active != "" {
		logger.WarnContext(ctx, "sync already running", "active", active, "requested", kind)
		writeError(w, http.StatusConflict, "A sync is already running: "+active)
		return
	}

	// The run outlives the request but keeps its logger.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(h.base, cancel)
	go func() {
		defer cancel()
		defer stop()
		if _, err := fn(runCtx); err != nil {
			logger.ErrorContext(runCtx, "background sync failed", "kind", kind, "error", err)
		}
	}()

	writeJSON(ctx, w, http.StatusAccepted, SyncResponse{
		Kind:    kind,
		Status:  "accepted",
		Message: "Sync started. Check server logs for progress.",
	})
}

// Activities handles POST /api/sync/activities.
func (h *SyncHandler) Activities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := syncer.ActivityOptions{
		Full:   queryBool(r, "full"),
		Force:  queryBool(r, "force"),
		Places: q.Get("places") == "" || queryBool(r, "places"),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.ParseInLocation(time.DateOnly, since, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since, want YYYY-MM-DD")
			return
		}
		opts.Since = t
	}
	h.start(w, r, service.KindActivities, func(ctx context.Context) (syncer.Result, error) {
		return h.syncService.SyncActivities(ctx, opts)
	})
}

// Routes handles POST /api/sync/routes.
func (h *SyncHandler) Routes(w http.ResponseWriter, r *http.Request) {
	opts := syncer.RouteOptions{Force: queryBool(r, "force")}
	h.start(w, r, service.KindRoutes, func(ctx context.Context) (syncer.Result, error) {
		return h.syncService.SyncRoutes(ctx, opts)
	})
}

// Plans handles POST /api/plans/push.
func (h *SyncHandler) Plans(w http.ResponseWriter, r *http.Request) {
	past, err := queryInt(r, "past_days", -1)
	if err != nil {
		handleServiceError(w, r.Context(), err, "Invalid window")
		return
	}
	next, err := queryInt(r, "next_days", 30)
	if err != nil {
		handleServiceError(w, r.Context(), err, "Invalid window")
		return
	}
	h.start(w, r, service.KindPlans, func(ctx context.Context) (syncer.Result, error) {
		return h.syncService.PushPlans(ctx, past, next)
	})
}

// Status handles GET /api/sync/status.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	active := h.syncService.Running()
	writeJSON(r.Context(), w, http.StatusOK, StatusResponse{Running: active, Busy: active != ""})
}
