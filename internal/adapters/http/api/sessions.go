package api

import (
	"net/http"
	"strings"

	"github.com/okian/vesseltrail/internal/domain/model"
	"github.com/okian/vesseltrail/internal/domain/types"
)

// SessionHandler serves stateful dashboard sessions.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

// HandleCreate handles POST /api/sessions requests.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.CreateSession(r.Context())
	if err != nil {
		writeServiceError(w, "api.create_session", err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+v.SessionID)
	writeJSON(w, http.StatusCreated, v)
}

// HandleGet handles GET /api/sessions/{id} requests.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "api.get_session", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleDelete handles DELETE /api/sessions/{id} requests.
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, "api.delete_session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleFilters handles POST /api/sessions/{id}/filters requests. The fetch
// runs asynchronously; the response carries the generation to poll for.
func (h *SessionHandler) HandleFilters(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_filters"
	id := r.PathValue("id")
	var req criteriaRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	c, err := req.criteria()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	gen, err := h.deps.SubmitFilters(r.Context(), id, c)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, types.Accepted{SessionID: id, Generation: gen, Status: string(model.StatusLoading)})
}

// HandleMetric handles PUT /api/sessions/{id}/metric requests.
func (h *SessionHandler) HandleMetric(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_metric"
	var req metricRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Metric) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, errMissingMetric))
		return
	}
	v, err := h.deps.SetMetric(r.Context(), r.PathValue("id"), req.Metric)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleTheme handles PUT /api/sessions/{id}/theme requests.
func (h *SessionHandler) HandleTheme(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_theme"
	var req themeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	v, err := h.deps.SetTheme(r.Context(), r.PathValue("id"), model.Theme(req.Theme))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleGeoJSON handles GET /api/sessions/{id}/trail.geojson requests.
func (h *SessionHandler) HandleGeoJSON(w http.ResponseWriter, r *http.Request) {
	fc, err := h.deps.SessionGeoJSON(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "api.session_geojson", err)
		return
	}
	writeGeoJSON(w, fc)
}
