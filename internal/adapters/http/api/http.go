// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/paulmach/orb/geojson"

	service "github.com/okian/vesseltrail/internal/app"
	"github.com/okian/vesseltrail/internal/domain/catalog"
	"github.com/okian/vesseltrail/internal/domain/colors"
	"github.com/okian/vesseltrail/internal/domain/filter"
	"github.com/okian/vesseltrail/internal/domain/model"
	"github.com/okian/vesseltrail/internal/domain/types"
)

// View mirrors the read shape returned by queries and sessions.
type View = types.View

// QueryDependencies serves the stateless trail query and the filter choices.
type QueryDependencies interface {
	Catalog() *catalog.Catalog
	Query(ctx context.Context, c model.FilterCriteria, metric string) (View, error)
	QueryGeoJSON(ctx context.Context, c model.FilterCriteria, metric string) (*geojson.FeatureCollection, error)
}

// SessionDependencies serves dashboard sessions.
type SessionDependencies interface {
	CreateSession(ctx context.Context) (View, error)
	Session(ctx context.Context, id string) (View, error)
	SubmitFilters(ctx context.Context, id string, c model.FilterCriteria) (uint64, error)
	SetMetric(ctx context.Context, id, metric string) (View, error)
	SetTheme(ctx context.Context, id string, theme model.Theme) (View, error)
	SessionGeoJSON(ctx context.Context, id string) (*geojson.FeatureCollection, error)
	DeleteSession(ctx context.Context, id string) error
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	QueryDependencies
	SessionDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	queryHandler   *QueryHandler
	sessionHandler *SessionHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		queryHandler:   NewQueryHandler(deps),
		sessionHandler: NewSessionHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /api/catalog", MetricsMiddleware(s.queryHandler.HandleCatalog, "catalog"))
	mux.HandleFunc("POST /api/trail", MetricsMiddleware(s.queryHandler.HandleQuery, "trail"))

	mux.HandleFunc("POST /api/sessions", MetricsMiddleware(s.sessionHandler.HandleCreate, "sessions"))
	mux.HandleFunc("GET /api/sessions/{id}", MetricsMiddleware(s.sessionHandler.HandleGet, "session"))
	mux.HandleFunc("DELETE /api/sessions/{id}", MetricsMiddleware(s.sessionHandler.HandleDelete, "session"))
	mux.HandleFunc("POST /api/sessions/{id}/filters", MetricsMiddleware(s.sessionHandler.HandleFilters, "session_filters"))
	mux.HandleFunc("PUT /api/sessions/{id}/metric", MetricsMiddleware(s.sessionHandler.HandleMetric, "session_metric"))
	mux.HandleFunc("PUT /api/sessions/{id}/theme", MetricsMiddleware(s.sessionHandler.HandleTheme, "session_theme"))
	mux.HandleFunc("GET /api/sessions/{id}/trail.geojson", MetricsMiddleware(s.sessionHandler.HandleGeoJSON, "session_geojson"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeGeoJSON(w http.ResponseWriter, fc *geojson.FeatureCollection) {
	b, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service and domain errors to API responses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var fe *filter.FieldError
	switch {
	case errors.As(err, &fe):
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "invalid_criteria", Message: fe.Message, Field: fe.Field})
	case errors.Is(err, colors.ErrUnknownMetric), errors.Is(err, service.ErrInvalidTheme), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrBusy):
		writeError(w, http.StatusTooManyRequests, "backpressure", wrapKind(op, ErrBackpressure, nil))
	case errors.Is(err, service.ErrFetchFailed):
		writeError(w, http.StatusBadGateway, "upstream_error", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
