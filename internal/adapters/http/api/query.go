package api

import (
	"net/http"
)

// QueryHandler serves the catalog and the stateless trail query.
type QueryHandler struct {
	deps QueryDependencies
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(deps QueryDependencies) *QueryHandler {
	return &QueryHandler{deps: deps}
}

// HandleCatalog handles GET /api/catalog requests.
func (h *QueryHandler) HandleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Catalog())
}

// HandleQuery handles POST /api/trail requests. With ?format=geojson the
// trail is returned as a feature collection.
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	const op = "api.query"
	var req queryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	c, err := req.criteria()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Metric == "" {
		req.Metric = "Default"
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		v, err := h.deps.Query(r.Context(), c, req.Metric)
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	case "geojson":
		fc, err := h.deps.QueryGeoJSON(r.Context(), c, req.Metric)
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		writeGeoJSON(w, fc)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, nil))
	}
}
