// Package site serves the embedded dashboard front end.
package site

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed static/*
var assets embed.FS

// Assets returns the dashboard files with the static/ prefix stripped.
func Assets() http.FileSystem {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// Register attaches the dashboard routes to mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("GET /", NewRootHandler())
}

// RootHandler serves the dashboard assets. Unknown paths without an
// extension fall back to index.html so client-side links survive a reload.
type RootHandler struct {
	fs    http.FileSystem
	files http.Handler
}

// NewRootHandler serves Assets.
func NewRootHandler() *RootHandler {
	fsys := Assets()
	return &RootHandler{fs: fsys, files: http.FileServer(fsys)}
}

// ServeHTTP implements http.Handler.
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.HandleRoot(w, r)
}

// HandleRoot handles GET / requests.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	if name != "/" && path.Ext(name) == "" && !strings.HasPrefix(name, "/api/") {
		if f, err := h.fs.Open(name); err != nil {
			r = r.Clone(r.Context())
			r.URL.Path = "/"
		} else {
			_ = f.Close()
		}
	}
	h.files.ServeHTTP(w, r)
}
