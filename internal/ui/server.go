// Package ui serves the embedded control panel page.
package ui

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

//go:embed static/*
var staticFiles embed.FS

// Handler serves the control panel at "/" and its assets under "/static/".
type Handler struct {
	apiBaseURL string
	router     *chi.Mux
}

// NewHandler creates the page handler. apiBaseURL is where the page sends
// API requests; empty means the page's own origin.
func NewHandler(apiBaseURL string) *Handler {
	h := &Handler{
		apiBaseURL: strings.TrimSuffix(apiBaseURL, "/"),
		router:     chi.NewRouter(),
	}

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("failed to create static filesystem: %v", err))
	}

	h.router.Get("/", h.indexHandler)
	h.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	return h
}

func (h *Handler) indexHandler(w http.ResponseWriter, r *http.Request) {
	indexFile, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read index.html: %v", err), http.StatusInternalServerError)
		return
	}

	indexContent := strings.ReplaceAll(string(indexFile), "{{API_BASE_URL}}", h.apiBaseURL)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(indexContent)) //nolint:errcheck
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}
