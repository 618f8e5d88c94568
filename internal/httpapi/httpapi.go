// Package httpapi exposes the "thin HTTP/stdio surface" spec.md §1 names as
// an out-of-scope collaborator: search(tool, query) and index(tool, url)
// over a small chi router. None of spec.md §8's testable properties are
// tested through this layer — they are tested directly against
// internal/searchengine — this package only makes the core reachable,
// adapted from anath2-language-app/server/internal/http/server.go's
// chi+cors router construction.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/arcturian/docsearch/internal/config"
	"github.com/arcturian/docsearch/internal/domainindex"
	"github.com/arcturian/docsearch/internal/searchengine"
)

// Server wires the thin HTTP surface over a SearchEngine and DomainIndex.
type Server struct {
	Engine *searchengine.Engine
	Index  *domainindex.Index
	Config config.Config
}

// NewRouter builds the chi.Router exposing POST /tools/{tool}/search and
// POST /tools/{tool}/index, CORS-enabled for browser-based admin UIs.
func (s *Server) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Post("/tools/{tool}/search", s.handleSearch)
	r.Post("/tools/{tool}/index", s.handleIndex)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type searchRequest struct {
	Query string `json:"query"`
}

// handleSearch issues a correlation ID (google/uuid), logs it alongside the
// SearchEngine.Search call, and returns the search result verbatim.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "tool")
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	correlationID := uuid.New().String()
	log.Info().Str("correlation_id", correlationID).Str("tool", toolID).Str("query", req.Query).Msg("search request")

	result := s.Engine.Search(r.Context(), toolID, req.Query)

	status := http.StatusOK
	if result.Error != "" {
		if strings.Contains(result.Error, "not found") {
			status = http.StatusNotFound
		} else {
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, result)
}

type indexRequest struct {
	URL string `json:"url"`
}

// handleIndex triggers an eager DomainIndex.EnsureIndexed for the given
// URL's domain and reports its stats, letting an admin UI warm the index
// ahead of the first query.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "tool")
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if _, ok := s.Config.Tools[toolID]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "tool not found"})
		return
	}

	domain := searchengine.HostOf(req.URL)
	correlationID := uuid.New().String()
	rec, err := s.Index.EnsureIndexed(r.Context(), domain, req.URL)
	if err != nil {
		log.Warn().Err(err).Str("correlation_id", correlationID).Str("domain", domain).Msg("index build failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"correlation_id": correlationID,
		"domain":         domain,
		"source_type":    rec.SourceType,
		"url_count":      rec.URLCount,
		"indexed_at":     rec.IndexedAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
