// Package server exposes the catalog over HTTP in STAC shapes.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rastac/rastac/internal/catalog"
	"github.com/rastac/rastac/internal/geom"
	"github.com/rastac/rastac/internal/query"
	"github.com/rastac/rastac/internal/stac"
)

// Catalog identity rendered on the landing page.
type Identity struct {
	ID          string
	Title       string
	Description string
	BaseURL     string
}

type Server struct {
	store  catalog.Store
	engine *query.Engine
	ident  Identity
	log    zerolog.Logger
}

func New(store catalog.Store, engine *query.Engine, ident Identity, log zerolog.Logger) *Server {
	return &Server{store: store, engine: engine, ident: ident, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors)
	r.Use(requestLogger(s.log))
	r.Use(recoverer(s.log))

	r.Get("/", s.handleLanding)
	r.Get("/collections/{collection_id}", s.handleCollection)
	r.Get("/collections/{collection_id}/items/{item_id}", s.handleItem)
	r.Post("/stac/search", s.handleSearch)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	colls, err := s.store.ListCollections(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stac.NewLandingPage(
		s.ident.ID, s.ident.Title, s.ident.Description, s.ident.BaseURL, colls))
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	collectionID := chi.URLParam(r, "collection_id")
	p, err := paramsFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	items, err := s.engine.Collection(r.Context(), collectionID, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if p.Filtered() {
		writeJSON(w, http.StatusOK, stac.NewFeatureCollection(items, s.ident.BaseURL))
		return
	}
	c, err := s.store.GetCollection(r.Context(), collectionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stac.NewCollection(c, items, s.ident.BaseURL))
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	it, err := s.store.GetItem(r.Context(),
		chi.URLParam(r, "collection_id"), chi.URLParam(r, "item_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stac.NewFeature(it, s.ident.BaseURL))
}

type searchRequest struct {
	BBox       []float64 `json:"bbox"`
	Intersects string    `json:"intersects"`
	Contains   string    `json:"contains"`
	SortBy     string    `json:"sortby"`
	Limit      *int      `json:"limit"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorDoc{
			Code: "bad_request", Description: "malformed search body: " + err.Error(),
		})
		return
	}

	given := 0
	for _, set := range []bool{len(req.BBox) > 0, req.Intersects != "", req.Contains != ""} {
		if set {
			given++
		}
	}
	if given > 1 {
		s.writeError(w, r, query.ErrConflictingPredicates)
		return
	}

	p := query.Params{Intersects: req.Intersects, Contains: req.Contains, SortBy: req.SortBy}
	if req.Limit != nil {
		p.Limit, p.LimitSet = *req.Limit, true
	}
	if len(req.BBox) > 0 {
		if len(req.BBox) != 4 {
			writeJSON(w, http.StatusBadRequest, errorDoc{
				Code: "bad_request", Description: "bbox must have four numbers",
			})
			return
		}
		p.Intersects = bboxWKT(req.BBox)
	}

	items, err := s.engine.Search(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stac.NewFeatureCollection(items, s.ident.BaseURL))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func paramsFromQuery(r *http.Request) (query.Params, error) {
	q := r.URL.Query()
	p := query.Params{
		Intersects: q.Get("intersects"),
		Contains:   q.Get("contains"),
		SortBy:     q.Get("sortby"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return query.Params{}, fmt.Errorf("%w: %q", query.ErrInvalidLimit, raw)
		}
		p.Limit, p.LimitSet = n, true
	}
	return p, nil
}

func bboxWKT(b []float64) string {
	return fmt.Sprintf("POLYGON((%g %g,%g %g,%g %g,%g %g,%g %g))",
		b[0], b[1], b[2], b[1], b[2], b[3], b[0], b[3], b[0], b[1])
}

type errorDoc struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, query.ErrFilterRequired),
		errors.Is(err, query.ErrInvalidLimit),
		errors.Is(err, query.ErrUnsupportedSortKey),
		errors.Is(err, query.ErrConflictingPredicates),
		errors.Is(err, geom.ErrInvalidWKT),
		errors.Is(err, geom.ErrGeometryType):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, catalog.ErrStoreUnavailable):
		status, code = http.StatusServiceUnavailable, "store_unavailable"
	default:
		status, code = http.StatusInternalServerError, "internal"
	}
	if status >= 500 {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorDoc{Code: code, Description: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
