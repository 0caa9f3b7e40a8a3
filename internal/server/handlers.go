package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kagami/internal/catalog"
	"github.com/hyperjump/kagami/internal/encoder"
	"github.com/hyperjump/kagami/internal/models"
	"github.com/hyperjump/kagami/internal/search"
)

// handleQuery decodes a models.VectorQuery body and runs it against the catalog in the URL.
func handleQuery[T any](s *Server, op string, run func(ctx context.Context, name string, q *models.VectorQuery) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var query models.VectorQuery
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&query); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		name := chi.URLParam(r, "name")
		s.logger.Debug(op+" request", zap.String("catalog", name), zap.Int("dimensions", len(query.Vector)), zap.Int("k", query.K))
		resp, err := run(r.Context(), name, &query)
		if err != nil {
			s.fail(w, op, err)
			return
		}
		s.respondJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	handleQuery(s, "neighbors", s.engine.SimilarImages).ServeHTTP(w, r)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	handleQuery(s, "categories", s.engine.Categories).ServeHTTP(w, r)
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	handleQuery(s, "text", s.engine.Text).ServeHTTP(w, r)
}

func (s *Server) itemIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "index must be an integer")
		return 0, false
	}
	return index, true
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	index, ok := s.itemIndex(w, r)
	if !ok {
		return
	}
	item, err := s.engine.Item(chi.URLParam(r, "name"), index)
	if err != nil {
		s.fail(w, "item", err)
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleItemImage(w http.ResponseWriter, r *http.Request) {
	index, ok := s.itemIndex(w, r)
	if !ok {
		return
	}
	item, err := s.engine.Item(chi.URLParam(r, "name"), index)
	if err != nil {
		s.fail(w, "item image", err)
		return
	}
	info, err := os.Stat(item.Path)
	if err != nil || info.IsDir() {
		s.respondError(w, http.StatusNotFound, "image not found: "+item.Path)
		return
	}
	http.ServeFile(w, r, item.Path)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.engine.Reload(r.Context(), name); err != nil {
		s.fail(w, "reload", err)
		return
	}
	col, err := s.engine.Collection(name)
	if err != nil {
		s.fail(w, "reload", err)
		return
	}
	c := col.Catalog()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"catalog":    name,
		"status":     "reloaded",
		"records":    c.Len(),
		"dimensions": c.Dimensions(),
	})
}

func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	resp, err := s.engine.SearchLabels(r.Context(), q, limit)
	if err != nil {
		s.fail(w, "labels", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Status()
	if err != nil {
		s.fail(w, "status", err)
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidQuery),
		errors.Is(err, catalog.ErrDimensionMismatch),
		errors.Is(err, catalog.ErrShapeMismatch):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrUnknownCatalog),
		errors.Is(err, catalog.ErrIndexOutOfRange),
		errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, encoder.ErrNoEncoder):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
