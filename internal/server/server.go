// Package server exposes the similarity service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"petmatch/internal/domain"
)

// Recommender is the query and refresh surface served over HTTP.
type Recommender interface {
	Similar(ctx context.Context, animalID int64, k int) ([]int64, error)
	Refresh(ctx context.Context) (*domain.UpdateResult, error)
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// RefreshResponse is the body of a successful refresh.
type RefreshResponse struct {
	Added   int `json:"added"`
	Indexed int `json:"indexed"`
}

// Server routes API and health requests.
type Server struct {
	recommender Recommender
	health      *Health
	logger      *slog.Logger
	mux         *http.ServeMux
}

// New builds the HTTP routes. health may be nil.
func New(recommender Recommender, health *Health, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		recommender: recommender,
		health:      health,
		logger:      logger,
		mux:         http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /api/animals/{id}/similar", s.handleSimilar)
	s.mux.HandleFunc("POST /api/index/refresh", s.handleRefresh)
	if health != nil {
		health.Register(s.mux)
	}
	return s
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// HTTPServer wraps the handler in an http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "Animal ID must be an integer")
		return
	}

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		k, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_k", "k must be an integer")
			return
		}
	}

	ids, err := s.recommender.Similar(r.Context(), id, k)
	switch {
	case errors.Is(err, domain.ErrAnimalNotFound):
		writeError(w, http.StatusNotFound, "animal_not_found", "Animal not found")
		return
	case errors.Is(err, domain.ErrIndexMissing):
		writeError(w, http.StatusNotFound, "index_missing", "Index not found for the given animal ID")
		return
	case err != nil:
		s.logger.Error("similar query failed", "animal_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusOK, domain.SimilarResult{AnimalID: id, SimilarIDs: ids})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := s.recommender.Refresh(r.Context())
	if err != nil {
		s.logger.Error("index refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Added: len(result.Added), Indexed: result.Indexed})
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{Code: code, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
