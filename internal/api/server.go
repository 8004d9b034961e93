package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/tsvhub/internal/dataset"
	"github.com/MikeSquared-Agency/tsvhub/internal/hub"
	"github.com/MikeSquared-Agency/tsvhub/internal/metrics"
)

const maxConvertBody = 32 << 20

type Server struct {
	router  *chi.Mux
	port    int
	delim   rune
	metrics *metrics.Metrics
	srv     *http.Server
}

func NewServer(port int, delim rune, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		port:    port,
		delim:   delim,
		metrics: m,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/tsvhub/status", s.status)
	router.Post("/api/v1/tsvhub/convert", s.convert)
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("API server starting", "addr", addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"agent": "tsvhub",
		"repo":  hub.RepoID,
	})
}

// convert turns a delimited request body into JSONL conversation records.
func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxConvertBody)

	rows, err := dataset.Read(body, "request body", s.delim)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.metrics.RowsLoaded(len(rows))

	convs := dataset.TransformAll(rows)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if err := dataset.WriteJSONL(w, convs); err != nil {
		slog.Warn("convert response write failed", "error", err)
		return
	}
	s.metrics.RecordsEmitted("api", len(convs))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
