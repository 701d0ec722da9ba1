// Package api exposes the external read surface (spec §8): health/readiness
// probes, Prometheus metrics, a filtered incident listing, a full-text
// search, and a server-sent-events stream of incident and source.health
// events as they're published on the bus.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/sigwatch/internal/eventbus"
	"github.com/couchcryptid/sigwatch/internal/store"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Store is the subset of *store.Store the API reads from.
type Store interface {
	ListIncidents(ctx context.Context, category, status string, limit int) ([]store.IncidentSummary, error)
	SearchItems(ctx context.Context, query string, limit int) ([]store.IncidentSummary, error)
}

// Server exposes the HTTP read API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// Deps bundles the Server's dependencies.
type Deps struct {
	Store       Store
	Bus         Bus
	Ready       ReadinessChecker
	Logger      *slog.Logger
	CORSOrigins []string
}

// Bus is the event-bus dependency the stream endpoint subscribes to.
type Bus interface {
	Subscribe(name string) *eventbus.Subscription
	Unsubscribe(sub *eventbus.Subscription)
}

// NewServer builds an HTTP server with chi routing: /healthz, /readyz,
// /metrics, /api/incidents, /api/incidents/search, and
// /api/incidents/stream (spec §8).
func NewServer(addr string, deps Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := &handlers{store: deps.Store, bus: deps.Bus, ready: deps.Ready, logger: deps.Logger}

	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/incidents", func(r chi.Router) {
		r.Get("/", h.handleListIncidents)
		r.Get("/search", h.handleSearchIncidents)
		r.Get("/stream", h.handleStream)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // the SSE stream is long-lived
			IdleTimeout:  60 * time.Second,
		},
		logger: deps.Logger,
	}
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("api server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type handlers struct {
	store  Store
	bus    Bus
	ready  ReadinessChecker
	logger *slog.Logger
}

func (h *handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *handlers) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.ready.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handlers) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	incidents, err := h.store.ListIncidents(r.Context(), r.URL.Query().Get("category"), r.URL.Query().Get("status"), limit)
	if err != nil {
		h.logger.Error("api: list incidents failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incidents": incidents})
}

func (h *handlers) handleSearchIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	incidents, err := h.store.SearchItems(r.Context(), q, limit)
	if err != nil {
		h.logger.Error("api: search incidents failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incidents": incidents})
}

// handleStream opens a server-sent-events connection, one bus subscription
// per client, torn down when the request context ends (spec §8: "a
// long-lived connection streaming incident.created/updated and source.health
// events as they're published").
func (h *handlers) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.bus.Subscribe("api-stream")
	defer h.bus.Unsubscribe(sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-sub.Events():
			if !open {
				return
			}
			payload, err := json.Marshal(evt.Data)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("event: " + string(evt.Type) + "\ndata: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
