// Package api implements the per-node read-only HTTP API described in
// spec.md §4.6: a small, token-gated surface the web UI and the
// federating proxy poll for client state.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sashakarcz/irondhcp/internal/logger"
	"github.com/sashakarcz/irondhcp/internal/store"
)

// Config holds the node API's listen and auth settings.
type Config struct {
	Host       string
	Port       int
	Token      string
	CacheTTL   time.Duration
	HistoryMax int
}

// Server is the node's read API: lease lookups, aggregate listing, and a
// health probe, backed directly by *store.Store.
type Server struct {
	store      *store.Store
	cache      *respCache
	token      string
	httpServer *http.Server
	addr       string
}

// New wires routes onto a gorilla/mux router and builds the HTTP server.
func New(cfg Config, st *store.Store) *Server {
	s := &Server{
		store: st,
		cache: newRespCache(cfg.CacheTTL),
		token: cfg.Token,
		addr:  fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/client/{ip}", tokenMiddleware(cfg.Token, s.handleClient)).Methods(http.MethodGet)
	router.HandleFunc("/api/clients", tokenMiddleware(cfg.Token, s.handleClients)).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.Use(requestIDMiddleware)

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	logger.Info().Str("addr", s.addr).Msg("starting node API server")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("node API server error")
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	logger.Info().Msg("stopping node API server")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown node API server: %w", err)
	}

	logger.Info().Msg("node API server stopped")
	return nil
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Time     string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "ok"
	if err := s.store.Health(r.Context()); err != nil {
		status = "degraded"
		dbStatus = err.Error()
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:   status,
		Database: dbStatus,
		Time:     time.Now().UTC().Format(time.RFC3339),
	})
}
