package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sashakarcz/irondhcp/internal/config"
	"github.com/sashakarcz/irondhcp/internal/logger"
)

// healthCheckTimeout is the per-upstream cap for /health fan-out, separate
// from dhcp_timeout_seconds per spec.md §5.
const healthCheckTimeout = 2 * time.Second

// Server is the federating proxy: it fronts every configured upstream's
// read API under one address.
type Server struct {
	upstreams      []*upstream
	policy         config.DuplicateMACPolicy
	dhcpTimeout    time.Duration
	maxConcurrency int
	cache          *respCache
	httpServer     *http.Server
	addr           string
}

// New builds the upstream clients and wires the federated routes.
func New(cfg *config.ProxyConfig) (*Server, error) {
	upstreams := make([]*upstream, 0, len(cfg.Upstreams))
	for _, u := range cfg.Upstreams {
		up, err := newUpstream(u, cfg.Token, time.Duration(cfg.DHCPTimeoutSeconds)*time.Second)
		if err != nil {
			return nil, err
		}
		upstreams = append(upstreams, up)
	}

	s := &Server{
		upstreams:      upstreams,
		policy:         cfg.DuplicateMACPolicy,
		dhcpTimeout:    time.Duration(cfg.DHCPTimeoutSeconds) * time.Second,
		maxConcurrency: cfg.MaxConcurrency,
		cache:          newRespCache(cfg.CacheTTL()),
		addr:           cfg.Listen,
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/client/{ip}", s.handleClient).Methods(http.MethodGet)
	router.HandleFunc("/api/clients", s.handleClients).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, nil
}

// Start begins serving in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	logger.Info().Str("addr", s.addr).Int("upstreams", len(s.upstreams)).Msg("starting federating proxy server")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("proxy server error")
		}
	}()

	return nil
}

// Stop gracefully shuts the proxy down.
func (s *Server) Stop(ctx context.Context) error {
	logger.Info().Msg("stopping federating proxy server")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown proxy server: %w", err)
	}

	logger.Info().Msg("federating proxy server stopped")
	return nil
}
