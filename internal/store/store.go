// Package store is the single source of truth for lease state: a
// Postgres-backed, single-writer-safe persistent store of leases plus a
// separate append-only history log, reachable through *Store.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sashakarcz/irondhcp/internal/notify"
)

// Store provides lease and history persistence for the DHCP node. Leases
// and history live in two distinct connection pools (possibly two distinct
// databases) per spec.md §3: "History is retained in a separate store from
// leases."
type Store struct {
	leases  *pgxpool.Pool
	history *pgxpool.Pool

	historyLimit int
	retention    time.Duration

	notify              notify.Sink
	inactivityThreshold time.Duration
}

// Config holds connection settings for both pools.
type Config struct {
	LeasesDSN      string
	HistoryDSN     string
	MaxConnections int32
	MinConnections int32
	ConnectTimeout time.Duration

	// HistoryRetention is the window beyond which LEASE_RENEWED and INFORM
	// history rows are pruned. Zero disables pruning.
	HistoryRetention time.Duration

	// HistoryLimit bounds how many rows Store.History returns per device
	// (web_lease_history_limit).
	HistoryLimit int

	// NotifySink receives new-device and inactive-device events per
	// spec.md §9. A nil sink disables notifications.
	NotifySink notify.Sink

	// InactivityThreshold is the "silent longer than this" cutoff
	// RenewLease checks before firing an inactive-device notification
	// (spec.md §4.2, notification.inactive_period). Zero disables it.
	InactivityThreshold time.Duration
}

// New opens both connection pools and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	leasesPool, err := openPool(ctx, cfg.LeasesDSN, cfg.MaxConnections, cfg.MinConnections, cfg.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lease database: %w", err)
	}

	historyPool, err := openPool(ctx, cfg.HistoryDSN, cfg.MaxConnections, cfg.MinConnections, cfg.ConnectTimeout)
	if err != nil {
		leasesPool.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = 10
	}

	return &Store{
		leases:              leasesPool,
		history:             historyPool,
		historyLimit:        limit,
		retention:           cfg.HistoryRetention,
		notify:              cfg.NotifySink,
		inactivityThreshold: cfg.InactivityThreshold,
	}, nil
}

func openPool(ctx context.Context, dsn string, maxConns, minConns int32, connectTimeout time.Duration) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	if minConns > 0 {
		poolConfig.MinConns = minConns
	}
	poolConfig.ConnConfig.ConnectTimeout = connectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Close releases both connection pools.
func (s *Store) Close() {
	if s.leases != nil {
		s.leases.Close()
	}
	if s.history != nil {
		s.history.Close()
	}
}

// Health checks connectivity of both pools.
func (s *Store) Health(ctx context.Context) error {
	if err := s.leases.Ping(ctx); err != nil {
		return fmt.Errorf("lease database: %w", err)
	}
	if err := s.history.Ping(ctx); err != nil {
		return fmt.Errorf("history database: %w", err)
	}
	return nil
}

// Stats returns the lease pool's connection statistics.
func (s *Store) Stats() *pgxpool.Stat {
	return s.leases.Stat()
}
