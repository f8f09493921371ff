// Package workers runs the node's two background loops: periodic lease
// expiry plus history pruning, and periodic metrics snapshot flush.
package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ExpiryStore is the subset of *store.Store the expiry worker needs.
type ExpiryStore interface {
	MarkExpiredLeases(ctx context.Context) (int, error)
	PruneHistory(ctx context.Context) (int64, error)
}

// ExpiryWorker periodically reclaims expired DYNAMIC leases and prunes
// high-volume history actions per the configured retention window.
type ExpiryWorker struct {
	store    ExpiryStore
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewExpiryWorker(store ExpiryStore, interval time.Duration) *ExpiryWorker {
	return &ExpiryWorker{
		store:    store,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start performs an initial sweep, then loops on the configured interval.
func (w *ExpiryWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("starting lease expiry worker")

	if err := w.tick(ctx); err != nil {
		log.Error().Err(err).Msg("initial lease expiry sweep failed")
	}

	go w.loop(ctx)
}

// Stop signals the loop to exit and waits for it.
func (w *ExpiryWorker) Stop(ctx context.Context) error {
	close(w.stop)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *ExpiryWorker) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.tick(ctx); err != nil {
				log.Error().Err(err).Msg("lease expiry sweep failed")
			}
		}
	}
}

func (w *ExpiryWorker) tick(ctx context.Context) error {
	expired, err := w.store.MarkExpiredLeases(ctx)
	if err != nil {
		return err
	}
	if expired > 0 {
		log.Info().Int("count", expired).Msg("expired dynamic leases")
	}

	pruned, err := w.store.PruneHistory(ctx)
	if err != nil {
		return err
	}
	if pruned > 0 {
		log.Info().Int64("count", pruned).Msg("pruned history events")
	}

	return nil
}
