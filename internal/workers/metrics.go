package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sashakarcz/irondhcp/internal/metricsport"
)

// LeaseCounts is the subset of *store.Store the metrics worker needs to
// snapshot gauge values.
type LeaseCounts interface {
	CountLive(ctx context.Context) (active, expired int, err error)
}

// MessageCounters is the subset of *engine.Engine the metrics worker needs
// to flush the per-message-type counter map (spec.md §4.5).
type MessageCounters interface {
	SnapshotCounters() (requests, responses map[string]uint64)
}

// MetricsWorker periodically snapshots lease counts and the engine's
// message-type counters into the metrics sink.
type MetricsWorker struct {
	store    LeaseCounts
	counters MessageCounters
	sink     metricsport.Sink
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewMetricsWorker(store LeaseCounts, counters MessageCounters, sink metricsport.Sink, interval time.Duration) *MetricsWorker {
	return &MetricsWorker{
		store:    store,
		counters: counters,
		sink:     sink,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *MetricsWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("starting metrics flush worker")
	go w.loop(ctx)
}

func (w *MetricsWorker) Stop(ctx context.Context) error {
	close(w.stop)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *MetricsWorker) loop(ctx context.Context) {
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
			active, expired, err := w.store.CountLive(ctx)
			if err != nil {
				log.Error().Err(err).Msg("failed to count leases for metrics snapshot")
				continue
			}
			w.sink.SetActiveLeases(active)
			w.sink.SetExpiredLeases(expired)

			requests, responses := w.counters.SnapshotCounters()
			w.sink.WriteCounters(requests, responses)
		}
	}
}
