// Package metricsport defines the metrics sink port the DHCP engine and
// workers write counter snapshots to, plus the Prometheus adapter that
// implements it. Per spec.md the metrics sink itself (the time-series
// writer) is an external collaborator; this package only owns the port and
// its Prometheus adapter. The per-message-type counter map lives in
// internal/engine and the periodic flush in internal/workers.
package metricsport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sink is the port the engine/workers depend on. WriteCounters receives a
// snapshot of per-message-type counts accumulated since the last flush.
type Sink interface {
	WriteCounters(requests, responses map[string]uint64)
	ObserveAllocationDuration(d time.Duration)
	SetActiveLeases(n int)
	SetExpiredLeases(n int)
	IncRetransmissionHit()
	IncError(kind string)
}

// Prometheus is the concrete Sink backing the node's /metrics endpoint.
type Prometheus struct {
	requests  *prometheus.CounterVec
	responses *prometheus.CounterVec
	errors    *prometheus.CounterVec

	activeLeases  prometheus.Gauge
	expiredLeases prometheus.Gauge

	allocationDuration prometheus.Histogram
	retransHits        prometheus.Counter
}

// NewPrometheus registers and returns the node's Prometheus metric set.
func NewPrometheus() *Prometheus {
	return &Prometheus{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "irondhcp_requests_total",
			Help: "Total number of DHCP requests by message type",
		}, []string{"type"}),

		responses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "irondhcp_responses_total",
			Help: "Total number of DHCP responses by message type",
		}, []string{"type"}),

		errors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "irondhcp_errors_total",
			Help: "Total number of DHCP protocol errors by kind",
		}, []string{"kind"}),

		activeLeases: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "irondhcp_leases_active",
			Help: "Number of live, non-expired leases",
		}),

		expiredLeases: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "irondhcp_leases_expired",
			Help: "Number of live leases currently marked expired",
		}),

		allocationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "irondhcp_allocation_duration_seconds",
			Help:    "Time spent in find_or_allocate",
			Buckets: prometheus.DefBuckets,
		}),

		retransHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "irondhcp_retransmission_cache_hits_total",
			Help: "Total number of requests served from the retransmission cache",
		}),
	}
}

// WriteCounters adds the per-message-type snapshot to the running totals.
func (p *Prometheus) WriteCounters(requests, responses map[string]uint64) {
	for msgType, count := range requests {
		p.requests.WithLabelValues(msgType).Add(float64(count))
	}
	for msgType, count := range responses {
		p.responses.WithLabelValues(msgType).Add(float64(count))
	}
}

// IncError increments the error counter for a protocol-level failure kind
// (codec, store, pool-exhausted...).
func (p *Prometheus) IncError(kind string) {
	p.errors.WithLabelValues(kind).Inc()
}

// IncRetransmissionHit records a retransmission-cache hit.
func (p *Prometheus) IncRetransmissionHit() {
	p.retransHits.Inc()
}

func (p *Prometheus) ObserveAllocationDuration(d time.Duration) {
	p.allocationDuration.Observe(d.Seconds())
}

func (p *Prometheus) SetActiveLeases(n int) {
	p.activeLeases.Set(float64(n))
}

func (p *Prometheus) SetExpiredLeases(n int) {
	p.expiredLeases.Set(float64(n))
}
