// Package engine owns the DHCPv4 UDP socket and the state-machine dispatch
// for DISCOVER/REQUEST/DECLINE/RELEASE/INFORM, per spec.md §4.4.
package engine

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/insomniacslk/dhcp/dhcpv4/server4"
	"github.com/rs/zerolog/log"

	"github.com/sashakarcz/irondhcp/internal/addr"
	"github.com/sashakarcz/irondhcp/internal/metricsport"
	"github.com/sashakarcz/irondhcp/internal/retrans"
)

// NetworkParams carries the subnet-level settings the handler needs to
// build option blocks, taken from config.NetworkConfig.
type NetworkParams struct {
	ServerIP   net.IP
	SubnetMask net.IPMask
	Gateway    net.IP
	DNSServers []net.IP
	DomainName string
	LeaseTime  time.Duration
	Pool       addr.Pool
}

// Engine is a running DHCPv4 server bound to one interface.
type Engine struct {
	store   Store
	net     NetworkParams
	retrans *retrans.Cache
	metrics metricsport.Sink
	counts  *msgCounters

	iface   string
	server4 *server4.Server

	wg       sync.WaitGroup
	shutdown chan struct{}
}

// msgCounters is the per-message-type counter map of spec.md §4.5: every
// decoded inbound and every generated outbound increments it; the metrics
// flusher snapshots and zeroes it each tick. Traffic through it is
// negligible next to packet rate, so a single mutex is enough.
type msgCounters struct {
	mu        sync.Mutex
	requests  map[string]uint64
	responses map[string]uint64
}

func newMsgCounters() *msgCounters {
	return &msgCounters{requests: map[string]uint64{}, responses: map[string]uint64{}}
}

func (c *msgCounters) incRequest(msgType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests[msgType]++
}

func (c *msgCounters) incResponse(msgType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[msgType]++
}

func (c *msgCounters) snapshotAndReset() (requests, responses map[string]uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	requests, responses = c.requests, c.responses
	c.requests = map[string]uint64{}
	c.responses = map[string]uint64{}
	return requests, responses
}

// SnapshotCounters returns the accumulated per-message-type counts and
// resets them to zero, implementing the "snapshot... and reset to zero"
// half of the metrics flusher's job (spec.md §4.5); the periodic flush
// itself is the metrics worker's.
func (e *Engine) SnapshotCounters() (requests, responses map[string]uint64) {
	return e.counts.snapshotAndReset()
}

// New builds an Engine. iface may be empty to listen on all interfaces.
// Device lifecycle notifications are dispatched by the store, which owns
// the lease lifecycle transitions that trigger them; the engine itself
// has no notify.Sink.
func New(st Store, net_ NetworkParams, iface string, cacheTTL time.Duration, metrics metricsport.Sink) *Engine {
	return &Engine{
		store:    st,
		net:      net_,
		retrans:  retrans.New(cacheTTL),
		metrics:  metrics,
		counts:   newMsgCounters(),
		iface:    iface,
		shutdown: make(chan struct{}),
	}
}

// Start binds the UDP socket and begins serving. server4.NewServer sets
// SO_REUSEADDR and, when the handler needs it, SO_BROADCAST under the
// hood; binding an empty interface name listens on all of them.
func (e *Engine) Start(ctx context.Context) error {
	log.Info().
		Str("interface", e.iface).
		Str("pool_start", addr.FromInt(e.net.Pool.Start).String()).
		Str("pool_end", addr.FromInt(e.net.Pool.End).String()).
		Msg("starting DHCP engine")

	h := &handler{engine: e}

	laddr := &net.UDPAddr{IP: net.IPv4zero, Port: dhcpv4.ServerPort}
	srv, err := server4.NewServer(e.iface, laddr, h.handle)
	if err != nil {
		return fmt.Errorf("failed to create DHCP server: %w", err)
	}
	e.server4 = srv

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := srv.Serve(); err != nil {
			log.Error().Err(err).Msg("DHCP server stopped with error")
		}
	}()

	e.wg.Add(1)
	go e.sweepRetransCache(ctx)

	log.Info().Msg("DHCP engine started")
	return nil
}

// Stop closes the socket and waits for background goroutines to exit.
func (e *Engine) Stop() error {
	close(e.shutdown)

	var err error
	if e.server4 != nil {
		err = e.server4.Close()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("DHCP engine shutdown timed out")
	}

	return err
}

func (e *Engine) sweepRetransCache(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.shutdown:
			return
		case <-ticker.C:
			if n := e.retrans.Sweep(); n > 0 {
				log.Debug().Int("removed", n).Msg("swept expired retransmission cache entries")
			}
		}
	}
}
