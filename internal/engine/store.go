package engine

import (
	"context"
	"net"
	"time"

	"github.com/sashakarcz/irondhcp/internal/addr"
	"github.com/sashakarcz/irondhcp/internal/store"
)

// Store is the subset of *store.Store the engine depends on. Defining it
// here lets handler tests run against an in-memory fake instead of a live
// Postgres connection.
type Store interface {
	GetByMAC(ctx context.Context, mac net.HardwareAddr) (*store.Lease, error)
	GetByIP(ctx context.Context, ip net.IP) (*store.Lease, error)
	FindOrAllocate(ctx context.Context, mac net.HardwareAddr, clientID string, pool addr.Pool) (net.IP, store.LeaseType, error)
	CreateLease(ctx context.Context, mac net.HardwareAddr, ip net.IP, hostname, clientID string, leaseType store.LeaseType, createChannel store.CreateChannel, changeChannel store.ChangeChannel, leaseDuration time.Duration) (*store.Lease, error)
	UpdateIP(ctx context.Context, mac net.HardwareAddr, newIP net.IP, clientID string, changeChannel store.ChangeChannel, leaseDuration time.Duration) error
	UpdateLeaseType(ctx context.Context, mac net.HardwareAddr, leaseType store.LeaseType, leaseDuration time.Duration, changeChannel store.ChangeChannel) error
	UpdateHostname(ctx context.Context, mac net.HardwareAddr, hostname string, changeChannel store.ChangeChannel) error
	RenewLease(ctx context.Context, mac net.HardwareAddr, leaseDuration time.Duration) error
	DeclineLease(ctx context.Context, mac net.HardwareAddr, ip net.IP, pool addr.Pool, leaseDuration time.Duration) (net.IP, error)
	NakLease(ctx context.Context, mac net.HardwareAddr, requestedIP net.IP) error
	InformLease(ctx context.Context, mac net.HardwareAddr, ip net.IP) error
	MarkLeaseExpired(ctx context.Context, mac net.HardwareAddr, ip net.IP) error
}

var _ Store = (*store.Store)(nil)
