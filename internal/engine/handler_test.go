package engine

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sashakarcz/irondhcp/internal/addr"
	"github.com/sashakarcz/irondhcp/internal/codec"
	"github.com/sashakarcz/irondhcp/internal/metricsport"
	"github.com/sashakarcz/irondhcp/internal/store"
)

// fakeStore is a minimal in-memory Store good enough to exercise handler
// dispatch without a live Postgres connection.
type fakeStore struct {
	leases map[string]*store.Lease
	byIP   map[string]*store.Lease
	naks   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{leases: map[string]*store.Lease{}, byIP: map[string]*store.Lease{}}
}

func (f *fakeStore) GetByMAC(_ context.Context, mac net.HardwareAddr) (*store.Lease, error) {
	return f.leases[mac.String()], nil
}

func (f *fakeStore) GetByIP(_ context.Context, ip net.IP) (*store.Lease, error) {
	return f.byIP[ip.String()], nil
}

func (f *fakeStore) FindOrAllocate(_ context.Context, mac net.HardwareAddr, _ string, pool addr.Pool) (net.IP, store.LeaseType, error) {
	if l, ok := f.leases[mac.String()]; ok && l.IP != nil {
		return l.IP, l.LeaseType, nil
	}
	return addr.FromInt(pool.Start), store.LeaseTypeDynamic, nil
}

func (f *fakeStore) CreateLease(_ context.Context, mac net.HardwareAddr, ip net.IP, hostname, clientID string, leaseType store.LeaseType, _ store.CreateChannel, _ store.ChangeChannel, _ time.Duration) (*store.Lease, error) {
	l := &store.Lease{MAC: mac, IP: ip, Hostname: hostname, ClientID: clientID, LeaseType: leaseType}
	f.leases[mac.String()] = l
	f.byIP[ip.String()] = l
	return l, nil
}

func (f *fakeStore) UpdateIP(_ context.Context, mac net.HardwareAddr, newIP net.IP, _ string, _ store.ChangeChannel, _ time.Duration) error {
	l := f.leases[mac.String()]
	if l == nil {
		return nil
	}
	delete(f.byIP, l.IP.String())
	l.IP = newIP
	l.IsExpired = false
	f.byIP[newIP.String()] = l
	return nil
}

func (f *fakeStore) UpdateLeaseType(_ context.Context, mac net.HardwareAddr, leaseType store.LeaseType, _ time.Duration, _ store.ChangeChannel) error {
	if l := f.leases[mac.String()]; l != nil {
		l.LeaseType = leaseType
	}
	return nil
}

func (f *fakeStore) UpdateHostname(_ context.Context, mac net.HardwareAddr, hostname string, _ store.ChangeChannel) error {
	if l := f.leases[mac.String()]; l != nil {
		l.Hostname = hostname
	}
	return nil
}

func (f *fakeStore) RenewLease(_ context.Context, _ net.HardwareAddr, _ time.Duration) error { return nil }

func (f *fakeStore) DeclineLease(_ context.Context, mac net.HardwareAddr, _ net.IP, pool addr.Pool, _ time.Duration) (net.IP, error) {
	return addr.FromInt(pool.Start + 1), nil
}

func (f *fakeStore) NakLease(_ context.Context, _ net.HardwareAddr, _ net.IP) error {
	f.naks++
	return nil
}

func (f *fakeStore) InformLease(_ context.Context, _ net.HardwareAddr, _ net.IP) error { return nil }

func (f *fakeStore) MarkLeaseExpired(_ context.Context, _ net.HardwareAddr, _ net.IP) error { return nil }

func testEngine(t *testing.T, fs *fakeStore) *Engine {
	t.Helper()
	pool, err := addr.NewPool("192.168.1.100", "192.168.1.200")
	require.NoError(t, err)

	return New(fs, NetworkParams{
		ServerIP:   net.ParseIP("192.168.1.1").To4(),
		SubnetMask: net.CIDRMask(24, 32),
		Gateway:    net.ParseIP("192.168.1.1").To4(),
		DNSServers: []net.IP{net.ParseIP("192.168.1.1").To4()},
		LeaseTime:  time.Hour,
		Pool:       pool,
	}, "", time.Second, metricsport.NewPrometheus())
}

func discoverFor(t *testing.T, mac string) *codec.Request {
	t.Helper()
	hw, err := net.ParseMAC(mac)
	require.NoError(t, err)
	pkt, err := dhcpv4.NewDiscovery(hw)
	require.NoError(t, err)
	return codec.FromPacket(pkt)
}

func TestHandleDiscoverOffersFreeAddress(t *testing.T) {
	fs := newFakeStore()
	e := testEngine(t, fs)
	h := &handler{engine: e}

	req := discoverFor(t, "aa:bb:cc:dd:ee:01")
	resp, err := h.handleDiscover(context.Background(), req, false)
	require.NoError(t, err)
	require.NotNil(t, resp)

	reply, err := dhcpv4.FromBytes(resp)
	require.NoError(t, err)
	assert.Equal(t, dhcpv4.MessageTypeOffer, reply.MessageType())
	assert.Equal(t, "192.168.1.100", reply.YourIPAddr.String())
}

func TestHandleDiscoverBlockedSendsNAK(t *testing.T) {
	fs := newFakeStore()
	e := testEngine(t, fs)
	h := &handler{engine: e}

	req := discoverFor(t, "aa:bb:cc:dd:ee:02")
	resp, err := h.handleDiscover(context.Background(), req, true)
	require.NoError(t, err)

	reply, err := dhcpv4.FromBytes(resp)
	require.NoError(t, err)
	assert.Equal(t, dhcpv4.MessageTypeNak, reply.MessageType())
	assert.Equal(t, 1, fs.naks)
}

func TestHandleDeclineReallocatesAndAcks(t *testing.T) {
	fs := newFakeStore()
	e := testEngine(t, fs)
	h := &handler{engine: e}

	hw, err := net.ParseMAC("aa:bb:cc:dd:ee:04")
	require.NoError(t, err)
	pkt, err := dhcpv4.New(dhcpv4.WithMessageType(dhcpv4.MessageTypeDecline))
	require.NoError(t, err)
	pkt.ClientHWAddr = hw
	req := codec.FromPacket(pkt)

	resp, err := h.handleDecline(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp)

	reply, err := dhcpv4.FromBytes(resp)
	require.NoError(t, err)
	assert.Equal(t, dhcpv4.MessageTypeAck, reply.MessageType())
	assert.Equal(t, "192.168.1.101", reply.YourIPAddr.String())
}

func TestHandleDiscoverCacheHitReturnsSameBytes(t *testing.T) {
	fs := newFakeStore()
	e := testEngine(t, fs)
	h := &handler{engine: e}

	req := discoverFor(t, "aa:bb:cc:dd:ee:03")
	first, err := h.handleDiscover(context.Background(), req, false)
	require.NoError(t, err)

	delete(fs.leases, req.ClientMAC.String())

	second, err := h.handleDiscover(context.Background(), req, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
