package codec

import (
	"net"
	"testing"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDiscover(t *testing.T) *dhcpv4.DHCPv4 {
	t.Helper()
	mac, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	pkt, err := dhcpv4.NewDiscovery(mac)
	require.NoError(t, err)
	pkt.UpdateOption(dhcpv4.OptHostName("laptop"))
	pkt.UpdateOption(dhcpv4.OptClientIdentifier([]byte("client-1")))
	return pkt
}

func TestParseRejectsShortPacket(t *testing.T) {
	_, err := Parse([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestParseExtractsRequestFields(t *testing.T) {
	pkt := buildDiscover(t)
	req, err := Parse(pkt.ToBytes())
	require.NoError(t, err)

	assert.Equal(t, dhcpv4.MessageTypeDiscover, req.MessageType)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", req.ClientMAC.String())
	assert.Equal(t, "laptop", req.Hostname)
	assert.Equal(t, "client-1", req.ClientID)
}

func TestBuildReplySetsOfferFields(t *testing.T) {
	pkt := buildDiscover(t)
	req, err := Parse(pkt.ToBytes())
	require.NoError(t, err)

	raw, err := BuildReply(req, ReplyParams{
		MessageType:   dhcpv4.MessageTypeOffer,
		YourIP:        net.ParseIP("192.168.1.50").To4(),
		ServerIP:      net.ParseIP("192.168.1.1").To4(),
		SubnetMask:    net.CIDRMask(24, 32),
		Router:        net.ParseIP("192.168.1.1").To4(),
		DNSServers:    []net.IP{net.ParseIP("192.168.1.1").To4()},
		LeaseDuration: time.Hour,
	})
	require.NoError(t, err)

	reply, err := dhcpv4.FromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, dhcpv4.MessageTypeOffer, reply.MessageType())
	assert.Equal(t, "192.168.1.50", reply.YourIPAddr.String())
}

func TestBuildNAKZeroesYourIP(t *testing.T) {
	pkt := buildDiscover(t)
	req, err := Parse(pkt.ToBytes())
	require.NoError(t, err)

	raw, err := BuildNAK(req, net.ParseIP("192.168.1.1").To4())
	require.NoError(t, err)

	reply, err := dhcpv4.FromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, dhcpv4.MessageTypeNak, reply.MessageType())
	assert.True(t, reply.YourIPAddr.IsUnspecified())
}
