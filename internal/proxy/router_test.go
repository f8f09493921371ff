package proxy

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sashakarcz/irondhcp/internal/config"
)

func TestRouteForMatchesInferredSubnet(t *testing.T) {
	a, err := newUpstream(config.UpstreamConfig{Name: "a", Host: "192.168.1.1", Port: 8080}, "tok", time.Second)
	require.NoError(t, err)
	b, err := newUpstream(config.UpstreamConfig{Name: "b", Host: "192.168.2.1", Port: 8080}, "tok", time.Second)
	require.NoError(t, err)

	got := routeFor([]*upstream{a, b}, net.ParseIP("192.168.2.50"))
	require.NotNil(t, got)
	assert.Equal(t, "b", got.name)
}

func TestRouteForReturnsNilWhenNoSubnetMatches(t *testing.T) {
	a, err := newUpstream(config.UpstreamConfig{Name: "a", Host: "192.168.1.1", Port: 8080}, "tok", time.Second)
	require.NoError(t, err)

	got := routeFor([]*upstream{a}, net.ParseIP("10.0.0.1"))
	assert.Nil(t, got)
}

func TestRouteForHonorsExplicitSubnetOverride(t *testing.T) {
	a, err := newUpstream(config.UpstreamConfig{Name: "a", Host: "10.0.0.5", Port: 8080, Subnet: "192.168.5.0/24"}, "tok", time.Second)
	require.NoError(t, err)

	got := routeFor([]*upstream{a}, net.ParseIP("192.168.5.77"))
	require.NotNil(t, got)
	assert.Equal(t, "a", got.name)
}
