package api

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sashakarcz/irondhcp/internal/store"
)

func TestToClientViewFormatsTimestamps(t *testing.T) {
	mac, err := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)

	created := time.Date(2026, 7, 29, 10, 30, 0, 0, time.UTC)
	lease := &store.Lease{
		MAC:       mac,
		IP:        net.ParseIP("192.168.1.100"),
		CreatedAt: created,
		UpdatedAt: created,
		LeaseType: store.LeaseTypeDynamic,
	}

	view := ToClientView(lease, false)
	assert.Equal(t, "29.07.2026 10:30:00", view.CreatedAt)
	assert.Equal(t, "192.168.1.100", view.IP)
	assert.Nil(t, view.ExpireAt)
	assert.Equal(t, "n/a", view.TimeToExpiry)
}

func TestToClientViewComputesTimeToExpiry(t *testing.T) {
	mac, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	expire := time.Now().Add(90*time.Minute + 30*time.Second)
	lease := &store.Lease{MAC: mac, ExpireAt: &expire}

	view := ToClientView(lease, true)
	require.NotNil(t, view.ExpireAt)
	assert.Equal(t, "1h30m", view.TimeToExpiry)
	assert.True(t, view.IsCached)
}

func TestHumanDurationExpired(t *testing.T) {
	assert.Equal(t, "expired", humanDuration(-time.Second))
}
