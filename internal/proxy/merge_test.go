package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sashakarcz/irondhcp/internal/api"
	"github.com/sashakarcz/irondhcp/internal/config"
)

func entry(mac, ip, expireAt, updatedAt string) clientEntry {
	var expirePtr *string
	if expireAt != "" {
		expirePtr = &expireAt
	}
	return clientEntry{
		ClientView: api.ClientView{
			MAC:       mac,
			IP:        ip,
			ExpireAt:  expirePtr,
			UpdatedAt: updatedAt,
		},
	}
}

func TestMergeKeepAllSortsByIPDescending(t *testing.T) {
	perUpstream := [][]clientEntry{
		{entry("aa:00", "192.168.1.50", "", "")},
		{entry("bb:00", "192.168.1.200", "", "")},
	}

	merged := mergeClients(config.DuplicatePolicyKeepAll, perUpstream)
	assert.Len(t, merged, 2)
	assert.Equal(t, "192.168.1.200", merged[0].IP)
	assert.Equal(t, "192.168.1.50", merged[1].IP)
}

func TestMergeLastWriterWinsKeepsLatestOccurrence(t *testing.T) {
	perUpstream := [][]clientEntry{
		{entry("aa:00", "192.168.1.50", "", "")},
		{entry("aa:00", "192.168.1.51", "", "")},
	}

	merged := mergeClients(config.DuplicatePolicyMerge, perUpstream)
	assert.Len(t, merged, 1)
	assert.Equal(t, "192.168.1.51", merged[0].IP)
}

func TestMergePreferIPKeepsGreatestExpiry(t *testing.T) {
	perUpstream := [][]clientEntry{
		{entry("aa:00", "192.168.1.50", "29.07.2026 10:00:00", "")},
		{entry("aa:00", "192.168.1.51", "29.07.2026 12:00:00", "")},
	}

	merged := mergeClients(config.DuplicatePolicyPreferIP, perUpstream)
	assert.Len(t, merged, 1)
	assert.Equal(t, "192.168.1.51", merged[0].IP)
}

func TestMergePreferIPFallsBackToUpdatedAt(t *testing.T) {
	perUpstream := [][]clientEntry{
		{entry("aa:00", "192.168.1.50", "", "29.07.2026 09:00:00")},
		{entry("aa:00", "192.168.1.51", "", "29.07.2026 11:00:00")},
	}

	merged := mergeClients(config.DuplicatePolicyPreferIP, perUpstream)
	assert.Len(t, merged, 1)
	assert.Equal(t, "192.168.1.51", merged[0].IP)
}
