package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
network:
  interface: eth0
  server_ip: 192.168.1.1
  pool_start: 192.168.1.100
  pool_end: 192.168.1.200
  subnet_mask: 255.255.255.0
  gateway: 192.168.1.1
database:
  db_file: postgres://localhost/leases
  history_db_file: postgres://localhost/history
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Network.LeaseTime())
	assert.Equal(t, 10*time.Second, cfg.Server.CacheTTL())
	assert.Equal(t, 5*time.Minute, cfg.Server.ExpireCheckPeriod())
	assert.Equal(t, 8080, cfg.Web.Port)
	assert.Equal(t, 90, cfg.Database.HistoryCleanupDays)

	threshold, err := cfg.Notification.InactivityThreshold()
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, threshold)
}

func TestLoadPreservesExplicitZeroHistoryCleanupDays(t *testing.T) {
	path := writeConfig(t, `
network:
  interface: eth0
  server_ip: 192.168.1.1
  pool_start: 192.168.1.100
  pool_end: 192.168.1.200
  gateway: 192.168.1.1
database:
  db_file: postgres://localhost/leases
  history_db_file: postgres://localhost/history
  history_cleanup_days: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Database.HistoryCleanupDays)
}

func TestLoadRejectsInvalidServerIP(t *testing.T) {
	path := writeConfig(t, `
network:
  interface: eth0
  server_ip: not-an-ip
  pool_start: 192.168.1.100
  pool_end: 192.168.1.200
  gateway: 192.168.1.1
database:
  db_file: postgres://localhost/leases
  history_db_file: postgres://localhost/history
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("IRONDHCP_SERVER_IP", "192.168.1.1")
	path := writeConfig(t, `
network:
  interface: eth0
  server_ip: ${IRONDHCP_SERVER_IP}
  pool_start: 192.168.1.100
  pool_end: 192.168.1.200
  gateway: 192.168.1.1
database:
  db_file: postgres://localhost/leases
  history_db_file: postgres://localhost/history
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", cfg.Network.ServerIP)
}

func TestLoadProxyRejectsEmptyUpstreams(t *testing.T) {
	path := writeConfig(t, `
listen: ":8090"
upstreams: []
`)

	_, err := LoadProxy(path)
	assert.Error(t, err)
}

func TestLoadProxyAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
upstreams:
  - name: node-a
    host: 192.168.1.1
    port: 8080
`)

	cfg, err := LoadProxy(path)
	require.NoError(t, err)
	assert.Equal(t, ":8090", cfg.Listen)
	assert.Equal(t, DuplicatePolicyKeepAll, cfg.DuplicateMACPolicy)
	assert.Equal(t, 5, cfg.DHCPTimeoutSeconds)
	assert.Equal(t, 5*time.Second, cfg.CacheTTL())
}

func TestParseHumanDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"45m": 45 * time.Minute,
		"12h": 12 * time.Hour,
		"7d":  7 * 24 * time.Hour,
		"1y":  365 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseHumanDuration(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseHumanDuration("nonsense")
	assert.Error(t, err)
}
