// Package config loads and validates the node and proxy YAML configuration
// documents described in spec.md §6. Loading itself is intentionally thin:
// parse, default, validate, nothing more.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the dhcpnode process configuration.
type Config struct {
	Network      NetworkConfig      `yaml:"network"`
	Server       ServerConfig       `yaml:"server"`
	Web          WebConfig          `yaml:"web"`
	Database     DatabaseConfig     `yaml:"database"`
	Notification NotificationConfig `yaml:"notification"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// NetworkConfig describes the subnet this node serves. LeaseTimeSeconds is
// spec.md §6's lease_time, an integer count of seconds rather than a Go
// duration string.
type NetworkConfig struct {
	Interface        string   `yaml:"interface"`
	ServerIP         string   `yaml:"server_ip"`
	PoolStart        string   `yaml:"pool_start"`
	PoolEnd          string   `yaml:"pool_end"`
	SubnetMask       string   `yaml:"subnet_mask"`
	Gateway          string   `yaml:"gateway"`
	DNSServers       []string `yaml:"dns_servers"`
	LeaseTimeSeconds int      `yaml:"lease_time"`
	DomainName       string   `yaml:"domain_name"`
}

// LeaseTime returns the configured lease lifetime as a time.Duration.
func (n NetworkConfig) LeaseTime() time.Duration {
	return time.Duration(n.LeaseTimeSeconds) * time.Second
}

// ServerConfig holds engine-level tunables, both expressed in seconds per
// spec.md §6.
type ServerConfig struct {
	CacheTTLSeconds          int `yaml:"cache_ttl"`
	ExpireCheckPeriodSeconds int `yaml:"expire_check_period"`
}

// CacheTTL returns the retransmission-cache TTL as a time.Duration.
func (s ServerConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// ExpireCheckPeriod returns the expiry-sweeper interval as a time.Duration.
func (s ServerConfig) ExpireCheckPeriod() time.Duration {
	return time.Duration(s.ExpireCheckPeriodSeconds) * time.Second
}

// WebConfig configures the per-node read API.
type WebConfig struct {
	Host               string `yaml:"web_host"`
	Port               int    `yaml:"web_port"`
	LeaseHistoryLimit  int    `yaml:"web_lease_history_limit"`
	APICacheTTLSeconds int    `yaml:"api_cache_ttl"`
	APIToken           string `yaml:"api_token"`
}

// APICacheTTL returns the per-node HTTP response cache TTL as a
// time.Duration.
func (w WebConfig) APICacheTTL() time.Duration {
	return time.Duration(w.APICacheTTLSeconds) * time.Second
}

// DatabaseConfig names the three logical databases the node uses. db_file
// and history_db_file are read as postgres:// DSNs, keeping the field
// names spec.md's config document uses even though pgx wants a connection
// string rather than a filesystem path.
type DatabaseConfig struct {
	DBFile             string `yaml:"db_file"`
	AuthDBFile         string `yaml:"auth_db_file"`
	HistoryDBFile      string `yaml:"history_db_file"`
	HistoryCleanupDays int    `yaml:"history_cleanup_days"`
}

// NotificationConfig configures the out-of-core notification sink (spec.md
// §6). RetryCount/RetryInterval are reserved for the real messaging-client
// adapter; the bundled LoggingSink does not retry.
type NotificationConfig struct {
	Enabled        bool   `yaml:"notification_enabled"`
	RetryCount     int    `yaml:"notification_retries"`
	RetryInterval  int    `yaml:"notification_retry_interval"`
	InactivePeriod string `yaml:"inactive_period"`
}

// InactivityThreshold parses InactivePeriod ("7d", "12h", "45m", "1y") into
// a time.Duration, per spec.md §6.
func (n NotificationConfig) InactivityThreshold() (time.Duration, error) {
	if n.InactivePeriod == "" {
		return 0, nil
	}
	return ParseHumanDuration(n.InactivePeriod)
}

// MetricsConfig configures the metrics flusher. Enabled/Interval are
// spec.md §6's metrics_enabled/metrics_interval. Host/Port/Path are parsed
// and defaulted but not read elsewhere: the Prometheus exposition endpoint
// is served at /metrics by the node read API on web_host:web_port.
type MetricsConfig struct {
	Enabled         bool   `yaml:"metrics_enabled"`
	URL             string `yaml:"url"`
	Token           string `yaml:"token"`
	Org             string `yaml:"org"`
	Bucket          string `yaml:"bucket"`
	Measurement     string `yaml:"measurement"`
	IntervalSeconds int    `yaml:"metrics_interval"`
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Path            string `yaml:"path"`
}

// Interval returns the metrics flush period as a time.Duration.
func (m MetricsConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

// Load reads, expands, parses and validates a node config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	// HistoryCleanupDays defaults to 90 but "0 disables" per spec.md §6, so
	// the default is pre-set here rather than in setDefaults: yaml.Unmarshal
	// only overwrites fields the document actually names, leaving an
	// explicit `history_cleanup_days: 0` intact instead of being mistaken
	// for "unset".
	cfg := Config{Database: DatabaseConfig{HistoryCleanupDays: 90}}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Network.LeaseTimeSeconds == 0 {
		c.Network.LeaseTimeSeconds = 24 * 3600
	}
	if c.Server.CacheTTLSeconds == 0 {
		c.Server.CacheTTLSeconds = 10
	}
	if c.Server.ExpireCheckPeriodSeconds == 0 {
		c.Server.ExpireCheckPeriodSeconds = 300
	}
	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Web.LeaseHistoryLimit == 0 {
		c.Web.LeaseHistoryLimit = 10
	}
	if c.Web.APICacheTTLSeconds == 0 {
		c.Web.APICacheTTLSeconds = 10
	}
	if c.Notification.InactivePeriod == "" {
		c.Notification.InactivePeriod = "30d"
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.IntervalSeconds == 0 {
		c.Metrics.IntervalSeconds = 30
	}
}

// Validate checks the configuration for obvious errors before the node
// starts serving traffic.
func (c *Config) Validate() error {
	if c.Network.Interface == "" {
		return fmt.Errorf("network.interface is required")
	}
	if net.ParseIP(c.Network.ServerIP) == nil {
		return fmt.Errorf("network.server_ip must be a valid IP address")
	}
	if net.ParseIP(c.Network.PoolStart) == nil {
		return fmt.Errorf("network.pool_start must be a valid IP address")
	}
	if net.ParseIP(c.Network.PoolEnd) == nil {
		return fmt.Errorf("network.pool_end must be a valid IP address")
	}
	if net.ParseIP(c.Network.Gateway) == nil {
		return fmt.Errorf("network.gateway must be a valid IP address")
	}
	for i, dns := range c.Network.DNSServers {
		if net.ParseIP(dns) == nil {
			return fmt.Errorf("network.dns_servers[%d]: invalid IP address %q", i, dns)
		}
	}

	if c.Database.DBFile == "" {
		return fmt.Errorf("database.db_file is required")
	}
	if c.Database.HistoryDBFile == "" {
		return fmt.Errorf("database.history_db_file is required")
	}

	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.web_port must be between 1 and 65535")
	}

	if _, err := c.Notification.InactivityThreshold(); err != nil {
		return fmt.Errorf("notification.inactive_period: %w", err)
	}

	return nil
}
