package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DuplicateMACPolicy controls how the proxy merges clients that appear on
// more than one upstream node's response.
type DuplicateMACPolicy string

const (
	DuplicatePolicyKeepAll   DuplicateMACPolicy = "keep_all"
	DuplicatePolicyMerge     DuplicateMACPolicy = "merge"
	DuplicatePolicyPreferIP  DuplicateMACPolicy = "prefer_ip"
)

// ProxyConfig is the dhcpproxy process configuration.
type ProxyConfig struct {
	Listen             string             `yaml:"listen"`
	Upstreams          []UpstreamConfig   `yaml:"upstreams"`
	DHCPTimeoutSeconds int                `yaml:"dhcp_timeout_seconds"`
	DuplicateMACPolicy DuplicateMACPolicy `yaml:"duplicate_mac_policy"`
	CacheTTLSeconds    int                `yaml:"cache_ttl"`
	Token              string             `yaml:"token"`
	MaxConcurrency     int                `yaml:"max_concurrency"`
}

// CacheTTL returns the proxy-side response cache TTL as a time.Duration.
func (c ProxyConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// UpstreamConfig names one federated node's read API. Subnet is the /24
// this upstream is responsible for; when empty it is inferred at startup as
// the /24 containing Host's IPv4 address.
type UpstreamConfig struct {
	Name   string `yaml:"name"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Subnet string `yaml:"subnet,omitempty"`
}

// LoadProxy reads, expands, parses and validates a proxy config file.
func LoadProxy(path string) (*ProxyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg ProxyConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *ProxyConfig) setDefaults() {
	if c.Listen == "" {
		c.Listen = ":8090"
	}
	if c.DHCPTimeoutSeconds == 0 {
		c.DHCPTimeoutSeconds = 5
	}
	if c.DuplicateMACPolicy == "" {
		c.DuplicateMACPolicy = DuplicatePolicyKeepAll
	}
	if c.CacheTTLSeconds == 0 {
		c.CacheTTLSeconds = 5
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 8
	}
}

// Validate checks the configuration for obvious errors before the proxy
// starts accepting requests.
func (c *ProxyConfig) Validate() error {
	if len(c.Upstreams) == 0 {
		return fmt.Errorf("at least one upstream must be configured")
	}
	for i, u := range c.Upstreams {
		if u.Name == "" {
			return fmt.Errorf("upstreams[%d]: name is required", i)
		}
		if u.Host == "" {
			return fmt.Errorf("upstreams[%d]: host is required", i)
		}
		if u.Port <= 0 || u.Port > 65535 {
			return fmt.Errorf("upstreams[%d]: port must be between 1 and 65535", i)
		}
	}

	switch c.DuplicateMACPolicy {
	case DuplicatePolicyKeepAll, DuplicatePolicyMerge, DuplicatePolicyPreferIP:
	default:
		return fmt.Errorf("duplicate_mac_policy must be one of: keep_all, merge, prefer_ip")
	}

	return nil
}
