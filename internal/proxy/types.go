// Package proxy implements the federating read-API proxy of spec.md §4.7:
// a process that fronts N per-node read APIs, routes single-client lookups
// by inferred /24 subnet, and fans out aggregate listing and health checks
// across every upstream.
package proxy

import (
	"github.com/sashakarcz/irondhcp/internal/api"
	"github.com/sashakarcz/irondhcp/internal/config"
)

// clientEntry is one client as seen from a specific upstream, carrying
// enough provenance to support every duplicate_mac_policy.
type clientEntry struct {
	api.ClientView
	SourceServer string `json:"source_server"`
}

// ClientResponse is the wire shape for the single-client endpoint.
type ClientResponse struct {
	api.ClientView
	IsProxy      bool   `json:"is_proxy"`
	IsDHCPCached bool   `json:"is_dhcp_cached"`
	SourceServer string `json:"source_server"`
}

// ClientsResponse is the wire shape for the aggregate endpoint.
type ClientsResponse struct {
	Clients            []clientEntry             `json:"clients"`
	Total              int                        `json:"total"`
	IsCached           bool                       `json:"is_cached"`
	IsProxy            bool                       `json:"is_proxy"`
	IsDHCPCached       []bool                     `json:"is_dhcp_cached"`
	DuplicateMACPolicy config.DuplicateMACPolicy  `json:"duplicate_mac_policy"`
	GeneratedAt        string                     `json:"generated_at"`
	Errors             map[string]string          `json:"errors"`
}

// HealthResponse is the wire shape for the federated health probe.
type HealthResponse struct {
	Status    string          `json:"status"`
	Upstreams map[string]bool `json:"upstreams"`
}

// ErrorResponse is the generic error body, matching internal/api's shape.
type ErrorResponse struct {
	Error string `json:"error"`
}
