package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sashakarcz/irondhcp/internal/api"
	"github.com/sashakarcz/irondhcp/internal/config"
)

// upstream is one federated node: its read-API client plus the subnet it
// is responsible for.
type upstream struct {
	name   string
	base   string
	subnet *net.IPNet
	client *http.Client
}

func newUpstream(cfg config.UpstreamConfig, token string, timeout time.Duration) (*upstream, error) {
	subnet, err := upstreamSubnet(cfg)
	if err != nil {
		return nil, fmt.Errorf("upstream %s: %w", cfg.Name, err)
	}

	return &upstream{
		name:   cfg.Name,
		base:   fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		subnet: subnet,
		client: &http.Client{Timeout: timeout, Transport: transportFor(token)},
	}, nil
}

// upstreamSubnet resolves the /24 an upstream is responsible for: the
// explicit subnet override if configured, otherwise inferred from the
// upstream's host address.
func upstreamSubnet(cfg config.UpstreamConfig) (*net.IPNet, error) {
	if cfg.Subnet != "" {
		_, ipNet, err := net.ParseCIDR(cfg.Subnet)
		if err != nil {
			return nil, fmt.Errorf("invalid subnet %q: %w", cfg.Subnet, err)
		}
		return ipNet, nil
	}

	ip := net.ParseIP(cfg.Host)
	if ip == nil {
		ips, err := net.LookupIP(cfg.Host)
		if err != nil || len(ips) == 0 {
			return nil, fmt.Errorf("cannot resolve host %q to infer /24 subnet", cfg.Host)
		}
		ip = ips[0]
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("host %q is not an IPv4 address", cfg.Host)
	}
	return &net.IPNet{IP: ip4.Mask(net.CIDRMask(24, 32)), Mask: net.CIDRMask(24, 32)}, nil
}

// tokenTransport appends the shared bearer token as a ?token= query
// parameter on every outbound request, matching the per-node API's auth.
type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func transportFor(token string) http.RoundTripper {
	return &tokenTransport{token: token, base: http.DefaultTransport}
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	q := req.URL.Query()
	q.Set("token", t.token)
	req.URL.RawQuery = q.Encode()
	return t.base.RoundTrip(req)
}

func (u *upstream) getClient(ctx context.Context, ip string) (*api.ClientView, int, error) {
	var view api.ClientView
	status, err := u.getJSON(ctx, fmt.Sprintf("%s/api/client/%s", u.base, ip), &view)
	return &view, status, err
}

func (u *upstream) getClients(ctx context.Context) (*api.ClientsResponse, error) {
	var resp api.ClientsResponse
	_, err := u.getJSON(ctx, fmt.Sprintf("%s/api/clients", u.base), &resp)
	return &resp, err
}

func (u *upstream) healthy(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.base+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (u *upstream) getJSON(ctx context.Context, url string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("upstream %s returned status %d", u.name, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("upstream %s: decode response: %w", u.name, err)
	}
	return resp.StatusCode, nil
}
