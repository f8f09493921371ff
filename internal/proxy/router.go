package proxy

import "net"

// routeFor returns the upstream whose inferred/configured /24 subnet
// contains ip, or nil if none matches.
func routeFor(upstreams []*upstream, ip net.IP) *upstream {
	for _, u := range upstreams {
		if u.subnet.Contains(ip) {
			return u
		}
	}
	return nil
}
