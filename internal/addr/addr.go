// Package addr provides the low-level IPv4 address arithmetic the lease
// store and DHCP engine build on: dotted-quad <-> integer conversion,
// subnet containment, and pool iteration as an inclusive integer range.
package addr

import (
	"fmt"
	"net"

	"github.com/sashakarcz/irondhcp/internal/dhcperr"
)

// ToInt converts a dotted-quad IPv4 address to a 32-bit unsigned host-order
// integer. It fails with dhcperr.ErrInvalidAddress on anything that isn't a
// 4-byte IPv4 address.
func ToInt(ip net.IP) (uint32, error) {
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("%w: %q is not an IPv4 address", dhcperr.ErrInvalidAddress, ip)
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3]), nil
}

// FromInt converts a 32-bit unsigned integer back to a dotted-quad IPv4
// address.
func FromInt(i uint32) net.IP {
	return net.IPv4(byte(i>>24), byte(i>>16), byte(i>>8), byte(i))
}

// ParseIPv4 parses a dotted-quad string, failing with dhcperr.ErrInvalidAddress
// rather than returning a bare nil like net.ParseIP.
func ParseIPv4(s string) (net.IP, error) {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return nil, fmt.Errorf("%w: %q", dhcperr.ErrInvalidAddress, s)
	}
	return ip.To4(), nil
}

// InSubnet reports whether ip and network share the same network bits
// under mask: (ip & mask) == (network & mask).
func InSubnet(ip, network, mask net.IP) bool {
	ipv4 := ip.To4()
	netv4 := network.To4()
	maskv4 := mask.To4()
	if ipv4 == nil || netv4 == nil || maskv4 == nil {
		return false
	}
	for i := 0; i < 4; i++ {
		if ipv4[i]&maskv4[i] != netv4[i]&maskv4[i] {
			return false
		}
	}
	return true
}

// Pool is a closed integer interval of assignable IPv4 addresses, expressed
// as [Start, End] host-order integers. Callers must ensure Start <= End and
// that both endpoints lie inside the server's subnet; Pool itself does not
// re-validate subnet membership.
type Pool struct {
	Start uint32
	End   uint32
}

// NewPool builds a Pool from dotted-quad start/end strings, validating
// Start <= End.
func NewPool(start, end string) (Pool, error) {
	s, err := ParseIPv4(start)
	if err != nil {
		return Pool{}, err
	}
	e, err := ParseIPv4(end)
	if err != nil {
		return Pool{}, err
	}
	si, _ := ToInt(s)
	ei, _ := ToInt(e)
	if si > ei {
		return Pool{}, fmt.Errorf("%w: pool_start %s must be <= pool_end %s", dhcperr.ErrInvalidAddress, start, end)
	}
	return Pool{Start: si, End: ei}, nil
}

// Contains reports whether the integer address ip falls within the pool.
func (p Pool) Contains(ip uint32) bool {
	return ip >= p.Start && ip <= p.End
}

// Size returns the number of addresses in the pool.
func (p Pool) Size() uint32 {
	return p.End - p.Start + 1
}

// Each calls fn for every address in the pool, in ascending order, until fn
// returns false or the pool is exhausted.
func (p Pool) Each(fn func(ip uint32) bool) {
	for ip := p.Start; ; ip++ {
		if !fn(ip) {
			return
		}
		if ip == p.End {
			return
		}
	}
}
