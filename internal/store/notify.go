package store

import (
	"fmt"
	"net"
	"time"
)

// notifyNewDevice reports a freshly-created lease row to the configured
// sink, if any. Called outside the lease transaction: notification is
// best-effort and must never roll back a committed lease.
func (s *Store) notifyNewDevice(mac net.HardwareAddr, ip net.IP, hostname string) {
	if s.notify == nil {
		return
	}
	s.notify.NotifyNewDevice(mac, ip, hostname)
}

// notifyIfInactive fires an inactive-device notification when the gap
// since lastSeen exceeds the configured inactivity threshold (spec.md
// §4.2's renew_lease rule).
func (s *Store) notifyIfInactive(mac net.HardwareAddr, ip net.IP, hostname string, lastSeen time.Time) {
	if s.notify == nil || s.inactivityThreshold <= 0 {
		return
	}
	delta := time.Since(lastSeen)
	if delta <= s.inactivityThreshold {
		return
	}
	s.notify.NotifyInactiveDevice(mac, ip, hostname, humanDelta(delta))
}

// humanDelta renders a duration as a coarse "Xd Yh"-style string for the
// inactive-device notification's human_delta field.
func humanDelta(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
}
