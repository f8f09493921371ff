// Package notify defines the notification sink port consumed by the lease
// store's lease-creation and renewal paths. Per spec.md the real notification sink (a
// messaging client) is an external collaborator described only by this
// interface; the logging adapter here stands in for it.
package notify

import (
	"net"

	"github.com/rs/zerolog/log"
)

// Sink receives device lifecycle notifications, per spec.md §9's port
// capability set {notify_new_device, notify_inactive_device}.
type Sink interface {
	NotifyNewDevice(mac net.HardwareAddr, ip net.IP, hostname string)
	NotifyInactiveDevice(mac net.HardwareAddr, ip net.IP, hostname, humanDelta string)
}

// LoggingSink is the default Sink: it logs at info level rather than
// dispatching to a real messaging backend.
type LoggingSink struct{}

func NewLoggingSink() *LoggingSink {
	return &LoggingSink{}
}

func (LoggingSink) NotifyNewDevice(mac net.HardwareAddr, ip net.IP, hostname string) {
	log.Info().
		Str("mac", mac.String()).
		Str("ip", ip.String()).
		Str("hostname", hostname).
		Msg("new device notification")
}

func (LoggingSink) NotifyInactiveDevice(mac net.HardwareAddr, ip net.IP, hostname, humanDelta string) {
	ev := log.Info().
		Str("mac", mac.String()).
		Str("hostname", hostname).
		Str("silent_for", humanDelta)
	if ip != nil {
		ev = ev.Str("ip", ip.String())
	}
	ev.Msg("inactive device notification")
}
