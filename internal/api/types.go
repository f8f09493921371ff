package api

import (
	"fmt"
	"time"

	"github.com/sashakarcz/irondhcp/internal/store"
)

// ClientView is the JSON shape returned for a single lease, per spec.md
// §4.6.
type ClientView struct {
	MAC              string  `json:"mac"`
	IP               string  `json:"ip"`
	Hostname         string  `json:"hostname"`
	ClientID         string  `json:"client_id"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
	ExpireAt         *string `json:"expire_at"`
	TimeToExpiry     string  `json:"time_to_expiry"`
	IsExpired        bool    `json:"is_expired"`
	LeaseType        string  `json:"lease_type"`
	IsBlocked        bool    `json:"is_blocked"`
	IsCustomHostname bool    `json:"is_custom_hostname"`
	TrustFlag        bool    `json:"trust_flag"`
	IsCached         bool    `json:"is_cached"`
}

// apiTimeFormat is the wire format for timestamps in HTTP API responses
// (spec.md §6: "DD.MM.YYYY HH:MM:SS"), distinct from the stored format
// used by the lease store's own timestamp columns.
const apiTimeFormat = "02.01.2006 15:04:05"

// ToClientView renders a store.Lease as the API's wire shape.
func ToClientView(l *store.Lease, cached bool) ClientView {
	v := ClientView{
		MAC:              l.MAC.String(),
		Hostname:         l.Hostname,
		ClientID:         l.ClientID,
		CreatedAt:        l.CreatedAt.Format(apiTimeFormat),
		UpdatedAt:        l.UpdatedAt.Format(apiTimeFormat),
		IsExpired:        l.IsExpired,
		LeaseType:        string(l.LeaseType),
		IsBlocked:        l.IsBlocked,
		IsCustomHostname: l.IsCustomHostname,
		TrustFlag:        l.TrustFlag,
		IsCached:         cached,
	}
	if l.IP != nil {
		v.IP = l.IP.String()
	}
	if l.ExpireAt != nil {
		s := l.ExpireAt.Format(apiTimeFormat)
		v.ExpireAt = &s
		v.TimeToExpiry = humanDuration(time.Until(*l.ExpireAt))
	} else {
		v.TimeToExpiry = "n/a"
	}
	return v
}

func humanDuration(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// ClientsResponse is the wire shape for GET /api/clients.
type ClientsResponse struct {
	Clients  []ClientView `json:"clients"`
	Total    int          `json:"total"`
	IsCached bool         `json:"is_cached"`
}

// ErrorResponse is the generic error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
