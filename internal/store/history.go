package store

import (
	"context"
	"fmt"
	"net"
	"time"
)

// insertHistory appends one audit row. History rows are never mutated once
// written, and never deleted outside of PruneHistory's retention sweep.
func (s *Store) insertHistory(ctx context.Context, ev HistoryEvent) error {
	query := `
		INSERT INTO lease_history (mac, action, timestamp, ip, new_ip, name, new_name, description, client_id, change_channel)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	_, err := s.history.Exec(ctx, query,
		ev.MAC.String(), string(ev.Action), ev.Timestamp,
		ipOrNil(ev.IP), ipOrNil(ev.NewIP), nullableStr(ev.Name), nullableStr(ev.NewName),
		nullableStr(ev.Description), nullableStr(ev.ClientID), string(ev.ChangeChannel),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history event: %w", err)
	}
	return nil
}

// History returns the most recent events for mac, newest first, capped at
// the configured web_lease_history_limit.
func (s *Store) History(ctx context.Context, mac net.HardwareAddr, limit int) ([]HistoryEvent, error) {
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}

	query := `
		SELECT mac, action, timestamp, ip, new_ip, name, new_name, description, client_id, change_channel
		FROM lease_history
		WHERE mac = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`

	rows, err := s.history.Query(ctx, query, mac.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var events []HistoryEvent
	for rows.Next() {
		var ev HistoryEvent
		var macStr, action, changeChannel string
		var ip, newIP, name, newName, description, clientID *string

		if err := rows.Scan(&macStr, &action, &ev.Timestamp, &ip, &newIP, &name, &newName, &description, &clientID, &changeChannel); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}

		ev.MAC, _ = net.ParseMAC(macStr)
		ev.Action = Action(action)
		ev.ChangeChannel = ChangeChannel(changeChannel)
		if ip != nil {
			ev.IP = net.ParseIP(*ip)
		}
		if newIP != nil {
			ev.NewIP = net.ParseIP(*newIP)
		}
		if name != nil {
			ev.Name = *name
		}
		if newName != nil {
			ev.NewName = *newName
		}
		if description != nil {
			ev.Description = *description
		}
		if clientID != nil {
			ev.ClientID = *clientID
		}

		events = append(events, ev)
	}

	return events, rows.Err()
}

// PruneHistory deletes LEASE_RENEWED and INFORM rows older than the
// configured retention window. All other actions are kept indefinitely.
// A zero retention window disables pruning (history_cleanup_days: 0).
func (s *Store) PruneHistory(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}

	query := `
		DELETE FROM lease_history
		WHERE action IN ('LEASE_RENEWED', 'INFORM') AND timestamp < $1
	`

	cutoff := time.Now().Add(-s.retention)
	result, err := s.history.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return result.RowsAffected(), nil
}

func ipOrNil(ip net.IP) *string {
	if ip == nil {
		return nil
	}
	s := ip.String()
	return &s
}

func nullableStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
