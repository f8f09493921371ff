package store

import (
	"context"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"

	"github.com/sashakarcz/irondhcp/internal/addr"
)

// CheckSubnetConsistency implements the startup consistency check: every
// live lease's address must fall inside the configured pool, and static
// leases are exempt since operators may fix an address outside the dynamic
// range on purpose. It returns the MACs of any dynamic lease found outside
// pool.
func (s *Store) CheckSubnetConsistency(ctx context.Context, pool addr.Pool) ([]string, error) {
	rows, err := s.leases.Query(ctx, `
		SELECT mac, ip FROM leases
		WHERE deleted_at IS NULL AND lease_type = 'DYNAMIC' AND ip IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leases for consistency check: %w", err)
	}
	defer rows.Close()

	var offenders []string
	for rows.Next() {
		var mac, ipStr string
		if err := rows.Scan(&mac, &ipStr); err != nil {
			return nil, fmt.Errorf("failed to scan lease row: %w", err)
		}
		ip, err := addr.ParseIPv4(ipStr)
		if err != nil {
			offenders = append(offenders, mac)
			continue
		}
		ipInt, _ := addr.ToInt(ip)
		if !pool.Contains(ipInt) {
			offenders = append(offenders, mac)
		}
	}
	return offenders, rows.Err()
}

// MigrateSubnet implements migrate_subnet (spec.md §4.2): for every live
// dynamic lease found outside the configured pool by
// CheckSubnetConsistency, the host bits of its current address are
// preserved onto the new network. If that candidate address falls inside
// the new pool and is unheld, it is assigned directly (ActionStaticAssigned
// marks the preserved-address path); otherwise the lowest free address in
// the new pool is picked instead (ActionDynamicAssigned). A lease that
// cannot be placed either way loses its address (ActionLeaseReset) and
// waits for the next DHCP exchange to re-allocate. Returns the number of
// leases migrated.
func (s *Store) MigrateSubnet(ctx context.Context, network net.IP, mask net.IPMask, pool addr.Pool) (int, error) {
	offenders, err := s.CheckSubnetConsistency(ctx, pool)
	if err != nil {
		return 0, err
	}

	netInt, err := addr.ToInt(network)
	if err != nil {
		return 0, fmt.Errorf("invalid migration network: %w", err)
	}
	maskInt, err := addr.ToInt(net.IP(mask))
	if err != nil {
		return 0, fmt.Errorf("invalid migration mask: %w", err)
	}

	for _, macStr := range offenders {
		hwAddr, err := net.ParseMAC(macStr)
		if err != nil {
			continue
		}

		if err := s.migrateOne(ctx, hwAddr, pool, netInt, maskInt); err != nil {
			return 0, err
		}
	}

	return len(offenders), nil
}

func (s *Store) migrateOne(ctx context.Context, mac net.HardwareAddr, pool addr.Pool, netInt, maskInt uint32) error {
	return s.withLeaseTx(ctx, func(tx pgx.Tx) error {
		l, err := getLeaseForUpdateByMAC(ctx, tx, mac, false)
		if err != nil {
			return fmt.Errorf("failed to read lease for migration: %w", err)
		}
		if l == nil || l.IP == nil {
			return nil
		}
		oldIP := l.IP

		oldIPInt, err := addr.ToInt(oldIP)
		if err != nil {
			return nil
		}
		candidate := (netInt & maskInt) | (oldIPInt &^ maskInt)

		taken, err := s.takenAddressesTx(ctx, tx, mac)
		if err != nil {
			return err
		}

		var newIP net.IP
		var action Action
		if pool.Contains(candidate) && !taken[candidate] {
			newIP = addr.FromInt(candidate)
			action = ActionStaticAssigned
		} else {
			pool.Each(func(ip uint32) bool {
				if !taken[ip] {
					newIP = addr.FromInt(ip)
					return false
				}
				return true
			})
			action = ActionDynamicAssigned
		}

		if newIP == nil {
			_, err := tx.Exec(ctx, `UPDATE leases SET ip = NULL, is_expired = TRUE, updated_at = now() WHERE id = $1`, l.ID)
			if err != nil {
				return fmt.Errorf("failed to reset lease during migration: %w", err)
			}
			return s.insertHistoryTx(ctx, tx, HistoryEvent{
				MAC: mac, Action: ActionLeaseReset, IP: oldIP, ChangeChannel: ChangeChannelWeb,
			})
		}

		_, err = tx.Exec(ctx, `UPDATE leases SET ip = $1, is_expired = FALSE, updated_at = now() WHERE id = $2`,
			newIP.String(), l.ID)
		if err != nil {
			return fmt.Errorf("failed to migrate lease: %w", err)
		}

		return s.insertHistoryTx(ctx, tx, HistoryEvent{
			MAC: mac, Action: action, IP: oldIP, NewIP: newIP, ChangeChannel: ChangeChannelWeb,
		})
	})
}

// takenAddressesTx is takenAddresses scoped to the migration transaction and
// excluding mac's own current row, so a lease can be re-assigned its own
// preserved-host-bits address without colliding with itself.
func (s *Store) takenAddressesTx(ctx context.Context, tx pgx.Tx, exclude net.HardwareAddr) (map[uint32]bool, error) {
	rows, err := tx.Query(ctx,
		`SELECT ip FROM leases WHERE deleted_at IS NULL AND ip IS NOT NULL AND mac <> $1`, exclude.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query taken addresses: %w", err)
	}
	defer rows.Close()

	taken := make(map[uint32]bool)
	for rows.Next() {
		var ipStr string
		if err := rows.Scan(&ipStr); err != nil {
			return nil, fmt.Errorf("failed to scan taken address: %w", err)
		}
		ip, err := addr.ParseIPv4(ipStr)
		if err != nil {
			continue
		}
		ipInt, _ := addr.ToInt(ip)
		taken[ipInt] = true
	}
	return taken, rows.Err()
}
