package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sashakarcz/irondhcp/internal/addr"
	"github.com/sashakarcz/irondhcp/internal/dhcperr"
)

const leaseColumns = `id, mac, hostname, ip, client_id, lease_type, expire_at,
	is_expired, is_blocked, trust_flag, is_custom_hostname, create_channel,
	created_at, updated_at, deleted_at`

func scanLease(row pgx.Row) (*Lease, error) {
	var l Lease
	var macStr string
	var ip *string
	var leaseType, createChannel string

	err := row.Scan(&l.ID, &macStr, &l.Hostname, &ip, &l.ClientID, &leaseType, &l.ExpireAt,
		&l.IsExpired, &l.IsBlocked, &l.TrustFlag, &l.IsCustomHostname, &createChannel,
		&l.CreatedAt, &l.UpdatedAt, &l.DeletedAt)
	if err != nil {
		return nil, err
	}

	l.MAC, _ = net.ParseMAC(macStr)
	l.LeaseType = LeaseType(leaseType)
	l.CreateChannel = CreateChannel(createChannel)
	if ip != nil {
		l.IP = net.ParseIP(*ip)
	}
	return &l, nil
}

// GetByMAC returns the live lease for mac, or nil if none exists.
func (s *Store) GetByMAC(ctx context.Context, mac net.HardwareAddr) (*Lease, error) {
	row := s.leases.QueryRow(ctx,
		`SELECT `+leaseColumns+` FROM leases WHERE mac = $1 AND deleted_at IS NULL`,
		mac.String())
	l, err := scanLease(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query lease by mac: %w", err)
	}
	return l, nil
}

// GetByIP returns the live lease holding ip, or nil if none exists.
func (s *Store) GetByIP(ctx context.Context, ip net.IP) (*Lease, error) {
	row := s.leases.QueryRow(ctx,
		`SELECT `+leaseColumns+` FROM leases WHERE ip = $1 AND deleted_at IS NULL`,
		ip.String())
	l, err := scanLease(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query lease by ip: %w", err)
	}
	return l, nil
}

// GetAllLive returns every non soft-deleted lease, ordered by id.
func (s *Store) GetAllLive(ctx context.Context) ([]*Lease, error) {
	rows, err := s.leases.Query(ctx,
		`SELECT `+leaseColumns+` FROM leases WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query live leases: %w", err)
	}
	defer rows.Close()

	var out []*Lease
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lease row: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CountLive returns the number of live leases with an assigned address
// (active) and the number marked expired, for the metrics snapshot.
func (s *Store) CountLive(ctx context.Context) (active, expired int, err error) {
	row := s.leases.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE ip IS NOT NULL AND NOT is_expired),
			count(*) FILTER (WHERE is_expired)
		FROM leases WHERE deleted_at IS NULL
	`)
	if err := row.Scan(&active, &expired); err != nil {
		return 0, 0, fmt.Errorf("failed to count leases: %w", err)
	}
	return active, expired, nil
}

// withLeaseTx runs fn inside a lease-database transaction.
func (s *Store) withLeaseTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.leases.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func getLeaseForUpdateByMAC(ctx context.Context, tx pgx.Tx, mac net.HardwareAddr, includeDeleted bool) (*Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE mac = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` FOR UPDATE`

	row := tx.QueryRow(ctx, query, mac.String())
	l, err := scanLease(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

// FindOrAllocate implements find_or_allocate(mac, client_id, pool): an
// existing static lease keeps its address unconditionally; an existing
// non-expired dynamic lease keeps its address when it still falls inside
// pool; otherwise the lowest free address in pool is assigned. Returns
// dhcperr.ErrPoolExhausted when no address is available.
func (s *Store) FindOrAllocate(ctx context.Context, mac net.HardwareAddr, clientID string, pool addr.Pool) (net.IP, LeaseType, error) {
	existing, err := s.GetByMAC(ctx, mac)
	if err != nil {
		return nil, "", err
	}

	if existing != nil {
		if existing.LeaseType == LeaseTypeStatic && existing.IP != nil {
			return existing.IP, LeaseTypeStatic, nil
		}
		if existing.LeaseType == LeaseTypeDynamic && existing.IP != nil && !existing.IsExpired {
			ipInt, err := addr.ToInt(existing.IP)
			if err == nil && pool.Contains(ipInt) {
				return existing.IP, LeaseTypeDynamic, nil
			}
		}
	}

	taken, err := s.takenAddresses(ctx)
	if err != nil {
		return nil, "", err
	}

	var free net.IP
	pool.Each(func(ip uint32) bool {
		if !taken[ip] {
			free = addr.FromInt(ip)
			return false
		}
		return true
	})

	if free == nil {
		return nil, "", fmt.Errorf("%w: pool exhausted", dhcperr.ErrPoolExhausted)
	}
	return free, LeaseTypeDynamic, nil
}

func (s *Store) takenAddresses(ctx context.Context) (map[uint32]bool, error) {
	rows, err := s.leases.Query(ctx,
		`SELECT ip FROM leases WHERE deleted_at IS NULL AND ip IS NOT NULL`)
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

// CreateLease implements create_lease. If a soft-deleted row already exists
// for mac, it is restored (DEVICE_RESTORED) rather than shadowed by a
// second row, since the unique live-mac index only constrains live rows.
func (s *Store) CreateLease(ctx context.Context, mac net.HardwareAddr, ip net.IP, hostname, clientID string, leaseType LeaseType, createChannel CreateChannel, changeChannel ChangeChannel, leaseDuration time.Duration) (*Lease, error) {
	var result *Lease
	var isNewDevice bool

	err := s.withLeaseTx(ctx, func(tx pgx.Tx) error {
		deleted, err := getLeaseForUpdateByMAC(ctx, tx, mac, true)
		if err != nil {
			return fmt.Errorf("failed to look up existing lease: %w", err)
		}

		var expireAt *time.Time
		if leaseType == LeaseTypeDynamic {
			t := time.Now().Add(leaseDuration)
			expireAt = &t
		}

		isCustomHostname := hostname != "" && changeChannel == ChangeChannelWeb

		if deleted != nil && deleted.DeletedAt != nil {
			row := tx.QueryRow(ctx, `
				UPDATE leases SET
					hostname = $1, ip = $2, client_id = $3, lease_type = $4,
					expire_at = $5, is_expired = FALSE, is_blocked = FALSE,
					is_custom_hostname = $6, create_channel = $7,
					updated_at = now(), deleted_at = NULL
				WHERE id = $8
				RETURNING `+leaseColumns,
				hostname, ipOrNil(ip), clientID, string(leaseType), expireAt,
				isCustomHostname, string(createChannel), deleted.ID)
			result, err = scanLease(row)
			if err != nil {
				return fmt.Errorf("failed to restore lease: %w", err)
			}

			if err := s.insertHistoryTx(ctx, tx, HistoryEvent{
				MAC: mac, Action: ActionDeviceRestored, IP: ip, Name: hostname,
				ClientID: clientID, ChangeChannel: changeChannel,
			}); err != nil {
				return err
			}
		} else {
			row := tx.QueryRow(ctx, `
				INSERT INTO leases (mac, hostname, ip, client_id, lease_type, expire_at,
					is_custom_hostname, create_channel)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING `+leaseColumns,
				mac.String(), hostname, ipOrNil(ip), clientID, string(leaseType), expireAt,
				isCustomHostname, string(createChannel))
			result, err = scanLease(row)
			if err != nil {
				return fmt.Errorf("failed to insert lease: %w", err)
			}
			isNewDevice = true
		}

		if err := s.insertHistoryTx(ctx, tx, HistoryEvent{
			MAC: mac, Action: ActionClientCreate, IP: ip, Name: hostname,
			ClientID: clientID, ChangeChannel: changeChannel,
		}); err != nil {
			return err
		}

		if leaseType == LeaseTypeDynamic {
			return s.insertHistoryTx(ctx, tx, HistoryEvent{
				MAC: mac, Action: ActionLeaseIssued, IP: ip, ChangeChannel: changeChannel,
			})
		}
		return s.insertHistoryTx(ctx, tx, HistoryEvent{
			MAC: mac, Action: ActionStaticAssigned, IP: ip, ChangeChannel: changeChannel,
		})
	})
	if err != nil {
		return nil, err
	}
	if isNewDevice {
		s.notifyNewDevice(mac, result.IP, result.Hostname)
	}
	return result, nil
}

// insertHistoryTx writes a history row through the history pool. History
// lives in its own database, so it cannot participate in the lease
// transaction; a history write failure still fails the overall call so
// callers don't silently lose an audit trail.
func (s *Store) insertHistoryTx(ctx context.Context, _ pgx.Tx, ev HistoryEvent) error {
	return s.insertHistory(ctx, ev)
}

// UpdateIP implements update_ip. A no-op when newIP equals the current
// address: no row update, no history event. For a DYNAMIC lease this also
// resets expire_at to now+leaseDuration and clears is_expired, per spec.md
// §4.2 — otherwise a lease committed through this path (e.g. a REQUEST for
// a previously-expired mac) would end up with an address but a stale
// expire_at and is_expired still set, violating the §3 invariant tying
// ip==NULL to is_expired.
func (s *Store) UpdateIP(ctx context.Context, mac net.HardwareAddr, newIP net.IP, clientID string, changeChannel ChangeChannel, leaseDuration time.Duration) error {
	return s.withLeaseTx(ctx, func(tx pgx.Tx) error {
		l, err := getLeaseForUpdateByMAC(ctx, tx, mac, false)
		if err != nil {
			return fmt.Errorf("failed to look up lease: %w", err)
		}
		if l == nil {
			return fmt.Errorf("%w: mac %s", dhcperr.ErrNotFound, mac)
		}
		if l.IP != nil && l.IP.Equal(newIP) {
			return nil
		}

		if l.LeaseType == LeaseTypeDynamic {
			newExpiry := time.Now().Add(leaseDuration)
			_, err = tx.Exec(ctx, `UPDATE leases SET ip = $1, client_id = $2, expire_at = $3, is_expired = FALSE, updated_at = now() WHERE id = $4`,
				ipOrNil(newIP), clientID, newExpiry, l.ID)
		} else {
			_, err = tx.Exec(ctx, `UPDATE leases SET ip = $1, client_id = $2, updated_at = now() WHERE id = $3`,
				ipOrNil(newIP), clientID, l.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to update ip: %w", err)
		}

		action := ActionLeaseIssued
		if l.LeaseType == LeaseTypeStatic {
			action = ActionStaticAssigned
		}
		return s.insertHistoryTx(ctx, tx, HistoryEvent{
			MAC: mac, Action: action, IP: l.IP, NewIP: newIP,
			ClientID: clientID, ChangeChannel: changeChannel,
		})
	})
}

// UpdateHostname implements update_hostname. DHCP-channel updates are
// suppressed once an operator has set a custom hostname through the web
// channel.
func (s *Store) UpdateHostname(ctx context.Context, mac net.HardwareAddr, hostname string, changeChannel ChangeChannel) error {
	return s.withLeaseTx(ctx, func(tx pgx.Tx) error {
		l, err := getLeaseForUpdateByMAC(ctx, tx, mac, false)
		if err != nil {
			return fmt.Errorf("failed to look up lease: %w", err)
		}
		if l == nil {
			return fmt.Errorf("%w: mac %s", dhcperr.ErrNotFound, mac)
		}
		if l.IsBlocked {
			return nil
		}
		if changeChannel == ChangeChannelDHCP && l.IsCustomHostname {
			return nil
		}
		if l.Hostname == hostname {
			return nil
		}

		isCustom := l.IsCustomHostname || changeChannel == ChangeChannelWeb
		_, err = tx.Exec(ctx, `UPDATE leases SET hostname = $1, is_custom_hostname = $2, updated_at = now() WHERE id = $3`,
			hostname, isCustom, l.ID)
		if err != nil {
			return fmt.Errorf("failed to update hostname: %w", err)
		}

		return s.insertHistoryTx(ctx, tx, HistoryEvent{
			MAC: mac, Action: ActionHostnameUpdated, Name: l.Hostname, NewName: hostname,
			ChangeChannel: changeChannel,
		})
	})
}

// UpdateLeaseType implements update_lease_type: flips a device between
// DYNAMIC and STATIC, clearing or assigning expire_at accordingly.
func (s *Store) UpdateLeaseType(ctx context.Context, mac net.HardwareAddr, leaseType LeaseType, leaseDuration time.Duration, changeChannel ChangeChannel) error {
	return s.withLeaseTx(ctx, func(tx pgx.Tx) error {
		l, err := getLeaseForUpdateByMAC(ctx, tx, mac, false)
		if err != nil {
			return fmt.Errorf("failed to look up lease: %w", err)
		}
		if l == nil {
			return fmt.Errorf("%w: mac %s", dhcperr.ErrNotFound, mac)
		}
		if l.LeaseType == leaseType {
			return nil
		}

		var expireAt *time.Time
		if leaseType == LeaseTypeDynamic {
			t := time.Now().Add(leaseDuration)
			expireAt = &t
		}

		_, err = tx.Exec(ctx, `UPDATE leases SET lease_type = $1, expire_at = $2, is_expired = FALSE, updated_at = now() WHERE id = $3`,
			string(leaseType), expireAt, l.ID)
		if err != nil {
			return fmt.Errorf("failed to update lease type: %w", err)
		}

		action := ActionDynamicAssigned
		if leaseType == LeaseTypeStatic {
			action = ActionStaticAssigned
		}
		return s.insertHistoryTx(ctx, tx, HistoryEvent{
			MAC: mac, Action: action, IP: l.IP, ChangeChannel: changeChannel,
		})
	})
}

// RenewLease implements renew_lease: bumps expire_at for a DYNAMIC lease.
// No-op for STATIC leases, which never expire.
func (s *Store) RenewLease(ctx context.Context, mac net.HardwareAddr, leaseDuration time.Duration) error {
	var lastSeen time.Time
	var ip net.IP
	var hostname string
	var renewed bool

	err := s.withLeaseTx(ctx, func(tx pgx.Tx) error {
		l, err := getLeaseForUpdateByMAC(ctx, tx, mac, false)
		if err != nil {
			return fmt.Errorf("failed to look up lease: %w", err)
		}
		if l == nil {
			return fmt.Errorf("%w: mac %s", dhcperr.ErrNotFound, mac)
		}
		if l.LeaseType != LeaseTypeDynamic {
			return nil
		}

		newExpiry := time.Now().Add(leaseDuration)
		_, err = tx.Exec(ctx, `UPDATE leases SET expire_at = $1, is_expired = FALSE, updated_at = now() WHERE id = $2`,
			newExpiry, l.ID)
		if err != nil {
			return fmt.Errorf("failed to renew lease: %w", err)
		}

		lastSeen, ip, hostname, renewed = l.UpdatedAt, l.IP, l.Hostname, true

		return s.insertHistoryTx(ctx, tx, HistoryEvent{
			MAC: mac, Action: ActionLeaseRenewed, IP: l.IP, ChangeChannel: ChangeChannelDHCP,
		})
	})
	if err != nil {
		return err
	}
	if renewed {
		s.notifyIfInactive(mac, ip, hostname, lastSeen)
	}
	return nil
}

// MarkExpiredLeases implements mark_expired_leases: the periodic sweep that
// reclaims every DYNAMIC live lease whose expire_at has passed.
func (s *Store) MarkExpiredLeases(ctx context.Context) (int, error) {
	rows, err := s.leases.Query(ctx, `
		SELECT mac, ip FROM leases
		WHERE deleted_at IS NULL AND lease_type = 'DYNAMIC' AND is_expired = FALSE
			AND expire_at IS NOT NULL AND expire_at <= now()
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to query expired leases: %w", err)
	}

	type expiring struct {
		mac net.HardwareAddr
		ip  net.IP
	}
	var batch []expiring
	for rows.Next() {
		var macStr string
		var ip *string
		if err := rows.Scan(&macStr, &ip); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan expiring lease: %w", err)
		}
		mac, _ := net.ParseMAC(macStr)
		var ipAddr net.IP
		if ip != nil {
			ipAddr = net.ParseIP(*ip)
		}
		batch = append(batch, expiring{mac: mac, ip: ipAddr})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, e := range batch {
		err := s.withLeaseTx(ctx, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `
				UPDATE leases SET is_expired = TRUE, ip = NULL, updated_at = now()
				WHERE mac = $1 AND deleted_at IS NULL AND lease_type = 'DYNAMIC' AND is_expired = FALSE
			`, e.mac.String())
			if err != nil {
				return fmt.Errorf("failed to mark lease expired: %w", err)
			}
			return s.insertHistoryTx(ctx, tx, HistoryEvent{
				MAC: e.mac, Action: ActionLeaseExpired, IP: e.ip, ChangeChannel: ChangeChannelDHCP,
			})
		})
		if err != nil {
			return 0, err
		}
	}

	return len(batch), nil
}

// MarkLeaseExpired implements the single-row variant triggered by a client
// DHCPRELEASE: DYNAMIC only, recorded as LEASE_RELEASED rather than
// LEASE_EXPIRED.
func (s *Store) MarkLeaseExpired(ctx context.Context, mac net.HardwareAddr, ip net.IP) error {
	return s.withLeaseTx(ctx, func(tx pgx.Tx) error {
		l, err := getLeaseForUpdateByMAC(ctx, tx, mac, false)
		if err != nil {
			return fmt.Errorf("failed to look up lease: %w", err)
		}
		if l == nil || l.LeaseType != LeaseTypeDynamic {
			return nil
		}

		_, err = tx.Exec(ctx, `UPDATE leases SET is_expired = TRUE, ip = NULL, updated_at = now() WHERE id = $1`, l.ID)
		if err != nil {
			return fmt.Errorf("failed to release lease: %w", err)
		}

		return s.insertHistoryTx(ctx, tx, HistoryEvent{
			MAC: mac, Action: ActionLeaseReleased, IP: ip, ChangeChannel: ChangeChannelDHCP,
		})
	})
}

// DeclineLease implements decline_lease: the offered address is abandoned
// and marked expired, a fresh address is allocated from pool, and both
// events are recorded. Returns the freshly allocated address, or nil if the
// pool is now exhausted.
func (s *Store) DeclineLease(ctx context.Context, mac net.HardwareAddr, ip net.IP, pool addr.Pool, leaseDuration time.Duration) (net.IP, error) {
	err := s.withLeaseTx(ctx, func(tx pgx.Tx) error {
		l, err := getLeaseForUpdateByMAC(ctx, tx, mac, false)
		if err != nil {
			return fmt.Errorf("failed to look up lease: %w", err)
		}
		if l == nil {
			return nil
		}

		_, err = tx.Exec(ctx, `UPDATE leases SET is_expired = TRUE, ip = NULL, updated_at = now() WHERE id = $1`, l.ID)
		if err != nil {
			return fmt.Errorf("failed to decline lease: %w", err)
		}

		return s.insertHistoryTx(ctx, tx, HistoryEvent{
			MAC: mac, Action: ActionDecline, IP: ip, ChangeChannel: ChangeChannelDHCP,
		})
	})
	if err != nil {
		return nil, err
	}

	newIP, leaseType, err := s.FindOrAllocate(ctx, mac, "", pool)
	if errors.Is(err, dhcperr.ErrPoolExhausted) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.UpdateIP(ctx, mac, newIP, "", ChangeChannelDHCP, leaseDuration); err != nil {
		return nil, err
	}
	_ = leaseType
	return newIP, nil
}

// NakLease implements nak_lease: records that a requested address was
// refused. No lease row is mutated.
func (s *Store) NakLease(ctx context.Context, mac net.HardwareAddr, requestedIP net.IP) error {
	return s.insertHistory(ctx, HistoryEvent{
		MAC: mac, Action: ActionNak, IP: requestedIP, ChangeChannel: ChangeChannelDHCP,
	})
}

// InformLease implements inform_lease: records a DHCPINFORM exchange. No
// lease row is created or mutated.
func (s *Store) InformLease(ctx context.Context, mac net.HardwareAddr, ip net.IP) error {
	return s.insertHistory(ctx, HistoryEvent{
		MAC: mac, Action: ActionInform, IP: ip, ChangeChannel: ChangeChannelDHCP,
	})
}

// BlockDevice implements block_device: the device loses its address
// immediately and every future request is NAKed until unblocked.
func (s *Store) BlockDevice(ctx context.Context, mac net.HardwareAddr, changeChannel ChangeChannel) error {
	return s.withLeaseTx(ctx, func(tx pgx.Tx) error {
		l, err := getLeaseForUpdateByMAC(ctx, tx, mac, false)
		if err != nil {
			return fmt.Errorf("failed to look up lease: %w", err)
		}
		if l == nil {
			return fmt.Errorf("%w: mac %s", dhcperr.ErrNotFound, mac)
		}
		if l.IsBlocked {
			return nil
		}

		_, err = tx.Exec(ctx, `UPDATE leases SET is_blocked = TRUE, is_expired = TRUE, ip = NULL, updated_at = now() WHERE id = $1`, l.ID)
		if err != nil {
			return fmt.Errorf("failed to block device: %w", err)
		}

		return s.insertHistoryTx(ctx, tx, HistoryEvent{
			MAC: mac, Action: ActionDeviceBlocked, IP: l.IP, ChangeChannel: changeChannel,
		})
	})
}

// UnblockDevice implements unblock_device.
func (s *Store) UnblockDevice(ctx context.Context, mac net.HardwareAddr, changeChannel ChangeChannel) error {
	return s.withLeaseTx(ctx, func(tx pgx.Tx) error {
		l, err := getLeaseForUpdateByMAC(ctx, tx, mac, false)
		if err != nil {
			return fmt.Errorf("failed to look up lease: %w", err)
		}
		if l == nil {
			return fmt.Errorf("%w: mac %s", dhcperr.ErrNotFound, mac)
		}
		if !l.IsBlocked {
			return nil
		}

		_, err = tx.Exec(ctx, `UPDATE leases SET is_blocked = FALSE, updated_at = now() WHERE id = $1`, l.ID)
		if err != nil {
			return fmt.Errorf("failed to unblock device: %w", err)
		}

		return s.insertHistoryTx(ctx, tx, HistoryEvent{
			MAC: mac, Action: ActionDeviceUnblocked, ChangeChannel: changeChannel,
		})
	})
}

// SetTrustFlag implements set_trust_flag. A history event is emitted only
// on an actual transition, never on a redundant set-to-same-value call.
func (s *Store) SetTrustFlag(ctx context.Context, mac net.HardwareAddr, trusted bool, changeChannel ChangeChannel) error {
	return s.withLeaseTx(ctx, func(tx pgx.Tx) error {
		l, err := getLeaseForUpdateByMAC(ctx, tx, mac, false)
		if err != nil {
			return fmt.Errorf("failed to look up lease: %w", err)
		}
		if l == nil {
			return fmt.Errorf("%w: mac %s", dhcperr.ErrNotFound, mac)
		}
		if l.TrustFlag == trusted {
			return nil
		}

		_, err = tx.Exec(ctx, `UPDATE leases SET trust_flag = $1, updated_at = now() WHERE id = $2`, trusted, l.ID)
		if err != nil {
			return fmt.Errorf("failed to set trust flag: %w", err)
		}

		return s.insertHistoryTx(ctx, tx, HistoryEvent{
			MAC: mac, Action: ActionTrustChanged, ChangeChannel: changeChannel,
		})
	})
}

// Delete implements delete(mac): soft-deletes a lease row. Only permitted
// once the device holds no address and is already marked expired, so an
// active client can never be deleted out from under itself.
func (s *Store) Delete(ctx context.Context, mac net.HardwareAddr, changeChannel ChangeChannel) error {
	return s.withLeaseTx(ctx, func(tx pgx.Tx) error {
		l, err := getLeaseForUpdateByMAC(ctx, tx, mac, false)
		if err != nil {
			return fmt.Errorf("failed to look up lease: %w", err)
		}
		if l == nil {
			return fmt.Errorf("%w: mac %s", dhcperr.ErrNotFound, mac)
		}
		if l.IP != nil || !l.IsExpired {
			return fmt.Errorf("%w: lease for %s still holds an address", dhcperr.ErrInvalidTransition, mac)
		}

		_, err = tx.Exec(ctx, `UPDATE leases SET deleted_at = now(), updated_at = now() WHERE id = $1`, l.ID)
		if err != nil {
			return fmt.Errorf("failed to delete lease: %w", err)
		}

		return s.insertHistoryTx(ctx, tx, HistoryEvent{
			MAC: mac, Action: ActionDeviceDeleted, ChangeChannel: changeChannel,
		})
	})
}
