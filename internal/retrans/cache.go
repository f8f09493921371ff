// Package retrans memoizes the engine's last response to a DHCP transaction
// so that a client retrying the same DISCOVER/REQUEST/INFORM gets back the
// identical bytes, regardless of any lease-store mutation that happened in
// between.
package retrans

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// Key identifies a single DHCP transaction. Per spec.md §3, DISCOVER keys
// on (xid, mac), REQUEST on (xid, mac, requested_ip), INFORM on
// (xid, mac, ciaddr).
type Key struct {
	XID  uint32
	MAC  string
	Addr string // requested_ip or ciaddr, empty when not applicable
}

func NewKey(xid uint32, mac net.HardwareAddr, addr net.IP) Key {
	k := Key{XID: xid, MAC: mac.String()}
	if addr != nil {
		k.Addr = addr.String()
	}
	return k
}

func (k Key) String() string {
	return fmt.Sprintf("%08x/%s/%s", k.XID, k.MAC, k.Addr)
}

type entry struct {
	response []byte
	expireAt time.Time
}

// Cache is a coarse-locked, TTL-expiring map from transaction Key to the
// last response bytes sent for it.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]entry
	ttl     time.Duration
}

// New builds a Cache whose entries expire after ttl.
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[Key]entry),
		ttl:     ttl,
	}
}

// Get returns the cached response for key, if present and unexpired.
func (c *Cache) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expireAt) {
		return nil, false
	}
	return e.response, true
}

// Put stores response under key, expiring after the cache's configured TTL.
func (c *Cache) Put(key Key, response []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		response: response,
		expireAt: time.Now().Add(c.ttl),
	}
}

// Sweep removes every expired entry and returns how many were removed. It
// is meant to be called periodically by a background worker so the map
// doesn't grow unbounded between transactions.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expireAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len reports the current number of cached entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
