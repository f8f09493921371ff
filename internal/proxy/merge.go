package proxy

import (
	"encoding/binary"
	"net"
	"sort"
	"time"

	"github.com/sashakarcz/irondhcp/internal/config"
)

// apiTimeFormat mirrors internal/api's wire timestamp format so prefer_ip
// can compare expire_at/updated_at values received from upstreams.
const apiTimeFormat = "02.01.2006 15:04:05"

// mergeClients applies one of the three duplicate_mac_policy rules to the
// per-upstream client lists, concatenated in upstream iteration order.
func mergeClients(policy config.DuplicateMACPolicy, perUpstream [][]clientEntry) []clientEntry {
	var all []clientEntry
	for _, list := range perUpstream {
		all = append(all, list...)
	}

	switch policy {
	case config.DuplicatePolicyMerge:
		return mergeLastWriterWins(all)
	case config.DuplicatePolicyPreferIP:
		return mergePreferGreatestExpiry(all)
	default: // keep_all
		sortByIPDescending(all)
		return all
	}
}

func sortByIPDescending(entries []clientEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return ipToUint32(entries[i].IP) > ipToUint32(entries[j].IP)
	})
}

func ipToUint32(s string) uint32 {
	ip := net.ParseIP(s)
	if ip == nil {
		return 0
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(ip4)
}

// mergeLastWriterWins keeps, per MAC, the last occurrence in iteration
// order — found by walking the reversed list and keeping the first
// occurrence seen — then restores IP-descending order in the output.
func mergeLastWriterWins(all []clientEntry) []clientEntry {
	seen := map[string]bool{}
	var kept []clientEntry
	for i := len(all) - 1; i >= 0; i-- {
		e := all[i]
		if seen[e.MAC] {
			continue
		}
		seen[e.MAC] = true
		kept = append(kept, e)
	}
	sortByIPDescending(kept)
	return kept
}

// mergePreferGreatestExpiry keeps, per MAC, the entry with the greatest
// time, where each entry's time is its expire_at, or its updated_at when
// its own expire_at is absent or unparseable.
func mergePreferGreatestExpiry(all []clientEntry) []clientEntry {
	best := map[string]clientEntry{}
	for _, e := range all {
		cur, ok := best[e.MAC]
		if !ok || entryTime(e).After(entryTime(cur)) {
			best[e.MAC] = e
		}
	}

	kept := make([]clientEntry, 0, len(best))
	for _, e := range best {
		kept = append(kept, e)
	}
	sortByIPDescending(kept)
	return kept
}

func entryTime(e clientEntry) time.Time {
	if e.ExpireAt != nil {
		if t, err := time.Parse(apiTimeFormat, *e.ExpireAt); err == nil {
			return t
		}
	}
	if t, err := time.Parse(apiTimeFormat, e.UpdatedAt); err == nil {
		return t
	}
	return time.Time{}
}
