// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package meterclient

import (
	"strings"

	"github.com/abdulazizh/Meter-Reader/meterserver"
)

// MergeMeters builds the single authoritative meter list the UI shows.
// The base list is the remote fetch when it returned anything, else the
// local cache. For every meter with a locally pending reading, the
// pending capture replaces the base list's latest reading: the reader's
// most recent local action always wins over whatever the server knows,
// which may not yet include it.
func MergeMeters(remote, cached []meterserver.MeterWithReading, pending []Reading) []meterserver.MeterWithReading {
	base := remote
	if len(base) == 0 {
		base = cached
	}
	if len(base) == 0 {
		return []meterserver.MeterWithReading{}
	}

	// Most recent pending reading per meter. The pending list is newest
	// first, so the first occurrence wins.
	latestPending := make(map[string]*Reading, len(pending))
	for i := range pending {
		r := &pending[i]
		if _, seen := latestPending[r.MeterID]; !seen {
			latestPending[r.MeterID] = r
		}
	}

	merged := make([]meterserver.MeterWithReading, len(base))
	copy(merged, base)
	for i := range merged {
		if r, ok := latestPending[merged[i].ID]; ok {
			merged[i].LatestReading = r.AsRecord()
		}
	}
	return merged
}

// CompletedCount returns how many meters in the list have a latest
// reading, pending or remote
func CompletedCount(meters []meterserver.MeterWithReading) int {
	count := 0
	for _, m := range meters {
		if m.LatestReading != nil {
			count++
		}
	}
	return count
}

// FilterMeters returns the meters matching a search query across
// account number, subscriber name, meter number, and sequence. An
// empty query returns the list unchanged.
func FilterMeters(meters []meterserver.MeterWithReading, query string) []meterserver.MeterWithReading {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return meters
	}

	filtered := []meterserver.MeterWithReading{}
	for _, m := range meters {
		if strings.Contains(strings.ToLower(m.AccountNumber), q) ||
			strings.Contains(strings.ToLower(m.SubscriberName), q) ||
			strings.Contains(strings.ToLower(m.MeterNumber), q) ||
			strings.Contains(strings.ToLower(m.Sequence), q) {
			filtered = append(filtered, m)
		}
	}
	return filtered
}
