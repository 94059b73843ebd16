// Package detection implements threshold-based threat detection for fwradar.
//
// This file provides the window aggregator: records are bucketed into fixed
// time windows keyed by source address (and port when a rule asks for it).
//
// Properties:
//   - Pure: the same records always yield the same counts
//   - A record belongs to exactly one window (timestamp floored in UTC)
//   - Records with a blank source address never form a group
package detection

import (
	"sort"
	"time"

	"github.com/xoelrdgz/fwradar/internal/domain"
)

// RecordFilter selects the records a rule counts.
type RecordFilter func(rec domain.LogRecord) bool

// MaxTimelineWindows bounds the zero-filled deny timeline. Wider spans are
// reported sparsely, with only the windows that saw a deny.
const MaxTimelineWindows = 10000

// GroupKey identifies one aggregation bucket.
// Port is zero and ByPort false for rules keyed by source only.
// The window start is held as Unix seconds plus nanoseconds so every
// representable timestamp maps to a distinct key.
type GroupKey struct {
	SourceAddress string
	Port          int
	ByPort        bool
	WindowSec     int64
	WindowNsec    int32
}

// Window returns the bucket start as a UTC time.
func (k GroupKey) Window() time.Time {
	return time.Unix(k.WindowSec, int64(k.WindowNsec)).UTC()
}

type windowID struct {
	sec  int64
	nsec int32
}

func idOf(t time.Time) windowID {
	return windowID{sec: t.Unix(), nsec: int32(t.Nanosecond())}
}

func (w windowID) time() time.Time {
	return time.Unix(w.sec, int64(w.nsec)).UTC()
}

// Aggregate counts records passing filter per (source, [port], window).
//
// Parameters:
//   - records: Parsed log table
//   - filter: Record predicate (nil counts every record)
//   - byPort: Include the destination port in the key
//   - granularity: Window size (DefaultWindow if <= 0)
//
// Returns:
//   - Map of bucket -> count; iteration order carries no meaning
func Aggregate(records []domain.LogRecord, filter RecordFilter, byPort bool, granularity time.Duration) map[GroupKey]int {
	counts := make(map[GroupKey]int)
	for i := range records {
		rec := records[i]
		if !rec.HasSource() {
			continue
		}
		if filter != nil && !filter(rec) {
			continue
		}
		w := idOf(rec.Window(granularity))
		key := GroupKey{
			SourceAddress: rec.SourceAddress,
			WindowSec:     w.sec,
			WindowNsec:    w.nsec,
		}
		if byPort {
			key.Port = rec.Port
			key.ByPort = true
		}
		counts[key]++
	}
	return counts
}

// CountWindows returns the number of distinct windows covered by records.
func CountWindows(records []domain.LogRecord, granularity time.Duration) int {
	seen := make(map[windowID]struct{})
	for i := range records {
		seen[idOf(records[i].Window(granularity))] = struct{}{}
	}
	return len(seen)
}

// DenyCounts totals DENY records per source address, highest first.
// Ties are ordered by address so the output is stable.
func DenyCounts(records []domain.LogRecord) []domain.DenyCount {
	totals := make(map[string]int)
	for i := range records {
		if records[i].IsDeny() && records[i].HasSource() {
			totals[records[i].SourceAddress]++
		}
	}

	result := make([]domain.DenyCount, 0, len(totals))
	for addr, n := range totals {
		result = append(result, domain.DenyCount{SourceAddress: addr, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].SourceAddress < result[j].SourceAddress
	})
	return result
}

// DenyTimeline counts DENY records per window, oldest window first.
// When the span from the first to the last deny fits in MaxTimelineWindows,
// windows without denies are included as zero so the series can be charted
// directly. Otherwise only windows with denies are returned.
func DenyTimeline(records []domain.LogRecord, granularity time.Duration) []domain.WindowCount {
	if granularity <= 0 {
		granularity = domain.DefaultWindow
	}
	counts := make(map[windowID]int)
	var first, last time.Time
	for i := range records {
		if !records[i].IsDeny() {
			continue
		}
		w := records[i].Window(granularity)
		if len(counts) == 0 || w.Before(first) {
			first = w
		}
		if len(counts) == 0 || w.After(last) {
			last = w
		}
		counts[idOf(w)]++
	}
	if len(counts) == 0 {
		return nil
	}

	// Sub saturates on overflow, which also lands in the sparse branch.
	if span := last.Sub(first); span/granularity < MaxTimelineWindows {
		out := make([]domain.WindowCount, 0, span/granularity+1)
		for w := first; !w.After(last); w = w.Add(granularity) {
			out = append(out, domain.WindowCount{Window: w, Count: counts[idOf(w)]})
		}
		return out
	}

	out := make([]domain.WindowCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, domain.WindowCount{Window: id.time(), Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Window.Before(out[j].Window) })
	return out
}
