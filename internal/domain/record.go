package domain

import (
	"strings"
	"time"
)

// DefaultWindow is the aggregation granularity used by every rule.
const DefaultWindow = time.Minute

type Action string

const (
	ActionAccept  Action = "ACCEPT"
	ActionDeny    Action = "DENY"
	ActionUnknown Action = "UNKNOWN"
)

// ParseAction maps a raw firewall action onto the known set.
func ParseAction(s string) Action {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ACCEPT":
		return ActionAccept
	case "DENY":
		return ActionDeny
	default:
		return ActionUnknown
	}
}

// LogRecord is one parsed firewall log row. Records are treated as
// immutable once the ingestor has produced them.
type LogRecord struct {
	Timestamp          time.Time `json:"timestamp"`
	SourceAddress      string    `json:"src_ip"`
	DestinationAddress string    `json:"dst_ip"`
	Port               int       `json:"port"`
	Action             Action    `json:"action"`
	Reason             string    `json:"reason"`
	Line               int       `json:"line,omitempty"`
}

func (r LogRecord) IsDeny() bool {
	return r.Action == ActionDeny
}

// HasSource reports whether the source address survived validation.
func (r LogRecord) HasSource() bool {
	return r.SourceAddress != ""
}

// Window returns the window the record falls in for the given granularity.
func (r LogRecord) Window(granularity time.Duration) time.Time {
	return TruncateWindow(r.Timestamp, granularity)
}

// TruncateWindow floors t to granularity in UTC. A non-positive
// granularity falls back to DefaultWindow.
func TruncateWindow(t time.Time, granularity time.Duration) time.Time {
	if granularity <= 0 {
		granularity = DefaultWindow
	}
	return t.UTC().Truncate(granularity)
}
