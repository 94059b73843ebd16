package detection

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xoelrdgz/fwradar/internal/domain"
	"github.com/xoelrdgz/fwradar/pkg/ahocorasick"
)

var ErrUnknownProfile = errors.New("unknown threshold profile")

// Thresholds holds the strict count each rule's group must exceed.
type Thresholds struct {
	PortScan     int `json:"port_scan" mapstructure:"port_scan"`
	BruteForce   int `json:"brute_force" mapstructure:"brute_force"`
	TrafficFlood int `json:"traffic_flood" mapstructure:"traffic_flood"`
}

const (
	ProfileStrict  = "strict"
	ProfileRelaxed = "relaxed"
)

// Both threshold sets are in use; neither is treated as canonical.
var profiles = map[string]Thresholds{
	ProfileStrict:  {PortScan: 8, BruteForce: 4, TrafficFlood: 40},
	ProfileRelaxed: {PortScan: 10, BruteForce: 5, TrafficFlood: 50},
}

// ProfileThresholds returns the named threshold set.
func ProfileThresholds(name string) (Thresholds, error) {
	t, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Thresholds{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return t, nil
}

// ProfileNames lists the available profiles in a stable order.
func ProfileNames() []string {
	return []string{ProfileStrict, ProfileRelaxed}
}

// Rule is one counting-threshold signature.
//
// A rule selects records with Filter, groups them by (source, window) or
// (source, port, window) and flags every group whose count is strictly
// greater than Threshold.
type Rule struct {
	Type      domain.ThreatType
	Level     domain.AlertLevel
	Filter    RecordFilter
	ByPort    bool
	FixedPort *int     // reported port for rules keyed by source only
	Reasons   []string // reason keywords the filter matches, for summaries
	Threshold int
}

// Evaluate flags the groups of records that exceed the rule threshold.
//
// Parameters:
//   - records: Parsed log table
//   - granularity: Window size
//
// Returns:
//   - One ThreatRecord per flagged group, unordered
func (r Rule) Evaluate(records []domain.LogRecord, granularity time.Duration) []domain.ThreatRecord {
	var threats []domain.ThreatRecord
	for key, count := range Aggregate(records, r.Filter, r.ByPort, granularity) {
		if count <= r.Threshold {
			continue
		}
		var port *int
		switch {
		case key.ByPort:
			port = domain.IntPtr(key.Port)
		case r.FixedPort != nil:
			port = domain.IntPtr(*r.FixedPort)
		}
		threats = append(threats, domain.NewThreatRecord(
			r.Type, r.Level, key.SourceAddress, port, count, r.Threshold, key.Window()))
	}
	return threats
}

// RuleConfig configures the three built-in rules.
type RuleConfig struct {
	Thresholds       Thresholds    // Strict count limits
	PortScanReasons  []string      // Reason substrings for port scans (default: PORT_SCAN, INVALID)
	BruteForceReason string        // Reason substring for auth failures (default: AUTH_FAIL)
	BruteForcePort   int           // Service port for brute force (default: 22)
	Window           time.Duration // Aggregation window (default: 1m)
}

// DefaultRuleConfig returns the strict profile with the stock signatures.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		Thresholds:       profiles[ProfileStrict],
		PortScanReasons:  []string{"PORT_SCAN", "INVALID"},
		BruteForceReason: "AUTH_FAIL",
		BruteForcePort:   22,
		Window:           domain.DefaultWindow,
	}
}

// Validate checks that the configuration can only produce meaningful rules.
func (c RuleConfig) Validate() error {
	if c.Thresholds.PortScan < 0 || c.Thresholds.BruteForce < 0 || c.Thresholds.TrafficFlood < 0 {
		return fmt.Errorf("thresholds must not be negative: %+v", c.Thresholds)
	}
	if len(c.PortScanReasons) == 0 {
		return errors.New("port scan rule needs at least one reason")
	}
	if strings.TrimSpace(c.BruteForceReason) == "" {
		return errors.New("brute force rule needs a reason")
	}
	if c.BruteForcePort < 1 || c.BruteForcePort > 65535 {
		return fmt.Errorf("brute force port %d out of range", c.BruteForcePort)
	}
	if c.Window < time.Second {
		return fmt.Errorf("window %s is shorter than one second", c.Window)
	}
	return nil
}

// BuildRules expands config into the ordered rule set.
// Order: port scan, brute force, traffic flood.
func BuildRules(c RuleConfig) []Rule {
	bfPort := c.BruteForcePort
	return []Rule{
		{
			Type:      domain.ThreatTypePortScan,
			Level:     domain.AlertLevelWarning,
			Filter:    DenyWithReason(c.PortScanReasons...),
			ByPort:    true,
			Reasons:   append([]string(nil), c.PortScanReasons...),
			Threshold: c.Thresholds.PortScan,
		},
		{
			Type:      domain.ThreatTypeBruteForce,
			Level:     domain.AlertLevelCritical,
			Filter:    All(DenyWithReason(c.BruteForceReason), OnPort(bfPort)),
			FixedPort: &bfPort,
			Reasons:   []string{c.BruteForceReason},
			Threshold: c.Thresholds.BruteForce,
		},
		{
			Type:      domain.ThreatTypeTrafficFlood,
			Level:     domain.AlertLevelCritical,
			Filter:    Deny(),
			Threshold: c.Thresholds.TrafficFlood,
		},
	}
}

// Deny matches every DENY record.
func Deny() RecordFilter {
	return func(rec domain.LogRecord) bool { return rec.IsDeny() }
}

// DenyWithReason matches DENY records whose reason contains any keyword.
// Matching is case-sensitive.
func DenyWithReason(keywords ...string) RecordFilter {
	kws := make([]string, 0, len(keywords))
	for _, k := range keywords {
		kws = append(kws, strings.TrimSpace(k))
	}
	matcher := ahocorasick.New(kws)
	return func(rec domain.LogRecord) bool {
		return rec.IsDeny() && matcher.Match(rec.Reason)
	}
}

func OnPort(port int) RecordFilter {
	return func(rec domain.LogRecord) bool { return rec.Port == port }
}

// All matches when every filter matches.
func All(filters ...RecordFilter) RecordFilter {
	return func(rec domain.LogRecord) bool {
		for _, f := range filters {
			if !f(rec) {
				return false
			}
		}
		return true
	}
}
