package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type ThreatType string

const (
	ThreatTypePortScan     ThreatType = "PORT_SCAN"
	ThreatTypeBruteForce   ThreatType = "BRUTE_FORCE"
	ThreatTypeTrafficFlood ThreatType = "TRAFFIC_FLOOD"
)

// DisplayName is the human label used by reports.
func (t ThreatType) DisplayName() string {
	switch t {
	case ThreatTypePortScan:
		return "Port Scan"
	case ThreatTypeBruteForce:
		return "Brute Force"
	case ThreatTypeTrafficFlood:
		return "Traffic Flood"
	default:
		return string(t)
	}
}

type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "INFO"
	AlertLevelWarning  AlertLevel = "WARNING"
	AlertLevelCritical AlertLevel = "CRITICAL"
)

// ThreatRecord is a single flagged group. Count always exceeds Threshold.
type ThreatRecord struct {
	ID            string     `json:"id"`
	Type          ThreatType `json:"type"`
	Level         AlertLevel `json:"level"`
	SourceAddress string     `json:"src_ip"`
	Port          *int       `json:"port"`
	Count         int        `json:"count"`
	Threshold     int        `json:"threshold"`
	Window        time.Time  `json:"window"`
}

func NewThreatRecord(threatType ThreatType, level AlertLevel, source string, port *int, count, threshold int, window time.Time) ThreatRecord {
	return ThreatRecord{
		ID:            uuid.NewString(),
		Type:          threatType,
		Level:         level,
		SourceAddress: source,
		Port:          port,
		Count:         count,
		Threshold:     threshold,
		Window:        window,
	}
}

// PortString renders the port column the way reports show it.
func (t ThreatRecord) PortString() string {
	if t.Port == nil {
		return "N/A"
	}
	return strconv.Itoa(*t.Port)
}

// Key identifies the flagged group independently of the generated ID.
func (t ThreatRecord) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", t.Type, t.SourceAddress, t.PortString(), t.Window.Format(time.RFC3339))
}

func (t ThreatRecord) Message() string {
	return fmt.Sprintf("%s from %s: %d events in window %s (threshold %d)",
		t.Type.DisplayName(), t.SourceAddress, t.Count, t.Window.Format("15:04"), t.Threshold)
}

func IntPtr(v int) *int {
	return &v
}

// DenyCount is the total number of DENY events for one source address.
type DenyCount struct {
	SourceAddress string `json:"src_ip"`
	Count         int    `json:"count"`
}

// WindowCount is the number of DENY events inside one window.
type WindowCount struct {
	Window time.Time `json:"window"`
	Count  int       `json:"count"`
}

type Stats struct {
	RowsRead      int                `json:"rows_read"`
	BlankSources  int                `json:"blank_sources"`
	DenyRows      int                `json:"deny_rows"`
	WindowsSeen   int                `json:"windows_seen"`
	ThreatsByType map[ThreatType]int `json:"threats_by_type"`
}

// Result is what one evaluation pass hands to reporters.
type Result struct {
	Source      string         `json:"source"`
	GeneratedAt time.Time      `json:"generated_at"`
	Threats     []ThreatRecord `json:"threats"`
	DenyCounts  []DenyCount    `json:"deny_counts"`
	Timeline    []WindowCount  `json:"timeline,omitempty"`
	Stats       Stats          `json:"stats"`
}

// TopDenies returns at most n deny counts; n <= 0 returns all of them.
func (r *Result) TopDenies(n int) []DenyCount {
	if n <= 0 || n >= len(r.DenyCounts) {
		return r.DenyCounts
	}
	return r.DenyCounts[:n]
}

func (r *Result) HasThreats() bool {
	return len(r.Threats) > 0
}
