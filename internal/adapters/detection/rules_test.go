package detection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/fwradar/internal/domain"
)

func strictRules() []Rule {
	return BuildRules(DefaultRuleConfig())
}

func ruleOf(t *testing.T, rules []Rule, tt domain.ThreatType) Rule {
	t.Helper()
	for _, r := range rules {
		if r.Type == tt {
			return r
		}
	}
	t.Fatalf("rule %s not found", tt)
	return Rule{}
}

func TestProfileThresholds(t *testing.T) {
	strict, err := ProfileThresholds("strict")
	require.NoError(t, err)
	assert.Equal(t, Thresholds{PortScan: 8, BruteForce: 4, TrafficFlood: 40}, strict)

	relaxed, err := ProfileThresholds(" RELAXED ")
	require.NoError(t, err)
	assert.Equal(t, Thresholds{PortScan: 10, BruteForce: 5, TrafficFlood: 50}, relaxed)

	_, err = ProfileThresholds("paranoid")
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestRule_PortScanScenario(t *testing.T) {
	records := makeRecords(9, "203.0.113.50", 22, domain.ActionDeny, "PORT_SCAN", baseTime, 5*time.Second)

	threats := ruleOf(t, strictRules(), domain.ThreatTypePortScan).Evaluate(records, time.Minute)
	require.Len(t, threats, 1)
	assert.Equal(t, domain.ThreatTypePortScan, threats[0].Type)
	assert.Equal(t, "203.0.113.50", threats[0].SourceAddress)
	assert.Equal(t, 9, threats[0].Count)
	require.NotNil(t, threats[0].Port)
	assert.Equal(t, 22, *threats[0].Port)
	assert.True(t, threats[0].Window.Equal(baseTime))
}

func TestRule_PortScanMatchesInvalidReason(t *testing.T) {
	records := makeRecords(9, "203.0.113.50", 3389, domain.ActionDeny, "INVALID", baseTime, time.Second)

	threats := ruleOf(t, strictRules(), domain.ThreatTypePortScan).Evaluate(records, time.Minute)
	require.Len(t, threats, 1)
	assert.Equal(t, 3389, *threats[0].Port)
}

func TestRule_BruteForceScenario(t *testing.T) {
	records := makeRecords(5, "198.51.100.1", 22, domain.ActionDeny, "AUTH_FAIL", baseTime, 10*time.Second)

	threats := ruleOf(t, strictRules(), domain.ThreatTypeBruteForce).Evaluate(records, time.Minute)
	require.Len(t, threats, 1)
	assert.Equal(t, 5, threats[0].Count)
	assert.Equal(t, "22", threats[0].PortString())
	assert.Equal(t, domain.AlertLevelCritical, threats[0].Level)
}

func TestRule_BruteForceIgnoresOtherPorts(t *testing.T) {
	records := makeRecords(10, "198.51.100.1", 21, domain.ActionDeny, "AUTH_FAIL", baseTime, time.Second)
	assert.Empty(t, ruleOf(t, strictRules(), domain.ThreatTypeBruteForce).Evaluate(records, time.Minute))
}

func TestRule_TrafficFloodScenario(t *testing.T) {
	reasons := []string{"OK", "INVALID", "FLOOD", "PORT_SCAN", "AUTH_FAIL"}
	var records []domain.LogRecord
	for i := 0; i < 41; i++ {
		records = append(records, domain.LogRecord{
			Timestamp:     baseTime.Add(time.Duration(i) * time.Second),
			SourceAddress: "10.0.0.5",
			Port:          []int{22, 80, 443}[i%3],
			Action:        domain.ActionDeny,
			Reason:        reasons[i%len(reasons)],
		})
	}

	threats := ruleOf(t, strictRules(), domain.ThreatTypeTrafficFlood).Evaluate(records, time.Minute)
	require.Len(t, threats, 1)
	assert.Equal(t, 41, threats[0].Count)
	assert.Nil(t, threats[0].Port)
	assert.Equal(t, "N/A", threats[0].PortString())
}

func TestRule_ThresholdBoundary(t *testing.T) {
	tests := []struct {
		name      string
		threat    domain.ThreatType
		port      int
		reason    string
		threshold int
	}{
		{"port scan", domain.ThreatTypePortScan, 22, "PORT_SCAN", 8},
		{"brute force", domain.ThreatTypeBruteForce, 22, "AUTH_FAIL", 4},
		{"traffic flood", domain.ThreatTypeTrafficFlood, 80, "FLOOD", 40},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rule := ruleOf(t, strictRules(), tc.threat)

			atThreshold := makeRecords(tc.threshold, "10.9.9.9", tc.port, domain.ActionDeny, tc.reason, baseTime, time.Second)
			assert.Empty(t, rule.Evaluate(atThreshold, time.Minute), "count == threshold must not be flagged")

			above := makeRecords(tc.threshold+1, "10.9.9.9", tc.port, domain.ActionDeny, tc.reason, baseTime, time.Second)
			threats := rule.Evaluate(above, time.Minute)
			require.Len(t, threats, 1)
			assert.Equal(t, tc.threshold+1, threats[0].Count)
		})
	}
}

func TestRule_SeparateWindowsNeverCombine(t *testing.T) {
	first := makeRecords(5, "203.0.113.50", 22, domain.ActionDeny, "PORT_SCAN", baseTime.Add(30*time.Second), time.Second)
	second := makeRecords(5, "203.0.113.50", 22, domain.ActionDeny, "PORT_SCAN", baseTime.Add(time.Minute), time.Second)
	records := append(first, second...)

	assert.Empty(t, ruleOf(t, strictRules(), domain.ThreatTypePortScan).Evaluate(records, time.Minute))
}

func TestRule_AcceptIgnored(t *testing.T) {
	records := makeRecords(50, "10.0.0.5", 22, domain.ActionAccept, "PORT_SCAN", baseTime, time.Second)
	for _, rule := range strictRules() {
		assert.Empty(t, rule.Evaluate(records, time.Minute), "rule %s", rule.Type)
	}
}

func TestDenyWithReason_Substring(t *testing.T) {
	filter := DenyWithReason("PORT_SCAN", "INVALID", " ")
	assert.True(t, filter(domain.LogRecord{Action: domain.ActionDeny, Reason: "PORT_SCAN"}))
	assert.True(t, filter(domain.LogRecord{Action: domain.ActionDeny, Reason: "TCP_INVALID_FLAGS"}))
	assert.False(t, filter(domain.LogRecord{Action: domain.ActionDeny, Reason: "OK"}))
	assert.False(t, filter(domain.LogRecord{Action: domain.ActionDeny, Reason: "port_scan"}))
	assert.False(t, filter(domain.LogRecord{Action: domain.ActionAccept, Reason: "PORT_SCAN"}))
}

func TestRuleConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultRuleConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *RuleConfig)
	}{
		{"negative threshold", func(c *RuleConfig) { c.Thresholds.TrafficFlood = -1 }},
		{"no scan reasons", func(c *RuleConfig) { c.PortScanReasons = nil }},
		{"blank brute reason", func(c *RuleConfig) { c.BruteForceReason = "  " }},
		{"port zero", func(c *RuleConfig) { c.BruteForcePort = 0 }},
		{"port too high", func(c *RuleConfig) { c.BruteForcePort = 70000 }},
		{"tiny window", func(c *RuleConfig) { c.Window = time.Millisecond }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultRuleConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBuildRules_CustomBruteForcePort(t *testing.T) {
	cfg := DefaultRuleConfig()
	cfg.BruteForcePort = 2222
	rule := ruleOf(t, BuildRules(cfg), domain.ThreatTypeBruteForce)

	records := makeRecords(5, "198.51.100.1", 2222, domain.ActionDeny, "AUTH_FAIL", baseTime, time.Second)
	threats := rule.Evaluate(records, time.Minute)
	require.Len(t, threats, 1)
	assert.Equal(t, 2222, *threats[0].Port)
}
