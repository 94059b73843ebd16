package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/fwradar/internal/domain"
)

func sampleResult() *domain.Result {
	w := time.Date(2025, 11, 28, 9, 10, 0, 0, time.UTC)
	return &domain.Result{
		Source: "firewall_logs.csv",
		Threats: []domain.ThreatRecord{
			domain.NewThreatRecord(domain.ThreatTypePortScan, domain.AlertLevelWarning, "203.0.113.50", domain.IntPtr(22), 9, 8, w),
			domain.NewThreatRecord(domain.ThreatTypeTrafficFlood, domain.AlertLevelCritical, "10.0.0.5", nil, 41, 40, w),
		},
		DenyCounts: []domain.DenyCount{{SourceAddress: "10.0.0.5", Count: 41}, {SourceAddress: "203.0.113.50", Count: 9}},
		Timeline:   []domain.WindowCount{{Window: w, Count: 50}},
		Stats:      domain.Stats{RowsRead: 60, DenyRows: 50, WindowsSeen: 1},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func readyApp(t *testing.T) *App {
	t.Helper()
	a := NewApp(AppConfig{Source: "firewall_logs.csv", FloodThreshold: 40})
	_, _ = a.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return a
}

func TestAppReportDeliversResult(t *testing.T) {
	a := readyApp(t)
	assert.Contains(t, a.View(), "Analyzing")

	require.NoError(t, a.Report(context.Background(), sampleResult()))
	msg := a.listen()()
	_, cmd := a.Update(msg)
	assert.NotNil(t, cmd, "keeps listening for further results")

	view := a.View()
	assert.Contains(t, view, "2 THREATS")
	assert.Contains(t, view, "203.0.113.50")
	assert.Equal(t, 1, a.GetModel().ResultsSeen())
}

func TestAppReportHonoursContext(t *testing.T) {
	a := NewApp(AppConfig{})
	for i := 0; i < cap(a.events); i++ {
		a.events <- tickMsg(time.Now())
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.Report(ctx, sampleResult()), context.Canceled)
}

func TestAppTabsFilterAndInspector(t *testing.T) {
	a := readyApp(t)
	a.apply(sampleResult())

	_, _ = a.Update(key("tab"))
	assert.Equal(t, ViewDenies, a.GetModel().ActiveView)
	assert.Contains(t, a.View(), "TOP DENY IPs")

	_, _ = a.Update(key("tab"))
	assert.Equal(t, ViewThreats, a.GetModel().ActiveView)

	_, _ = a.Update(key("f"))
	assert.Equal(t, domain.ThreatTypePortScan, a.GetModel().Filter())
	assert.Len(t, a.GetModel().VisibleThreats(), 1)
	assert.Contains(t, a.View(), "filter: Port Scan")

	_, _ = a.Update(key("enter"))
	assert.True(t, a.inspector.Visible)
	assert.Contains(t, a.View(), "THREAT INSPECTOR")

	_, _ = a.Update(key("esc"))
	assert.False(t, a.inspector.Visible)
}

func TestAppFailure(t *testing.T) {
	a := readyApp(t)
	_, _ = a.Update(errMsg{err: errors.New("row 3: invalid timestamp")})
	view := a.View()
	assert.Contains(t, view, "FAILED")
	assert.Contains(t, view, "invalid timestamp")
}

func TestAppQuit(t *testing.T) {
	a := readyApp(t)
	_, cmd := a.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Contains(t, a.View(), "Session terminated")
}

func TestModelFilterCycle(t *testing.T) {
	m := NewModel()
	assert.Nil(t, m.VisibleThreats())

	m.SetResult(sampleResult())
	assert.Len(t, m.VisibleThreats(), 2)

	for range threatFilters {
		m.CycleFilter()
	}
	assert.Equal(t, domain.ThreatType(""), m.Filter())

	m.CycleFilter()
	m.CycleFilter()
	assert.Equal(t, domain.ThreatTypeBruteForce, m.Filter())
	assert.Empty(t, m.VisibleThreats())
}
