package tui

import (
	"sync"

	"github.com/xoelrdgz/fwradar/internal/domain"
)

// View indexes.
const (
	ViewThreats = iota
	ViewDenies
	viewCount
)

var viewNames = [viewCount]string{"THREATS", "TOP DENY IPs"}

// threatFilters is the cycle order of the type filter; "" shows all.
var threatFilters = []domain.ThreatType{
	"",
	domain.ThreatTypePortScan,
	domain.ThreatTypeBruteForce,
	domain.ThreatTypeTrafficFlood,
}

// Model holds the state behind the viewer: the latest result plus the
// active tab and type filter.
type Model struct {
	Width  int
	Height int

	ActiveView int
	filterIdx  int

	result  *domain.Result
	results int

	mu sync.RWMutex
}

func NewModel() *Model {
	return &Model{Width: 120, Height: 40}
}

// SetResult replaces the displayed result.
func (m *Model) SetResult(result *domain.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = result
	m.results++
}

func (m *Model) Result() *domain.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.result
}

// ResultsSeen counts how many results were delivered.
func (m *Model) ResultsSeen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.results
}

// Filter returns the active threat type filter, "" for all types.
func (m *Model) Filter() domain.ThreatType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return threatFilters[m.filterIdx]
}

func (m *Model) CycleFilter() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filterIdx = (m.filterIdx + 1) % len(threatFilters)
}

// VisibleThreats returns the threats that pass the active filter.
func (m *Model) VisibleThreats() []domain.ThreatRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.result == nil {
		return nil
	}
	filter := threatFilters[m.filterIdx]
	if filter == "" {
		return m.result.Threats
	}
	out := make([]domain.ThreatRecord, 0, len(m.result.Threats))
	for _, th := range m.result.Threats {
		if th.Type == filter {
			out = append(out, th)
		}
	}
	return out
}

func (m *Model) SetDimensions(width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Width = width
	m.Height = height
}

func (m *Model) NextView() {
	m.ActiveView = (m.ActiveView + 1) % viewCount
}

func (m *Model) ViewName() string {
	return viewNames[m.ActiveView]
}
