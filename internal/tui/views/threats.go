package views

import (
	"fmt"
	"strings"

	"github.com/xoelrdgz/fwradar/internal/domain"
	"github.com/xoelrdgz/fwradar/pkg/sanitize"
)

// ThreatList is a scrollable table of threat records with one selected row.
type ThreatList struct {
	Threats       []domain.ThreatRecord
	VisibleCount  int
	ScrollPos     int
	Width         int
	SelectedIndex int
}

func NewThreatList(visibleCount int) *ThreatList {
	if visibleCount <= 0 {
		visibleCount = 20
	}
	return &ThreatList{VisibleCount: visibleCount, Width: 100}
}

func (l *ThreatList) Update(threats []domain.ThreatRecord) {
	l.Threats = threats
	if l.SelectedIndex >= len(threats) {
		l.SelectedIndex = 0
	}
	l.ensureSelectionVisible()
}

func (l *ThreatList) Down() {
	if l.SelectedIndex < len(l.Threats)-1 {
		l.SelectedIndex++
	}
	l.ensureSelectionVisible()
}

func (l *ThreatList) Up() {
	if l.SelectedIndex > 0 {
		l.SelectedIndex--
	}
	l.ensureSelectionVisible()
}

func (l *ThreatList) ensureSelectionVisible() {
	if l.SelectedIndex < l.ScrollPos {
		l.ScrollPos = l.SelectedIndex
	}
	if l.SelectedIndex >= l.ScrollPos+l.VisibleCount {
		l.ScrollPos = l.SelectedIndex - l.VisibleCount + 1
	}
	if l.ScrollPos < 0 {
		l.ScrollPos = 0
	}
}

// Selected returns the highlighted threat, or nil for an empty list.
func (l *ThreatList) Selected() *domain.ThreatRecord {
	if l.SelectedIndex >= 0 && l.SelectedIndex < len(l.Threats) {
		return &l.Threats[l.SelectedIndex]
	}
	return nil
}

// Render draws the table. With interactive false no row is highlighted,
// which is how the console reporter prints it.
func (l *ThreatList) Render(interactive bool) string {
	if len(l.Threats) == 0 {
		return dim.Italic(true).Render("  No threats detected")
	}

	var lines []string
	lines = append(lines, muted.Bold(true).Render(
		fmt.Sprintf("  %-16s  %-3s  %-15s  %-5s  %-13s  %s",
			"WINDOW", "LVL", "SOURCE", "PORT", "TYPE", "COUNT")))
	lines = append(lines, dim.Render("  "+strings.Repeat("─", max(l.Width-4, 10))))

	start, end := 0, len(l.Threats)
	if interactive && end > l.VisibleCount {
		start = l.ScrollPos
		end = min(start+l.VisibleCount, len(l.Threats))
	}

	for i := start; i < end; i++ {
		th := l.Threats[i]
		isSelected := interactive && i == l.SelectedIndex
		prefix := "  "
		if isSelected {
			prefix = "▶ "
		}

		lvlStyle, lvl := LevelStyle(th.Level)
		src := padRight(sanitize.Address(th.SourceAddress), 15)
		srcStyle := text
		if th.Level == domain.AlertLevelCritical {
			srcStyle = red.Bold(true)
		}
		window := th.Window.UTC().Format("2006-01-02 15:04")
		if isSelected {
			srcStyle = selected.Bold(true)
			window = selected.Render(window)
		} else {
			window = dim.Render(window)
		}

		countStyle := amber
		if th.Count > 2*th.Threshold {
			countStyle = red.Bold(true)
		}

		lines = append(lines, fmt.Sprintf("%s%s  %s  %s  %-5s  %s  %s",
			prefix,
			window,
			lvlStyle.Render(lvl),
			srcStyle.Render(src),
			th.PortString(),
			green.Render(padRight(th.Type.DisplayName(), 13)),
			countStyle.Render(fmt.Sprintf("%d", th.Count))+muted.Render(fmt.Sprintf(" > %d", th.Threshold)),
		))
	}

	if interactive && len(l.Threats) > l.VisibleCount {
		lines = append(lines, dim.Render(fmt.Sprintf("  [%d-%d of %d]", start+1, end, len(l.Threats))))
	}
	return strings.Join(lines, "\n")
}
