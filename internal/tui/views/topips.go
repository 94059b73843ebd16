package views

import (
	"fmt"
	"strings"

	"github.com/xoelrdgz/fwradar/internal/domain"
	"github.com/xoelrdgz/fwradar/pkg/sanitize"
)

// DenyChart is a horizontal bar chart of per-source deny totals.
type DenyChart struct {
	Counts   []domain.DenyCount
	Flagged  map[string][]domain.ThreatType // source -> threat types found for it
	Width    int
	BarWidth int
	Limit    int
}

func NewDenyChart(width, limit int) *DenyChart {
	if limit <= 0 {
		limit = 10
	}
	return &DenyChart{Width: width, BarWidth: 30, Limit: limit}
}

// Update replaces the chart data and indexes the threat types per source.
func (c *DenyChart) Update(counts []domain.DenyCount, threats []domain.ThreatRecord) {
	c.Counts = counts
	c.Flagged = make(map[string][]domain.ThreatType)
	for _, th := range threats {
		types := c.Flagged[th.SourceAddress]
		seen := false
		for _, t := range types {
			if t == th.Type {
				seen = true
				break
			}
		}
		if !seen {
			c.Flagged[th.SourceAddress] = append(types, th.Type)
		}
	}
}

func (c *DenyChart) Render() string {
	if len(c.Counts) == 0 {
		return dim.Italic(true).Render("  No DENY events")
	}

	visible := c.Counts
	if len(visible) > c.Limit {
		visible = visible[:c.Limit]
	}
	maxCount := visible[0].Count

	var lines []string
	lines = append(lines, muted.Bold(true).Render(fmt.Sprintf(" %-3s %-15s  %-*s  %6s  %s",
		"#", "SOURCE", c.BarWidth, "DENIES", "COUNT", "FLAGGED")))
	lines = append(lines, dim.Render(strings.Repeat("─", max(c.Width, 10))))

	for i, dc := range visible {
		fill := 0
		if maxCount > 0 {
			fill = dc.Count * c.BarWidth / maxCount
		}
		if fill == 0 && dc.Count > 0 {
			fill = 1
		}

		ratio := float64(dc.Count) / float64(max(maxCount, 1))
		style := greenDim
		switch {
		case ratio > 0.7:
			style = red.Bold(true)
		case ratio > 0.4:
			style = amber.Bold(true)
		case ratio > 0.2:
			style = green
		}

		types := c.Flagged[dc.SourceAddress]
		names := make([]string, len(types))
		for j, t := range types {
			names[j] = t.DisplayName()
		}
		flagged := muted.Render("-")
		if len(names) > 0 {
			flagged = red.Render(strings.Join(names, ", "))
		}

		lines = append(lines, fmt.Sprintf(" %s %s  %s%s  %s  %s",
			muted.Render(fmt.Sprintf("%2d.", i+1)),
			style.Render(padRight(sanitize.Address(dc.SourceAddress), 15)),
			style.Render(strings.Repeat("█", fill)),
			ghost.Render(strings.Repeat("░", c.BarWidth-fill)),
			text.Render(fmt.Sprintf("%6s", fmtLarge(int64(dc.Count)))),
			flagged,
		))
	}

	if len(c.Counts) > len(visible) {
		lines = append(lines, dim.Render(fmt.Sprintf("  [showing %d of %d sources]", len(visible), len(c.Counts))))
	}
	return strings.Join(lines, "\n")
}
