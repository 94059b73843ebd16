package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/fwradar/internal/domain"
	"github.com/xoelrdgz/fwradar/pkg/sanitize"
)

// Status is the one-line summary bar shown under every view.
type Status struct {
	Width  int
	Source string
	Stats  domain.Stats
	Window string
}

func NewStatus(width int) *Status {
	return &Status{Width: width}
}

func (s *Status) Update(result *domain.Result, window string) {
	s.Source = result.Source
	s.Stats = result.Stats
	s.Window = window
}

// Items returns the rendered status fields in display order.
func (s *Status) Items() []string {
	threats := 0
	for _, n := range s.Stats.ThreatsByType {
		threats += n
	}
	thr := green
	if threats > 0 {
		thr = red.Bold(true)
	}
	blank := green
	if s.Stats.BlankSources > 0 {
		blank = amber
	}

	return []string{
		muted.Render("SRC:") + " " + text.Render(sanitize.Field(s.Source, 32)),
		muted.Render("ROWS:") + " " + green.Render(fmtLarge(int64(s.Stats.RowsRead))),
		muted.Render("DENY:") + " " + green.Render(fmtLarge(int64(s.Stats.DenyRows))),
		muted.Render("BLANK:") + " " + blank.Render(fmt.Sprintf("%d", s.Stats.BlankSources)),
		muted.Render("WIN:") + " " + green.Render(fmt.Sprintf("%d×%s", s.Stats.WindowsSeen, s.Window)),
		muted.Render("THREATS:") + " " + thr.Render(fmt.Sprintf("%d", threats)),
	}
}

func (s *Status) Render() string {
	sep := lipgloss.NewStyle().Foreground(lipgloss.Color("#2a2a2a")).Render(" │ ")
	return lipgloss.NewStyle().
		Width(s.Width).
		Padding(0, 1).
		Background(lipgloss.Color("#0a0a0a")).
		Render(strings.Join(s.Items(), sep))
}
