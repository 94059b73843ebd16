package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/fwradar/internal/domain"
)

var (
	colorPrimary = lipgloss.Color("#00ff41")
	colorPrimDim = lipgloss.Color("#00aa2a")
	colorAmber   = lipgloss.Color("#ffb000")
	colorRed     = lipgloss.Color("#ff3333")
	colorCyan    = lipgloss.Color("#00b8ff")
	colorText    = lipgloss.Color("#e5e5e5")
	colorMuted   = lipgloss.Color("#707070")
	colorDim     = lipgloss.Color("#404040")
	colorGhost   = lipgloss.Color("#252525")
	colorSelect  = lipgloss.Color("#003300")
	colorCodeBg  = lipgloss.Color("#0a1f0a")
)

var (
	green    = lipgloss.NewStyle().Foreground(colorPrimary)
	greenDim = lipgloss.NewStyle().Foreground(colorPrimDim)
	amber    = lipgloss.NewStyle().Foreground(colorAmber)
	red      = lipgloss.NewStyle().Foreground(colorRed)
	cyan     = lipgloss.NewStyle().Foreground(colorCyan)
	text     = lipgloss.NewStyle().Foreground(colorText)
	muted    = lipgloss.NewStyle().Foreground(colorMuted)
	dim      = lipgloss.NewStyle().Foreground(colorDim)
	ghost    = lipgloss.NewStyle().Foreground(colorGhost)
	selected = lipgloss.NewStyle().Background(colorSelect).Foreground(colorPrimary)
)

// LevelStyle returns the style and three-letter tag for an alert level.
func LevelStyle(level domain.AlertLevel) (lipgloss.Style, string) {
	switch level {
	case domain.AlertLevelCritical:
		return red.Bold(true), "CRT"
	case domain.AlertLevelWarning:
		return amber.Bold(true), "WRN"
	default:
		return cyan, "INF"
	}
}

func fmtLarge(n int64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
	if n >= 1000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s[:length]
	}
	return s + strings.Repeat(" ", length-len(s))
}
