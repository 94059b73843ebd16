package tui

import "github.com/charmbracelet/lipgloss"

// Chrome around the views. The views package owns the content palette.
var (
	chromeAccent = lipgloss.Color("#00ff41")
	chromeKey    = lipgloss.Color("#00aa2a")
	chromeAlarm  = lipgloss.Color("#ff3333")
	chromeNotice = lipgloss.Color("#ffb000")
	chromeRule   = lipgloss.Color("#404040")
	chromeIdle   = lipgloss.Color("#707070")
	chromeInk    = lipgloss.Color("#0a0a0a")
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(chromeAccent).Bold(true)
	alarmStyle  = lipgloss.NewStyle().Foreground(chromeAlarm).Bold(true)
	noticeStyle = lipgloss.NewStyle().Foreground(chromeNotice)
	ruleStyle   = lipgloss.NewStyle().Foreground(chromeRule)
	keyStyle    = lipgloss.NewStyle().Foreground(chromeKey)

	tabStyle = lipgloss.NewStyle().
			Foreground(chromeIdle).
			Padding(0, 1)

	tabActiveStyle = lipgloss.NewStyle().
			Foreground(chromeInk).
			Background(chromeAccent).
			Bold(true).
			Padding(0, 1)
)
