package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xoelrdgz/fwradar/internal/domain"
	"github.com/xoelrdgz/fwradar/internal/tui/views"
	"github.com/xoelrdgz/fwradar/pkg/sanitize"
)

const spinnerInterval = 120 * time.Millisecond

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// App is the interactive result viewer. It implements ports.Reporter so
// the analyzer can deliver into it while the program is running.
type App struct {
	model     *Model
	threats   *views.ThreatList
	denies    *views.DenyChart
	timeline  *views.Timeline
	status    *views.Status
	inspector *views.ThreatInspector

	ready    bool
	quitting bool
	width    int
	height   int
	frame    int
	err      error

	events chan tea.Msg

	logSource string
	window    string
	topN      int
}

// AppConfig configures the viewer.
type AppConfig struct {
	Source         string        // Shown in the header
	Window         time.Duration // Aggregation window, for the status bar
	TopN           int           // Deny sources charted (default: 10)
	FloodThreshold int           // Timeline bars above this are highlighted
}

func NewApp(config AppConfig) *App {
	if config.TopN <= 0 {
		config.TopN = 10
	}
	if config.Window <= 0 {
		config.Window = domain.DefaultWindow
	}
	return &App{
		model:     NewModel(),
		threats:   views.NewThreatList(15),
		denies:    views.NewDenyChart(100, config.TopN),
		timeline:  views.NewTimeline(80, config.FloodThreshold),
		status:    views.NewStatus(100),
		inspector: views.NewThreatInspector(),
		events:    make(chan tea.Msg, 4),
		logSource: config.Source,
		window:    config.Window.String(),
		topN:      config.TopN,
	}
}

type tickMsg time.Time
type resultMsg struct{ result *domain.Result }
type errMsg struct{ err error }

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.tick(), a.listen())
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) listen() tea.Cmd {
	return func() tea.Msg { return <-a.events }
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.inspector.Visible {
			switch msg.String() {
			case "esc", "q":
				a.inspector.Close()
			case "up", "k":
				a.inspector.ScrollUp()
			case "down", "j":
				a.inspector.ScrollDown()
			}
			return a, nil
		}

		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		case "tab":
			a.model.NextView()
		case "f":
			a.model.CycleFilter()
			a.threats.Update(a.model.VisibleThreats())
		case "up", "k":
			a.threats.Up()
		case "down", "j":
			a.threats.Down()
		case "enter":
			if a.model.ActiveView == ViewThreats {
				if selected := a.threats.Selected(); selected != nil {
					a.inspector.SetThreat(selected)
				}
			}
		}
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.ready = true
		a.model.SetDimensions(msg.Width, msg.Height)
		a.threats.Width = msg.Width - 4
		a.denies.Width = msg.Width - 4
		a.timeline.Width = max(msg.Width-30, 10)
		a.status.Width = msg.Width
		a.threats.VisibleCount = max(msg.Height-14, 5)
		a.inspector.SetDimensions(msg.Width-4, msg.Height-2)
	case tickMsg:
		if a.model.Result() == nil && a.err == nil {
			a.frame = (a.frame + 1) % len(spinnerFrames)
			return a, a.tick()
		}
		return a, nil
	case resultMsg:
		a.apply(msg.result)
		return a, a.listen()
	case errMsg:
		a.err = msg.err
		return a, a.listen()
	}
	return a, nil
}

func (a *App) apply(result *domain.Result) {
	a.model.SetResult(result)
	a.threats.Update(a.model.VisibleThreats())
	a.denies.Update(result.DenyCounts, result.Threats)
	a.timeline.Update(result.Timeline)
	a.status.Update(result, a.window)
}

func (a *App) View() string {
	if a.quitting {
		return "\n  Session terminated.\n\n"
	}
	if !a.ready {
		return "\n  Initializing...\n\n"
	}
	if a.inspector.Visible {
		return a.inspector.Render()
	}

	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n")
	b.WriteString(ruleStyle.Render(strings.Repeat("─", a.width)))
	b.WriteString("\n")

	result := a.model.Result()
	switch {
	case a.err != nil:
		b.WriteString(alarmStyle.Render("  Analysis failed: " + sanitize.Field(a.err.Error(), a.width-22)))
		b.WriteString("\n")
	case result == nil:
		b.WriteString(titleStyle.Render("  " + spinnerFrames[a.frame] + " Analyzing " + sanitize.Field(a.logSource, 60)))
		b.WriteString("\n")
	default:
		b.WriteString(a.timeline.Render())
		b.WriteString("\n\n")
		b.WriteString(a.renderTabs())
		b.WriteString("\n")
		if a.model.ActiveView == ViewDenies {
			b.WriteString(a.denies.Render())
		} else {
			b.WriteString(a.threats.Render(true))
		}
		b.WriteString("\n\n")
		b.WriteString(a.status.Render())
	}

	b.WriteString("\n")
	b.WriteString(a.renderHelp())
	return b.String()
}

func (a *App) renderHeader() string {
	status := titleStyle.Render("SCANNING")
	if result := a.model.Result(); result != nil {
		status = titleStyle.Render("CLEAN")
		if result.HasThreats() {
			status = alarmStyle.Render(fmt.Sprintf("%d THREATS", len(result.Threats)))
		}
	}
	if a.err != nil {
		status = alarmStyle.Render("FAILED")
	}

	return fmt.Sprintf("  %s  %s  %s %s",
		titleStyle.Render("FWRADAR"), status,
		ruleStyle.Render("SRC:"), sanitize.Field(a.logSource, 60))
}

func (a *App) renderTabs() string {
	tabs := make([]string, 0, viewCount)
	for i, name := range viewNames {
		style := tabStyle
		if i == a.model.ActiveView {
			style = tabActiveStyle
		}
		tabs = append(tabs, style.Render(name))
	}
	line := "  " + strings.Join(tabs, " ")
	if f := a.model.Filter(); f != "" && a.model.ActiveView == ViewThreats {
		line += noticeStyle.Render("  filter: " + f.DisplayName())
	}
	return line
}

func (a *App) renderHelp() string {
	return ruleStyle.Render(fmt.Sprintf("  %s views  %s filter  %s scroll  %s inspect  %s quit",
		keyStyle.Render("TAB"), keyStyle.Render("f"), keyStyle.Render("↑↓"), keyStyle.Render("ENTER"), keyStyle.Render("q")))
}

// Report implements ports.Reporter.
func (a *App) Report(ctx context.Context, result *domain.Result) error {
	select {
	case a.events <- resultMsg{result: result}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fail shows err instead of a result.
func (a *App) Fail(err error) {
	select {
	case a.events <- errMsg{err: err}:
	default:
	}
}

func (a *App) Close() error     { return nil }
func (a *App) GetModel() *Model { return a.model }

// Run blocks until the user quits.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
