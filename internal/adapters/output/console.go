package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/fwradar/internal/domain"
	"github.com/xoelrdgz/fwradar/internal/tui/views"
	"github.com/xoelrdgz/fwradar/pkg/sanitize"
)

// ConsoleReporter prints a styled plain-text report: summary, threat
// table, per-window deny timeline and top deny sources.
type ConsoleReporter struct {
	out            io.Writer
	topN           int
	width          int
	window         string
	floodThreshold int
	mu             sync.Mutex
}

// ConsoleReporterConfig configures console output.
type ConsoleReporterConfig struct {
	Writer         io.Writer // Defaults to stdout
	TopN           int       // Deny sources listed (default: 10)
	Width          int       // Rule width (default: 100)
	Window         string    // Aggregation window label
	FloodThreshold int       // Highlights timeline windows above it
}

func NewConsoleReporter(config ConsoleReporterConfig) *ConsoleReporter {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	if config.TopN <= 0 {
		config.TopN = 10
	}
	if config.Width <= 0 {
		config.Width = 100
	}
	if config.Window == "" {
		config.Window = domain.DefaultWindow.String()
	}
	return &ConsoleReporter{
		out:            config.Writer,
		topN:           config.TopN,
		width:          config.Width,
		window:         config.Window,
		floodThreshold: config.FloodThreshold,
	}
}

func (c *ConsoleReporter) Report(ctx context.Context, result *domain.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	title := lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff41")).Bold(true)
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	rule := lipgloss.NewStyle().Foreground(lipgloss.Color("#404040")).Render(strings.Repeat("─", c.width))

	var b strings.Builder
	b.WriteString(title.Render("FWRADAR REPORT"))
	b.WriteString(muted.Render("  " + sanitize.Field(result.Source, 60)))
	b.WriteString("\n")

	status := views.NewStatus(c.width)
	status.Update(result, c.window)
	b.WriteString(strings.Join(status.Items(), "  "))
	b.WriteString("\n")
	b.WriteString(rule)
	b.WriteString("\n")

	section := func(name string) {
		b.WriteString("\n")
		b.WriteString(title.Render(name))
		b.WriteString("\n")
	}

	section(fmt.Sprintf("THREATS (%d)", len(result.Threats)))
	threats := views.NewThreatList(len(result.Threats))
	threats.Width = c.width
	threats.Update(result.Threats)
	b.WriteString(threats.Render(false))
	b.WriteString("\n")

	section("DENY TIMELINE")
	timeline := views.NewTimeline(c.width-30, c.floodThreshold)
	timeline.Update(result.Timeline)
	b.WriteString(timeline.Render())
	b.WriteString("\n")

	section(fmt.Sprintf("TOP %d DENY SOURCES", c.topN))
	chart := views.NewDenyChart(c.width, c.topN)
	chart.Update(result.DenyCounts, result.Threats)
	b.WriteString(chart.Render())
	b.WriteString("\n")

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, b.String())
	return err
}

func (c *ConsoleReporter) Close() error {
	return nil
}
