package views

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/fwradar/internal/domain"
	"github.com/xoelrdgz/fwradar/pkg/sanitize"
)

// ThreatInspector is the detail overlay for one threat record.
type ThreatInspector struct {
	Threat  *domain.ThreatRecord
	Width   int
	Height  int
	ScrollY int
	Visible bool
}

func NewThreatInspector() *ThreatInspector {
	return &ThreatInspector{Width: 80, Height: 24}
}

func (p *ThreatInspector) SetThreat(threat *domain.ThreatRecord) {
	p.Threat = threat
	p.ScrollY = 0
	p.Visible = threat != nil
}

func (p *ThreatInspector) SetDimensions(width, height int) {
	p.Width = width
	p.Height = height
}

func (p *ThreatInspector) ScrollUp() {
	if p.ScrollY > 0 {
		p.ScrollY--
	}
}

func (p *ThreatInspector) ScrollDown() {
	p.ScrollY++
}

func (p *ThreatInspector) Close() {
	p.Threat = nil
	p.Visible = false
}

func (p *ThreatInspector) Render() string {
	if p.Threat == nil {
		return ""
	}

	th := p.Threat
	contentWidth := max(p.Width-4, 20)

	header := green.Bold(true)
	label := amber.Width(12)
	codeBlock := lipgloss.NewStyle().Foreground(colorPrimary).Background(colorCodeBg)
	lvlStyle, _ := LevelStyle(th.Level)

	var lines []string
	lines = append(lines, header.Render("╔═══ THREAT INSPECTOR ═══╗"))
	lines = append(lines, dim.Render(strings.Repeat("─", contentWidth)))

	field := func(name, value string) {
		lines = append(lines, fmt.Sprintf("%s %s", label.Render(name), value))
	}
	field("Type:", text.Render(th.Type.DisplayName()))
	field("Level:", lvlStyle.Render(string(th.Level)))
	field("Source:", red.Bold(true).Render(sanitize.Address(th.SourceAddress)))
	field("Port:", text.Render(th.PortString()))
	field("Window:", text.Render(th.Window.UTC().Format("2006-01-02 15:04:05")+" UTC"))
	field("Count:", text.Render(fmt.Sprintf("%d (threshold %d, +%d)", th.Count, th.Threshold, th.Count-th.Threshold)))
	field("ID:", muted.Render(th.ID))
	field("Message:", text.Render(sanitize.Field(th.Message(), contentWidth-14)))

	lines = append(lines, "")
	lines = append(lines, dim.Render(strings.Repeat("─", contentWidth)))
	lines = append(lines, header.Render("▶ RECORD JSON"))
	if raw, err := json.MarshalIndent(th, "", "  "); err == nil {
		for _, line := range strings.Split(string(raw), "\n") {
			lines = append(lines, codeBlock.Render(sanitize.Field(line, contentWidth)))
		}
	}

	lines = append(lines, "")
	lines = append(lines, dim.Render("[ESC] Close   [↑/↓] Scroll"))
	if p.ScrollY > 0 && p.ScrollY < len(lines) {
		lines = lines[p.ScrollY:]
	}
	if p.Height > 2 && len(lines) > p.Height-2 {
		lines = lines[:p.Height-2]
	}

	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(colorPrimary).
		Padding(0, 1).
		Width(p.Width).
		Render(strings.Join(lines, "\n"))
}
