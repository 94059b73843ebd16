package views

import (
	"fmt"
	"strings"

	"github.com/xoelrdgz/fwradar/internal/domain"
)

var barChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Timeline renders DENY volume per window as a one-line bar sparkline.
// Windows above the flood threshold are drawn in red.
type Timeline struct {
	Data           []domain.WindowCount
	Width          int
	FloodThreshold int
}

func NewTimeline(width, floodThreshold int) *Timeline {
	if width <= 0 {
		width = 60
	}
	return &Timeline{Width: width, FloodThreshold: floodThreshold}
}

func (t *Timeline) Update(data []domain.WindowCount) {
	t.Data = data
}

// buckets folds the series into at most Width columns, keeping each
// column's peak so short bursts stay visible.
func (t *Timeline) buckets() []int {
	n := len(t.Data)
	if n <= t.Width {
		out := make([]int, n)
		for i, wc := range t.Data {
			out[i] = wc.Count
		}
		return out
	}

	out := make([]int, t.Width)
	for i, wc := range t.Data {
		col := i * t.Width / n
		if wc.Count > out[col] {
			out[col] = wc.Count
		}
	}
	return out
}

// flooded matches the Flood rule: a window must exceed the threshold.
func (t *Timeline) flooded(count int) bool {
	return t.FloodThreshold > 0 && count > t.FloodThreshold
}

func (t *Timeline) Render() string {
	if len(t.Data) == 0 {
		return dim.Italic(true).Render(" no DENY traffic")
	}

	cols := t.buckets()
	peak := 0
	for _, v := range cols {
		peak = max(peak, v)
	}

	var b strings.Builder
	b.WriteString(" ")
	for _, v := range cols {
		if v == 0 {
			b.WriteString(dim.Render(string(barChars[0])))
			continue
		}
		idx := v * (len(barChars) - 1) / max(peak, 1)
		style := green
		switch {
		case t.flooded(v):
			style = red.Bold(true)
		case v*2 > peak:
			style = amber
		}
		b.WriteString(style.Render(string(barChars[idx])))
	}

	first := t.Data[0].Window.UTC().Format("15:04")
	last := t.Data[len(t.Data)-1].Window.UTC().Format("15:04")
	b.WriteString(muted.Render(fmt.Sprintf("  %s-%s peak %d/window", first, last, peak)))
	return b.String()
}
