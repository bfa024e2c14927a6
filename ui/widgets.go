package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/psys/telemetry"
)

// Lifecycle colors used by the population bars.
var (
	ColorUnborn = rl.Color{R: 90, G: 110, B: 140, A: 255}
	ColorDead   = rl.Color{R: 110, G: 60, B: 60, A: 255}
	ColorKilled = rl.Color{R: 200, G: 70, B: 70, A: 255}
)

// Segment is one run of a stacked bar.
type Segment struct {
	Count int
	Color rl.Color
}

// Population splits a system's particles by lifecycle state, alive drawn in
// the system color. Non-existent particles are left out.
func Population(row telemetry.FrameStats, alive rl.Color) []Segment {
	return []Segment{
		{row.Alive, alive},
		{row.Unborn, ColorUnborn},
		{row.Dead, ColorDead},
		{row.Killed, ColorKilled},
	}
}

// Widths splits width pixels across segments in proportion to their counts.
// Rounding error goes to the last non-empty segment so the runs fill the
// bar exactly.
func Widths(segs []Segment, width int32) []int32 {
	out := make([]int32, len(segs))
	total, last := 0, -1
	for i, s := range segs {
		total += s.Count
		if s.Count > 0 {
			last = i
		}
	}
	if total == 0 {
		return out
	}
	used := int32(0)
	for i, s := range segs {
		out[i] = int32(int64(width) * int64(s.Count) / int64(total))
		used += out[i]
	}
	out[last] += width - used
	return out
}

// Renderer draws the panel primitives with a shared theme.
type Renderer struct {
	Theme Theme
}

// NewRenderer creates a renderer with the default theme.
func NewRenderer() *Renderer {
	return &Renderer{Theme: DefaultTheme()}
}

// DrawPanel draws a panel background with border.
func (r *Renderer) DrawPanel(x, y, width, height int32) {
	rl.DrawRectangle(x, y, width, height, r.Theme.PanelBg)
	rl.DrawRectangleLines(x, y, width, height, r.Theme.PanelBorder)
}

// DrawSectionHeader draws a section header and returns the new Y position.
func (r *Renderer) DrawSectionHeader(x, y int32, title string) int32 {
	rl.DrawText(title, x, y, r.Theme.HeaderFontSize, r.Theme.SectionHeader)
	return y + r.Theme.LineHeight
}

// DrawStack draws label and a bar made of segs, followed by the first
// segment's share as a percentage. Returns the Y below the row.
func (r *Renderer) DrawStack(x, y int32, label string, segs []Segment, width int32) int32 {
	t := r.Theme
	bx := x + t.LabelWidth
	bw := width - t.LabelWidth - 40

	rl.DrawText(label, x, y, t.FontSize, t.LabelColor)
	rl.DrawRectangle(bx, y+2, bw, t.BarHeight, t.BarBg)
	sx := bx
	for i, w := range Widths(segs, bw) {
		rl.DrawRectangle(sx, y+2, w, t.BarHeight, segs[i].Color)
		sx += w
	}

	total := 0
	for _, s := range segs {
		total += s.Count
	}
	if total > 0 && len(segs) > 0 {
		pct := 100 * float64(segs[0].Count) / float64(total)
		rl.DrawText(fmt.Sprintf("%3.0f%%", pct), bx+bw+5, y, t.FontSize, t.ValueColor)
	}
	return y + t.LineHeight + 2
}
