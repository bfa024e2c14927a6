package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// MaxSystemKeys is the number of systems reachable through the number keys.
const MaxSystemKeys = 9

// SystemRow is one particle system listed in the controls panel.
type SystemRow struct {
	Name  string
	Shown bool
	Baked bool
}

// SystemForKey maps the number keys 1..9 to system indices.
func SystemForKey(key int32) (int, bool) {
	if key < rl.KeyOne || key > rl.KeyNine {
		return 0, false
	}
	return int(key - rl.KeyOne), true
}

// ControlsPanel lists the overlay toggles by category followed by the
// systems and their visibility keys.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	visible  bool
}

// NewControlsPanel creates a hidden controls panel.
func NewControlsPanel(x, y, width int32) *ControlsPanel {
	return &ControlsPanel{renderer: NewRenderer(), x: x, y: y, width: width}
}

// IsVisible returns whether the panel is shown.
func (c *ControlsPanel) IsVisible() bool { return c.visible }

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// height counts the rows of both sections: two titles, a header per
// category, one row per overlay and one per system.
func (c *ControlsPanel) height(overlays *OverlayRegistry, systems int) int32 {
	t := c.renderer.Theme
	rows := 2 + len(overlays.All()) + len(overlays.Categories()) + systems
	return int32(rows)*t.LineHeight + t.Padding*3 + 8
}

// Draw renders the panel and returns the y below it.
func (c *ControlsPanel) Draw(overlays *OverlayRegistry, systems []SystemRow) int32 {
	if !c.visible {
		return c.y
	}
	r := c.renderer
	t := r.Theme
	inner := c.width - t.Padding*2
	x := c.x + t.Padding

	r.DrawPanel(c.x, c.y, c.width, c.height(overlays, len(systems)))
	y := c.y + t.Padding

	rl.DrawText("Overlays", x, y, 16, rl.White)
	y += t.LineHeight
	for _, category := range overlays.Categories() {
		y = r.DrawSectionHeader(x, y, categoryLabel(category))
		for _, desc := range overlays.ByCategory(category) {
			c.drawToggle(x, y, inner, rl.Gray, desc.Name, desc.KeyLabel, overlays.IsEnabled(desc.ID), "")
			y += t.LineHeight
		}
	}

	y += 8
	rl.DrawText("Systems", x, y, 16, rl.White)
	y += t.LineHeight
	for i, s := range systems {
		key, note := "", ""
		if i < MaxSystemKeys {
			key = fmt.Sprint(i + 1)
		}
		if s.Baked {
			note = "baked"
		}
		c.drawToggle(x, y, inner, SystemColor(i), s.Name, key, s.Shown, note)
		y += t.LineHeight
	}
	return y + t.Padding
}

// drawToggle draws a lamp, the name, an optional note and the key binding
// right aligned. Disabled rows are dimmed.
func (c *ControlsPanel) drawToggle(x, y, width int32, swatch rl.Color, name, key string, on bool, note string) {
	t := c.renderer.Theme
	lamp := Fade(swatch, 0.25)
	text := t.LabelColor
	if on {
		lamp, text = swatch, rl.White
	}
	rl.DrawRectangle(x, y+2, 8, 8, lamp)
	rl.DrawText(name, x+14, y, t.FontSize, text)
	if note != "" {
		rl.DrawText(note, x+14+rl.MeasureText(name, t.FontSize)+6, y, t.FontSize, t.SectionHeader)
	}
	if key != "" {
		label := "[" + key + "]"
		rl.DrawText(label, x+width-rl.MeasureText(label, t.FontSize), y, t.FontSize, t.LabelColor)
	}
}

func categoryLabel(cat string) string {
	switch cat {
	case "particles":
		return "Particles"
	case "scene":
		return "Scene"
	case "debug":
		return "Debug"
	}
	return cat
}
