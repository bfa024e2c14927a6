// Package ui draws the preview window panels: the frame HUD, the per-system
// table, the perf panel and the overlay toggles.
package ui

import rl "github.com/gen2brain/raylib-go/raylib"

// Theme holds UI styling constants.
type Theme struct {
	PanelBg        rl.Color
	PanelBorder    rl.Color
	SectionHeader  rl.Color
	LabelColor     rl.Color
	ValueColor     rl.Color
	BarBg          rl.Color
	BarFill        rl.Color
	Padding        int32
	LineHeight     int32
	LabelWidth     int32
	BarHeight      int32
	FontSize       int32
	HeaderFontSize int32
}

// DefaultTheme returns the default UI theme.
func DefaultTheme() Theme {
	return Theme{
		PanelBg:        rl.Color{R: 20, G: 25, B: 30, A: 240},
		PanelBorder:    rl.Color{R: 60, G: 70, B: 80, A: 255},
		SectionHeader:  rl.Yellow,
		LabelColor:     rl.LightGray,
		ValueColor:     rl.LightGray,
		BarBg:          rl.Color{R: 40, G: 40, B: 40, A: 255},
		BarFill:        rl.Color{R: 100, G: 150, B: 200, A: 255},
		Padding:        10,
		LineHeight:     16,
		LabelWidth:     70,
		BarHeight:      12,
		FontSize:       12,
		HeaderFontSize: 14,
	}
}

var systemPalette = []rl.Color{
	{R: 110, G: 180, B: 255, A: 255},
	{R: 255, G: 170, B: 80, A: 255},
	{R: 140, G: 230, B: 130, A: 255},
	{R: 240, G: 110, B: 160, A: 255},
	{R: 200, G: 160, B: 255, A: 255},
	{R: 250, G: 230, B: 110, A: 255},
}

// SystemColor returns the display color of the i-th system.
func SystemColor(i int) rl.Color {
	if i < 0 {
		i = -i
	}
	return systemPalette[i%len(systemPalette)]
}

// Fade returns c with its alpha scaled by f in [0, 1].
func Fade(c rl.Color, f float64) rl.Color {
	if f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}
	c.A = uint8(float64(c.A) * f)
	return c
}
