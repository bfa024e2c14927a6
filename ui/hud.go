package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/psys/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title      string
	Frame      int
	Simulated  bool // False while the scene holds no state
	StartFrame int
	EndFrame   int
	View       string
	FPS        int32
	Paused     bool
	Loop       bool
	Baked      bool
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{
		renderer: NewRenderer(),
	}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	frame := fmt.Sprintf("%d", data.Frame)
	if !data.Simulated {
		frame = "-"
	}
	rl.DrawText(
		fmt.Sprintf("Frame: %s [%d..%d] | View: %s | FPS: %d", frame, data.StartFrame, data.EndFrame, data.View, data.FPS),
		10, 35, 16, rl.LightGray,
	)

	statusText := "Playing"
	if data.Paused {
		statusText = "PAUSED"
	}
	if data.Loop {
		statusText += " | loop"
	}
	if data.Baked {
		statusText += " | baked"
	}
	rl.DrawText(statusText, 10, 55, 16, rl.Yellow)
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenWidth, screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// SystemTable renders one line of counters per particle system.
type SystemTable struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewSystemTable creates a new system table.
func NewSystemTable(x, y, width int32) *SystemTable {
	return &SystemTable{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
	}
}

// SetPosition updates the panel position.
func (s *SystemTable) SetPosition(x, y int32) {
	s.x = x
	s.y = y
}

// Draw renders the table and returns the Y below it.
func (s *SystemTable) Draw(rows []telemetry.FrameStats) int32 {
	r := s.renderer
	padding := r.Theme.Padding
	lineHeight := r.Theme.LineHeight

	height := padding*2 + lineHeight + int32(len(rows))*(lineHeight*2+2)
	r.DrawPanel(s.x, s.y, s.width, height)

	y := r.DrawSectionHeader(s.x+padding, s.y+padding, "Systems")
	for i, row := range rows {
		rl.DrawRectangle(s.x+padding, y+3, 8, 8, SystemColor(i))
		rl.DrawText(fmt.Sprintf("%-10s %s", row.System, row.CacheResult), s.x+padding+14, y, r.Theme.FontSize, rl.White)
		y += lineHeight

		y = r.DrawStack(s.x+padding+14, y, fmt.Sprintf("%d/%d", row.Alive, row.Particles), Population(row, SystemColor(i)), s.width-padding*2-14)
	}
	return s.y + height
}

// PerfPanel renders the frame request phase breakdown.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
	}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(stats telemetry.PerfStats) {
	x := p.x
	y := p.y

	rl.DrawText("Frame Request", x, y, 16, rl.White)
	y += 20

	rl.DrawText(fmt.Sprintf("Avg: %s  Max: %s", stats.AvgTickDuration.Round(time.Microsecond), stats.MaxTickDuration.Round(time.Microsecond)), x, y, 14, rl.Yellow)
	y += 16

	for _, phase := range telemetry.Phases() {
		pct := stats.PhasePct[phase]

		color := rl.LightGray
		if pct > 50 {
			color = rl.Red
		} else if pct > 25 {
			color = rl.Orange
		}

		rl.DrawText(
			fmt.Sprintf("%-12s %8s %5.1f%%", phase, stats.PhaseAvg[phase].Round(time.Microsecond), pct),
			x, y, 12, color,
		)
		y += 14
	}
}
