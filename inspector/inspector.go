// Package inspector shows the fields of a picked particle in a side panel.
package inspector

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
)

// Panel dimensions
const (
	PanelWidth   = 300
	PanelPadding = 10
	HeaderHeight = 30
	pickRadius   = 8 // Pixels
)

// Panel colors
var (
	ColorPanelBg     = rl.Color{R: 30, G: 30, B: 35, A: 240}
	ColorPanelHeader = rl.Color{R: 45, G: 45, B: 55, A: 255}
	ColorPanelBorder = rl.Color{R: 70, G: 70, B: 80, A: 255}
	ColorHeaderText  = rl.Color{R: 255, G: 255, B: 255, A: 255}
	ColorCloseBtn    = rl.Color{R: 180, G: 80, B: 80, A: 255}
)

// Projector maps world space to the screen.
type Projector interface {
	WorldToScreen(p r3.Vec) (sx, sy, depth float64)
}

// Source is one pickable particle system.
type Source struct {
	Name      string
	Particles []components.Particle
}

// ParticleView is the inspected form of one particle.
type ParticleView struct {
	State    string      `inspect:"label"`
	Position r3.Vec      `inspect:"label"`
	Velocity r3.Vec      `inspect:"vec,max:10,labels:x|y|z"`
	Speed    float64     `inspect:"label,fmt:%.2f u/s"`
	Rotation quat.Number `inspect:"angle"`
	Spin     r3.Vec      `inspect:"vec,max:6.28,labels:x|y|z"`
	Size     float64     `inspect:"label,fmt:%.3f"`
	Age      float64     `inspect:"bar,max:1"`
	Birth    float64     `inspect:"label,fmt:%.1f"`
	Lifetime float64     `inspect:"label,fmt:%.1f"`
	Loop     int
	Keys     int
	Visible  bool
	Sticky   bool
}

// NewParticleView builds the view of p at frame.
func NewParticleView(p *components.Particle, frame float64) ParticleView {
	v := ParticleView{
		State:    p.Alive.String(),
		Position: p.State.Co,
		Velocity: p.State.Vel,
		Speed:    r3.Norm(p.State.Vel),
		Rotation: p.State.Rot,
		Spin:     p.State.Ave,
		Size:     p.Size,
		Birth:    p.Time,
		Lifetime: p.Lifetime,
		Loop:     p.Loop,
		Keys:     len(p.Hair),
		Visible:  p.Exists() && p.Alive == components.Alive && !p.Has(components.FlagNoDisplay),
		Sticky:   p.Has(components.FlagSticky),
	}
	if !p.Exists() {
		v.State = "unexist"
	}
	if p.Lifetime > 0 {
		v.Age = (frame - p.Time) / p.Lifetime
	}
	return v
}

// Inspector manages particle selection and panel rendering.
type Inspector struct {
	system      int
	particle    int
	hasSelected bool
	panelX      int32
	panelY      int32
}

// NewInspector creates a new inspector instance.
func NewInspector(screenWidth, screenHeight int32) *Inspector {
	ins := &Inspector{}
	ins.Resize(screenWidth, screenHeight)
	return ins
}

// Resize keeps the panel docked to the bottom right.
func (ins *Inspector) Resize(screenWidth, screenHeight int32) {
	ins.panelX = screenWidth - PanelWidth - 10
	ins.panelY = screenHeight / 3
}

// HandleInput selects the particle nearest to a left click.
func (ins *Inspector) HandleInput(mouseX, mouseY float32, proj Projector, sources []Source) {
	// Right click or Escape to deselect
	if rl.IsMouseButtonPressed(rl.MouseButtonRight) || rl.IsKeyPressed(rl.KeyEscape) {
		ins.Deselect()
		return
	}
	if !rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
		return
	}

	if ins.hasSelected {
		closeX := ins.panelX + PanelWidth - 25
		closeY := ins.panelY + 5
		if int32(mouseX) >= closeX && int32(mouseX) <= closeX+20 &&
			int32(mouseY) >= closeY && int32(mouseY) <= closeY+20 {
			ins.Deselect()
			return
		}
		// Clicks inside the panel are ignored
		if int32(mouseX) >= ins.panelX && int32(mouseX) <= ins.panelX+PanelWidth &&
			int32(mouseY) >= ins.panelY {
			return
		}
	}

	if s, p, ok := Pick(float64(mouseX), float64(mouseY), proj, sources); ok {
		ins.system, ins.particle, ins.hasSelected = s, p, true
	}
}

// Pick returns the displayed particle closest to the screen point within
// the pick radius.
func Pick(x, y float64, proj Projector, sources []Source) (system, particle int, ok bool) {
	best := float64(pickRadius * pickRadius)
	for s, src := range sources {
		for i := range src.Particles {
			p := &src.Particles[i]
			if !p.Exists() || p.Alive != components.Alive {
				continue
			}
			sx, sy, _ := proj.WorldToScreen(p.State.Co)
			d := (sx-x)*(sx-x) + (sy-y)*(sy-y)
			if d <= best {
				best, system, particle, ok = d, s, i, true
			}
		}
	}
	return system, particle, ok
}

// Deselect clears the current selection.
func (ins *Inspector) Deselect() {
	ins.hasSelected = false
}

// Selected returns the selected system and particle index.
func (ins *Inspector) Selected() (system, particle int, ok bool) {
	return ins.system, ins.particle, ins.hasSelected
}

// Draw renders the inspector panel if a particle is selected.
func (ins *Inspector) Draw(sources []Source, frame float64) {
	if !ins.hasSelected {
		return
	}
	if ins.system >= len(sources) || ins.particle >= len(sources[ins.system].Particles) {
		ins.Deselect()
		return
	}
	src := sources[ins.system]
	fields := ExtractFields(NewParticleView(&src.Particles[ins.particle], frame))

	panelHeight := int32(HeaderHeight + PanelPadding*2)
	for _, f := range fields {
		panelHeight += Height(f)
	}

	rl.DrawRectangle(ins.panelX, ins.panelY, PanelWidth, panelHeight, ColorPanelBg)
	rl.DrawRectangleLinesEx(
		rl.Rectangle{X: float32(ins.panelX), Y: float32(ins.panelY), Width: PanelWidth, Height: float32(panelHeight)},
		1,
		ColorPanelBorder,
	)

	// Header
	rl.DrawRectangle(ins.panelX, ins.panelY, PanelWidth, HeaderHeight, ColorPanelHeader)
	rl.DrawText(fmt.Sprintf("%s #%d", src.Name, ins.particle), ins.panelX+PanelPadding, ins.panelY+8, 16, ColorHeaderText)
	closeX := ins.panelX + PanelWidth - 25
	rl.DrawRectangle(closeX, ins.panelY+5, 20, 20, ColorCloseBtn)
	rl.DrawText("x", closeX+6, ins.panelY+7, 16, ColorHeaderText)

	y := ins.panelY + HeaderHeight + PanelPadding
	for _, f := range fields {
		y += DrawField(ins.panelX+PanelPadding, y, f)
	}
}
