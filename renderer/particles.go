// Package renderer draws scene content for the preview window.
package renderer

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
)

// Projector maps world space to the screen.
type Projector interface {
	WorldToScreen(p r3.Vec) (sx, sy, depth float64)
	IsVisible(p r3.Vec, radius float64) bool
}

// ParticleStyle controls how one system is drawn.
type ParticleStyle struct {
	Color         rl.Color
	PixelsPerUnit float64 // Screen pixels per world unit of particle size
	Frame         float64 // Current frame, for age fading
	FrameTime     float64 // Seconds per frame, for velocity lines
	ShowHidden    bool    // Draw unborn, dead and undisplayed particles dimmed
	ShowVelocity  bool
}

// ParticleRenderer renders particles, children and hair strands.
type ParticleRenderer struct {
	proj Projector
}

// NewParticleRenderer creates a new particle renderer.
func NewParticleRenderer(proj Projector) *ParticleRenderer {
	return &ParticleRenderer{proj: proj}
}

func project(proj Projector, p r3.Vec) rl.Vector2 {
	sx, sy, _ := proj.WorldToScreen(p)
	return rl.Vector2{X: float32(sx), Y: float32(sy)}
}

func (r *ParticleRenderer) point(p r3.Vec) rl.Vector2 { return project(r.proj, p) }

// Draw renders every particle of a system.
func (r *ParticleRenderer) Draw(particles []components.Particle, style ParticleStyle) {
	for i := range particles {
		p := &particles[i]

		visible := p.Exists() && p.Alive == components.Alive && !p.Has(components.FlagNoDisplay)
		if !visible && (!style.ShowHidden || !p.Exists()) {
			continue
		}
		if !r.proj.IsVisible(p.State.Co, p.Size) {
			continue
		}

		// Fade out over the lifetime
		lifeRatio := 1.0
		if p.Lifetime > 0 {
			lifeRatio = 1 - (style.Frame-p.Time)/p.Lifetime
		}
		alpha := math.Max(0.35, math.Min(1, lifeRatio))
		if !visible {
			alpha = 0.2
		}
		color := style.Color
		color.A = uint8(float64(color.A) * alpha)

		pos := r.point(p.State.Co)
		size := float32(math.Max(1.5, p.Size*style.PixelsPerUnit))
		rl.DrawCircleV(pos, size, color)

		if style.ShowVelocity && visible {
			end := r.point(r3.Add(p.State.Co, r3.Scale(style.FrameTime, p.State.Vel)))
			rl.DrawLineV(pos, end, color)
		}
	}
}

// DrawPoints renders single pixel points such as children.
func (r *ParticleRenderer) DrawPoints(points []r3.Vec, color rl.Color) {
	for _, p := range points {
		if !r.proj.IsVisible(p, 0) {
			continue
		}
		rl.DrawCircleV(r.point(p), 1, color)
	}
}

// DrawStrands renders the hair of alive particles as polylines.
func (r *ParticleRenderer) DrawStrands(particles []components.Particle, color rl.Color) {
	for i := range particles {
		p := &particles[i]
		if !p.Exists() || p.Alive != components.Alive {
			continue
		}
		for k := 1; k < len(p.Hair); k++ {
			rl.DrawLineV(r.point(p.Hair[k-1].Co), r.point(p.Hair[k].Co), color)
		}
	}
}

// DrawMarkers renders a ring at each point.
func (r *ParticleRenderer) DrawMarkers(points []r3.Vec, radius float32, color rl.Color) {
	for _, p := range points {
		pos := r.point(p)
		rl.DrawCircleLines(int32(pos.X), int32(pos.Y), radius, color)
	}
}
