package game

import (
	"fmt"
	"log/slog"
	"math"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/renderer"
	"github.com/pthm-cable/psys/scene"
	"github.com/pthm-cable/psys/ui"
)

var (
	backgroundColor = rl.Color{R: 14, G: 16, B: 22, A: 255}
	deflectorColor  = rl.Color{R: 120, G: 120, B: 130, A: 160}
	emitterColor    = rl.Color{R: 90, G: 160, B: 90, A: 160}
	reactionColor   = rl.Color{R: 255, G: 80, B: 60, A: 255}
)

const timelineHeight = 20

// Update advances playback and processes input.
func (g *Game) Update() {
	g.handleInput()
	g.sim.Perf.RecordFrame()

	if g.paused {
		return
	}

	// Playback follows the scene frame rate, not the window refresh rate
	g.playAccum += float64(rl.GetFrameTime()) * g.cfg.Simulation.FPS
	steps := int(g.playAccum)
	g.playAccum -= float64(steps)
	if steps > 2 {
		steps = 2
	}

	sim := g.cfg.Simulation
	for i := 0; i < steps; i++ {
		next := g.frame + 1
		if next > sim.EndFrame {
			if !g.loop {
				g.paused = true
				return
			}
			next = sim.StartFrame
		}
		if err := g.seek(next); err != nil {
			slog.Error("playback stopped", "error", err)
			g.paused = true
			return
		}
	}
}

// Draw renders the current frame.
func (g *Game) Draw() {
	rl.BeginDrawing()
	rl.ClearBackground(backgroundColor)

	if g.overlays.IsEnabled(ui.OverlayDeflectors) {
		g.drawDeflectors()
	}
	if g.overlays.IsEnabled(ui.OverlayEmitters) {
		g.drawEmitters()
	}
	for i, ps := range g.scene.Systems() {
		if !g.isHidden(i) {
			g.drawSystem(i, ps)
		}
	}
	if g.overlays.IsEnabled(ui.OverlayReactions) {
		g.drawReactions()
	}

	g.drawUI()
	rl.EndDrawing()
}

// drawSystem draws one system's particles, children and hair.
func (g *Game) drawSystem(i int, ps *scene.ParticleSystem) {
	color := ui.SystemColor(i)

	if ps.Type() == components.TypeHair {
		if g.overlays.IsEnabled(ui.OverlayHair) {
			g.particleRenderer.DrawStrands(ps.Particles(), color)
		}
	} else {
		g.particleRenderer.Draw(ps.Particles(), renderer.ParticleStyle{
			Color:         color,
			PixelsPerUnit: g.camera.Scale * g.camera.Zoom,
			Frame:         float64(g.frame),
			FrameTime:     g.cfg.Derived.FrameTime,
			ShowHidden:    g.overlays.IsEnabled(ui.OverlayHidden),
			ShowVelocity:  g.overlays.IsEnabled(ui.OverlayVelocity),
		})
	}

	if g.overlays.IsEnabled(ui.OverlayChildren) && ps.TotChild() > 0 {
		points := g.childPoints[:0]
		for c := 0; c < ps.TotChild(); c++ {
			if key, ok := ps.ChildState(c); ok {
				points = append(points, key.Co)
			}
		}
		g.particleRenderer.DrawPoints(points, ui.Fade(color, 0.5))
		g.childPoints = points
	}
}

// drawDeflectors draws collision surfaces as wireframes.
func (g *Game) drawDeflectors() {
	for _, d := range g.scene.Deflectors() {
		if d.BVH != nil {
			g.wireframeRenderer.DrawTriangles(d.BVH.Triangles(), deflectorColor)
		}
	}
}

// drawEmitters draws emitter meshes at the current frame.
func (g *Game) drawEmitters() {
	for _, ps := range g.scene.Systems() {
		if mesh := ps.Emitter(); mesh != nil {
			g.wireframeRenderer.DrawMesh(mesh, ps.EmitterTransform(float64(g.frame)), emitterColor)
		}
	}
}

// drawReactions marks the events of the last step.
func (g *Game) drawReactions() {
	var points []r3.Vec
	for i, ps := range g.scene.Systems() {
		if g.isHidden(i) {
			continue
		}
		for _, ev := range ps.Reactions() {
			points = append(points, ev.Co)
		}
	}
	g.particleRenderer.DrawMarkers(points, 4, reactionColor)
}

// drawSelection rings the inspected particle.
func (g *Game) drawSelection() {
	s, p, ok := g.inspector.Selected()
	if !ok || s >= len(g.scene.Systems()) {
		return
	}
	ps := g.scene.Systems()[s]
	if p >= ps.TotPart() {
		return
	}
	g.particleRenderer.DrawMarkers([]r3.Vec{ps.Position(p)}, 7, rl.White)
}

// drawUI draws the HUD, panels and the frame scrubber.
func (g *Game) drawUI() {
	frame, simulated := g.scene.Frame()
	sim := g.cfg.Simulation

	g.hud.Draw(ui.HUDData{
		Title:      "Particle Preview",
		Frame:      frame,
		Simulated:  simulated,
		StartFrame: sim.StartFrame,
		EndFrame:   sim.EndFrame,
		View:       g.camera.View.String(),
		FPS:        rl.GetFPS(),
		Paused:     g.paused,
		Loop:       g.loop,
		Baked:      g.baked,
	})
	g.systemTable.Draw(g.scene.Stats())

	y := int32(90)
	if g.controls.IsVisible() {
		y = g.controls.Draw(g.overlays, g.systemRows()) + 10
	}
	if g.showPerf {
		g.perfPanel.SetPosition(10, y)
		g.perfPanel.Draw(g.sim.Perf.Stats())
	}

	g.inspector.Draw(g.sources(), float64(g.frame))
	g.drawSelection()

	g.drawTimeline()
	g.hud.DrawControls(int32(g.screenWidth), int32(g.screenHeight),
		"[Space] Play  [,/.] Step  [R] Start  [L] Loop  [B] Bake  [F] Free  [V] View  [1-9] Systems  [Tab] Controls  [P] Perf")
}

// drawTimeline draws the frame scrubber and seeks when it is dragged.
func (g *Game) drawTimeline() {
	sim := g.cfg.Simulation
	bounds := rl.Rectangle{
		X:      60,
		Y:      g.screenHeight - 55,
		Width:  g.screenWidth - 140,
		Height: timelineHeight,
	}
	current := float32(g.frame)
	if g.frame < sim.StartFrame {
		current = float32(sim.StartFrame)
	}
	value := gui.SliderBar(bounds,
		fmt.Sprintf("%d", sim.StartFrame), fmt.Sprintf("%d", sim.EndFrame),
		current, float32(sim.StartFrame), float32(sim.EndFrame),
	)
	if target := int(math.Round(float64(value))); target != g.frame && value != current {
		g.paused = true
		g.jump(target)
	}
}
