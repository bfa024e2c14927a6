package game

import (
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/psys/camera"
	"github.com/pthm-cable/psys/ui"
)

// handleInput processes keyboard input.
func (g *Game) handleInput() {
	g.handleResize()

	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		g.paused = !g.paused
		g.playAccum = 0
	}

	// Single frame stepping with < > keys (comma and period)
	if rl.IsKeyPressed(rl.KeyComma) {
		g.paused = true
		g.step(-1)
	}
	if rl.IsKeyPressed(rl.KeyPeriod) {
		g.paused = true
		g.step(1)
	}
	if rl.IsKeyPressed(rl.KeyR) {
		g.jump(g.cfg.Simulation.StartFrame)
	}

	if rl.IsKeyPressed(rl.KeyL) {
		g.loop = !g.loop
	}
	if rl.IsKeyPressed(rl.KeyB) {
		if err := g.Bake(); err != nil {
			slog.Error("bake failed", "error", err)
		}
	}
	if rl.IsKeyPressed(rl.KeyF) {
		if err := g.FreeBake(); err != nil {
			slog.Error("free bake failed", "error", err)
		}
	}
	if rl.IsKeyPressed(rl.KeyS) && g.snapshotDir != "" {
		g.saveSnapshot()
	}

	if rl.IsKeyPressed(rl.KeyTab) {
		g.controls.Toggle()
	}
	if rl.IsKeyPressed(rl.KeyP) {
		g.showPerf = !g.showPerf
	}

	for key := rl.GetKeyPressed(); key != 0; key = rl.GetKeyPressed() {
		if i, ok := ui.SystemForKey(key); ok {
			g.toggleSystem(i)
			continue
		}
		g.overlays.HandleKeyPress(key)
	}

	g.handleCameraInput()

	mousePos := rl.GetMousePosition()
	g.inspector.HandleInput(mousePos.X, mousePos.Y, g.camera, g.sources())
}

// step moves by delta frames inside the frame range.
func (g *Game) step(delta int) {
	g.jump(g.frame + delta)
}

// jump seeks to frame clamped to the frame range.
func (g *Game) jump(frame int) {
	sim := g.cfg.Simulation
	if frame < sim.StartFrame {
		frame = sim.StartFrame
	}
	if frame > sim.EndFrame {
		frame = sim.EndFrame
	}
	if frame == g.frame {
		return
	}
	if err := g.seek(frame); err != nil {
		slog.Error("seek failed", "error", err)
		g.paused = true
	}
}

// handleResize checks for window resize and propagates new dimensions.
func (g *Game) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())
	if w == g.screenWidth && h == g.screenHeight {
		return
	}
	g.screenWidth = w
	g.screenHeight = h

	g.camera.Resize(float64(w), float64(h))
	g.systemTable.SetPosition(int32(w)-250, 10)
	g.inspector.Resize(int32(w), int32(h))
}

// handleCameraInput processes camera pan/zoom controls.
func (g *Game) handleCameraInput() {
	// Pan in screen pixels so the feel is the same at any zoom
	const panSpeed = 8.0

	if rl.IsKeyDown(rl.KeyRight) {
		g.camera.Pan(panSpeed, 0)
	}
	if rl.IsKeyDown(rl.KeyLeft) {
		g.camera.Pan(-panSpeed, 0)
	}
	if rl.IsKeyDown(rl.KeyDown) {
		g.camera.Pan(0, panSpeed)
	}
	if rl.IsKeyDown(rl.KeyUp) {
		g.camera.Pan(0, -panSpeed)
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		g.camera.ZoomBy(1.0 + float64(wheel)*0.1)
	}
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		g.camera.ZoomBy(1.25)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		g.camera.ZoomBy(0.8)
	}

	if rl.IsKeyPressed(rl.KeyV) {
		g.camera.View = (g.camera.View + 1) % (camera.ViewSide + 1)
	}
	if rl.IsKeyPressed(rl.KeyHome) {
		g.camera.Reset()
	}
}
