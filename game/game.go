// Package game runs a scene either headless, one frame per call, or as an
// interactive raylib preview with playback and a frame scrubber.
package game

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/camera"
	"github.com/pthm-cable/psys/config"
	"github.com/pthm-cable/psys/inspector"
	"github.com/pthm-cable/psys/pointcache"
	"github.com/pthm-cable/psys/renderer"
	"github.com/pthm-cable/psys/scene"
	"github.com/pthm-cable/psys/telemetry"
	"github.com/pthm-cable/psys/ui"
)

// Options configures a run.
type Options struct {
	Config        *config.Config // nil = embedded defaults
	Seed          uint64         // Overrides the config seed when non-zero
	LogStats      bool
	SnapshotDir   string
	SnapshotEvery int // Frames between snapshots, 0 = only on request
	OutputDir     string
	Headless      bool
	Loop          bool // Preview restarts at the start frame after the end
}

// Game owns a scene and everything needed to step, show and record it.
type Game struct {
	cfg     *config.Config
	sim     *scene.SimulationContext
	scene   *scene.Scene
	storage pointcache.Storage
	ctx     context.Context
	cancel  context.CancelFunc

	// Telemetry
	outputManager *telemetry.OutputManager
	logStats      bool
	snapshotDir   string
	snapshotEvery int

	// Preview
	camera            *camera.Camera
	particleRenderer  *renderer.ParticleRenderer
	wireframeRenderer *renderer.WireframeRenderer
	childPoints       []r3.Vec
	inspector         *inspector.Inspector

	hud         *ui.HUD
	systemTable *ui.SystemTable
	perfPanel   *ui.PerfPanel
	controls    *ui.ControlsPanel
	overlays    *ui.OverlayRegistry
	showPerf    bool
	baked       bool
	hidden      []bool // Systems toggled off in the preview

	// State
	frame     int // Last requested frame
	status    scene.Status
	paused    bool
	loop      bool
	headless  bool
	playAccum float64 // Fractional frames owed to playback

	screenWidth, screenHeight float32
}

// New builds the scene described by opts.
func New(opts Options) (*Game, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(""); err != nil {
			return nil, err
		}
	}
	if opts.Seed != 0 {
		cfg.Simulation.Seed = opts.Seed
	}

	storage, err := scene.OpenStorage(cfg)
	if err != nil {
		return nil, err
	}
	sim := scene.NewSimulationContext(cfg, storage)
	sc, err := scene.New(sim)
	if err != nil {
		sim.Pool.Stop()
		return nil, fmt.Errorf("building scene: %w", err)
	}

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		sc.Close()
		return nil, err
	}
	if err := om.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Game{
		cfg:           cfg,
		sim:           sim,
		scene:         sc,
		storage:       storage,
		ctx:           ctx,
		cancel:        cancel,
		outputManager: om,
		logStats:      opts.LogStats,
		snapshotDir:   opts.SnapshotDir,
		snapshotEvery: opts.SnapshotEvery,
		frame:         cfg.Simulation.StartFrame - 1,
		loop:          opts.Loop,
		headless:      opts.Headless,
		screenWidth:   float32(cfg.Preview.Width),
		screenHeight:  float32(cfg.Preview.Height),
	}

	if !opts.Headless {
		view, err := camera.ParseView(cfg.Preview.View)
		if err != nil {
			slog.Warn("unknown preview view, using front", "view", cfg.Preview.View)
		}
		g.camera = camera.New(float64(g.screenWidth), float64(g.screenHeight), cfg.Preview.Scale, view)
		g.particleRenderer = renderer.NewParticleRenderer(g.camera)
		g.wireframeRenderer = renderer.NewWireframeRenderer(g.camera)
		g.inspector = inspector.NewInspector(int32(g.screenWidth), int32(g.screenHeight))
		g.hud = ui.NewHUD()
		g.systemTable = ui.NewSystemTable(int32(g.screenWidth)-250, 10, 240)
		g.perfPanel = ui.NewPerfPanel(10, 90)
		g.controls = ui.NewControlsPanel(10, 90, 200)
		g.overlays = ui.NewOverlayRegistry()
		g.overlays.SetEnabled(ui.OverlayChildren, true)
		g.overlays.SetEnabled(ui.OverlayHair, true)
		g.overlays.SetEnabled(ui.OverlayDeflectors, true)
		g.hidden = make([]bool, len(sc.Systems()))
	}

	slog.Info("scene ready",
		"systems", len(sc.Systems()),
		"deflectors", len(sc.Deflectors()),
		"frames", fmt.Sprintf("%d..%d", cfg.Simulation.StartFrame, cfg.Simulation.EndFrame),
		"workers", cfg.Derived.Workers,
		"cache", cfg.Cache.Backend,
		"seed", cfg.Simulation.Seed,
	)
	return g, nil
}

// sources lists every system's particles for picking. Hidden systems keep
// their slot with no particles so indices stay stable.
func (g *Game) sources() []inspector.Source {
	out := make([]inspector.Source, 0, len(g.scene.Systems()))
	for i, ps := range g.scene.Systems() {
		src := inspector.Source{Name: ps.Name}
		if !g.isHidden(i) {
			src.Particles = ps.Particles()
		}
		out = append(out, src)
	}
	return out
}

func (g *Game) isHidden(i int) bool { return i < len(g.hidden) && g.hidden[i] }

// toggleSystem shows or hides system i and drops a selection inside it.
func (g *Game) toggleSystem(i int) {
	if i >= len(g.hidden) {
		return
	}
	g.hidden[i] = !g.hidden[i]
	if s, _, ok := g.inspector.Selected(); ok && s == i && g.hidden[i] {
		g.inspector.Deselect()
	}
}

// systemRows lists the systems for the controls panel.
func (g *Game) systemRows() []ui.SystemRow {
	rows := make([]ui.SystemRow, 0, len(g.scene.Systems()))
	for i, ps := range g.scene.Systems() {
		rows = append(rows, ui.SystemRow{Name: ps.Name, Shown: !g.isHidden(i), Baked: ps.Cache().Baked()})
	}
	return rows
}

// Frame returns the last requested frame.
func (g *Game) Frame() int { return g.frame }

// Scene returns the simulated scene.
func (g *Game) Scene() *scene.Scene { return g.scene }

// Done reports whether a headless run reached the end frame.
func (g *Game) Done() bool { return g.frame >= g.cfg.Simulation.EndFrame }

// UpdateHeadless advances the scene by one frame without any graphics.
func (g *Game) UpdateHeadless() error {
	return g.seek(g.frame + 1)
}

// seek brings the scene to frame and records its telemetry.
func (g *Game) seek(frame int) error {
	st, err := g.scene.AdvanceToFrame(g.ctx, frame)
	if err != nil {
		return fmt.Errorf("frame %d: %w", frame, err)
	}
	g.frame = frame
	g.status = st
	g.flushTelemetry()
	return nil
}

// Bake simulates the full range and protects the caches.
func (g *Game) Bake() error {
	if err := g.scene.Bake(g.ctx); err != nil {
		return err
	}
	g.baked = true
	slog.Info("baked", "end_frame", g.cfg.Simulation.EndFrame)
	return g.seek(g.frame)
}

// FreeBake drops every cached frame and resimulates the current one.
func (g *Game) FreeBake() error {
	if err := g.scene.FreeBake(); err != nil {
		return err
	}
	g.baked = false
	return g.seek(g.frame)
}

// Unload releases resources.
func (g *Game) Unload() {
	g.cancel()
	if g.snapshotDir != "" && g.frame >= g.cfg.Simulation.StartFrame {
		g.saveSnapshot()
	}
	if err := g.outputManager.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
	g.scene.Close()
}
