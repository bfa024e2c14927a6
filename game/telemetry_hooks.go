package game

import (
	"log/slog"

	"github.com/pthm-cable/psys/telemetry"
)

// flushTelemetry records the counters of the frame just reached.
func (g *Game) flushTelemetry() {
	stats := g.scene.Stats()
	every := g.cfg.Telemetry.LogEvery
	periodic := every > 0 && g.frame%every == 0

	if g.logStats && periodic {
		for _, s := range stats {
			s.LogStats()
		}
	}

	if g.outputManager != nil {
		if err := g.outputManager.WriteFrames(stats); err != nil {
			slog.Error("failed to write frame stats", "error", err)
		}
	}

	if periodic {
		perfStats := g.sim.Perf.Stats()
		if g.logStats {
			perfStats.LogStats()
		}
		if err := g.outputManager.WritePerf(perfStats, g.frame); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}

	if g.snapshotDir != "" && g.snapshotEvery > 0 && g.frame%g.snapshotEvery == 0 {
		g.saveSnapshot()
	}
}

// saveSnapshot writes the particle state of every system at the current
// frame.
func (g *Game) saveSnapshot() {
	snap := &telemetry.Snapshot{
		Version: telemetry.SnapshotVersion,
		Seed:    g.cfg.Simulation.Seed,
		Frame:   g.frame,
	}
	for _, ps := range g.scene.Systems() {
		snap.Systems = append(snap.Systems, telemetry.CaptureSystem(ps.Name, ps.Particles()))
	}

	path, err := telemetry.SaveSnapshot(snap, g.snapshotDir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}
	slog.Info("snapshot saved", "path", path, "frame", g.frame)
}
