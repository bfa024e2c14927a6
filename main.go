package main

import (
	"flag"
	"log/slog"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/psys/config"
	"github.com/pthm-cable/psys/game"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	snapshotEvery := flag.Int("snapshot-every", 0, "Frames between snapshots (0 = only at exit)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	cacheDir := flag.String("cache-dir", "", "Use the disk cache backend rooted here")
	seed := flag.Uint64("seed", 0, "RNG seed (0 = use config)")
	threads := flag.Int("threads", 0, "Worker count (0 = use config)")
	frames := flag.Int("frames", 0, "Stop after N frames (0 = whole range)")
	bake := flag.Bool("bake", false, "Bake the whole range before running")
	loop := flag.Bool("loop", false, "Loop preview playback")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *threads > 0 {
		cfg.Simulation.Threads = *threads
		cfg.Derived.Workers = *threads
	}
	if *cacheDir != "" {
		cfg.Cache.Backend = "disk"
		cfg.Cache.Dir = *cacheDir
	}

	opts := game.Options{
		Config:        cfg,
		Seed:          *seed,
		LogStats:      *logStats,
		SnapshotDir:   *snapshotDir,
		SnapshotEvery: *snapshotEvery,
		OutputDir:     *outputDir,
		Headless:      *headless,
		Loop:          *loop,
	}

	if *headless {
		// Headless mode - pure CPU simulation, no raylib needed
		g, err := game.New(opts)
		if err != nil {
			slog.Error("failed to build scene", "error", err)
			os.Exit(1)
		}
		defer g.Unload()

		if *bake {
			if err := g.Bake(); err != nil {
				slog.Error("bake failed", "error", err)
				return
			}
		}

		slog.Info("starting headless simulation",
			"seed", cfg.Simulation.Seed,
			"frames", *frames,
			"workers", cfg.Derived.Workers,
		)

		for n := 0; !g.Done(); n++ {
			if *frames > 0 && n >= *frames {
				slog.Info("frame limit reached", "frame", g.Frame())
				return
			}
			if err := g.UpdateHeadless(); err != nil {
				slog.Error("simulation failed", "error", err)
				return
			}
		}
		slog.Info("end frame reached", "frame", g.Frame())
	} else {
		// Graphical mode
		rl.SetConfigFlags(rl.FlagWindowResizable)
		rl.InitWindow(int32(cfg.Preview.Width), int32(cfg.Preview.Height), "Particle Preview")
		defer rl.CloseWindow()

		rl.SetTargetFPS(int32(cfg.Preview.TargetFPS))

		g, err := game.New(opts)
		if err != nil {
			slog.Error("failed to build scene", "error", err)
			return
		}
		defer g.Unload()

		if *bake {
			if err := g.Bake(); err != nil {
				slog.Error("bake failed", "error", err)
			}
		}

		for !rl.WindowShouldClose() {
			g.Update()
			g.Draw()
		}
	}
}
