// Package scene drives particle systems through time: it owns the systems
// graph, restores frames from the point cache and simulates the frames the
// cache cannot serve.
package scene

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/psys/config"
	"github.com/pthm-cable/psys/pointcache"
	"github.com/pthm-cable/psys/systems"
	"github.com/pthm-cable/psys/telemetry"
)

// SimulationContext carries everything a run shares between systems. It
// replaces process wide state: two scenes with separate contexts never
// interact.
type SimulationContext struct {
	Config  *config.Config
	Pool    *systems.WorkerPool
	Storage pointcache.Storage
	Perf    *telemetry.PerfCollector // Optional
	Log     *slog.Logger
}

// NewSimulationContext builds a context from cfg with a worker pool sized by
// the derived worker count.
func NewSimulationContext(cfg *config.Config, storage pointcache.Storage) *SimulationContext {
	return &SimulationContext{
		Config:  cfg,
		Pool:    systems.NewWorkerPool(cfg.Derived.Workers),
		Storage: storage,
		Perf:    telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		Log:     slog.Default(),
	}
}

// OpenStorage returns the cache backend selected by cfg.
func OpenStorage(cfg *config.Config) (pointcache.Storage, error) {
	switch cfg.Cache.Backend {
	case "memory":
		return pointcache.NewMemoryStorage(), nil
	case "disk":
		return pointcache.NewDiskStorage(cfg.Cache.Dir)
	}
	return nil, fmt.Errorf("cache backend %q: %w", cfg.Cache.Backend, config.ErrInvalid)
}

func (c *SimulationContext) startPhase(name string) {
	if c.Perf != nil {
		c.Perf.StartPhase(name)
	}
}

func (c *SimulationContext) logger() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}
