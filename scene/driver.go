package scene

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/pointcache"
	"github.com/pthm-cable/psys/surface"
	"github.com/pthm-cable/psys/systems"
	"github.com/pthm-cable/psys/telemetry"
)

// Status is the outcome of a frame request.
type Status uint8

const (
	StatusOK    Status = iota
	StatusReset        // Frame before the simulated range, particles parked
)

func (s Status) String() string {
	if s == StatusReset {
		return "reset"
	}
	return "ok"
}

// advance brings every system in set to frame. Systems must be in dependency
// order. Each system first resumes from its own state or cache; systems are
// then rewound to the earliest resume frame and replayed together one frame
// at a time, so a system always sees its sources at the frame it simulates.
func (s *Scene) advance(ctx context.Context, frame int, set []*ParticleSystem) (Status, error) {
	start := s.ctx.Config.Simulation.StartFrame
	log := s.ctx.logger()
	for _, ps := range set {
		ps.stats = frameCounters{}
	}

	if frame < start {
		for _, ps := range set {
			ps.park()
		}
		log.Debug("frame before start", "frame", frame, "start_frame", start)
		return StatusReset, nil
	}

	s.ctx.startPhase(telemetry.PhaseCacheRead)
	resume := make([]int, len(set))
	for i, ps := range set {
		r, err := ps.prepare(frame)
		if err != nil {
			return StatusOK, err
		}
		resume[i] = r
	}
	for {
		low := frame
		for _, r := range resume {
			low = min(low, r)
		}
		rewound := false
		for i, ps := range set {
			if resume[i] <= low {
				continue
			}
			r, err := ps.prepare(low)
			if err != nil {
				return StatusOK, err
			}
			resume[i] = r
			rewound = true
		}
		if !rewound {
			if low < frame {
				log.Debug("replaying", "from", low, "to", frame, "systems", len(set))
			}
			for f := low + 1; f <= frame; f++ {
				if err := ctx.Err(); err != nil {
					return StatusOK, err
				}
				for _, ps := range set {
					if err := ps.advanceOne(f); err != nil {
						return StatusOK, err
					}
				}
			}
			return StatusOK, nil
		}
	}
}

// prepare restores the best available state for frame and returns the frame
// that state belongs to. The caller simulates forward from there.
func (ps *ParticleSystem) prepare(frame int) (int, error) {
	start := ps.scene.ctx.Config.Simulation.StartFrame

	if ps.st.typ == components.TypeHair {
		if ps.cfra == unsimulated || !ps.grown {
			if err := ps.reset(); err != nil {
				return 0, err
			}
			ps.growHair()
		}
		ps.cfra = frame
		return frame, nil
	}

	if ps.cfra == frame {
		return frame, nil
	}
	if ps.cfra != unsimulated && ps.cfra < frame {
		if latest, ok := ps.cache.Latest(frame); !ok || latest <= ps.cfra {
			return ps.cfra, nil
		}
	}

	fresh := false
	if ps.cfra == unsimulated || ps.particles.Len() != ps.cfg.Count {
		if err := ps.reset(); err != nil {
			return 0, err
		}
		fresh = true
	}

	info, err := ps.cache.Read(float64(frame), ps.particles.Items())
	if errors.Is(err, pointcache.ErrParticleCount) {
		ps.scene.ctx.logger().Warn("discarding cache", "system", ps.Name, "error", err)
		if err := ps.cache.Reset(); err != nil {
			return 0, fmt.Errorf("system %q: %w", ps.Name, err)
		}
		info, err = pointcache.ReadInfo{Result: pointcache.ResultMiss}, nil
	}
	if err != nil {
		return 0, fmt.Errorf("system %q: %w", ps.Name, err)
	}
	ps.stats.result = info.Result

	switch info.Result {
	case pointcache.ResultExact, pointcache.ResultInterpolated:
		ps.cfra = frame
		ps.reactions = info.Events
		ps.afterRestore(float64(frame))
		return frame, nil
	case pointcache.ResultOld:
		ps.cfra = info.Frame
		ps.reactions = info.Events
		ps.afterRestore(float64(info.Frame))
		return info.Frame, nil
	}

	if !fresh {
		if err := ps.reset(); err != nil {
			return 0, err
		}
	}
	ps.cfra = start - 1
	return ps.cfra, nil
}

// advanceOne moves the system from frame-1 to frame, from the cache when the
// frame is stored and by simulation otherwise.
func (ps *ParticleSystem) advanceOne(frame int) error {
	sim := ps.scene.ctx
	if ps.st.typ == components.TypeHair {
		ps.cfra = frame
		return nil
	}

	if ps.cache.Has(frame) {
		sim.startPhase(telemetry.PhaseCacheRead)
		info, err := ps.cache.Read(float64(frame), ps.particles.Items())
		if err == nil {
			ps.cfra = frame
			ps.reactions = info.Events
			ps.stats.result = info.Result
			ps.afterRestore(float64(frame))
			return nil
		}
		if !errors.Is(err, pointcache.ErrParticleCount) {
			return fmt.Errorf("system %q: %w", ps.Name, err)
		}
		sim.logger().Warn("discarding cache", "system", ps.Name, "frame", frame, "error", err)
		if err := ps.cache.ClearAfter(frame - 1); err != nil {
			return fmt.Errorf("system %q: %w", ps.Name, err)
		}
	}

	if ps.st.from == components.FromReaction {
		sim.startPhase(telemetry.PhaseEmit)
		if err := ps.bindReactions(frame); err != nil {
			return err
		}
	}

	sim.startPhase(telemetry.PhaseDynamics)
	ps.simulate(frame)
	ps.cfra = frame
	ps.stats.simulated = true

	sim.startPhase(telemetry.PhaseCacheWrite)
	if _, err := ps.cache.Write(frame, ps.particles.Items(), ps.reactions, false); err != nil {
		return fmt.Errorf("system %q: %w", ps.Name, err)
	}
	return nil
}

// reset redistributes and reinitializes every particle and rebuilds the
// children. Reactor particles start unbound.
func (ps *ParticleSystem) reset() error {
	sim := ps.scene.ctx
	sim.startPhase(telemetry.PhaseDistribute)

	n := ps.cfg.Count
	ps.particles.Resize(n)
	ps.particles.Reset()
	items := ps.particles.Items()
	ps.guides = make([][]systems.GuideBinding, n)
	ps.react = make([]components.ReactionEvent, n)
	ps.bound = 0
	ps.reactions = nil
	ps.index = nil
	ps.grown = false

	switch ps.st.from {
	case components.FromReaction:
		for p := range items {
			items[p].Site = components.EmissionSite{Element: -1, Derived: -1}
			items[p].Set(components.FlagUnexist, true)
		}
	default:
		var parents []r3.Vec
		if ps.st.from == components.FromParticle {
			parents = ps.source.roots()
		}
		var surf surface.Surface
		if ps.emitter != nil {
			surf = ps.emitter
		}
		if err := systems.Distribute(ps.st.dist, surf, parents, sim.Pool, items); err != nil {
			sim.logger().Warn("distribution failed", "system", ps.Name, "error", err)
		}
	}
	for p := range items {
		systems.InitializeParticle(&items[p], p, n, &ps.st.birth, ps.frand)
	}

	sim.startPhase(telemetry.PhaseChildren)
	if err := ps.buildChildren(); err != nil {
		return fmt.Errorf("system %q children: %w", ps.Name, err)
	}
	return nil
}

// roots returns the current position of every particle.
func (ps *ParticleSystem) roots() []r3.Vec {
	items := ps.particles.Items()
	out := make([]r3.Vec, len(items))
	for p := range items {
		out[p] = items[p].State.Co
	}
	return out
}

// buildChildren assigns child particles to parents. Interpolated children
// need an emitter surface and fall back to simple children otherwise.
func (ps *ParticleSystem) buildChildren() error {
	cp := ps.st.children
	ps.children = nil
	if cp.Mode == components.ChildNone || cp.PerParent <= 0 {
		return nil
	}
	pool := ps.scene.ctx.Pool
	items := ps.particles.Items()

	surfaceMode := ps.st.from == components.FromVert || ps.st.from == components.FromFace || ps.st.from == components.FromVolume
	if cp.Mode == components.ChildInterpolated && surfaceMode && ps.emitter != nil {
		roots := make([]r3.Vec, len(items))
		for p := range items {
			if items[p].Exists() {
				roots[p] = systems.EvalSite(ps.emitter, ps.st.from, items[p].Site).Co
			}
		}
		kids, err := systems.InterpolatedChildren(ps.emitter, roots, cp, pool)
		if err != nil {
			return err
		}
		ps.children = kids
		return nil
	}

	kids, err := systems.SimpleChildren(make([]r3.Vec, len(items)), cp, pool)
	if err != nil {
		return err
	}
	ps.children = kids
	return nil
}

// growHair births every hair particle at its emission site and grows its
// strand through the standalone effectors.
func (ps *ParticleSystem) growHair() {
	items := ps.particles.Items()
	effs := ps.effs
	ps.scene.ctx.Pool.Run(len(items), func(_, start, end int) {
		for p := start; p < end; p++ {
			pa := &items[p]
			if !pa.Exists() {
				continue
			}
			systems.ResetParticle(pa, p, &ps.st.birth, ps.frand, ps.birthFrame(p, pa.Time))
			pa.State.Time = pa.Time
			pa.Prev = pa.State
			pa.Alive = components.Alive
			forces := systems.Forces{
				Params:    ps.st.forces,
				Size:      pa.Size,
				Effectors: effectorFunc(effs, ps, p, pa.Size, pa.Time),
			}
			systems.GrowHair(pa, ps.st.hair, ps.st.integrator, &forces)
		}
	})
	ps.grown = true
}

// park hides every particle and drops the simulated state.
func (ps *ParticleSystem) park() {
	items := ps.particles.Items()
	for p := range items {
		systems.Park(&items[p])
	}
	ps.cfra = unsimulated
	ps.reactions = nil
	ps.index = nil
}

// afterRestore rebuilds what the cache does not store: the reactor binding
// count and the guide bindings of born particles.
func (ps *ParticleSystem) afterRestore(frame float64) {
	items := ps.particles.Items()
	ps.index = nil
	if ps.st.from == components.FromReaction {
		ps.bound = 0
		for p := range items {
			if items[p].Exists() {
				ps.bound++
			}
		}
	}

	guides := ps.effs.Guides()
	if len(guides) == 0 {
		return
	}
	for p := range items {
		pa := &items[p]
		if !pa.Exists() || pa.Alive == components.Unborn || pa.Time > frame {
			ps.guides[p] = nil
			continue
		}
		co := pa.State.Co
		if ps.emitter != nil {
			co = ps.birthFrame(p, pa.Time).Site.Co
		}
		ps.guides[p] = bindGuides(guides, co)
	}
}

func bindGuides(guides []*systems.Guide, co r3.Vec) []systems.GuideBinding {
	if len(guides) == 0 {
		return nil
	}
	out := make([]systems.GuideBinding, len(guides))
	for i, g := range guides {
		out[i] = g.Bind(co)
	}
	return out
}

// Invalidate drops every cached frame and the in-memory state. Baked caches
// are kept.
func (ps *ParticleSystem) Invalidate() error {
	if ps.cache.Baked() {
		return nil
	}
	if err := ps.cache.ClearAfter(ps.scene.ctx.Config.Simulation.StartFrame - 1); err != nil {
		return fmt.Errorf("system %q: %w", ps.Name, err)
	}
	ps.cfra = unsimulated
	return nil
}

// AdvanceToFrame brings the system and everything it depends on to frame.
func (ps *ParticleSystem) AdvanceToFrame(ctx context.Context, frame int) (Status, error) {
	return ps.scene.advance(ctx, frame, ps.scene.upstream(ps))
}
