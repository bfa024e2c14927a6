package scene

import (
	"context"
	"fmt"
	"slices"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/config"
	"github.com/pthm-cable/psys/systems"
	"github.com/pthm-cable/psys/telemetry"
)

// Scene owns every particle system of a run together with the effectors and
// deflectors acting on them. The systems graph lives in an ECS world: each
// system, effector and deflector is an entity, and dependencies between
// systems are components on the system entities.
type Scene struct {
	ctx *SimulationContext

	world     *ecs.World
	nodes     *ecs.Map2[components.SystemNode, components.Dependencies]
	nodeQuery *ecs.Filter2[components.SystemNode, components.Dependencies]
	effNodes  *ecs.Map1[components.EffectorNode]
	defNodes  *ecs.Map1[components.DeflectorNode]

	systems    []*ParticleSystem
	byName     map[string]*ParticleSystem
	entities   []ecs.Entity
	effectors  []*systems.Effector
	deflectors []*systems.Deflector

	frame int
}

// New builds a scene from the context's config.
func New(sim *SimulationContext) (*Scene, error) {
	cfg := sim.Config
	world := ecs.NewWorld()
	s := &Scene{
		ctx:       sim,
		world:     world,
		nodes:     ecs.NewMap2[components.SystemNode, components.Dependencies](world),
		nodeQuery: ecs.NewFilter2[components.SystemNode, components.Dependencies](world),
		effNodes:  ecs.NewMap1[components.EffectorNode](world),
		defNodes:  ecs.NewMap1[components.DeflectorNode](world),
		byName:    make(map[string]*ParticleSystem, len(cfg.Systems)),
		frame:     unsimulated,
	}

	for i, ec := range cfg.Effectors {
		eff, err := buildEffector(ec)
		if err != nil {
			return nil, err
		}
		s.effectors = append(s.effectors, eff)
		s.effNodes.NewEntity(&components.EffectorNode{ID: i})
	}
	for i, dc := range cfg.Deflectors {
		d, err := buildDeflector(cfg, i, dc)
		if err != nil {
			return nil, err
		}
		s.deflectors = append(s.deflectors, d)
		s.defNodes.NewEntity(&components.DeflectorNode{ID: i})
	}

	for i, sc := range cfg.Systems {
		ps, err := newParticleSystem(s, i, sc)
		if err != nil {
			return nil, err
		}
		s.systems = append(s.systems, ps)
		s.byName[ps.Name] = ps
	}
	if err := s.link(); err != nil {
		return nil, err
	}
	return s, nil
}

// link resolves references between systems and creates the graph entities.
func (s *Scene) link() error {
	cfg := s.ctx.Config
	for _, ps := range s.systems {
		var deps []int
		if src := ps.cfg.Emission.Source; src != "" {
			ps.source = s.byName[src]
		}
		if (ps.st.from == components.FromParticle || ps.st.from == components.FromReaction) && ps.source == nil {
			return fmt.Errorf("system %q emits from %s without a source: %w", ps.Name, ps.st.from, config.ErrInvalid)
		}
		if ps.source != nil {
			deps = append(deps, ps.source.ID)
		}
		for _, name := range ps.cfg.Keyed.Targets {
			t := s.byName[name]
			ps.targets = append(ps.targets, t)
			deps = append(deps, t.ID)
		}

		if ps.st.from == components.FromReaction && ps.st.reactOn == components.ReactNear {
			ps.source.st.nearDist = max(ps.source.st.nearDist, ps.cfg.Emission.NearDistance)
		}
		for i, dc := range cfg.Deflectors {
			if dc.Emitter == ps.Name {
				ps.ownDefl = i
				break
			}
		}

		effs := &systems.Effectors{Weights: ps.st.weights}
		effs.List = append(effs.List, s.effectors...)
		for _, o := range s.systems {
			if o.field == nil || (o == ps && !ps.st.selfEffect) {
				continue
			}
			effs.List = append(effs.List, o.field)
			if o != ps {
				deps = append(deps, o.ID)
			}
		}
		ps.effs = effs

		slices.Sort(deps)
		deps = slices.Compact(deps)
		e := s.nodes.NewEntity(
			&components.SystemNode{ID: ps.ID, Name: ps.Name},
			&components.Dependencies{On: deps},
		)
		s.entities = append(s.entities, e)
	}
	return nil
}

// order returns every system in dependency order. Ties keep config order.
// Systems caught in a cycle run last, in config order.
func (s *Scene) order() []*ParticleSystem {
	n := len(s.systems)
	indeg := make([]int, n)
	users := make([][]int, n)

	query := s.nodeQuery.Query()
	for query.Next() {
		node, deps := query.Get()
		for _, d := range deps.On {
			indeg[node.ID]++
			users[d] = append(users[d], node.ID)
		}
	}

	var ready []int
	for id := range n {
		if indeg[id] == 0 {
			ready = append(ready, id)
		}
	}
	out := make([]*ParticleSystem, 0, n)
	done := make([]bool, n)
	for len(ready) > 0 {
		slices.Sort(ready)
		id := ready[0]
		ready = ready[1:]
		out = append(out, s.systems[id])
		done[id] = true
		for _, u := range users[id] {
			indeg[u]--
			if indeg[u] == 0 {
				ready = append(ready, u)
			}
		}
	}
	if len(out) < n {
		for id := range n {
			if !done[id] {
				s.ctx.logger().Warn("dependency cycle", "system", s.systems[id].Name)
				out = append(out, s.systems[id])
			}
		}
	}
	return out
}

// upstream returns ps and every system it depends on, in dependency order.
func (s *Scene) upstream(ps *ParticleSystem) []*ParticleSystem {
	need := make([]bool, len(s.systems))
	stack := []int{ps.ID}
	need[ps.ID] = true
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		_, deps := s.nodes.Get(s.entities[id])
		for _, d := range deps.On {
			if !need[d] {
				need[d] = true
				stack = append(stack, d)
			}
		}
	}
	var out []*ParticleSystem
	for _, o := range s.order() {
		if need[o.ID] {
			out = append(out, o)
		}
	}
	return out
}

// downstream returns ps and every system that depends on it, directly or
// through other systems.
func (s *Scene) downstream(ps *ParticleSystem) []*ParticleSystem {
	users := make([][]int, len(s.systems))
	query := s.nodeQuery.Query()
	for query.Next() {
		node, deps := query.Get()
		for _, d := range deps.On {
			users[d] = append(users[d], node.ID)
		}
	}
	hit := make([]bool, len(s.systems))
	hit[ps.ID] = true
	stack := []int{ps.ID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, u := range users[id] {
			if !hit[u] {
				hit[u] = true
				stack = append(stack, u)
			}
		}
	}
	var out []*ParticleSystem
	for _, o := range s.systems {
		if hit[o.ID] {
			out = append(out, o)
		}
	}
	return out
}

// Invalidate drops the cached frames of the named system and of every system
// that depends on it. Baked caches are kept.
func (s *Scene) Invalidate(name string) error {
	ps, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("unknown system %q", name)
	}
	for _, o := range s.downstream(ps) {
		if err := o.Invalidate(); err != nil {
			return err
		}
	}
	s.frame = unsimulated
	return nil
}

// refreshFields points every particle field acting on ps at its source's
// committed state. A system's own field is read at the step start.
func (s *Scene) refreshFields(ps *ParticleSystem, start float64) {
	for _, eff := range ps.effs.List {
		if eff.Source == nil {
			continue
		}
		src := s.systems[eff.Source.System]
		frame := float64(src.cfra)
		if src == ps {
			frame = start
		}
		eff.Source.Index = src.buildIndex(frame)
		eff.Source.Keys = src.keys()
	}
}

// AdvanceToFrame brings every system to frame.
func (s *Scene) AdvanceToFrame(ctx context.Context, frame int) (Status, error) {
	if p := s.ctx.Perf; p != nil {
		p.StartTick()
		defer p.EndTick()
	}
	st, err := s.advance(ctx, frame, s.order())
	if err != nil {
		return st, err
	}
	s.frame = frame
	if st == StatusReset {
		s.frame = unsimulated
	}
	return st, nil
}

// Frame returns the frame of the last successful AdvanceToFrame, and false
// when the scene holds no simulated state.
func (s *Scene) Frame() (int, bool) { return s.frame, s.frame != unsimulated }

// System returns the named system.
func (s *Scene) System(name string) (*ParticleSystem, bool) {
	ps, ok := s.byName[name]
	return ps, ok
}

// Systems returns every system in config order.
func (s *Scene) Systems() []*ParticleSystem { return s.systems }

// Order returns the systems in the order they are simulated.
func (s *Scene) Order() []*ParticleSystem { return s.order() }

// Deflectors returns the collision surfaces.
func (s *Scene) Deflectors() []*systems.Deflector { return s.deflectors }

// Bake simulates the whole frame range and protects every cache from
// invalidation.
func (s *Scene) Bake(ctx context.Context) error {
	cfg := s.ctx.Config.Simulation
	for f := cfg.StartFrame; f <= cfg.EndFrame; f++ {
		if _, err := s.AdvanceToFrame(ctx, f); err != nil {
			return fmt.Errorf("baking frame %d: %w", f, err)
		}
	}
	for _, ps := range s.systems {
		ps.cache.SetBaked(true)
	}
	return nil
}

// FreeBake clears every cache, baked or not, and drops the simulated state.
func (s *Scene) FreeBake() error {
	for _, ps := range s.systems {
		if err := ps.cache.Reset(); err != nil {
			return fmt.Errorf("system %q: %w", ps.Name, err)
		}
		ps.cfra = unsimulated
	}
	s.frame = unsimulated
	return nil
}

// Stats returns the per-system counters of the last AdvanceToFrame.
func (s *Scene) Stats() []telemetry.FrameStats {
	out := make([]telemetry.FrameStats, 0, len(s.systems))
	for _, ps := range s.systems {
		out = append(out, ps.frameStats())
	}
	return out
}

// Close stops the worker pool.
func (s *Scene) Close() {
	if s.ctx.Pool != nil {
		s.ctx.Pool.Stop()
	}
}

func (ps *ParticleSystem) frameStats() telemetry.FrameStats {
	fs := telemetry.FrameStats{
		Frame:       ps.cfra,
		System:      ps.Name,
		Particles:   ps.particles.Len(),
		Children:    len(ps.children),
		Births:      ps.stats.births,
		Deaths:      ps.stats.deaths,
		Collisions:  ps.stats.collisions,
		Exhausted:   ps.stats.exhausted,
		Dropped:     ps.stats.dropped,
		Reactions:   len(ps.reactions),
		CacheResult: ps.stats.result.String(),
		Simulated:   ps.stats.simulated,
	}
	var speeds []float64
	items := ps.particles.Items()
	for p := range items {
		pa := &items[p]
		if !pa.Exists() {
			fs.Unexist++
			continue
		}
		switch pa.Alive {
		case components.Unborn:
			fs.Unborn++
		case components.Alive:
			fs.Alive++
			speeds = append(speeds, r3.Norm(pa.State.Vel))
		case components.Dead, components.Dying:
			fs.Dead++
		case components.Killed:
			fs.Killed++
		}
	}
	fs.SetSpeeds(speeds)
	return fs
}
