package scene

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/config"
	"github.com/pthm-cable/psys/pointcache"
	"github.com/pthm-cable/psys/surface"
	"github.com/pthm-cable/psys/systems"
)

// unsimulated marks a system with no valid state.
const unsimulated = math.MinInt

// ParticleSystem is one population of particles with its emitter, cache and
// per-frame state.
type ParticleSystem struct {
	ID   int
	Name string

	scene *Scene
	cfg   config.SystemConfig
	st    settings
	seed  uint64
	frand *systems.Frand

	emitter *surface.Mesh
	motion  surface.TransformProvider

	source  *ParticleSystem   // Emission source for particle and reaction modes
	targets []*ParticleSystem // Keyed targets
	field   *systems.Effector // Set when the system acts as a field
	effs    *systems.Effectors
	ownDefl int // Deflector built from this emitter, -1 for none

	particles components.Arena[components.Particle]
	children  []components.ChildParticle
	guides    [][]systems.GuideBinding // Per particle, bound at birth
	react     []components.ReactionEvent
	bound     int // Reactor particles bound to events so far

	cache     *pointcache.Cache
	index     *systems.SpatialIndex
	reactions []components.ReactionEvent

	cfra  int
	grown bool // Hair strands grown for the current distribution
	stats frameCounters
}

// frameCounters accumulate per-frame telemetry.
type frameCounters struct {
	births     int
	deaths     int
	collisions int
	exhausted  int
	dropped    int // Reaction events with no free particle left
	result     pointcache.ReadResult
	simulated  bool
}

func newParticleSystem(sc *Scene, id int, cfg config.SystemConfig) (*ParticleSystem, error) {
	global := sc.ctx.Config
	seed := systems.Seed(global.Simulation.Seed, id, cfg.Seed)
	st, err := buildSettings(global, cfg, seed)
	if err != nil {
		return nil, err
	}
	ps := &ParticleSystem{
		ID:      id,
		Name:    cfg.Name,
		scene:   sc,
		cfg:     cfg,
		st:      st,
		seed:    seed,
		frand:   systems.NewFrand(global.Simulation.Seed, int(cfg.Seed)),
		cfra:    unsimulated,
		ownDefl: -1,
	}
	if st.from != components.FromParticle && st.from != components.FromReaction {
		if ps.emitter, ps.motion, err = buildEmitter(global, cfg.Emitter); err != nil {
			return nil, fmt.Errorf("system %q: %w", cfg.Name, err)
		}
	}
	if cfg.Field != nil {
		if ps.field, err = buildFieldEffector(id, cfg); err != nil {
			return nil, err
		}
	}
	ps.cache = pointcache.New(sc.ctx.Storage, cfg.Name, pointcache.Options{
		StartFrame: global.Simulation.StartFrame,
		Step:       global.Cache.Step,
		FrameTime:  global.Derived.FrameTime,
	})
	return ps, nil
}

// TotPart returns the live particle count.
func (ps *ParticleSystem) TotPart() int { return ps.particles.Len() }

// TotChild returns the child particle count.
func (ps *ParticleSystem) TotChild() int { return len(ps.children) }

// Frame returns the frame the system's state belongs to, and false when the
// system holds no simulated state.
func (ps *ParticleSystem) Frame() (int, bool) { return ps.cfra, ps.cfra != unsimulated }

// Cache returns the system's point cache.
func (ps *ParticleSystem) Cache() *pointcache.Cache { return ps.cache }

// Particles returns the particle slice. It is invalidated by the next
// AdvanceToFrame.
func (ps *ParticleSystem) Particles() []components.Particle { return ps.particles.Items() }

func (ps *ParticleSystem) at(p int) *components.Particle {
	if p < 0 || p >= ps.particles.Len() {
		return nil
	}
	return ps.particles.At(p)
}

// Position returns the location of particle p.
func (ps *ParticleSystem) Position(p int) r3.Vec {
	if pa := ps.at(p); pa != nil {
		return pa.State.Co
	}
	return r3.Vec{}
}

// Velocity returns the velocity of particle p in units per second.
func (ps *ParticleSystem) Velocity(p int) r3.Vec {
	if pa := ps.at(p); pa != nil {
		return pa.State.Vel
	}
	return r3.Vec{}
}

// Rotation returns the rotation of particle p.
func (ps *ParticleSystem) Rotation(p int) quat.Number {
	if pa := ps.at(p); pa != nil {
		return pa.State.Rot
	}
	return components.IdentityRot
}

// Size returns the size of particle p.
func (ps *ParticleSystem) Size(p int) float64 {
	if pa := ps.at(p); pa != nil {
		return pa.Size
	}
	return 0
}

// AliveState returns the lifecycle state of particle p. Non-existent
// particles report dead.
func (ps *ParticleSystem) AliveState(p int) components.Lifecycle {
	pa := ps.at(p)
	if pa == nil || !pa.Exists() {
		return components.Dead
	}
	return pa.Alive
}

// Visible reports whether particle p is alive and displayed.
func (ps *ParticleSystem) Visible(p int) bool {
	pa := ps.at(p)
	return pa != nil && pa.Exists() && pa.Alive == components.Alive && !pa.Has(components.FlagNoDisplay)
}

// Hair returns the strand keys of particle p for hair systems.
func (ps *ParticleSystem) Hair(p int) []components.Key {
	if pa := ps.at(p); pa != nil {
		return pa.Hair
	}
	return nil
}

// ChildParent returns the primary parent of child c, -1 for virtual
// children.
func (ps *ParticleSystem) ChildParent(c int) int {
	if c < 0 || c >= len(ps.children) {
		return -1
	}
	return ps.children[c].Parent
}

// ChildState evaluates child c from its parents' current state.
func (ps *ParticleSystem) ChildState(c int) (components.Key, bool) {
	if c < 0 || c >= len(ps.children) {
		return components.Key{}, false
	}
	return systems.ChildState(ps.children[c], ps.particles.Items())
}

// Reactions returns the events the system produced in the step to its
// current frame, ordered by particle.
func (ps *ParticleSystem) Reactions() []components.ReactionEvent { return ps.reactions }

// Type returns the particle type.
func (ps *ParticleSystem) Type() components.ParticleType { return ps.st.typ }

// EmitterTransform returns the emitter's world transform at frame.
func (ps *ParticleSystem) EmitterTransform(frame float64) surface.Transform {
	if ps.motion == nil {
		return surface.Identity
	}
	return ps.motion.TransformAt(frame)
}

// Emitter returns the emitter mesh in object space, nil for systems that
// emit from other systems.
func (ps *ParticleSystem) Emitter() *surface.Mesh { return ps.emitter }

// buildIndex rebuilds the spatial index over alive particles when it was
// built for another frame.
func (ps *ParticleSystem) buildIndex(frame float64) *systems.SpatialIndex {
	if ps.index.Valid(frame) {
		return ps.index
	}
	items := ps.particles.Items()
	cos := make([]r3.Vec, 0, len(items))
	idx := make([]int, 0, len(items))
	for p := range items {
		pa := &items[p]
		if pa.Exists() && pa.Alive == components.Alive {
			cos = append(cos, pa.State.Co)
			idx = append(idx, p)
		}
	}
	ps.index = systems.NewSpatialIndex(cos, idx, frame)
	return ps.index
}

// keys copies the committed state of every particle.
func (ps *ParticleSystem) keys() []components.Key {
	items := ps.particles.Items()
	out := make([]components.Key, len(items))
	for p := range items {
		out[p] = items[p].State
	}
	return out
}
