package scene

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
	"github.com/pthm-cable/psys/systems"
)

// taskScratch is the per-task state of a dynamics pass. Tasks never share
// one, and the counters are summed after the barrier.
type taskScratch struct {
	stream *systems.Stream
	events []components.ReactionEvent
	nb     []systems.Neighbor
	keys   []components.Key

	births     int
	deaths     int
	collisions int
	exhausted  int
}

// nearSource is another system's index used for near reactions.
type nearSource struct {
	system int
	index  *systems.SpatialIndex
}

// stepInputs is the committed state every particle of a step reads.
type stepInputs struct {
	start, end float64
	dt         float64 // Seconds per frame
	guides     []*systems.Guide
	index      *systems.SpatialIndex // Own index, boids only
	keys       []components.Key      // Own committed keys, boids only
	targets    [][]components.Key    // Keyed target keys
	near       []nearSource
	deflectors []*systems.Deflector
}

// simulate integrates frame-1 to frame in substeps and collects the reaction
// events of the whole frame, ordered by particle and time.
func (ps *ParticleSystem) simulate(frame int) {
	sim := ps.scene.ctx
	cfg := sim.Config
	steps := cfg.Simulation.Subframes + 1

	scratch := make([]taskScratch, sim.Pool.Workers())
	for i := range scratch {
		scratch[i].stream = systems.NewStream(0)
	}
	for k := 1; k <= steps; k++ {
		start := float64(frame-1) + float64(k-1)*cfg.Derived.SubStep
		end := float64(frame-1) + float64(k)*cfg.Derived.SubStep
		if k == steps {
			end = float64(frame)
		}
		ps.step(start, end, scratch)
	}

	var events []components.ReactionEvent
	for i := range scratch {
		ts := &scratch[i]
		events = append(events, ts.events...)
		ps.stats.births += ts.births
		ps.stats.deaths += ts.deaths
		ps.stats.collisions += ts.collisions
		ps.stats.exhausted += ts.exhausted
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Particle != events[j].Particle {
			return events[i].Particle < events[j].Particle
		}
		return events[i].Time < events[j].Time
	})
	ps.reactions = events
	ps.index = nil
}

// inputs snapshots what the particles of one step may read.
func (ps *ParticleSystem) inputs(start, end float64) *stepInputs {
	sc := ps.scene
	in := &stepInputs{
		start:      start,
		end:        end,
		dt:         sc.ctx.Config.Derived.FrameTime,
		guides:     ps.effs.Guides(),
		deflectors: sc.deflectors,
	}

	sc.refreshFields(ps, start)
	if ps.st.physics == components.PhysBoids {
		in.index = ps.buildIndex(start)
		in.keys = ps.keys()
	}
	if ps.st.physics == components.PhysKeyed {
		for _, t := range ps.targets {
			in.targets = append(in.targets, t.keys())
		}
	}
	if ps.st.nearDist > 0 {
		for _, o := range sc.systems {
			if o == ps {
				continue
			}
			idx := o.buildIndex(float64(o.cfra))
			if idx.Len() > 0 {
				in.near = append(in.near, nearSource{system: o.ID, index: idx})
			}
		}
	}
	return in
}

// step advances every particle from start to end. Particles run in parallel
// and read only their own state and the snapshot in the step inputs.
func (ps *ParticleSystem) step(start, end float64, scratch []taskScratch) {
	in := ps.inputs(start, end)
	items := ps.particles.Items()

	ps.scene.ctx.Pool.Run(len(items), func(task, lo, hi int) {
		ts := &scratch[task]
		emit := func(ev components.ReactionEvent) { ts.events = append(ts.events, ev) }
		for p := lo; p < hi; p++ {
			pa := &items[p]
			ts.stream.Reseed(systems.Seed(ps.seed, p, math.Float64bits(end)))

			phase, frames := systems.BeginStep(pa, start, end)
			if phase == systems.PhaseIdle {
				continue
			}
			from := end - frames
			born := phase == systems.PhaseBorn
			if born {
				ps.birth(pa, p, from, in.guides)
				ts.births++
			}
			dt := frames * in.dt

			switch ps.st.physics {
			case components.PhysNewton:
				ps.newton(pa, p, born, from, dt, in, ts, emit)
			case components.PhysBoids:
				ts.nb = systems.BoidStep(pa, p, &ps.st.boids, in.index, in.keys, dt, ts.nb)
			case components.PhysKeyed:
				ps.keyed(pa, p, end, in.targets, ts)
			}
			if ps.st.physics == components.PhysNewton || ps.st.physics == components.PhysNone {
				systems.Rotate(pa, ps.st.rotation, dt)
			}

			if systems.CheckDeath(pa, from, end) {
				ts.deaths++
				emit(deathEvent(p, pa))
			}
			if len(in.near) > 0 {
				if ev, ok := nearEvent(p, pa, ps.st.nearDist, end, in.near); ok {
					pa.Set(components.FlagNear, true)
					emit(ev)
				}
			}
			systems.EndStep(pa, end, ps.st.loop)
		}
	})
}

// birth places particle p on its emission site at time t.
func (ps *ParticleSystem) birth(pa *components.Particle, p int, t float64, guides []*systems.Guide) {
	systems.ResetParticle(pa, p, &ps.st.birth, ps.frand, ps.birthFrame(p, t))
	pa.State.Time = t
	pa.Prev = pa.State
	pa.StickTo = -1
	pa.Set(components.FlagNear|components.FlagSticky, false)
	ps.guides[p] = bindGuides(guides, pa.State.Co)
}

// newton integrates forces, applies guides and resolves collisions.
func (ps *ParticleSystem) newton(pa *components.Particle, p int, born bool, from, dt float64, in *stepInputs, ts *taskScratch, emit func(components.ReactionEvent)) {
	forces := systems.Forces{
		Params:    ps.st.forces,
		Size:      pa.Size,
		Effectors: effectorFunc(ps.effs, ps, p, pa.Size, in.end),
		Rand:      ts.stream,
	}
	if ps.st.massFromSize {
		forces.Params.Mass *= pa.Size
	}
	pa.State = systems.Integrate(ps.st.integrator, pa.State, pa.Prev, dt, born, &forces)
	pa.State.Time = in.end

	if b := ps.guides[p]; len(b) > 0 && pa.Lifetime > 0 {
		ps.effs.ApplyGuides(b, &pa.State, (in.end-pa.Time)/pa.Lifetime)
	}

	if len(in.deflectors) == 0 {
		return
	}
	skip := -1
	if born {
		skip = ps.ownDefl
	}
	radius := 0.0
	if ps.st.sizeDeflect {
		radius = pa.Size
	}
	res := systems.Collide(pa, systems.CollisionParams{
		Particle:   p,
		Radius:     radius,
		Size:       pa.Size,
		Kill:       ps.st.dieOnCollision,
		Rolling:    ps.st.rolling,
		StepStart:  from,
		StepEnd:    in.end,
		Dt:         dt,
		SkipFirst:  skip,
		Deflectors: in.deflectors,
	}, ts.stream, emit)
	ts.collisions += res.Collisions
	if res.Exhausted {
		ts.exhausted++
	}
	if res.Killed {
		ts.deaths++
		emit(deathEvent(p, pa))
	}
}

// keyed moves the particle through the same-index particles of its targets.
func (ps *ParticleSystem) keyed(pa *components.Particle, p int, end float64, targets [][]components.Key, ts *taskScratch) {
	ts.keys = ts.keys[:0]
	for _, tk := range targets {
		if p < len(tk) {
			ts.keys = append(ts.keys, tk[p])
		}
	}
	if pa.Lifetime <= 0 {
		return
	}
	if k, ok := systems.KeyedState(ts.keys, (end-pa.Time)/pa.Lifetime); ok {
		k.Time = end
		pa.State = k
	}
}

// birthFrame evaluates the emission context of particle p at frame t.
func (ps *ParticleSystem) birthFrame(p int, t float64) systems.BirthFrame {
	pa := ps.particles.At(p)
	switch ps.st.from {
	case components.FromParticle:
		key := components.Key{Rot: components.IdentityRot}
		if parent := ps.source.at(pa.Site.Element); parent != nil {
			key = keyAt(parent, t)
		}
		return systems.BirthFrame{
			Site: surface.Sample{
				Co:  key.Co,
				Nor: systems.RotateVec(key.Rot, r3.Vec{X: 1}),
				Tan: systems.RotateVec(key.Rot, r3.Vec{Y: 1}),
			},
			Object:    surface.Identity,
			SourceVel: key.Vel,
		}
	case components.FromReaction:
		ev := ps.react[p]
		return systems.BirthFrame{
			Site:      surface.Sample{Co: ev.Co, Nor: ev.Nor},
			Object:    surface.Identity,
			SourceVel: ev.Vel,
		}
	}

	ft := ps.scene.ctx.Config.Derived.FrameTime
	local := systems.EvalSite(ps.emitter, ps.st.from, pa.Site)
	tr := ps.motion.TransformAt(t)
	a := ps.motion.TransformAt(t - 0.5).Point(local.Co)
	b := ps.motion.TransformAt(t + 0.5).Point(local.Co)
	var vel r3.Vec
	if ft > 0 {
		vel = r3.Scale(1/ft, r3.Sub(b, a))
	}
	return systems.BirthFrame{Site: tr.Sample(local), Object: tr, ObjectVel: vel}
}

// keyAt interpolates a source particle's last step at frame t.
func keyAt(pa *components.Particle, t float64) components.Key {
	t0, t1 := pa.Prev.Time, pa.State.Time
	if t1 <= t0 {
		return pa.State
	}
	f := math.Min(math.Max((t-t0)/(t1-t0), 0), 1)
	return systems.LerpKey(pa.Prev, pa.State, f)
}

// effectorFunc binds the effector set to one particle of ps.
func effectorFunc(effs *systems.Effectors, ps *ParticleSystem, p int, size, t float64) systems.ForceFunc {
	if effs == nil || len(effs.List) == 0 {
		return nil
	}
	return func(k components.Key) (r3.Vec, r3.Vec) {
		return effs.Accumulate(systems.EffectedPoint{
			Co:     k.Co,
			Vel:    k.Vel,
			Size:   size,
			Charge: ps.st.charge,
			System: ps.ID,
			Index:  p,
			Time:   t,
		})
	}
}
