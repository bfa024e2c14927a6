package systems

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
)

const (
	// MaxCollisionIterations bounds the deflections resolved in one step.
	MaxCollisionIterations = 10
	// CollisionMinRadius is the collision radius of point-like particles.
	CollisionMinRadius = 0.001
)

// Deflector is a static collision surface in world space.
type Deflector struct {
	Name         string
	Index        int
	BVH          *surface.BVH
	Damping      float64
	RandDamping  float64
	Friction     float64
	RandFriction float64
	Permeability float64
	Stickiness   float64
	Kill         bool
}

// CollisionParams describes one particle's step for the resolver.
type CollisionParams struct {
	Particle   int
	Radius     float64
	Size       float64
	Kill       bool // Die on any collision
	Rolling    bool // Rolling friction couples angular and linear velocity
	StepStart  float64
	StepEnd    float64
	Dt         float64 // Step length in seconds
	SkipFirst  int     // Deflector ignored for the whole step, -1 for none
	Deflectors []*Deflector
}

// CollisionResult summarizes a resolved step.
type CollisionResult struct {
	Collisions int
	Killed     bool
	Exhausted  bool // Iteration bound reached, state accepted as is
}

// Collide tests the particle's motion from Prev to State against the
// deflectors and resolves every hit in order. It always terminates within
// MaxCollisionIterations casts and never fails: when the bound is reached
// the current approximate state is accepted. Each resolved collision is
// passed to emit.
func Collide(pa *components.Particle, cp CollisionParams, s *Stream, emit func(components.ReactionEvent)) CollisionResult {
	var res CollisionResult
	if len(cp.Deflectors) == 0 || cp.Dt <= 0 {
		return res
	}
	radius := cp.Radius
	if radius <= 0 {
		radius = CollisionMinRadius
	}

	acc := r3.Scale(1/cp.Dt, r3.Sub(pa.State.Vel, pa.Prev.Vel))
	co1, co2 := pa.Prev.Co, pa.State.Co
	ve1 := pa.Prev.Vel
	f := 0.0

	skip := make([]bool, len(cp.Deflectors))
	if cp.SkipFirst >= 0 && cp.SkipFirst < len(skip) {
		skip[cp.SkipFirst] = true
	}

	for res.Collisions < MaxCollisionIterations {
		hit, di, ok := nearestHit(cp.Deflectors, skip, co1, co2, radius)
		if !ok {
			return res
		}
		d := cp.Deflectors[di]
		res.Collisions++
		if res.Collisions == MaxCollisionIterations {
			res.Exhausted = true
			return res
		}

		x := hit.T
		fHit := f + x*(1-f)
		dt1 := (fHit - f) * cp.Dt
		dt2 := (1 - fHit) * cp.Dt
		through := s.Float64() < d.Permeability
		damp := clamp01(d.Damping + d.RandDamping*s.Signed())
		frict := clamp01(d.Friction + d.RandFriction*s.Signed())

		co := hit.Co
		nor := hit.Nor
		hitTime := cp.StepStart + (cp.StepEnd-cp.StepStart)*fHit

		if !through && (cp.Kill || d.Kill) {
			state := LerpKey(pa.Prev, pa.State, fHit)
			state.Co = co
			Kill(pa, hitTime, state)
			res.Killed = true
			emitCollision(emit, cp.Particle, d.Index, co, pa.State.Vel, nor, hitTime)
			return res
		}

		v0 := r3.Add(ve1, r3.Scale(dt1, acc))
		v0Dot := r3.Dot(nor, v0)
		v0Tan := r3.Sub(v0, r3.Scale(v0Dot, nor))

		if frict > 0 {
			if cp.Rolling {
				vrTan := r3.Scale(cp.Size, r3.Cross(nor, pa.State.Ave))
				v1Tan := r3.Scale(1/1.4, r3.Add(v0Tan, r3.Scale(-0.4, vrTan)))
				v1Tan = r3.Scale(1-0.01*frict, v1Tan)
				ave := r3.Scale(1/max(cp.Size, CollisionMinRadius), r3.Cross(r3.Scale(-1, v1Tan), nor))
				pa.State.Ave = lerpVec(pa.State.Ave, ave, frict)
				v0Tan = lerpVec(v0Tan, v1Tan, frict)
			} else {
				v0Tan = r3.Scale(1-frict, v0Tan)
			}
		}

		if v0Dot < 0 {
			v0Dot = min(v0Dot+d.Stickiness, 0)
		}
		v0Dot *= 1 - damp

		var v0Nor r3.Vec
		switch {
		case v0Dot > 0:
			v0Nor = r3.Scale(v0Dot, nor)
		case through:
			v0Nor = r3.Scale(v0Dot, nor)
		default:
			v0Nor = r3.Scale(-v0Dot, nor)
		}
		v0 = r3.Add(v0Nor, v0Tan)

		pa.State.Co = r3.Add(r3.Add(co, r3.Scale(dt2, v0)), r3.Scale(0.5*dt2*dt2, acc))
		pa.State.Vel = r3.Add(v0, r3.Scale(dt2, acc))

		if !through {
			co = pushOut(co, hit.Tri, nor, radius)
			v0 = removeInward(v0, nor)
			pa.State.Co = pushOut(pa.State.Co, hit.Tri, nor, radius)
			pa.State.Vel = removeInward(pa.State.Vel, nor)
		}
		if d.Stickiness > 0 {
			pa.State.Vel = r3.Sub(pa.State.Vel, r3.Scale(d.Stickiness, nor))
		}
		pa.Set(components.FlagSticky, d.Stickiness > 0 && !through && v0Dot == 0)

		emitCollision(emit, cp.Particle, d.Index, co, v0, nor, hitTime)

		co1, co2 = co, pa.State.Co
		ve1 = v0
		f = fHit
		if through {
			skip[di] = true
		}
	}
	return res
}

// nearestHit returns the earliest hit over all deflectors not skipped and
// the position of its deflector.
func nearestHit(defl []*Deflector, skip []bool, p0, p1 r3.Vec, radius float64) (surface.Hit, int, bool) {
	var best surface.Hit
	bestI := -1
	for i, d := range defl {
		if skip[i] || d.BVH == nil {
			continue
		}
		h, ok := d.BVH.Segment(p0, p1, radius)
		if ok && (bestI < 0 || h.T < best.T) {
			best, bestI = h, i
		}
	}
	return best, bestI, bestI >= 0
}

// pushOut moves p to at least radius plus MinDistance above the triangle
// plane on the nor side.
func pushOut(p r3.Vec, tri surface.Triangle, nor r3.Vec, radius float64) r3.Vec {
	dist := r3.Dot(r3.Sub(p, tri.A), nor)
	if need := radius + surface.MinDistance; dist < need {
		p = r3.Add(p, r3.Scale(need-dist, nor))
	}
	return p
}

func removeInward(v, nor r3.Vec) r3.Vec {
	if d := r3.Dot(nor, v); d < 0 {
		v = r3.Sub(v, r3.Scale(d, nor))
	}
	return v
}

func emitCollision(emit func(components.ReactionEvent), p, source int, co, vel, nor r3.Vec, t float64) {
	if emit == nil {
		return
	}
	emit(components.ReactionEvent{
		Kind:     components.ReactCollision,
		Co:       co,
		Vel:      vel,
		Nor:      nor,
		Time:     t,
		Particle: p,
		Source:   source,
	})
}
