package systems

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
)

// BirthParams holds the emission settings of a system that shape each
// particle's birth.
type BirthParams struct {
	Start, End   float64 // Emission frame range
	Lifetime     float64 // Frames
	RandLifetime float64
	Size         float64
	RandSize     float64
	Display      float64 // Fraction of particles shown
	Hair         bool
	Boids        bool

	Normal       float64 // Velocity along the emitter normal
	Tangent      float64 // Velocity along the emitter tangent
	TangentPhase float64 // Rotates the tangent about the normal, in half turns
	ObjectAxes   r3.Vec  // Velocity along the emitter's X, Y and Z axes
	ObjectFactor float64 // Share of the emitter's own velocity
	RandomVel    float64
	SourceFactor float64 // Share of the parent particle or reaction velocity

	RotMode   components.RotationMode
	RandRot   float64
	Phase     float64 // Rotation about the particle X axis, in half turns
	RandPhase float64
	AngMode   components.AngularMode
	AngFactor float64
}

// InitializeParticle sets the data that does not change during a particle's
// life: birth and death times, size and display. Particles are spread evenly
// over the emission range by index; reaction sites carry their own birth
// time.
func InitializeParticle(pa *components.Particle, p, total int, bp *BirthParams, fr *Frand) {
	if total < 1 {
		total = 1
	}
	pa.Time = bp.Start + (bp.End-bp.Start)*float64(p)/float64(total)
	if rt, ok := pa.Site.Extra.(components.ReactionTiming); ok {
		pa.Time = rt.Time
	}

	pa.Size = ParticleSize(p, bp, fr)
	pa.Lifetime = bp.Lifetime
	if bp.Hair {
		pa.Lifetime = 100
	} else if bp.RandLifetime != 0 {
		pa.Lifetime *= 1 - bp.RandLifetime*fr.At(p, FrandLife)
	}
	pa.DieTime = pa.Time + pa.Lifetime
	pa.Loop = 0
	pa.StickTo = -1
	pa.Alive = components.Unborn
	pa.Set(components.FlagNoDisplay, fr.At(p, FrandDisplay) > bp.Display)
	pa.State = components.Key{Rot: components.IdentityRot, Time: -1}
	pa.Prev = pa.State
}

// ParticleSize returns the randomized size of particle p.
func ParticleSize(p int, bp *BirthParams, fr *Frand) float64 {
	size := bp.Size
	if bp.RandSize > 0 {
		size *= 1 - bp.RandSize*fr.At(p, FrandSize)
	}
	return size
}

// BirthFrame is the world space emission context of one particle.
type BirthFrame struct {
	Site      surface.Sample    // Emission site in world space
	Object    surface.Transform // Emitter transform at the birth time
	ObjectVel r3.Vec            // Emitter velocity at the site, units per second
	SourceVel r3.Vec            // Parent particle or reaction velocity
}

// ResetParticle places particle p on its emission site with its birth
// velocity, rotation and angular velocity. Every random value comes from the
// frand table at fixed offsets, so the result does not depend on batching.
func ResetParticle(pa *components.Particle, p int, bp *BirthParams, fr *Frand, bf BirthFrame) {
	nor := surface.Normalize(bf.Site.Nor)
	var state components.Key
	state.Co = bf.Site.Co
	state.Rot = components.IdentityRot

	rVel := surface.Normalize(r3.Vec{
		X: 2 * (fr.At(p, FrandVel) - 0.5),
		Y: 2 * (fr.At(p, FrandVel+1) - 0.5),
		Z: 2 * (fr.At(p, FrandVel+2) - 0.5),
	})

	if bp.Boids {
		// Boids start at rest and store their heading in the angular velocity.
		state.Ave = nor
		state.Rot = basisRot(nor, r3.Scale(-1, rVel))
		pa.State = state
		return
	}

	vtan := birthTangent(nor, bf.Site.Tan, bp.TangentPhase)

	vel := r3.Scale(bp.SourceFactor, bf.SourceVel)
	vel = r3.Add(vel, r3.Scale(bp.ObjectFactor, bf.ObjectVel))
	vel = r3.Add(vel, r3.Scale(bp.Normal, nor))
	vel = r3.Add(vel, r3.Scale(bp.Tangent, vtan))
	axes := [3]r3.Vec{bf.Object.X, bf.Object.Y, bf.Object.Z}
	for i, f := range [3]float64{bp.ObjectAxes.X, bp.ObjectAxes.Y, bp.ObjectAxes.Z} {
		if f != 0 {
			vel = r3.Add(vel, r3.Scale(f, surface.Normalize(axes[i])))
		}
	}
	if bp.RandomVel != 0 {
		vel = r3.Add(vel, r3.Scale(bp.RandomVel, rVel))
	}
	state.Vel = vel

	if bp.RotMode != components.RotNone {
		rot := birthRotation(bp.RotMode, nor, vtan, vel, bf.Object)
		if bp.RandRot != 0 {
			rRot := NormalizeQuat(quat.Number{
				Real: 2 * (fr.At(p, FrandRot) - 0.5),
				Imag: 2 * (fr.At(p, FrandRot+1) - 0.5),
				Jmag: 2 * (fr.At(p, FrandRot+2) - 0.5),
				Kmag: 2 * (fr.At(p, FrandRot+3) - 0.5),
			})
			rot = Slerp(rot, quat.Mul(rRot, bf.Object.Rotation()), bp.RandRot)
		}
		phase := bp.Phase + bp.RandPhase*fr.At(p, FrandPhase)
		state.Rot = NormalizeQuat(quat.Mul(rot, AxisAngle(r3.Vec{X: 1}, phase*math.Pi)))
	}

	switch bp.AngMode {
	case components.AngNone:
	case components.AngRandom:
		rAve := surface.Normalize(r3.Vec{
			X: 2 * (fr.At(p, FrandAve) - 0.5),
			Y: 2 * (fr.At(p, FrandAve+1) - 0.5),
			Z: 2 * (fr.At(p, FrandAve+2) - 0.5),
		})
		state.Ave = r3.Scale(bp.AngFactor, rAve)
	default:
		state.Ave = r3.Scale(bp.AngFactor, AngularAxis(bp.AngMode, vel))
	}

	pa.State = state
}

// birthTangent returns the emitter tangent rotated by phase half turns about
// the normal and made perpendicular to it.
func birthTangent(nor, tan r3.Vec, phase float64) r3.Vec {
	u := surface.Tangent(nor, tan)
	v := r3.Cross(nor, u)
	s, c := math.Sincos(math.Pi * phase)
	t := r3.Add(r3.Scale(-c, v), r3.Scale(-s, u))
	t = r3.Sub(t, r3.Scale(r3.Dot(t, nor), nor))
	return surface.Normalize(t)
}

// birthRotation aligns the particle X axis according to mode.
func birthRotation(mode components.RotationMode, nor, vtan, vel r3.Vec, ob surface.Transform) quat.Number {
	up := r3.Vec{Z: 1}
	switch mode {
	case components.RotNor:
		return basisRot(nor, up)
	case components.RotNorTan:
		return basisRot(nor, vtan)
	case components.RotVel:
		return basisRot(vel, up)
	case components.RotGlobalX:
		return basisRot(r3.Vec{X: 1}, up)
	case components.RotGlobalY:
		return basisRot(r3.Vec{Y: 1}, up)
	case components.RotGlobalZ:
		return basisRot(up, r3.Vec{Y: 1})
	case components.RotObX:
		return basisRot(ob.X, ob.Z)
	case components.RotObY:
		return basisRot(ob.Y, ob.Z)
	case components.RotObZ:
		return basisRot(ob.Z, ob.Y)
	}
	return components.IdentityRot
}
