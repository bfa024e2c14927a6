package systems

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
)

// ForceFunc returns the external force and velocity impulse acting on a
// particle in the given state.
type ForceFunc func(state components.Key) (force, impulse r3.Vec)

// ForceParams are the per-system terms added to every force evaluation.
type ForceParams struct {
	Mass         float64
	Gravity      r3.Vec // Weighted global gravity, an acceleration
	Acceleration r3.Vec // Constant extra acceleration
	Drag         float64
	Brownian     float64
	Damping      float64
}

// Forces evaluates the shared force model: effectors, air drag and Brownian
// noise. Every integration scheme calls it, so these terms are identical
// across schemes. The stream supplies the Brownian draws and may be nil when
// Brownian is zero.
type Forces struct {
	Params    ForceParams
	Size      float64
	Effectors ForceFunc
	Rand      *Stream
}

// Acceleration returns the total acceleration and impulse in state.
func (f *Forces) Acceleration(state components.Key) (r3.Vec, r3.Vec) {
	var force, impulse r3.Vec
	if f.Effectors != nil {
		force, impulse = f.Effectors(state)
	}
	if f.Params.Drag != 0 {
		force = r3.Add(force, r3.Scale(-f.Params.Drag*f.Size*f.Size*r3.Norm(state.Vel), state.Vel))
	}
	if f.Params.Brownian != 0 && f.Rand != nil {
		force = r3.Add(force, r3.Vec{
			X: (f.Rand.Float64() - 0.5) * f.Params.Brownian,
			Y: (f.Rand.Float64() - 0.5) * f.Params.Brownian,
			Z: (f.Rand.Float64() - 0.5) * f.Params.Brownian,
		})
	}

	mass := f.Params.Mass
	if mass <= 0 {
		mass = 1
	}
	acc := r3.Scale(1/mass, force)
	acc = r3.Add(acc, f.Params.Gravity)
	acc = r3.Add(acc, f.Params.Acceleration)
	return acc, impulse
}

// Integrate advances state by dt seconds with the given scheme. prev is the
// key of the previous step and is only read by Verlet; first marks a
// particle's first step, which Verlet performs with Euler.
func Integrate(method components.Integrator, state, prev components.Key, dt float64, first bool, f *Forces) components.Key {
	if dt <= 0 {
		return state
	}
	if method == components.Verlet && first {
		method = components.Euler
	}

	out := state
	switch method {
	case components.Midpoint:
		s0 := state
		a0, i0 := f.Acceleration(s0)
		s0.Vel = r3.Add(s0.Vel, i0)

		s1 := s0
		s1.Co = r3.Add(s0.Co, r3.Scale(dt/2, s0.Vel))
		s1.Vel = r3.Add(s0.Vel, r3.Scale(dt/2, a0))

		a1, i1 := f.Acceleration(s1)
		s1.Vel = r3.Add(s1.Vel, i1)
		out.Co = r3.Add(s0.Co, r3.Scale(dt, s1.Vel))
		out.Vel = r3.Add(s0.Vel, r3.Scale(dt, a1))

	case components.RK4:
		s0 := state
		a0, i0 := f.Acceleration(s0)
		s0.Vel = r3.Add(s0.Vel, i0)
		dx0, dv0 := r3.Scale(dt, s0.Vel), r3.Scale(dt, a0)

		s1 := s0
		s1.Co = r3.Add(s0.Co, r3.Scale(0.5, dx0))
		s1.Vel = r3.Add(s0.Vel, r3.Scale(0.5, dv0))
		a1, i1 := f.Acceleration(s1)
		s1.Vel = r3.Add(s1.Vel, i1)
		dx1 := r3.Scale(dt, r3.Add(s0.Vel, r3.Scale(0.5, dv0)))
		dv1 := r3.Scale(dt, a1)

		s2 := s0
		s2.Co = r3.Add(s0.Co, r3.Scale(0.5, dx1))
		s2.Vel = r3.Add(s0.Vel, r3.Scale(0.5, dv1))
		a2, i2 := f.Acceleration(s2)
		s2.Vel = r3.Add(s2.Vel, i2)
		dx2 := r3.Scale(dt, r3.Add(s0.Vel, r3.Scale(0.5, dv1)))
		dv2 := r3.Scale(dt, a2)

		s3 := s0
		s3.Co = r3.Add(s0.Co, dx2)
		s3.Vel = r3.Add(s0.Vel, dv2)
		a3, i3 := f.Acceleration(s3)
		s3.Vel = r3.Add(s3.Vel, i3)
		dx3 := r3.Scale(dt, r3.Add(s0.Vel, dv2))
		dv3 := r3.Scale(dt, a3)

		out.Co = r3.Add(s0.Co, rk4Sum(dx0, dx1, dx2, dx3))
		out.Vel = r3.Add(s0.Vel, rk4Sum(dv0, dv1, dv2, dv3))

	case components.Verlet:
		a, i := f.Acceleration(state)
		vel := r3.Add(r3.Add(prev.Vel, i), r3.Scale(dt, a))
		out.Co = r3.Add(prev.Co, r3.Scale(dt, vel))
		out.Vel = r3.Scale(1/dt, r3.Sub(out.Co, state.Co))

	default:
		a, i := f.Acceleration(state)
		v := r3.Add(state.Vel, i)
		out.Co = r3.Add(state.Co, r3.Scale(dt, v))
		out.Vel = r3.Add(v, r3.Scale(dt, a))
	}

	if f.Params.Damping != 0 {
		out.Vel = r3.Scale(DampingFactor(f.Params.Damping, dt), out.Vel)
	}
	return out
}

// DampingFactor is the multiplicative velocity factor for damping over dt
// seconds.
func DampingFactor(damping, dt float64) float64 {
	return max(0, 1-damping*25*dt)
}

func rk4Sum(k0, k1, k2, k3 r3.Vec) r3.Vec {
	s := r3.Scale(1.0/6, k0)
	s = r3.Add(s, r3.Scale(1.0/3, k1))
	s = r3.Add(s, r3.Scale(1.0/3, k2))
	return r3.Add(s, r3.Scale(1.0/6, k3))
}
