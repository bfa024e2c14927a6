package systems

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
)

// RotationParams configures the per-step rotation pass.
type RotationParams struct {
	Enabled bool
	Dynamic bool // Angular velocity follows forces and collisions
	Mode    components.AngularMode
	Factor  float64
}

// Rotate integrates the rotation of a particle over dt seconds. The angular
// velocity set at birth spins the particle about its axis. With dynamic
// rotation in a velocity driven mode the spin is derived from the change in
// velocity direction over the step instead. The result is renormalized.
func Rotate(pa *components.Particle, rp RotationParams, dt float64) {
	if !rp.Enabled {
		pa.State.Rot = components.IdentityRot
		return
	}
	if dt <= 0 {
		return
	}

	rot2 := components.IdentityRot
	if rp.Dynamic && (rp.Mode == components.AngVelocity || rp.Mode == components.AngHorizontal || rp.Mode == components.AngVertical) {
		len1, len2 := r3.Norm(pa.Prev.Vel), r3.Norm(pa.State.Vel)
		if len1 == 0 || len2 == 0 {
			pa.State.Ave = r3.Vec{}
		} else {
			axis := r3.Cross(pa.Prev.Vel, pa.State.Vel)
			cos := r3.Dot(pa.Prev.Vel, pa.State.Vel) / (len1 * len2)
			angle := math.Acos(math.Max(-1, math.Min(1, cos)))
			pa.State.Ave = r3.Scale(angle/dt, surface.Normalize(axis))
		}
		rot2 = AxisAngle(AngularAxis(rp.Mode, pa.State.Vel), dt*rp.Factor)
	}

	rot1 := components.IdentityRot
	if rate := r3.Norm(pa.State.Ave); rate != 0 {
		rot1 = AxisAngle(pa.State.Ave, rate*dt)
	}

	rot := quat.Mul(rot1, pa.Prev.Rot)
	pa.State.Rot = NormalizeQuat(quat.Mul(rot2, rot))
}

// AngularAxis returns the spin axis of a velocity driven angular mode.
func AngularAxis(mode components.AngularMode, vel r3.Vec) r3.Vec {
	up := r3.Vec{Z: 1}
	switch mode {
	case components.AngHorizontal:
		return surface.Normalize(r3.Cross(up, vel))
	case components.AngVertical:
		h := r3.Cross(up, vel)
		return surface.Normalize(r3.Cross(h, vel))
	case components.AngGlobalX:
		return r3.Vec{X: 1}
	case components.AngGlobalY:
		return r3.Vec{Y: 1}
	case components.AngGlobalZ:
		return up
	}
	return surface.Normalize(vel)
}
