package systems

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
)

// clamp01 clamps a value to the [0, 1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func lerpVec(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// AxisAngle returns the rotation of angle radians about axis.
func AxisAngle(axis r3.Vec, angle float64) quat.Number {
	axis = surface.Normalize(axis)
	if axis == (r3.Vec{}) {
		return components.IdentityRot
	}
	s, c := math.Sincos(angle / 2)
	return quat.Number{Real: c, Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

// NormalizeQuat returns q scaled to unit length, or the identity for a zero q.
func NormalizeQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < 1e-12 {
		return components.IdentityRot
	}
	return quat.Scale(1/n, q)
}

// RotateVec rotates v by the unit quaternion q.
func RotateVec(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Slerp interpolates between unit quaternions along the shorter arc.
func Slerp(a, b quat.Number, t float64) quat.Number {
	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	if dot < 0 {
		b = quat.Scale(-1, b)
		dot = -dot
	}
	if dot > 0.9995 {
		return NormalizeQuat(quat.Add(a, quat.Scale(t, quat.Sub(b, a))))
	}
	theta := math.Acos(dot)
	sin := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sin
	wb := math.Sin(t*theta) / sin
	return quat.Add(quat.Scale(wa, a), quat.Scale(wb, b))
}

// LerpKey interpolates two kinematic samples: position, velocity and angular
// velocity linearly, rotation spherically.
func LerpKey(a, b components.Key, t float64) components.Key {
	return components.Key{
		Co:   lerpVec(a.Co, b.Co, t),
		Vel:  lerpVec(a.Vel, b.Vel, t),
		Rot:  Slerp(a.Rot, b.Rot, t),
		Ave:  lerpVec(a.Ave, b.Ave, t),
		Time: lerp(a.Time, b.Time, t),
	}
}

// basisRot returns the rotation whose X axis is x and whose Y axis is the
// part of yHint perpendicular to x.
func basisRot(x, yHint r3.Vec) quat.Number {
	x = surface.Normalize(x)
	if x == (r3.Vec{}) {
		return components.IdentityRot
	}
	y := surface.Tangent(x, yHint)
	z := r3.Cross(x, y)
	return surface.BasisToQuat(x, y, z)
}

// limitLength scales v down to at most max.
func limitLength(v r3.Vec, max float64) r3.Vec {
	if max <= 0 {
		return v
	}
	n := r3.Norm(v)
	if n > max {
		return r3.Scale(max/n, v)
	}
	return v
}
