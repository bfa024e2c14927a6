package surface

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Transform maps object space to world space with an orthonormal basis.
type Transform struct {
	Origin  r3.Vec
	X, Y, Z r3.Vec
}

// Identity is the transform that leaves coordinates unchanged.
var Identity = Transform{X: r3.Vec{X: 1}, Y: r3.Vec{Y: 1}, Z: r3.Vec{Z: 1}}

// Translate returns the identity basis moved to origin.
func Translate(origin r3.Vec) Transform {
	t := Identity
	t.Origin = origin
	return t
}

// Point maps an object space point to world space.
func (t Transform) Point(p r3.Vec) r3.Vec {
	return r3.Add(t.Origin, t.Dir(p))
}

// Dir maps an object space direction to world space.
func (t Transform) Dir(d r3.Vec) r3.Vec {
	return r3.Add(r3.Add(r3.Scale(d.X, t.X), r3.Scale(d.Y, t.Y)), r3.Scale(d.Z, t.Z))
}

// Sample maps a surface sample to world space.
func (t Transform) Sample(s Sample) Sample {
	return Sample{
		Co:       t.Point(s.Co),
		Nor:      Normalize(t.Dir(s.Nor)),
		Tan:      Normalize(t.Dir(s.Tan)),
		Material: s.Material,
	}
}

// Rotation returns the basis as a unit quaternion.
func (t Transform) Rotation() quat.Number {
	return BasisToQuat(t.X, t.Y, t.Z)
}

// BasisToQuat converts an orthonormal basis (the columns of a rotation
// matrix) to a unit quaternion.
func BasisToQuat(x, y, z r3.Vec) quat.Number {
	m00, m11, m22 := x.X, y.Y, z.Z
	tr := m00 + m11 + m22
	var q quat.Number
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		q = quat.Number{Real: s / 4, Imag: (y.Z - z.Y) / s, Jmag: (z.X - x.Z) / s, Kmag: (x.Y - y.X) / s}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q = quat.Number{Real: (y.Z - z.Y) / s, Imag: s / 4, Jmag: (y.X + x.Y) / s, Kmag: (z.X + x.Z) / s}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q = quat.Number{Real: (z.X - x.Z) / s, Imag: (y.X + x.Y) / s, Jmag: s / 4, Kmag: (z.Y + y.Z) / s}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q = quat.Number{Real: (x.Y - y.X) / s, Imag: (z.X + x.Z) / s, Jmag: (z.Y + y.Z) / s, Kmag: s / 4}
	}
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	return q
}

// TransformProvider reports an object's world transform at a frame time.
type TransformProvider interface {
	TransformAt(frame float64) Transform
}

// Static is a transform that never changes.
type Static Transform

func (s Static) TransformAt(float64) Transform { return Transform(s) }

// Linear moves a base transform at a constant velocity in units per frame.
type Linear struct {
	Base     Transform
	Velocity r3.Vec
	Frame0   float64 // Frame at which the object sits at Base
}

func (l Linear) TransformAt(frame float64) Transform {
	t := l.Base
	t.Origin = r3.Add(t.Origin, r3.Scale(frame-l.Frame0, l.Velocity))
	return t
}

// TransformFunc adapts a function to TransformProvider.
type TransformFunc func(frame float64) Transform

func (f TransformFunc) TransformAt(frame float64) Transform { return f(frame) }
