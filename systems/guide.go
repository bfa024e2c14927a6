package systems

import (
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
)

// Guide is a polyline path particles follow over their lifetime. It is
// read-only after construction.
type Guide struct {
	Points   []r3.Vec
	FreeEnd  float64 // Fraction of the lifetime spent free at the end
	Strength float64
	Falloff  Falloff

	arc []float64 // Normalized cumulative arc length per point
}

// NewGuide builds a guide over points. A guide needs at least two points.
func NewGuide(points []r3.Vec, freeEnd, strength float64, falloff Falloff) *Guide {
	g := &Guide{Points: points, FreeEnd: freeEnd, Strength: strength, Falloff: falloff}
	g.arc = make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		g.arc[i] = g.arc[i-1] + r3.Norm(r3.Sub(points[i], points[i-1]))
	}
	if total := g.arc[len(g.arc)-1]; total > 0 {
		for i := range g.arc {
			g.arc[i] /= total
		}
	}
	return g
}

// At returns the position and unit tangent at arc length fraction u.
func (g *Guide) At(u float64) (r3.Vec, r3.Vec) {
	n := len(g.Points)
	if n == 0 {
		return r3.Vec{}, r3.Vec{Z: 1}
	}
	if n == 1 {
		return g.Points[0], r3.Vec{Z: 1}
	}
	u = clamp01(u)
	seg := n - 2
	for i := 1; i < n; i++ {
		if g.arc[i] >= u {
			seg = i - 1
			break
		}
	}
	a, b := g.Points[seg], g.Points[seg+1]
	span := g.arc[seg+1] - g.arc[seg]
	t := 0.0
	if span > 0 {
		t = (u - g.arc[seg]) / span
	}
	return lerpVec(a, b, t), surface.Normalize(r3.Sub(b, a))
}

// Project returns the arc length fraction of the path point nearest to co.
// The coarse vertex search seeds a Nelder-Mead refinement.
func (g *Guide) Project(co r3.Vec) float64 {
	if len(g.Points) < 2 {
		return 0
	}
	dist := func(u float64) float64 {
		p, _ := g.At(u)
		d := r3.Norm2(r3.Sub(co, p))
		// Penalize leaving [0,1] so the simplex stays on the path.
		if u < 0 {
			d += u * u
		} else if u > 1 {
			d += (u - 1) * (u - 1)
		}
		return d
	}

	best, bestD := 0.0, math.Inf(1)
	const coarse = 32
	for i := 0; i <= coarse; i++ {
		u := float64(i) / coarse
		if d := dist(u); d < bestD {
			best, bestD = u, d
		}
	}

	problem := optimize.Problem{Func: func(x []float64) float64 { return dist(x[0]) }}
	res, err := optimize.Minimize(problem, []float64{best}, nil, &optimize.NelderMead{SimplexSize: 1.0 / coarse})
	if err != nil || res == nil || res.F > bestD {
		return best
	}
	return clamp01(res.X[0])
}

// GuideBinding is what a particle remembers about a guide from its birth.
type GuideBinding struct {
	U        float64 // Projection of the birth position
	Offset   r3.Vec  // Birth position relative to the path at U
	Strength float64 // Falloff weighted strength at birth
}

// Bind projects a birth position onto the path.
func (g *Guide) Bind(co r3.Vec) GuideBinding {
	u := g.Project(co)
	p, tan := g.At(u)
	offset := r3.Sub(co, p)
	return GuideBinding{
		U:        u,
		Offset:   offset,
		Strength: g.Strength * g.Falloff.Factor(offset, tan),
	}
}

// Apply blends key towards the path position at the particle's age and
// aligns its velocity with the path. It reports whether the key changed.
func (g *Guide) Apply(b GuideBinding, key *components.Key, age float64) bool {
	if b.Strength <= 0 || len(g.Points) < 2 || g.FreeEnd >= 1 {
		return false
	}
	t := age / (1 - g.FreeEnd)
	if t > 1 {
		return false
	}

	pos, tan := g.At(t)
	_, tan0 := g.At(b.U)
	offset := b.Offset
	if axis := r3.Cross(tan0, tan); r3.Norm2(axis) > 1e-18 {
		angle := math.Acos(math.Max(-1, math.Min(1, r3.Dot(tan0, tan))))
		offset = RotateVec(AxisAngle(axis, angle), offset)
	}
	target := r3.Add(pos, offset)

	key.Co = lerpVec(key.Co, target, clamp01(b.Strength))
	key.Vel = r3.Scale(r3.Norm(key.Vel), tan)
	return true
}
