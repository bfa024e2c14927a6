package surface

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// bvhMaxLeafSize is the triangle count at which the BVH stops splitting.
const bvhMaxLeafSize = 4

// Triangle is one world space triangle of a deflecting or emitting surface.
type Triangle struct {
	A, B, C r3.Vec
	Face    int    // Source face index
	Corners [3]int // Face corners of A, B and C
}

// Normal returns the unit normal following the A, B, C winding.
func (t Triangle) Normal() r3.Vec {
	return Normalize(r3.Cross(r3.Sub(t.B, t.A), r3.Sub(t.C, t.A)))
}

// Barycentric returns the weights of A, B and C that reproduce the
// projection of p onto the triangle plane.
func (t Triangle) Barycentric(p r3.Vec) [3]float64 {
	v0, v1, v2 := r3.Sub(t.B, t.A), r3.Sub(t.C, t.A), r3.Sub(p, t.A)
	d00, d01, d11 := r3.Dot(v0, v0), r3.Dot(v0, v1), r3.Dot(v1, v1)
	d20, d21 := r3.Dot(v2, v0), r3.Dot(v2, v1)
	denom := d00*d11 - d01*d01
	if math.Abs(denom) < 1e-24 {
		return [3]float64{1, 0, 0}
	}
	v := (d11*d20 - d01*d21) / denom
	w := (d00*d21 - d01*d20) / denom
	return [3]float64{1 - v - w, v, w}
}

// CornerWeights converts a point on the triangle into weights over the
// corners of its source face, suitable for Surface.SampleFace.
func (t Triangle) CornerWeights(p r3.Vec) [4]float64 {
	var w [4]float64
	b := t.Barycentric(p)
	for i, c := range t.Corners {
		w[c] += b[i]
	}
	return w
}

// Hit describes the nearest intersection of a cast.
type Hit struct {
	T    float64 // Fraction along the segment, or distance along a ray
	Co   r3.Vec  // Contact point on the (radius offset) surface
	Nor  r3.Vec  // Surface normal facing the cast origin
	Face int
	Tri  Triangle
}

// Triangles splits every face of s into world space triangles.
func Triangles(s Surface, tr Transform) []Triangle {
	out := make([]Triangle, 0, s.NumFaces()*2)
	for f := 0; f < s.NumFaces(); f++ {
		n, fv := s.FaceVerts(f)
		co := func(i int) r3.Vec { return tr.Point(s.SampleVert(fv[i]).Co) }
		out = append(out, Triangle{A: co(0), B: co(1), C: co(2), Face: f, Corners: [3]int{0, 1, 2}})
		if n == 4 {
			out = append(out, Triangle{A: co(0), B: co(2), C: co(3), Face: f, Corners: [3]int{0, 2, 3}})
		}
	}
	return out
}

type bvhNode struct {
	min, max    r3.Vec
	left, right *bvhNode
	tris        []Triangle // non-nil ⇒ leaf
}

// BVH is an axis aligned bounding volume hierarchy over triangles.
// It is immutable after construction and safe for concurrent queries.
type BVH struct {
	root *bvhNode
	n    int
}

// NewBVH builds a BVH. The slice is reordered in place.
func NewBVH(tris []Triangle) *BVH {
	return &BVH{root: buildBVH(tris), n: len(tris)}
}

// Len returns the triangle count.
func (b *BVH) Len() int { return b.n }

// Triangles returns every triangle in leaf order.
func (b *BVH) Triangles() []Triangle {
	out := make([]Triangle, 0, b.n)
	stack := []*bvhNode{b.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		if n.tris != nil {
			out = append(out, n.tris...)
			continue
		}
		stack = append(stack, n.right, n.left)
	}
	return out
}

func triBounds(t Triangle) (r3.Vec, r3.Vec) {
	lo := vmin(vmin(t.A, t.B), t.C)
	hi := vmax(vmax(t.A, t.B), t.C)
	return lo, hi
}

func buildBVH(tris []Triangle) *bvhNode {
	n := len(tris)
	if n == 0 {
		return nil
	}
	lo, hi := triBounds(tris[0])
	clo := centroid(tris[0])
	chi := clo
	for i := 1; i < n; i++ {
		a, b := triBounds(tris[i])
		lo, hi = vmin(lo, a), vmax(hi, b)
		c := centroid(tris[i])
		clo, chi = vmin(clo, c), vmax(chi, c)
	}
	if n <= bvhMaxLeafSize {
		return &bvhNode{min: lo, max: hi, tris: tris}
	}

	spread := r3.Sub(chi, clo)
	axis := 0
	if spread.Y > spread.X {
		axis = 1
	}
	if spread.Z > axisOf(spread, axis) {
		axis = 2
	}
	// Coincident centroids: split by the longest box extent instead.
	if axisOf(spread, axis) <= 1e-18 {
		ext := r3.Sub(hi, lo)
		axis = 0
		if ext.Y > ext.X {
			axis = 1
		}
		if ext.Z > axisOf(ext, axis) {
			axis = 2
		}
	}

	sort.SliceStable(tris, func(i, j int) bool {
		return axisOf(centroid(tris[i]), axis) < axisOf(centroid(tris[j]), axis)
	})
	mid := n / 2
	return &bvhNode{
		min:   lo,
		max:   hi,
		left:  buildBVH(tris[:mid]),
		right: buildBVH(tris[mid:]),
	}
}

func centroid(t Triangle) r3.Vec {
	return r3.Scale(1.0/3.0, r3.Add(r3.Add(t.A, t.B), t.C))
}

func axisOf(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func vmin(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

func vmax(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}

// segmentBox reports whether the segment p0 + t*d, t in [0,tMax], touches the
// box grown by pad. Returns the entry parameter.
func segmentBox(p0, d, lo, hi r3.Vec, pad, tMax float64) (bool, float64) {
	tmin, tmax := 0.0, tMax
	for axis := 0; axis < 3; axis++ {
		o, dir := axisOf(p0, axis), axisOf(d, axis)
		l, h := axisOf(lo, axis)-pad, axisOf(hi, axis)+pad
		if math.Abs(dir) < 1e-18 {
			if o < l || o > h {
				return false, 0
			}
			continue
		}
		inv := 1 / dir
		t0, t1 := (l-o)*inv, (h-o)*inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math.Max(tmin, t0)
		tmax = math.Min(tmax, t1)
		if tmin > tmax {
			return false, 0
		}
	}
	return true, tmin
}

// Segment returns the first hit of a sphere of the given radius moving from
// p0 to p1. Hit.T is the fraction of the segment travelled. A zero length
// segment falls back to Overlap.
func (b *BVH) Segment(p0, p1 r3.Vec, radius float64) (Hit, bool) {
	d := r3.Sub(p1, p0)
	if r3.Norm2(d) < 1e-24 {
		return b.Overlap(p0, radius)
	}
	return b.cast(p0, d, radius, 1)
}

// Ray returns the first hit of an infinitely thin ray within tMax along the
// unit direction dir.
func (b *BVH) Ray(origin, dir r3.Vec, tMax float64) (Hit, bool) {
	return b.cast(origin, dir, 0, tMax)
}

// cast is the nearest-hit traversal shared by Segment and Ray. It prunes
// subtrees by the current best parameter.
func (b *BVH) cast(p0, d r3.Vec, radius, tMax float64) (Hit, bool) {
	if b == nil || b.root == nil {
		return Hit{}, false
	}
	best := Hit{T: tMax}
	found := false

	stack := []*bvhNode{b.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ok, _ := segmentBox(p0, d, n.min, n.max, radius, best.T)
		if !ok {
			continue
		}
		if n.tris != nil {
			for i := range n.tris {
				if h, ok := sweepTriangle(p0, d, radius, n.tris[i]); ok && h.T <= best.T {
					best = h
					found = true
				}
			}
			continue
		}
		if n.right != nil {
			stack = append(stack, n.right)
		}
		if n.left != nil {
			stack = append(stack, n.left)
		}
	}
	return best, found
}

// sweepTriangle intersects the moving point p0 + t*d against the triangle
// plane offset by radius towards the origin side.
func sweepTriangle(p0, d r3.Vec, radius float64, tri Triangle) (Hit, bool) {
	nor := tri.Normal()
	if nor == (r3.Vec{}) {
		return Hit{}, false
	}
	dist0 := r3.Dot(r3.Sub(p0, tri.A), nor)
	if dist0 < 0 {
		nor = r3.Scale(-1, nor)
		dist0 = -dist0
	}
	denom := r3.Dot(d, nor)
	if denom >= -1e-18 {
		// Moving away from or parallel to the plane.
		return Hit{}, false
	}
	t := (radius - dist0) / denom
	if t < 0 {
		// Already inside the radius shell. Only report it when the point is
		// over the triangle so the resolver can push it out.
		if dist0 > radius || !insideTriangle(r3.Sub(p0, r3.Scale(dist0, nor)), tri, nor) {
			return Hit{}, false
		}
		t = 0
	}
	co := r3.Add(p0, r3.Scale(t, d))
	onPlane := r3.Sub(co, r3.Scale(radius, nor))
	if !insideTriangle(onPlane, tri, nor) {
		return Hit{}, false
	}
	return Hit{T: t, Co: co, Nor: nor, Face: tri.Face, Tri: tri}, true
}

func insideTriangle(p r3.Vec, tri Triangle, nor r3.Vec) bool {
	const eps = -1e-9
	c0 := r3.Dot(r3.Cross(r3.Sub(tri.B, tri.A), r3.Sub(p, tri.A)), nor)
	c1 := r3.Dot(r3.Cross(r3.Sub(tri.C, tri.B), r3.Sub(p, tri.B)), nor)
	c2 := r3.Dot(r3.Cross(r3.Sub(tri.A, tri.C), r3.Sub(p, tri.C)), nor)
	return (c0 >= eps && c1 >= eps && c2 >= eps) || (c0 <= -eps && c1 <= -eps && c2 <= -eps)
}

// Overlap reports the closest triangle whose surface lies within radius of p,
// or within MinDistance when radius is zero. The hit normal points from the
// surface towards p.
func (b *BVH) Overlap(p r3.Vec, radius float64) (Hit, bool) {
	h, ok := b.Closest(p, math.Max(radius, MinDistance))
	if !ok {
		return Hit{}, false
	}
	nor := Normalize(r3.Sub(p, h.Co))
	if nor == (r3.Vec{}) {
		nor = h.Nor
	}
	return Hit{T: 0, Co: p, Nor: nor, Face: h.Face, Tri: h.Tri}, true
}

// Closest returns the surface point nearest to p within maxDist. Hit.T is the
// distance, Hit.Co the closest point and Hit.Nor the geometric normal of the
// triangle containing it.
func (b *BVH) Closest(p r3.Vec, maxDist float64) (Hit, bool) {
	if b == nil || b.root == nil {
		return Hit{}, false
	}
	best := Hit{T: maxDist}
	found := false

	stack := []*bvhNode{b.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ok, _ := segmentBox(p, r3.Vec{}, n.min, n.max, best.T, 0)
		if !ok {
			continue
		}
		if n.tris != nil {
			for _, tri := range n.tris {
				cp := ClosestOnTriangle(p, tri)
				dist := r3.Norm(r3.Sub(p, cp))
				if dist <= best.T {
					best = Hit{T: dist, Co: cp, Nor: tri.Normal(), Face: tri.Face, Tri: tri}
					found = true
				}
			}
			continue
		}
		if n.right != nil {
			stack = append(stack, n.right)
		}
		if n.left != nil {
			stack = append(stack, n.left)
		}
	}
	return best, found
}

// MinDistance is the separation below which a point counts as touching a
// surface.
const MinDistance = 0.0001

// ClosestOnTriangle returns the point of tri closest to p.
func ClosestOnTriangle(p r3.Vec, tri Triangle) r3.Vec {
	a, b, c := tri.A, tri.B, tri.C
	ab, ac, ap := r3.Sub(b, a), r3.Sub(c, a), r3.Sub(p, a)
	d1, d2 := r3.Dot(ab, ap), r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := r3.Sub(p, b)
	d3, d4 := r3.Dot(ab, bp), r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return r3.Add(a, r3.Scale(d1/(d1-d3), ab))
	}
	cp := r3.Sub(p, c)
	d5, d6 := r3.Dot(ab, cp), r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return r3.Add(a, r3.Scale(d2/(d2-d6), ac))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		return r3.Add(b, r3.Scale((d4-d3)/((d4-d3)+(d5-d6)), r3.Sub(c, b)))
	}
	denom := 1 / (va + vb + vc)
	v, w := vb*denom, vc*denom
	return r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
}
