// Package systems implements the particle simulation core: random streams,
// spatial indexing, emission distribution, the lifecycle, integration,
// effectors, collisions and the secondary physics modes.
package systems

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Neighbor is one result of a spatial query.
type Neighbor struct {
	Index int     // Caller supplied index of the point
	Dist2 float64 // Squared distance to the query
}

// indexedPoint is a kd-tree point carrying the caller's index.
type indexedPoint struct {
	r3.Vec
	Index int
}

func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(indexedPoint)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		return p.Z - q.Z
	}
}

func (p indexedPoint) Dims() int { return 3 }

func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(indexedPoint)
	return r3.Norm2(r3.Sub(p.Vec, q.Vec))
}

type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p indexedPoints) Len() int                      { return len(p) }
func (p indexedPoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}
func (p indexedPoints) Pivot(d kdtree.Dim) int {
	return pointPlane{indexedPoints: p, Dim: d}.Pivot()
}

type pointPlane struct {
	kdtree.Dim
	indexedPoints
}

func (p pointPlane) Less(i, j int) bool {
	return p.indexedPoints[i].Compare(p.indexedPoints[j], p.Dim) < 0
}
func (p pointPlane) Swap(i, j int) {
	p.indexedPoints[i], p.indexedPoints[j] = p.indexedPoints[j], p.indexedPoints[i]
}
func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	p.indexedPoints = p.indexedPoints[start:end]
	return p
}
func (p pointPlane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

// SpatialIndex is a balanced k-d tree over a fixed set of points. It is
// rebuilt rather than mutated, and tagged with the frame it was built for.
// Queries are safe for concurrent use.
type SpatialIndex struct {
	tree  *kdtree.Tree
	n     int
	frame float64
}

// NewSpatialIndex builds an index over cos. indices maps each point to the
// caller's index; nil means the position in cos.
func NewSpatialIndex(cos []r3.Vec, indices []int, frame float64) *SpatialIndex {
	pts := make(indexedPoints, len(cos))
	for i, co := range cos {
		idx := i
		if indices != nil {
			idx = indices[i]
		}
		pts[i] = indexedPoint{Vec: co, Index: idx}
	}
	s := &SpatialIndex{n: len(pts), frame: frame}
	if len(pts) > 0 {
		s.tree = kdtree.New(pts, false)
	}
	return s
}

// Frame returns the frame the index was built for.
func (s *SpatialIndex) Frame() float64 { return s.frame }

// Len returns the number of indexed points.
func (s *SpatialIndex) Len() int {
	if s == nil {
		return 0
	}
	return s.n
}

// Valid reports whether the index can serve queries for frame.
func (s *SpatialIndex) Valid(frame float64) bool {
	return s != nil && s.frame == frame
}

// Nearest returns the closest point to q.
func (s *SpatialIndex) Nearest(q r3.Vec) (Neighbor, bool) {
	if s.Len() == 0 {
		return Neighbor{}, false
	}
	c, d := s.tree.Nearest(indexedPoint{Vec: q})
	if c == nil {
		return Neighbor{}, false
	}
	return Neighbor{Index: c.(indexedPoint).Index, Dist2: d}, true
}

// NearestN appends the n closest points to q onto dst, closest first.
func (s *SpatialIndex) NearestN(dst []Neighbor, q r3.Vec, n int) []Neighbor {
	if s.Len() == 0 || n <= 0 {
		return dst
	}
	keep := kdtree.NewNKeeper(n)
	s.tree.NearestSet(keep, indexedPoint{Vec: q})
	return appendHeap(dst, keep.Heap)
}

// Within appends every point within radius of q onto dst, closest first.
func (s *SpatialIndex) Within(dst []Neighbor, q r3.Vec, radius float64) []Neighbor {
	if s.Len() == 0 || radius <= 0 {
		return dst
	}
	keep := kdtree.NewDistKeeper(radius * radius)
	s.tree.NearestSet(keep, indexedPoint{Vec: q})
	return appendHeap(dst, keep.Heap)
}

func appendHeap(dst []Neighbor, h kdtree.Heap) []Neighbor {
	start := len(dst)
	for _, cd := range h {
		if cd.Comparable == nil || math.IsInf(cd.Dist, 1) {
			continue
		}
		dst = append(dst, Neighbor{Index: cd.Comparable.(indexedPoint).Index, Dist2: cd.Dist})
	}
	out := dst[start:]
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dist2 != out[j].Dist2 {
			return out[i].Dist2 < out[j].Dist2
		}
		return out[i].Index < out[j].Index
	})
	return dst
}
