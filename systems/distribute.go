package systems

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
)

var (
	// ErrNoEmissionSource is returned when there is no candidate element to emit from.
	ErrNoEmissionSource = errors.New("no emission source")
	// ErrZeroWeight is returned when every candidate element has zero weight.
	ErrZeroWeight = errors.New("zero total emission weight")
)

// Stream salts for the single-threaded parts of a distribution pass.
const (
	saltAssign uint64 = 0x61737369676e
	saltJitter uint64 = 0x6a6974746572
	saltTask   uint64 = 0x7461736b
)

// DistributionParams selects how particles are mapped onto emission sites.
type DistributionParams struct {
	Mode           components.EmissionMode
	Style          components.DistributionStyle
	Even           bool    // Area weighted elements
	Random         bool    // Random element offsets instead of i/(n-1)
	Simplify       bool    // Render simplification, implies Random
	UseDensity     bool    // Multiply weights by vertex density
	Jitter         float64 // Jitter amount, 0 means 1
	JitterOffset   float64 // Rotates the starting cell of each jitter table
	GridResolution int     // Grid cells per axis, 0 derives it from the count
	Seed           uint64
}

// DistributionContext is built once per distribution pass and discarded
// afterwards.
type DistributionContext struct {
	DistributionParams

	Surface surface.Surface
	Parents []r3.Vec // Candidate positions for particle and child modes
	Pool    *WorkerPool

	elements []int     // Element index per cumulative slot
	cum      []float64 // Normalized cumulative weights, last entry is 1
	volume   *surface.BVH
}

// NewDistributionContext builds the cumulative weight table for a pass.
func NewDistributionContext(params DistributionParams, surf surface.Surface, parents []r3.Vec, pool *WorkerPool) (*DistributionContext, error) {
	dc := &DistributionContext{
		DistributionParams: params,
		Surface:            surf,
		Parents:            parents,
		Pool:               pool,
	}
	if params.Simplify {
		dc.Random = true
	}

	weights := dc.elementWeights()
	if len(weights) == 0 {
		return nil, ErrNoEmissionSource
	}

	dc.elements = make([]int, 0, len(weights))
	kept := make([]float64, 0, len(weights))
	for i, w := range weights {
		if w > 0 {
			dc.elements = append(dc.elements, i)
			kept = append(kept, w)
		}
	}
	total := floats.Sum(kept)
	if len(kept) == 0 || total <= 0 || math.IsNaN(total) {
		return nil, ErrZeroWeight
	}

	dc.cum = make([]float64, len(kept))
	floats.CumSum(dc.cum, kept)
	floats.Scale(1/total, dc.cum)
	dc.cum[len(dc.cum)-1] = 1

	if params.Mode == components.FromVolume {
		dc.volume = surface.NewBVH(surface.Triangles(surf, surface.Identity))
	}
	return dc, nil
}

// Elements returns the number of candidate elements with non-zero weight.
func (dc *DistributionContext) Elements() int { return len(dc.elements) }

// elementWeights returns the raw weight of every candidate element.
func (dc *DistributionContext) elementWeights() []float64 {
	switch dc.Mode {
	case components.FromParticle, components.FromChild:
		w := make([]float64, len(dc.Parents))
		for i := range w {
			w[i] = 1
		}
		return w
	case components.FromReaction:
		return nil
	}

	s := dc.Surface
	if s == nil {
		return nil
	}

	if dc.Mode == components.FromVert {
		w := make([]float64, s.NumVerts())
		if dc.Even {
			// A vertex owns an equal share of each face it belongs to.
			for f := 0; f < s.NumFaces(); f++ {
				n, fv := s.FaceVerts(f)
				share := s.FaceArea(f) / float64(n)
				for i := 0; i < n; i++ {
					w[fv[i]] += share
				}
			}
		} else {
			for i := range w {
				w[i] = 1
			}
		}
		if dc.UseDensity {
			for i := range w {
				w[i] *= s.VertDensity(i)
			}
		}
		return w
	}

	w := make([]float64, s.NumFaces())
	for f := range w {
		w[f] = 1
		if dc.Even {
			w[f] = s.FaceArea(f)
		}
		if dc.UseDensity {
			n, fv := s.FaceVerts(f)
			var d float64
			for i := 0; i < n; i++ {
				d += s.VertDensity(fv[i])
			}
			w[f] *= d / float64(n)
		}
	}
	return w
}

// search resolves a cumulative offset to a slot: the first slot whose
// cumulative weight is at least v.
func (dc *DistributionContext) search(v float64) int {
	k := sort.SearchFloat64s(dc.cum, v)
	if k >= len(dc.cum) {
		k = len(dc.cum) - 1
	}
	return k
}

// localOffset returns where v falls inside slot k's cumulative range. Slots
// with equal bounds fall back to 0, or 1 for the final slot.
func (dc *DistributionContext) localOffset(v float64, k int) float64 {
	lo := 0.0
	if k > 0 {
		lo = dc.cum[k-1]
	}
	hi := dc.cum[k]
	if hi <= lo {
		if k == len(dc.cum)-1 {
			return 1
		}
		return 0
	}
	return clamp01((v - lo) / (hi - lo))
}

// assignment is the element chosen for one particle.
type assignment struct {
	slot    int
	local   float64
	ordinal int // Position of the particle among those sharing the slot
}

// Distribute assigns an emission site to every particle. On failure every
// particle is flagged non-existent and the error is returned.
func Distribute(params DistributionParams, surf surface.Surface, parents []r3.Vec, pool *WorkerPool, particles []components.Particle) error {
	dc, err := NewDistributionContext(params, surf, parents, pool)
	if err != nil {
		for i := range particles {
			particles[i].Set(components.FlagUnexist, true)
			particles[i].Site = components.EmissionSite{Element: -1, Derived: -1}
		}
		return fmt.Errorf("distributing %d particles from %s: %w", len(particles), params.Mode, err)
	}
	dc.Fill(particles)
	return nil
}

// Fill writes emission sites into particles.
func (dc *DistributionContext) Fill(particles []components.Particle) {
	n := len(particles)
	if n == 0 {
		return
	}
	if dc.Style == components.DistGrid && (dc.Mode == components.FromFace || dc.Mode == components.FromVolume) {
		dc.fillGrid(particles)
		return
	}

	// Element choice is cheap and sequential so ordinals stay stable.
	assign := make([]assignment, n)
	counts := make([]int, len(dc.cum))
	var rs *Stream
	if dc.Random {
		rs = NewStream(Seed(dc.Seed, 0, saltAssign))
	}
	for i := 0; i < n; i++ {
		var pos float64
		switch {
		case dc.Random:
			pos = rs.Float64()
		case n == 1:
			pos = 0.5
		default:
			pos = float64(i) / float64(n-1)
		}
		k := dc.search(pos)
		assign[i] = assignment{slot: k, local: dc.localOffset(pos, k), ordinal: counts[k]}
		counts[k]++
	}

	var jit *jitterTables
	if dc.Style == components.DistJitter && (dc.Mode == components.FromFace || dc.Mode == components.FromVolume) {
		jit = newJitterTables(dc, counts)
	}

	dc.Pool.Run(n, func(task, start, end int) {
		s := NewStream(Seed(dc.Seed, 0, saltTask+uint64(task)))
		for i := start; i < end; i++ {
			pa := &particles[i]
			pa.Set(components.FlagUnexist, false)
			pa.Site = dc.site(assign[i], jit, s)
		}
	})
}

// site computes the local coordinates of one particle.
func (dc *DistributionContext) site(a assignment, jit *jitterTables, s *Stream) components.EmissionSite {
	elem := dc.elements[a.slot]
	site := components.EmissionSite{Element: elem, Derived: -1}

	switch dc.Mode {
	case components.FromVert:
		site.UV = [4]float64{1, 0, 0, 0}
		return site
	case components.FromParticle, components.FromChild:
		return site
	}

	corners, _ := dc.Surface.FaceVerts(elem)
	var u, v float64
	switch {
	case jit != nil:
		u, v = jit.point(a.slot, a.ordinal)
	case dc.Random:
		u, v = a.local, s.Float64()
	default:
		u, v = s.Float64(), s.Float64()
	}
	if corners == 3 && u+v > 1 {
		u, v = 1-u, 1-v
	}
	site.UV = surface.QuadWeights(corners, u, v)

	if dc.Mode == components.FromVolume {
		site.Extra = components.VolumeDepth{Depth: dc.volumeDepth(elem, site.UV, s.Float64())}
	}
	return site
}

// volumeDepth casts inward from a face site and returns frac of the distance
// to the opposite side of the volume.
func (dc *DistributionContext) volumeDepth(face int, uv [4]float64, frac float64) float64 {
	smp := dc.Surface.SampleFace(face, uv)
	inward := r3.Scale(-1, smp.Nor)
	origin := r3.Add(smp.Co, r3.Scale(surface.MinDistance, inward))
	h, ok := dc.volume.Ray(origin, inward, math.Inf(1))
	if !ok {
		return 0
	}
	return frac * (h.T + surface.MinDistance)
}

// fillGrid places particles on a regular grid over the surface bounds.
// Grid points that miss the surface, and particles beyond the grid, are
// flagged non-existent.
func (dc *DistributionContext) fillGrid(particles []components.Particle) {
	n := len(particles)
	s := dc.Surface
	lo, hi := surfaceBounds(s)
	bvh := dc.volume
	if bvh == nil {
		bvh = surface.NewBVH(surface.Triangles(s, surface.Identity))
	}

	res := dc.GridResolution
	if res <= 0 {
		if dc.Mode == components.FromVolume {
			res = int(math.Ceil(math.Cbrt(float64(n))))
		} else {
			res = int(math.Ceil(math.Sqrt(float64(n))))
		}
	}
	res = max(res, 1)
	size := r3.Sub(hi, lo)
	cell := func(i int, extent float64) float64 { return (float64(i) + 0.5) / float64(res) * extent }

	sites := make([]components.EmissionSite, 0, n)
	exists := make([]bool, 0, n)

	if dc.Mode == components.FromFace {
		top := hi.Z + 1
		for j := 0; j < res && len(sites) < n; j++ {
			for i := 0; i < res && len(sites) < n; i++ {
				origin := r3.Vec{X: lo.X + cell(i, size.X), Y: lo.Y + cell(j, size.Y), Z: top}
				h, ok := bvh.Ray(origin, r3.Vec{Z: -1}, math.Inf(1))
				if !ok {
					sites = append(sites, components.EmissionSite{Element: -1, Derived: -1})
					exists = append(exists, false)
					continue
				}
				sites = append(sites, components.EmissionSite{
					Element: h.Face, Derived: -1, UV: h.Tri.CornerWeights(h.Co),
				})
				exists = append(exists, true)
			}
		}
	} else {
		reach := r3.Norm(size) + 1
		for k := 0; k < res && len(sites) < n; k++ {
			for j := 0; j < res && len(sites) < n; j++ {
				for i := 0; i < res && len(sites) < n; i++ {
					p := r3.Vec{X: lo.X + cell(i, size.X), Y: lo.Y + cell(j, size.Y), Z: lo.Z + cell(k, size.Z)}
					h, ok := bvh.Closest(p, reach)
					if !ok || r3.Dot(r3.Sub(p, h.Co), h.Nor) > 0 {
						sites = append(sites, components.EmissionSite{Element: -1, Derived: -1})
						exists = append(exists, false)
						continue
					}
					sites = append(sites, components.EmissionSite{
						Element: h.Face, Derived: -1, UV: h.Tri.CornerWeights(h.Co),
						Extra: components.VolumeDepth{Depth: h.T},
					})
					exists = append(exists, true)
				}
			}
		}
	}

	for i := range particles {
		pa := &particles[i]
		if i < len(sites) && exists[i] {
			pa.Site = sites[i]
			pa.Set(components.FlagUnexist, false)
			continue
		}
		pa.Site = components.EmissionSite{Element: -1, Derived: -1}
		pa.Set(components.FlagUnexist, true)
	}
}

func surfaceBounds(s surface.Surface) (r3.Vec, r3.Vec) {
	if s.NumVerts() == 0 {
		return r3.Vec{}, r3.Vec{}
	}
	lo := s.SampleVert(0).Co
	hi := lo
	for v := 1; v < s.NumVerts(); v++ {
		co := s.SampleVert(v).Co
		lo = r3.Vec{X: math.Min(lo.X, co.X), Y: math.Min(lo.Y, co.Y), Z: math.Min(lo.Z, co.Z)}
		hi = r3.Vec{X: math.Max(hi.X, co.X), Y: math.Max(hi.Y, co.Y), Z: math.Max(hi.Z, co.Z)}
	}
	return lo, hi
}

// EvalSite evaluates a face, vertex or volume emission site on a surface in
// object space.
func EvalSite(s surface.Surface, mode components.EmissionMode, site components.EmissionSite) surface.Sample {
	if mode == components.FromVert {
		return s.SampleVert(site.Element)
	}
	smp := s.SampleFace(site.Element, site.UV)
	if d, ok := site.Extra.(components.VolumeDepth); ok {
		smp.Co = r3.Sub(smp.Co, r3.Scale(d.Depth, smp.Nor))
	}
	return smp
}
