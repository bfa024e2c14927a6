package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
)

// ChildParams configures child particle generation.
type ChildParams struct {
	Mode      components.ChildMode
	PerParent int
	Radius    float64
	Virtual   float64 // Fraction of interpolated children without a primary parent
	Seed      uint64
}

const saltChild uint64 = 0x6368696c64

// childParents is the number of parents an interpolated child blends.
const childParents = 4

// SimpleChildren places PerParent children around each parent within a
// sphere of the given radius. roots are the parents' positions and only
// their count matters for assignment.
func SimpleChildren(roots []r3.Vec, cp ChildParams, pool *WorkerPool) ([]components.ChildParticle, error) {
	n := len(roots) * cp.PerParent
	if n == 0 {
		return nil, nil
	}
	parts := make([]components.Particle, n)
	params := DistributionParams{Mode: components.FromChild, Seed: cp.Seed}
	if err := Distribute(params, nil, roots, pool, parts); err != nil {
		return nil, err
	}

	children := make([]components.ChildParticle, n)
	pool.Run(n, func(_, start, end int) {
		s := NewStream(0)
		for c := start; c < end; c++ {
			s.Reseed(Seed(cp.Seed, c, saltChild))
			dir := surface.Normalize(r3.Vec{X: s.Signed(), Y: s.Signed(), Z: s.Signed()})
			r := cp.Radius * math.Cbrt(s.Float64())
			children[c] = components.ChildParticle{
				Parent:  parts[c].Site.Element,
				Parents: [4]int{parts[c].Site.Element, -1, -1, -1},
				Weights: [4]float64{1, 0, 0, 0},
				Offset:  r3.Scale(r, dir),
				Element: -1,
				Rand:    s.Float64(),
			}
		}
	})
	return children, nil
}

// InterpolatedChildren distributes children over the faces of surf and
// binds each to its nearest parent roots with inverse distance weights.
// roots are the parents' birth positions in the same space as surf.
// Children drawing below the Virtual fraction get no primary parent.
func InterpolatedChildren(surf surface.Surface, roots []r3.Vec, cp ChildParams, pool *WorkerPool) ([]components.ChildParticle, error) {
	n := len(roots) * cp.PerParent
	if n == 0 {
		return nil, nil
	}
	parts := make([]components.Particle, n)
	params := DistributionParams{
		Mode:   components.FromFace,
		Style:  components.DistRandom,
		Random: true,
		Even:   true,
		Seed:   cp.Seed ^ saltChild,
	}
	if err := Distribute(params, surf, nil, pool, parts); err != nil {
		return nil, err
	}
	idx := NewSpatialIndex(roots, nil, 0)

	children := make([]components.ChildParticle, n)
	pool.Run(n, func(_, start, end int) {
		s := NewStream(0)
		var nb []Neighbor
		for c := start; c < end; c++ {
			s.Reseed(Seed(cp.Seed, c, saltChild))
			site := parts[c].Site
			co := EvalSite(surf, components.FromFace, site).Co

			child := components.ChildParticle{
				Parent:  -1,
				Parents: [4]int{-1, -1, -1, -1},
				Element: site.Element,
				UV:      site.UV,
				Rand:    s.Float64(),
			}
			nb = idx.NearestN(nb[:0], co, childParents)
			var total float64
			var blended r3.Vec
			for i, p := range nb {
				w := 1 / (math.Sqrt(p.Dist2) + 1e-6)
				child.Parents[i] = p.Index
				child.Weights[i] = w
				total += w
			}
			for i := range nb {
				child.Weights[i] /= total
				blended = r3.Add(blended, r3.Scale(child.Weights[i], roots[nb[i].Index]))
			}
			child.Offset = r3.Sub(co, blended)
			if len(nb) > 0 && child.Rand >= cp.Virtual {
				child.Parent = nb[0].Index
			}
			children[c] = child
		}
	})
	return children, nil
}

// ChildState evaluates a child from its parents' current state. A child is
// shown while its primary parent is alive, or any parent for virtual
// children. Simple children carry no emission face.
func ChildState(c components.ChildParticle, parents []components.Particle) (components.Key, bool) {
	if c.Element < 0 {
		if c.Parent < 0 || c.Parent >= len(parents) {
			return components.Key{}, false
		}
		pa := &parents[c.Parent]
		key := pa.State
		key.Co = r3.Add(key.Co, RotateVec(pa.State.Rot, c.Offset))
		return key, pa.Alive == components.Alive
	}

	var key components.Key
	key.Rot = components.IdentityRot
	alive := false
	var total float64
	for i, p := range c.Parents {
		if p < 0 || p >= len(parents) {
			continue
		}
		pa := &parents[p]
		w := c.Weights[i]
		key.Co = r3.Add(key.Co, r3.Scale(w, pa.State.Co))
		key.Vel = r3.Add(key.Vel, r3.Scale(w, pa.State.Vel))
		if total == 0 {
			key.Rot = pa.State.Rot
			key.Time = pa.State.Time
		}
		total += w
		if pa.Alive == components.Alive && (c.Parent < 0 || p == c.Parent) {
			alive = true
		}
	}
	if total == 0 {
		return components.Key{}, false
	}
	key.Co = r3.Add(r3.Scale(1/total, key.Co), c.Offset)
	key.Vel = r3.Scale(1/total, key.Vel)
	return key, alive
}
