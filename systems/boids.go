package systems

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
)

// BoidParams are the flocking rule weights of a boids system.
type BoidParams struct {
	Range      float64 // Neighbor radius, zero means unbounded
	Separation float64
	Alignment  float64
	Cohesion   float64
	Goal       r3.Vec
	GoalWeight float64
	MaxSpeed   float64
	MaxAccel   float64
	Neighbors  int
}

// defaultBoidNeighbors is used when Neighbors is not set.
const defaultBoidNeighbors = 8

// BoidStep moves boid p for dt seconds. Neighbors come from idx, built over
// the committed keys of the previous step, so boids never observe each
// other mid-step. scratch is reused between calls and returned.
func BoidStep(pa *components.Particle, p int, bp *BoidParams, idx *SpatialIndex, keys []components.Key, dt float64, scratch []Neighbor) []Neighbor {
	if dt <= 0 {
		return scratch
	}
	co, vel := pa.State.Co, pa.State.Vel

	k := bp.Neighbors
	if k <= 0 {
		k = defaultBoidNeighbors
	}
	scratch = idx.NearestN(scratch[:0], co, k+1)

	var sep, avgVel, centre r3.Vec
	n := 0
	for _, nb := range scratch {
		if nb.Index == p {
			continue
		}
		if bp.Range > 0 && nb.Dist2 > bp.Range*bp.Range {
			continue
		}
		other := keys[nb.Index]
		if nb.Dist2 > 0 {
			sep = r3.Add(sep, r3.Scale(1/nb.Dist2, r3.Sub(co, other.Co)))
		}
		avgVel = r3.Add(avgVel, other.Vel)
		centre = r3.Add(centre, other.Co)
		n++
	}

	var acc r3.Vec
	if n > 0 {
		inv := 1 / float64(n)
		acc = r3.Add(acc, r3.Scale(bp.Separation, sep))
		acc = r3.Add(acc, r3.Scale(bp.Alignment, r3.Sub(r3.Scale(inv, avgVel), vel)))
		acc = r3.Add(acc, r3.Scale(bp.Cohesion, r3.Sub(r3.Scale(inv, centre), co)))
	}
	if bp.GoalWeight != 0 {
		acc = r3.Add(acc, r3.Scale(bp.GoalWeight, surface.Normalize(r3.Sub(bp.Goal, co))))
	}
	acc = limitLength(acc, bp.MaxAccel)

	vel = limitLength(r3.Add(vel, r3.Scale(dt, acc)), bp.MaxSpeed)
	pa.State.Co = r3.Add(co, r3.Scale(dt, vel))
	pa.State.Vel = vel

	heading := surface.Normalize(vel)
	if heading == (r3.Vec{}) {
		heading = surface.Normalize(pa.State.Ave)
	}
	if heading != (r3.Vec{}) {
		pa.State.Ave = heading
		pa.State.Rot = basisRot(heading, r3.Vec{Z: 1})
	}
	return scratch
}
