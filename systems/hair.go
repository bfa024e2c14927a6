package systems

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
)

// HairParams shapes grown strands.
type HairParams struct {
	Segments int
	Length   float64
}

// GrowHair grows a strand from the particle's birth state. Each segment is
// integrated through the shared force model and laid along the integrated
// velocity at a fixed length, so forces bend the strand without stretching it.
func GrowHair(pa *components.Particle, hp HairParams, method components.Integrator, f *Forces) {
	segs := max(hp.Segments, 1)
	segLen := hp.Length / float64(segs)

	dir := surface.Normalize(pa.State.Vel)
	if dir == (r3.Vec{}) {
		dir = RotateVec(pa.State.Rot, r3.Vec{X: 1})
	}

	key := pa.State
	key.Vel = r3.Scale(segLen*float64(segs), dir)
	key.Time = 0

	keys := make([]components.Key, 0, segs+1)
	keys = append(keys, key)
	dt := 1 / float64(segs)
	for i := 1; i <= segs; i++ {
		next := Integrate(method, key, key, dt, i == 1, f)
		step := surface.Normalize(next.Vel)
		if step == (r3.Vec{}) {
			step = dir
		}
		next.Co = r3.Add(key.Co, r3.Scale(segLen, step))
		next.Vel = r3.Scale(r3.Norm(key.Vel), step)
		next.Time = float64(i) / float64(segs)
		keys = append(keys, next)
		key = next
	}
	pa.Hair = keys
}
