package systems

import "math"

// jitterTables holds stratified sample points per element slot. An element
// that receives m particles is split into g×g cells with g = ceil(√m) and the
// particles are spread evenly over the cells.
type jitterTables struct {
	points [][][2]float64 // Indexed by slot, then ordinal
}

func newJitterTables(dc *DistributionContext, counts []int) *jitterTables {
	amount := dc.Jitter
	if amount <= 0 {
		amount = 1
	}
	amount = math.Min(amount, 2)

	jt := &jitterTables{points: make([][][2]float64, len(counts))}
	s := NewStream(0)
	for slot, m := range counts {
		if m == 0 {
			continue
		}
		s.Reseed(Seed(dc.Seed, dc.elements[slot], saltJitter))
		jt.points[slot] = jitterCells(m, amount, dc.JitterOffset, s)
	}
	return jt
}

// jitterCells returns m stratified points in the unit square.
func jitterCells(m int, amount, offset float64, s *Stream) [][2]float64 {
	g := int(math.Ceil(math.Sqrt(float64(m))))
	cells := g * g
	start := int(math.Floor(offset*float64(cells))) % cells
	if start < 0 {
		start += cells
	}

	out := make([][2]float64, m)
	for o := range out {
		c := (start + int(float64(o)*float64(cells)/float64(m))) % cells
		cx, cy := c%g, c/g
		// Both draws are always consumed so the table does not depend on
		// the jitter amount.
		rx, ry := s.Float64(), s.Float64()
		out[o] = [2]float64{
			clamp01((float64(cx) + 0.5 + amount*(rx-0.5)) / float64(g)),
			clamp01((float64(cy) + 0.5 + amount*(ry-0.5)) / float64(g)),
		}
	}
	return out
}

func (jt *jitterTables) point(slot, ordinal int) (float64, float64) {
	pts := jt.points[slot]
	if ordinal >= len(pts) {
		return 0.5, 0.5
	}
	p := pts[ordinal]
	return p[0], p[1]
}
