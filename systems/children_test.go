package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
)

func aliveParents(cos ...r3.Vec) []components.Particle {
	out := make([]components.Particle, len(cos))
	for i, co := range cos {
		out[i] = components.Particle{
			Alive: components.Alive,
			State: components.Key{Co: co, Vel: r3.Vec{X: float64(i)}, Rot: components.IdentityRot},
		}
	}
	return out
}

// ---------- Simple ----------

func TestSimpleChildren(t *testing.T) {
	roots := []r3.Vec{{}, {X: 10}, {Y: 10}}
	cp := ChildParams{Mode: components.ChildSimple, PerParent: 5, Radius: 0.5, Seed: 2}
	children, err := SimpleChildren(roots, cp, NewWorkerPool(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 15 {
		t.Fatalf("expected 15 children, got %d", len(children))
	}

	counts := make([]int, len(roots))
	for i, c := range children {
		if c.Element != -1 {
			t.Errorf("child %d: simple children carry no face, got %d", i, c.Element)
		}
		if r3.Norm(c.Offset) > cp.Radius+1e-12 {
			t.Errorf("child %d: offset %v beyond radius", i, c.Offset)
		}
		counts[c.Parent]++
	}
	for p, n := range counts {
		if n != 5 {
			t.Errorf("parent %d: expected 5 children, got %d", p, n)
		}
	}
}

func TestSimpleChildren_FollowParent(t *testing.T) {
	parents := aliveParents(r3.Vec{X: 3})
	c := components.ChildParticle{Parent: 0, Offset: r3.Vec{Y: 1}, Element: -1}
	key, visible := ChildState(c, parents)
	if !visible {
		t.Error("child of an alive parent should be visible")
	}
	if key.Co != (r3.Vec{X: 3, Y: 1}) {
		t.Errorf("expected parent plus offset, got %v", key.Co)
	}

	parents[0].Alive = components.Dead
	if _, visible := ChildState(c, parents); visible {
		t.Error("child of a dead parent should be hidden")
	}
	if _, visible := ChildState(components.ChildParticle{Parent: 5, Element: -1}, parents); visible {
		t.Error("child with a missing parent should be hidden")
	}
}

func TestSimpleChildren_None(t *testing.T) {
	children, err := SimpleChildren(nil, ChildParams{PerParent: 4}, NewWorkerPool(1))
	if err != nil || children != nil {
		t.Errorf("expected no children and no error, got %d %v", len(children), err)
	}
}

// ---------- Interpolated ----------

func TestInterpolatedChildren(t *testing.T) {
	grid := surface.NewGrid(4, 4)
	var roots []r3.Vec
	for v := 0; v < grid.NumVerts(); v++ {
		roots = append(roots, grid.SampleVert(v).Co)
	}
	cp := ChildParams{Mode: components.ChildInterpolated, PerParent: 2, Virtual: 0.3, Seed: 8}
	children, err := InterpolatedChildren(grid, roots, cp, NewWorkerPool(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2*len(roots) {
		t.Fatalf("expected %d children, got %d", 2*len(roots), len(children))
	}

	virtual := 0
	for i, c := range children {
		var sum float64
		for k, w := range c.Weights {
			if c.Parents[k] < 0 {
				continue
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("child %d: weights sum to %f", i, sum)
		}
		if c.Element < 0 {
			t.Errorf("child %d: interpolated children carry a face", i)
		}
		if c.Parent < 0 {
			virtual++
			if c.Rand >= cp.Virtual {
				t.Errorf("child %d: virtual with rand %f", i, c.Rand)
			}
		}
	}
	if virtual == 0 || virtual == len(children) {
		t.Errorf("expected a mix of virtual and parented children, got %d virtual", virtual)
	}
}

func TestInterpolatedChildren_RestPosition(t *testing.T) {
	grid := surface.NewGrid(2, 2)
	var roots []r3.Vec
	for v := 0; v < grid.NumVerts(); v++ {
		roots = append(roots, grid.SampleVert(v).Co)
	}
	children, err := InterpolatedChildren(grid, roots, ChildParams{PerParent: 1, Seed: 1}, NewWorkerPool(1))
	if err != nil {
		t.Fatal(err)
	}

	// With parents at rest, each child sits on its emission site.
	parents := aliveParents(roots...)
	for i, c := range children {
		key, visible := ChildState(c, parents)
		if !visible {
			t.Errorf("child %d should be visible", i)
		}
		site := grid.SampleFace(c.Element, c.UV).Co
		if r3.Norm(r3.Sub(key.Co, site)) > 1e-9 {
			t.Errorf("child %d: expected %v, got %v", i, site, key.Co)
		}
	}
}

func TestChildState_VirtualVisibleWithAnyParent(t *testing.T) {
	parents := aliveParents(r3.Vec{}, r3.Vec{X: 2})
	parents[0].Alive = components.Dead
	c := components.ChildParticle{
		Parent:  -1,
		Parents: [4]int{0, 1, -1, -1},
		Weights: [4]float64{0.5, 0.5, 0, 0},
		Element: 0,
	}
	key, visible := ChildState(c, parents)
	if !visible {
		t.Error("virtual child should be visible while any parent lives")
	}
	if key.Co != (r3.Vec{X: 1}) {
		t.Errorf("expected blended position, got %v", key.Co)
	}

	c.Parent = 0
	if _, visible := ChildState(c, parents); visible {
		t.Error("child should hide with its dead primary parent")
	}
}
