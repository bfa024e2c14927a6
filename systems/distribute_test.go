package systems

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
)

// ---------- Errors ----------

func TestDistribute_NoSource(t *testing.T) {
	parts := make([]components.Particle, 10)
	err := Distribute(DistributionParams{Mode: components.FromFace}, nil, nil, NewWorkerPool(1), parts)
	if !errors.Is(err, ErrNoEmissionSource) {
		t.Fatalf("expected ErrNoEmissionSource, got %v", err)
	}
	for i, pa := range parts {
		if pa.Exists() {
			t.Errorf("particle %d should be flagged unexist", i)
		}
		if pa.Site.Element != -1 {
			t.Errorf("particle %d should have no element, got %d", i, pa.Site.Element)
		}
	}
}

func TestDistribute_ZeroWeight(t *testing.T) {
	quad := surface.NewQuad(1)
	quad.Density = []float64{0, 0, 0, 0}
	parts := make([]components.Particle, 5)
	params := DistributionParams{Mode: components.FromFace, UseDensity: true}
	err := Distribute(params, quad, nil, NewWorkerPool(1), parts)
	if !errors.Is(err, ErrZeroWeight) {
		t.Fatalf("expected ErrZeroWeight, got %v", err)
	}
	if parts[0].Exists() {
		t.Error("particles should be flagged unexist")
	}
}

func TestDistribute_ReactionHasNoElements(t *testing.T) {
	_, err := NewDistributionContext(DistributionParams{Mode: components.FromReaction}, nil, nil, nil)
	if !errors.Is(err, ErrNoEmissionSource) {
		t.Errorf("expected ErrNoEmissionSource, got %v", err)
	}
}

// ---------- Assignment ----------

func TestDistribute_SequentialVerts(t *testing.T) {
	quad := surface.NewQuad(1)
	parts := make([]components.Particle, 4)
	params := DistributionParams{Mode: components.FromVert}
	if err := Distribute(params, quad, nil, NewWorkerPool(1), parts); err != nil {
		t.Fatal(err)
	}
	for i, pa := range parts {
		if pa.Site.Element != i {
			t.Errorf("particle %d: expected vertex %d, got %d", i, i, pa.Site.Element)
		}
		if pa.Site.UV != [4]float64{1, 0, 0, 0} {
			t.Errorf("particle %d: unexpected vertex weights %v", i, pa.Site.UV)
		}
	}
}

func TestDistribute_EvenWeighting(t *testing.T) {
	// One large face and one tiny face: with even distribution almost every
	// particle lands on the large one.
	mesh := surface.NewMesh([]r3.Vec{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10},
		{X: 20, Y: 0}, {X: 20.1, Y: 0}, {X: 20.1, Y: 0.1}, {X: 20, Y: 0.1},
	}, [][4]int{{0, 1, 2, 3}, {4, 5, 6, 7}})

	tests := []struct {
		name    string
		even    bool
		minBig  int
		maxBig  int
		samples int
	}{
		{"even", true, 995, 1000, 1000},
		{"uniform", false, 450, 550, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := make([]components.Particle, tt.samples)
			params := DistributionParams{Mode: components.FromFace, Style: components.DistRandom, Even: tt.even, Seed: 3}
			if err := Distribute(params, mesh, nil, NewWorkerPool(2), parts); err != nil {
				t.Fatal(err)
			}
			big := 0
			for _, pa := range parts {
				if pa.Site.Element == 0 {
					big++
				}
			}
			if big < tt.minBig || big > tt.maxBig {
				t.Errorf("expected %d..%d particles on the large face, got %d", tt.minBig, tt.maxBig, big)
			}
		})
	}
}

func TestDistribute_Reproducible(t *testing.T) {
	grid := surface.NewGrid(2, 4)
	styles := []components.DistributionStyle{components.DistJitter, components.DistRandom}
	for _, style := range styles {
		t.Run(style.String(), func(t *testing.T) {
			run := func() []components.Particle {
				parts := make([]components.Particle, 300)
				params := DistributionParams{Mode: components.FromFace, Style: style, Random: true, Even: true, Seed: 42}
				if err := Distribute(params, grid, nil, NewWorkerPool(4), parts); err != nil {
					t.Fatal(err)
				}
				return parts
			}
			a, b := run(), run()
			for i := range a {
				if a[i].Site != b[i].Site {
					t.Fatalf("particle %d differs between runs: %+v vs %+v", i, a[i].Site, b[i].Site)
				}
			}
		})
	}
}

func TestDistribute_SimplifyUsesRandomOffsets(t *testing.T) {
	grid := surface.NewGrid(2, 4)
	run := func(params DistributionParams) []components.Particle {
		parts := make([]components.Particle, 50)
		if err := Distribute(params, grid, nil, NewWorkerPool(1), parts); err != nil {
			t.Fatal(err)
		}
		return parts
	}
	base := DistributionParams{Mode: components.FromFace, Style: components.DistRandom, Even: true, Seed: 9}

	random, simplified, even := base, base, base
	random.Random = true
	simplified.Simplify = true

	r, s, e := run(random), run(simplified), run(even)
	differs := false
	for i := range r {
		if r[i].Site != s[i].Site {
			t.Fatalf("particle %d: expected simplified site %+v to match random %+v", i, s[i].Site, r[i].Site)
		}
		if r[i].Site != e[i].Site {
			differs = true
		}
	}
	if !differs {
		t.Error("expected random offsets to differ from even offsets")
	}
}

func TestDistribute_JitterIndependentOfWorkers(t *testing.T) {
	grid := surface.NewGrid(2, 3)
	run := func(workers int) []components.Particle {
		parts := make([]components.Particle, 200)
		params := DistributionParams{Mode: components.FromFace, Style: components.DistJitter, Seed: 9}
		if err := Distribute(params, grid, nil, NewWorkerPool(workers), parts); err != nil {
			t.Fatal(err)
		}
		return parts
	}
	a, b := run(1), run(8)
	for i := range a {
		if a[i].Site != b[i].Site {
			t.Fatalf("particle %d depends on the worker count", i)
		}
	}
}

func TestDistribute_SitesOnSurface(t *testing.T) {
	quad := surface.NewQuad(2)
	parts := make([]components.Particle, 150)
	params := DistributionParams{Mode: components.FromFace, Style: components.DistJitter, Jitter: 1, Seed: 5}
	if err := Distribute(params, quad, nil, NewWorkerPool(2), parts); err != nil {
		t.Fatal(err)
	}
	for i, pa := range parts {
		var sum float64
		for _, w := range pa.Site.UV {
			if w < 0 || w > 1 {
				t.Fatalf("particle %d: weight %f outside [0,1]", i, w)
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("particle %d: weights sum to %f", i, sum)
		}
		co := EvalSite(quad, components.FromFace, pa.Site).Co
		if co.X < 0 || co.X > 2 || co.Y < 0 || co.Y > 2 || co.Z != 0 {
			t.Errorf("particle %d off the quad: %v", i, co)
		}
	}
}

func TestDistribute_Parents(t *testing.T) {
	parents := []r3.Vec{{X: 0}, {X: 1}, {X: 2}}
	parts := make([]components.Particle, 9)
	params := DistributionParams{Mode: components.FromParticle}
	if err := Distribute(params, nil, parents, NewWorkerPool(1), parts); err != nil {
		t.Fatal(err)
	}
	counts := make([]int, len(parents))
	for _, pa := range parts {
		counts[pa.Site.Element]++
	}
	for i, c := range counts {
		if c != 3 {
			t.Errorf("parent %d: expected 3 particles, got %d", i, c)
		}
	}
}

// ---------- Grid and volume ----------

func TestDistribute_Grid(t *testing.T) {
	quad := surface.NewQuad(1)
	parts := make([]components.Particle, 20)
	params := DistributionParams{Mode: components.FromFace, Style: components.DistGrid, GridResolution: 4}
	if err := Distribute(params, quad, nil, NewWorkerPool(1), parts); err != nil {
		t.Fatal(err)
	}
	for i, pa := range parts {
		if i < 16 {
			if !pa.Exists() {
				t.Errorf("grid particle %d should exist", i)
				continue
			}
			co := EvalSite(quad, components.FromFace, pa.Site).Co
			want := r3.Vec{X: (float64(i%4) + 0.5) / 4, Y: (float64(i/4) + 0.5) / 4}
			if r3.Norm(r3.Sub(co, want)) > 1e-9 {
				t.Errorf("grid particle %d: expected %v, got %v", i, want, co)
			}
		} else if pa.Exists() {
			t.Errorf("particle %d beyond the grid should not exist", i)
		}
	}
}

func TestDistribute_VolumeDepth(t *testing.T) {
	cube := surface.NewCube(2)
	parts := make([]components.Particle, 100)
	params := DistributionParams{Mode: components.FromVolume, Style: components.DistRandom, Even: true, Seed: 11}
	if err := Distribute(params, cube, nil, NewWorkerPool(1), parts); err != nil {
		t.Fatal(err)
	}
	for i, pa := range parts {
		d, ok := pa.Site.Extra.(components.VolumeDepth)
		if !ok {
			t.Fatalf("particle %d has no volume depth", i)
		}
		if d.Depth < 0 || d.Depth > 2+2*surface.MinDistance {
			t.Errorf("particle %d: depth %f outside the cube", i, d.Depth)
		}
		co := EvalSite(cube, components.FromVolume, pa.Site).Co
		for _, c := range []float64{co.X, co.Y, co.Z} {
			if math.Abs(c) > 1+1e-6 {
				t.Errorf("particle %d outside the cube: %v", i, co)
				break
			}
		}
	}
}

func TestDistribute_VolumeGrid(t *testing.T) {
	cube := surface.NewCube(2)
	parts := make([]components.Particle, 27)
	params := DistributionParams{Mode: components.FromVolume, Style: components.DistGrid}
	if err := Distribute(params, cube, nil, NewWorkerPool(1), parts); err != nil {
		t.Fatal(err)
	}
	for i, pa := range parts {
		if !pa.Exists() {
			t.Errorf("grid point %d inside the cube should exist", i)
			continue
		}
		co := EvalSite(cube, components.FromVolume, pa.Site).Co
		for _, c := range []float64{co.X, co.Y, co.Z} {
			if math.Abs(c) > 1+1e-6 {
				t.Errorf("grid point %d outside the cube: %v", i, co)
				break
			}
		}
	}
}

// ---------- Helpers ----------

func TestLocalOffset_EqualBounds(t *testing.T) {
	dc := &DistributionContext{cum: []float64{0.5, 0.5, 1, 1}}
	tests := []struct {
		name string
		v    float64
		k    int
		want float64
	}{
		{"first slot", 0.25, 0, 0.5},
		{"empty interior slot", 0.5, 1, 0},
		{"regular slot", 0.75, 2, 0.5},
		{"empty final slot", 1, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dc.localOffset(tt.v, tt.k); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestJitterCells_Stratified(t *testing.T) {
	pts := jitterCells(9, 1, 0, NewStream(1))
	seen := make(map[[2]int]bool)
	for _, p := range pts {
		if p[0] < 0 || p[0] > 1 || p[1] < 0 || p[1] > 1 {
			t.Fatalf("point %v outside the unit square", p)
		}
		cell := [2]int{int(p[0] * 3), int(p[1] * 3)}
		if seen[cell] {
			t.Errorf("cell %v used twice", cell)
		}
		seen[cell] = true
	}
}
