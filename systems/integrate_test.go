package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
)

func constantForce(f r3.Vec) *Forces {
	return &Forces{
		Params: ForceParams{Mass: 1},
		Effectors: func(components.Key) (r3.Vec, r3.Vec) {
			return f, r3.Vec{}
		},
	}
}

// ---------- Conservation ----------

func TestIntegrate_ZeroForceConservation(t *testing.T) {
	state := components.Key{Co: r3.Vec{X: 1, Y: -2, Z: 3}, Vel: r3.Vec{X: 0.5, Y: 4, Z: -1}, Rot: components.IdentityRot}
	dt := testFrameTime
	f := &Forces{Params: ForceParams{Mass: 1}}

	for _, method := range []components.Integrator{components.Euler, components.Midpoint, components.RK4} {
		t.Run(method.String(), func(t *testing.T) {
			out := Integrate(method, state, state, dt, false, f)
			want := r3.Add(state.Co, r3.Scale(dt, state.Vel))
			if d := r3.Norm(r3.Sub(out.Co, want)); d > 1e-12 {
				t.Errorf("expected %v, got %v (off by %g)", want, out.Co, d)
			}
			if out.Vel != state.Vel {
				t.Errorf("velocity changed without forces: %v", out.Vel)
			}
		})
	}
}

// ---------- Quad scenario ----------

func TestIntegrate_QuadScenario(t *testing.T) {
	quad := surface.NewQuad(1)
	parts := make([]components.Particle, 100)
	params := DistributionParams{Mode: components.FromFace, Style: components.DistRandom, Seed: 1}
	if err := Distribute(params, quad, nil, NewWorkerPool(1), parts); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	effs := &Effectors{
		List: []*Effector{{
			Kind:     components.FieldWind,
			Strength: 1,
			Dir:      r3.Vec{Z: -1},
		}},
		Weights: DefaultEffectorWeights(),
	}
	forces := &Forces{
		Params: ForceParams{Mass: 1},
		Effectors: func(k components.Key) (r3.Vec, r3.Vec) {
			return effs.Accumulate(EffectedPoint{Co: k.Co, Vel: k.Vel})
		},
	}
	fr := NewFrand(1, 0)
	bp := &BirthParams{Size: 0.05, Display: 1, Lifetime: 50, End: 1}
	dt := 1.0 / 24

	for p := range parts {
		pa := &parts[p]
		if !pa.Exists() {
			t.Fatalf("particle %d does not exist", p)
		}
		InitializeParticle(pa, p, len(parts), bp, fr)
		ResetParticle(pa, p, bp, fr, BirthFrame{Site: EvalSite(quad, components.FromFace, pa.Site), Object: surface.Identity})
		z0 := pa.State.Co.Z

		next := Integrate(components.Euler, pa.State, pa.State, dt, true, forces)
		if next.Vel.Z != -1.0/24 {
			t.Errorf("particle %d: expected vz %v, got %v", p, -1.0/24, next.Vel.Z)
		}
		// Euler moves with the pre-update velocity, which is zero at birth.
		if next.Co.Z != z0 {
			t.Errorf("particle %d: expected z %v, got %v", p, z0, next.Co.Z)
		}
		co := pa.State.Co
		if co.X < 0 || co.X > 1 || co.Y < 0 || co.Y > 1 {
			t.Errorf("particle %d emitted outside the quad: %v", p, co)
		}
	}
}

// ---------- Convergence ----------

func TestIntegrate_RK4EulerConvergence(t *testing.T) {
	acc := r3.Vec{X: 0.3, Z: -9.81}
	f := constantForce(acc)
	state := components.Key{Vel: r3.Vec{X: 1, Y: 2}, Rot: components.IdentityRot}

	bound := 0.5*r3.Norm(acc) + 1e-9
	prevErr := math.Inf(1)
	for _, dt := range []float64{0.1, 0.05, 0.025, 0.0125} {
		euler := Integrate(components.Euler, state, state, dt, false, f)
		rk4 := Integrate(components.RK4, state, state, dt, false, f)

		diff := r3.Norm(r3.Sub(euler.Co, rk4.Co))
		if diff > bound*dt*dt {
			t.Errorf("dt=%g: difference %g exceeds O(dt²) bound %g", dt, diff, bound*dt*dt)
		}
		if diff >= prevErr {
			t.Errorf("dt=%g: difference %g did not shrink from %g", dt, diff, prevErr)
		}
		prevErr = diff

		exact := r3.Add(r3.Scale(dt, state.Vel), r3.Scale(0.5*dt*dt, acc))
		if d := r3.Norm(r3.Sub(rk4.Co, exact)); d > 1e-12 {
			t.Errorf("dt=%g: RK4 should be exact for constant force, off by %g", dt, d)
		}
	}
}

func TestIntegrate_MidpointExactForConstantForce(t *testing.T) {
	acc := r3.Vec{Z: -2}
	state := components.Key{Vel: r3.Vec{X: 1}, Rot: components.IdentityRot}
	dt := 0.1
	out := Integrate(components.Midpoint, state, state, dt, false, constantForce(acc))
	exact := r3.Add(r3.Scale(dt, state.Vel), r3.Scale(0.5*dt*dt, acc))
	if d := r3.Norm(r3.Sub(out.Co, exact)); d > 1e-12 {
		t.Errorf("midpoint off by %g", d)
	}
}

// ---------- Verlet ----------

func TestIntegrate_VerletFirstStepIsEuler(t *testing.T) {
	f := constantForce(r3.Vec{Z: -1})
	state := components.Key{Vel: r3.Vec{X: 1}, Rot: components.IdentityRot}
	dt := 0.1

	verlet := Integrate(components.Verlet, state, state, dt, true, f)
	euler := Integrate(components.Euler, state, state, dt, true, f)
	if verlet != euler {
		t.Errorf("first verlet step should match euler: %+v vs %+v", verlet, euler)
	}

	second := Integrate(components.Verlet, state, state, dt, false, f)
	if second.Co.Z >= 0 {
		t.Errorf("later verlet steps move with the updated velocity, got z=%f", second.Co.Z)
	}
	wantVz := (second.Co.Z - state.Co.Z) / dt
	if math.Abs(second.Vel.Z-wantVz) > 1e-12 {
		t.Errorf("verlet velocity should be the position difference, got %f want %f", second.Vel.Z, wantVz)
	}
}

// ---------- Shared force terms ----------

func TestIntegrate_Damping(t *testing.T) {
	f := &Forces{Params: ForceParams{Mass: 1, Damping: 0.1}}
	state := components.Key{Vel: r3.Vec{X: 2}, Rot: components.IdentityRot}
	dt := 0.1
	out := Integrate(components.Euler, state, state, dt, false, f)
	want := 2 * DampingFactor(0.1, dt)
	if math.Abs(out.Vel.X-want) > 1e-12 {
		t.Errorf("expected damped velocity %f, got %f", want, out.Vel.X)
	}
	if DampingFactor(10, 1) != 0 {
		t.Error("damping factor should not go negative")
	}
}

func TestIntegrate_DragOpposesVelocity(t *testing.T) {
	f := &Forces{Params: ForceParams{Mass: 1, Drag: 1}, Size: 1}
	state := components.Key{Vel: r3.Vec{X: 3}, Rot: components.IdentityRot}
	acc, _ := f.Acceleration(state)
	if acc.X != -9 {
		t.Errorf("expected quadratic drag -9, got %f", acc.X)
	}
}

func TestIntegrate_BrownianReproducible(t *testing.T) {
	state := components.Key{Rot: components.IdentityRot}
	run := func() components.Key {
		f := &Forces{Params: ForceParams{Mass: 1, Brownian: 2}, Rand: NewStream(Seed(5, 3, 9))}
		return Integrate(components.RK4, state, state, 0.1, false, f)
	}
	a, b := run(), run()
	if a != b {
		t.Errorf("same seed should give identical results: %+v vs %+v", a, b)
	}
	if a.Vel == (r3.Vec{}) {
		t.Error("brownian force had no effect")
	}
}

func TestIntegrate_Impulse(t *testing.T) {
	f := &Forces{
		Params: ForceParams{Mass: 1},
		Effectors: func(components.Key) (r3.Vec, r3.Vec) {
			return r3.Vec{}, r3.Vec{Y: 1}
		},
	}
	state := components.Key{Rot: components.IdentityRot}
	out := Integrate(components.Euler, state, state, 0.5, false, f)
	if out.Vel.Y != 1 || out.Co.Y != 0.5 {
		t.Errorf("impulse should apply before the step, got vel %v co %v", out.Vel, out.Co)
	}
}
