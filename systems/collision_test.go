package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
)

const testFrameTime = 1.0 / 24

func groundDeflector(d Deflector) *Deflector {
	d.BVH = surface.NewBVH(surface.Triangles(surface.NewGrid(10, 1), surface.Identity))
	return &d
}

// fallingParticle moves from z=1 to z=-1 over two frames.
func fallingParticle() *components.Particle {
	vel := r3.Vec{Z: -1 / testFrameTime}
	pa := &components.Particle{Alive: components.Alive, DieTime: 100, StickTo: -1}
	pa.Prev = components.Key{Co: r3.Vec{Z: 1}, Vel: vel, Rot: components.IdentityRot, Time: 14}
	pa.State = components.Key{Co: r3.Vec{Z: -1}, Vel: vel, Rot: components.IdentityRot, Time: 16}
	return pa
}

func collisionParams(defl ...*Deflector) CollisionParams {
	return CollisionParams{
		Particle:   7,
		StepStart:  14,
		StepEnd:    16,
		Dt:         2 * testFrameTime,
		SkipFirst:  -1,
		Deflectors: defl,
	}
}

// ---------- Response ----------

func TestCollide_Bounce(t *testing.T) {
	pa := fallingParticle()
	var events []components.ReactionEvent
	res := Collide(pa, collisionParams(groundDeflector(Deflector{})), NewStream(1), func(ev components.ReactionEvent) {
		events = append(events, ev)
	})

	if res.Collisions != 1 {
		t.Fatalf("expected 1 collision, got %d", res.Collisions)
	}
	if pa.State.Vel.Z <= 0 {
		t.Errorf("expected upward velocity after bounce, got %v", pa.State.Vel)
	}
	if pa.State.Co.Z <= 0 {
		t.Errorf("expected particle above ground, got %v", pa.State.Co)
	}
	if math.Abs(pa.State.Vel.Z-1/testFrameTime) > 1e-9 {
		t.Errorf("undamped bounce should keep speed, got %f", pa.State.Vel.Z)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Kind != components.ReactCollision || ev.Particle != 7 || ev.Source != 0 {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Time <= 14 || ev.Time >= 16 {
		t.Errorf("event time %f outside step", ev.Time)
	}
	if ev.Nor != (r3.Vec{Z: 1}) {
		t.Errorf("expected +Z normal, got %v", ev.Nor)
	}
}

func TestCollide_Damping(t *testing.T) {
	pa := fallingParticle()
	Collide(pa, collisionParams(groundDeflector(Deflector{Damping: 0.5})), NewStream(1), nil)

	want := 0.5 / testFrameTime
	if math.Abs(pa.State.Vel.Z-want) > 1e-9 {
		t.Errorf("expected damped speed %f, got %f", want, pa.State.Vel.Z)
	}
}

func TestCollide_Friction(t *testing.T) {
	pa := fallingParticle()
	pa.Prev.Vel.X, pa.State.Vel.X = 1, 1
	pa.State.Co.X = pa.Prev.Co.X + 2*testFrameTime
	Collide(pa, collisionParams(groundDeflector(Deflector{Friction: 0.5})), NewStream(1), nil)

	if math.Abs(pa.State.Vel.X-0.5) > 1e-9 {
		t.Errorf("expected tangential speed halved, got %f", pa.State.Vel.X)
	}
}

func TestCollide_Kill(t *testing.T) {
	pa := fallingParticle()
	var events []components.ReactionEvent
	res := Collide(pa, collisionParams(groundDeflector(Deflector{Kill: true})), NewStream(1), func(ev components.ReactionEvent) {
		events = append(events, ev)
	})

	if !res.Killed {
		t.Fatal("expected particle killed")
	}
	if pa.Alive != components.Dying {
		t.Errorf("expected dying, got %s", pa.Alive)
	}
	// Contact at radius CollisionMinRadius above the plane: fraction (1-r)/2.
	want := 14 + 2*(1-CollisionMinRadius)/2
	if math.Abs(pa.DieTime-want) > 1e-9 {
		t.Errorf("expected die time %f, got %f", want, pa.DieTime)
	}
	if pa.State.Time != pa.DieTime {
		t.Errorf("state time %f should equal die time %f", pa.State.Time, pa.DieTime)
	}
	if math.Abs(pa.State.Co.Z-CollisionMinRadius) > 1e-9 {
		t.Errorf("expected death at contact, got %v", pa.State.Co)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}

func TestCollide_DieOnCollisionSetting(t *testing.T) {
	pa := fallingParticle()
	cp := collisionParams(groundDeflector(Deflector{}))
	cp.Kill = true
	if res := Collide(pa, cp, NewStream(1), nil); !res.Killed {
		t.Error("die-on-collision should kill on a non-killing deflector")
	}
}

func TestCollide_Permeable(t *testing.T) {
	pa := fallingParticle()
	res := Collide(pa, collisionParams(groundDeflector(Deflector{Permeability: 1})), NewStream(1), nil)

	if res.Collisions != 1 {
		t.Errorf("expected the pass-through to count once, got %d", res.Collisions)
	}
	if pa.State.Co.Z >= 0 || pa.State.Vel.Z >= 0 {
		t.Errorf("permeable deflector should let the particle through, got %v %v", pa.State.Co, pa.State.Vel)
	}
}

func TestCollide_SkipEmitter(t *testing.T) {
	pa := fallingParticle()
	cp := collisionParams(groundDeflector(Deflector{}))
	cp.SkipFirst = 0
	if res := Collide(pa, cp, NewStream(1), nil); res.Collisions != 0 {
		t.Errorf("skipped deflector should not collide, got %d", res.Collisions)
	}
}

func TestCollide_ZeroLengthSegment(t *testing.T) {
	pa := &components.Particle{Alive: components.Alive}
	pa.Prev = components.Key{Co: r3.Vec{Z: 0.0005}, Rot: components.IdentityRot}
	pa.State = pa.Prev

	res := Collide(pa, collisionParams(groundDeflector(Deflector{})), NewStream(1), nil)
	if res.Exhausted {
		t.Error("resting particle should not use every collision iteration")
	}
	if pa.State.Co.Z < CollisionMinRadius {
		t.Errorf("overlapping particle should be pushed out, got z=%f", pa.State.Co.Z)
	}
	for _, v := range []float64{pa.State.Co.X, pa.State.Co.Y, pa.State.Co.Z, pa.State.Vel.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite state %+v", pa.State)
		}
	}
}

// ---------- Termination ----------

func TestCollide_Terminates(t *testing.T) {
	box := &Deflector{BVH: surface.NewBVH(surface.Triangles(surface.NewCube(2), surface.Identity))}
	tests := []struct {
		name string
		to   r3.Vec
	}{
		{"axis", r3.Vec{X: 50}},
		{"diagonal", r3.Vec{X: 300, Y: 200, Z: 100}},
		{"corner", r3.Vec{X: 1000, Y: 1000, Z: 1000}},
		{"grazing", r3.Vec{X: 0.0001, Y: 400}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pa := &components.Particle{Alive: components.Alive}
			vel := r3.Scale(1/(2*testFrameTime), tt.to)
			pa.Prev = components.Key{Vel: vel, Rot: components.IdentityRot}
			pa.State = components.Key{Co: tt.to, Vel: vel, Rot: components.IdentityRot}

			res := Collide(pa, collisionParams(box), NewStream(3), nil)
			if res.Collisions > MaxCollisionIterations {
				t.Errorf("expected at most %d collisions, got %d", MaxCollisionIterations, res.Collisions)
			}
			if res.Collisions == 0 {
				t.Error("expected the box to deflect the particle")
			}
		})
	}
}
