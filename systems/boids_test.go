package systems

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
)

func flock(cos ...r3.Vec) ([]components.Particle, []components.Key, *SpatialIndex) {
	parts := make([]components.Particle, len(cos))
	keys := make([]components.Key, len(cos))
	for i, co := range cos {
		parts[i].State = components.Key{Co: co, Rot: components.IdentityRot}
		keys[i] = parts[i].State
	}
	return parts, keys, NewSpatialIndex(cos, nil, 0)
}

func TestBoidStep_Cohesion(t *testing.T) {
	parts, keys, idx := flock(r3.Vec{}, r3.Vec{X: 4})
	bp := &BoidParams{Cohesion: 1}
	BoidStep(&parts[0], 0, bp, idx, keys, 0.1, nil)
	if parts[0].State.Vel.X <= 0 {
		t.Errorf("cohesion should pull towards the neighbour, got %v", parts[0].State.Vel)
	}
}

func TestBoidStep_Separation(t *testing.T) {
	parts, keys, idx := flock(r3.Vec{}, r3.Vec{X: 0.5})
	bp := &BoidParams{Separation: 1}
	BoidStep(&parts[0], 0, bp, idx, keys, 0.1, nil)
	if parts[0].State.Vel.X >= 0 {
		t.Errorf("separation should push away from the neighbour, got %v", parts[0].State.Vel)
	}
}

func TestBoidStep_Range(t *testing.T) {
	parts, keys, idx := flock(r3.Vec{}, r3.Vec{X: 4})
	bp := &BoidParams{Cohesion: 1, Range: 1}
	BoidStep(&parts[0], 0, bp, idx, keys, 0.1, nil)
	if parts[0].State.Vel != (r3.Vec{}) {
		t.Errorf("neighbour out of range should be ignored, got %v", parts[0].State.Vel)
	}
}

func TestBoidStep_Limits(t *testing.T) {
	parts, keys, idx := flock(r3.Vec{})
	bp := &BoidParams{Goal: r3.Vec{X: 100}, GoalWeight: 1000, MaxAccel: 2, MaxSpeed: 0.1}
	BoidStep(&parts[0], 0, bp, idx, keys, 1, nil)
	if v := r3.Norm(parts[0].State.Vel); v > 0.1+1e-12 {
		t.Errorf("speed %f above the limit", v)
	}
	if r3.Norm(r3.Sub(parts[0].State.Ave, r3.Vec{X: 1})) > 1e-12 {
		t.Errorf("heading should follow the velocity, got %v", parts[0].State.Ave)
	}
}

func TestBoidStep_ReadsCommittedKeys(t *testing.T) {
	parts, keys, idx := flock(r3.Vec{}, r3.Vec{X: 4})
	bp := &BoidParams{Cohesion: 1}

	// Moving boid 1 mid-step must not affect boid 0.
	parts[1].State.Co = r3.Vec{X: -4}
	BoidStep(&parts[0], 0, bp, idx, keys, 0.1, nil)
	if parts[0].State.Vel.X <= 0 {
		t.Errorf("boid should see the committed neighbour position, got %v", parts[0].State.Vel)
	}
}
