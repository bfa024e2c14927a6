package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
)

// ---------- Transitions ----------

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to components.Lifecycle
		want     bool
	}{
		{components.Unborn, components.Alive, true},
		{components.Unborn, components.Dying, false},
		{components.Unborn, components.Dead, false},
		{components.Alive, components.Dying, true},
		{components.Alive, components.Dead, false},
		{components.Alive, components.Unborn, false},
		{components.Dying, components.Dead, true},
		{components.Dying, components.Unborn, true},
		{components.Dying, components.Alive, false},
		{components.Dead, components.Unborn, true},
		{components.Dead, components.Alive, false},
		{components.Killed, components.Unborn, true},
		{components.Killed, components.Alive, false},
		{components.Alive, components.Killed, true},
		{components.Dead, components.Killed, true},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTransition_RejectsInvalid(t *testing.T) {
	pa := &components.Particle{Alive: components.Dead}
	if Transition(pa, components.Alive) {
		t.Error("dead particle should not become alive without a reset")
	}
	if pa.Alive != components.Dead {
		t.Errorf("state changed on a rejected transition: %s", pa.Alive)
	}
}

// ---------- Stepping ----------

func TestBeginStep_Phases(t *testing.T) {
	tests := []struct {
		name       string
		alive      components.Lifecycle
		birth      float64
		wantPhase  StepPhase
		wantFrames float64
	}{
		{"born mid-step", components.Unborn, 14.5, PhaseBorn, 1.5},
		{"born at end", components.Unborn, 16, PhaseBorn, 0},
		{"not yet born", components.Unborn, 20, PhaseIdle, 0},
		{"late birth", components.Unborn, 10, PhaseBorn, 2},
		{"alive", components.Alive, 1, PhaseAlive, 2},
		{"dead", components.Dead, 1, PhaseIdle, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pa := &components.Particle{Alive: tt.alive, Time: tt.birth, DieTime: 100}
			phase, frames := BeginStep(pa, 14, 16)
			if phase != tt.wantPhase {
				t.Errorf("expected phase %d, got %d", tt.wantPhase, phase)
			}
			if frames != tt.wantFrames {
				t.Errorf("expected %f frames, got %f", tt.wantFrames, frames)
			}
		})
	}
}

func TestBeginStep_SkipsUnexist(t *testing.T) {
	pa := &components.Particle{Time: 15, Flags: components.FlagUnexist}
	if phase, _ := BeginStep(pa, 14, 16); phase != PhaseIdle {
		t.Errorf("unexist particle should stay idle, got %d", phase)
	}
	if pa.Alive != components.Unborn {
		t.Errorf("unexist particle should not be born, got %s", pa.Alive)
	}
}

func TestLifecycle_DyingScenario(t *testing.T) {
	pa := &components.Particle{Alive: components.Unborn, Time: 5, Lifetime: 10, DieTime: 15}
	pa.State = components.Key{Co: r3.Vec{X: 1}, Vel: r3.Vec{X: 24}, Rot: components.IdentityRot, Time: 14}
	pa.Alive = components.Alive

	phase, frames := BeginStep(pa, 14, 16)
	if phase != PhaseAlive || frames != 2 {
		t.Fatalf("expected a full alive step, got %d over %f", phase, frames)
	}
	f := &Forces{Params: ForceParams{Mass: 1}}
	pa.State = Integrate(components.Euler, pa.State, pa.Prev, frames*testFrameTime, false, f)

	if !CheckDeath(pa, 14, 16) {
		t.Fatal("expected the particle to die inside the step")
	}
	if pa.Alive != components.Dying {
		t.Errorf("expected dying, got %s", pa.Alive)
	}
	if pa.State.Time != 15 {
		t.Errorf("expected state time 15, got %f", pa.State.Time)
	}
	// Halfway between x=1 and x=3.
	if math.Abs(pa.State.Co.X-2) > 1e-9 {
		t.Errorf("expected x=2 at the death instant, got %f", pa.State.Co.X)
	}

	if EndStep(pa, 16, false) {
		t.Error("non-looping particle reported a loop")
	}
	if pa.Alive != components.Dead {
		t.Errorf("expected dead, got %s", pa.Alive)
	}
	if pa.State.Time != 15 {
		t.Errorf("dead particle should keep its death time, got %f", pa.State.Time)
	}
}

func TestCheckDeath_BornMidStep(t *testing.T) {
	pa := &components.Particle{Alive: components.Alive, Time: 15, DieTime: 15.5}
	pa.Prev = components.Key{Co: r3.Vec{}, Rot: components.IdentityRot}
	pa.State = components.Key{Co: r3.Vec{X: 4}, Rot: components.IdentityRot}
	if !CheckDeath(pa, 15, 16) {
		t.Fatal("expected death")
	}
	if math.Abs(pa.State.Co.X-2) > 1e-9 {
		t.Errorf("fraction should be taken from birth, got x=%f", pa.State.Co.X)
	}
}

func TestCheckDeath_Survives(t *testing.T) {
	pa := &components.Particle{Alive: components.Alive, DieTime: 20}
	if CheckDeath(pa, 14, 16) {
		t.Error("particle should survive the step")
	}
	if pa.Alive != components.Alive {
		t.Errorf("expected alive, got %s", pa.Alive)
	}
}

func TestEndStep_Loop(t *testing.T) {
	pa := &components.Particle{Alive: components.Dying, Time: 5, Lifetime: 10, DieTime: 15}
	if !EndStep(pa, 16, true) {
		t.Fatal("expected a loop")
	}
	if pa.Alive != components.Unborn {
		t.Errorf("looping particle should be unborn, got %s", pa.Alive)
	}
	if pa.Time != 15 || pa.DieTime != 25 || pa.Loop != 1 {
		t.Errorf("unexpected loop times: birth %f death %f loop %d", pa.Time, pa.DieTime, pa.Loop)
	}
}

func TestLifecycle_Monotonic(t *testing.T) {
	pa := &components.Particle{Time: 3, Lifetime: 4, DieTime: 7}
	pa.State = components.Key{Rot: components.IdentityRot}
	f := &Forces{Params: ForceParams{Mass: 1}}

	prev := pa.Alive
	for frame := 1.0; frame <= 12; frame++ {
		phase, frames := BeginStep(pa, frame-1, frame)
		if phase != PhaseIdle {
			pa.State = Integrate(components.Euler, pa.State, pa.Prev, frames*testFrameTime, phase == PhaseBorn, f)
			CheckDeath(pa, max(frame-1, pa.Time), frame)
		}
		EndStep(pa, frame, false)

		if pa.Alive < prev {
			t.Fatalf("frame %f: lifecycle went backwards from %s to %s", frame, prev, pa.Alive)
		}
		prev = pa.Alive
	}
	if pa.Alive != components.Dead {
		t.Errorf("expected dead after the lifetime, got %s", pa.Alive)
	}
}

func TestKill_AndPark(t *testing.T) {
	pa := &components.Particle{Alive: components.Alive, DieTime: 100}
	Kill(pa, 12.5, components.Key{Co: r3.Vec{Y: 1}, Rot: components.IdentityRot})
	if pa.Alive != components.Dying || pa.DieTime != 12.5 || pa.State.Time != 12.5 {
		t.Errorf("unexpected kill result: %s %f %f", pa.Alive, pa.DieTime, pa.State.Time)
	}

	Park(pa)
	if pa.Alive != components.Killed || !pa.Has(components.FlagNoDisplay) {
		t.Errorf("parked particle should be killed and hidden, got %s %v", pa.Alive, pa.Flags)
	}
}

func TestStateAt(t *testing.T) {
	pa := &components.Particle{Time: 5, DieTime: 15}
	tests := []struct {
		t    float64
		want components.Lifecycle
	}{
		{1, components.Unborn},
		{5, components.Alive},
		{10, components.Alive},
		{15, components.Dead},
		{20, components.Dead},
	}
	for _, tt := range tests {
		if got := StateAt(pa, tt.t); got != tt.want {
			t.Errorf("t=%f: expected %s, got %s", tt.t, tt.want, got)
		}
	}
}
