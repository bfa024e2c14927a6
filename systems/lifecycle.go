package systems

import (
	"github.com/pthm-cable/psys/components"
)

// CanTransition reports whether a particle may move from one lifecycle state
// to another during simulation. Killed is reachable from every state and only
// leaves through a reset back to unborn.
func CanTransition(from, to components.Lifecycle) bool {
	if to == components.Killed {
		return true
	}
	switch from {
	case components.Unborn:
		return to == components.Alive
	case components.Alive:
		return to == components.Dying
	case components.Dying:
		return to == components.Dead || to == components.Unborn
	case components.Dead:
		return to == components.Unborn
	case components.Killed:
		return to == components.Unborn
	}
	return false
}

// Transition moves pa to the given state when the edge is allowed.
func Transition(pa *components.Particle, to components.Lifecycle) bool {
	if pa.Alive == to {
		return true
	}
	if !CanTransition(pa.Alive, to) {
		return false
	}
	pa.Alive = to
	return true
}

// StepPhase describes what a particle does in one step from start to end.
type StepPhase uint8

const (
	PhaseIdle StepPhase = iota // Nothing to integrate
	PhaseBorn                  // Born inside the step, integrate from birth
	PhaseAlive                 // Alive for the whole step
)

// BeginStep copies the current key to the previous key and decides whether the
// particle is integrated in the step (start, end]. It returns the phase and
// the number of frames to integrate over.
func BeginStep(pa *components.Particle, start, end float64) (StepPhase, float64) {
	pa.Prev = pa.State
	if !pa.Exists() {
		return PhaseIdle, 0
	}
	switch pa.Alive {
	case components.Unborn:
		if pa.Time <= end && pa.Time >= start {
			Transition(pa, components.Alive)
			return PhaseBorn, end - pa.Time
		}
		if pa.Time < start {
			// Birth slipped behind the step, e.g. after a loop.
			Transition(pa, components.Alive)
			return PhaseBorn, end - start
		}
	case components.Alive:
		return PhaseAlive, end - start
	}
	return PhaseIdle, 0
}

// CheckDeath moves an alive particle whose death time falls inside the step
// to dying. The state is interpolated between the step's start key and the
// integrated end key at the death instant. from is the time the step started
// for this particle: the step start, or its birth for particles born inside
// the step.
func CheckDeath(pa *components.Particle, from, end float64) bool {
	if pa.Alive != components.Alive || pa.DieTime > end {
		return false
	}
	f := 0.0
	if end > from {
		f = clamp01((pa.DieTime - from) / (end - from))
	}
	pa.State = LerpKey(pa.Prev, pa.State, f)
	pa.State.Time = pa.DieTime
	Transition(pa, components.Dying)
	return true
}

// Kill moves a particle to dying at time t with the given state.
func Kill(pa *components.Particle, t float64, state components.Key) {
	if !Transition(pa, components.Dying) {
		return
	}
	pa.DieTime = t
	pa.State = state
	pa.State.Time = t
}

// EndStep finishes a step: dying particles become dead, or unborn again when
// looping. It reports whether the particle looped.
func EndStep(pa *components.Particle, end float64, loop bool) bool {
	switch pa.Alive {
	case components.Dying:
		if loop {
			Transition(pa, components.Unborn)
			pa.Time = pa.DieTime
			pa.DieTime = pa.Time + pa.Lifetime
			pa.Loop++
			return true
		}
		Transition(pa, components.Dead)
		pa.State.Time = pa.DieTime
	case components.Alive:
		pa.State.Time = end
	}
	return false
}

// Park moves a particle to the killed state and hides it.
func Park(pa *components.Particle) {
	Transition(pa, components.Killed)
	pa.Set(components.FlagNoDisplay, true)
}

// StateAt derives the lifecycle state at time t from birth and death times.
// It is used when restoring particles from a cache.
func StateAt(pa *components.Particle, t float64) components.Lifecycle {
	switch {
	case pa.Time > t:
		return components.Unborn
	case pa.DieTime <= t:
		return components.Dead
	}
	return components.Alive
}
