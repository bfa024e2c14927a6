package components

import "gonum.org/v1/gonum/spatial/r3"

// ReactionEvent is a death, collision or proximity notification published by
// a particle system for reactor systems to consume.
type ReactionEvent struct {
	Kind     ReactionKind
	Co       r3.Vec
	Vel      r3.Vec
	Nor      r3.Vec  // Surface normal for collisions, unit velocity otherwise
	Time     float64 // Frame time of the event
	Particle int     // Emitting particle index
	Source   int     // Deflector index for collisions, other system id for near events, -1 otherwise
}
