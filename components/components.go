// Package components defines the particle data model shared by the simulation
// packages and the ECS components of the scene graph.
package components

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Lifecycle is the per-particle lifecycle state.
type Lifecycle uint8

const (
	Unborn Lifecycle = iota
	Alive
	Dying
	Dead
	Killed // Parked after a cache miss
)

func (l Lifecycle) String() string {
	switch l {
	case Unborn:
		return "unborn"
	case Alive:
		return "alive"
	case Dying:
		return "dying"
	case Dead:
		return "dead"
	case Killed:
		return "killed"
	}
	return "unknown"
}

// Flags holds per-particle bits that are independent of the lifecycle.
type Flags uint8

const (
	FlagUnexist   Flags = 1 << iota // Sampled but never instantiated
	FlagNoDisplay                   // Hidden from accessors that honour display
	FlagSticky                      // Stuck to a deflector for the current step
	FlagNear                        // Near reaction already reported
)

// Key is one kinematic sample of a particle.
type Key struct {
	Co   r3.Vec
	Vel  r3.Vec
	Rot  quat.Number
	Ave  r3.Vec // Angular velocity
	Time float64
}

// IdentityRot is the unit quaternion with no rotation.
var IdentityRot = quat.Number{Real: 1}

// Particle is one simulated point mass.
type Particle struct {
	State Key
	Prev  Key

	Time     float64 // Birth time in frames
	DieTime  float64
	Lifetime float64
	Size     float64
	Loop     int

	Alive Lifecycle
	Flags Flags

	Site EmissionSite

	// Hair holds the grown strand for hair systems.
	Hair []Key

	// Deflector the particle is stuck to, -1 when free.
	StickTo int
}

// Has reports whether all bits in f are set.
func (p *Particle) Has(f Flags) bool { return p.Flags&f == f }

// Set sets or clears the bits in f.
func (p *Particle) Set(f Flags, on bool) {
	if on {
		p.Flags |= f
	} else {
		p.Flags &^= f
	}
}

// Exists reports whether the particle takes part in the simulation.
func (p *Particle) Exists() bool { return p.Flags&FlagUnexist == 0 }

// EmissionSite records where a particle was emitted from.
type EmissionSite struct {
	Element int        // Vertex, face or parent particle index; -1 when unassigned
	Derived int        // Index into an evaluated surface, -1 when not cached
	UV      [4]float64 // Barycentric weights (faces) or unused (vertices)
	Extra   SiteExtra  // Mode specific payload, nil when the mode carries none
}

// SiteExtra is the closed set of mode specific emission payloads.
type SiteExtra interface {
	siteExtra()
}

// VolumeDepth places a volume-emitted particle below the surface.
type VolumeDepth struct {
	Depth float64 // Signed distance along the inverted normal
}

// ReactionTiming binds a particle to the reaction event that spawned it.
type ReactionTiming struct {
	Time     float64
	Event    int // Index into the source queue at distribution time
	Particle int // Particle that produced the event in the source system
}

func (VolumeDepth) siteExtra()    {}
func (ReactionTiming) siteExtra() {}

// ChildParticle is a secondary particle derived from one or more parents.
type ChildParticle struct {
	Parent  int        // Primary parent, -1 for a virtual parent
	Parents [4]int     // Interpolation parents, -1 for unused slots
	Weights [4]float64 // Interpolation weights
	Offset  r3.Vec     // Offset in the parent's rotation frame
	Element int        // Emission face for interpolated children
	UV      [4]float64
	Rand    float64 // Per-child random in [0,1)
}
