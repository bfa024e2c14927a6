package components

import (
	"errors"
	"fmt"
)

// ErrUnknownEnum is wrapped when a configuration string names no known value.
var ErrUnknownEnum = errors.New("unknown value")

func parseEnum[T ~uint8](kind, s string, names []string) (T, error) {
	for i, n := range names {
		if n == s {
			return T(i), nil
		}
	}
	return 0, fmt.Errorf("%s %q: %w", kind, s, ErrUnknownEnum)
}

func enumName(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return "unknown"
}

// EmissionMode selects what particles are emitted from.
type EmissionMode uint8

const (
	FromVert EmissionMode = iota
	FromFace
	FromVolume
	FromParticle // Positions of another system's particles
	FromChild    // Children distributed around parent particles
	FromReaction // Events from another system's reaction queue
)

var emissionNames = []string{"vert", "face", "volume", "particle", "child", "reaction"}

func ParseEmissionMode(s string) (EmissionMode, error) {
	return parseEnum[EmissionMode]("emission mode", s, emissionNames)
}

func (m EmissionMode) String() string { return enumName(emissionNames, uint8(m)) }

// DistributionStyle selects how local coordinates are chosen within an element.
type DistributionStyle uint8

const (
	DistJitter DistributionStyle = iota
	DistRandom
	DistGrid
)

var distNames = []string{"jitter", "random", "grid"}

func ParseDistributionStyle(s string) (DistributionStyle, error) {
	return parseEnum[DistributionStyle]("distribution", s, distNames)
}

func (d DistributionStyle) String() string { return enumName(distNames, uint8(d)) }

// Integrator selects the numerical scheme for newtonian dynamics.
type Integrator uint8

const (
	Euler Integrator = iota
	Midpoint
	RK4
	Verlet
)

var integratorNames = []string{"euler", "midpoint", "rk4", "verlet"}

func ParseIntegrator(s string) (Integrator, error) {
	return parseEnum[Integrator]("integrator", s, integratorNames)
}

func (i Integrator) String() string { return enumName(integratorNames, uint8(i)) }

// EffectorKind is the closed set of force field kinds.
type EffectorKind uint8

const (
	FieldForce EffectorKind = iota
	FieldWind
	FieldVortex
	FieldCharge
	FieldHarmonic
	FieldDrag
	FieldTexture
	FieldGuide
)

var effectorNames = []string{"force", "wind", "vortex", "charge", "harmonic", "drag", "texture", "guide"}

func ParseEffectorKind(s string) (EffectorKind, error) {
	return parseEnum[EffectorKind]("effector kind", s, effectorNames)
}

func (k EffectorKind) String() string { return enumName(effectorNames, uint8(k)) }

// FieldShape selects how the distance to an effector is measured.
type FieldShape uint8

const (
	ShapePoint FieldShape = iota
	ShapePlane
)

var shapeNames = []string{"point", "plane"}

func ParseFieldShape(s string) (FieldShape, error) {
	if s == "" {
		return ShapePoint, nil
	}
	return parseEnum[FieldShape]("field shape", s, shapeNames)
}

func (s FieldShape) String() string { return enumName(shapeNames, uint8(s)) }

// FalloffType selects the falloff function of an effector.
type FalloffType uint8

const (
	FalloffSphere FalloffType = iota
	FalloffTube
	FalloffCone
)

var falloffNames = []string{"sphere", "tube", "cone"}

func ParseFalloff(s string) (FalloffType, error) {
	if s == "" {
		return FalloffSphere, nil
	}
	return parseEnum[FalloffType]("falloff", s, falloffNames)
}

func (f FalloffType) String() string { return enumName(falloffNames, uint8(f)) }

// RotationMode selects the birth rotation.
type RotationMode uint8

const (
	RotNone RotationMode = iota
	RotNor
	RotNorTan
	RotVel
	RotGlobalX
	RotGlobalY
	RotGlobalZ
	RotObX
	RotObY
	RotObZ
)

var rotationNames = []string{"none", "nor", "nor_tan", "vel", "global_x", "global_y", "global_z", "ob_x", "ob_y", "ob_z"}

func ParseRotationMode(s string) (RotationMode, error) {
	return parseEnum[RotationMode]("rotation mode", s, rotationNames)
}

func (r RotationMode) String() string { return enumName(rotationNames, uint8(r)) }

// AngularMode selects the birth angular velocity.
type AngularMode uint8

const (
	AngNone AngularMode = iota
	AngVelocity
	AngHorizontal
	AngVertical
	AngGlobalX
	AngGlobalY
	AngGlobalZ
	AngRandom
)

var angularNames = []string{"none", "velocity", "horizontal", "vertical", "global_x", "global_y", "global_z", "random"}

func ParseAngularMode(s string) (AngularMode, error) {
	return parseEnum[AngularMode]("angular mode", s, angularNames)
}

func (a AngularMode) String() string { return enumName(angularNames, uint8(a)) }

// PhysicsType selects how alive particles move.
type PhysicsType uint8

const (
	PhysNone PhysicsType = iota
	PhysNewton
	PhysKeyed
	PhysBoids
)

var physicsNames = []string{"none", "newton", "keyed", "boids"}

func ParsePhysicsType(s string) (PhysicsType, error) {
	return parseEnum[PhysicsType]("physics", s, physicsNames)
}

func (p PhysicsType) String() string { return enumName(physicsNames, uint8(p)) }

// ParticleType separates emitted particles from grown hair strands.
type ParticleType uint8

const (
	TypeEmitter ParticleType = iota
	TypeHair
)

var typeNames = []string{"emitter", "hair"}

func ParseParticleType(s string) (ParticleType, error) {
	return parseEnum[ParticleType]("particle type", s, typeNames)
}

func (t ParticleType) String() string { return enumName(typeNames, uint8(t)) }

// ChildMode selects how child particles are placed.
type ChildMode uint8

const (
	ChildNone ChildMode = iota
	ChildSimple
	ChildInterpolated
)

var childNames = []string{"none", "simple", "interpolated"}

func ParseChildMode(s string) (ChildMode, error) {
	return parseEnum[ChildMode]("child mode", s, childNames)
}

func (c ChildMode) String() string { return enumName(childNames, uint8(c)) }

// ReactionKind is the kind of a reaction event.
type ReactionKind uint8

const (
	ReactDeath ReactionKind = iota
	ReactCollision
	ReactNear
)

var reactionNames = []string{"death", "collision", "near"}

func ParseReactionKind(s string) (ReactionKind, error) {
	return parseEnum[ReactionKind]("reaction", s, reactionNames)
}

func (r ReactionKind) String() string { return enumName(reactionNames, uint8(r)) }
