package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/surface"
)

// numEffectorKinds sizes per-kind tables.
const numEffectorKinds = int(components.FieldGuide) + 1

// EffectorWeights scales effector contributions on the affected system.
type EffectorWeights struct {
	All     float64
	Gravity float64
	Kinds   [numEffectorKinds]float64
}

// DefaultEffectorWeights returns weights of 1 for everything.
func DefaultEffectorWeights() EffectorWeights {
	w := EffectorWeights{All: 1, Gravity: 1}
	for i := range w.Kinds {
		w.Kinds[i] = 1
	}
	return w
}

// For returns the combined weight of kind.
func (w EffectorWeights) For(kind components.EffectorKind) float64 {
	return w.All * w.Kinds[kind]
}

// Falloff describes how an effector weakens with distance.
type Falloff struct {
	Type    components.FalloffType
	Shape   components.FieldShape
	Power   float64 // Distance falloff power
	Radial  float64 // Radial (tube) or angular (cone) falloff power
	MinDist float64
	MaxDist float64 // Zero means unbounded
}

// falloffFunc returns (1 + max(d-min, 0))^-power, or 0 beyond max.
func falloffFunc(d, minDist, maxDist, power float64) float64 {
	if maxDist > 0 && d > maxDist {
		return 0
	}
	if d < minDist {
		return 1
	}
	if power == 0 {
		return 1
	}
	return math.Pow(1+d-minDist, -power)
}

// Factor returns the falloff for a point at vec from the effector whose axis
// is dir.
func (f Falloff) Factor(vec, dir r3.Vec) float64 {
	dist := r3.Norm(vec)
	switch f.Type {
	case components.FalloffTube:
		axial := math.Abs(r3.Dot(vec, dir))
		radial := math.Sqrt(math.Max(dist*dist-axial*axial, 0))
		return falloffFunc(axial, f.MinDist, f.MaxDist, f.Power) *
			falloffFunc(radial, 0, 0, f.Radial)
	case components.FalloffCone:
		angle := 0.0
		if dist > 0 {
			angle = math.Acos(math.Min(1, math.Abs(r3.Dot(vec, dir))/dist))
		}
		return falloffFunc(dist, f.MinDist, f.MaxDist, f.Power) *
			falloffFunc(angle, 0, 0, f.Radial)
	}
	return falloffFunc(dist, f.MinDist, f.MaxDist, f.Power)
}

// EffectedPoint is the affected particle as seen by effectors.
type EffectedPoint struct {
	Co     r3.Vec
	Vel    r3.Vec
	Size   float64
	Charge float64 // Own charge, zero is neutral
	System int
	Index  int
	Time   float64 // Frame time of the evaluation
}

// Effector is one force field. Object fields carry a fixed position and
// direction; particle system fields carry a Source and act from every live
// source particle.
type Effector struct {
	Name     string
	Kind     components.EffectorKind
	Strength float64
	Position r3.Vec
	Dir      r3.Vec // Unit axis: wind direction, vortex axis, plane normal
	Falloff  Falloff

	Damping   float64 // Harmonic velocity damping
	Linear    float64 // Drag
	Quadratic float64 // Drag
	Noise     *NoiseField
	Guide     *Guide

	Source *FieldSource
}

// FieldSource is a particle system acting as a field. It reads committed
// state from the previous step only.
type FieldSource struct {
	System     int
	Index      *SpatialIndex
	Keys       []components.Key
	SelfEffect bool
	Neighbors  int // Cap for unbounded fields
}

// defaultFieldNeighbors bounds particle fields without a max distance.
const defaultFieldNeighbors = 16

// Effectors is the set of effectors acting on one system.
type Effectors struct {
	List    []*Effector
	Weights EffectorWeights
}

// Accumulate sums the force and impulse of every effector on pt. Guides are
// skipped; they are applied to positions by ApplyGuides.
func (e *Effectors) Accumulate(pt EffectedPoint) (force, impulse r3.Vec) {
	if e == nil {
		return
	}
	for _, eff := range e.List {
		if eff.Kind == components.FieldGuide {
			continue
		}
		w := e.Weights.For(eff.Kind)
		if w == 0 {
			continue
		}
		var f, i r3.Vec
		if eff.Source != nil {
			f, i = eff.sourceContribution(pt)
		} else {
			f, i = eff.contribution(pt, eff.Position)
		}
		force = r3.Add(force, r3.Scale(w, f))
		impulse = r3.Add(impulse, r3.Scale(w, i))
	}
	return force, impulse
}

// sourceContribution sums the field of every nearby source particle.
func (eff *Effector) sourceContribution(pt EffectedPoint) (force, impulse r3.Vec) {
	src := eff.Source
	if src.Index.Len() == 0 {
		return
	}
	var nb []Neighbor
	if eff.Falloff.MaxDist > 0 {
		nb = src.Index.Within(nil, pt.Co, eff.Falloff.MaxDist)
	} else {
		n := src.Neighbors
		if n <= 0 {
			n = defaultFieldNeighbors
		}
		nb = src.Index.NearestN(nil, pt.Co, n+1)
	}
	for _, n := range nb {
		if src.System == pt.System && n.Index == pt.Index {
			continue
		}
		f, i := eff.contribution(pt, src.Keys[n.Index].Co)
		force = r3.Add(force, f)
		impulse = r3.Add(impulse, i)
	}
	return force, impulse
}

// contribution is the field of one effector located at origin.
func (eff *Effector) contribution(pt EffectedPoint, origin r3.Vec) (force, impulse r3.Vec) {
	vec := r3.Sub(pt.Co, origin)
	if eff.Falloff.Shape == components.ShapePlane {
		vec = r3.Scale(r3.Dot(vec, eff.Dir), eff.Dir)
	}
	fac := eff.Falloff.Factor(vec, eff.Dir)
	if fac == 0 {
		return
	}
	s := eff.Strength * fac
	dir := surface.Normalize(vec)

	switch eff.Kind {
	case components.FieldForce:
		force = r3.Scale(s, dir)
	case components.FieldWind:
		force = r3.Scale(s, eff.Dir)
	case components.FieldVortex:
		force = r3.Scale(s, surface.Normalize(r3.Cross(eff.Dir, vec)))
	case components.FieldCharge:
		force = r3.Scale(s*pt.Charge, dir)
	case components.FieldHarmonic:
		force = r3.Scale(-s, vec)
		if eff.Damping != 0 {
			impulse = r3.Scale(-eff.Damping*fac, pt.Vel)
		}
	case components.FieldDrag:
		speed := r3.Norm(pt.Vel)
		force = r3.Scale(-s*(eff.Linear+eff.Quadratic*speed), pt.Vel)
	case components.FieldTexture:
		if eff.Noise != nil {
			force = r3.Scale(s, eff.Noise.Gradient(pt.Co))
		}
	}
	return force, impulse
}

// Gravity returns the weighted global gravity acceleration.
func (e *Effectors) Gravity(g r3.Vec) r3.Vec {
	if e == nil {
		return g
	}
	return r3.Scale(e.Weights.Gravity*e.Weights.All, g)
}

// ApplyGuides moves key along every guide effector. age is the particle's
// normalized age in [0,1]. It reports whether any guide changed the key.
func (e *Effectors) ApplyGuides(bindings []GuideBinding, key *components.Key, age float64) bool {
	if e == nil {
		return false
	}
	applied := false
	g := 0
	for _, eff := range e.List {
		if eff.Kind != components.FieldGuide || eff.Guide == nil {
			continue
		}
		if g < len(bindings) {
			b := bindings[g]
			b.Strength *= e.Weights.For(components.FieldGuide)
			if eff.Guide.Apply(b, key, age) {
				applied = true
			}
		}
		g++
	}
	return applied
}

// Guides returns the guide effectors in list order.
func (e *Effectors) Guides() []*Guide {
	if e == nil {
		return nil
	}
	var out []*Guide
	for _, eff := range e.List {
		if eff.Kind == components.FieldGuide && eff.Guide != nil {
			out = append(out, eff.Guide)
		}
	}
	return out
}
