package scene

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/config"
	"github.com/pthm-cable/psys/surface"
	"github.com/pthm-cable/psys/systems"
)

// settings is the parsed, simulation ready form of one system's config.
type settings struct {
	typ        components.ParticleType
	physics    components.PhysicsType
	from       components.EmissionMode
	reactOn    components.ReactionKind
	integrator components.Integrator

	birth    systems.BirthParams
	dist     systems.DistributionParams
	forces   systems.ForceParams
	weights  systems.EffectorWeights
	rotation systems.RotationParams
	boids    systems.BoidParams
	hair     systems.HairParams
	children systems.ChildParams

	loop           bool
	massFromSize   bool
	sizeDeflect    bool
	dieOnCollision bool
	rolling        bool
	selfEffect     bool
	nearDist       float64
	charge         float64
}

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

func buildSettings(cfg *config.Config, sc config.SystemConfig, seed uint64) (settings, error) {
	var st settings
	var err error
	wrap := func(err error) error { return fmt.Errorf("system %q: %w", sc.Name, err) }

	if st.typ, err = components.ParseParticleType(sc.Type); err != nil {
		return st, wrap(err)
	}
	if st.physics, err = components.ParsePhysicsType(sc.Physics); err != nil {
		return st, wrap(err)
	}
	if st.from, err = components.ParseEmissionMode(sc.Emission.From); err != nil {
		return st, wrap(err)
	}
	if st.from == components.FromReaction {
		react := sc.Emission.ReactOn
		if react == "" {
			react = "death"
		}
		if st.reactOn, err = components.ParseReactionKind(react); err != nil {
			return st, wrap(err)
		}
	}
	style, err := components.ParseDistributionStyle(sc.Emission.Distribution)
	if err != nil {
		return st, wrap(err)
	}
	if st.integrator, err = components.ParseIntegrator(sc.Dynamics.Integrator); err != nil {
		return st, wrap(err)
	}
	rotMode, err := components.ParseRotationMode(sc.Rotation.Mode)
	if err != nil {
		return st, wrap(err)
	}
	angMode, err := components.ParseAngularMode(sc.Rotation.Angular)
	if err != nil {
		return st, wrap(err)
	}
	childMode, err := components.ParseChildMode(sc.Children.Mode)
	if err != nil {
		return st, wrap(err)
	}

	em := sc.Emission
	st.birth = systems.BirthParams{
		Start:        em.Start,
		End:          em.End,
		Lifetime:     em.Lifetime,
		RandLifetime: em.RandLifetime,
		Size:         sc.Dynamics.Size,
		RandSize:     sc.Dynamics.RandSize,
		Display:      em.Display,
		Hair:         st.typ == components.TypeHair,
		Boids:        st.physics == components.PhysBoids,

		Normal:       sc.Velocity.Normal,
		Tangent:      sc.Velocity.Tangent,
		TangentPhase: sc.Velocity.TangentPhase,
		ObjectAxes:   vec(sc.Velocity.Object),
		ObjectFactor: sc.Velocity.ObjectFactor,
		RandomVel:    sc.Velocity.Random,
		SourceFactor: sc.Velocity.Reactor,

		RotMode:   rotMode,
		RandRot:   sc.Rotation.Random,
		Phase:     sc.Rotation.Phase,
		RandPhase: sc.Rotation.RandomPhase,
		AngMode:   angMode,
		AngFactor: sc.Rotation.AngularFactor,
	}
	if st.from == components.FromParticle && st.birth.SourceFactor == 0 {
		st.birth.SourceFactor = 1
	}

	st.dist = systems.DistributionParams{
		Mode:           st.from,
		Style:          style,
		Even:           em.Even,
		Random:         em.Random,
		Simplify:       em.Simplify,
		UseDensity:     em.UseDensity,
		Jitter:         em.Jitter,
		JitterOffset:   em.JitterOffset,
		GridResolution: em.GridResolution,
		Seed:           seed,
	}

	w := sc.Weights
	st.weights = systems.EffectorWeights{All: w.All, Gravity: w.Gravity}
	st.weights.Kinds[components.FieldForce] = w.Force
	st.weights.Kinds[components.FieldWind] = w.Wind
	st.weights.Kinds[components.FieldVortex] = w.Vortex
	st.weights.Kinds[components.FieldCharge] = w.Charge
	st.weights.Kinds[components.FieldHarmonic] = w.Harmonic
	st.weights.Kinds[components.FieldDrag] = w.Drag
	st.weights.Kinds[components.FieldTexture] = w.Texture
	st.weights.Kinds[components.FieldGuide] = w.Guide

	dyn := sc.Dynamics
	st.forces = systems.ForceParams{
		Mass:         dyn.Mass,
		Gravity:      r3.Scale(w.Gravity*w.All, vec(cfg.Simulation.Gravity)),
		Acceleration: vec(dyn.Acceleration),
		Drag:         dyn.Drag,
		Brownian:     dyn.Brownian,
		Damping:      dyn.Damping,
	}
	st.massFromSize = dyn.MassFromSize
	st.sizeDeflect = dyn.SizeDeflect
	st.dieOnCollision = dyn.DieOnCollision
	st.rolling = dyn.RollingFriction
	st.selfEffect = dyn.SelfEffect
	st.charge = systemCharge(sc)

	st.rotation = systems.RotationParams{
		Enabled: rotMode != components.RotNone || angMode != components.AngNone,
		Dynamic: sc.Rotation.Dynamic,
		Mode:    angMode,
		Factor:  sc.Rotation.AngularFactor,
	}

	b := sc.Boids
	st.boids = systems.BoidParams{
		Range:      b.Range,
		Separation: b.Separation,
		Alignment:  b.Alignment,
		Cohesion:   b.Cohesion,
		Goal:       vec(b.Goal),
		GoalWeight: b.GoalWeight,
		MaxSpeed:   b.MaxSpeed,
		MaxAccel:   b.MaxAccel,
		Neighbors:  b.Neighbors,
	}

	st.hair = systems.HairParams{Segments: sc.Hair.Segments, Length: sc.Hair.Length}
	if st.hair.Length == 0 {
		st.hair.Length = 1
	}

	st.children = systems.ChildParams{
		Mode:      childMode,
		PerParent: sc.Children.PerParent,
		Radius:    sc.Children.Radius,
		Virtual:   sc.Children.Virtual,
		Seed:      systems.Seed(seed, 0, 0x6b696473),
	}

	// Hair never loops and reactor particles are bound to one event each.
	st.loop = em.Loop && st.typ != components.TypeHair && st.from != components.FromReaction
	return st, nil
}

// systemCharge is the charge that charge fields act on for this system. A
// system that is itself a charge field carries its own field strength.
func systemCharge(sc config.SystemConfig) float64 {
	switch {
	case sc.Dynamics.Charge != nil:
		return *sc.Dynamics.Charge
	case sc.Field != nil && sc.Field.Kind == components.FieldCharge.String():
		return sc.Field.Strength
	}
	return 1
}

// buildEmitter returns the emitter mesh in object space and its motion.
func buildEmitter(cfg *config.Config, ec config.EmitterConfig) (*surface.Mesh, surface.TransformProvider, error) {
	var mesh *surface.Mesh
	switch ec.Shape {
	case "quad":
		mesh = surface.NewQuad(ec.Size)
	case "grid":
		mesh = surface.NewGrid(ec.Size, ec.Subdivisions)
	case "cube":
		mesh = surface.NewCube(ec.Size)
	default:
		return nil, nil, fmt.Errorf("emitter shape %q: %w", ec.Shape, components.ErrUnknownEnum)
	}
	if len(ec.Density) == len(mesh.Verts) {
		mesh.Density = ec.Density
	}

	base := surface.Translate(vec(ec.Origin))
	if ec.Motion == [3]float64{} {
		return mesh, surface.Static(base), nil
	}
	return mesh, surface.Linear{
		Base:     base,
		Velocity: r3.Scale(cfg.Derived.FrameTime, vec(ec.Motion)),
		Frame0:   float64(cfg.Simulation.StartFrame),
	}, nil
}

func buildFalloff(shape, falloff string, power, radial, minDist, maxDist float64) (systems.Falloff, error) {
	sh, err := components.ParseFieldShape(shape)
	if err != nil {
		return systems.Falloff{}, err
	}
	ft, err := components.ParseFalloff(falloff)
	if err != nil {
		return systems.Falloff{}, err
	}
	return systems.Falloff{Type: ft, Shape: sh, Power: power, Radial: radial, MinDist: minDist, MaxDist: maxDist}, nil
}

// buildEffector converts a standalone effector config.
func buildEffector(ec config.EffectorConfig) (*systems.Effector, error) {
	kind, err := components.ParseEffectorKind(ec.Kind)
	if err != nil {
		return nil, fmt.Errorf("effector %q: %w", ec.Name, err)
	}
	minDist := ec.MinDist
	if kind == components.FieldGuide && ec.Guide.MinDist > 0 {
		minDist = ec.Guide.MinDist
	}
	fo, err := buildFalloff(ec.Shape, ec.Falloff, ec.Power, ec.Radial, minDist, ec.MaxDist)
	if err != nil {
		return nil, fmt.Errorf("effector %q: %w", ec.Name, err)
	}

	dir := surface.Normalize(vec(ec.Direction))
	if dir == (r3.Vec{}) {
		dir = r3.Vec{Z: 1}
	}
	eff := &systems.Effector{
		Name:      ec.Name,
		Kind:      kind,
		Strength:  ec.Strength,
		Position:  vec(ec.Position),
		Dir:       dir,
		Falloff:   fo,
		Damping:   ec.Damping,
		Linear:    ec.Linear,
		Quadratic: ec.Quadratic,
	}

	switch kind {
	case components.FieldTexture:
		scale := ec.Scale
		if scale == 0 {
			scale = 1
		}
		eff.Noise = systems.NewNoiseField(ec.Seed, scale)
	case components.FieldGuide:
		if len(ec.Guide.Points) < 2 {
			return nil, fmt.Errorf("effector %q: guide needs at least two points: %w", ec.Name, config.ErrInvalid)
		}
		pts := make([]r3.Vec, len(ec.Guide.Points))
		for i, p := range ec.Guide.Points {
			pts[i] = vec(p)
		}
		freeEnd := ec.Guide.FreeEnd
		if ec.Guide.Path {
			freeEnd = 0
		}
		strength := ec.Strength
		if strength == 0 {
			strength = 1
		}
		eff.Guide = systems.NewGuide(pts, freeEnd, strength, fo)
	}
	return eff, nil
}

// buildFieldEffector converts a system's field config. The source index and
// keys are filled in before every step.
func buildFieldEffector(id int, sc config.SystemConfig) (*systems.Effector, error) {
	fc := sc.Field
	kind, err := components.ParseEffectorKind(fc.Kind)
	if err != nil {
		return nil, fmt.Errorf("system %q field: %w", sc.Name, err)
	}
	if kind == components.FieldGuide || kind == components.FieldTexture {
		return nil, fmt.Errorf("system %q field: %s cannot be emitted by particles: %w", sc.Name, kind, config.ErrInvalid)
	}
	fo, err := buildFalloff("point", fc.Falloff, fc.Power, 0, 0, fc.MaxDist)
	if err != nil {
		return nil, fmt.Errorf("system %q field: %w", sc.Name, err)
	}
	return &systems.Effector{
		Name:     sc.Name,
		Kind:     kind,
		Strength: fc.Strength,
		Dir:      r3.Vec{Z: 1},
		Falloff:  fo,
		Source:   &systems.FieldSource{System: id, SelfEffect: sc.Dynamics.SelfEffect},
	}, nil
}

// buildDeflector converts a deflector config. Deflectors are static and
// built in world space. An emitter deflector reuses the named system's
// emitter at the start frame.
func buildDeflector(cfg *config.Config, i int, dc config.DeflectorConfig) (*systems.Deflector, error) {
	var mesh *surface.Mesh
	tr := surface.Translate(vec(dc.Origin))
	switch {
	case dc.Emitter != "":
		id, ok := cfg.Derived.SystemByID[dc.Emitter]
		if !ok {
			return nil, fmt.Errorf("deflector %q: unknown emitter %q: %w", dc.Name, dc.Emitter, config.ErrInvalid)
		}
		m, motion, err := buildEmitter(cfg, cfg.Systems[id].Emitter)
		if err != nil {
			return nil, fmt.Errorf("deflector %q: %w", dc.Name, err)
		}
		mesh, tr = m, motion.TransformAt(float64(cfg.Simulation.StartFrame))
	case dc.Shape == "plane":
		size := dc.Size
		if size == 0 {
			size = 1
		}
		mesh = surface.NewGrid(size, 1)
	case dc.Shape == "cube":
		mesh = surface.NewCube(dc.Size)
	default:
		return nil, fmt.Errorf("deflector %q shape %q: %w", dc.Name, dc.Shape, components.ErrUnknownEnum)
	}
	return &systems.Deflector{
		Name:         dc.Name,
		Index:        i,
		BVH:          surface.NewBVH(surface.Triangles(mesh, tr)),
		Damping:      dc.Damping,
		RandDamping:  dc.RandDamping,
		Friction:     dc.Friction,
		RandFriction: dc.RandFriction,
		Permeability: dc.Permeability,
		Stickiness:   dc.Stickiness,
		Kill:         dc.Kill,
	}, nil
}
