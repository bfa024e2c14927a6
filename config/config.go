// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig  `yaml:"simulation"`
	Cache      CacheConfig       `yaml:"cache"`
	Telemetry  TelemetryConfig   `yaml:"telemetry"`
	Preview    PreviewConfig     `yaml:"preview"`
	Systems    []SystemConfig    `yaml:"systems"`
	Effectors  []EffectorConfig  `yaml:"effectors"`
	Deflectors []DeflectorConfig `yaml:"deflectors"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds the global time-stepping parameters.
type SimulationConfig struct {
	FPS        float64    `yaml:"fps"`
	Subframes  int        `yaml:"subframes"`   // Extra dynamics steps per frame
	StartFrame int        `yaml:"start_frame"` // First simulated frame
	EndFrame   int        `yaml:"end_frame"`   // Last simulated frame
	Threads    int        `yaml:"threads"`     // 0 = GOMAXPROCS
	Seed       uint64     `yaml:"seed"`
	TimeTweak  float64    `yaml:"time_tweak"` // Scales the simulated time per frame
	Gravity    [3]float64 `yaml:"gravity"`
}

// CacheConfig holds point cache parameters.
type CacheConfig struct {
	Backend string `yaml:"backend"` // memory | disk
	Dir     string `yaml:"dir"`     // Root directory for the disk backend
	Step    int    `yaml:"step"`    // Write every Nth frame
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfCollectorWindow int `yaml:"perf_collector_window"`
	LogEvery            int `yaml:"log_every"` // Frames between stats logs
}

// PreviewConfig holds display settings for the preview window.
type PreviewConfig struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	TargetFPS int     `yaml:"target_fps"`
	Scale     float64 `yaml:"scale"` // Pixels per world unit
	View      string  `yaml:"view"`  // front | top | side
}

// SystemConfig describes one particle system and its emitter.
type SystemConfig struct {
	Name     string         `yaml:"name"`
	Count    int            `yaml:"count"`
	Seed     uint64         `yaml:"seed"`
	Type     string         `yaml:"type"`    // emitter | hair
	Physics  string         `yaml:"physics"` // none | newton | keyed | boids
	Emitter  EmitterConfig  `yaml:"emitter"`
	Emission EmissionConfig `yaml:"emission"`
	Velocity VelocityConfig `yaml:"velocity"`
	Rotation RotationConfig `yaml:"rotation"`
	Dynamics DynamicsConfig `yaml:"dynamics"`
	Weights  WeightsConfig  `yaml:"weights"`
	Boids    BoidsConfig    `yaml:"boids"`
	Keyed    KeyedConfig    `yaml:"keyed"`
	Hair     HairConfig     `yaml:"hair"`
	Children ChildrenConfig `yaml:"children"`
	Field    *FieldConfig   `yaml:"field,omitempty"` // System acts as a force field on others
}

// EmitterConfig describes the emitting surface primitive and its motion.
type EmitterConfig struct {
	Shape        string     `yaml:"shape"` // quad | grid | cube
	Size         float64    `yaml:"size"`
	Subdivisions int        `yaml:"subdivisions"`
	Origin       [3]float64 `yaml:"origin"`
	Motion       [3]float64 `yaml:"motion"`  // Constant object velocity, units per second
	Density      []float64  `yaml:"density"` // Optional per-vertex density weights
}

// EmissionConfig holds emission timing and distribution parameters.
type EmissionConfig struct {
	From           string  `yaml:"from"`            // vert | face | volume | particle | reaction
	Source         string  `yaml:"source"`          // Source system for particle and reaction emission
	ReactOn        string  `yaml:"react_on"`        // death | collision | near
	Distribution   string  `yaml:"distribution"`    // jitter | random | grid
	Even           bool    `yaml:"even"`            // Area-weighted element choice
	Random         bool    `yaml:"random"`          // Random offsets instead of i/(n-1)
	Simplify       bool    `yaml:"simplify"`        // Render simplification, forces random offsets
	UseDensity     bool    `yaml:"use_density"`     // Weight elements by vertex density
	Jitter         float64 `yaml:"jitter"`          // Jitter amount (0 = automatic)
	JitterOffset   float64 `yaml:"jitter_offset"`   // Starting point inside the jitter table
	GridResolution int     `yaml:"grid_resolution"` // Cells per axis for grid distribution
	Start          float64 `yaml:"start"`           // First birth frame
	End            float64 `yaml:"end"`             // Last birth frame
	Lifetime       float64 `yaml:"lifetime"`        // Frames
	RandLifetime   float64 `yaml:"rand_lifetime"`
	Loop           bool    `yaml:"loop"`
	Display        float64 `yaml:"display"`       // Fraction of particles displayed
	NearDistance   float64 `yaml:"near_distance"` // Proximity threshold for near reactions
}

// VelocityConfig holds birth velocity factors.
type VelocityConfig struct {
	Normal       float64    `yaml:"normal"`
	Tangent      float64    `yaml:"tangent"`
	TangentPhase float64    `yaml:"tangent_phase"`
	Object       [3]float64 `yaml:"object"`        // Velocity along the emitter axes
	ObjectFactor float64    `yaml:"object_factor"` // Fraction of emitter motion inherited
	Random       float64    `yaml:"random"`
	Reactor      float64    `yaml:"reactor"` // Fraction of the reaction velocity inherited
}

// RotationConfig holds birth rotation and spin parameters.
type RotationConfig struct {
	Mode          string  `yaml:"mode"` // none | nor | nor_tan | vel | global_x | ... | ob_z
	Random        float64 `yaml:"random"`
	Phase         float64 `yaml:"phase"`
	RandomPhase   float64 `yaml:"random_phase"`
	Angular       string  `yaml:"angular"` // none | velocity | horizontal | vertical | global_x | ... | random
	AngularFactor float64 `yaml:"angular_factor"`
	Dynamic       bool    `yaml:"dynamic"` // Spin from collisions and velocity change
}

// DynamicsConfig holds newtonian physics parameters.
type DynamicsConfig struct {
	Integrator      string     `yaml:"integrator"` // euler | midpoint | rk4 | verlet
	Mass            float64    `yaml:"mass"`
	MassFromSize    bool       `yaml:"mass_from_size"`
	Size            float64    `yaml:"size"`
	RandSize        float64    `yaml:"rand_size"`
	Drag            float64    `yaml:"drag"`
	Brownian        float64    `yaml:"brownian"`
	Damping         float64    `yaml:"damping"`
	Acceleration    [3]float64 `yaml:"acceleration"` // Constant acceleration on top of gravity
	SizeDeflect     bool       `yaml:"size_deflect"` // Use particle size as collision radius
	DieOnCollision  bool       `yaml:"die_on_collision"`
	RollingFriction bool       `yaml:"rolling_friction"`
	SelfEffect      bool       `yaml:"self_effect"` // Allow the system's own field to act on it
	Charge          *float64   `yaml:"charge,omitempty"` // Own charge; unset means the strength of a charge field, else 1
}

// WeightsConfig scales effector contributions per kind.
type WeightsConfig struct {
	Gravity  float64 `yaml:"gravity"`
	All      float64 `yaml:"all"`
	Force    float64 `yaml:"force"`
	Wind     float64 `yaml:"wind"`
	Vortex   float64 `yaml:"vortex"`
	Charge   float64 `yaml:"charge"`
	Harmonic float64 `yaml:"harmonic"`
	Drag     float64 `yaml:"drag"`
	Texture  float64 `yaml:"texture"`
	Guide    float64 `yaml:"guide"`
}

// BoidsConfig holds flocking parameters.
type BoidsConfig struct {
	Range      float64    `yaml:"range"`
	Separation float64    `yaml:"separation"`
	Alignment  float64    `yaml:"alignment"`
	Cohesion   float64    `yaml:"cohesion"`
	Goal       [3]float64 `yaml:"goal"`
	GoalWeight float64    `yaml:"goal_weight"`
	MaxSpeed   float64    `yaml:"max_speed"`
	MaxAccel   float64    `yaml:"max_accel"`
	Neighbors  int        `yaml:"neighbors"`
}

// KeyedConfig lists the systems a keyed system travels through.
type KeyedConfig struct {
	Targets []string `yaml:"targets"`
}

// HairConfig holds strand growth parameters.
type HairConfig struct {
	Segments int     `yaml:"segments"`
	Length   float64 `yaml:"length"`
}

// ChildrenConfig holds child particle parameters.
type ChildrenConfig struct {
	Mode      string  `yaml:"mode"` // none | simple | interpolated
	PerParent int     `yaml:"per_parent"`
	Radius    float64 `yaml:"radius"`
	Virtual   float64 `yaml:"virtual"` // Fraction of virtual parents for interpolated children
}

// FieldConfig turns a particle system into an effector acting on other systems.
type FieldConfig struct {
	Kind     string  `yaml:"kind"`
	Strength float64 `yaml:"strength"`
	Falloff  string  `yaml:"falloff"`
	Power    float64 `yaml:"power"`
	MaxDist  float64 `yaml:"max_dist"`
}

// EffectorConfig describes a standalone force field.
type EffectorConfig struct {
	Name      string      `yaml:"name"`
	Kind      string      `yaml:"kind"` // force | wind | vortex | charge | harmonic | drag | texture | guide
	Strength  float64     `yaml:"strength"`
	Position  [3]float64  `yaml:"position"`
	Direction [3]float64  `yaml:"direction"`
	Shape     string      `yaml:"shape"`   // point | plane
	Falloff   string      `yaml:"falloff"` // sphere | tube | cone
	Power     float64     `yaml:"power"`
	MinDist   float64     `yaml:"min_dist"`
	MaxDist   float64     `yaml:"max_dist"`
	Radial    float64     `yaml:"radial"`    // Radial falloff power for tube and cone
	Damping   float64     `yaml:"damping"`   // Harmonic damping
	Scale     float64     `yaml:"scale"`     // Texture noise scale
	Linear    float64     `yaml:"linear"`    // Linear drag coefficient
	Quadratic float64     `yaml:"quadratic"` // Quadratic drag coefficient
	Seed      int64       `yaml:"seed"`
	Guide     GuideConfig `yaml:"guide"`
}

// GuideConfig holds guide curve parameters.
type GuideConfig struct {
	Points  [][3]float64 `yaml:"points"`
	FreeEnd float64      `yaml:"free_end"`
	MinDist float64      `yaml:"min_dist"`
	Path    bool         `yaml:"path"` // Use the guide on the whole lifetime
}

// DeflectorConfig describes a collision surface.
type DeflectorConfig struct {
	Name         string     `yaml:"name"`
	Shape        string     `yaml:"shape"`   // plane | cube
	Emitter      string     `yaml:"emitter"` // Use this system's emitter as the surface
	Size         float64    `yaml:"size"`
	Origin       [3]float64 `yaml:"origin"`
	Damping      float64    `yaml:"damping"`
	RandDamping  float64    `yaml:"rand_damping"`
	Friction     float64    `yaml:"friction"`
	RandFriction float64    `yaml:"rand_friction"`
	Permeability float64    `yaml:"permeability"`
	Stickiness   float64    `yaml:"stickiness"`
	Kill         bool       `yaml:"kill"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	FrameTime  float64        // Seconds per frame, scaled by TimeTweak
	SubStep    float64        // Fraction of a frame per dynamics step
	Workers    int            // Effective worker count
	SystemByID map[string]int // name -> index into Systems
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	cfg.applySystemDefaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.computeDerived()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse overlays YAML data onto cfg. Lists present in data replace the
// default lists wholesale.
func Parse(data []byte, cfg *Config) error {
	// Unmarshal into same struct - only overwrites fields present in data
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applySystemDefaults()
	return nil
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

func (c *Config) validate() error {
	if c.Simulation.FPS <= 0 {
		return fmt.Errorf("%w: simulation.fps must be positive", ErrInvalid)
	}
	if c.Simulation.EndFrame < c.Simulation.StartFrame {
		return fmt.Errorf("%w: simulation.end_frame before start_frame", ErrInvalid)
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "disk" {
		return fmt.Errorf("%w: cache.backend %q", ErrInvalid, c.Cache.Backend)
	}
	if c.Cache.Backend == "disk" && c.Cache.Dir == "" {
		return fmt.Errorf("%w: cache.dir required for disk backend", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.Systems))
	for i, sys := range c.Systems {
		if sys.Name == "" {
			return fmt.Errorf("%w: systems[%d] has no name", ErrInvalid, i)
		}
		if seen[sys.Name] {
			return fmt.Errorf("%w: duplicate system %q", ErrInvalid, sys.Name)
		}
		seen[sys.Name] = true
		if sys.Count < 0 {
			return fmt.Errorf("%w: system %q has negative count", ErrInvalid, sys.Name)
		}
		if sys.Emission.Lifetime < 0 {
			return fmt.Errorf("%w: system %q has negative lifetime", ErrInvalid, sys.Name)
		}
		if r := sys.Emission.RandLifetime; r < 0 || r > 1 {
			return fmt.Errorf("%w: system %q rand_lifetime %v outside [0, 1]", ErrInvalid, sys.Name, r)
		}
	}
	for _, sys := range c.Systems {
		if src := sys.Emission.Source; src != "" && !seen[src] {
			return fmt.Errorf("%w: system %q references unknown source %q", ErrInvalid, sys.Name, src)
		}
		if sys.Emission.From == "reaction" && sys.Emission.Source == "" {
			return fmt.Errorf("%w: reactor system %q has no source", ErrInvalid, sys.Name)
		}
		for _, tgt := range sys.Keyed.Targets {
			if !seen[tgt] {
				return fmt.Errorf("%w: system %q references unknown keyed target %q", ErrInvalid, sys.Name, tgt)
			}
		}
	}
	for _, d := range c.Deflectors {
		if d.Emitter != "" && !seen[d.Emitter] {
			return fmt.Errorf("%w: deflector %q references unknown emitter %q", ErrInvalid, d.Name, d.Emitter)
		}
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	if c.Simulation.TimeTweak == 0 {
		c.Simulation.TimeTweak = 1
	}
	if c.Simulation.FPS > 0 {
		c.Derived.FrameTime = c.Simulation.TimeTweak / c.Simulation.FPS
	}
	if c.Simulation.Subframes < 0 {
		c.Simulation.Subframes = 0
	}
	c.Derived.SubStep = 1 / float64(c.Simulation.Subframes+1)

	c.Derived.Workers = c.Simulation.Threads
	if c.Derived.Workers <= 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}

	if c.Cache.Step < 1 {
		c.Cache.Step = 1
	}

	c.Derived.SystemByID = make(map[string]int, len(c.Systems))
	for i, sys := range c.Systems {
		c.Derived.SystemByID[sys.Name] = i
	}
}

// UnmarshalYAML decodes a system on top of the defaults whose zero value is a
// meaningful setting.
func (s *SystemConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain SystemConfig
	p := plain{Emission: EmissionConfig{Display: 1}}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = SystemConfig(p)
	return nil
}

// applySystemDefaults fills zero-valued per-system fields that have a
// non-zero natural default.
func (c *Config) applySystemDefaults() {
	for i := range c.Systems {
		s := &c.Systems[i]
		if s.Type == "" {
			s.Type = "emitter"
		}
		if s.Physics == "" {
			s.Physics = "newton"
		}
		if s.Emission.From == "" {
			s.Emission.From = "face"
		}
		if s.Emission.Distribution == "" {
			s.Emission.Distribution = "jitter"
		}
		if s.Dynamics.Integrator == "" {
			s.Dynamics.Integrator = "midpoint"
		}
		if s.Dynamics.Mass == 0 {
			s.Dynamics.Mass = 1
		}
		if s.Dynamics.Size == 0 {
			s.Dynamics.Size = 0.05
		}
		if s.Weights == (WeightsConfig{}) {
			s.Weights = DefaultWeights()
		}
		if s.Rotation.Mode == "" {
			s.Rotation.Mode = "nor"
		}
		if s.Rotation.Angular == "" {
			s.Rotation.Angular = "none"
		}
		if s.Children.Mode == "" {
			s.Children.Mode = "none"
		}
		if s.Hair.Segments == 0 {
			s.Hair.Segments = 5
		}
		if s.Emitter.Shape == "" {
			s.Emitter.Shape = "quad"
		}
		if s.Emitter.Size == 0 {
			s.Emitter.Size = 1
		}
	}
}

// DefaultWeights returns effector weights with every kind at full strength.
func DefaultWeights() WeightsConfig {
	return WeightsConfig{
		Gravity: 1, All: 1, Force: 1, Wind: 1, Vortex: 1, Charge: 1,
		Harmonic: 1, Drag: 1, Texture: 1, Guide: 1,
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
