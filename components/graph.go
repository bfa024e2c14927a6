package components

// SystemNode tags a scene entity as a particle system.
type SystemNode struct {
	ID   int // Index into the scene's system list
	Name string
}

// Dependencies lists the systems a system reads during its step: emission
// sources, keyed targets and particle fields. They are stepped first.
type Dependencies struct {
	On []int
}

// EffectorNode tags a scene entity as a standalone force field.
type EffectorNode struct {
	ID int
}

// DeflectorNode tags a scene entity as a collision surface.
type DeflectorNode struct {
	ID int
}
