package systems

import (
	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r3"
)

// noiseEps is the central difference step in noise space.
const noiseEps = 1e-3

// NoiseField samples coherent 3D noise and its gradient. The underlying
// generator is read-only after construction, so a field may be shared by
// every worker.
type NoiseField struct {
	noise opensimplex.Noise
	scale float64
}

// NewNoiseField creates a field with the given seed. scale is the spatial
// frequency; zero means 1.
func NewNoiseField(seed int64, scale float64) *NoiseField {
	if scale == 0 {
		scale = 1
	}
	return &NoiseField{noise: opensimplex.New(seed), scale: scale}
}

// Value returns the noise at co in [-1, 1].
func (n *NoiseField) Value(co r3.Vec) float64 {
	return n.noise.Eval3(co.X*n.scale, co.Y*n.scale, co.Z*n.scale)
}

// Gradient returns the noise gradient at co in world units.
func (n *NoiseField) Gradient(co r3.Vec) r3.Vec {
	x, y, z := co.X*n.scale, co.Y*n.scale, co.Z*n.scale
	inv := n.scale / (2 * noiseEps)
	return r3.Vec{
		X: (n.noise.Eval3(x+noiseEps, y, z) - n.noise.Eval3(x-noiseEps, y, z)) * inv,
		Y: (n.noise.Eval3(x, y+noiseEps, z) - n.noise.Eval3(x, y-noiseEps, z)) * inv,
		Z: (n.noise.Eval3(x, y, z+noiseEps) - n.noise.Eval3(x, y, z-noiseEps)) * inv,
	}
}
