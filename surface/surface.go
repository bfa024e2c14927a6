// Package surface provides the emitting and deflecting geometry consumed by
// the particle simulation: a sampling interface, a simple polygon mesh, object
// transforms and a triangle BVH for segment casts.
package surface

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Sample is the result of evaluating a surface at one site.
type Sample struct {
	Co       r3.Vec
	Nor      r3.Vec
	Tan      r3.Vec
	Material int
}

// Surface is the evaluated (post-deformation) geometry particles are emitted
// from. Coordinates are in object space.
type Surface interface {
	NumVerts() int
	NumFaces() int
	// FaceVerts returns the corner count of face f (3 or 4) and its vertex indices.
	FaceVerts(f int) (int, [4]int)
	FaceArea(f int) float64
	FaceCenter(f int) r3.Vec
	// VertDensity returns the emission density weight of vertex v in [0,1].
	VertDensity(v int) float64
	SampleVert(v int) Sample
	// SampleFace evaluates face f at the corner weights w.
	SampleFace(f int, w [4]float64) Sample
}

// Mesh is a polygon mesh of triangles and quads.
type Mesh struct {
	Verts     []r3.Vec
	Faces     [][4]int // Fourth index is -1 for triangles
	Density   []float64
	Materials []int

	vertNor []r3.Vec
	faceNor []r3.Vec
	area    []float64
}

// NewMesh builds a mesh and precomputes normals and areas.
func NewMesh(verts []r3.Vec, faces [][4]int) *Mesh {
	m := &Mesh{Verts: verts, Faces: faces}
	m.Update()
	return m
}

// Update recomputes cached normals and areas after the vertices changed.
func (m *Mesh) Update() {
	m.faceNor = make([]r3.Vec, len(m.Faces))
	m.area = make([]float64, len(m.Faces))
	m.vertNor = make([]r3.Vec, len(m.Verts))
	for f, fv := range m.Faces {
		a, b, c := m.Verts[fv[0]], m.Verts[fv[1]], m.Verts[fv[2]]
		var n r3.Vec
		if fv[3] < 0 {
			n = r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
			m.area[f] = r3.Norm(n) / 2
		} else {
			d := m.Verts[fv[3]]
			n = r3.Cross(r3.Sub(c, a), r3.Sub(d, b))
			m.area[f] = r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)))/2 +
				r3.Norm(r3.Cross(r3.Sub(c, a), r3.Sub(d, a)))/2
		}
		n = Normalize(n)
		m.faceNor[f] = n
		corners := 3
		if fv[3] >= 0 {
			corners = 4
		}
		for i := 0; i < corners; i++ {
			m.vertNor[fv[i]] = r3.Add(m.vertNor[fv[i]], n)
		}
	}
	for i := range m.vertNor {
		m.vertNor[i] = Normalize(m.vertNor[i])
	}
}

func (m *Mesh) NumVerts() int { return len(m.Verts) }
func (m *Mesh) NumFaces() int { return len(m.Faces) }

func (m *Mesh) FaceVerts(f int) (int, [4]int) {
	fv := m.Faces[f]
	if fv[3] < 0 {
		return 3, fv
	}
	return 4, fv
}

func (m *Mesh) FaceArea(f int) float64 { return m.area[f] }

func (m *Mesh) FaceCenter(f int) r3.Vec {
	n, fv := m.FaceVerts(f)
	var c r3.Vec
	for i := 0; i < n; i++ {
		c = r3.Add(c, m.Verts[fv[i]])
	}
	return r3.Scale(1/float64(n), c)
}

func (m *Mesh) VertDensity(v int) float64 {
	if v < len(m.Density) {
		return m.Density[v]
	}
	return 1
}

func (m *Mesh) material(f int) int {
	if f < len(m.Materials) {
		return m.Materials[f]
	}
	return 0
}

func (m *Mesh) SampleVert(v int) Sample {
	nor := m.vertNor[v]
	return Sample{Co: m.Verts[v], Nor: nor, Tan: Tangent(nor, r3.Vec{X: 1})}
}

func (m *Mesh) SampleFace(f int, w [4]float64) Sample {
	n, fv := m.FaceVerts(f)
	var co r3.Vec
	for i := 0; i < n; i++ {
		co = r3.Add(co, r3.Scale(w[i], m.Verts[fv[i]]))
	}
	nor := m.faceNor[f]
	edge := r3.Sub(m.Verts[fv[1]], m.Verts[fv[0]])
	return Sample{Co: co, Nor: nor, Tan: Tangent(nor, edge), Material: m.material(f)}
}

// QuadWeights converts a local (u, v) position to corner weights. For
// triangles (u, v) must satisfy u+v <= 1.
func QuadWeights(corners int, u, v float64) [4]float64 {
	if corners == 3 {
		return [4]float64{1 - u - v, u, v, 0}
	}
	return [4]float64{(1 - u) * (1 - v), u * (1 - v), u * v, (1 - u) * v}
}

// Normalize returns v scaled to unit length, or the zero vector when v is
// too short to normalize.
func Normalize(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n < 1e-12 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}

// Tangent returns the component of hint perpendicular to nor, normalized.
// A hint parallel to nor falls back to an arbitrary perpendicular axis.
func Tangent(nor, hint r3.Vec) r3.Vec {
	t := r3.Sub(hint, r3.Scale(r3.Dot(hint, nor), nor))
	if r3.Norm2(t) < 1e-18 {
		axis := r3.Vec{X: 1}
		if math.Abs(nor.X) > 0.9 {
			axis = r3.Vec{Y: 1}
		}
		t = r3.Sub(axis, r3.Scale(r3.Dot(axis, nor), nor))
	}
	return Normalize(t)
}

// NewQuad builds a single quad in the XY plane spanning [0,size]² with its
// normal along +Z.
func NewQuad(size float64) *Mesh {
	return NewMesh([]r3.Vec{
		{X: 0, Y: 0}, {X: size, Y: 0}, {X: size, Y: size}, {X: 0, Y: size},
	}, [][4]int{{0, 1, 2, 3}})
}

// NewGrid builds a size×size grid of quads centred on the origin in the XY
// plane with subdiv cells per side.
func NewGrid(size float64, subdiv int) *Mesh {
	if subdiv < 1 {
		subdiv = 1
	}
	n := subdiv + 1
	verts := make([]r3.Vec, 0, n*n)
	step := size / float64(subdiv)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			verts = append(verts, r3.Vec{X: -size/2 + float64(i)*step, Y: -size/2 + float64(j)*step})
		}
	}
	faces := make([][4]int, 0, subdiv*subdiv)
	for j := 0; j < subdiv; j++ {
		for i := 0; i < subdiv; i++ {
			a := j*n + i
			faces = append(faces, [4]int{a, a + 1, a + n + 1, a + n})
		}
	}
	return NewMesh(verts, faces)
}

// NewCube builds a closed cube of edge size centred on the origin with
// outward facing normals.
func NewCube(size float64) *Mesh {
	h := size / 2
	verts := []r3.Vec{
		{X: -h, Y: -h, Z: -h}, {X: h, Y: -h, Z: -h}, {X: h, Y: h, Z: -h}, {X: -h, Y: h, Z: -h},
		{X: -h, Y: -h, Z: h}, {X: h, Y: -h, Z: h}, {X: h, Y: h, Z: h}, {X: -h, Y: h, Z: h},
	}
	faces := [][4]int{
		{0, 3, 2, 1}, // -Z
		{4, 5, 6, 7}, // +Z
		{0, 1, 5, 4}, // -Y
		{2, 3, 7, 6}, // +Y
		{1, 2, 6, 5}, // +X
		{0, 4, 7, 3}, // -X
	}
	return NewMesh(verts, faces)
}
