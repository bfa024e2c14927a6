package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/psys/surface"
)

// WireframeRenderer draws surfaces as edge lines.
type WireframeRenderer struct {
	proj Projector
}

// NewWireframeRenderer creates a new wireframe renderer.
func NewWireframeRenderer(proj Projector) *WireframeRenderer {
	return &WireframeRenderer{proj: proj}
}

// DrawTriangles draws the edges of world space triangles.
func (w *WireframeRenderer) DrawTriangles(tris []surface.Triangle, color rl.Color) {
	for _, t := range tris {
		a, b, c := project(w.proj, t.A), project(w.proj, t.B), project(w.proj, t.C)
		rl.DrawLineV(a, b, color)
		rl.DrawLineV(b, c, color)
		rl.DrawLineV(c, a, color)
	}
}

// DrawMesh draws the face outlines of an object space mesh placed by xf.
func (w *WireframeRenderer) DrawMesh(mesh *surface.Mesh, xf surface.Transform, color rl.Color) {
	for f := 0; f < mesh.NumFaces(); f++ {
		n, fv := mesh.FaceVerts(f)
		for k := 0; k < n; k++ {
			a := project(w.proj, xf.Point(mesh.Verts[fv[k]]))
			b := project(w.proj, xf.Point(mesh.Verts[fv[(k+1)%n]]))
			rl.DrawLineV(a, b, color)
		}
	}
}
