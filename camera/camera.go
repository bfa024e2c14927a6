// Package camera provides an orthographic camera for the preview window.
package camera

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// View selects the axis the camera looks along.
type View uint8

const (
	ViewFront View = iota // Looks along +Y, screen right is +X, screen up is +Z
	ViewTop               // Looks along -Z, screen right is +X, screen up is +Y
	ViewSide              // Looks along -X, screen right is +Y, screen up is +Z
)

var viewNames = []string{"front", "top", "side"}

// ParseView converts a config name to a View.
func ParseView(s string) (View, error) {
	for i, n := range viewNames {
		if n == s {
			return View(i), nil
		}
	}
	return ViewFront, fmt.Errorf("unknown view %q", s)
}

func (v View) String() string {
	if int(v) < len(viewNames) {
		return viewNames[v]
	}
	return "unknown"
}

// Camera projects world space onto the screen orthographically.
type Camera struct {
	// Center is the world point under the viewport center
	Center r3.Vec

	View View

	// Scale is pixels per world unit at zoom 1
	Scale float64

	// Zoom level (1.0 = 1:1, 2.0 = 2x magnification)
	Zoom float64

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float64

	// Zoom constraints
	MinZoom, MaxZoom float64
}

// New creates a camera centered on the origin with 1:1 zoom.
func New(viewportW, viewportH, scale float64, view View) *Camera {
	if scale <= 0 {
		scale = 1
	}
	return &Camera{
		View:      view,
		Scale:     scale,
		Zoom:      1.0,
		ViewportW: viewportW,
		ViewportH: viewportH,
		MinZoom:   0.1,
		MaxZoom:   20.0,
	}
}

// axes returns the world coordinates along screen right, screen up and
// toward the viewer.
func (c *Camera) axes(p r3.Vec) (right, up, depth float64) {
	switch c.View {
	case ViewTop:
		return p.X, p.Y, p.Z
	case ViewSide:
		return p.Y, p.Z, p.X
	}
	return p.X, p.Z, -p.Y
}

func (c *Camera) fromAxes(right, up, depth float64) r3.Vec {
	switch c.View {
	case ViewTop:
		return r3.Vec{X: right, Y: up, Z: depth}
	case ViewSide:
		return r3.Vec{X: depth, Y: right, Z: up}
	}
	return r3.Vec{X: right, Y: -depth, Z: up}
}

func (c *Camera) pixels() float64 { return c.Scale * c.Zoom }

// WorldToScreen projects p to screen coordinates. depth grows toward the
// viewer and can be used to sort draws.
func (c *Camera) WorldToScreen(p r3.Vec) (sx, sy, depth float64) {
	r, u, d := c.axes(r3.Sub(p, c.Center))
	k := c.pixels()
	return c.ViewportW/2 + r*k, c.ViewportH/2 - u*k, d
}

// ScreenToWorld returns the world point under the screen position on the
// plane through the camera center.
func (c *Camera) ScreenToWorld(sx, sy float64) r3.Vec {
	k := c.pixels()
	r := (sx - c.ViewportW/2) / k
	u := -(sy - c.ViewportH/2) / k
	return r3.Add(c.Center, c.fromAxes(r, u, 0))
}

// IsVisible returns true if a sphere at p with given radius could be
// visible on screen (conservative check for culling).
func (c *Camera) IsVisible(p r3.Vec, radius float64) bool {
	r, u, _ := c.axes(r3.Sub(p, c.Center))
	k := c.pixels()
	halfW := c.ViewportW/(2*k) + radius
	halfH := c.ViewportH/(2*k) + radius
	return abs(r) <= halfW && abs(u) <= halfH
}

// Resize updates viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float64) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// Pan moves the camera by the given delta in screen pixels.
func (c *Camera) Pan(dx, dy float64) {
	k := c.pixels()
	c.Center = r3.Add(c.Center, c.fromAxes(dx/k, -dy/k, 0))
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float64) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *Camera) ZoomBy(factor float64) {
	c.SetZoom(c.Zoom * factor)
}

// Reset returns the camera to the origin and zoom 1.
func (c *Camera) Reset() {
	c.Center = r3.Vec{}
	c.Zoom = 1.0
}

// VisibleWorldBounds returns the visible extent along screen right and
// screen up in world units.
func (c *Camera) VisibleWorldBounds() (minR, minU, maxR, maxU float64) {
	k := c.pixels()
	halfW := c.ViewportW / (2 * k)
	halfH := c.ViewportH / (2 * k)
	r, u, _ := c.axes(c.Center)
	return r - halfW, u - halfH, r + halfW, u + halfH
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// clamp restricts a value to a range.
func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
