package camera

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestNew(t *testing.T) {
	cam := New(1280, 720, 100, ViewFront)

	if cam.Center != (r3.Vec{}) {
		t.Errorf("expected camera at origin, got %v", cam.Center)
	}
	if cam.Zoom != 1.0 {
		t.Errorf("expected zoom 1.0, got %f", cam.Zoom)
	}
}

func TestParseView(t *testing.T) {
	for _, name := range []string{"front", "top", "side"} {
		v, err := ParseView(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if v.String() != name {
			t.Errorf("expected %s, got %s", name, v)
		}
	}
	if _, err := ParseView("iso"); err == nil {
		t.Error("expected error for unknown view")
	}
}

func TestWorldToScreenCentered(t *testing.T) {
	cam := New(1280, 720, 100, ViewFront)

	sx, sy, _ := cam.WorldToScreen(r3.Vec{})
	if math.Abs(sx-640) > 0.01 || math.Abs(sy-360) > 0.01 {
		t.Errorf("expected screen center (640, 360), got (%f, %f)", sx, sy)
	}
}

func TestWorldToScreen_Views(t *testing.T) {
	p := r3.Vec{X: 1, Y: 2, Z: 3}
	tests := []struct {
		view   View
		sx, sy float64
	}{
		{ViewFront, 640 + 100, 360 - 300},
		{ViewTop, 640 + 100, 360 - 200},
		{ViewSide, 640 + 200, 360 - 300},
	}
	for _, tc := range tests {
		t.Run(tc.view.String(), func(t *testing.T) {
			cam := New(1280, 720, 100, tc.view)
			sx, sy, _ := cam.WorldToScreen(p)
			if math.Abs(sx-tc.sx) > 1e-9 || math.Abs(sy-tc.sy) > 1e-9 {
				t.Errorf("expected (%v, %v), got (%v, %v)", tc.sx, tc.sy, sx, sy)
			}
		})
	}
}

func TestWorldToScreen_DepthTowardViewer(t *testing.T) {
	cam := New(1280, 720, 100, ViewTop)
	_, _, low := cam.WorldToScreen(r3.Vec{Z: 0})
	_, _, high := cam.WorldToScreen(r3.Vec{Z: 1})
	if high <= low {
		t.Errorf("expected higher points nearer in top view, got %v <= %v", high, low)
	}
}

func TestScreenToWorldRoundtrip(t *testing.T) {
	for _, view := range []View{ViewFront, ViewTop, ViewSide} {
		cam := New(1280, 720, 80, view)
		cam.Center = r3.Vec{X: 0.5, Y: -1, Z: 2}
		cam.SetZoom(1.5)

		testCases := []struct{ sx, sy float64 }{
			{640, 360},
			{100, 100},
			{1200, 600},
		}
		for _, tc := range testCases {
			w := cam.ScreenToWorld(tc.sx, tc.sy)
			sx, sy, _ := cam.WorldToScreen(w)
			if math.Abs(sx-tc.sx) > 1e-9 || math.Abs(sy-tc.sy) > 1e-9 {
				t.Errorf("%s: roundtrip failed: (%f,%f) -> %v -> (%f,%f)", view, tc.sx, tc.sy, w, sx, sy)
			}
		}
	}
}

func TestPan(t *testing.T) {
	cam := New(1280, 720, 100, ViewFront)
	cam.Pan(100, -50)

	// Panning right by 100px at 100px/unit moves one unit along +X, up 50px
	// moves half a unit along +Z.
	want := r3.Vec{X: 1, Z: 0.5}
	if r3.Norm(r3.Sub(cam.Center, want)) > 1e-12 {
		t.Errorf("expected center %v, got %v", want, cam.Center)
	}
}

func TestZoomClamp(t *testing.T) {
	cam := New(1280, 720, 100, ViewFront)

	cam.SetZoom(100)
	if cam.Zoom != cam.MaxZoom {
		t.Errorf("expected zoom clamped to %f, got %f", cam.MaxZoom, cam.Zoom)
	}
	cam.SetZoom(0)
	if cam.Zoom != cam.MinZoom {
		t.Errorf("expected zoom clamped to %f, got %f", cam.MinZoom, cam.Zoom)
	}
	cam.Reset()
	if cam.Zoom != 1 {
		t.Errorf("expected zoom 1 after reset, got %f", cam.Zoom)
	}
}

func TestIsVisible(t *testing.T) {
	cam := New(1280, 720, 100, ViewFront)

	if !cam.IsVisible(r3.Vec{}, 0) {
		t.Error("center should be visible")
	}
	// Half width is 6.4 units.
	if cam.IsVisible(r3.Vec{X: 7}, 0.1) {
		t.Error("point beyond the right edge should be culled")
	}
	if !cam.IsVisible(r3.Vec{X: 6.5}, 0.2) {
		t.Error("sphere overlapping the edge should be visible")
	}
	// Depth never culls in an orthographic view.
	if !cam.IsVisible(r3.Vec{Y: 1000}, 0) {
		t.Error("depth should not affect visibility")
	}
}

func TestVisibleWorldBounds(t *testing.T) {
	cam := New(1280, 720, 100, ViewFront)
	minR, minU, maxR, maxU := cam.VisibleWorldBounds()
	if math.Abs(minR+6.4) > 1e-9 || math.Abs(maxR-6.4) > 1e-9 {
		t.Errorf("expected horizontal bounds ±6.4, got [%v, %v]", minR, maxR)
	}
	if math.Abs(minU+3.6) > 1e-9 || math.Abs(maxU-3.6) > 1e-9 {
		t.Errorf("expected vertical bounds ±3.6, got [%v, %v]", minU, maxU)
	}
}
