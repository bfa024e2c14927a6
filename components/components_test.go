package components

import (
	"errors"
	"testing"
)

func TestArenaResize(t *testing.T) {
	var a Arena[Particle]
	if !a.Resize(4) {
		t.Fatal("expected growth to report a change")
	}
	a.At(3).Size = 2
	h := a.Handle(3)

	if p, ok := a.Get(h); !ok || p.Size != 2 {
		t.Fatalf("Get(%v) = %v, %v", h, p, ok)
	}

	if a.Resize(4) {
		t.Error("same length should not report a change")
	}

	a.Resize(2)
	if a.Len() != 2 {
		t.Fatalf("Len = %d, want 2", a.Len())
	}
	if _, ok := a.Get(h); ok {
		t.Error("handle should be stale after shrink")
	}

	// Regrowing inside capacity must not resurrect freed values.
	a.Resize(4)
	if a.At(3).Size != 0 {
		t.Errorf("regrown slot Size = %v, want 0", a.At(3).Size)
	}
}

func TestArenaReset(t *testing.T) {
	var a Arena[int]
	a.Resize(3)
	*a.At(1) = 7
	h := a.Handle(1)
	a.Reset()
	if *a.At(1) != 0 {
		t.Errorf("slot = %d after reset, want 0", *a.At(1))
	}
	if _, ok := a.Get(h); ok {
		t.Error("handle should be stale after reset")
	}
}

func TestParticleFlags(t *testing.T) {
	var p Particle
	p.Set(FlagUnexist|FlagNoDisplay, true)
	if p.Exists() {
		t.Error("expected particle to be non-existent")
	}
	p.Set(FlagUnexist, false)
	if !p.Exists() || !p.Has(FlagNoDisplay) {
		t.Errorf("flags = %b", p.Flags)
	}
}

func TestParseEnums(t *testing.T) {
	tests := []struct {
		name  string
		parse func() (uint8, error)
		want  uint8
	}{
		{"face", func() (uint8, error) { v, err := ParseEmissionMode("face"); return uint8(v), err }, uint8(FromFace)},
		{"rk4", func() (uint8, error) { v, err := ParseIntegrator("rk4"); return uint8(v), err }, uint8(RK4)},
		{"vortex", func() (uint8, error) { v, err := ParseEffectorKind("vortex"); return uint8(v), err }, uint8(FieldVortex)},
		{"empty falloff", func() (uint8, error) { v, err := ParseFalloff(""); return uint8(v), err }, uint8(FalloffSphere)},
		{"ob_z", func() (uint8, error) { v, err := ParseRotationMode("ob_z"); return uint8(v), err }, uint8(RotObZ)},
		{"near", func() (uint8, error) { v, err := ParseReactionKind("near"); return uint8(v), err }, uint8(ReactNear)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.parse()
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}

	if _, err := ParseIntegrator("leapfrog"); !errors.Is(err, ErrUnknownEnum) {
		t.Errorf("err = %v, want ErrUnknownEnum", err)
	}
	if RK4.String() != "rk4" || Dying.String() != "dying" {
		t.Error("unexpected String output")
	}
}
