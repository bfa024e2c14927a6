package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load defaults: %v", err)
	}

	if cfg.Simulation.FPS != 24 {
		t.Errorf("fps = %v, want 24", cfg.Simulation.FPS)
	}
	if got, want := cfg.Derived.FrameTime, 1.0/24.0; got != want {
		t.Errorf("frame time = %v, want %v", got, want)
	}
	if cfg.Derived.SubStep != 1 {
		t.Errorf("substep = %v, want 1 with no subframes", cfg.Derived.SubStep)
	}
	if cfg.Derived.Workers < 1 {
		t.Errorf("workers = %d, want >= 1", cfg.Derived.Workers)
	}
	if len(cfg.Systems) == 0 {
		t.Fatal("expected default systems")
	}
	if _, ok := cfg.Derived.SystemByID["rain"]; !ok {
		t.Error("expected rain system in index")
	}

	// Fields left out of the defaults file get filled in.
	splash := cfg.Systems[cfg.Derived.SystemByID["splash"]]
	if splash.Emission.Display != 1 {
		t.Errorf("splash display = %v, want 1", splash.Emission.Display)
	}
	if splash.Weights != DefaultWeights() {
		t.Errorf("splash weights = %+v, want defaults", splash.Weights)
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	data := []byte(`
simulation:
  fps: 30
  subframes: 3
systems:
  - name: only
    count: 10
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Simulation.FPS != 30 {
		t.Errorf("fps = %v, want 30", cfg.Simulation.FPS)
	}
	if cfg.Simulation.Seed != 1 {
		t.Errorf("seed = %v, want default 1", cfg.Simulation.Seed)
	}
	if cfg.Derived.SubStep != 0.25 {
		t.Errorf("substep = %v, want 0.25", cfg.Derived.SubStep)
	}
	if len(cfg.Systems) != 1 || cfg.Systems[0].Name != "only" {
		t.Fatalf("systems = %+v, want the single overlay system", cfg.Systems)
	}
	if cfg.Systems[0].Dynamics.Integrator != "midpoint" {
		t.Errorf("integrator = %q, want midpoint default", cfg.Systems[0].Dynamics.Integrator)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero fps", "simulation:\n  fps: 0\n"},
		{"reversed frames", "simulation:\n  start_frame: 10\n  end_frame: 5\n"},
		{"bad backend", "cache:\n  backend: tape\n"},
		{"disk without dir", "cache:\n  backend: disk\n"},
		{"duplicate system", "systems:\n  - name: a\n  - name: a\n"},
		{"unknown source", "systems:\n  - name: a\n    emission:\n      source: b\n"},
		{"unknown keyed target", "systems:\n  - name: a\n    keyed:\n      targets: [b]\n"},
		{"negative lifetime", "systems:\n  - name: a\n    emission:\n      lifetime: -1\n"},
		{"rand lifetime above one", "systems:\n  - name: a\n    emission:\n      rand_lifetime: 3\n"},
		{"negative rand lifetime", "systems:\n  - name: a\n    emission:\n      rand_lifetime: -0.5\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Load error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadDisplay(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want float64
	}{
		{"omitted", "systems:\n  - name: a\n", 1},
		{"zero", "systems:\n  - name: a\n    emission:\n      display: 0\n", 0},
		{"half", "systems:\n  - name: a\n    emission:\n      display: 0.5\n", 0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scene.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := cfg.Systems[0].Emission.Display; got != tc.want {
				t.Errorf("display = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(again.Systems) != len(cfg.Systems) {
		t.Errorf("systems = %d, want %d", len(again.Systems), len(cfg.Systems))
	}
}
