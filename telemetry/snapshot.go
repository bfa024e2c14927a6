package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pthm-cable/psys/components"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the particle state of every system at one frame.
type Snapshot struct {
	Version int    `json:"version"`
	Seed    uint64 `json:"seed"`
	Frame   int    `json:"frame"`

	Systems []SystemSnapshot `json:"systems"`
}

// SystemSnapshot holds one system's particles.
type SystemSnapshot struct {
	Name      string          `json:"name"`
	Particles []ParticleState `json:"particles"`
}

// ParticleState is the readable form of one particle.
type ParticleState struct {
	Index int        `json:"index"`
	State string     `json:"state"`
	Co    [3]float64 `json:"co"`
	Vel   [3]float64 `json:"vel"`
	Rot   [4]float64 `json:"rot"` // w, x, y, z

	Time     float64 `json:"time"`
	Lifetime float64 `json:"lifetime"`
	Size     float64 `json:"size"`
	Visible  bool    `json:"visible"`
}

// CaptureSystem converts a system's particles to snapshot form. Particles
// that do not exist are left out.
func CaptureSystem(name string, items []components.Particle) SystemSnapshot {
	ss := SystemSnapshot{Name: name, Particles: make([]ParticleState, 0, len(items))}
	for p := range items {
		pa := &items[p]
		if !pa.Exists() {
			continue
		}
		k := pa.State
		ss.Particles = append(ss.Particles, ParticleState{
			Index:    p,
			State:    pa.Alive.String(),
			Co:       [3]float64{k.Co.X, k.Co.Y, k.Co.Z},
			Vel:      [3]float64{k.Vel.X, k.Vel.Y, k.Vel.Z},
			Rot:      [4]float64{k.Rot.Real, k.Rot.Imag, k.Rot.Jmag, k.Rot.Kmag},
			Time:     pa.Time,
			Lifetime: pa.Lifetime,
			Size:     pa.Size,
			Visible:  !pa.Has(components.FlagNoDisplay),
		})
	}
	return ss
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("snapshot_%04d.json", snapshot.Frame))

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
