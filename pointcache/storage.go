// Package pointcache stores per-frame particle snapshots so playback and
// scrubbing do not need to re-simulate.
package pointcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrFrameNotFound is returned by storages for frames that were never written.
var ErrFrameNotFound = errors.New("frame not found")

// Storage is a byte oriented per-system, per-frame store.
type Storage interface {
	ReadFrame(system string, frame int) ([]byte, error)
	WriteFrame(system string, frame int, data []byte) error
	DeleteFrame(system string, frame int) error
	// Frames returns the stored frames of system in ascending order.
	Frames(system string) ([]int, error)
}

// MemoryStorage keeps frames in memory. It is safe for concurrent use.
type MemoryStorage struct {
	mu     sync.RWMutex
	frames map[string]map[int][]byte
}

// NewMemoryStorage returns an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{frames: make(map[string]map[int][]byte)}
}

func (m *MemoryStorage) ReadFrame(system string, frame int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.frames[system][frame]
	if !ok {
		return nil, fmt.Errorf("%s frame %d: %w", system, frame, ErrFrameNotFound)
	}
	return data, nil
}

func (m *MemoryStorage) WriteFrame(system string, frame int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sys := m.frames[system]
	if sys == nil {
		sys = make(map[int][]byte)
		m.frames[system] = sys
	}
	sys[frame] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStorage) DeleteFrame(system string, frame int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.frames[system], frame)
	return nil
}

func (m *MemoryStorage) Frames(system string) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, 0, len(m.frames[system]))
	for f := range m.frames[system] {
		out = append(out, f)
	}
	sort.Ints(out)
	return out, nil
}

// DiskStorage keeps one CSV file per frame under Dir/<system>/.
type DiskStorage struct {
	Dir string
}

// NewDiskStorage returns a store rooted at dir, creating it when needed.
func NewDiskStorage(dir string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &DiskStorage{Dir: dir}, nil
}

const frameExt = ".csv"

func (d *DiskStorage) path(system string, frame int) string {
	return filepath.Join(d.Dir, system, fmt.Sprintf("%06d%s", frame, frameExt))
}

func (d *DiskStorage) ReadFrame(system string, frame int) ([]byte, error) {
	data, err := os.ReadFile(d.path(system, frame))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s frame %d: %w", system, frame, ErrFrameNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s frame %d: %w", system, frame, err)
	}
	return data, nil
}

func (d *DiskStorage) WriteFrame(system string, frame int, data []byte) error {
	dir := filepath.Join(d.Dir, system)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	// Write then rename so readers never observe a partial frame.
	tmp, err := os.CreateTemp(dir, "frame-*.tmp")
	if err != nil {
		return fmt.Errorf("writing %s frame %d: %w", system, frame, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s frame %d: %w", system, frame, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s frame %d: %w", system, frame, err)
	}
	if err := os.Rename(tmp.Name(), d.path(system, frame)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s frame %d: %w", system, frame, err)
	}
	return nil
}

func (d *DiskStorage) DeleteFrame(system string, frame int) error {
	err := os.Remove(d.path(system, frame))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting %s frame %d: %w", system, frame, err)
	}
	return nil
}

func (d *DiskStorage) Frames(system string) ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(d.Dir, system))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s frames: %w", system, err)
	}
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, frameExt) {
			continue
		}
		f, err := strconv.Atoi(strings.TrimSuffix(name, frameExt))
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	sort.Ints(out)
	return out, nil
}

// Systems lists the systems with a frame directory.
func (d *DiskStorage) Systems() ([]string, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("listing cache systems: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
