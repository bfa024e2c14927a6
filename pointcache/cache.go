package pointcache

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
	"github.com/pthm-cable/psys/systems"
)

// ErrParticleCount is returned when a cached frame holds a different number
// of particles than the system being restored.
var ErrParticleCount = errors.New("cached particle count mismatch")

// ErrCorruptFrame is returned when a cached record names a particle outside
// the system.
var ErrCorruptFrame = errors.New("corrupt cached frame")

// ReadResult classifies a cache lookup.
type ReadResult uint8

const (
	ResultMiss         ReadResult = iota // Nothing usable at or before the frame
	ResultExact                          // The frame itself is cached
	ResultInterpolated                   // Blended from the cached frames around it
	ResultOld                            // Only an earlier frame is cached
)

func (r ReadResult) String() string {
	switch r {
	case ResultExact:
		return "exact"
	case ResultInterpolated:
		return "interpolated"
	case ResultOld:
		return "old"
	}
	return "miss"
}

// Options configures a cache.
type Options struct {
	StartFrame int     // First frame of the simulation range
	Step       int     // Write every Step frames
	FrameTime  float64 // Seconds per frame, for velocity tangents
}

// ReadInfo is the outcome of Read.
type ReadInfo struct {
	Result ReadResult
	Frame  int // Cached frame restored for exact and old results
	Events []components.ReactionEvent
}

// Cache is the point cache of one particle system. Only the frame driver
// reads and writes it.
type Cache struct {
	storage Storage
	system  string
	opts    Options

	frames    []int // Sorted stored frames
	loaded    bool
	lastExact int
	baked     bool
}

// New returns a cache for system on storage.
func New(storage Storage, system string, opts Options) *Cache {
	if opts.Step < 1 {
		opts.Step = 1
	}
	return &Cache{storage: storage, system: system, opts: opts, lastExact: opts.StartFrame - 1}
}

// System returns the system name the cache is keyed by.
func (c *Cache) System() string { return c.system }

// Step returns the write spacing in frames.
func (c *Cache) Step() int { return c.opts.Step }

// LastExact returns the newest frame written by simulation.
func (c *Cache) LastExact() int { return c.lastExact }

// Baked reports whether the cache is protected from invalidation.
func (c *Cache) Baked() bool { return c.baked }

// SetBaked marks the cache as baked or not.
func (c *Cache) SetBaked(b bool) { c.baked = b }

func (c *Cache) load() error {
	if c.loaded {
		return nil
	}
	frames, err := c.storage.Frames(c.system)
	if err != nil {
		return err
	}
	c.frames = frames
	c.loaded = true
	if n := len(frames); n > 0 && frames[n-1] > c.lastExact {
		c.lastExact = frames[n-1]
	}
	return nil
}

// Frames returns the cached frames in ascending order.
func (c *Cache) Frames() ([]int, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	return append([]int(nil), c.frames...), nil
}

func (c *Cache) has(frame int) bool {
	i := sort.SearchInts(c.frames, frame)
	return i < len(c.frames) && c.frames[i] == frame
}

// Has reports whether frame is stored.
func (c *Cache) Has(frame int) bool {
	if c.load() != nil {
		return false
	}
	return c.has(frame)
}

// Latest returns the newest stored frame at or before frame.
func (c *Cache) Latest(frame int) (int, bool) {
	if c.load() != nil {
		return 0, false
	}
	i := sort.SearchInts(c.frames, frame+1)
	if i == 0 {
		return 0, false
	}
	return c.frames[i-1], true
}

// Events returns the reaction events stored with frame.
func (c *Cache) Events(frame int) ([]components.ReactionEvent, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	if !c.has(frame) {
		return nil, fmt.Errorf("%s frame %d: %w", c.system, frame, ErrFrameNotFound)
	}
	f, err := c.readFrame(frame)
	if err != nil {
		return nil, err
	}
	out := make([]components.ReactionEvent, len(f.Events))
	for i, e := range f.Events {
		out[i] = e.Event()
	}
	return out, nil
}

func (c *Cache) readFrame(frame int) (*Frame, error) {
	data, err := c.storage.ReadFrame(c.system, frame)
	if err != nil {
		return nil, err
	}
	f, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s frame %d: %w", c.system, frame, err)
	}
	return f, nil
}

// Read restores particles for frame. Exact and interpolated results leave the
// particles ready for display at frame. An old result restores the newest
// cached frame before it, which the caller then simulates forward from.
func (c *Cache) Read(frame float64, particles []components.Particle) (ReadInfo, error) {
	if err := c.load(); err != nil {
		return ReadInfo{}, err
	}
	if len(c.frames) == 0 {
		return ReadInfo{Result: ResultMiss}, nil
	}

	fl := int(math.Floor(frame))
	if frame == float64(fl) && c.has(fl) {
		f, err := c.readFrame(fl)
		if err != nil {
			return ReadInfo{}, err
		}
		if err := restore(f, particles); err != nil {
			return ReadInfo{}, fmt.Errorf("%s frame %d: %w", c.system, fl, err)
		}
		info := ReadInfo{Result: ResultExact, Frame: fl}
		for _, e := range f.Events {
			info.Events = append(info.Events, e.Event())
		}
		return info, nil
	}

	i := sort.SearchInts(c.frames, fl+1) // First frame after floor
	if i == 0 {
		return ReadInfo{Result: ResultMiss}, nil
	}
	f1 := c.frames[i-1]
	if i < len(c.frames) {
		f2 := c.frames[i]
		if f2-f1 <= c.opts.Step {
			a, err := c.readFrame(f1)
			if err != nil {
				return ReadInfo{}, err
			}
			b, err := c.readFrame(f2)
			if err != nil {
				return ReadInfo{}, err
			}
			if err := c.interpolate(a, b, f1, f2, frame, particles); err != nil {
				return ReadInfo{}, fmt.Errorf("%s frames %d..%d: %w", c.system, f1, f2, err)
			}
			return ReadInfo{Result: ResultInterpolated, Frame: f1}, nil
		}
	}

	f, err := c.readFrame(f1)
	if err != nil {
		return ReadInfo{}, err
	}
	if err := restore(f, particles); err != nil {
		return ReadInfo{}, fmt.Errorf("%s frame %d: %w", c.system, f1, err)
	}
	info := ReadInfo{Result: ResultOld, Frame: f1}
	for _, e := range f.Events {
		info.Events = append(info.Events, e.Event())
	}
	return info, nil
}

// checkIndices verifies every record of f addresses one of n particles.
func checkIndices(f *Frame, n int) error {
	for i, r := range f.Records {
		if r.Index < 0 || r.Index >= n {
			return fmt.Errorf("%w: record %d has index %d of %d", ErrCorruptFrame, i, r.Index, n)
		}
	}
	return nil
}

func restore(f *Frame, particles []components.Particle) error {
	if len(f.Records) != len(particles) {
		return fmt.Errorf("%w: %d cached, %d live", ErrParticleCount, len(f.Records), len(particles))
	}
	if err := checkIndices(f, len(particles)); err != nil {
		return err
	}
	for _, r := range f.Records {
		pa := &particles[r.Index]
		r.Apply(pa)
		pa.Alive = components.Lifecycle(r.Alive)
	}
	return nil
}

// interpolate blends two cached frames. Positions follow a cubic Hermite
// curve through the cached velocities; rotations are slerped. A particle
// born or dying between the frames is clamped to its birth or death.
func (c *Cache) interpolate(a, b *Frame, f1, f2 int, frame float64, particles []components.Particle) error {
	if len(a.Records) != len(particles) || len(b.Records) != len(particles) {
		return fmt.Errorf("%w: %d and %d cached, %d live", ErrParticleCount, len(a.Records), len(b.Records), len(particles))
	}
	if err := checkIndices(b, len(particles)); err != nil {
		return err
	}
	for i := range b.Records {
		r1, r2 := a.Records[i], b.Records[i]
		pa := &particles[r2.Index]
		r2.Apply(pa)

		switch {
		case frame < r2.Birth:
			// Not yet born at frame.
		case r1.Loop == r2.Loop && r1.Death <= float64(f1):
			pa.State = r1.Key()
		default:
			k1, k2 := r1.Key(), r2.Key()
			t1, t2 := float64(f1), float64(f2)
			if r1.Loop != r2.Loop || r2.Birth > t1 {
				// Born inside the gap: run the later key back to the birth.
				back := (t2 - r2.Birth) * c.opts.FrameTime
				k1 = k2
				k1.Co = r3.Sub(k2.Co, r3.Scale(back, k2.Vel))
				t1 = r2.Birth
			}
			if r2.Death < t2 {
				t2 = r2.Death
			}
			t := math.Min(math.Max(frame, t1), t2)
			pa.State = Hermite(k1, k2, t1, t2, t, c.opts.FrameTime)
		}
		pa.Prev = pa.State
		pa.Alive = systems.StateAt(pa, frame)
	}
	return nil
}

// Hermite evaluates the cubic Hermite segment between two keys at frame t.
// t1 and t2 are the key frames; frameTime converts the velocities, which are
// per second, into per-frame tangents.
func Hermite(k1, k2 components.Key, t1, t2, t, frameTime float64) components.Key {
	span := t2 - t1
	if span <= 0 {
		return k2
	}
	s := (t - t1) / span
	dt := span * frameTime
	s2, s3 := s*s, s*s*s

	h00, h10, h01, h11 := 2*s3-3*s2+1, s3-2*s2+s, -2*s3+3*s2, s3-s2
	co := r3.Add(
		r3.Add(r3.Scale(h00, k1.Co), r3.Scale(h10*dt, k1.Vel)),
		r3.Add(r3.Scale(h01, k2.Co), r3.Scale(h11*dt, k2.Vel)),
	)

	out := components.Key{Co: co, Time: t}
	if dt > 0 {
		d00, d10, d01, d11 := 6*s2-6*s, 3*s2-4*s+1, -6*s2+6*s, 3*s2-2*s
		out.Vel = r3.Add(
			r3.Add(r3.Scale(d00/dt, k1.Co), r3.Scale(d10, k1.Vel)),
			r3.Add(r3.Scale(d01/dt, k2.Co), r3.Scale(d11, k2.Vel)),
		)
	}
	out.Rot = systems.Slerp(k1.Rot, k2.Rot, s)
	out.Ave = r3.Add(k1.Ave, r3.Scale(s, r3.Sub(k2.Ave, k1.Ave)))
	return out
}

// Write stores the particles and events of frame. Frames off the write step
// are skipped unless force is set. It reports whether the frame was written.
func (c *Cache) Write(frame int, particles []components.Particle, events []components.ReactionEvent, force bool) (bool, error) {
	if err := c.load(); err != nil {
		return false, err
	}
	if !force && (frame-c.opts.StartFrame)%c.opts.Step != 0 {
		return false, nil
	}

	f := &Frame{Records: make([]Record, len(particles))}
	for p := range particles {
		f.Records[p] = NewRecord(p, &particles[p])
	}
	for _, ev := range events {
		f.Events = append(f.Events, NewEventRecord(ev))
	}
	data, err := Encode(f)
	if err != nil {
		return false, fmt.Errorf("%s frame %d: %w", c.system, frame, err)
	}
	if err := c.storage.WriteFrame(c.system, frame, data); err != nil {
		return false, err
	}

	if !c.has(frame) {
		i := sort.SearchInts(c.frames, frame)
		c.frames = append(c.frames, 0)
		copy(c.frames[i+1:], c.frames[i:])
		c.frames[i] = frame
	}
	c.lastExact = frame
	return true, nil
}

// ClearAfter deletes every cached frame after frame. Baked caches are left
// untouched.
func (c *Cache) ClearAfter(frame int) error {
	if c.baked {
		return nil
	}
	if err := c.load(); err != nil {
		return err
	}
	i := sort.SearchInts(c.frames, frame+1)
	for _, f := range c.frames[i:] {
		if err := c.storage.DeleteFrame(c.system, f); err != nil {
			return err
		}
	}
	c.frames = c.frames[:i]
	c.lastExact = min(c.lastExact, frame)
	return nil
}

// Reset deletes every cached frame and clears the baked flag.
func (c *Cache) Reset() error {
	c.baked = false
	if err := c.ClearAfter(math.MinInt); err != nil {
		return err
	}
	c.lastExact = c.opts.StartFrame - 1
	return nil
}
