package pointcache

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/psys/components"
)

const testFrameTime = 1.0 / 24

// mover returns a particle travelling along +X at one unit per frame,
// positioned for frame f.
func mover(birth, f float64) components.Particle {
	pa := components.Particle{
		Time: birth, DieTime: birth + 100, Lifetime: 100, Size: 1, StickTo: -1,
		Alive: components.Alive,
	}
	if f < birth {
		pa.Alive = components.Unborn
	}
	pa.State = components.Key{
		Co:   r3.Vec{X: f - birth},
		Vel:  r3.Vec{X: 1 / testFrameTime},
		Rot:  components.IdentityRot,
		Time: f,
	}
	pa.Prev = pa.State
	return pa
}

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	disk, err := NewDiskStorage(t.TempDir())
	if err != nil {
		t.Fatalf("disk storage: %v", err)
	}
	return map[string]Storage{"memory": NewMemoryStorage(), "disk": disk}
}

// ---------- Storage ----------

func TestStorage_RoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, f := range []int{7, 1, 3} {
				if err := s.WriteFrame("rain", f, []byte{byte(f)}); err != nil {
					t.Fatalf("write %d: %v", f, err)
				}
			}
			frames, err := s.Frames("rain")
			if err != nil {
				t.Fatalf("frames: %v", err)
			}
			if len(frames) != 3 || frames[0] != 1 || frames[1] != 3 || frames[2] != 7 {
				t.Errorf("expected [1 3 7], got %v", frames)
			}
			data, err := s.ReadFrame("rain", 3)
			if err != nil || len(data) != 1 || data[0] != 3 {
				t.Errorf("expected frame 3 payload, got %v (%v)", data, err)
			}

			if err := s.DeleteFrame("rain", 3); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := s.ReadFrame("rain", 3); !errors.Is(err, ErrFrameNotFound) {
				t.Errorf("expected ErrFrameNotFound, got %v", err)
			}
			if err := s.DeleteFrame("rain", 3); err != nil {
				t.Errorf("deleting a missing frame should succeed, got %v", err)
			}
			if frames, _ := s.Frames("splash"); len(frames) != 0 {
				t.Errorf("unknown system should have no frames, got %v", frames)
			}
		})
	}
}

func TestDiskStorage_Systems(t *testing.T) {
	d, err := NewDiskStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	d.WriteFrame("splash", 1, nil)
	d.WriteFrame("rain", 1, nil)
	got, err := d.Systems()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "rain" || got[1] != "splash" {
		t.Errorf("expected [rain splash], got %v", got)
	}
}

// ---------- Codec ----------

func TestCodec_RoundTrip(t *testing.T) {
	pa := mover(0, 4)
	pa.Loop = 2
	pa.Set(components.FlagNoDisplay, true)
	pa.State.Rot = quat.Number{Real: math.Sqrt2 / 2, Kmag: math.Sqrt2 / 2}
	pa.State.Ave = r3.Vec{Y: 0.25}

	ev := components.ReactionEvent{
		Kind: components.ReactCollision, Co: r3.Vec{X: 1, Y: 2, Z: 3},
		Vel: r3.Vec{Z: -4}, Nor: r3.Vec{Z: 1}, Time: 3.5, Particle: 0, Source: 1,
	}
	in := &Frame{Records: []Record{NewRecord(0, &pa)}, Events: []EventRecord{NewEventRecord(ev)}}

	data, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Records) != 1 || out.Records[0] != in.Records[0] {
		t.Errorf("expected %+v, got %+v", in.Records, out.Records)
	}
	if len(out.Events) != 1 || out.Events[0].Event() != ev {
		t.Errorf("expected event %+v, got %+v", ev, out.Events)
	}

	var restored components.Particle
	out.Records[0].Apply(&restored)
	if restored.State != pa.State || restored.Prev != pa.State || restored.Loop != 2 ||
		!restored.Has(components.FlagNoDisplay) {
		t.Errorf("restored particle differs: %+v", restored)
	}
}

func TestCodec_NoEvents(t *testing.T) {
	pa := mover(0, 1)
	data, err := Encode(&Frame{Records: []Record{NewRecord(0, &pa)}})
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Records) != 1 || len(out.Events) != 0 {
		t.Errorf("expected 1 record and no events, got %d and %d", len(out.Records), len(out.Events))
	}
}

// ---------- Cache ----------

func newTestCache(s Storage, step int) *Cache {
	return New(s, "rain", Options{StartFrame: 1, Step: step, FrameTime: testFrameTime})
}

func writeMovers(t *testing.T, c *Cache, frames ...int) {
	t.Helper()
	for _, f := range frames {
		ps := []components.Particle{mover(0, float64(f)), mover(2, float64(f))}
		if _, err := c.Write(f, ps, nil, true); err != nil {
			t.Fatalf("write %d: %v", f, err)
		}
	}
}

func TestCache_WriteStep(t *testing.T) {
	c := newTestCache(NewMemoryStorage(), 2)
	ps := []components.Particle{mover(0, 1)}
	for f := 1; f <= 6; f++ {
		wrote, err := c.Write(f, ps, nil, false)
		if err != nil {
			t.Fatal(err)
		}
		if want := (f-1)%2 == 0; wrote != want {
			t.Errorf("frame %d: expected written=%v, got %v", f, want, wrote)
		}
	}
	if wrote, _ := c.Write(6, ps, nil, true); !wrote {
		t.Error("forced write should always store")
	}
	frames, _ := c.Frames()
	if len(frames) != 4 || frames[3] != 6 {
		t.Errorf("expected [1 3 5 6], got %v", frames)
	}
	if c.LastExact() != 6 {
		t.Errorf("expected last exact 6, got %d", c.LastExact())
	}
}

func TestCache_ReadResults(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := newTestCache(s, 2)
			writeMovers(t, c, 1, 3)

			tests := []struct {
				frame float64
				want  ReadResult
				from  int
			}{
				{0, ResultMiss, 0},
				{1, ResultExact, 1},
				{2, ResultInterpolated, 1},
				{2.5, ResultInterpolated, 1},
				{3, ResultExact, 3},
				{7, ResultOld, 3},
			}
			for _, tt := range tests {
				ps := make([]components.Particle, 2)
				info, err := c.Read(tt.frame, ps)
				if err != nil {
					t.Fatalf("frame %f: %v", tt.frame, err)
				}
				if info.Result != tt.want {
					t.Errorf("frame %f: expected %s, got %s", tt.frame, tt.want, info.Result)
				}
				if tt.want != ResultMiss && info.Frame != tt.from {
					t.Errorf("frame %f: expected source frame %d, got %d", tt.frame, tt.from, info.Frame)
				}
			}
		})
	}
}

func TestCache_InterpolatesMotion(t *testing.T) {
	c := newTestCache(NewMemoryStorage(), 2)
	writeMovers(t, c, 1, 3)

	tests := []struct {
		frame     float64
		wantX     float64
		wantAlive components.Lifecycle
	}{
		{2, 2, components.Alive},
		{2.5, 2.5, components.Alive},
	}
	for _, tt := range tests {
		ps := make([]components.Particle, 2)
		if _, err := c.Read(tt.frame, ps); err != nil {
			t.Fatal(err)
		}
		if math.Abs(ps[0].State.Co.X-tt.wantX) > 1e-9 {
			t.Errorf("frame %f: expected x %f, got %f", tt.frame, tt.wantX, ps[0].State.Co.X)
		}
		if math.Abs(ps[0].State.Vel.X-24) > 1e-9 {
			t.Errorf("frame %f: expected velocity 24, got %f", tt.frame, ps[0].State.Vel.X)
		}
		if ps[0].Alive != tt.wantAlive {
			t.Errorf("frame %f: expected %s, got %s", tt.frame, tt.wantAlive, ps[0].Alive)
		}
	}
}

func TestCache_BirthInsideGap(t *testing.T) {
	c := newTestCache(NewMemoryStorage(), 2)
	writeMovers(t, c, 1, 3)

	ps := make([]components.Particle, 2)
	c.Read(1.5, ps)
	if ps[1].Alive != components.Unborn {
		t.Errorf("particle born at 2 should be unborn at 1.5, got %s", ps[1].Alive)
	}

	ps = make([]components.Particle, 2)
	c.Read(2.5, ps)
	if ps[1].Alive != components.Alive {
		t.Errorf("expected alive at 2.5, got %s", ps[1].Alive)
	}
	if math.Abs(ps[1].State.Co.X-0.5) > 1e-9 {
		t.Errorf("expected x 0.5 half a frame after birth, got %f", ps[1].State.Co.X)
	}
}

func TestCache_DeathInsideGap(t *testing.T) {
	c := newTestCache(NewMemoryStorage(), 2)
	a := mover(0, 1)
	a.DieTime = 2
	if _, err := c.Write(1, []components.Particle{a}, nil, true); err != nil {
		t.Fatal(err)
	}
	b := a
	b.Alive = components.Dead
	b.State.Co = r3.Vec{X: 2}
	b.State.Time = 2
	if _, err := c.Write(3, []components.Particle{b}, nil, true); err != nil {
		t.Fatal(err)
	}

	ps := make([]components.Particle, 1)
	c.Read(2.5, ps)
	if ps[0].Alive != components.Dead {
		t.Errorf("expected dead after the death time, got %s", ps[0].Alive)
	}
	if math.Abs(ps[0].State.Co.X-2) > 1e-9 {
		t.Errorf("expected the particle frozen at its death position, got %f", ps[0].State.Co.X)
	}
}

func TestCache_ExactCarriesEvents(t *testing.T) {
	c := newTestCache(NewMemoryStorage(), 1)
	ev := components.ReactionEvent{Kind: components.ReactDeath, Particle: 0, Time: 1, Source: -1}
	if _, err := c.Write(1, []components.Particle{mover(0, 1)}, []components.ReactionEvent{ev}, false); err != nil {
		t.Fatal(err)
	}
	ps := make([]components.Particle, 1)
	info, err := c.Read(1, ps)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Events) != 1 || info.Events[0] != ev {
		t.Errorf("expected the stored event, got %+v", info.Events)
	}
}

func TestCache_ParticleCountMismatch(t *testing.T) {
	c := newTestCache(NewMemoryStorage(), 1)
	writeMovers(t, c, 1)
	_, err := c.Read(1, make([]components.Particle, 3))
	if !errors.Is(err, ErrParticleCount) {
		t.Errorf("expected ErrParticleCount, got %v", err)
	}
}

func TestCache_CorruptIndex(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a, b := mover(1, 1), mover(1, 1)
			for _, f := range []int{1, 2} {
				data, err := Encode(&Frame{Records: []Record{NewRecord(0, &a), NewRecord(7, &b)}})
				if err != nil {
					t.Fatal(err)
				}
				if err := s.WriteFrame("rain", f, data); err != nil {
					t.Fatal(err)
				}
			}
			c := newTestCache(s, 1)

			for _, frame := range []float64{1, 1.5, 4} {
				_, err := c.Read(frame, make([]components.Particle, 2))
				if !errors.Is(err, ErrCorruptFrame) {
					t.Errorf("frame %v: expected ErrCorruptFrame, got %v", frame, err)
				}
			}
		})
	}
}

func TestCache_ClearAfter(t *testing.T) {
	s := NewMemoryStorage()
	c := newTestCache(s, 1)
	writeMovers(t, c, 1, 2, 3, 4)

	if err := c.ClearAfter(2); err != nil {
		t.Fatal(err)
	}
	frames, _ := s.Frames("rain")
	if len(frames) != 2 || frames[1] != 2 {
		t.Errorf("expected [1 2] in storage, got %v", frames)
	}
	if c.LastExact() != 2 {
		t.Errorf("expected last exact 2, got %d", c.LastExact())
	}

	c.SetBaked(true)
	c.ClearAfter(0)
	if frames, _ := c.Frames(); len(frames) != 2 {
		t.Errorf("baked cache should survive ClearAfter, got %v", frames)
	}

	if err := c.Reset(); err != nil {
		t.Fatal(err)
	}
	if frames, _ := s.Frames("rain"); len(frames) != 0 || c.Baked() {
		t.Errorf("reset should empty and unbake the cache, got %v baked=%v", frames, c.Baked())
	}
}

func TestCache_LoadsExistingFrames(t *testing.T) {
	s := NewMemoryStorage()
	writeMovers(t, newTestCache(s, 1), 1, 2)

	c := newTestCache(s, 1)
	ps := make([]components.Particle, 2)
	info, err := c.Read(2, ps)
	if err != nil {
		t.Fatal(err)
	}
	if info.Result != ResultExact || c.LastExact() != 2 {
		t.Errorf("expected an exact read from a reopened cache, got %s (last %d)", info.Result, c.LastExact())
	}
}

// ---------- Hermite ----------

func TestHermite_Endpoints(t *testing.T) {
	k1 := components.Key{Co: r3.Vec{}, Vel: r3.Vec{Y: 10}, Rot: components.IdentityRot}
	k2 := components.Key{Co: r3.Vec{X: 1}, Vel: r3.Vec{X: 10}, Rot: components.IdentityRot}
	tests := []struct {
		t    float64
		want components.Key
	}{
		{0, k1},
		{1, k2},
	}
	for _, tt := range tests {
		got := Hermite(k1, k2, 0, 1, tt.t, 0.1)
		if r3.Norm(r3.Sub(got.Co, tt.want.Co)) > 1e-12 || r3.Norm(r3.Sub(got.Vel, tt.want.Vel)) > 1e-9 {
			t.Errorf("t=%f: expected %v/%v, got %v/%v", tt.t, tt.want.Co, tt.want.Vel, got.Co, got.Vel)
		}
	}
	if got := Hermite(k1, k2, 2, 2, 2, 0.1); got != k2 {
		t.Errorf("zero span should return the later key, got %+v", got)
	}
}

func TestCache_Lookup(t *testing.T) {
	c := newTestCache(NewMemoryStorage(), 1)
	ev := components.ReactionEvent{Kind: components.ReactNear, Particle: 1, Time: 3, Source: 2}
	writeMovers(t, c, 1, 2)
	if _, err := c.Write(5, []components.Particle{mover(0, 5), mover(2, 5)}, []components.ReactionEvent{ev}, true); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		frame  int
		latest int
		ok     bool
	}{
		{0, 0, false},
		{1, 1, true},
		{4, 2, true},
		{9, 5, true},
	}
	for _, tt := range tests {
		got, ok := c.Latest(tt.frame)
		if ok != tt.ok || (ok && got != tt.latest) {
			t.Errorf("Latest(%d): expected %d/%v, got %d/%v", tt.frame, tt.latest, tt.ok, got, ok)
		}
	}
	if !c.Has(2) || c.Has(3) {
		t.Error("Has should report exactly the stored frames")
	}

	evs, err := c.Events(5)
	if err != nil || len(evs) != 1 || evs[0] != ev {
		t.Errorf("expected the frame 5 event, got %v (%v)", evs, err)
	}
	if _, err := c.Events(3); !errors.Is(err, ErrFrameNotFound) {
		t.Errorf("expected ErrFrameNotFound for an unstored frame, got %v", err)
	}
}
