package systems

import (
	"golang.org/x/exp/rand"
)

// FrandCount is the size of the per-system random table.
const FrandCount = 1024

// Frand offsets of the per-particle draws made at birth. Keeping every
// consumer on a fixed offset makes a particle's birth data independent of
// batching and worker count.
const (
	FrandSize     = 1
	FrandVel      = 10 // 10..12
	FrandAve      = 13 // 13..15
	FrandRot      = 16 // 16..19
	FrandPhase    = 20
	FrandLife     = 21
	FrandDisplay  = 24
	FrandChild    = 30 // 30..32
	FrandPermeate = 40
)

// Seed derives a stream seed from a base seed, a particle index and a salt
// (task id, frame bits or a purpose constant). It is a pure function.
func Seed(base uint64, particle int, salt uint64) uint64 {
	x := base ^ 0x9e3779b97f4a7c15
	x = splitmix(x + uint64(particle)*0xbf58476d1ce4e5b9)
	x = splitmix(x ^ salt)
	return x
}

func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// Stream is a deterministic random sequence. A Stream is not safe for
// concurrent use; each worker owns one and reseeds it per particle.
type Stream struct {
	rng *rand.Rand
}

// NewStream returns a stream seeded with seed.
func NewStream(seed uint64) *Stream {
	return &Stream{rng: rand.New(rand.NewSource(seed))}
}

// Reseed restarts the stream from seed.
func (s *Stream) Reseed(seed uint64) { s.rng.Seed(seed) }

// Float64 returns a value in [0,1).
func (s *Stream) Float64() float64 { return s.rng.Float64() }

// Signed returns a value in [-1,1).
func (s *Stream) Signed() float64 { return 2*s.rng.Float64() - 1 }

// Intn returns a value in [0,n).
func (s *Stream) Intn(n int) int { return s.rng.Intn(n) }

// Frand is a fixed table of random values looked up by particle index plus a
// purpose offset.
type Frand struct {
	table [FrandCount]float64
	seed  int
}

// NewFrand fills a table from seed. The system seed shifts every lookup so
// systems sharing a base seed still differ.
func NewFrand(base uint64, systemSeed int) *Frand {
	f := &Frand{seed: systemSeed}
	s := NewStream(Seed(base, 0, 0x6672616e64))
	for i := range f.table {
		f.table[i] = s.Float64()
	}
	return f
}

// At returns the value for particle p at the given offset.
func (f *Frand) At(p, offset int) float64 {
	i := (f.seed + p + offset) % FrandCount
	if i < 0 {
		i += FrandCount
	}
	return f.table[i]
}
