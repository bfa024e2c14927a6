// Package telemetry provides frame statistics, performance timing, CSV output
// and particle snapshots.
package telemetry

import (
	"log/slog"
	"math"
	"sort"
)

// FrameStats holds the counters of one particle system after a frame
// request.
type FrameStats struct {
	Frame  int    `csv:"frame"`
	System string `csv:"system"`

	// Population at the frame
	Particles int `csv:"particles"`
	Unborn    int `csv:"unborn"`
	Alive     int `csv:"alive"`
	Dead      int `csv:"dead"`
	Killed    int `csv:"killed"`
	Unexist   int `csv:"unexist"`
	Children  int `csv:"children"`

	// Events while reaching the frame
	Births     int `csv:"births"`
	Deaths     int `csv:"deaths"`
	Collisions int `csv:"collisions"`
	Exhausted  int `csv:"exhausted"` // Collision passes cut at the iteration bound
	Dropped    int `csv:"dropped"`   // Reaction events with no particle left
	Reactions  int `csv:"reactions"`

	CacheResult string `csv:"cache_result"`
	Simulated   bool   `csv:"simulated"`

	// Speed distribution of alive particles, units per second
	SpeedMean float64 `csv:"speed_mean"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDistribution calculates mean and percentiles of values.
func ComputeDistribution(values []float64) (mean, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, p10, p50, p90
}

// ComputeSpread returns the mean and standard deviation of values.
func ComputeSpread(values []float64) (mean, std float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	var sqDiffSum float64
	for _, v := range values {
		d := v - mean
		sqDiffSum += d * d
	}
	return mean, math.Sqrt(sqDiffSum / float64(n))
}

// SetSpeeds fills the speed distribution from the speeds of alive particles.
func (s *FrameStats) SetSpeeds(speeds []float64) {
	s.SpeedMean, s.SpeedP10, s.SpeedP50, s.SpeedP90 = ComputeDistribution(speeds)
}

// LogValue implements slog.LogValuer for structured logging.
func (s FrameStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("frame", s.Frame),
		slog.String("system", s.System),
		slog.Int("particles", s.Particles),
		slog.Int("unborn", s.Unborn),
		slog.Int("alive", s.Alive),
		slog.Int("dead", s.Dead),
		slog.Int("killed", s.Killed),
		slog.Int("unexist", s.Unexist),
		slog.Int("children", s.Children),
		slog.Int("births", s.Births),
		slog.Int("deaths", s.Deaths),
		slog.Int("collisions", s.Collisions),
		slog.Int("exhausted", s.Exhausted),
		slog.Int("dropped", s.Dropped),
		slog.Int("reactions", s.Reactions),
		slog.String("cache_result", s.CacheResult),
		slog.Bool("simulated", s.Simulated),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_p50", s.SpeedP50),
	)
}

// LogStats logs the frame stats using slog.
func (s FrameStats) LogStats() {
	slog.Info("stats",
		"frame", s.Frame,
		"system", s.System,
		"alive", s.Alive,
		"unborn", s.Unborn,
		"dead", s.Dead,
		"births", s.Births,
		"deaths", s.Deaths,
		"collisions", s.Collisions,
		"reactions", s.Reactions,
		"cache_result", s.CacheResult,
		"speed_p10", s.SpeedP10,
		"speed_p50", s.SpeedP50,
		"speed_p90", s.SpeedP90,
	)
}
