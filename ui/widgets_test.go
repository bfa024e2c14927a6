package ui

import (
	"testing"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/psys/telemetry"
)

func TestWidths(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		width  int32
		want   []int32
	}{
		{"even split", []int{1, 1}, 100, []int32{50, 50}},
		{"rounding to last", []int{1, 1, 1}, 100, []int32{33, 33, 34}},
		{"trailing empty", []int{1, 2, 0}, 10, []int32{3, 7, 0}},
		{"all empty", []int{0, 0}, 10, []int32{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := make([]Segment, len(tt.counts))
			for i, c := range tt.counts {
				segs[i].Count = c
			}
			got := Widths(segs, tt.width)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
					break
				}
			}
		})
	}
}

func TestPopulation(t *testing.T) {
	row := telemetry.FrameStats{Particles: 10, Alive: 4, Unborn: 3, Dead: 2, Killed: 1}
	segs := Population(row, rl.Red)
	sum := 0
	for _, s := range segs {
		sum += s.Count
	}
	if sum != row.Particles {
		t.Errorf("expected segments to cover %d particles, got %d", row.Particles, sum)
	}
	if segs[0].Count != 4 || segs[0].Color != rl.Red {
		t.Errorf("expected alive first in the system color, got %+v", segs[0])
	}
}

func TestSystemForKey(t *testing.T) {
	tests := []struct {
		key  int32
		want int
		ok   bool
	}{
		{rl.KeyOne, 0, true},
		{rl.KeyNine, 8, true},
		{rl.KeyZero, 0, false},
		{rl.KeyC, 0, false},
	}
	for _, tt := range tests {
		i, ok := SystemForKey(tt.key)
		if ok != tt.ok || i != tt.want {
			t.Errorf("key %d: expected (%d, %v), got (%d, %v)", tt.key, tt.want, tt.ok, i, ok)
		}
	}
}
