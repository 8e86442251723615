package story

import (
	"math"
	"testing"
)

func TestCalculateTotalSegments(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		want     int
	}{
		{"zero", 0, 1},
		{"negative", -30, 1},
		{"nan", math.NaN(), 1},
		{"one second", 1, 1},
		{"exactly one unit", 180, 1},
		{"just over one unit", 181, 2},
		{"half hour", 1800, 10},
		{"one hour", 3600, 20},
		{"at cap", 10800, 60},
		{"far beyond cap", 86400, 60},
		{"infinite", math.Inf(1), 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateTotalSegments(tt.duration); got != tt.want {
				t.Errorf("CalculateTotalSegments(%v) = %d, want %d", tt.duration, got, tt.want)
			}
		})
	}
}

func TestCalculateTotalSegments_Monotonic(t *testing.T) {
	prev := CalculateTotalSegments(0)
	for d := 0.0; d <= 12000; d += 37 {
		got := CalculateTotalSegments(d)
		if got < prev {
			t.Fatalf("segments decreased at %vs: %d < %d", d, got, prev)
		}
		if got < 1 {
			t.Fatalf("segments below one at %vs", d)
		}
		prev = got
	}
}
