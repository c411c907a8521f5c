package counting

import (
	"math"
	"testing"
)

func TestConfidence(t *testing.T) {
	tests := []struct {
		name                        string
		total, artifacts, overlapped int
		want                        float64
	}{
		{"zero total", 0, 0, 0, 0},
		{"zero total with artifacts", 0, 5, 0, 0},
		{"clean count", 10, 0, 0, 1},
		{"artifacts only", 4, 1, 0, 0.9},
		{"overlaps only", 10, 0, 2, 0.94},
		{"both penalties", 4, 1, 2, 0.9 * 0.85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.total, tt.artifacts, tt.overlapped)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfidence_Bounds(t *testing.T) {
	// Sweep a grid of counts; the score must stay in [0, 1] and be zero
	// exactly when the total is zero.
	for total := 0; total <= 30; total++ {
		for artifacts := 0; artifacts <= 30; artifacts += 3 {
			for overlapped := 0; overlapped <= total; overlapped += 3 {
				got := Confidence(total, artifacts, overlapped)
				if got < 0 || got > 1 {
					t.Fatalf("Confidence(%d,%d,%d) = %v out of [0,1]",
						total, artifacts, overlapped, got)
				}
				if (got == 0) != (total == 0) {
					t.Fatalf("Confidence(%d,%d,%d) = %v: zero iff total is zero violated",
						total, artifacts, overlapped, got)
				}
			}
		}
	}
}
