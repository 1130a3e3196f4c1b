package orientation

import (
	"math"
	"testing"
)

func TestFromAccel(t *testing.T) {
	tests := []struct {
		name        string
		ax, ay, az  float64
		roll, pitch float64
	}{
		{"level", 0, 0, 1, 0, 0},
		{"rolled right", 0, 1, 0, 90, 0},
		{"nose down", 1, 0, 0, 0, -90},
		{"rolled 45", 0, 1, 1, 45, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromAccel(tt.ax, tt.ay, tt.az)
			if math.Abs(got.Roll-tt.roll) > 1e-9 || math.Abs(got.Pitch-tt.pitch) > 1e-9 {
				t.Errorf("FromAccel(%v,%v,%v) = %+v, want roll=%v pitch=%v", tt.ax, tt.ay, tt.az, got, tt.roll, tt.pitch)
			}
		})
	}
}
