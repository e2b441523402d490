package audiodecoder

import (
	"math"
	"testing"
)

func TestValidRange(t *testing.T) {
	tests := []struct {
		name     string
		start    float64
		duration float64
		want     bool
	}{
		{"zero start to end", 0, ToEnd, true},
		{"positive range", 0.5, 1.0, true},
		{"start past end is still valid", 1e6, 1, true},
		{"negative start", -0.1, 1, false},
		{"zero duration", 0, 0, false},
		{"negative duration other than to-end", 0, -2, false},
		{"nan start", math.NaN(), 1, false},
		{"inf duration", 0, math.Inf(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidRange(tt.start, tt.duration); got != tt.want {
				t.Fatalf("ValidRange(%v, %v) = %v, want %v", tt.start, tt.duration, got, tt.want)
			}
		})
	}
}

func TestProperties_Frames(t *testing.T) {
	p := Properties{SampleRate: 44100, ChannelCount: 2, Duration: 2}
	if got := p.Frames(); got != 88200 {
		t.Fatalf("Frames() = %d, want 88200", got)
	}
}

func TestStatus_Failed(t *testing.T) {
	if OK.Failed() {
		t.Fatal("OK should not fail")
	}
	if !(Status{Code: StatusInvalidData}).Failed() {
		t.Fatal("negative status should fail")
	}
}
