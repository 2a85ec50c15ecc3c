package logging

import (
	"math"
	"testing"
)

type sample struct {
	key     string
	percent float64
	want    bool
}

func TestProgressSamplerSequences(t *testing.T) {
	tests := []struct {
		name  string
		step  float64
		steps []sample
	}{
		{
			name: "five percent buckets",
			step: 5,
			steps: []sample{
				{"short_form", 0, true},
				{"short_form", 3, false},
				{"short_form", 5, true},
				{"short_form", 9.9, false},
				{"short_form", 10, true},
			},
		},
		{
			name: "zero step defaults to five",
			step: 0,
			steps: []sample{
				{"long_form", 1, true},
				{"long_form", 4, false},
				{"long_form", 5, true},
			},
		},
		{
			name: "key change restarts series",
			step: 10,
			steps: []sample{
				{"short_form", 50, true},
				{"long_form", 0, true},
				{"long_form", 10, true},
				{"long_form", 15, false},
			},
		},
		{
			name: "over one hundred clamps",
			step: 5,
			steps: []sample{
				{"short_form", 95, true},
				{"short_form", 100, true},
				{"short_form", 140, false},
			},
		},
		{
			name: "unknown percent logs only on key change",
			step: 5,
			steps: []sample{
				{"hardware", -1, true},
				{"hardware", -1, false},
				{"hardware", math.NaN(), false},
				{"software", math.NaN(), true},
			},
		},
		{
			name: "key whitespace ignored",
			step: 25,
			steps: []sample{
				{" short_form ", 0, true},
				{"short_form", 20, false},
				{"short_form", 25, true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.step)
			for i, step := range tt.steps {
				if got := s.Observe(step.key, step.percent); got != step.want {
					t.Fatalf("step %d Observe(%q, %v) = %v, want %v", i, step.key, step.percent, got, step.want)
				}
			}
		})
	}
}

func TestProgressSamplerResetAndNil(t *testing.T) {
	s := NewProgressSampler(5)
	s.Observe("short_form", 60)
	s.Reset()
	if !s.Observe("short_form", 60) {
		t.Fatal("expected log after reset")
	}

	var none *ProgressSampler
	if !none.Observe("short_form", 1) {
		t.Fatal("nil sampler should log every update")
	}
	none.Reset()
}
