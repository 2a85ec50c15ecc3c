package logging

import (
	"math"
	"strings"
)

// ProgressSampler thins a stream of percent updates down to one line per
// bucket. A change of key (rendition, backend) starts a fresh series.
type ProgressSampler struct {
	step float64
	key  string
	last int
}

// NewProgressSampler returns a sampler that emits once per step percent;
// a non-positive step means 5.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 5
	}
	return &ProgressSampler{step: step, last: -1}
}

// Observe records percent for key and reports whether it should be logged.
// Negative or NaN percent only counts when key changes. A nil sampler logs
// everything.
func (s *ProgressSampler) Observe(key string, percent float64) bool {
	if s == nil {
		return true
	}
	key = strings.TrimSpace(key)
	fresh := key != "" && key != s.key
	if fresh {
		s.key = key
		s.last = -1
	}
	if percent < 0 || math.IsNaN(percent) {
		return fresh
	}
	bucket := int(math.Min(percent, 100) / s.step)
	if bucket <= s.last {
		return fresh
	}
	s.last = bucket
	return true
}

// Reset forgets the current key and bucket.
func (s *ProgressSampler) Reset() {
	if s != nil {
		s.key, s.last = "", -1
	}
}
