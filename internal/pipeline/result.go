package pipeline

import (
	"fmt"
	"strings"
	"time"

	"pipcast/internal/geometry"
	"pipcast/internal/services"
)

// Rendition is the outcome of one profile.
type Rendition struct {
	Profile  geometry.Name `json:"profile"`
	File     string        `json:"file,omitempty"`
	Path     string        `json:"-"`
	Backend  string        `json:"backend,omitempty"`
	FellBack bool          `json:"fell_back,omitempty"`
	Attempts int           `json:"attempts,omitempty"`
	Elapsed  time.Duration `json:"elapsed_ns,omitempty"`
	Class    string        `json:"class,omitempty"`
	Error    string        `json:"error,omitempty"`

	err error
}

// Err returns the failure cause, nil for a completed rendition.
func (r Rendition) Err() error {
	return r.err
}

// Result summarizes an invocation.
type Result struct {
	InvocationID     string      `json:"invocation_id"`
	Duration         float64     `json:"duration_seconds"`
	DurationFallback []string    `json:"duration_fallback,omitempty"`
	Backend          string      `json:"backend,omitempty"`
	BackendReason    string      `json:"backend_reason,omitempty"`
	Outputs          []Rendition `json:"outputs"`
	Failures         []Rendition `json:"failures,omitempty"`
}

// OutputFiles lists the produced file names in profile order.
func (r Result) OutputFiles() []string {
	files := make([]string, 0, len(r.Outputs))
	for _, out := range r.Outputs {
		files = append(files, out.File)
	}
	return files
}

// Err summarizes failed renditions, nil when every rendition completed.
func (r Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	names := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		names[i] = string(f.Profile)
	}
	msg := fmt.Sprintf("%d of %d renditions failed (%s)",
		len(r.Failures), len(r.Failures)+len(r.Outputs), strings.Join(names, ", "))
	return services.Wrap(services.ErrExecution, "render", "", msg, r.Failures[0].err)
}
