package duration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"pipcast/internal/logging"
	"pipcast/internal/media/ffprobe"
	"pipcast/internal/services"
)

const (
	// DefaultFallbackSeconds substitutes for an input that cannot be probed.
	DefaultFallbackSeconds = 60.0
	// DefaultCeilingSeconds caps every rendition.
	DefaultCeilingSeconds = 3600.0
)

// Kind distinguishes a measured duration from a substituted one.
type Kind int

const (
	Probed Kind = iota
	Fallback
)

func (k Kind) String() string {
	if k == Fallback {
		return "fallback"
	}
	return "probed"
}

// Outcome is the duration attributed to one input.
type Outcome struct {
	Path    string
	Kind    Kind
	Seconds float64
	// Err explains a Fallback outcome.
	Err error
}

// Reconciliation is the result of reconciling every input.
type Reconciliation struct {
	Seconds  float64
	Outcomes []Outcome
}

// Duration returns Seconds as a time.Duration.
func (r Reconciliation) Duration() time.Duration {
	return time.Duration(r.Seconds * float64(time.Second))
}

// Prober measures one input.
type Prober interface {
	Probe(ctx context.Context, path string) (float64, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, path string) (float64, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, path string) (float64, error) {
	return f(ctx, path)
}

// FFprobe measures inputs with the ffprobe binary.
type FFprobe struct {
	Binary  string
	Timeout time.Duration
}

// Probe returns the container duration reported by ffprobe.
func (p FFprobe) Probe(ctx context.Context, path string) (float64, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	result, err := ffprobe.Inspect(ctx, p.Binary, path)
	if err != nil {
		return 0, err
	}
	return result.DurationSeconds(), nil
}

// Reconciler derives the output duration.
type Reconciler struct {
	prober   Prober
	fallback float64
	ceiling  float64
	logger   *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithFallback overrides the substitute duration for unprobeable inputs.
func WithFallback(seconds float64) Option {
	return func(r *Reconciler) {
		if seconds > 0 && !math.IsInf(seconds, 0) {
			r.fallback = seconds
		}
	}
}

// WithCeiling lowers the absolute duration cap; values above
// DefaultCeilingSeconds are ignored.
func WithCeiling(seconds float64) Option {
	return func(r *Reconciler) {
		if seconds > 0 && seconds <= DefaultCeilingSeconds {
			r.ceiling = seconds
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logging.NewComponentLogger(logger, "duration")
	}
}

// NewReconciler constructs a reconciler around prober.
func NewReconciler(prober Prober, opts ...Option) *Reconciler {
	r := &Reconciler{
		prober:   prober,
		fallback: DefaultFallbackSeconds,
		ceiling:  DefaultCeilingSeconds,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Probe measures one input, substituting the fallback on any failure,
// non-positive value, or non-finite value.
func (r *Reconciler) Probe(ctx context.Context, path string) Outcome {
	var seconds float64
	err := ErrNoProber
	if r.prober != nil {
		seconds, err = r.prober.Probe(ctx, path)
	}
	switch {
	case err != nil:
	case math.IsNaN(seconds) || math.IsInf(seconds, 0):
		err = fmt.Errorf("non-finite duration %v", seconds)
	case seconds <= 0:
		err = fmt.Errorf("non-positive duration %v", seconds)
	default:
		return Outcome{Path: path, Kind: Probed, Seconds: seconds}
	}
	return Outcome{
		Path:    path,
		Kind:    Fallback,
		Seconds: r.fallback,
		Err:     services.Wrap(services.ErrProbe, "duration", "probe", path, err),
	}
}

// Reconcile probes every path and returns min(outcomes..., ceiling). The
// result is always positive and finite. At least one path is required.
func (r *Reconciler) Reconcile(ctx context.Context, paths ...string) (Reconciliation, error) {
	if len(paths) == 0 {
		return Reconciliation{}, services.Wrap(services.ErrValidation, "duration", "reconcile", "no time-based inputs", nil)
	}
	rec := Reconciliation{Seconds: r.ceiling, Outcomes: make([]Outcome, 0, len(paths))}
	for _, path := range paths {
		outcome := r.Probe(ctx, path)
		if outcome.Kind == Fallback {
			logging.WarnWithContext(logging.WithContext(ctx, r.logger), "duration probe failed; using fallback", "duration_fallback",
				logging.String("path", path),
				logging.Float64("fallback_seconds", outcome.Seconds),
				logging.Error(outcome.Err),
				logging.Impact("output may be cut to the fallback duration"),
				logging.Hint("verify the upload is a complete media file"),
			)
		}
		rec.Outcomes = append(rec.Outcomes, outcome)
		rec.Seconds = math.Min(rec.Seconds, outcome.Seconds)
	}
	r.logger.Debug("duration reconciled",
		logging.Float64("seconds", rec.Seconds),
		logging.Int("inputs", len(paths)),
	)
	return rec, nil
}

// AllFallback reports whether no input could be probed.
func (r Reconciliation) AllFallback() bool {
	for _, o := range r.Outcomes {
		if o.Kind == Probed {
			return false
		}
	}
	return len(r.Outcomes) > 0
}

// ErrNoProber is returned when a reconciler is used without a prober.
var ErrNoProber = errors.New("duration: no prober configured")
