package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"pipcast/internal/backend"
	"pipcast/internal/engine"
	"pipcast/internal/logging"
	"pipcast/internal/services"
)

// State is the lifecycle position of a rendition.
type State string

const (
	StateIdle      State = "idle"
	StateSubmitted State = "submitted"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions follow.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// PlanFunc produces the engine job for a rendition on the given backend.
type PlanFunc func(kind backend.Kind) (engine.Job, error)

// Rendition is one profile to render.
type Rendition struct {
	Name    string
	Backend backend.Kind
	Plan    PlanFunc
}

// Transition is reported each time a rendition changes state.
type Transition struct {
	Rendition string
	From      State
	To        State
	Backend   backend.Kind
	Attempt   int
	Err       error
	At        time.Time
}

// Outcome is the final result of a rendition.
type Outcome struct {
	Rendition string
	State     State
	Backend   backend.Kind
	Output    string
	Attempts  int
	FellBack  bool
	Elapsed   time.Duration
	Err       error
}

// Observer receives transitions and engine progress.
type Observer interface {
	Transition(Transition)
	Progress(rendition string, ev engine.Event)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnTransition func(Transition)
	OnProgress   func(string, engine.Event)
}

func (o ObserverFuncs) Transition(t Transition) {
	if o.OnTransition != nil {
		o.OnTransition(t)
	}
}

func (o ObserverFuncs) Progress(rendition string, ev engine.Event) {
	if o.OnProgress != nil {
		o.OnProgress(rendition, ev)
	}
}

// Executor runs renditions on an engine.
type Executor struct {
	engine engine.Engine
	logger *slog.Logger
	now    func() time.Time
}

// New constructs an Executor.
func New(eng engine.Engine, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{engine: eng, logger: logging.NewComponentLogger(logger, "executor"), now: time.Now}
}

type run struct {
	e        *Executor
	ctx      context.Context
	r        Rendition
	observer Observer
	logger   *slog.Logger
	state    State
	kind     backend.Kind
	attempt  int
}

// Run renders r and returns its outcome. It never retries after ctx is done.
func (e *Executor) Run(ctx context.Context, r Rendition, observer Observer) Outcome {
	if observer == nil {
		observer = ObserverFuncs{}
	}
	start := e.now()
	ctx = services.WithRendition(ctx, r.Name)
	x := &run{
		e:        e,
		ctx:      ctx,
		r:        r,
		observer: observer,
		logger:   logging.WithContext(ctx, e.logger),
		state:    StateIdle,
		kind:     r.Backend,
	}

	out := Outcome{Rendition: r.Name}
	if r.Plan == nil {
		out.State = StateFailed
		out.Err = services.Wrap(services.ErrValidation, "render", "plan", "rendition has no planner", nil)
		return out
	}

	output, err := x.attemptOnce()
	if err != nil && x.kind == backend.Hardware && ctx.Err() == nil {
		logging.WarnWithContext(x.logger, "hardware render failed; retrying on software",
			"backend_fallback",
			logging.Backend(backend.Hardware.String()),
			logging.Error(err),
			logging.Hint("check the GPU driver and ffmpeg nvenc support"),
			logging.Impact("rendition re-encoded on the CPU"),
		)
		x.transition(StateIdle, err)
		x.kind = backend.Software
		out.FellBack = true
		output, err = x.attemptOnce()
	}

	out.State = x.state
	out.Backend = x.kind
	out.Attempts = x.attempt
	out.Elapsed = e.now().Sub(start)
	out.Err = err
	if err == nil {
		out.Output = output
		x.logger.Info("rendition completed",
			logging.EventType("rendition_complete"),
			logging.Backend(x.kind.String()),
			logging.Output(output),
			logging.Duration("elapsed", out.Elapsed),
		)
	} else {
		logging.ErrorWithContext(x.logger, "rendition failed", "rendition_failed",
			logging.Backend(x.kind.String()),
			logging.Int("attempts", x.attempt),
			logging.Error(err),
		)
	}
	return out
}

// attemptOnce walks Idle to a terminal state on the current backend.
func (x *run) attemptOnce() (string, error) {
	x.attempt++
	job, err := x.r.Plan(x.kind)
	if err != nil {
		err = services.Wrap(services.ErrValidation, "render", "plan", fmt.Sprintf("%s graph rejected", x.kind), err)
		x.transition(StateFailed, err)
		return "", err
	}
	x.transition(StateSubmitted, nil)
	if err := x.ctx.Err(); err != nil {
		err = services.Wrap(services.ErrExecution, "render", "submit", "invocation cancelled before start", err)
		x.transition(StateFailed, err)
		return "", err
	}

	sampler := logging.NewProgressSampler(10)
	runErr := x.e.engine.Run(x.ctx, job, func(ev engine.Event) {
		// Running begins when the engine acknowledges the start; a
		// progress record implies it.
		if x.state == StateSubmitted && (ev.Kind == engine.EventStarted || ev.Kind == engine.EventProgress) {
			x.transition(StateRunning, nil)
		}
		if ev.Kind == engine.EventProgress && sampler.Observe(x.kind.String(), ev.Percent) {
			x.logger.Debug("render progress",
				logging.Percent(ev.Percent),
				logging.Float64("speed", ev.Speed),
			)
		}
		x.observer.Progress(x.r.Name, ev)
	})
	if runErr != nil {
		marker := services.ErrExecution
		if errors.Is(runErr, context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		return "", x.fail(job, services.Wrap(marker, "render", "ffmpeg", fmt.Sprintf("%s encode failed", x.kind), runErr))
	}
	if !outputExists(job.Output) {
		return "", x.fail(job, services.Wrap(services.ErrExecution, "render", "verify output",
			"engine exited cleanly but produced no output file", nil))
	}
	if x.state == StateSubmitted {
		x.transition(StateRunning, nil)
	}
	x.transition(StateCompleted, nil)
	return job.Output, nil
}

// fail discards whatever the engine wrote for job and moves to Failed.
func (x *run) fail(job engine.Job, err error) error {
	if job.Output != "" {
		if rmErr := os.Remove(job.Output); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.WarnWithContext(x.logger, "failed to remove partial output", "partial_output_cleanup_failed",
				logging.Output(job.Output),
				logging.Error(services.Wrap(services.ErrCleanup, "render", "discard output", "", rmErr)),
				logging.Hint("delete the file manually"),
				logging.Impact("truncated file left on disk"),
			)
		}
	}
	x.transition(StateFailed, err)
	return err
}

func (x *run) transition(to State, err error) {
	t := Transition{
		Rendition: x.r.Name,
		From:      x.state,
		To:        to,
		Backend:   x.kind,
		Attempt:   x.attempt,
		Err:       err,
		At:        x.e.now(),
	}
	x.state = to
	x.logger.Debug("rendition state changed",
		logging.String("from", string(t.From)),
		logging.String("to", string(t.To)),
		logging.Backend(t.Backend.String()),
	)
	x.observer.Transition(t)
}

func outputExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
