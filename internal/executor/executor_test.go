package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pipcast/internal/backend"
	"pipcast/internal/engine"
	"pipcast/internal/services"
)

// fakeEngine fails jobs per backend and otherwise writes the output file
// unless skipOutput is set.
type fakeEngine struct {
	mu           sync.Mutex
	failHardware bool
	failSoftware bool
	skipOutput   bool
	// startErr fails the job before the engine acknowledges the start.
	startErr error
	// partial writes a truncated output before a failing job returns.
	partial bool
	cancel  context.CancelFunc
	jobs         []engine.Job
}

func (f *fakeEngine) Run(ctx context.Context, job engine.Job, onEvent func(engine.Event)) error {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.mu.Unlock()
	if f.startErr != nil {
		return &engine.RunError{ExitCode: -1, Err: f.startErr}
	}
	onEvent(engine.Event{Kind: engine.EventStarted})
	hardware := job.Encoder.Kind == backend.Hardware
	if f.partial && ((hardware && f.failHardware) || (!hardware && f.failSoftware)) {
		if err := os.WriteFile(job.Output, []byte("truncated mp4"), 0o644); err != nil {
			return err
		}
	}
	if hardware && f.failHardware {
		if f.cancel != nil {
			f.cancel()
			return ctx.Err()
		}
		return &engine.RunError{ExitCode: 1, Tail: []string{"No NVENC capable devices found"}}
	}
	if !hardware && f.failSoftware {
		return &engine.RunError{ExitCode: 1, Tail: []string{"Conversion failed!"}}
	}
	onEvent(engine.Event{Kind: engine.EventProgress, Percent: 50})
	if !f.skipOutput {
		if err := os.WriteFile(job.Output, []byte("mp4"), 0o644); err != nil {
			return err
		}
	}
	onEvent(engine.Event{Kind: engine.EventFinished, Percent: 100})
	return nil
}

func planner(t *testing.T) PlanFunc {
	t.Helper()
	dir := t.TempDir()
	return func(kind backend.Kind) (engine.Job, error) {
		return engine.Job{
			Inputs:      []engine.Input{{Path: "screen.mp4"}, {Path: "face.mp4"}},
			FilterGraph: "graph-" + kind.String(),
			Encoder:     backend.DefaultParams(kind),
			Duration:    10,
			Output:      filepath.Join(dir, "short_form_x.mp4"),
		}, nil
	}
}

type recorder struct {
	transitions []Transition
	progress    []float64
}

func (r *recorder) Transition(t Transition) { r.transitions = append(r.transitions, t) }

func (r *recorder) Progress(_ string, ev engine.Event) {
	if ev.Kind == engine.EventProgress {
		r.progress = append(r.progress, ev.Percent)
	}
}

func (r *recorder) path() []State {
	var out []State
	for i, t := range r.transitions {
		if i == 0 {
			out = append(out, t.From)
		}
		out = append(out, t.To)
	}
	return out
}

func TestRunSoftwareCompletes(t *testing.T) {
	eng := &fakeEngine{}
	rec := &recorder{}
	out := New(eng, nil).Run(context.Background(), Rendition{Name: "short_form", Backend: backend.Software, Plan: planner(t)}, rec)
	if out.State != StateCompleted || out.Err != nil {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Attempts != 1 || out.FellBack || out.Backend != backend.Software {
		t.Fatalf("unexpected attempt accounting %+v", out)
	}
	want := []State{StateIdle, StateSubmitted, StateRunning, StateCompleted}
	if diff := cmp.Diff(want, rec.path()); diff != "" {
		t.Fatalf("state path (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{50}, rec.progress); diff != "" {
		t.Fatalf("progress (-want +got):\n%s", diff)
	}
}

func TestRunHardwareFailureFallsBackOnce(t *testing.T) {
	eng := &fakeEngine{failHardware: true}
	rec := &recorder{}
	out := New(eng, nil).Run(context.Background(), Rendition{Name: "long_form", Backend: backend.Hardware, Plan: planner(t)}, rec)
	if out.State != StateCompleted || out.Err != nil {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if !out.FellBack || out.Attempts != 2 || out.Backend != backend.Software {
		t.Fatalf("expected one software retry, got %+v", out)
	}
	want := []State{
		StateIdle, StateSubmitted, StateRunning, StateFailed,
		StateIdle, StateSubmitted, StateRunning, StateCompleted,
	}
	if diff := cmp.Diff(want, rec.path()); diff != "" {
		t.Fatalf("state path (-want +got):\n%s", diff)
	}
	if len(eng.jobs) != 2 || eng.jobs[0].FilterGraph != "graph-hardware" || eng.jobs[1].FilterGraph != "graph-software" {
		t.Fatalf("expected hardware then software graph, got %+v", eng.jobs)
	}
}

func TestRunEngineThatNeverStartsSkipsRunning(t *testing.T) {
	eng := &fakeEngine{startErr: errors.New(`exec: "ffmpeg": executable file not found in $PATH`)}
	rec := &recorder{}
	out := New(eng, nil).Run(context.Background(), Rendition{Name: "short_form", Backend: backend.Software, Plan: planner(t)}, rec)
	if out.State != StateFailed || !errors.Is(out.Err, services.ErrExecution) {
		t.Fatalf("unexpected outcome %+v", out)
	}
	want := []State{StateIdle, StateSubmitted, StateFailed}
	if diff := cmp.Diff(want, rec.path()); diff != "" {
		t.Fatalf("state path (-want +got):\n%s", diff)
	}
}

func TestRunHardwareThatNeverStartsFallsBack(t *testing.T) {
	eng := &fakeEngine{}
	rec := &recorder{}
	plan := planner(t)
	calls := 0
	startOnce := func(kind backend.Kind) (engine.Job, error) {
		calls++
		if calls == 1 {
			eng.startErr = errors.New("no such device")
		} else {
			eng.startErr = nil
		}
		return plan(kind)
	}
	out := New(eng, nil).Run(context.Background(), Rendition{Name: "long_form", Backend: backend.Hardware, Plan: startOnce}, rec)
	if out.State != StateCompleted || !out.FellBack {
		t.Fatalf("unexpected outcome %+v", out)
	}
	want := []State{
		StateIdle, StateSubmitted, StateFailed,
		StateIdle, StateSubmitted, StateRunning, StateCompleted,
	}
	if diff := cmp.Diff(want, rec.path()); diff != "" {
		t.Fatalf("state path (-want +got):\n%s", diff)
	}
}

func TestRunFailedAttemptsRemovePartialOutput(t *testing.T) {
	tests := []struct {
		name    string
		eng     *fakeEngine
		backend backend.Kind
		state   State
	}{
		{"software failure", &fakeEngine{failSoftware: true, partial: true}, backend.Software, StateFailed},
		{"both backends fail", &fakeEngine{failHardware: true, failSoftware: true, partial: true}, backend.Hardware, StateFailed},
		{"hardware failure then software success", &fakeEngine{failHardware: true, partial: true}, backend.Hardware, StateCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := planner(t)
			job, _ := plan(tt.backend)
			var removedBeforeRetry bool
			rec := ObserverFuncs{OnTransition: func(tr Transition) {
				if tr.To == StateIdle {
					_, err := os.Stat(job.Output)
					removedBeforeRetry = os.IsNotExist(err)
				}
			}}
			out := New(tt.eng, nil).Run(context.Background(), Rendition{Name: "short_form", Backend: tt.backend, Plan: plan}, rec)
			if out.State != tt.state {
				t.Fatalf("state = %s, want %s (%v)", out.State, tt.state, out.Err)
			}
			if tt.backend == backend.Hardware && !removedBeforeRetry {
				t.Fatal("hardware partial output must be removed before the software retry")
			}
			_, err := os.Stat(job.Output)
			if tt.state == StateFailed && !os.IsNotExist(err) {
				t.Fatalf("expected partial output removed, stat err = %v", err)
			}
			if tt.state == StateCompleted && err != nil {
				t.Fatalf("expected completed output kept: %v", err)
			}
		})
	}
}

func TestRunSoftwareFailureIsNotRetried(t *testing.T) {
	eng := &fakeEngine{failSoftware: true}
	out := New(eng, nil).Run(context.Background(), Rendition{Name: "short_form", Backend: backend.Software, Plan: planner(t)}, nil)
	if out.State != StateFailed || !errors.Is(out.Err, services.ErrExecution) {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(eng.jobs) != 1 {
		t.Fatalf("software failure must not retry, got %d runs", len(eng.jobs))
	}
}

func TestRunBothBackendsFail(t *testing.T) {
	eng := &fakeEngine{failHardware: true, failSoftware: true}
	out := New(eng, nil).Run(context.Background(), Rendition{Name: "short_form", Backend: backend.Hardware, Plan: planner(t)}, nil)
	if out.State != StateFailed || out.Attempts != 2 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	var runErr *engine.RunError
	if !errors.As(out.Err, &runErr) || runErr.Tail[0] != "Conversion failed!" {
		t.Fatalf("expected the software failure to surface, got %v", out.Err)
	}
}

func TestRunMissingOutputFails(t *testing.T) {
	eng := &fakeEngine{skipOutput: true}
	rec := &recorder{}
	out := New(eng, nil).Run(context.Background(), Rendition{Name: "short_form", Backend: backend.Software, Plan: planner(t)}, rec)
	if out.State != StateFailed || out.Output != "" {
		t.Fatalf("expected failure without output, got %+v", out)
	}
	if last := rec.transitions[len(rec.transitions)-1]; last.To != StateFailed {
		t.Fatalf("expected final failed transition, got %+v", last)
	}
}

func TestRunCancelledIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng := &fakeEngine{failHardware: true, cancel: cancel}
	out := New(eng, nil).Run(ctx, Rendition{Name: "short_form", Backend: backend.Hardware, Plan: planner(t)}, nil)
	if out.State != StateFailed || out.FellBack {
		t.Fatalf("cancelled rendition must not fall back, got %+v", out)
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", out.Err)
	}
	if len(eng.jobs) != 1 {
		t.Fatalf("expected a single run, got %d", len(eng.jobs))
	}
}

func TestRunAlreadyCancelledNeverReachesEngine(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := &fakeEngine{}
	out := New(eng, nil).Run(ctx, Rendition{Name: "short_form", Backend: backend.Software, Plan: planner(t)}, nil)
	if out.State != StateFailed || len(eng.jobs) != 0 {
		t.Fatalf("expected failure before the engine ran, got %+v (%d runs)", out, len(eng.jobs))
	}
}

func TestRunPlanErrorOnSoftware(t *testing.T) {
	plan := func(backend.Kind) (engine.Job, error) { return engine.Job{}, errors.New("terminal missing") }
	out := New(&fakeEngine{}, nil).Run(context.Background(), Rendition{Name: "short_form", Backend: backend.Software, Plan: plan}, nil)
	if out.State != StateFailed || !errors.Is(out.Err, services.ErrValidation) {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestRunWithoutPlanner(t *testing.T) {
	out := New(&fakeEngine{}, nil).Run(context.Background(), Rendition{Name: "short_form"}, nil)
	if out.State != StateFailed || out.Err == nil {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestStateTerminal(t *testing.T) {
	for state, want := range map[State]bool{
		StateIdle: false, StateSubmitted: false, StateRunning: false, StateCompleted: true, StateFailed: true,
	} {
		if got := state.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v", state, got)
		}
	}
}
