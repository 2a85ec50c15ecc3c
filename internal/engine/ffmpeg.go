package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"pipcast/internal/logging"
)

var commandContext = exec.CommandContext

// DefaultStderrLines is how many stderr lines a failure keeps.
const DefaultStderrLines = 40

// waitDelay bounds how long Wait blocks on pipes after the process is killed.
const waitDelay = 5 * time.Second

// Engine executes a job, reporting events to onEvent.
type Engine interface {
	Run(ctx context.Context, job Job, onEvent func(Event)) error
}

// RunError describes an ffmpeg invocation that did not finish cleanly.
type RunError struct {
	ExitCode int
	Tail     []string
	Err      error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("ffmpeg exited with code %d", e.ExitCode)
	if e.Err != nil && e.ExitCode < 0 {
		msg = "ffmpeg failed: " + e.Err.Error()
	}
	if len(e.Tail) > 0 {
		msg += ": " + e.Tail[len(e.Tail)-1]
	}
	return msg
}

func (e *RunError) Unwrap() error { return e.Err }

// FFmpeg runs jobs with the ffmpeg binary.
type FFmpeg struct {
	Binary      string
	StderrLines int
	Logger      *slog.Logger
}

// NewFFmpeg constructs an engine for binary.
func NewFFmpeg(binary string, stderrLines int, logger *slog.Logger) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if stderrLines <= 0 {
		stderrLines = DefaultStderrLines
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FFmpeg{Binary: binary, StderrLines: stderrLines, Logger: logger}
}

// Run launches ffmpeg for job and blocks until it exits. Cancelling ctx
// kills the process group and returns the context error.
func (f *FFmpeg) Run(ctx context.Context, job Job, onEvent func(Event)) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	logger := f.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	args := job.Args()
	cmd := commandContext(ctx, f.Binary, args...) //nolint:gosec
	configureProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	logger.Debug("launching ffmpeg", logging.String("command", f.Binary+" "+strings.Join(args, " ")))
	if err := cmd.Start(); err != nil {
		runErr := &RunError{ExitCode: -1, Err: err}
		onEvent(Event{Kind: EventFailed, Err: runErr})
		return runErr
	}
	onEvent(Event{Kind: EventStarted})

	tail := newLineTail(f.StderrLines)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanLines(stderr, tail.Add)
	}()

	parser := newProgressParser(job.Duration)
	scanLines(stdout, func(line string) {
		if ev, ok := parser.Feed(line); ok {
			onEvent(ev)
		}
	})
	wg.Wait()

	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		onEvent(Event{Kind: EventFailed, Err: ctxErr})
		return ctxErr
	}
	if waitErr != nil {
		runErr := &RunError{ExitCode: -1, Tail: tail.Lines(), Err: waitErr}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			runErr.ExitCode = exitErr.ExitCode()
		}
		onEvent(Event{Kind: EventFailed, Err: runErr})
		return runErr
	}
	onEvent(Event{Kind: EventFinished, Percent: 100})
	return nil
}

func scanLines(r io.Reader, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	// Drain whatever is left so the child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

var _ Engine = (*FFmpeg)(nil)
