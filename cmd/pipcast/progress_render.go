package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"pipcast/internal/logging"
	"pipcast/internal/progress"
)

// consoleProgress prints render progress for people. On a terminal it keeps
// a single updating line; elsewhere it prints sampled plain lines.
type consoleProgress struct {
	mu       sync.Mutex
	out      io.Writer
	live     bool
	colorize bool
	sampler  *logging.ProgressSampler
	dirty    bool
}

func newConsoleProgress(out io.Writer, live bool) *consoleProgress {
	return &consoleProgress{
		out:      out,
		live:     live,
		colorize: live,
		sampler:  logging.NewProgressSampler(10),
	}
}

func (p *consoleProgress) Emit(ev progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := formatProgressLine(ev)
	switch {
	case ev.Phase.Final():
		p.clear()
		kind := statusOK
		if ev.Phase == progress.PhaseError {
			kind = statusError
		} else if len(ev.Failures) > 0 {
			kind = statusWarn
		}
		fmt.Fprintln(p.out, renderStatusLine("Render", kind, line, p.colorize))
	case p.live:
		fmt.Fprintf(p.out, "\r\x1b[K%s", line)
		p.dirty = true
	case p.sampler.Observe(ev.Rendition, ev.Percent):
		fmt.Fprintln(p.out, line)
	}
}

func (p *consoleProgress) clear() {
	if p.dirty {
		fmt.Fprint(p.out, "\r\x1b[K")
		p.dirty = false
	}
}

func formatProgressLine(ev progress.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%5.1f%%", ev.Percent)
	if ev.Rendition != "" {
		fmt.Fprintf(&b, " %s", displayName(ev.Rendition))
	}
	if msg := strings.TrimSpace(ev.Message); msg != "" {
		fmt.Fprintf(&b, " %s", msg)
	}
	return b.String()
}
