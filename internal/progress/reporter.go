package progress

import (
	"fmt"
	"sync"
	"time"
)

// Band anchors on the 0-100 timeline.
const (
	PercentStaging    = 5.0
	PercentStaged     = 10.0
	PercentRenderFrom = 15.0
	PercentRenderTo   = 95.0
	PercentCleanup    = 98.0
	PercentComplete   = 100.0
)

// Reporter turns pipeline milestones into a monotonic event stream. It is
// safe for concurrent use; events after the final record are dropped.
type Reporter struct {
	mu         sync.Mutex
	sink       Sink
	renditions int
	current    int
	percent    float64
	started    bool
	done       bool
	now        func() time.Time
}

// NewReporter reports to sink for an invocation rendering n renditions.
func NewReporter(sink Sink, n int) *Reporter {
	if sink == nil {
		sink = FuncSink(nil)
	}
	return &Reporter{sink: sink, renditions: max(n, 1), current: -1, now: time.Now}
}

// Percent returns the last reported percentage.
func (r *Reporter) Percent() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.percent
}

// Done reports whether the final record was emitted.
func (r *Reporter) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Start emits the opening record.
func (r *Reporter) Start(message string) {
	r.emit(Event{Phase: PhaseStart, Message: message}, 0)
}

// Staging marks the start of input staging.
func (r *Reporter) Staging() {
	r.emit(Event{Phase: PhaseProgress, Message: "staging inputs"}, PercentStaging)
}

// Staged marks inputs as staged and probed.
func (r *Reporter) Staged(duration float64) {
	r.emit(Event{Phase: PhaseProgress, Message: fmt.Sprintf("inputs staged, rendering %.2fs", duration)}, PercentStaged)
}

// BeginRendition moves the timeline to the start of rendition index.
func (r *Reporter) BeginRendition(index int, name string) {
	r.mu.Lock()
	r.current = index
	from, _ := r.band(index)
	r.mu.Unlock()
	r.emit(Event{Phase: PhaseProgress, Rendition: name, Message: "rendering " + name}, from)
}

// RenditionProgress maps a rendition's own 0-100 progress into its band.
func (r *Reporter) RenditionProgress(name string, percent float64) {
	r.mu.Lock()
	from, to := r.band(r.current)
	r.mu.Unlock()
	percent = max(0, min(100, percent))
	r.emit(Event{Phase: PhaseProgress, Rendition: name, Message: "rendering " + name}, from+(to-from)*percent/100)
}

// EndRendition moves the timeline to the end of the rendition's band.
func (r *Reporter) EndRendition(name string, ok bool) {
	r.mu.Lock()
	_, to := r.band(r.current)
	r.mu.Unlock()
	message := name + " rendered"
	if !ok {
		message = name + " failed"
	}
	r.emit(Event{Phase: PhaseProgress, Rendition: name, Message: message}, to)
}

// Cleanup marks workspace removal.
func (r *Reporter) Cleanup() {
	r.emit(Event{Phase: PhaseProgress, Message: "cleaning up"}, PercentCleanup)
}

// Complete emits the final success record.
func (r *Reporter) Complete(outputs []string) {
	r.emit(Event{Phase: PhaseComplete, Message: "complete", Outputs: append([]string(nil), outputs...)}, PercentComplete)
}

// Fail emits the final error record. Outputs lists renditions that did
// complete before the failure.
func (r *Reporter) Fail(message string, failures []Failure, outputs []string) {
	r.emit(Event{
		Phase:    PhaseError,
		Message:  message,
		Failures: append([]Failure(nil), failures...),
		Outputs:  append([]string(nil), outputs...),
	}, -1)
}

// band returns the timeline slice owned by rendition index. Callers hold mu.
func (r *Reporter) band(index int) (float64, float64) {
	if index < 0 {
		return PercentRenderFrom, PercentRenderFrom
	}
	index = min(index, r.renditions-1)
	width := (PercentRenderTo - PercentRenderFrom) / float64(r.renditions)
	from := PercentRenderFrom + width*float64(index)
	return from, from + width
}

// emit stamps and forwards ev. A negative percent keeps the current value.
func (r *Reporter) emit(ev Event, percent float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	if ev.Phase == PhaseStart {
		if r.started {
			return
		}
	} else if !r.started {
		r.started = true
		r.sink.Emit(Event{Phase: PhaseStart, Message: "starting", Time: r.now()})
	}
	r.started = true
	if percent > r.percent {
		r.percent = percent
	}
	ev.Percent = r.percent
	ev.Time = r.now()
	if ev.Phase.Final() {
		r.done = true
	}
	// Sinks run under the lock so records are delivered in order.
	r.sink.Emit(ev)
}
