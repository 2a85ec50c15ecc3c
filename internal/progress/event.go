package progress

import (
	"log/slog"
	"sync"
	"time"

	"pipcast/internal/logging"
)

// Phase classifies an event.
type Phase string

const (
	PhaseStart    Phase = "start"
	PhaseProgress Phase = "progress"
	PhaseError    Phase = "error"
	PhaseComplete Phase = "complete"
)

// Final reports whether the phase ends the timeline.
func (p Phase) Final() bool {
	return p == PhaseError || p == PhaseComplete
}

// Failure names a rendition that did not complete.
type Failure struct {
	Rendition string `json:"rendition"`
	Class     string `json:"class,omitempty"`
	Error     string `json:"error"`
}

// Event is one progress record.
type Event struct {
	Phase     Phase     `json:"phase"`
	Percent   float64   `json:"percent"`
	Message   string    `json:"message,omitempty"`
	Rendition string    `json:"rendition,omitempty"`
	Outputs   []string  `json:"outputs,omitempty"`
	Failures  []Failure `json:"failures,omitempty"`
	Time      time.Time `json:"time"`
}

// Sink receives events in order.
type Sink interface {
	Emit(Event)
}

// FuncSink adapts a function to Sink.
type FuncSink func(Event)

func (f FuncSink) Emit(ev Event) {
	if f != nil {
		f(ev)
	}
}

// ChanSink delivers events on a channel. Emit blocks until the receiver
// takes the event.
type ChanSink chan<- Event

func (c ChanSink) Emit(ev Event) {
	c <- ev
}

// MultiSink forwards each event to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

// Collector keeps every event for an all-at-once response.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *Collector) Emit(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

// Events returns a copy of the collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// Last returns the most recent event.
func (c *Collector) Last() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return Event{}, false
	}
	return c.events[len(c.events)-1], true
}

// LogSink writes events to a logger, sampling progress into 5% buckets.
type LogSink struct {
	Logger  *slog.Logger
	sampler *logging.ProgressSampler
	once    sync.Once
}

func (l *LogSink) Emit(ev Event) {
	if l == nil || l.Logger == nil {
		return
	}
	l.once.Do(func() { l.sampler = logging.NewProgressSampler(5) })
	attrs := []logging.Attr{
		logging.EventType("progress_"+string(ev.Phase)),
		logging.Percent(ev.Percent),
	}
	if ev.Rendition != "" {
		attrs = append(attrs, logging.Rendition(ev.Rendition))
	}
	switch ev.Phase {
	case PhaseProgress:
		if !l.sampler.Observe(ev.Rendition, ev.Percent) {
			return
		}
		l.Logger.Info(ev.Message, logging.Args(attrs...)...)
	case PhaseError:
		for _, f := range ev.Failures {
			attrs = append(attrs, logging.String("failed_"+f.Rendition, f.Error))
		}
		l.Logger.Error(ev.Message, logging.Args(attrs...)...)
	default:
		if len(ev.Outputs) > 0 {
			attrs = append(attrs, logging.Any("outputs", ev.Outputs))
		}
		l.Logger.Info(ev.Message, logging.Args(attrs...)...)
	}
}
