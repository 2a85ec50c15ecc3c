package engine

import (
	"strconv"
	"strings"
	"time"
)

// EventKind classifies engine events.
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventProgress EventKind = "progress"
	EventFinished EventKind = "finished"
	EventFailed   EventKind = "failed"
)

// Event reports engine activity for one job.
type Event struct {
	Kind    EventKind
	Percent float64
	FPS     float64
	Speed   float64
	OutTime time.Duration
	Err     error
}

// progressParser folds ffmpeg "-progress" key=value lines into events. A
// block ends with a "progress=continue" or "progress=end" line.
type progressParser struct {
	duration float64
	block    Event
}

func newProgressParser(duration float64) *progressParser {
	return &progressParser{duration: duration, block: Event{Kind: EventProgress}}
}

// Feed consumes one line and returns a completed event at block boundaries.
func (p *progressParser) Feed(line string) (Event, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return Event{}, false
	}
	value = strings.TrimSpace(value)
	switch key {
	case "out_time_us", "out_time_ms":
		// out_time_ms is also reported in microseconds.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			p.block.OutTime = time.Duration(us) * time.Microsecond
		}
	case "fps":
		if fps, err := strconv.ParseFloat(value, 64); err == nil {
			p.block.FPS = fps
		}
	case "speed":
		if speed, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
			p.block.Speed = speed
		}
	case "progress":
		ev := p.block
		ev.Percent = percentOf(ev.OutTime, p.duration)
		if value == "end" {
			ev.Percent = 100
		}
		p.block = Event{Kind: EventProgress, OutTime: ev.OutTime}
		return ev, true
	}
	return Event{}, false
}

func percentOf(done time.Duration, total float64) float64 {
	if total <= 0 {
		return 0
	}
	pct := done.Seconds() / total * 100
	return max(0, min(100, pct))
}

// lineTail keeps the most recent lines written to it.
type lineTail struct {
	limit int
	lines []string
}

func newLineTail(limit int) *lineTail {
	if limit <= 0 {
		limit = 1
	}
	return &lineTail{limit: limit}
}

func (t *lineTail) Add(line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	if len(t.lines) == t.limit {
		copy(t.lines, t.lines[1:])
		t.lines = t.lines[:t.limit-1]
	}
	t.lines = append(t.lines, line)
}

func (t *lineTail) Lines() []string {
	return append([]string(nil), t.lines...)
}
