package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"pipcast/internal/logging"
	"pipcast/internal/pipeline"
	"pipcast/internal/progress"
	"pipcast/internal/services"
)

// subscriberBuffer bounds the events queued for one subscriber. A subscriber
// that falls further behind is disconnected and must re-read the snapshot.
const subscriberBuffer = 256

// ErrClosed is returned once the service stopped accepting jobs.
var ErrClosed = errors.New("job service closed")

// Renderer runs one pipeline invocation.
type Renderer interface {
	Run(ctx context.Context, req pipeline.Request, sink progress.Sink) (pipeline.Result, error)
}

// JobService runs renders with bounded concurrency and keeps their timelines.
type JobService struct {
	renderer Renderer
	logger   *slog.Logger
	sem      *semaphore.Weighted
	limit    int
	history  int
	newID    func() string
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	jobs   map[string]*job
	order  []string
	active int
	closed bool

	onFinish func(Job)
}

type job struct {
	id        string
	status    JobStatus
	createdAt time.Time
	updatedAt time.Time
	events    []progress.Event
	result    *RenderResult
	err       string
	subs      map[chan progress.Event]struct{}
}

// NewJobService builds a service allowing maxConcurrent simultaneous renders
// and retaining up to history finished jobs.
func NewJobService(renderer Renderer, logger *slog.Logger, maxConcurrent, history int) *JobService {
	if logger == nil {
		logger = logging.NewNop()
	}
	maxConcurrent = max(maxConcurrent, 1)
	ctx, cancel := context.WithCancel(context.Background())
	return &JobService{
		renderer: renderer,
		logger:   logger.With(logging.String("component", "jobs")),
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		limit:    maxConcurrent,
		history:  max(history, 1),
		newID:    uuid.NewString,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]*job),
	}
}

// MaxConcurrent returns the render concurrency limit.
func (s *JobService) MaxConcurrent() int {
	return s.limit
}

// Active returns the number of renders holding a slot.
func (s *JobService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Render runs a blocking render once a slot is free.
func (s *JobService) Render(ctx context.Context, req pipeline.Request, sink progress.Sink) (pipeline.Result, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return pipeline.Result{}, err
	}
	defer release()
	return s.renderer.Run(ctx, req, sink)
}

func (s *JobService) acquire(ctx context.Context) (func(), error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, services.Wrap(services.ErrTimeout, "jobs", "acquire", "render slot not available", err)
	}
	s.mu.Lock()
	s.active++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
		s.sem.Release(1)
	}, nil
}

// Submit queues an asynchronous render. release, when non-nil, runs after
// the render finished and is the place to drop spooled uploads.
func (s *JobService) Submit(req pipeline.Request, release func()) (Job, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if release != nil {
			release()
		}
		return Job{}, ErrClosed
	}
	now := s.now()
	j := &job{
		id:        s.newID(),
		status:    JobQueued,
		createdAt: now,
		updatedAt: now,
		subs:      make(map[chan progress.Event]struct{}),
	}
	s.jobs[j.id] = j
	s.order = append(s.order, j.id)
	s.trimLocked()
	snapshot := j.snapshot()
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(j, req, release)
	return snapshot, nil
}

func (s *JobService) run(j *job, req pipeline.Request, release func()) {
	defer s.wg.Done()
	if release != nil {
		defer release()
	}
	logger := s.logger.With(logging.String("job_id", j.id))

	slot, err := s.acquire(s.ctx)
	if err != nil {
		s.notify(s.finish(j, nil, err, true))
		return
	}
	defer slot()

	s.setStatus(j, JobRunning)
	logger.Debug("job started")
	result, err := s.renderer.Run(s.ctx, req, progress.FuncSink(func(ev progress.Event) {
		s.record(j, ev)
	}))
	canceled := s.ctx.Err() != nil
	final := s.finish(j, &result, err, canceled)
	if err != nil {
		logger.Debug("job failed", logging.Error(err))
	} else {
		logger.Debug("job finished", logging.Int("outputs", len(result.Outputs)))
	}
	s.notify(final)
}

// OnFinish registers fn to run on the job goroutine after each submitted
// job reaches a final status.
func (s *JobService) OnFinish(fn func(Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFinish = fn
}

func (s *JobService) notify(final Job) {
	s.mu.Lock()
	fn := s.onFinish
	s.mu.Unlock()
	if fn != nil {
		fn(final)
	}
}

func (s *JobService) setStatus(j *job, status JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.status = status
	j.updatedAt = s.now()
}

func (s *JobService) record(j *job, ev progress.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.events = append(j.events, ev)
	j.updatedAt = s.now()
	for ch := range j.subs {
		select {
		case ch <- ev:
		default:
			delete(j.subs, ch)
			close(ch)
		}
	}
}

func (s *JobService) finish(j *job, result *pipeline.Result, err error, canceled bool) Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var r pipeline.Result
	if result != nil {
		r = *result
		converted := FromResult(r)
		j.result = &converted
	}
	j.status = jobStatusFor(r, err, canceled)
	switch {
	case err != nil:
		j.err = err.Error()
	case r.Err() != nil:
		j.err = r.Err().Error()
	}
	j.updatedAt = s.now()
	for ch := range j.subs {
		close(ch)
	}
	j.subs = nil
	snapshot := j.snapshot()
	s.trimLocked()
	return snapshot
}

// trimLocked drops the oldest finished jobs beyond the history limit.
func (s *JobService) trimLocked() {
	finished := 0
	for _, id := range s.order {
		if s.jobs[id].status.Finished() {
			finished++
		}
	}
	if finished <= s.history {
		return
	}
	drop := finished - s.history
	kept := s.order[:0]
	for _, id := range s.order {
		if drop > 0 && s.jobs[id].status.Finished() {
			delete(s.jobs, id)
			drop--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// Get returns a job snapshot.
func (s *JobService) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.snapshot(), true
}

// List returns retained jobs, newest first.
func (s *JobService) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.jobs[s.order[i]].snapshot())
	}
	return out
}

// Counts tallies retained jobs by status.
func (s *JobService) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, id := range s.order {
		counts[string(s.jobs[id].status)]++
	}
	return counts
}

// Subscribe returns the events recorded so far and a channel carrying later
// ones. The channel is closed when the job finishes or the subscriber falls
// behind; cancel detaches early. A nil channel means the job already finished.
func (s *JobService) Subscribe(id string) (past []progress.Event, events <-chan progress.Event, cancel func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, found := s.jobs[id]
	if !found {
		return nil, nil, func() {}, false
	}
	past = append([]progress.Event(nil), j.events...)
	if j.status.Finished() {
		return past, nil, func() {}, true
	}
	ch := make(chan progress.Event, subscriberBuffer)
	j.subs[ch] = struct{}{}
	cancel = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, live := j.subs[ch]; live {
			delete(j.subs, ch)
			close(ch)
		}
	}
	return past, ch, cancel, true
}

// Close stops accepting jobs, cancels running renders, and waits for them
// to unwind or ctx to expire.
func (s *JobService) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *job) snapshot() Job {
	out := Job{
		ID:        j.id,
		Status:    j.status,
		CreatedAt: formatTime(j.createdAt),
		UpdatedAt: formatTime(j.updatedAt),
		Result:    j.result,
		Error:     j.err,
	}
	if n := len(j.events); n > 0 {
		last := j.events[n-1]
		out.Progress = &last
	}
	return out
}
