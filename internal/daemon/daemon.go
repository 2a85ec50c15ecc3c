package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"pipcast/internal/api"
	"pipcast/internal/config"
	"pipcast/internal/logging"
	"pipcast/internal/metrics"
	"pipcast/internal/notifications"
	"pipcast/internal/preflight"
	"pipcast/internal/staging"
)

const maintenanceInterval = time.Hour

// Daemon owns the job service and HTTP server and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	jobs    *api.JobService
	metrics  *metrics.Metrics
	notifier notifications.Service
	server   *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	LockFilePath  string
	ActiveRenders int
	MaxConcurrent int
	Jobs          map[string]int
	Checks        []preflight.Result
}

// New constructs a daemon around renderer. A nil m gets a fresh registry.
func New(cfg *config.Config, logger *slog.Logger, renderer api.Renderer, m *metrics.Metrics) (*Daemon, error) {
	if cfg == nil || renderer == nil {
		return nil, errors.New("daemon requires config and renderer")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "pipcastd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		jobs:     api.NewJobService(renderer, logger, cfg.Server.MaxConcurrent, cfg.Server.JobHistory),
		metrics:  m,
		notifier: notifications.NewService(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.server = newAPIServer(cfg, d, logger)
	d.jobs.OnFinish(d.announce)
	return d, nil
}

// announce publishes a finished job. Jobs canceled by shutdown are skipped.
func (d *Daemon) announce(job api.Job) {
	notice := notifications.Notice{JobID: job.ID, Error: job.Error}
	switch job.Status {
	case api.JobCompleted:
		notice.Event = notifications.EventRenderCompleted
	case api.JobPartial:
		notice.Event = notifications.EventRenderPartial
	case api.JobFailed:
		notice.Event = notifications.EventRenderFailed
	default:
		return
	}
	if job.Result != nil {
		for _, out := range job.Result.Outputs {
			notice.Outputs = append(notice.Outputs, out.File)
		}
		for _, f := range job.Result.Failures {
			notice.Failed = append(notice.Failed, f.Profile)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.NotificationTimeout())
	defer cancel()
	if err := d.notifier.Publish(ctx, notice); err != nil {
		logging.WarnWithContext(d.logger, "job notification failed", "notification_failed",
			logging.String("job_id", job.ID),
			logging.Error(err),
			logging.Impact("operators are not alerted about this job"),
		)
	}
}

// Start acquires the daemon lock, runs maintenance, and begins serving.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another pipcast daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.maintain(runCtx)
	if err := d.server.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(maintenanceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				d.maintain(runCtx)
			}
		}
	}()

	d.running.Store(true)
	d.logger.Info("pipcast daemon started",
		logging.String("lock", d.lockPath),
		logging.EventType("daemon_start"),
	)
	return nil
}

// maintain sweeps abandoned workspaces and prunes expired outputs.
func (d *Daemon) maintain(ctx context.Context) {
	result := staging.CleanStale(ctx, d.cfg.Paths.WorkDir, d.cfg.WorkspaceMaxAge(), d.logger)
	if len(result.Removed) > 0 {
		d.logger.Info("stale workspaces swept", logging.Int("removed", len(result.Removed)))
	}
	logging.PruneOlderThan(d.logger, d.cfg.Server.OutputRetentionDays,
		logging.RetentionTarget{Dir: d.cfg.Paths.OutputDir, Pattern: "*.mp4"})
	logging.PruneOlderThan(d.logger, d.cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: d.cfg.Paths.LogDir, Pattern: "*.log"})
}

// Stop cancels running renders, shuts the server down, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.server.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.jobs.Close(ctx); err != nil {
		logging.WarnWithContext(d.logger, "renders still unwinding at shutdown", "daemon_stop_timeout",
			logging.Error(err),
			logging.Impact("engine processes may outlive the daemon briefly"),
		)
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("pipcast daemon stopped", logging.EventType("daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return d.jobs.Close(ctx)
}

// Handler returns the HTTP router without a listener.
func (d *Daemon) Handler() http.Handler {
	return d.server.handler
}

// Addr returns the bound API address once serving.
func (d *Daemon) Addr() string {
	return d.server.addr()
}

// Jobs exposes the job service.
func (d *Daemon) Jobs() *api.JobService {
	return d.jobs
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		LockFilePath:  d.lockPath,
		ActiveRenders: d.jobs.Active(),
		MaxConcurrent: d.jobs.MaxConcurrent(),
		Jobs:          d.jobs.Counts(),
		Checks:        preflight.RunAll(ctx, d.cfg),
	}
}
