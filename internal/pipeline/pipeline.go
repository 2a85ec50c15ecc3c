package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"pipcast/internal/backend"
	"pipcast/internal/config"
	"pipcast/internal/duration"
	"pipcast/internal/engine"
	"pipcast/internal/executor"
	"pipcast/internal/fileutil"
	"pipcast/internal/geometry"
	"pipcast/internal/graph"
	"pipcast/internal/logging"
	"pipcast/internal/masks"
	"pipcast/internal/media/ffprobe"
	"pipcast/internal/metrics"
	"pipcast/internal/progress"
	"pipcast/internal/services"
	"pipcast/internal/staging"
)

// BackendProbe resolves the backend for one invocation. An empty policy
// means the configured one.
type BackendProbe func(ctx context.Context, policy backend.Policy) backend.Selection

// Service runs render invocations. It is safe for concurrent use; each
// invocation owns its workspace and only the mask cache is shared.
type Service struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   engine.Engine
	prober   duration.Prober
	probe    BackendProbe
	masks    *masks.Registry
	metrics  *metrics.Metrics
	newID    func() string
	executor *executor.Executor
}

// Option customizes a Service.
type Option func(*Service)

// WithEngine replaces the ffmpeg engine.
func WithEngine(e engine.Engine) Option {
	return func(s *Service) { s.engine = e }
}

// WithProber replaces the ffprobe duration prober.
func WithProber(p duration.Prober) Option {
	return func(s *Service) { s.prober = p }
}

// WithBackendProbe replaces the hardware capability probe.
func WithBackendProbe(p BackendProbe) Option {
	return func(s *Service) { s.probe = p }
}

// WithMaskRegistry shares a mask registry between services.
func WithMaskRegistry(r *masks.Registry) Option {
	return func(s *Service) { s.masks = r }
}

// WithMetrics records invocation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithIDGenerator overrides invocation id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// New constructs a Service from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Service{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = engine.NewFFmpeg(cfg.Engine.FFmpegBinary, cfg.Engine.StderrTailLines, logger)
	}
	if s.prober == nil {
		s.prober = duration.FFprobe{Binary: cfg.Engine.FFprobeBinary, Timeout: cfg.ProbeTimeout()}
	}
	if s.probe == nil {
		selector, err := backend.NewSelector(cfg, logger)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "backend", "", err)
		}
		s.probe = func(ctx context.Context, policy backend.Policy) backend.Selection {
			if policy != "" {
				return selector.WithPolicy(policy).Probe(ctx)
			}
			return selector.Probe(ctx)
		}
	}
	if s.masks == nil {
		s.masks = masks.NewRegistry(cfg.Paths.MaskDir, logger)
	}
	s.executor = executor.New(s.engine, logger)
	return s, nil
}

// Masks returns the registry the service renders with.
func (s *Service) Masks() *masks.Registry {
	return s.masks
}

type inputs struct {
	screen     string
	face       string
	background string
}

// Run executes one invocation and reports progress to sink. The returned
// error is non-nil only when the invocation as a whole failed: invalid
// input, staging, or mask generation. Per-rendition failures are listed in
// Result.Failures and summarized by Result.Err.
func (s *Service) Run(ctx context.Context, req Request, sink progress.Sink) (Result, error) {
	id := s.newID()
	ctx = services.WithInvocationID(ctx, id)
	logger := logging.WithContext(ctx, s.logger)
	result := Result{InvocationID: id}

	p, err := req.validate(s.cfg)
	reporter := progress.NewReporter(sink, len(p.profiles))
	if err != nil {
		logger.Info("render rejected",
			logging.EventType("render_rejected"),
			logging.Error(err),
		)
		s.metrics.ObserveInvocation("rejected")
		reporter.Fail(err.Error(), nil, nil)
		return result, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.InvocationTimeout())
	defer cancel()

	s.metrics.RenderStarted()
	defer s.metrics.RenderFinished()

	profileNames := make([]string, len(p.profiles))
	for i, profile := range p.profiles {
		profileNames[i] = string(profile.Name)
	}
	logger.Info("render started",
		logging.EventType("render_start"),
		logging.Any("profiles", profileNames),
		logging.Bool("background", req.Background.Present()),
	)
	reporter.Start("render started")
	reporter.Staging()

	ws, err := staging.New(s.cfg.Paths.WorkDir, id)
	if err != nil {
		err = services.Wrap(services.ErrExecution, "stage", "workspace", "", err)
		s.finish(logger, reporter, nil, &result, err)
		return result, err
	}

	err = s.render(ctx, logger, reporter, ws, req, p, &result)
	s.finish(logger, reporter, ws, &result, err)
	return result, err
}

func (s *Service) render(ctx context.Context, logger *slog.Logger, reporter *progress.Reporter, ws *staging.Workspace, req Request, p plan, result *Result) error {
	in, err := s.stage(services.WithStage(ctx, "stage"), ws, req)
	if err != nil {
		return err
	}

	reconciler := duration.NewReconciler(s.prober, duration.WithFallback(s.cfg.Render.FallbackDurationSeconds),
		duration.WithCeiling(s.cfg.Render.MaxDurationSeconds), duration.WithLogger(logger))
	rec, err := reconciler.Reconcile(services.WithStage(ctx, "probe"), in.screen, in.face)
	if err != nil {
		return err
	}
	result.Duration = rec.Seconds
	for _, outcome := range rec.Outcomes {
		if outcome.Kind == duration.Fallback {
			result.DurationFallback = append(result.DurationFallback, filepath.Base(outcome.Path))
		}
	}
	s.metrics.ObserveDurationFallbacks(len(result.DurationFallback))

	var policy backend.Policy
	if p.override {
		policy = p.policy
	}
	selection := s.probe(services.WithStage(ctx, "backend"), policy)
	result.Backend = selection.Kind.String()
	result.BackendReason = selection.Reason
	reporter.Staged(rec.Seconds)

	maskCtx := services.WithStage(ctx, "masks")
	ensured := 0
	for _, profile := range p.profiles {
		assets, err := s.masks.EnsureProfile(maskCtx, profile)
		if err != nil {
			return services.Wrap(services.ErrMask, "masks", "ensure", string(profile.Name), err)
		}
		ensured += len(assets)
	}
	s.metrics.ObserveMasks(ensured)

	if err := os.MkdirAll(s.cfg.Paths.OutputDir, 0o755); err != nil {
		return services.Wrap(services.ErrExecution, "render", "output dir", "", err)
	}

	renderCtx := services.WithStage(ctx, "render")
	for i, profile := range p.profiles {
		if err := ctx.Err(); err != nil {
			marker := services.ErrExecution
			if errors.Is(err, context.DeadlineExceeded) {
				marker = services.ErrTimeout
			}
			for _, rest := range p.profiles[i:] {
				result.Failures = append(result.Failures, failedRendition(rest.Name,
					services.Wrap(marker, "render", "schedule", "invocation ended before rendition started", err)))
			}
			break
		}
		reporter.BeginRendition(i, string(profile.Name))
		out := s.renderProfile(renderCtx, reporter, ws, profile, in, p.color, rec.Seconds, selection)
		reporter.EndRendition(string(profile.Name), out.err == nil)
		if out.err != nil {
			result.Failures = append(result.Failures, out)
		} else {
			result.Outputs = append(result.Outputs, out)
		}
	}
	return nil
}

func (s *Service) stage(ctx context.Context, ws *staging.Workspace, req Request) (inputs, error) {
	limit := s.cfg.MaxUploadBytes()
	logger := logging.WithContext(ctx, s.logger)
	var in inputs
	var err error
	if in.screen, err = stageRequired(ws, "screen", req.Screen, ".mp4", limit); err != nil {
		return in, err
	}
	if in.face, err = stageRequired(ws, "face", req.Face, ".mp4", limit); err != nil {
		return in, err
	}
	if req.Background.Present() {
		path, n, err := stagePayload(ws, "background", req.Background, ".png", limit)
		if err != nil {
			return in, err
		}
		if n == 0 {
			// An empty optional file input renders as if none was sent.
			logger.Info("empty background ignored", logging.EventType("background_empty"))
			_ = os.Remove(path)
		} else {
			in.background = path
		}
	}
	logger.Debug("inputs staged", logging.String("workspace", ws.Dir))
	return in, nil
}

func stageRequired(ws *staging.Workspace, role string, p Payload, fallbackExt string, limit int64) (string, error) {
	path, n, err := stagePayload(ws, role, p, fallbackExt, limit)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", validationError(role, role+" input is empty")
	}
	return path, nil
}

func stagePayload(ws *staging.Workspace, role string, p Payload, fallbackExt string, limit int64) (string, int64, error) {
	name := stagedName(role, p.Name, fallbackExt)
	var (
		path string
		n    int64
		err  error
	)
	if p.Reader != nil {
		path, n, err = ws.StageReader(name, p.Reader, limit)
	} else {
		path, n, err = ws.StageFile(name, p.Path, limit)
	}
	if err != nil {
		return "", n, services.Wrap(services.ErrValidation, "stage", role, "could not read input", err)
	}
	return path, n, nil
}

// renderProfile encodes into the workspace and publishes to the output
// directory only once the rendition completed, so failed attempts never
// leave a file behind that the outputs route could serve.
func (s *Service) renderProfile(ctx context.Context, reporter *progress.Reporter, ws *staging.Workspace, profile geometry.Profile, in inputs, color string, seconds float64, selection backend.Selection) Rendition {
	file := fmt.Sprintf("%s_%s.mp4", profile.Name, ws.ID)
	output := ws.Path(file)

	planFn := func(kind backend.Kind) (engine.Job, error) {
		g, err := graph.Build(profile, kind, graph.Presence{Background: in.background != ""}, graph.Options{Color: color, Duration: seconds})
		if err != nil {
			return engine.Job{}, err
		}
		job := engine.Job{
			FilterGraph:  g.Serialize(),
			Encoder:      selection.ParamsFor(kind),
			AudioMap:     engine.DefaultAudioMap,
			AudioCodec:   s.cfg.Encoding.AudioCodec,
			AudioBitrate: s.cfg.Encoding.AudioBitrate,
			Duration:     seconds,
			Output:       output,
		}
		for _, src := range g.Sources {
			var path string
			switch src.Kind {
			case graph.SourceScreen:
				path = in.screen
			case graph.SourceFace:
				path = in.face
			case graph.SourceBackground:
				path = in.background
			case graph.SourceMask:
				path = s.masks.Path(src.Mask)
			}
			job.Inputs = append(job.Inputs, engine.Input{Path: path, Loop: src.Still})
		}
		return job, nil
	}

	observer := executor.ObserverFuncs{
		OnProgress: func(name string, ev engine.Event) {
			if ev.Kind == engine.EventProgress {
				reporter.RenditionProgress(name, ev.Percent)
			}
		},
	}
	out := s.executor.Run(ctx, executor.Rendition{Name: string(profile.Name), Backend: selection.Kind, Plan: planFn}, observer)
	s.metrics.ObserveRendition(string(profile.Name), out.Backend.String(), string(out.State), out.Elapsed, out.FellBack)

	r := Rendition{
		Profile:  profile.Name,
		Backend:  out.Backend.String(),
		FellBack: out.FellBack,
		Attempts: out.Attempts,
		Elapsed:  out.Elapsed,
	}
	err := out.Err
	published := filepath.Join(s.cfg.Paths.OutputDir, file)
	if err == nil {
		if moveErr := fileutil.MoveFile(out.Output, published); moveErr != nil {
			err = services.Wrap(services.ErrExecution, "render", "publish output", file, moveErr)
		}
	}
	if err != nil {
		r.err = err
		r.Class = services.Class(err)
		r.Error = err.Error()
		return r
	}
	r.File = file
	r.Path = published
	return r
}

func failedRendition(name geometry.Name, err error) Rendition {
	return Rendition{Profile: name, err: err, Class: services.Class(err), Error: err.Error()}
}

// finish removes the workspace and emits the final progress record.
func (s *Service) finish(logger *slog.Logger, reporter *progress.Reporter, ws *staging.Workspace, result *Result, fatal error) {
	reporter.Cleanup()
	if ws != nil {
		if err := ws.Remove(); err != nil {
			logging.WarnWithContext(logger, "failed to remove workspace", "workspace_cleanup_failed",
				logging.String("workspace", ws.Dir),
				logging.Error(services.Wrap(services.ErrCleanup, "cleanup", "workspace", "", err)),
				logging.Hint("remove the directory manually or let the daemon sweep it"),
				logging.Impact("disk space not reclaimed"),
			)
		}
	}

	outputs := result.OutputFiles()
	switch {
	case fatal != nil:
		s.metrics.ObserveInvocation("failed")
		logging.ErrorWithContext(logger, "render failed", "render_failed",
			logging.String("class", services.Class(fatal)),
			logging.Error(fatal),
		)
		reporter.Fail(fatal.Error(), nil, outputs)
	case len(result.Failures) > 0:
		failures := make([]progress.Failure, len(result.Failures))
		for i, f := range result.Failures {
			failures[i] = progress.Failure{Rendition: string(f.Profile), Class: f.Class, Error: f.Error}
		}
		outcome := "failed"
		if len(outputs) > 0 {
			outcome = "partial"
		}
		s.metrics.ObserveInvocation(outcome)
		err := result.Err()
		logging.ErrorWithContext(logger, "render finished with failures", "render_partial",
			logging.Int("failed", len(result.Failures)),
			logging.Int("completed", len(outputs)),
			logging.Error(err),
		)
		reporter.Fail(err.Error(), failures, outputs)
	default:
		s.metrics.ObserveInvocation("ok")
		logger.Info("render completed",
			logging.EventType("render_complete"),
			logging.Any("outputs", outputs),
			logging.Float64("duration_seconds", result.Duration),
			logging.Backend(result.Backend),
		)
		reporter.Complete(outputs)
	}
}

// Inspect probes a staged or local media file. It is used by callers that
// want to describe inputs before submitting them.
func (s *Service) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout())
	defer cancel()
	return ffprobe.Inspect(ctx, s.cfg.Engine.FFprobeBinary, path)
}
