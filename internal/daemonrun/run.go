package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pipcast/internal/config"
	"pipcast/internal/daemon"
	"pipcast/internal/deps"
	"pipcast/internal/logging"
	"pipcast/internal/metrics"
	"pipcast/internal/pipeline"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Ready, when set, receives the bound API address once serving starts.
	Ready func(addr string)
}

// Run starts the pipcast daemon and blocks until ctx is canceled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("pipcastd-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	console, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	// The run log file is always JSON.
	file, err := logging.New(logging.Options{
		Level:       level,
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		return fmt.Errorf("init log file: %w", err)
	}
	logger := logging.TeeLogger(console, file.Handler())
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update pipcastd.log link: %v\n", err)
	}
	logDependencySnapshot(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "pipcastd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	m := metrics.New()
	svc, err := pipeline.New(cfg, logger, pipeline.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	d, err := daemon.New(cfg, logger, svc, m)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.Hint("check api_bind and that no other pipcastd holds the lock"),
			logging.Impact("render API is unavailable"),
		)
		return err
	}
	if opts.Ready != nil {
		opts.Ready(d.Addr())
	}
	logger.Info("pipcast daemon listening",
		logging.String("addr", d.Addr()),
		logging.String("log_path", logPath),
		logging.EventType("daemon_listening"),
	)

	<-signalCtx.Done()
	logger.Info("pipcast daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "pipcastd.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{logging.EventType("dependency_snapshot")}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	if host, err := deps.ProbeHost(ctx); err == nil {
		attrs = append(attrs,
			logging.Int("logical_cpus", host.LogicalCPUs),
			logging.Uint64("memory_available", host.MemoryAvailable),
		)
	}
	attrs = append(attrs,
		logging.String("backend_policy", cfg.Encoding.Backend),
		logging.Int("max_concurrent", cfg.Server.MaxConcurrent),
	)
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
