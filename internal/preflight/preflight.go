package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"pipcast/internal/config"
	"pipcast/internal/deps"
)

// MinFreeBytes is the free space below which the work and output
// directories are reported as failing.
const MinFreeBytes = 2 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	checks := []func(context.Context) Result{
		func(context.Context) Result { return CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir) },
		func(context.Context) Result { return CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir) },
		func(context.Context) Result { return CheckDirectoryAccess("Mask directory", cfg.Paths.MaskDir) },
		func(ctx context.Context) Result { return CheckDiskSpace(ctx, "Work disk", cfg.Paths.WorkDir, MinFreeBytes) },
		func(ctx context.Context) Result { return CheckDiskSpace(ctx, "Output disk", cfg.Paths.OutputDir, MinFreeBytes) },
	}
	for _, req := range deps.Requirements(cfg) {
		checks = append(checks, func(context.Context) Result { return CheckBinary(req) })
	}

	results := make([]Result, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			results[i] = check(gctx)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// CheckBinary resolves a required executable on PATH.
func CheckBinary(req deps.Requirement) Result {
	status := deps.CheckBinaries([]deps.Requirement{req})[0]
	if !status.Available {
		return Result{Name: status.Name, Optional: status.Optional, Detail: status.Detail}
	}
	return Result{Name: status.Name, Passed: true, Optional: status.Optional, Detail: status.Path}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace fails when the filesystem holding path has less than minFree bytes available.
func CheckDiskSpace(ctx context.Context, name, path string, minFree uint64) Result {
	usage, err := deps.Disk(ctx, path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	detail := fmt.Sprintf("%s free of %s", FormatBytes(usage.Free), FormatBytes(usage.Total))
	if usage.Free < minFree {
		return Result{Name: name, Detail: detail + fmt.Sprintf(" (below %s)", FormatBytes(minFree))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
