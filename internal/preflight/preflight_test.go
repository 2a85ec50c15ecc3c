package preflight

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"pipcast/internal/config"
	"pipcast/internal/deps"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()
	if _, err := deps.Disk(context.Background(), dir); err != nil {
		t.Skipf("disk usage unavailable: %v", err)
	}
	if r := CheckDiskSpace(context.Background(), "disk", dir, 0); !r.Passed {
		t.Fatalf("expected pass with no minimum, got %s", r.Detail)
	}
	if r := CheckDiskSpace(context.Background(), "disk", dir, math.MaxUint64); r.Passed {
		t.Fatal("expected failure with an impossible minimum")
	}
}

func TestCheckBinaryMissing(t *testing.T) {
	r := CheckBinary(deps.Requirement{Name: "FFmpeg", Command: "clearly-not-present-ffmpeg"})
	if r.Passed || r.Detail == "" {
		t.Fatalf("expected failure with detail, got %#v", r)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_OrderAndFailures(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Paths.MaskDir = filepath.Join(t.TempDir(), "missing")
	cfg.Engine.FFmpegBinary = "clearly-not-present-ffmpeg"
	cfg.Engine.FFprobeBinary = "clearly-not-present-ffprobe"

	results := RunAll(context.Background(), &cfg)
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Name
	}
	want := []string{"Work directory", "Output directory", "Mask directory", "Work disk", "Output disk", "FFmpeg", "FFprobe"}
	if len(names) != len(want) {
		t.Fatalf("got checks %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("check %d = %q, want %q", i, names[i], want[i])
		}
	}

	failed := map[string]bool{}
	for _, r := range Failed(results) {
		failed[r.Name] = true
	}
	if !failed["Mask directory"] || !failed["FFmpeg"] {
		t.Fatalf("expected mask directory and ffmpeg failures, got %v", failed)
	}
	if failed["FFprobe"] {
		t.Fatal("ffprobe is optional")
	}
	if failed["Work directory"] || failed["Output directory"] {
		t.Fatal("temp directories should pass")
	}
}

func TestFormatBytes(t *testing.T) {
	for n, want := range map[uint64]string{512: "512 B", 2048: "2.0 KiB", 3 << 30: "3.0 GiB"} {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
