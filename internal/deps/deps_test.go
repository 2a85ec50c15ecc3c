package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pipcast/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present || results[0].Detail != "" {
		t.Fatalf("unexpected status for present binary: %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail: %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

func TestMissingIgnoresOptional(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.FFmpegBinary = "clearly-not-present-ffmpeg"
	cfg.Engine.FFprobeBinary = "clearly-not-present-ffprobe"

	missing := Missing(CheckBinaries(Requirements(&cfg)))
	if len(missing) != 1 || missing[0].Name != "FFmpeg" {
		t.Fatalf("expected only ffmpeg to be reported missing, got %#v", missing)
	}
}

func TestDiskUsage(t *testing.T) {
	usage, err := Disk(context.Background(), t.TempDir())
	if err != nil {
		t.Skipf("disk usage unavailable: %v", err)
	}
	if usage.Total == 0 || usage.Free > usage.Total {
		t.Fatalf("implausible usage: %#v", usage)
	}
}

func TestProbeHost(t *testing.T) {
	host, err := ProbeHost(context.Background())
	if err != nil {
		t.Skipf("host stats unavailable: %v", err)
	}
	if host.LogicalCPUs < 1 {
		t.Fatalf("expected at least one cpu, got %d", host.LogicalCPUs)
	}
}
