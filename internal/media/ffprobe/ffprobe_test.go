package ffprobe

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Width: 1920, Height: 1080},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 || !result.HasAudio() {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if w, h, ok := result.VideoSize(); !ok || w != 1920 || h != 1080 {
		t.Fatalf("unexpected video size: %dx%d %v", w, h, ok)
	}
	if result.IsStillImage() {
		t.Fatal("movie should not be a still image")
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{Streams: []Stream{
		{CodecType: "video", Duration: "74.9"},
		{CodecType: "audio", Duration: "75.02"},
	}}
	if got := result.DurationSeconds(); got != 75.02 {
		t.Fatalf("expected longest stream duration, got %v", got)
	}
}

func TestIsStillImage(t *testing.T) {
	png := Result{Format: Format{FormatName: "png_pipe"}, Streams: []Stream{{CodecType: "video"}}}
	if !png.IsStillImage() {
		t.Fatal("png_pipe should be a still image")
	}
	jpeg := Result{Format: Format{FormatName: "image2"}, Streams: []Stream{{CodecType: "video"}}}
	if !jpeg.IsStillImage() {
		t.Fatal("image2 should be a still image")
	}
}

func setHelperCommand(t *testing.T, mode string) {
	t.Helper()
	orig := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { commandContext = orig })
}

func TestInspectParsesOutput(t *testing.T) {
	setHelperCommand(t, "ok")
	result, err := Inspect(context.Background(), "ffprobe", "/tmp/face.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.DurationSeconds() != 75 {
		t.Fatalf("duration = %v, want 75", result.DurationSeconds())
	}
	if !result.HasAudio() {
		t.Fatal("expected audio stream")
	}
}

func TestInspectReportsStderr(t *testing.T) {
	setHelperCommand(t, "corrupt")
	_, err := Inspect(context.Background(), "ffprobe", "/tmp/screen.mp4")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	if len(args) == 0 || args[len(args)-1] == "" {
		os.Exit(2)
	}
	switch os.Getenv("HELPER_MODE") {
	case "corrupt":
		fmt.Fprintf(os.Stderr, "%s: moov atom not found\n", args[len(args)-1])
		os.Exit(1)
	default:
		fmt.Fprint(os.Stdout, `{"streams":[{"index":0,"codec_type":"video","width":1280,"height":720},{"index":1,"codec_type":"audio"}],"format":{"duration":"75.000000","format_name":"mov,mp4,m4a,3gp,3g2,mj2"}}`)
		os.Exit(0)
	}
}
