package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFile(filepath.Join(dir, "absent"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestWriteStreamWithinLimit(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "screen.mp4")
	n, err := WriteStream(dst, strings.NewReader("0123456789"), 10)
	if err != nil {
		t.Fatalf("WriteStream: %v", err)
	}
	if n != 10 {
		t.Fatalf("written = %d", n)
	}
	if got, _ := os.ReadFile(dst); string(got) != "0123456789" {
		t.Fatalf("content = %q", got)
	}
}

func TestWriteStreamOverLimitLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "screen.mp4")
	_, err := WriteStream(dst, strings.NewReader("0123456789A"), 10)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("destination should not exist, stat err = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("pending file left behind: %v", entries)
	}
}

func TestWriteStreamReplacesAtomically(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "face.mp4")
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteStream(dst, strings.NewReader("new content"), 0); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "new content" {
		t.Fatalf("content = %q", got)
	}
}

func TestWriteStreamNilReader(t *testing.T) {
	if _, err := WriteStream(filepath.Join(t.TempDir(), "x"), nil, 0); err == nil {
		t.Fatal("expected error for nil reader")
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "work", "short_form_x.mp4")
	dst := filepath.Join(dir, "short_form_x.mp4")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source gone, got %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "mp4" {
		t.Fatalf("dst = %q, %v", got, err)
	}
}

func TestMoveFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := MoveFile(filepath.Join(dir, "missing.mp4"), filepath.Join(dir, "out.mp4")); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(filepath.Join(dir, "out.mp4")); !os.IsNotExist(err) {
		t.Fatalf("expected no destination, got %v", err)
	}
}
