package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"pipcast/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExecution, "render", "short_form", "ffmpeg failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExecution) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"render", "short_form", "ffmpeg failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %q", err.Error())
	}
}

func TestClass(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrValidation, "pipeline", "validate", "screen missing", nil), "validation"},
		{services.Wrap(services.ErrMask, "masks", "ensure", "", errors.New("disk full")), "mask"},
		{fmt.Errorf("run: %w", context.DeadlineExceeded), "timeout"},
		{context.Canceled, "canceled"},
		{services.Wrap(services.ErrExecution, "render", "", "", nil), "execution"},
		{errors.New("other"), "internal"},
	}
	for _, tc := range tests {
		if got := services.Class(tc.err); got != tc.want {
			t.Errorf("Class(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
	if !services.IsClientError(services.Wrap(services.ErrValidation, "", "", "bad", nil)) {
		t.Fatal("expected validation error to be a client error")
	}
}
