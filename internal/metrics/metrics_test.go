package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRendition(t *testing.T) {
	m := New()
	m.ObserveRendition("short_form", "software", "completed", 3*time.Second, true)
	m.ObserveRendition("short_form", "software", "completed", time.Second, false)

	if got := testutil.ToFloat64(m.Renditions.WithLabelValues("short_form", "software", "completed")); got != 2 {
		t.Fatalf("renditions = %v", got)
	}
	if got := testutil.ToFloat64(m.BackendFallbacks); got != 1 {
		t.Fatalf("fallbacks = %v", got)
	}
}

func TestActiveRendersGauge(t *testing.T) {
	m := New()
	m.RenderStarted()
	m.RenderStarted()
	m.RenderFinished()
	if got := testutil.ToFloat64(m.ActiveRenders); got != 1 {
		t.Fatalf("active = %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRendition("long_form", "hardware", "failed", 0, false)
	m.ObserveInvocation("failed")
	m.RenderStarted()
	m.RenderFinished()
	m.ObserveDurationFallbacks(1)
	m.ObserveMasks(1)
}

func TestHandlerExposesInstruments(t *testing.T) {
	m := New()
	m.ObserveInvocation("ok")
	m.ObserveDurationFallbacks(2)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	for _, want := range []string{
		`pipcast_invocations_total{result="ok"} 1`,
		"pipcast_duration_fallbacks_total 2",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output lacks %q", want)
		}
	}
}
