// Package metrics exposes Prometheus instruments for renders.
//
// Label sets stay low-cardinality: profile, backend, and outcome class.
// Invocation or job identifiers never appear as labels.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the instruments registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	Invocations       *prometheus.CounterVec
	Renditions        *prometheus.CounterVec
	RenditionSeconds  *prometheus.HistogramVec
	BackendFallbacks  prometheus.Counter
	DurationFallbacks prometheus.Counter
	ActiveRenders     prometheus.Gauge
	MaskGenerations   prometheus.Counter
}

// New registers the instruments on a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Invocations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pipcast_invocations_total",
			Help: "Render invocations, by result (ok, partial, failed, rejected).",
		}, []string{"result"}),
		Renditions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pipcast_renditions_total",
			Help: "Finished renditions, by profile, backend, and state.",
		}, []string{"profile", "backend", "state"}),
		RenditionSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipcast_rendition_seconds",
			Help:    "Wall time spent rendering one profile.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		}, []string{"profile", "backend"}),
		BackendFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "pipcast_backend_fallbacks_total",
			Help: "Hardware renditions retried on the software backend.",
		}),
		DurationFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "pipcast_duration_fallbacks_total",
			Help: "Inputs whose duration could not be probed.",
		}),
		ActiveRenders: f.NewGauge(prometheus.GaugeOpts{
			Name: "pipcast_active_renders",
			Help: "Invocations currently rendering.",
		}),
		MaskGenerations: f.NewCounter(prometheus.CounterOpts{
			Name: "pipcast_mask_ensure_total",
			Help: "Mask assets ensured for invocations.",
		}),
	}
}

// Registry returns the registry the instruments live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRendition records one finished rendition.
func (m *Metrics) ObserveRendition(profile, backend, state string, elapsed time.Duration, fellBack bool) {
	if m == nil {
		return
	}
	m.Renditions.WithLabelValues(profile, backend, state).Inc()
	m.RenditionSeconds.WithLabelValues(profile, backend).Observe(elapsed.Seconds())
	if fellBack {
		m.BackendFallbacks.Inc()
	}
}

// ObserveInvocation records one finished invocation.
func (m *Metrics) ObserveInvocation(result string) {
	if m == nil {
		return
	}
	m.Invocations.WithLabelValues(result).Inc()
}

// RenderStarted and RenderFinished bracket an active invocation.
func (m *Metrics) RenderStarted() {
	if m != nil {
		m.ActiveRenders.Inc()
	}
}

func (m *Metrics) RenderFinished() {
	if m != nil {
		m.ActiveRenders.Dec()
	}
}

// ObserveDurationFallbacks adds n unprobed inputs.
func (m *Metrics) ObserveDurationFallbacks(n int) {
	if m != nil && n > 0 {
		m.DurationFallbacks.Add(float64(n))
	}
}

// ObserveMasks adds n ensured mask assets.
func (m *Metrics) ObserveMasks(n int) {
	if m != nil && n > 0 {
		m.MaskGenerations.Add(float64(n))
	}
}
