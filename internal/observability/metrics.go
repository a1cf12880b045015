// Package observability exposes process, HTTP and opencensus view metrics on one prometheus
// registry.
package observability

import (
	"fmt"
	"net/http"

	ocprom "contrib.go.opencensus.io/exporter/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opencensus.io/stats/view"
)

type Metrics struct {
	registry *prometheus.Registry
	exporter *ocprom.Exporter
	views    []*view.View
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// New registers views with opencensus and builds the registry they are exported to.
func New(cfg *Config, views ...*view.View) (*Metrics, error) {
	ns := cfg.Namespace
	reg := prometheus.NewRegistry()
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency of API requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"handler", "code", "method"})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "API requests currently being served.",
	})
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		versioncollector.NewCollector(ns),
		duration,
		inFlight,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	if err := view.Register(views...); err != nil {
		return nil, fmt.Errorf("register views: %w", err)
	}
	exporter, err := ocprom.NewExporter(ocprom.Options{Namespace: ns, Registry: reg})
	if err != nil {
		view.Unregister(views...)
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &Metrics{
		registry: reg,
		exporter: exporter,
		views:    views,
		duration: duration,
		inFlight: inFlight,
	}, nil
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return m.exporter
}

// Instrument records latency and concurrency of h under the given handler label.
func (m *Metrics) Instrument(name string, h http.Handler) http.Handler {
	observer := m.duration.MustCurryWith(prometheus.Labels{"handler": name})
	return promhttp.InstrumentHandlerInFlight(m.inFlight, promhttp.InstrumentHandlerDuration(observer, h))
}

func (m *Metrics) Close() {
	view.Unregister(m.views...)
}
