package metricgen

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/model"
)

// StatsInternal owns the prometheus registry for both
// the generated metrics and metricgen's own health.
type StatsInternal struct {
	MU       sync.Mutex
	Registry *prometheus.Registry

	MetricsTotal  prometheus.Counter     // generators ever created
	MetricsActive prometheus.Gauge       // generators currently running
	WWW           *prometheus.CounterVec // requests by status and method
	RefreshTimer  prometheus.Histogram   // duration of a collaborator refresh
	Renders       *prometheus.CounterVec // previews drawn by format

	gauges map[string]prometheus.Gauge
}

func NewStatsInternal() *StatsInternal {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	s := &StatsInternal{
		Registry: reg,
		MetricsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "generator_metrics_total",
			Help: "Total number of metrics created",
		}),
		MetricsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "generator_metrics_active",
			Help: "Number of active metrics",
		}),
		WWW: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metricgen_http_requests_total",
			Help: "HTTP requests served by status and method",
		}, []string{"status", "method"}),
		RefreshTimer: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "metricgen_refresh_seconds",
			Help:    "Duration of a collaborator config refresh",
			Buckets: prometheus.DefBuckets,
		}),
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metricgen_preview_renders_total",
			Help: "Previews rendered by output format",
		}, []string{"format"}),
		gauges: make(map[string]prometheus.Gauge),
	}

	reg.MustRegister(s.MetricsTotal, s.MetricsActive, s.WWW, s.RefreshTimer, s.Renders)
	return s
}

// Handler serves the registry in the prometheus exposition format
func (s *StatsInternal) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry})
}

func (s *StatsInternal) RecWWW(status, method string) {
	s.WWW.WithLabelValues(status, method).Inc()
}

func (s *StatsInternal) RecRefreshTimer(seconds float64) {
	s.RefreshTimer.Observe(seconds)
}

func (s *StatsInternal) RecRender(format string) {
	s.Renders.WithLabelValues(format).Inc()
}

// AddGauge registers a gauge named after the generator.
// The name must be a valid classic prometheus metric name.
func (s *StatsInternal) AddGauge(name string) (prometheus.Gauge, error) {
	if !model.LegacyValidation.IsValidMetricName(name) {
		return nil, fmt.Errorf("register gauge %q: invalid metric name", name)
	}

	s.MU.Lock()
	defer s.MU.Unlock()

	if g, ok := s.gauges[name]; ok {
		return g, nil
	}

	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: fmt.Sprintf("Metric: %s", name),
	})
	if err := s.Registry.Register(g); err != nil {
		return nil, fmt.Errorf("register gauge %s: %w", name, err)
	}

	s.gauges[name] = g
	s.MetricsActive.Set(float64(len(s.gauges)))
	return g, nil
}

// RemoveGauge unregisters the generator gauge, unknown names are ignored
func (s *StatsInternal) RemoveGauge(name string) {
	s.MU.Lock()
	defer s.MU.Unlock()

	g, ok := s.gauges[name]
	if !ok {
		return
	}
	s.Registry.Unregister(g)
	delete(s.gauges, name)
	s.MetricsActive.Set(float64(len(s.gauges)))
}
