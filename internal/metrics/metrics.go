package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for cache, upstream, fusion and licensing.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Cache lookups by outcome: hit, miss, error
	CacheLookups *prometheus.CounterVec

	// Cache writes by outcome: ok, error, skipped
	CacheWrites *prometheus.CounterVec

	// Upstream call latency by provider and api
	UpstreamLatency *prometheus.HistogramVec

	// Upstream failures by provider and error kind
	UpstreamErrors *prometheus.CounterVec

	// Router plans by outcome: archive, forecast, hybrid, rejected
	Plans *prometheus.CounterVec

	// Fusion runs by outcome: ok, license_violation, error
	FusionRuns *prometheus.CounterVec

	// Licenses by effective status at the last monitor run
	Licenses *prometheus.GaugeVec
}

// New creates and registers all collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "climate_cache_lookups_total",
			Help: "Cache lookups by outcome",
		}, []string{"outcome"}),

		CacheWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "climate_cache_writes_total",
			Help: "Cache writes by outcome",
		}, []string{"outcome"}),

		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "climate_upstream_duration_seconds",
			Help:    "Duration of upstream fetches by provider and api",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider", "api"}),

		UpstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "climate_upstream_errors_total",
			Help: "Failed upstream fetches by provider and error kind",
		}, []string{"provider", "kind"}),

		Plans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "climate_router_plans_total",
			Help: "Routing decisions by plan kind",
		}, []string{"plan"}),

		FusionRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "climate_fusion_runs_total",
			Help: "Fusion requests by outcome",
		}, []string{"outcome"}),

		Licenses: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "climate_licenses",
			Help: "Licenses by effective status",
		}, []string{"status"}),
	}
}

func (m *Metrics) IncCacheLookup(outcome string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncCacheWrite(outcome string) {
	if m != nil {
		m.CacheWrites.WithLabelValues(outcome).Inc()
	}
}

// ObserveUpstream records the duration of one upstream fetch.
func (m *Metrics) ObserveUpstream(provider, api string, d time.Duration) {
	if m != nil {
		m.UpstreamLatency.WithLabelValues(provider, api).Observe(d.Seconds())
	}
}

func (m *Metrics) IncUpstreamError(provider, kind string) {
	if m != nil {
		m.UpstreamErrors.WithLabelValues(provider, kind).Inc()
	}
}

func (m *Metrics) IncPlan(plan string) {
	if m != nil {
		m.Plans.WithLabelValues(plan).Inc()
	}
}

func (m *Metrics) IncFusion(outcome string) {
	if m != nil {
		m.FusionRuns.WithLabelValues(outcome).Inc()
	}
}

// SetLicenses replaces the license gauge with the given counts per status.
func (m *Metrics) SetLicenses(counts map[string]int) {
	if m == nil {
		return
	}
	m.Licenses.Reset()
	for status, n := range counts {
		m.Licenses.WithLabelValues(status).Set(float64(n))
	}
}
