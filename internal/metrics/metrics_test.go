package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncCacheLookup("hit")
	m.IncCacheLookup("hit")
	m.IncCacheLookup("miss")
	m.IncUpstreamError("nasa_power", "upstream_unavailable")
	m.ObserveUpstream("nasa_power", "archive", 150*time.Millisecond)
	m.SetLicenses(map[string]int{"active": 4, "expired": 1})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamErrors.WithLabelValues("nasa_power", "upstream_unavailable")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Licenses.WithLabelValues("active")))

	m.SetLicenses(map[string]int{"active": 5})
	assert.Equal(t, 1, testutil.CollectAndCount(m.Licenses))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncCacheLookup("hit")
		m.IncCacheWrite("ok")
		m.ObserveUpstream("p", "archive", time.Second)
		m.IncUpstreamError("p", "k")
		m.IncPlan("hybrid")
		m.IncFusion("ok")
		m.SetLicenses(map[string]int{"active": 1})
	})
}
