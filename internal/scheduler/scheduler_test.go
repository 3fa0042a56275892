package scheduler

import (
	"bytes"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/climate-sources/internal/license"
	"github.com/i474232898/climate-sources/internal/metrics"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func registry(t *testing.T) *license.Registry {
	t.Helper()
	soon := now.Add(10 * 24 * time.Hour)
	past := now.Add(-24 * time.Hour)
	r, err := license.NewRegistry([]license.License{
		{ID: "l-ok", ProviderID: "a", Status: license.StatusActive},
		{ID: "l-soon", ProviderID: "b", Status: license.StatusActive, Expiry: &soon},
		{ID: "l-old", ProviderID: "c", Status: license.StatusActive, Expiry: &past},
		{ID: "l-revoked", ProviderID: "d", Status: license.StatusRevoked},
	}, license.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return r
}

func TestCheck(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	m := metrics.New(prometheus.NewRegistry())

	rep := New(registry(t), time.Minute, log, m).Check()
	assert.Equal(t, 4, rep.Total)
	require.Len(t, rep.ExpiringSoon, 1)
	assert.Equal(t, "l-soon", rep.ExpiringSoon[0].ID)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Licenses.WithLabelValues("active")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Licenses.WithLabelValues("expired")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Licenses.WithLabelValues("revoked")))

	out := buf.String()
	assert.Contains(t, out, "license expiring soon")
	assert.Contains(t, out, "license=l-soon")
	assert.Contains(t, out, "status=expired")
	assert.Contains(t, out, "status=revoked")
}

type countingSource struct{ calls atomic.Int32 }

func (c *countingSource) Report() license.StatusReport {
	c.calls.Add(1)
	return license.StatusReport{GeneratedAt: now}
}

func TestStartRunsImmediately(t *testing.T) {
	src := &countingSource{}
	s := New(src, time.Hour, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return src.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestNewDefaultsInterval(t *testing.T) {
	s := New(&countingSource{}, 0, nil, nil)
	assert.Equal(t, DefaultInterval, s.interval)
}
