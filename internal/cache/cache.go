package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/i474232898/climate-sources/internal/climate"
	"github.com/i474232898/climate-sources/internal/metrics"
)

// DefaultOpTimeout bounds a single backend round trip.
const DefaultOpTimeout = 500 * time.Millisecond

// Backend is a byte store with per-key TTL.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Layer caches Series by key. Every failure of the backend or the codec degrades to a miss,
// so callers never see a cache error. A Layer with a nil backend caches nothing.
type Layer struct {
	backend   Backend
	log       *slog.Logger
	metrics   *metrics.Metrics
	opTimeout time.Duration
	now       func() time.Time
}

// Option configures a Layer.
type Option func(*Layer)

func WithLogger(l *slog.Logger) Option {
	return func(c *Layer) {
		if l != nil {
			c.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Layer) { c.metrics = m }
}

func WithOpTimeout(d time.Duration) Option {
	return func(c *Layer) {
		if d > 0 {
			c.opTimeout = d
		}
	}
}

// WithClock overrides time.Now, which drives TTL selection.
func WithClock(now func() time.Time) Option {
	return func(c *Layer) {
		if now != nil {
			c.now = now
		}
	}
}

func New(backend Backend, opts ...Option) *Layer {
	c := &Layer{
		backend:   backend,
		log:       slog.Default(),
		opTimeout: DefaultOpTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether a backend is configured.
func (c *Layer) Enabled() bool {
	return c != nil && c.backend != nil
}

// Get returns the cached series for key. Absent, expired, corrupt and unreachable entries
// all read as a miss.
func (c *Layer) Get(ctx context.Context, key string) (*climate.Series, bool) {
	if !c.Enabled() {
		return nil, false
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	raw, ok, err := c.backend.Get(opCtx, key)
	if err != nil {
		c.unavailable("get", key, err)
		c.metrics.IncCacheLookup("error")
		return nil, false
	}
	if !ok {
		c.metrics.IncCacheLookup("miss")
		return nil, false
	}

	s, err := decode(raw)
	if err != nil {
		c.log.Warn("dropping unreadable cache entry", "key", key, "error", err)
		c.metrics.IncCacheLookup("error")
		if derr := c.backend.Delete(opCtx, key); derr != nil {
			c.unavailable("delete", key, derr)
		}
		return nil, false
	}
	c.metrics.IncCacheLookup("hit")
	return s, true
}

// Set writes s under key. Forecast payloads live TTLForecast whatever their start; everything
// else gets the TTL implied by the series start date.
func (c *Layer) Set(ctx context.Context, key string, s *climate.Series) {
	if !c.Enabled() || s == nil {
		return
	}
	raw, err := encode(s, c.now())
	if err != nil {
		c.log.Warn("cache encode failed", "key", key, "error", err)
		c.metrics.IncCacheWrite("error")
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	ttl := c.TTLFor(s.Start)
	if s.APIUsed == climate.APIForecast {
		ttl = TTLForecast
	}
	if err := c.backend.Set(opCtx, key, raw, ttl); err != nil {
		c.unavailable("set", key, err)
		c.metrics.IncCacheWrite("error")
		return
	}
	c.metrics.IncCacheWrite("ok")
}

func (c *Layer) Delete(ctx context.Context, key string) {
	if !c.Enabled() {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.backend.Delete(opCtx, key); err != nil {
		c.unavailable("delete", key, err)
	}
}

// TTLFor applies the data-age rule against the layer's clock.
func (c *Layer) TTLFor(start climate.Date) time.Duration {
	now := time.Now
	if c != nil {
		now = c.now
	}
	return TTLFor(start, climate.DateOf(now()))
}

func (c *Layer) unavailable(op, key string, err error) {
	c.log.Warn("cache backend unavailable, continuing without cache",
		"op", op,
		"key", key,
		"error", climate.NewError(climate.KindCacheUnavailable, "", op, err),
	)
}
