package router

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/climate-sources/internal/cache"
	"github.com/i474232898/climate-sources/internal/catalog"
	"github.com/i474232898/climate-sources/internal/climate"
	"github.com/i474232898/climate-sources/internal/metrics"
)

const (
	DefaultMinDays      = 7
	DefaultMaxDays      = 30
	DefaultFetchTimeout = 60 * time.Second
)

// Request asks one provider for a window at a coordinate. Empty Variables means every
// variable the provider supports.
type Request struct {
	ProviderID string
	Latitude   float64
	Longitude  float64
	Start      climate.Date
	End        climate.Date
	Variables  []string
}

func (r Request) Window() climate.Window {
	return climate.Window{Start: r.Start, End: r.End}
}

// Router decides, per provider, which endpoint serves a window and assembles the series.
type Router struct {
	catalog      *catalog.Catalog
	upstreams    map[string]climate.Upstream
	cache        *cache.Layer
	log          *slog.Logger
	metrics      *metrics.Metrics
	minDays      int
	maxDays      int
	fetchTimeout time.Duration
	now          func() time.Time
}

// Option configures a Router.
type Option func(*Router)

func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithWindowLimits sets the accepted window length in days, both ends inclusive.
func WithWindowLimits(minDays, maxDays int) Option {
	return func(r *Router) {
		if minDays > 0 {
			r.minDays = minDays
		}
		if maxDays > 0 {
			r.maxDays = maxDays
		}
	}
}

// WithFetchTimeout bounds the upstream work of one Fetch, independently of the caller.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

// WithClock overrides time.Now, which defines "today" for planning.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// New wires the upstream clients. Each one is wrapped with the rate limits of its descriptor.
// Upstreams must correspond to catalog entries; catalog entries without an upstream fail at
// fetch time.
func New(cat *catalog.Catalog, upstreams []climate.Upstream, c *cache.Layer, opts ...Option) (*Router, error) {
	r := &Router{
		catalog:      cat,
		upstreams:    make(map[string]climate.Upstream, len(upstreams)),
		cache:        c,
		log:          slog.Default(),
		minDays:      DefaultMinDays,
		maxDays:      DefaultMaxDays,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.minDays > r.maxDays {
		return nil, fmt.Errorf("window limits: min %d exceeds max %d", r.minDays, r.maxDays)
	}

	for _, u := range upstreams {
		id := u.ID()
		desc, ok := cat.Get(id)
		if !ok {
			return nil, fmt.Errorf("upstream %q has no catalog entry", id)
		}
		if _, dup := r.upstreams[id]; dup {
			return nil, fmt.Errorf("upstream %q registered twice", id)
		}
		r.upstreams[id] = NewLimitedUpstream(u, desc.RateLimit)
	}
	return r, nil
}

// Today is the planning date.
func (r *Router) Today() climate.Date {
	return climate.DateOf(r.now())
}

// ValidateWindow checks order and length against the router's window limits.
func (r *Router) ValidateWindow(start, end climate.Date) error {
	return climate.ValidateWindowLength(climate.Window{Start: start, End: end}, r.minDays, r.maxDays)
}

// Plan classifies the window for a provider without touching the network.
func (r *Router) Plan(providerID string, start, end climate.Date) (Plan, error) {
	desc, ok := r.catalog.Get(providerID)
	if !ok {
		return Plan{}, climate.InvalidRequest("provider",
			fmt.Sprintf("provider %q is not registered", providerID), climate.ErrUnknownProvider)
	}
	return planFor(desc, climate.Window{Start: start, End: end}, r.Today())
}

// Fetch validates the request, plans it and returns the provider's series for the window,
// projected to the requested variables. Validation and range checks happen before any
// upstream call. If ctx is done first the caller gets ctx.Err() while the legs keep running,
// bounded by the fetch timeout, so their results still reach the cache.
func (r *Router) Fetch(ctx context.Context, req Request) (*climate.Series, error) {
	desc, ok := r.catalog.Get(req.ProviderID)
	if !ok {
		return nil, climate.InvalidRequest("provider",
			fmt.Sprintf("provider %q is not registered", req.ProviderID), climate.ErrUnknownProvider)
	}
	if err := climate.ValidateCoordinate(req.Latitude, req.Longitude); err != nil {
		return nil, err
	}
	w := req.Window()
	if err := climate.ValidateWindowLength(w, r.minDays, r.maxDays); err != nil {
		return nil, err
	}
	variables, err := requestedVariables(desc, req.Variables)
	if err != nil {
		return nil, err
	}

	plan, err := planFor(desc, w, r.Today())
	r.metrics.IncPlan(string(plan.Strategy))
	if err != nil {
		return nil, err
	}

	upstream, ok := r.upstreams[desc.ID]
	if !ok {
		return nil, climate.NewError(climate.KindUpstreamUnavailable, desc.ID, "no client configured", nil)
	}

	type result struct {
		series *climate.Series
		err    error
	}
	done := make(chan result, 1)

	workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fetchTimeout)
	go func() {
		defer cancel()
		s, err := r.execute(workCtx, desc, upstream, plan, req)
		done <- result{series: s, err: err}
	}()

	select {
	case <-ctx.Done():
		r.log.Info("caller abandoned fetch, legs continue in background",
			"provider", desc.ID, "window", w.String(), "strategy", plan.Strategy)
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return res.series.Project(variables), nil
	}
}

// execute runs every leg of the plan. Hybrid legs run concurrently and are joined before
// concatenation. When a leg fails the fetch fails, with the archive leg's error reported
// first; a leg that succeeded keeps its cache entry.
func (r *Router) execute(ctx context.Context, desc climate.ProviderDescriptor, u climate.Upstream, plan Plan, req Request) (*climate.Series, error) {
	parts := make([]*climate.Series, len(plan.Legs))
	errs := make([]error, len(plan.Legs))

	var g errgroup.Group
	for i, leg := range plan.Legs {
		i, leg := i, leg
		g.Go(func() error {
			parts[i], errs[i] = r.fetchLeg(ctx, desc, u, leg, req)
			return errs[i]
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	out := &climate.Series{
		ProviderID: desc.ID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Start:      plan.Window.Start,
		End:        plan.Window.End,
		APIUsed:    plan.API(),
		Variables:  slices.Clone(desc.Variables),
		Records:    make([]climate.Record, 0, plan.Window.Days()),
	}
	for _, p := range parts {
		out.Records = append(out.Records, p.Records...)
	}
	if err := out.Validate(); err != nil {
		return nil, climate.Malformed(desc.ID, "legs do not abut", err)
	}
	return out, nil
}

// fetchLeg serves one leg from cache, or with exactly one upstream call on a miss. Only a
// complete, validated series is written back.
func (r *Router) fetchLeg(ctx context.Context, desc climate.ProviderDescriptor, u climate.Upstream, leg Leg, req Request) (*climate.Series, error) {
	key := cache.Key(desc.ID, req.Latitude, req.Longitude, leg.Window)
	if s, ok := r.cache.Get(ctx, key); ok {
		r.log.Debug("cache hit", "key", key)
		return s, nil
	}

	q := climate.Query{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Window:    leg.Window,
		Variables: slices.Clone(desc.Variables),
	}

	started := time.Now()
	s, err := u.Fetch(ctx, leg.API, q)
	r.metrics.ObserveUpstream(desc.ID, string(leg.API), time.Since(started))
	if err != nil {
		r.metrics.IncUpstreamError(desc.ID, string(climate.KindOf(err)))
		r.log.Warn("upstream fetch failed",
			"provider", desc.ID, "api", leg.API, "window", leg.Window.String(), "error", err)
		return nil, err
	}

	s, err = normalize(desc, leg, q, s)
	if err != nil {
		r.metrics.IncUpstreamError(desc.ID, string(climate.KindMalformedResponse))
		return nil, err
	}

	r.cache.Set(ctx, key, s)
	return s, nil
}

// normalize enforces the parsing invariant and completes the leg to its window.
func normalize(desc climate.ProviderDescriptor, leg Leg, q climate.Query, s *climate.Series) (*climate.Series, error) {
	if s == nil {
		return nil, climate.Malformed(desc.ID, "empty series", nil)
	}
	if !slices.Equal(s.Variables, q.Variables) {
		return nil, climate.Malformed(desc.ID,
			fmt.Sprintf("variables %v do not match the requested %v", s.Variables, q.Variables), nil)
	}

	out := *s
	out.Records = slices.Clone(s.Records)
	out.ProviderID = desc.ID
	out.Latitude, out.Longitude = q.Latitude, q.Longitude
	out.APIUsed = leg.API
	if err := out.Complete(leg.Window); err != nil {
		return nil, climate.Malformed(desc.ID, "records out of order", err)
	}
	for i := range out.Records {
		if out.Records[i].Provenance == "" {
			out.Records[i].Provenance = desc.ID
		}
	}
	return &out, nil
}

func requestedVariables(desc climate.ProviderDescriptor, vars []string) ([]string, error) {
	if len(vars) == 0 {
		return slices.Clone(desc.Variables), nil
	}
	for _, v := range vars {
		if !climate.IsKnownVariable(v) {
			return nil, climate.InvalidRequest("variables", fmt.Sprintf("unknown variable %q", v), nil)
		}
		if !desc.SupportsVariable(v) {
			return nil, climate.InvalidRequest("variables",
				fmt.Sprintf("provider %s does not supply %q", desc.ID, v), nil)
		}
	}
	return slices.Clone(vars), nil
}
