package router

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/i474232898/climate-sources/internal/climate"
)

// LimitedUpstream wraps an Upstream with a token bucket and a concurrency cap so that one
// provider's courtesy limits are honoured across all requests.
type LimitedUpstream struct {
	upstream climate.Upstream
	limiter  *rate.Limiter
	sem      *semaphore.Weighted
}

// NewLimitedUpstream builds the wrapper from rate-limit hints. A non-positive rate means
// unlimited; a non-positive MaxConcurrent means no concurrency cap.
func NewLimitedUpstream(u climate.Upstream, rl climate.RateLimit) *LimitedUpstream {
	limit := rate.Inf
	if rl.RequestsPerSecond > 0 {
		limit = rate.Limit(rl.RequestsPerSecond)
	}
	burst := rl.Burst
	if burst <= 0 {
		burst = 1
	}

	lu := &LimitedUpstream{
		upstream: u,
		limiter:  rate.NewLimiter(limit, burst),
	}
	if rl.MaxConcurrent > 0 {
		lu.sem = semaphore.NewWeighted(int64(rl.MaxConcurrent))
	}
	return lu
}

func (l *LimitedUpstream) ID() string { return l.upstream.ID() }

// Fetch waits for a slot and a token, or for ctx, before delegating. A canceled ctx comes back
// as is; a token that cannot arrive before the deadline is an unavailable, non-retryable error.
func (l *LimitedUpstream) Fetch(ctx context.Context, api climate.API, q climate.Query) (*climate.Series, error) {
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer l.sem.Release(1)
	}
	if err := l.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e := climate.Unavailable(l.ID(), "rate limit wait", err)
		e.Retryable = false
		return nil, e
	}
	return l.upstream.Fetch(ctx, api, q)
}

var _ climate.Upstream = (*LimitedUpstream)(nil)
