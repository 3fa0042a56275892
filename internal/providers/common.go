package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/climate-sources/internal/climate"
)

// DefaultUserAgent identifies the service to upstreams that require it (MET Norway, NWS).
const DefaultUserAgent = "climate-sources/1.0 (+https://github.com/i474232898/climate-sources)"

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client    *http.Client
	Backoff   BackoffConfig
	UserAgent string
}

// DefaultHTTPClientConfig returns a 30s client with 3 retries.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Client: &http.Client{Timeout: 30 * time.Second},
		Backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		UserAgent: DefaultUserAgent,
	}
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// statusError is a non-2xx answer. Only 429 and 5xx are worth another attempt.
type statusError struct {
	code int
	kind error
}

func (e *statusError) Error() string { return fmt.Sprintf("%v: %d", e.kind, e.code) }
func (e *statusError) Unwrap() error { return e.kind }

func classifyStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return &statusError{code: code, kind: errRateLimited}
	case code >= 500:
		return &statusError{code: code, kind: errServerError}
	case code < 200 || code >= 300:
		return &statusError{code: code, kind: errUnexpected}
	}
	return nil
}

func retryable(err error) bool {
	return !errors.Is(err, errUnexpected)
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doRequestWithResilience executes the HTTP request with retries, exponential backoff,
// and a circuit breaker. Failures come back as UpstreamUnavailable; 4xx answers other than
// 429 are not retried and are marked non-retryable.
func doRequestWithResilience(
	ctx context.Context,
	providerID string,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, climate.Unavailable(providerID, "", errNoHTTPClient)
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, climate.Unavailable(providerID, "", errInvalidConfig)
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, climate.NewError(climate.KindInvalidRequest, providerID, "build request", err)
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			if statusErr := classifyStatus(resp.StatusCode); statusErr != nil {
				_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
				resp.Body.Close()
				return nil, statusErr
			}
			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, climate.Unavailable(providerID, "unexpected result type from circuit breaker", nil)
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, climate.Unavailable(providerID, "", fmt.Errorf("%w: %v", errCircuitOpen, err))
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			e := climate.Unavailable(providerID, "request rejected", err)
			e.Retryable = false
			return nil, e
		}

		lastErr = err
		if attempt >= cfg.Backoff.MaxRetries {
			return nil, climate.Unavailable(providerID,
				fmt.Sprintf("giving up after %d attempts", attempt+1), lastErr)
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

// client is the HTTP plumbing shared by every provider.
type client struct {
	id      string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func newClient(id string, cfg HTTPClientConfig) client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return client{id: id, httpCfg: cfg, circuit: newBreaker(id)}
}

func (c *client) ID() string { return c.id }

// getJSON fetches u and decodes the body into dst. Decoding failures are MalformedResponse.
func (c *client) getJSON(ctx context.Context, u string, accept string, dst any) error {
	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.httpCfg.UserAgent)
		req.Header.Set("Accept", accept)
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, c.id, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return climate.Malformed(c.id, "decode response", err)
	}
	return nil
}

func (c *client) requireAPI(api climate.API, supported ...climate.API) error {
	for _, s := range supported {
		if s == api {
			return nil
		}
	}
	return climate.NewError(climate.KindInvalidRequest, c.id, fmt.Sprintf("api %q is not offered", api), nil)
}

// newSeries prepares an empty series answering q.
func newSeries(id string, api climate.API, q climate.Query) *climate.Series {
	return &climate.Series{
		ProviderID: id,
		Latitude:   q.Latitude,
		Longitude:  q.Longitude,
		Start:      q.Window.Start,
		End:        q.Window.End,
		APIUsed:    api,
		Variables:  append([]string(nil), q.Variables...),
	}
}
