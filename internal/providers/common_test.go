package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/climate-sources/internal/climate"
)

func testHTTPConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Client: &http.Client{Timeout: 2 * time.Second},
		Backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
		UserAgent: "climate-sources-test",
	}
}

// flaky fails the first n requests with status, then serves body.
func flaky(t *testing.T, n int32, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= n {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	srv, calls := flaky(t, 2, http.StatusServiceUnavailable, `{"ok":true}`)
	c := newClient("p", testHTTPConfig())

	var out struct{ OK bool }
	require.NoError(t, c.getJSON(context.Background(), srv.URL, "application/json", &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSON_RetriesRateLimit(t *testing.T) {
	srv, calls := flaky(t, 1, http.StatusTooManyRequests, `{}`)
	c := newClient("p", testHTTPConfig())

	var out map[string]any
	require.NoError(t, c.getJSON(context.Background(), srv.URL, "application/json", &out))
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetJSON_ExhaustedRetries(t *testing.T) {
	srv, calls := flaky(t, 100, http.StatusBadGateway, `{}`)
	c := newClient("p", testHTTPConfig())

	var out map[string]any
	err := c.getJSON(context.Background(), srv.URL, "application/json", &out)
	require.ErrorIs(t, err, climate.ErrUpstreamUnavailable)
	assert.True(t, climate.IsRetryable(err))
	assert.Equal(t, "p", climate.ProviderOf(err))
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus MaxRetries")
}

func TestGetJSON_ClientErrorIsNotRetried(t *testing.T) {
	srv, calls := flaky(t, 100, http.StatusNotFound, `{}`)
	c := newClient("p", testHTTPConfig())

	var out map[string]any
	err := c.getJSON(context.Background(), srv.URL, "application/json", &out)
	require.ErrorIs(t, err, climate.ErrUpstreamUnavailable)
	assert.False(t, climate.IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetJSON_BadBodyIsMalformed(t *testing.T) {
	srv, _ := flaky(t, 0, 0, `{"broken":`)
	c := newClient("p", testHTTPConfig())

	var out map[string]any
	err := c.getJSON(context.Background(), srv.URL, "application/json", &out)
	assert.ErrorIs(t, err, climate.ErrMalformedResponse)
	assert.False(t, climate.IsRetryable(err))
}

func TestGetJSON_SendsHeaders(t *testing.T) {
	var ua, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua, accept = r.UserAgent(), r.Header.Get("Accept")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newClient("p", testHTTPConfig())
	var out map[string]any
	require.NoError(t, c.getJSON(context.Background(), srv.URL, nwsAccept, &out))
	assert.Equal(t, "climate-sources-test", ua)
	assert.Equal(t, nwsAccept, accept)
}

func TestGetJSON_ContextCanceled(t *testing.T) {
	srv, _ := flaky(t, 100, http.StatusServiceUnavailable, `{}`)
	cfg := testHTTPConfig()
	cfg.Backoff.InitialInterval = time.Second
	cfg.Backoff.MaxInterval = time.Second
	c := newClient("p", cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out map[string]any
	err := c.getJSON(ctx, srv.URL, "application/json", &out)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoRequest_NoClient(t *testing.T) {
	c := newClient("p", HTTPClientConfig{Backoff: BackoffConfig{InitialInterval: time.Millisecond}})
	var out map[string]any
	err := c.getJSON(context.Background(), "http://example.invalid", "application/json", &out)
	assert.ErrorIs(t, err, errNoHTTPClient)
	assert.ErrorIs(t, err, climate.ErrUpstreamUnavailable)
}

func TestRequireAPI(t *testing.T) {
	c := newClient("p", testHTTPConfig())
	assert.NoError(t, c.requireAPI(climate.APIArchive, climate.APIArchive))
	assert.ErrorIs(t, c.requireAPI(climate.APIForecast, climate.APIArchive), climate.ErrInvalidRequest)
}
