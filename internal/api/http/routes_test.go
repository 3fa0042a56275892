package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/climate-sources/internal/climate"
	"github.com/i474232898/climate-sources/internal/coverage"
	"github.com/i474232898/climate-sources/internal/engine"
	"github.com/i474232898/climate-sources/internal/license"
)

type fakeService struct {
	err        error
	lastFusion engine.FusionRequest
	downloaded bool
}

func (f *fakeService) ResolveSources(lat, lon float64) ([]coverage.Availability, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []coverage.Availability{{ProviderID: "open_meteo", Available: true, Priority: 2}}, nil
}

func (f *fakeService) GetSeries(_ context.Context, providerID string, lat, lon float64, start, end climate.Date) (*climate.Series, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &climate.Series{ProviderID: providerID, Latitude: lat, Longitude: lon, Start: start, End: end}, nil
}

func (f *fakeService) DownloadSeries(ctx context.Context, providerID string, lat, lon float64, start, end climate.Date) (*climate.Series, error) {
	f.downloaded = true
	return f.GetSeries(ctx, providerID, lat, lon, start, end)
}

func (f *fakeService) FusedSeries(_ context.Context, req engine.FusionRequest) (*engine.FusionResult, error) {
	f.lastFusion = req
	if f.err != nil {
		return nil, f.err
	}
	return &engine.FusionResult{RequestID: "req-1", Providers: []string{"open_meteo"}}, nil
}

func (f *fakeService) LicenseReport() license.StatusReport {
	return license.StatusReport{Total: 5}
}

func newApp(svc Service) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, svc, Options{
		Gatherer: prometheus.NewRegistry(),
		Checks: map[string]HealthCheck{
			"cache": func(context.Context) error { return nil },
		},
	})
	return app
}

func do(t *testing.T, app *fiber.App, target string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp.StatusCode, body
}

const window = "&start=2024-06-01&end=2024-06-10"

func TestHealthAndMetrics(t *testing.T) {
	app := newApp(&fakeService{})

	code, body := do(t, app, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, _ = do(t, app, "/metrics")
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthDegraded(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app, &fakeService{}, Options{Checks: map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
	}})

	_, body := do(t, app, "/health")
	assert.Equal(t, "degraded", body["status"])
}

func TestSources(t *testing.T) {
	app := newApp(&fakeService{})

	code, body := do(t, app, "/api/v1/sources?lat=48.85&lon=2.35")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["sources"], 1)

	code, _ = do(t, app, "/api/v1/sources?lat=95&lon=2.35")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, app, "/api/v1/sources?lon=2.35")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSeries(t *testing.T) {
	svc := &fakeService{}
	app := newApp(svc)

	code, body := do(t, app, "/api/v1/series?provider=nasa_power&lat=48.85&lon=2.35"+window)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "nasa_power", body["provider_id"])
	assert.False(t, svc.downloaded)

	code, _ = do(t, app, "/api/v1/series?provider=nasa_power&lat=48.85&lon=2.35&download=true"+window)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, svc.downloaded)

	code, _ = do(t, app, "/api/v1/series?lat=48.85&lon=2.35"+window)
	assert.Equal(t, http.StatusBadRequest, code, "provider is required")

	code, _ = do(t, app, "/api/v1/series?provider=nasa_power&lat=48.85&lon=2.35&start=June&end=2024-06-10")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestFusedPassesListsThrough(t *testing.T) {
	svc := &fakeService{}
	app := newApp(svc)

	code, body := do(t, app, "/api/v1/fused?lat=40.71&lon=-74.0&variables=temperature_2m_max,+temperature_2m_min&providers=nws,open_meteo"+window)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "req-1", body["request_id"])
	assert.Equal(t, []string{climate.VarTempMax, climate.VarTempMin}, svc.lastFusion.Variables)
	assert.Equal(t, []string{"nws", "open_meteo"}, svc.lastFusion.Providers)
	assert.Equal(t, climate.MustParseDate("2024-06-01"), svc.lastFusion.Start)
}

func TestLicenseReport(t *testing.T) {
	code, body := do(t, newApp(&fakeService{}), "/api/v1/licenses/report")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 5, body["total"])
}

func TestErrorKindsMapToStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     int
		provider string
	}{
		{"invalid", climate.InvalidRequest("window_length", "too short", nil), http.StatusBadRequest, ""},
		{"out of range", climate.OutOfRange("nasa_power", "history_floor", "too early"), http.StatusUnprocessableEntity, "nasa_power"},
		{"license", climate.LicenseViolation("weatherapi", "non-commercial"), http.StatusForbidden, "weatherapi"},
		{"unavailable", climate.Unavailable("nws", "503 after retries", nil), http.StatusBadGateway, "nws"},
		{"malformed", climate.Malformed("met_norway", "no timeseries", nil), http.StatusBadGateway, "met_norway"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, ""},
		{"other", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := newApp(&fakeService{err: tc.err})
			code, body := do(t, app, "/api/v1/fused?lat=48.85&lon=2.35"+window)
			assert.Equal(t, tc.code, code)
			assert.Equal(t, true, body["error"])
			if tc.provider != "" {
				assert.Equal(t, tc.provider, body["provider"])
			}
		})
	}
}
