package httpapi

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/climate-sources/internal/climate"
	"github.com/i474232898/climate-sources/internal/coverage"
	"github.com/i474232898/climate-sources/internal/engine"
	"github.com/i474232898/climate-sources/internal/license"
)

var validate = validator.New()

// Service is what the HTTP boundary needs from the engine.
type Service interface {
	ResolveSources(lat, lon float64) ([]coverage.Availability, error)
	GetSeries(ctx context.Context, providerID string, lat, lon float64, start, end climate.Date) (*climate.Series, error)
	DownloadSeries(ctx context.Context, providerID string, lat, lon float64, start, end climate.Date) (*climate.Series, error)
	FusedSeries(ctx context.Context, req engine.FusionRequest) (*engine.FusionResult, error)
	LicenseReport() license.StatusReport
}

var _ Service = (*engine.Service)(nil)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Options for RegisterRoutes.
type Options struct {
	// Gatherer backs /metrics; nil falls back to the default registry.
	Gatherer prometheus.Gatherer
	// Checks are run by /health; any failure turns the status to degraded.
	Checks map[string]HealthCheck
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service Service, opts Options) {
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		status := "ok"
		checks := fiber.Map{}
		for name, check := range opts.Checks {
			if err := check(c.UserContext()); err != nil {
				status = "degraded"
				checks[name] = err.Error()
				continue
			}
			checks[name] = "ok"
		}
		return c.JSON(fiber.Map{
			"status":  status,
			"service": "climate-sources",
			"checks":  checks,
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := app.Group("/api/v1")

	v1.Get("/sources", func(c *fiber.Ctx) error {
		var q pointQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		sources, err := service.ResolveSources(q.lat, q.lon)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"latitude":  q.lat,
			"longitude": q.lon,
			"sources":   sources,
		})
	})

	v1.Get("/series", func(c *fiber.Ctx) error {
		var q seriesQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		fetch := service.GetSeries
		if q.Download {
			fetch = service.DownloadSeries
		}
		series, err := fetch(c.UserContext(), q.Provider, q.point.lat, q.point.lon, q.window.start, q.window.end)
		if err != nil {
			return err
		}
		return c.JSON(series)
	})

	v1.Get("/fused", func(c *fiber.Ctx) error {
		var q fusedQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		res, err := service.FusedSeries(c.UserContext(), engine.FusionRequest{
			Latitude:  q.point.lat,
			Longitude: q.point.lon,
			Start:     q.window.start,
			End:       q.window.end,
			Variables: q.Variables,
			Providers: q.Providers,
		})
		if err != nil {
			return err
		}
		return c.JSON(res)
	})

	v1.Get("/licenses/report", func(c *fiber.Ctx) error {
		return c.JSON(service.LicenseReport())
	})
}

// ErrorHandler renders fiber errors and maps the domain error kinds onto status codes.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	body := fiber.Map{
		"error":   true,
		"message": err.Error(),
	}

	var fe *fiber.Error
	var ce *climate.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.As(err, &ce):
		code = statusFor(ce.Kind)
		body["kind"] = ce.Kind
		if ce.ProviderID != "" {
			body["provider"] = ce.ProviderID
		}
		if ce.Constraint != "" {
			body["constraint"] = ce.Constraint
		}
	case errors.Is(err, context.DeadlineExceeded):
		code = fiber.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		code = 499 // client closed request
	}
	return c.Status(code).JSON(body)
}

func statusFor(kind climate.Kind) int {
	switch kind {
	case climate.KindInvalidRequest:
		return fiber.StatusBadRequest
	case climate.KindOutOfRangeWindow:
		return fiber.StatusUnprocessableEntity
	case climate.KindLicenseViolation:
		return fiber.StatusForbidden
	case climate.KindUpstreamUnavailable, climate.KindMalformedResponse:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// pointQuery holds the coordinate query parameters.
type pointQuery struct {
	Lat string `validate:"required,latitude"`
	Lon string `validate:"required,longitude"`

	lat, lon float64
}

func (p *pointQuery) bind(c *fiber.Ctx) error {
	p.Lat = c.Query("lat")
	p.Lon = c.Query("lon")
	if err := validate.Struct(p); err != nil {
		return err
	}
	// Validated above.
	p.lat, _ = strconv.ParseFloat(p.Lat, 64)
	p.lon, _ = strconv.ParseFloat(p.Lon, 64)
	return nil
}

// windowQuery holds the start/end query parameters.
type windowQuery struct {
	Start string `validate:"required"`
	End   string `validate:"required"`

	start, end climate.Date
}

func (w *windowQuery) bind(c *fiber.Ctx) error {
	w.Start = c.Query("start")
	w.End = c.Query("end")
	if err := validate.Struct(w); err != nil {
		return err
	}
	var err error
	if w.start, err = climate.ParseDate(w.Start); err != nil {
		return err
	}
	if w.end, err = climate.ParseDate(w.End); err != nil {
		return err
	}
	return nil
}

type seriesQuery struct {
	Provider string `validate:"required"`
	Download bool

	point  pointQuery
	window windowQuery
}

func (s *seriesQuery) bind(c *fiber.Ctx) error {
	s.Provider = c.Query("provider")
	s.Download = c.QueryBool("download", false)
	if err := validate.Struct(s); err != nil {
		return err
	}
	if err := s.point.bind(c); err != nil {
		return err
	}
	return s.window.bind(c)
}

type fusedQuery struct {
	Variables []string
	Providers []string

	point  pointQuery
	window windowQuery
}

func (f *fusedQuery) bind(c *fiber.Ctx) error {
	f.Variables = splitList(c.Query("variables"))
	f.Providers = splitList(c.Query("providers"))
	if err := f.point.bind(c); err != nil {
		return err
	}
	return f.window.bind(c)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
