package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/climate-sources/internal/catalog"
	"github.com/i474232898/climate-sources/internal/climate"
	"github.com/i474232898/climate-sources/internal/common"
)

const nwsAccept = "application/geo+json"

// gridState is a step of the two-request NWS grid fetch.
type gridState int

const (
	gridIdle gridState = iota
	gridMetadataFetch
	gridDataFetch
	gridDone
	gridFailed
)

func (s gridState) String() string {
	switch s {
	case gridIdle:
		return "idle"
	case gridMetadataFetch:
		return "metadata_fetch"
	case gridDataFetch:
		return "data_fetch"
	case gridDone:
		return "done"
	case gridFailed:
		return "failed"
	}
	return "unknown"
}

type nwsLayer struct {
	UOM    string `json:"uom"`
	Values []struct {
		ValidTime string   `json:"validTime"`
		Value     *float64 `json:"value"`
	} `json:"values"`
}

type nwsGrid struct {
	Properties struct {
		Temperature               *nwsLayer `json:"temperature"`
		RelativeHumidity          *nwsLayer `json:"relativeHumidity"`
		WindSpeed                 *nwsLayer `json:"windSpeed"`
		QuantitativePrecipitation *nwsLayer `json:"quantitativePrecipitation"`
	} `json:"properties"`
}

// gridFetch drives Idle → MetadataFetch → DataFetch → Done, or Failed from either fetch.
type gridFetch struct {
	state   gridState
	trace   []gridState
	gridURL string
	grid    nwsGrid
	err     error
}

func (g *gridFetch) transition(next gridState) {
	g.state = next
	g.trace = append(g.trace, next)
}

func (g *gridFetch) fail(err error) {
	g.err = err
	g.transition(gridFailed)
}

// NWS reads api.weather.gov: /points resolves the forecast office grid, then the raw
// gridpoint layers are expanded to hours and aggregated to days.
type NWS struct {
	client
	baseURL string
}

func NewNWS(cfg HTTPClientConfig) *NWS {
	return &NWS{
		client:  newClient(catalog.NWS, cfg),
		baseURL: "https://api.weather.gov",
	}
}

func (p *NWS) Fetch(ctx context.Context, api climate.API, q climate.Query) (*climate.Series, error) {
	if err := p.requireAPI(api, climate.APIForecast); err != nil {
		return nil, err
	}
	g := p.run(ctx, q)
	if g.state == gridFailed {
		return nil, g.err
	}
	return p.aggregate(api, q, g.grid)
}

func (p *NWS) run(ctx context.Context, q climate.Query) *gridFetch {
	g := &gridFetch{state: gridIdle, trace: []gridState{gridIdle}}
	for {
		switch g.state {
		case gridIdle:
			g.transition(gridMetadataFetch)

		case gridMetadataFetch:
			var points struct {
				Properties struct {
					ForecastGridData string `json:"forecastGridData"`
				} `json:"properties"`
			}
			u := fmt.Sprintf("%s/points/%.4f,%.4f", p.baseURL, q.Latitude, q.Longitude)
			if err := p.getJSON(ctx, u, nwsAccept, &points); err != nil {
				g.fail(err)
				continue
			}
			if points.Properties.ForecastGridData == "" {
				g.fail(climate.Malformed(p.id, "points response has no forecastGridData", nil))
				continue
			}
			g.gridURL = points.Properties.ForecastGridData
			g.transition(gridDataFetch)

		case gridDataFetch:
			if err := p.getJSON(ctx, g.gridURL, nwsAccept, &g.grid); err != nil {
				g.fail(err)
				continue
			}
			g.transition(gridDone)

		case gridDone, gridFailed:
			return g
		}
	}
}

func (p *NWS) aggregate(api climate.API, q climate.Query, grid nwsGrid) (*climate.Series, error) {
	props := grid.Properties
	if props.Temperature == nil {
		return nil, climate.Malformed(p.id, "gridpoint has no temperature layer", nil)
	}

	samples := newHourlySamples()
	err := p.expand(props.Temperature, func(at time.Time, v float64, _ int) {
		samples.addTemperature(at, v)
	})
	if err != nil {
		return nil, err
	}
	if props.RelativeHumidity != nil {
		err = p.expand(props.RelativeHumidity, func(at time.Time, v float64, _ int) {
			samples.add(at, climate.VarHumidityMean, v)
		})
		if err != nil {
			return nil, err
		}
	}
	if props.WindSpeed != nil {
		err = p.expand(props.WindSpeed, func(at time.Time, v float64, _ int) {
			samples.add(at, climate.VarWindSpeedMean, v)
		})
		if err != nil {
			return nil, err
		}
	}
	if props.QuantitativePrecipitation != nil {
		// Accumulations are spread evenly over the hours of their interval.
		err = p.expand(props.QuantitativePrecipitation, func(at time.Time, v float64, hours int) {
			samples.add(at, climate.VarPrecipSum, v/float64(hours))
		})
		if err != nil {
			return nil, err
		}
	}
	return samples.series(p.id, api, q), nil
}

// expand converts a layer to SI units and calls fn once per hour covered by each value.
func (p *NWS) expand(layer *nwsLayer, fn func(at time.Time, v float64, hours int)) error {
	convert, err := p.unitConverter(layer.UOM)
	if err != nil {
		return err
	}
	for _, entry := range layer.Values {
		if entry.Value == nil {
			continue
		}
		start, hours, err := parseValidTime(entry.ValidTime)
		if err != nil {
			return climate.Malformed(p.id, "validTime", err)
		}
		v := convert(*entry.Value)
		for h := 0; h < hours; h++ {
			fn(start.Add(time.Duration(h)*time.Hour), v, hours)
		}
	}
	return nil
}

func (p *NWS) unitConverter(uom string) (func(float64) float64, error) {
	switch {
	case common.HasAny(uom, "degF"):
		return func(v float64) float64 { return (v - 32) * 5 / 9 }, nil
	case common.HasAny(uom, "km_h-1"):
		return func(v float64) float64 { return v / 3.6 }, nil
	case common.HasAny(uom, "degC", "percent", "m_s-1", "wmoUnit:mm"), uom == "":
		return func(v float64) float64 { return v }, nil
	}
	return nil, climate.Malformed(p.id, fmt.Sprintf("unsupported unit %q", uom), nil)
}

// parseValidTime splits "2024-06-15T12:00:00+00:00/PT3H" into its start and whole hours.
func parseValidTime(s string) (time.Time, int, error) {
	startRaw, durRaw, ok := strings.Cut(s, "/")
	if !ok {
		return time.Time{}, 0, fmt.Errorf("validTime %q has no duration", s)
	}
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return time.Time{}, 0, err
	}
	hours, err := parseISODurationHours(durRaw)
	if err != nil {
		return time.Time{}, 0, err
	}
	return start.UTC(), hours, nil
}

// parseISODurationHours understands the P[nD][T[nH][nM]] subset used by NWS.
func parseISODurationHours(s string) (int, error) {
	rest, ok := strings.CutPrefix(s, "P")
	if !ok {
		return 0, fmt.Errorf("duration %q must start with P", s)
	}
	datePart, timePart, _ := strings.Cut(rest, "T")

	hours := 0
	if datePart != "" {
		n, ok := strings.CutSuffix(datePart, "D")
		if !ok {
			return 0, fmt.Errorf("duration %q: unsupported date part", s)
		}
		days, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("duration %q: %w", s, err)
		}
		hours += days * 24
	}
	if timePart != "" {
		if h, after, found := strings.Cut(timePart, "H"); found {
			n, err := strconv.Atoi(h)
			if err != nil {
				return 0, fmt.Errorf("duration %q: %w", s, err)
			}
			hours += n
			timePart = after
		}
		if timePart != "" && !strings.HasSuffix(timePart, "M") {
			return 0, fmt.Errorf("duration %q: unsupported time part", s)
		}
	}
	if hours <= 0 {
		return 0, fmt.Errorf("duration %q is shorter than an hour", s)
	}
	return hours, nil
}
