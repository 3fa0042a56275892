package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/i474232898/climate-sources/internal/catalog"
	"github.com/i474232898/climate-sources/internal/climate"
)

type metTimeseries struct {
	Time time.Time `json:"time"`
	Data struct {
		Instant struct {
			Details struct {
				AirTemperature   *float64 `json:"air_temperature"`
				RelativeHumidity *float64 `json:"relative_humidity"`
				WindSpeed        *float64 `json:"wind_speed"`
			} `json:"details"`
		} `json:"instant"`
		Next1Hours *metNextHours `json:"next_1_hours,omitempty"`
		Next6Hours *metNextHours `json:"next_6_hours,omitempty"`
	} `json:"data"`
}

type metNextHours struct {
	Details struct {
		PrecipitationAmount *float64 `json:"precipitation_amount"`
	} `json:"details"`
}

// METNorway reads locationforecast/2.0/compact and aggregates the hourly steps to days.
// The API rejects requests without an identifying User-Agent.
type METNorway struct {
	client
	baseURL string
}

func NewMETNorway(cfg HTTPClientConfig) *METNorway {
	return &METNorway{
		client:  newClient(catalog.METNorway, cfg),
		baseURL: "https://api.met.no/weatherapi/locationforecast/2.0/compact",
	}
}

func (p *METNorway) Fetch(ctx context.Context, api climate.API, q climate.Query) (*climate.Series, error) {
	if err := p.requireAPI(api, climate.APIForecast); err != nil {
		return nil, err
	}

	// MET Norway asks clients to truncate coordinates to 4 decimals.
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%.4f", q.Latitude))
	values.Set("lon", fmt.Sprintf("%.4f", q.Longitude))

	var payload struct {
		Properties struct {
			Timeseries []metTimeseries `json:"timeseries"`
		} `json:"properties"`
	}
	if err := p.getJSON(ctx, p.baseURL+"?"+values.Encode(), "application/json", &payload); err != nil {
		return nil, err
	}
	if payload.Properties.Timeseries == nil {
		return nil, climate.Malformed(p.id, "missing properties.timeseries", nil)
	}
	return p.aggregate(api, q, payload.Properties.Timeseries), nil
}

// aggregate prefers the one-hour precipitation of a step and falls back to the six-hour
// block once the forecast switches to 6h resolution.
func (p *METNorway) aggregate(api climate.API, q climate.Query, steps []metTimeseries) *climate.Series {
	samples := newHourlySamples()
	for _, step := range steps {
		at := step.Time
		d := step.Data.Instant.Details
		if d.AirTemperature != nil {
			samples.addTemperature(at, *d.AirTemperature)
		}
		if d.RelativeHumidity != nil {
			samples.add(at, climate.VarHumidityMean, *d.RelativeHumidity)
		}
		if d.WindSpeed != nil {
			samples.add(at, climate.VarWindSpeedMean, *d.WindSpeed)
		}

		switch {
		case step.Data.Next1Hours != nil && step.Data.Next1Hours.Details.PrecipitationAmount != nil:
			samples.add(at, climate.VarPrecipSum, *step.Data.Next1Hours.Details.PrecipitationAmount)
		case step.Data.Next1Hours == nil && step.Data.Next6Hours != nil && step.Data.Next6Hours.Details.PrecipitationAmount != nil:
			samples.add(at, climate.VarPrecipSum, *step.Data.Next6Hours.Details.PrecipitationAmount)
		}
	}
	return samples.series(p.id, api, q)
}
