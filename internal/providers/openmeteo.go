package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/i474232898/climate-sources/internal/catalog"
	"github.com/i474232898/climate-sources/internal/climate"
)

// OpenMeteo serves both the ERA5-backed archive and the forecast endpoint. Canonical variable
// names are Open-Meteo's own daily parameter names.
type OpenMeteo struct {
	client
	archiveURL  string
	forecastURL string
}

func NewOpenMeteo(cfg HTTPClientConfig) *OpenMeteo {
	return &OpenMeteo{
		client:      newClient(catalog.OpenMeteo, cfg),
		archiveURL:  "https://archive-api.open-meteo.com/v1/archive",
		forecastURL: "https://api.open-meteo.com/v1/forecast",
	}
}

func (p *OpenMeteo) Fetch(ctx context.Context, api climate.API, q climate.Query) (*climate.Series, error) {
	if err := p.requireAPI(api, climate.APIArchive, climate.APIForecast); err != nil {
		return nil, err
	}
	base := p.archiveURL
	if api == climate.APIForecast {
		base = p.forecastURL
	}

	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", q.Latitude))
	values.Set("longitude", fmt.Sprintf("%f", q.Longitude))
	values.Set("start_date", q.Window.Start.String())
	values.Set("end_date", q.Window.End.String())
	values.Set("daily", strings.Join(q.Variables, ","))
	values.Set("wind_speed_unit", "ms")
	values.Set("timezone", "UTC")

	var payload struct {
		Daily map[string]json.RawMessage `json:"daily"`
	}
	if err := p.getJSON(ctx, base+"?"+values.Encode(), "application/json", &payload); err != nil {
		return nil, err
	}
	return p.parseDaily(api, q, payload.Daily)
}

func (p *OpenMeteo) parseDaily(api climate.API, q climate.Query, daily map[string]json.RawMessage) (*climate.Series, error) {
	if daily == nil {
		return nil, climate.Malformed(p.id, "missing daily block", nil)
	}
	var times []string
	if err := json.Unmarshal(daily["time"], &times); err != nil {
		return nil, climate.Malformed(p.id, "daily.time", err)
	}

	columns := make(map[string][]*float64, len(q.Variables))
	for _, v := range q.Variables {
		raw, ok := daily[v]
		if !ok {
			return nil, climate.Malformed(p.id, fmt.Sprintf("daily.%s missing", v), nil)
		}
		var col []*float64
		if err := json.Unmarshal(raw, &col); err != nil {
			return nil, climate.Malformed(p.id, "daily."+v, err)
		}
		if len(col) != len(times) {
			return nil, climate.Malformed(p.id,
				fmt.Sprintf("daily.%s has %d values for %d days", v, len(col), len(times)), nil)
		}
		columns[v] = col
	}

	s := newSeries(p.id, api, q)
	for i, t := range times {
		day, err := climate.ParseDate(t)
		if err != nil {
			return nil, climate.Malformed(p.id, "daily.time", err)
		}
		rec := climate.Record{Date: day, Values: make(map[string]*float64, len(q.Variables)), Provenance: p.id}
		for _, v := range q.Variables {
			rec.Values[v] = columns[v][i]
		}
		s.Records = append(s.Records, rec)
	}
	return s, nil
}
