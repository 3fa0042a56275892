package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/climate-sources/internal/catalog"
	"github.com/i474232898/climate-sources/internal/climate"
)

// weatherAPIMaxDays is the longest forecast the paid plans return.
const weatherAPIMaxDays = 14

type weatherAPIDay struct {
	Date string `json:"date"`
	Day  struct {
		MaxTempC      *float64 `json:"maxtemp_c"`
		MinTempC      *float64 `json:"mintemp_c"`
		AvgTempC      *float64 `json:"avgtemp_c"`
		AvgHumidity   *float64 `json:"avghumidity"`
		TotalPrecipMM *float64 `json:"totalprecip_mm"`
	} `json:"day"`
}

// WeatherAPI reads the WeatherAPI.com daily forecast. Its license is view-only, so its data
// is never fused or handed out raw.
type WeatherAPI struct {
	client
	apiKey  string
	baseURL string
	now     func() time.Time
}

func NewWeatherAPI(cfg HTTPClientConfig, apiKey string) *WeatherAPI {
	return &WeatherAPI{
		client:  newClient(catalog.WeatherAPI, cfg),
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		now:     time.Now,
	}
}

func (p *WeatherAPI) Fetch(ctx context.Context, api climate.API, q climate.Query) (*climate.Series, error) {
	if err := p.requireAPI(api, climate.APIForecast); err != nil {
		return nil, err
	}
	if p.apiKey == "" {
		e := climate.Unavailable(p.id, "weatherapi api key is not configured", nil)
		e.Retryable = false
		return nil, e
	}

	today := climate.DateOf(p.now())
	days := min(max(today.DaysUntil(q.Window.End)+1, 1), weatherAPIMaxDays)

	values := url.Values{}
	values.Set("key", p.apiKey)
	// WeatherAPI uses "q" for location; it accepts "lat,lon".
	values.Set("q", fmt.Sprintf("%f,%f", q.Latitude, q.Longitude))
	values.Set("days", strconv.Itoa(days))
	values.Set("aqi", "no")
	values.Set("alerts", "no")

	var payload struct {
		Forecast *struct {
			ForecastDay []weatherAPIDay `json:"forecastday"`
		} `json:"forecast"`
	}
	if err := p.getJSON(ctx, p.baseURL+"?"+values.Encode(), "application/json", &payload); err != nil {
		return nil, err
	}
	if payload.Forecast == nil {
		return nil, climate.Malformed(p.id, "missing forecast block", nil)
	}
	return p.parse(api, q, payload.Forecast.ForecastDay)
}

func (p *WeatherAPI) parse(api climate.API, q climate.Query, days []weatherAPIDay) (*climate.Series, error) {
	s := newSeries(p.id, api, q)
	for _, fd := range days {
		day, err := climate.ParseDate(fd.Date)
		if err != nil {
			return nil, climate.Malformed(p.id, "forecastday.date", err)
		}
		if !q.Window.Contains(day) {
			continue
		}
		available := map[string]*float64{
			climate.VarTempMax:      fd.Day.MaxTempC,
			climate.VarTempMin:      fd.Day.MinTempC,
			climate.VarTempMean:     fd.Day.AvgTempC,
			climate.VarHumidityMean: fd.Day.AvgHumidity,
			climate.VarPrecipSum:    fd.Day.TotalPrecipMM,
		}
		rec := climate.Record{Date: day, Values: make(map[string]*float64, len(q.Variables)), Provenance: p.id}
		for _, v := range q.Variables {
			rec.Values[v] = available[v]
		}
		s.Records = append(s.Records, rec)
	}
	return s, nil
}
