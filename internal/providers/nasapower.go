package providers

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/i474232898/climate-sources/internal/catalog"
	"github.com/i474232898/climate-sources/internal/climate"
)

// nasaFillValue marks missing data in POWER responses.
const nasaFillValue = -999.0

// POWER parameter per canonical variable, AG community units (MJ/m²/day, mm/day, m/s).
var nasaParameters = map[string]string{
	climate.VarTempMax:       "T2M_MAX",
	climate.VarTempMin:       "T2M_MIN",
	climate.VarTempMean:      "T2M",
	climate.VarHumidityMean:  "RH2M",
	climate.VarWindSpeedMean: "WS10M",
	climate.VarRadiationSum:  "ALLSKY_SFC_SW_DWN",
	climate.VarPrecipSum:     "PRECTOTCORR",
}

// NASAPower reads the POWER daily point API. It is archive-only.
type NASAPower struct {
	client
	baseURL string
}

func NewNASAPower(cfg HTTPClientConfig) *NASAPower {
	return &NASAPower{
		client:  newClient(catalog.NASAPower, cfg),
		baseURL: "https://power.larc.nasa.gov/api/temporal/daily/point",
	}
}

func (p *NASAPower) Fetch(ctx context.Context, api climate.API, q climate.Query) (*climate.Series, error) {
	if err := p.requireAPI(api, climate.APIArchive); err != nil {
		return nil, err
	}

	params := make([]string, 0, len(q.Variables))
	for _, v := range q.Variables {
		param, ok := nasaParameters[v]
		if !ok {
			return nil, climate.NewError(climate.KindInvalidRequest, p.id, fmt.Sprintf("variable %q is not offered", v), nil)
		}
		params = append(params, param)
	}

	values := url.Values{}
	values.Set("parameters", strings.Join(params, ","))
	values.Set("community", "AG")
	values.Set("latitude", fmt.Sprintf("%f", q.Latitude))
	values.Set("longitude", fmt.Sprintf("%f", q.Longitude))
	values.Set("start", q.Window.Start.Compact())
	values.Set("end", q.Window.End.Compact())
	values.Set("format", "JSON")

	var payload struct {
		Properties struct {
			Parameter map[string]map[string]float64 `json:"parameter"`
		} `json:"properties"`
	}
	if err := p.getJSON(ctx, p.baseURL+"?"+values.Encode(), "application/json", &payload); err != nil {
		return nil, err
	}
	return p.parse(api, q, payload.Properties.Parameter)
}

func (p *NASAPower) parse(api climate.API, q climate.Query, parameter map[string]map[string]float64) (*climate.Series, error) {
	if len(parameter) == 0 {
		return nil, climate.Malformed(p.id, "missing properties.parameter", nil)
	}

	byDate := make(map[climate.Date]map[string]*float64)
	for _, v := range q.Variables {
		param := nasaParameters[v]
		daily, ok := parameter[param]
		if !ok {
			return nil, climate.Malformed(p.id, fmt.Sprintf("parameter %s missing", param), nil)
		}
		for key, value := range daily {
			value := value
			t, err := time.Parse("20060102", key)
			if err != nil {
				return nil, climate.Malformed(p.id, fmt.Sprintf("parameter %s date key %q", param, key), err)
			}
			day := climate.DateOf(t)
			if byDate[day] == nil {
				byDate[day] = make(map[string]*float64, len(q.Variables))
			}
			if value <= nasaFillValue {
				byDate[day][v] = nil
				continue
			}
			byDate[day][v] = &value
		}
	}

	days := make([]climate.Date, 0, len(byDate))
	for day := range byDate {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	s := newSeries(p.id, api, q)
	for _, day := range days {
		s.Records = append(s.Records, climate.Record{Date: day, Values: byDate[day], Provenance: p.id})
	}
	return s, nil
}
