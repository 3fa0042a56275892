package providers

import (
	"math"
	"sort"
	"time"

	"github.com/i474232898/climate-sources/internal/climate"
)

type reduction int

const (
	reduceMean reduction = iota
	reduceMax
	reduceMin
	reduceSum
)

// dailyReductions turns hourly samples into the canonical daily variables.
var dailyReductions = map[string]reduction{
	climate.VarTempMax:       reduceMax,
	climate.VarTempMin:       reduceMin,
	climate.VarTempMean:      reduceMean,
	climate.VarHumidityMean:  reduceMean,
	climate.VarWindSpeedMean: reduceMean,
	climate.VarRadiationSum:  reduceSum,
	climate.VarPrecipSum:     reduceSum,
}

// hourlySamples buckets sub-daily observations by UTC day.
type hourlySamples struct {
	days map[climate.Date]map[string][]float64
}

func newHourlySamples() *hourlySamples {
	return &hourlySamples{days: make(map[climate.Date]map[string][]float64)}
}

func (h *hourlySamples) add(at time.Time, variable string, v float64) {
	if math.IsNaN(v) {
		return
	}
	day := climate.DateOf(at)
	vars, ok := h.days[day]
	if !ok {
		vars = make(map[string][]float64)
		h.days[day] = vars
	}
	vars[variable] = append(vars[variable], v)
}

// addTemperature feeds one air temperature sample to max, min and mean.
func (h *hourlySamples) addTemperature(at time.Time, v float64) {
	h.add(at, climate.VarTempMax, v)
	h.add(at, climate.VarTempMin, v)
	h.add(at, climate.VarTempMean, v)
}

// series reduces the samples to one record per day inside q.Window. Days without samples
// are left out; the router null-fills them.
func (h *hourlySamples) series(id string, api climate.API, q climate.Query) *climate.Series {
	days := make([]climate.Date, 0, len(h.days))
	for day := range h.days {
		if q.Window.Contains(day) {
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	s := newSeries(id, api, q)
	for _, day := range days {
		rec := climate.Record{Date: day, Values: make(map[string]*float64, len(q.Variables)), Provenance: id}
		for _, v := range q.Variables {
			rec.Values[v] = reduce(dailyReductions[v], h.days[day][v])
		}
		s.Records = append(s.Records, rec)
	}
	return s
}

func reduce(r reduction, samples []float64) *float64 {
	if len(samples) == 0 {
		return nil
	}
	out := samples[0]
	switch r {
	case reduceMax:
		for _, v := range samples[1:] {
			out = math.Max(out, v)
		}
	case reduceMin:
		for _, v := range samples[1:] {
			out = math.Min(out, v)
		}
	case reduceSum, reduceMean:
		out = 0
		for _, v := range samples {
			out += v
		}
		if r == reduceMean {
			out /= float64(len(samples))
		}
	}
	return &out
}
