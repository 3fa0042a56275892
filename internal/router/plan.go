package router

import (
	"fmt"

	"github.com/i474232898/climate-sources/internal/climate"
)

// Strategy is the routing decision for one provider and window.
type Strategy string

const (
	ArchiveOnly  Strategy = "archive"
	ForecastOnly Strategy = "forecast"
	Hybrid       Strategy = "hybrid"
	Rejected     Strategy = "rejected"
)

// Leg is one upstream call: an endpoint family and the sub-window it serves.
type Leg struct {
	API    climate.API    `json:"api"`
	Window climate.Window `json:"window"`
}

// Plan describes how a window is served by a provider as of Today.
type Plan struct {
	ProviderID    string         `json:"provider_id"`
	Strategy      Strategy       `json:"strategy"`
	Window        climate.Window `json:"window"`
	Today         climate.Date   `json:"today"`
	ArchiveCutoff climate.Date   `json:"archive_cutoff"`
	Horizon       climate.Date   `json:"forecast_horizon"`
	Legs          []Leg          `json:"legs,omitempty"`
}

// API is the api_used value of the series produced by the plan.
func (p Plan) API() climate.API {
	switch p.Strategy {
	case ArchiveOnly:
		return climate.APIArchive
	case ForecastOnly:
		return climate.APIForecast
	case Hybrid:
		return climate.APIHybrid
	}
	return ""
}

// planFor classifies w against the provider's archive cutoff, history floor and forecast
// horizon. A rejected plan is returned together with an OutOfRangeWindow error.
func planFor(p climate.ProviderDescriptor, w climate.Window, today climate.Date) (Plan, error) {
	cutoff := p.ArchiveCutoff(today)
	horizon := p.ForecastHorizon(today)
	plan := Plan{
		ProviderID:    p.ID,
		Strategy:      Rejected,
		Window:        w,
		Today:         today,
		ArchiveCutoff: cutoff,
		Horizon:       horizon,
	}

	if floor, ok := p.HistoryFloor(today); ok && w.Start.Before(floor) {
		return plan, climate.OutOfRange(p.ID, "history_floor",
			fmt.Sprintf("start %s is before the first available day %s", w.Start, floor))
	}
	if w.End.After(horizon) {
		return plan, climate.OutOfRange(p.ID, "forecast_horizon",
			fmt.Sprintf("end %s is after the last available day %s", w.End, horizon))
	}

	switch {
	case !w.End.After(cutoff) && p.Supports(climate.APIArchive):
		plan.Strategy = ArchiveOnly
		plan.Legs = []Leg{{API: climate.APIArchive, Window: w}}
	case w.Start.After(cutoff) && p.Supports(climate.APIForecast):
		plan.Strategy = ForecastOnly
		plan.Legs = []Leg{{API: climate.APIForecast, Window: w}}
	case p.Supports(climate.APIArchive) && p.Supports(climate.APIForecast):
		archive, forecast := w.Split(cutoff)
		plan.Strategy = Hybrid
		plan.Legs = []Leg{
			{API: climate.APIArchive, Window: archive},
			{API: climate.APIForecast, Window: forecast},
		}
	default:
		return plan, climate.OutOfRange(p.ID, "api",
			fmt.Sprintf("window %s needs an endpoint the provider does not offer", w))
	}
	return plan, nil
}
