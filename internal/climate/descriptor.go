package climate

import "slices"

const (
	DefaultDelayDays       = 2
	DefaultMaxForecastDays = 16
)

// BBox is a lon/lat bounding box: west, south, east, north.
type BBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Contains is inclusive on every edge.
func (b BBox) Contains(lat, lon float64) bool {
	return lon >= b.West && lon <= b.East && lat >= b.South && lat <= b.North
}

// Coverage is either global or bounded by a box.
type Coverage struct {
	Global bool  `json:"global"`
	BBox   *BBox `json:"bbox,omitempty"`
}

func (c Coverage) Covers(lat, lon float64) bool {
	if c.Global {
		return true
	}
	return c.BBox != nil && c.BBox.Contains(lat, lon)
}

// RateLimit carries upstream courtesy limits.
type RateLimit struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
	MaxConcurrent     int     `json:"max_concurrent"`
}

// ProviderDescriptor is the static description of one upstream provider.
// Descriptors are loaded once and never mutated.
type ProviderDescriptor struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Coverage        Coverage  `json:"coverage"`
	LicenseKind     string    `json:"license_kind"`
	Resolution      string    `json:"resolution"`
	Realtime        bool      `json:"realtime"`
	DelayDays       int       `json:"delay_days"`
	MaxForecastDays int       `json:"max_forecast_days"`
	MinHistory      *Date     `json:"min_history,omitempty"`
	APIs            []API     `json:"apis"`
	Variables       []string  `json:"variables"`
	Priority        int       `json:"priority"`
	RateLimit       RateLimit `json:"rate_limit"`
}

func (p ProviderDescriptor) Supports(api API) bool {
	return slices.Contains(p.APIs, api)
}

func (p ProviderDescriptor) Delay() int {
	if p.DelayDays <= 0 {
		return DefaultDelayDays
	}
	return p.DelayDays
}

func (p ProviderDescriptor) ForecastDays() int {
	if p.MaxForecastDays <= 0 {
		return DefaultMaxForecastDays
	}
	return p.MaxForecastDays
}

// ArchiveCutoff is the last day served by the archive endpoint.
func (p ProviderDescriptor) ArchiveCutoff(today Date) Date {
	return today.AddDays(-p.Delay())
}

// ForecastHorizon is the last day the provider can serve. Archive-only providers end at the
// archive cutoff.
func (p ProviderDescriptor) ForecastHorizon(today Date) Date {
	if !p.Supports(APIForecast) {
		return p.ArchiveCutoff(today)
	}
	return today.AddDays(p.ForecastDays())
}

// HistoryFloor is the first day the provider can serve. Forecast-only providers start the
// day after the archive cutoff. ok is false when the archive has no known floor.
func (p ProviderDescriptor) HistoryFloor(today Date) (floor Date, ok bool) {
	if !p.Supports(APIArchive) {
		return p.ArchiveCutoff(today).AddDays(1), true
	}
	if p.MinHistory == nil {
		return Date{}, false
	}
	return *p.MinHistory, true
}

// EffectivePriority guards against unset priorities; lower is preferred.
func (p ProviderDescriptor) EffectivePriority() int {
	if p.Priority <= 0 {
		return 1
	}
	return p.Priority
}

// SupportsVariable reports whether v is among the provider's variables.
func (p ProviderDescriptor) SupportsVariable(v string) bool {
	return slices.Contains(p.Variables, v)
}
