package climate

import (
	"fmt"
	"slices"
)

// API identifies an upstream endpoint family.
type API string

const (
	APIArchive  API = "archive"
	APIForecast API = "forecast"
	APIHybrid   API = "hybrid"
	APIFused    API = "fused"
)

// ProvenanceFused marks records produced by the fusion engine.
const ProvenanceFused = "fused"

// Record is one day of values. A nil value means the provider had no data for that day.
type Record struct {
	Date       Date                `json:"date"`
	Values     map[string]*float64 `json:"values"`
	Provenance string              `json:"provenance"`
	Sources    []string            `json:"sources,omitempty"`
	Confidence *int                `json:"confidence,omitempty"`
}

// Value returns the value of variable and whether it is present and non-null.
func (r Record) Value(variable string) (float64, bool) {
	v, ok := r.Values[variable]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Series is an ordered daily time series for one coordinate.
type Series struct {
	ProviderID string   `json:"provider_id"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Start      Date     `json:"start"`
	End        Date     `json:"end"`
	APIUsed    API      `json:"api_used"`
	Variables  []string `json:"variables"`
	Records    []Record `json:"records"`
}

// Window returns the declared window of the series.
func (s *Series) Window() Window {
	return Window{Start: s.Start, End: s.End}
}

// Validate checks that dates are strictly increasing and unique.
func (s *Series) Validate() error {
	for i := 1; i < len(s.Records); i++ {
		if !s.Records[i-1].Date.Before(s.Records[i].Date) {
			return fmt.Errorf("record %d (%s) does not follow %s", i, s.Records[i].Date, s.Records[i-1].Date)
		}
	}
	return nil
}

// Complete trims the series to w and inserts null records for missing days, so the result has
// exactly w.Days() records. It fails if the input is not strictly ordered.
func (s *Series) Complete(w Window) error {
	if err := s.Validate(); err != nil {
		return err
	}
	byDate := make(map[Date]Record, len(s.Records))
	for _, r := range s.Records {
		if w.Contains(r.Date) {
			byDate[r.Date] = r
		}
	}

	records := make([]Record, 0, w.Days())
	for _, d := range w.Dates() {
		r, ok := byDate[d]
		if !ok {
			r = Record{Date: d, Provenance: s.ProviderID}
		}
		if r.Values == nil {
			r.Values = make(map[string]*float64, len(s.Variables))
		}
		for _, v := range s.Variables {
			if _, ok := r.Values[v]; !ok {
				r.Values[v] = nil
			}
		}
		records = append(records, r)
	}
	s.Records = records
	s.Start, s.End = w.Start, w.End
	return nil
}

// Project returns a copy restricted to the given variables.
func (s *Series) Project(variables []string) *Series {
	out := *s
	out.Variables = slices.Clone(variables)
	out.Records = make([]Record, len(s.Records))
	for i, r := range s.Records {
		values := make(map[string]*float64, len(variables))
		for _, v := range variables {
			values[v] = r.Values[v]
		}
		r.Values = values
		r.Sources = slices.Clone(r.Sources)
		out.Records[i] = r
	}
	return &out
}

// Dates lists the record dates in order.
func (s *Series) Dates() []Date {
	out := make([]Date, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.Date
	}
	return out
}

// HasVariable reports whether the series declares variable.
func (s *Series) HasVariable(variable string) bool {
	return slices.Contains(s.Variables, variable)
}

// Query is what the router asks an upstream for.
type Query struct {
	Latitude  float64
	Longitude float64
	Window    Window
	Variables []string
}
