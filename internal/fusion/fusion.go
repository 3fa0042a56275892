package fusion

import (
	"fmt"
	"math"
	"sort"

	"github.com/i474232898/climate-sources/internal/catalog"
	"github.com/i474232898/climate-sources/internal/climate"
	"github.com/i474232898/climate-sources/internal/metrics"
)

// Engine merges several providers' series into one weighted series. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	catalog     *catalog.Catalog
	weighting   Weighting
	reliability map[string]float64
	metrics     *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

func WithWeighting(w Weighting) Option {
	return func(e *Engine) {
		if w != "" {
			e.weighting = w
		}
	}
}

// WithReliability replaces the reliability table used by WeightingReliability.
func WithReliability(table map[string]float64) Option {
	return func(e *Engine) {
		if len(table) > 0 {
			e.reliability = make(map[string]float64, len(table))
			for id, w := range table {
				e.reliability[id] = w
			}
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func New(cat *catalog.Catalog, opts ...Option) (*Engine, error) {
	e := &Engine{
		catalog:     cat,
		weighting:   WeightingPriority,
		reliability: DefaultReliability(),
	}
	for _, opt := range opts {
		opt(e)
	}
	switch e.weighting {
	case WeightingPriority, WeightingReliability:
	default:
		return nil, fmt.Errorf("unknown weighting %q", e.weighting)
	}
	return e, nil
}

func (e *Engine) Weighting() Weighting { return e.weighting }

// Fuse merges the variable across providers. Non-fusible variables return the series of the
// first provider by priority, projected to the variable. For fusible ones each date is the
// weighted mean of the providers with a value that day, with weights renormalized over those
// providers; dates nobody supplies are omitted.
func (e *Engine) Fuse(seriesByProvider map[string]*climate.Series, variable string) (*climate.Series, error) {
	if len(seriesByProvider) == 0 {
		return nil, climate.InvalidRequest("providers", "nothing to fuse", nil)
	}
	if !climate.IsKnownVariable(variable) {
		return nil, climate.InvalidRequest("variable", fmt.Sprintf("unknown variable %q", variable), nil)
	}

	ids := make([]string, 0, len(seriesByProvider))
	for id, s := range seriesByProvider {
		if s == nil {
			missing := climate.InvalidRequest("providers", fmt.Sprintf("no series for provider %s", id), nil)
			missing.ProviderID = id
			return nil, missing
		}
		if err := s.Validate(); err != nil {
			return nil, climate.Malformed(id, "series records out of order", err)
		}
		ids = append(ids, id)
	}
	weights, err := e.ComputeWeights(ids)
	if err != nil {
		return nil, err
	}
	e.catalog.SortByPriority(ids)

	if !climate.IsFusible(variable) {
		for _, id := range ids {
			if s := seriesByProvider[id]; s.HasVariable(variable) {
				return s.Project([]string{variable}), nil
			}
		}
		return nil, climate.InvalidRequest("variable", fmt.Sprintf("no provider supplies %q", variable), nil)
	}

	out := e.aggregate(ids, seriesByProvider, weights, variable)
	e.metrics.IncFusion("ok")
	return out, nil
}

type contribution struct {
	provider string
	value    float64
	weight   float64
}

func (e *Engine) aggregate(ids []string, seriesByProvider map[string]*climate.Series, weights WeightSet, variable string) *climate.Series {
	byDate := make(map[climate.Date][]contribution)
	var first *climate.Series
	var start, end climate.Date

	for _, id := range ids {
		s := seriesByProvider[id]
		if first == nil {
			first = s
			start, end = s.Start, s.End
		} else {
			if s.Start.Before(start) {
				start = s.Start
			}
			if s.End.After(end) {
				end = s.End
			}
		}

		w, ok := weights[id]
		if !ok {
			continue
		}
		for _, r := range s.Records {
			if v, ok := r.Value(variable); ok && !math.IsNaN(v) {
				byDate[r.Date] = append(byDate[r.Date], contribution{provider: id, value: v, weight: w})
			}
		}
	}

	dates := make([]climate.Date, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := &climate.Series{
		ProviderID: climate.ProvenanceFused,
		Start:      start,
		End:        end,
		APIUsed:    climate.APIFused,
		Variables:  []string{variable},
		Records:    make([]climate.Record, 0, len(dates)),
	}
	if first != nil {
		out.Latitude, out.Longitude = first.Latitude, first.Longitude
	}

	for _, d := range dates {
		contribs := byDate[d]
		var sum, weightSum float64
		sources := make([]string, 0, len(contribs))
		for _, c := range contribs {
			sum += c.value * c.weight
			weightSum += c.weight
			sources = append(sources, c.provider)
		}
		value := sum / weightSum
		confidence := int(math.Round(weightSum * 100))
		out.Records = append(out.Records, climate.Record{
			Date:       d,
			Values:     map[string]*float64{variable: &value},
			Provenance: climate.ProvenanceFused,
			Sources:    sources,
			Confidence: &confidence,
		})
	}
	return out
}
