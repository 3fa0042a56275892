package fusion

import (
	"fmt"
	"math"
	"sort"

	"github.com/i474232898/climate-sources/internal/catalog"
	"github.com/i474232898/climate-sources/internal/climate"
	"github.com/i474232898/climate-sources/internal/license"
)

// Weighting selects how raw provider weights are derived.
type Weighting string

const (
	// WeightingPriority uses 1/priority.
	WeightingPriority Weighting = "priority"
	// WeightingReliability uses a static reliability table.
	WeightingReliability Weighting = "reliability"
)

// DefaultReliability is the built-in reliability table.
func DefaultReliability() map[string]float64 {
	return map[string]float64{
		catalog.OpenMeteo:  0.95,
		catalog.NASAPower:  0.9,
		catalog.METNorway:  0.9,
		catalog.NWS:        0.85,
		catalog.WeatherAPI: 0.7,
	}
}

// WeightSet maps provider id to its normalized weight. Providers with zero weight are absent.
type WeightSet map[string]float64

// Sum of all weights; 1 for any set returned by ComputeWeights.
func (w WeightSet) Sum() float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

// IDs returns the providers in w sorted by id.
func (w WeightSet) IDs() []string {
	ids := make([]string, 0, len(w))
	for id := range w {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ComputeWeights checks every provider's license before deriving any weight. A single
// provider that may not be fused fails the whole computation.
func (e *Engine) ComputeWeights(ids []string) (WeightSet, error) {
	if len(ids) == 0 {
		return nil, climate.InvalidRequest("providers", "no providers selected", nil)
	}

	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := e.catalog.Get(id); !ok {
			return nil, climate.InvalidRequest("providers",
				fmt.Sprintf("provider %q is not registered", id), climate.ErrUnknownProvider)
		}
		unique = append(unique, id)
	}

	for _, id := range unique {
		if ok, details := e.catalog.Licenses.CheckTerms(id, license.UsageFusion); !ok {
			e.metrics.IncFusion("license_violation")
			return nil, climate.LicenseViolation(id,
				fmt.Sprintf("license does not permit fusion (%s)", details.Reason))
		}
	}

	raw := make(map[string]float64, len(unique))
	var total float64
	for _, id := range unique {
		w := e.rawWeight(id)
		if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			continue
		}
		raw[id] = w
		total += w
	}
	if total == 0 {
		return nil, climate.InvalidRequest("weights", "no selected provider carries weight", nil)
	}

	out := make(WeightSet, len(raw))
	for id, w := range raw {
		out[id] = w / total
	}
	return out, nil
}

func (e *Engine) rawWeight(id string) float64 {
	if e.weighting == WeightingReliability {
		return e.reliability[id]
	}
	desc, _ := e.catalog.Get(id)
	return 1 / float64(desc.EffectivePriority())
}
