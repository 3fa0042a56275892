package coverage

import (
	"github.com/i474232898/climate-sources/internal/catalog"
	"github.com/i474232898/climate-sources/internal/climate"
	"github.com/i474232898/climate-sources/internal/license"
)

// Availability describes one provider's eligibility at a coordinate.
type Availability struct {
	ProviderID          string                     `json:"provider_id"`
	Name                string                     `json:"name"`
	Available           bool                       `json:"available"`
	Fusable             bool                       `json:"fusable"`
	Downloadable        bool                       `json:"downloadable"`
	AttributionRequired bool                       `json:"attribution_required"`
	Attribution         string                     `json:"attribution,omitempty"`
	Coverage            string                     `json:"coverage"`
	Priority            int                        `json:"priority"`
	License             license.Details            `json:"license"`
	Descriptor          climate.ProviderDescriptor `json:"-"`
}

// Resolver answers "which providers can serve this point". It is a pure function over the
// catalog and holds no mutable state.
type Resolver struct {
	catalog *catalog.Catalog
}

func NewResolver(c *catalog.Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// Resolve lists every provider whose coverage contains the point. With excludeNonCommercial
// the providers whose license forbids fusion are left out. No ordering is guaranteed.
func (r *Resolver) Resolve(lat, lon float64, excludeNonCommercial bool) ([]Availability, error) {
	if err := climate.ValidateCoordinate(lat, lon); err != nil {
		return nil, err
	}

	regs := r.catalog.Licenses
	var out []Availability
	for _, p := range r.catalog.Providers() {
		if !p.Coverage.Covers(lat, lon) {
			continue
		}

		valid, details := regs.Check(p.ID, "")
		fusable := regs.Fusable(p.ID)
		if excludeNonCommercial && !fusable {
			continue
		}

		out = append(out, Availability{
			ProviderID:          p.ID,
			Name:                p.Name,
			Available:           valid,
			Fusable:             fusable,
			Downloadable:        regs.Downloadable(p.ID),
			AttributionRequired: details.AttributionRequired,
			Attribution:         details.Attribution,
			Coverage:            Describe(p.Coverage),
			Priority:            p.EffectivePriority(),
			License:             details,
			Descriptor:          p,
		})
	}
	return out, nil
}

// FusionCandidates returns the ids of fusable providers at the point, sorted by priority.
func (r *Resolver) FusionCandidates(lat, lon float64) ([]string, error) {
	avail, err := r.Resolve(lat, lon, true)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(avail))
	for _, a := range avail {
		ids = append(ids, a.ProviderID)
	}
	r.catalog.SortByPriority(ids)
	return ids, nil
}
