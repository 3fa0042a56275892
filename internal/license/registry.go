package license

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

// ExpiryWarning is how far ahead Report flags upcoming expiries.
const ExpiryWarning = 30 * 24 * time.Hour

// Registry is the read-only license table. It is safe for concurrent use because nothing
// mutates it after NewRegistry returns.
type Registry struct {
	licenses   []License
	byID       map[string]License
	byProvider map[string][]License
	now        func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry seeds a registry. License ids must be unique and carry a provider id.
func NewRegistry(licenses []License, opts ...Option) (*Registry, error) {
	r := &Registry{
		byID:       make(map[string]License, len(licenses)),
		byProvider: make(map[string][]License),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, l := range licenses {
		if l.ID == "" || l.ProviderID == "" {
			return nil, fmt.Errorf("license %q: id and provider id are required", l.ID)
		}
		if _, dup := r.byID[l.ID]; dup {
			return nil, fmt.Errorf("license %q registered twice", l.ID)
		}
		if l.Status == "" {
			l.Status = StatusPending
		}
		r.byID[l.ID] = l
		r.byProvider[l.ProviderID] = append(r.byProvider[l.ProviderID], l)
		r.licenses = append(r.licenses, l)
	}
	return r, nil
}

// Check reports whether the provider holds a valid license. With an empty licenseID any valid
// license of the provider is accepted.
func (r *Registry) Check(providerID, licenseID string) (bool, Details) {
	now := r.now()

	if licenseID != "" {
		l, ok := r.byID[licenseID]
		if !ok || l.ProviderID != providerID {
			return false, Details{ProviderID: providerID, LicenseID: licenseID, Reason: ReasonUnknownLicense}
		}
		return l.Valid(now), detailsFor(l, now)
	}

	candidates := r.byProvider[providerID]
	for _, l := range candidates {
		if l.Valid(now) {
			return true, detailsFor(l, now)
		}
	}
	return false, Details{ProviderID: providerID, Reason: ReasonNoValidLicense}
}

// CheckTerms evaluates a usage type against the provider's valid license. Attribution is
// informational: it is always allowed and Details says whether it is required.
func (r *Registry) CheckTerms(providerID string, usage Usage) (bool, Details) {
	ok, d := r.Check(providerID, "")
	if !ok {
		return false, d
	}
	switch usage {
	case UsageCommercial, UsageFusion:
		if !d.Terms.CommercialUse {
			d.Reason = ReasonCommercialDenied
			return false, d
		}
	case UsageDownload:
		if !d.Terms.CommercialUse {
			d.Reason = ReasonCommercialDenied
			return false, d
		}
		if !d.Terms.Redistribution {
			d.Reason = ReasonRedistributionOff
			return false, d
		}
	case UsageAttribution:
	}
	return true, d
}

// Fusable reports whether the provider's data may be blended with others.
func (r *Registry) Fusable(providerID string) bool {
	ok, _ := r.CheckTerms(providerID, UsageFusion)
	return ok
}

// Downloadable reports whether raw data may be handed out.
func (r *Registry) Downloadable(providerID string) bool {
	ok, _ := r.CheckTerms(providerID, UsageDownload)
	return ok
}

// List returns every license in seed order.
func (r *Registry) List() []License {
	return slices.Clone(r.licenses)
}

// ForProvider returns the licenses of one provider.
func (r *Registry) ForProvider(providerID string) []License {
	return slices.Clone(r.byProvider[providerID])
}

// StatusReport groups licenses by effective status for operational monitoring.
type StatusReport struct {
	GeneratedAt  time.Time           `json:"generated_at"`
	Total        int                 `json:"total"`
	ByStatus     map[Status][]string `json:"by_status"`
	ExpiringSoon []License           `json:"expiring_soon"`
}

// Report builds a StatusReport. Licenses expiring within ExpiryWarning are flagged.
func (r *Registry) Report() StatusReport {
	now := r.now()
	rep := StatusReport{
		GeneratedAt:  now,
		Total:        len(r.licenses),
		ByStatus:     make(map[Status][]string),
		ExpiringSoon: []License{},
	}
	for _, l := range r.licenses {
		status := l.EffectiveStatus(now)
		rep.ByStatus[status] = append(rep.ByStatus[status], l.ID)
		if status == StatusActive && l.Expiry != nil && l.Expiry.Sub(now) <= ExpiryWarning {
			rep.ExpiringSoon = append(rep.ExpiringSoon, l)
		}
	}
	for _, ids := range rep.ByStatus {
		sort.Strings(ids)
	}
	return rep
}

func detailsFor(l License, now time.Time) Details {
	d := Details{
		LicenseID:           l.ID,
		ProviderID:          l.ProviderID,
		Status:              l.EffectiveStatus(now),
		Expiry:              l.Expiry,
		AttributionRequired: l.Terms.AttributionRequired,
		Attribution:         l.Attribution,
		Terms:               l.Terms,
		Reason:              ReasonOK,
	}
	switch {
	case d.Status == StatusExpired:
		d.Reason = ReasonExpired
	case d.Status != StatusActive:
		d.Reason = ReasonNotActive
	}
	return d
}
