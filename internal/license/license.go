package license

import "time"

// Status of a license as seeded. The effective status is evaluated lazily against the clock.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
	StatusPending Status = "pending"
)

// Usage is what a caller intends to do with a provider's data.
type Usage string

const (
	UsageCommercial  Usage = "commercial"
	UsageAttribution Usage = "attribution"
	UsageFusion      Usage = "fusion"
	UsageDownload    Usage = "download"
)

// Reasons reported in Details.
const (
	ReasonOK                = "ok"
	ReasonNoValidLicense    = "no_valid_license"
	ReasonUnknownLicense    = "unknown_license"
	ReasonExpired           = "expired"
	ReasonNotActive         = "not_active"
	ReasonCommercialDenied  = "commercial_use_not_allowed"
	ReasonRedistributionOff = "redistribution_not_allowed"
)

// Terms of use.
type Terms struct {
	AttributionRequired bool `json:"attribution_required"`
	CommercialUse       bool `json:"commercial_use"`
	Redistribution      bool `json:"redistribution"`
	// MonthlyQuota is informational; 0 means unlimited.
	MonthlyQuota int `json:"monthly_quota,omitempty"`
}

// License binds a provider to its terms.
type License struct {
	ID          string     `json:"id"`
	ProviderID  string     `json:"provider_id"`
	Kind        string     `json:"kind"`
	Status      Status     `json:"status"`
	Expiry      *time.Time `json:"expiry,omitempty"`
	Attribution string     `json:"attribution,omitempty"`
	Terms       Terms      `json:"terms"`
}

// EffectiveStatus turns an active license past its expiry into expired.
func (l License) EffectiveStatus(now time.Time) Status {
	if l.Status == StatusActive && l.Expiry != nil && !now.Before(*l.Expiry) {
		return StatusExpired
	}
	return l.Status
}

// Valid iff status is active and the license has not expired.
func (l License) Valid(now time.Time) bool {
	return l.EffectiveStatus(now) == StatusActive
}

// Details explains a check result.
type Details struct {
	LicenseID           string     `json:"license_id,omitempty"`
	ProviderID          string     `json:"provider_id"`
	Status              Status     `json:"status,omitempty"`
	Expiry              *time.Time `json:"expiry,omitempty"`
	Reason              string     `json:"reason"`
	AttributionRequired bool       `json:"attribution_required"`
	Attribution         string     `json:"attribution,omitempty"`
	Terms               Terms      `json:"terms"`
}
