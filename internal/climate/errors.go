package climate

import (
	"errors"
	"fmt"
)

// Kind is the normalized failure taxonomy shared by every component.
type Kind string

const (
	// KindInvalidRequest covers bad coordinates, dates or window lengths. Never retried.
	KindInvalidRequest Kind = "invalid_request"

	// KindOutOfRangeWindow means the window lies beyond a provider's history floor or
	// forecast horizon. Never retried.
	KindOutOfRangeWindow Kind = "out_of_range_window"

	// KindUpstreamUnavailable is a network or HTTP failure that survived retries.
	KindUpstreamUnavailable Kind = "upstream_unavailable"

	// KindMalformedResponse is a schema or shape mismatch in an upstream payload.
	KindMalformedResponse Kind = "malformed_upstream_response"

	// KindLicenseViolation is fusion or download attempted on a restricted provider.
	KindLicenseViolation Kind = "license_violation"

	// KindCacheUnavailable never leaves the cache layer; it degrades to a miss.
	KindCacheUnavailable Kind = "cache_unavailable"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its Kind.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrOutOfRangeWindow    = errors.New("window out of provider range")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedResponse   = errors.New("malformed upstream response")
	ErrLicenseViolation    = errors.New("license violation")
	ErrCacheUnavailable    = errors.New("cache unavailable")

	// ErrInvalidCoordinate is wrapped by InvalidRequest errors about lat/lon.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrUnknownProvider is wrapped by InvalidRequest errors naming an unregistered provider.
	ErrUnknownProvider = errors.New("unknown provider")
)

var kindSentinels = map[Kind]error{
	KindInvalidRequest:      ErrInvalidRequest,
	KindOutOfRangeWindow:    ErrOutOfRangeWindow,
	KindUpstreamUnavailable: ErrUpstreamUnavailable,
	KindMalformedResponse:   ErrMalformedResponse,
	KindLicenseViolation:    ErrLicenseViolation,
	KindCacheUnavailable:    ErrCacheUnavailable,
}

// Error wraps failures with their kind and, when known, the provider and constraint involved.
type Error struct {
	Kind       Kind
	ProviderID string
	Constraint string
	Message    string
	Err        error
	Retryable  bool
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.ProviderID != "" {
		msg = fmt.Sprintf("provider %s [%s]", e.ProviderID, e.Kind)
	}
	if e.Constraint != "" {
		msg += " (" + e.Constraint + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// NewError builds an Error; upstream outages are retryable, everything else is not.
func NewError(kind Kind, providerID, message string, err error) *Error {
	return &Error{
		Kind:       kind,
		ProviderID: providerID,
		Message:    message,
		Err:        err,
		Retryable:  kind == KindUpstreamUnavailable,
	}
}

// InvalidRequest names the failed constraint.
func InvalidRequest(constraint, message string, err error) *Error {
	e := NewError(KindInvalidRequest, "", message, err)
	e.Constraint = constraint
	return e
}

// OutOfRange names the provider and the bound that was crossed.
func OutOfRange(providerID, constraint, message string) *Error {
	e := NewError(KindOutOfRangeWindow, providerID, message, nil)
	e.Constraint = constraint
	return e
}

func Unavailable(providerID, message string, err error) *Error {
	return NewError(KindUpstreamUnavailable, providerID, message, err)
}

func Malformed(providerID, message string, err error) *Error {
	return NewError(KindMalformedResponse, providerID, message, err)
}

func LicenseViolation(providerID, message string) *Error {
	return NewError(KindLicenseViolation, providerID, message, nil)
}

// IsRetryable checks whether an error is worth retrying.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// KindOf extracts the kind, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ProviderOf extracts the provider id carried by the error, if any.
func ProviderOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.ProviderID
	}
	return ""
}
