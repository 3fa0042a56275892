package common

import (
	"math"
	"strings"
)

// HasAny returns true if s contains any of the substrings, case-insensitively.
func HasAny(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// RoundTo rounds v to the nearest multiple of step. Negative zero is normalized so that
// formatted keys never read "-0.00".
func RoundTo(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	r := math.Round(v/step) * step
	if r == 0 {
		return 0
	}
	return r
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
