package climate

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type coordinate struct {
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
}

// ValidateCoordinate rejects latitudes outside [-90,90] and longitudes outside [-180,180].
// The returned error is an InvalidRequest that also matches ErrInvalidCoordinate.
func ValidateCoordinate(lat, lon float64) error {
	err := validate.Struct(coordinate{Latitude: lat, Longitude: lon})
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		constraint := "latitude"
		if fe.Field() == "Longitude" {
			constraint = "longitude"
		}
		return InvalidRequest(constraint,
			fmt.Sprintf("%s %v violates %s=%s", constraint, fe.Value(), fe.Tag(), fe.Param()),
			ErrInvalidCoordinate)
	}
	return InvalidRequest("coordinate", err.Error(), ErrInvalidCoordinate)
}

// ValidateWindowLength checks start <= end and that the window spans [minDays, maxDays].
func ValidateWindowLength(w Window, minDays, maxDays int) error {
	if w.End.Before(w.Start) {
		return InvalidRequest("start_before_end", fmt.Sprintf("start %s is after end %s", w.Start, w.End), nil)
	}
	days := w.Days()
	if err := validate.Var(days, fmt.Sprintf("gte=%d,lte=%d", minDays, maxDays)); err != nil {
		return InvalidRequest("window_length",
			fmt.Sprintf("window spans %d days, allowed %d-%d", days, minDays, maxDays), nil)
	}
	return nil
}
