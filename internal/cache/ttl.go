package cache

import (
	"time"

	"github.com/i474232898/climate-sources/internal/climate"
)

const (
	TTLForecast = time.Hour
	TTLRecent   = 12 * time.Hour
	TTLMonth    = 24 * time.Hour
	TTLArchive  = 30 * 24 * time.Hour
)

// TTLFor picks the lifetime of an entry whose window starts at start. The older the data the
// longer it lives: forecasts 1h, under a week 12h, under a month a day, anything older 30 days.
func TTLFor(start, today climate.Date) time.Duration {
	if start.After(today) {
		return TTLForecast
	}
	age := start.DaysUntil(today)
	switch {
	case age < 7:
		return TTLRecent
	case age < 30:
		return TTLMonth
	default:
		return TTLArchive
	}
}
