package fusion

import (
	"math"

	"github.com/i474232898/climate-sources/internal/climate"
)

type Band string

const (
	BandPoor Band = "poor"
	BandFair Band = "fair"
	BandGood Band = "good"
)

// Quality is informational and never feeds back into weighting.
type Quality struct {
	Score           float64 `json:"score"`
	Band            Band    `json:"band"`
	Sources         int     `json:"sources"`
	CoveragePercent float64 `json:"coverage_percent"`
}

// Score computes min(sources·20, 40) + coverage·0.6 with coverage in percent.
func Score(sources int, coveragePercent float64) Quality {
	coveragePercent = math.Max(0, math.Min(100, coveragePercent))
	score := math.Min(float64(sources*20), 40) + coveragePercent*0.6

	band := BandGood
	switch {
	case score < 40:
		band = BandPoor
	case score < 70:
		band = BandFair
	}
	return Quality{Score: score, Band: band, Sources: sources, CoveragePercent: coveragePercent}
}

// Coverage is the share of the window's days that carry a value for variable, in percent.
func Coverage(s *climate.Series, w climate.Window, variable string) float64 {
	days := w.Days()
	if s == nil || days <= 0 {
		return 0
	}
	n := 0
	for _, r := range s.Records {
		if !w.Contains(r.Date) {
			continue
		}
		if _, ok := r.Value(variable); ok {
			n++
		}
	}
	return float64(n) * 100 / float64(days)
}
