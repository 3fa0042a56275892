package coverage

import (
	"fmt"
	"math"

	"github.com/i474232898/climate-sources/internal/climate"
)

// Describe renders coverage for humans: "global" or a cardinal-direction box such as
// "34.00°N to 72.00°N, 25.00°W to 45.00°E".
func Describe(c climate.Coverage) string {
	if c.Global {
		return "global"
	}
	if c.BBox == nil {
		return "none"
	}
	b := c.BBox
	return fmt.Sprintf("%s to %s, %s to %s",
		latitude(b.South), latitude(b.North), longitude(b.West), longitude(b.East))
}

func latitude(v float64) string {
	dir := "N"
	if v < 0 {
		dir = "S"
	}
	return fmt.Sprintf("%.2f°%s", math.Abs(v), dir)
}

func longitude(v float64) string {
	dir := "E"
	if v < 0 {
		dir = "W"
	}
	return fmt.Sprintf("%.2f°%s", math.Abs(v), dir)
}
