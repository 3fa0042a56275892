package cache

import (
	"fmt"

	"github.com/i474232898/climate-sources/internal/climate"
	"github.com/i474232898/climate-sources/internal/common"
)

// KeyPrefix namespaces every entry. Bump the version when Key's shape changes.
const KeyPrefix = "climate:v1"

// CoordinateStep is the rounding applied to lat/lon in keys, about 1.1 km at the equator.
const CoordinateStep = 0.01

// Key derives the cache key for one provider, coordinate and window. Keys do not depend on
// the requested variables or on fusion.
func Key(providerID string, lat, lon float64, w climate.Window) string {
	return fmt.Sprintf("%s:%s:%.2f:%.2f:%s:%s",
		KeyPrefix, providerID,
		common.RoundTo(lat, CoordinateStep), common.RoundTo(lon, CoordinateStep),
		w.Start, w.End)
}
