package providers

import "github.com/i474232898/climate-sources/internal/climate"

// Options selects which clients All builds.
type Options struct {
	HTTP           HTTPClientConfig
	WeatherAPIKey  string
	SkipWeatherAPI bool
}

// All builds a client for every provider of the built-in catalog. WeatherAPI needs a key and
// is skipped without one.
func All(opts Options) []climate.Upstream {
	ups := []climate.Upstream{
		NewNASAPower(opts.HTTP),
		NewOpenMeteo(opts.HTTP),
		NewMETNorway(opts.HTTP),
		NewNWS(opts.HTTP),
	}
	if opts.WeatherAPIKey != "" && !opts.SkipWeatherAPI {
		ups = append(ups, NewWeatherAPI(opts.HTTP, opts.WeatherAPIKey))
	}
	return ups
}

var (
	_ climate.Upstream = (*NASAPower)(nil)
	_ climate.Upstream = (*OpenMeteo)(nil)
	_ climate.Upstream = (*METNorway)(nil)
	_ climate.Upstream = (*NWS)(nil)
	_ climate.Upstream = (*WeatherAPI)(nil)
)
