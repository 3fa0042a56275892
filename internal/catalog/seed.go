package catalog

import (
	"github.com/i474232898/climate-sources/internal/climate"
	"github.com/i474232898/climate-sources/internal/license"
)

// Provider ids of the built-in catalog.
const (
	NASAPower  = "nasa_power"
	OpenMeteo  = "open_meteo"
	METNorway  = "met_norway"
	NWS        = "nws"
	WeatherAPI = "weatherapi"
)

var (
	// Europe as served by MET Norway's Nordic/European products.
	europeBBox = climate.BBox{West: -25, South: 34, East: 45, North: 72}
	// Contiguous United States for api.weather.gov grids.
	conusBBox = climate.BBox{West: -125, South: 24, East: -66.5, North: 49.5}
)

// DefaultProviders seeds the provider table.
func DefaultProviders() []climate.ProviderDescriptor {
	nasaFloor := climate.MustParseDate("1981-01-01")
	meteoFloor := climate.MustParseDate("1940-01-01")

	return []climate.ProviderDescriptor{
		{
			ID:          NASAPower,
			Name:        "NASA POWER",
			Coverage:    climate.Coverage{Global: true},
			LicenseKind: "public_domain",
			Resolution:  "daily",
			DelayDays:   3,
			MinHistory:  &nasaFloor,
			APIs:        []climate.API{climate.APIArchive},
			Variables:   climate.AllVariables,
			Priority:    3,
			RateLimit:   climate.RateLimit{RequestsPerSecond: 1, Burst: 2, MaxConcurrent: 2},
		},
		{
			ID:              OpenMeteo,
			Name:            "Open-Meteo",
			Coverage:        climate.Coverage{Global: true},
			LicenseKind:     "cc_by_4.0",
			Resolution:      "daily",
			Realtime:        true,
			DelayDays:       2,
			MaxForecastDays: 16,
			MinHistory:      &meteoFloor,
			APIs:            []climate.API{climate.APIArchive, climate.APIForecast},
			Variables:       climate.AllVariables,
			Priority:        2,
			RateLimit:       climate.RateLimit{RequestsPerSecond: 5, Burst: 5, MaxConcurrent: 4},
		},
		{
			ID:              METNorway,
			Name:            "MET Norway Locationforecast",
			Coverage:        climate.Coverage{BBox: &europeBBox},
			LicenseKind:     "cc_by_4.0",
			Resolution:      "hourly",
			Realtime:        true,
			DelayDays:       1,
			MaxForecastDays: 9,
			APIs:            []climate.API{climate.APIForecast},
			Variables: []string{
				climate.VarTempMax, climate.VarTempMin, climate.VarTempMean,
				climate.VarHumidityMean, climate.VarWindSpeedMean, climate.VarPrecipSum,
			},
			Priority:  1,
			RateLimit: climate.RateLimit{RequestsPerSecond: 10, Burst: 5, MaxConcurrent: 4},
		},
		{
			ID:              NWS,
			Name:            "US National Weather Service",
			Coverage:        climate.Coverage{BBox: &conusBBox},
			LicenseKind:     "public_domain",
			Resolution:      "hourly",
			Realtime:        true,
			DelayDays:       1,
			MaxForecastDays: 7,
			APIs:            []climate.API{climate.APIForecast},
			Variables: []string{
				climate.VarTempMax, climate.VarTempMin, climate.VarTempMean,
				climate.VarHumidityMean, climate.VarWindSpeedMean, climate.VarPrecipSum,
			},
			Priority:  1,
			RateLimit: climate.RateLimit{RequestsPerSecond: 2, Burst: 4, MaxConcurrent: 2},
		},
		{
			ID:              WeatherAPI,
			Name:            "WeatherAPI.com",
			Coverage:        climate.Coverage{Global: true},
			LicenseKind:     "proprietary_noncommercial",
			Resolution:      "daily",
			Realtime:        true,
			DelayDays:       1,
			MaxForecastDays: 14,
			APIs:            []climate.API{climate.APIForecast},
			Variables: []string{
				climate.VarTempMax, climate.VarTempMin, climate.VarTempMean,
				climate.VarHumidityMean, climate.VarPrecipSum,
			},
			Priority:  4,
			RateLimit: climate.RateLimit{RequestsPerSecond: 1, Burst: 1, MaxConcurrent: 1},
		},
	}
}

// DefaultLicenses seeds the license table, one per provider.
func DefaultLicenses() []license.License {
	return []license.License{
		{
			ID: "lic-nasa-power", ProviderID: NASAPower, Kind: "public_domain", Status: license.StatusActive,
			Attribution: "Data obtained from the NASA Langley Research Center POWER Project",
			Terms:       license.Terms{AttributionRequired: true, CommercialUse: true, Redistribution: true},
		},
		{
			ID: "lic-open-meteo", ProviderID: OpenMeteo, Kind: "cc_by_4.0", Status: license.StatusActive,
			Attribution: "Weather data by Open-Meteo.com (CC BY 4.0)",
			Terms:       license.Terms{AttributionRequired: true, CommercialUse: true, Redistribution: true, MonthlyQuota: 300000},
		},
		{
			ID: "lic-met-norway", ProviderID: METNorway, Kind: "cc_by_4.0", Status: license.StatusActive,
			Attribution: "Data from The Norwegian Meteorological Institute (MET Norway)",
			Terms:       license.Terms{AttributionRequired: true, CommercialUse: true, Redistribution: true},
		},
		{
			ID: "lic-nws", ProviderID: NWS, Kind: "public_domain", Status: license.StatusActive,
			Terms: license.Terms{CommercialUse: true, Redistribution: true},
		},
		{
			ID: "lic-weatherapi", ProviderID: WeatherAPI, Kind: "proprietary_noncommercial", Status: license.StatusActive,
			Attribution: "Powered by WeatherAPI.com",
			Terms:       license.Terms{AttributionRequired: true, MonthlyQuota: 1000000},
		},
	}
}
