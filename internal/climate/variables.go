package climate

import "slices"

// Canonical daily variable names. Providers translate their own field names to these.
const (
	VarTempMax       = "temperature_2m_max"
	VarTempMin       = "temperature_2m_min"
	VarTempMean      = "temperature_2m_mean"
	VarHumidityMean  = "relative_humidity_2m_mean"
	VarWindSpeedMean = "wind_speed_10m_mean"
	VarRadiationSum  = "shortwave_radiation_sum"
	VarPrecipSum     = "precipitation_sum"
)

// AllVariables in canonical order.
var AllVariables = []string{
	VarTempMax,
	VarTempMin,
	VarTempMean,
	VarHumidityMean,
	VarWindSpeedMean,
	VarRadiationSum,
	VarPrecipSum,
}

// fusible lists variables whose values can be averaged across providers.
// Precipitation is too local to blend.
var fusible = []string{
	VarTempMax,
	VarTempMin,
	VarTempMean,
	VarHumidityMean,
	VarWindSpeedMean,
	VarRadiationSum,
}

func IsKnownVariable(v string) bool { return slices.Contains(AllVariables, v) }

func IsFusible(v string) bool { return slices.Contains(fusible, v) }

// FusibleVariables returns a copy of the fusion allow-list.
func FusibleVariables() []string { return slices.Clone(fusible) }
