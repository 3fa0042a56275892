package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 3, cfg.UpstreamMaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.UpstreamInitialBackoff)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, 7, cfg.WindowMinDays)
	assert.Equal(t, 30, cfg.WindowMaxDays)
	assert.Equal(t, 60*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "priority", cfg.FusionWeighting)
	assert.Nil(t, cfg.FusionReliability)
	assert.Equal(t, time.Hour, cfg.LicenseMonitorInterval)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_POOL_SIZE", "20")
	t.Setenv("FUSION_WEIGHTING", "reliability")
	t.Setenv("FUSION_RELIABILITY", "open_meteo=0.9, nasa_power = 0.5")
	t.Setenv("WINDOW_MAX_DAYS", "45")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "redis", cfg.CacheBackend)
	assert.Equal(t, 20, cfg.RedisPoolSize)
	assert.Equal(t, 45, cfg.WindowMaxDays)
	assert.Equal(t, map[string]float64{"open_meteo": 0.9, "nasa_power": 0.5}, cfg.FusionReliability)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"FETCH_TIMEOUT": "soon"}},
		{"unknown cache backend", map[string]string{"CACHE_BACKEND": "memcached"}},
		{"redis without url", map[string]string{"CACHE_BACKEND": "redis"}},
		{"window limits inverted", map[string]string{"WINDOW_MIN_DAYS": "10", "WINDOW_MAX_DAYS": "5"}},
		{"unknown weighting", map[string]string{"FUSION_WEIGHTING": "random"}},
		{"bad reliability", map[string]string{"FUSION_RELIABILITY": "open_meteo"}},
		{"negative reliability", map[string]string{"FUSION_RELIABILITY": "open_meteo=-1"}},
		{"backoff inverted", map[string]string{"UPSTREAM_INITIAL_BACKOFF": "10s", "UPSTREAM_MAX_BACKOFF": "1s"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestGetenvIntFallsBack(t *testing.T) {
	t.Setenv("CACHE_MAX_ENTRIES", "many")
	assert.Equal(t, 42, getenvInt("CACHE_MAX_ENTRIES", 42))
}
