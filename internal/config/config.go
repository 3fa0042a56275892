package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port string `validate:"required,numeric"`

	// Outbound provider calls.
	HTTPTimeout            time.Duration `validate:"gt=0"`
	UpstreamMaxRetries     int           `validate:"gte=0,lte=10"`
	UpstreamInitialBackoff time.Duration `validate:"gt=0"`
	UpstreamMaxBackoff     time.Duration `validate:"gtefield=UpstreamInitialBackoff"`
	UserAgent              string        `validate:"required"`
	WeatherAPIKey          string

	// Cache.
	CacheBackend      string `validate:"oneof=memory redis none"`
	RedisURL          string `validate:"required_if=CacheBackend redis"`
	RedisPoolSize     int    `validate:"gte=0"`
	RedisMinIdleConns int    `validate:"gte=0"`
	RedisDialTimeout  time.Duration
	RedisReadTimeout  time.Duration
	RedisWriteTimeout time.Duration
	CacheMaxEntries   int           `validate:"gte=0"`
	CacheOpTimeout    time.Duration `validate:"gt=0"`

	// Request windows.
	WindowMinDays int           `validate:"gte=1"`
	WindowMaxDays int           `validate:"gtefield=WindowMinDays"`
	FetchTimeout  time.Duration `validate:"gt=0"`

	// Fusion.
	FusionWeighting   string `validate:"oneof=priority reliability"`
	FusionReliability map[string]float64

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json text"`

	// CatalogFile replaces the built-in provider and license tables when set.
	CatalogFile string

	LicenseMonitorInterval time.Duration `validate:"gt=0"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:               getenvDefault("PORT", "8080"),
		UpstreamMaxRetries: getenvInt("UPSTREAM_MAX_RETRIES", 3),
		UserAgent:          getenvDefault("USER_AGENT", "climate-sources/1.0 (+https://github.com/i474232898/climate-sources)"),
		WeatherAPIKey:      os.Getenv("WEATHERAPI_API_KEY"),
		CacheBackend:       strings.ToLower(getenvDefault("CACHE_BACKEND", "memory")),
		RedisURL:           os.Getenv("REDIS_URL"),
		RedisPoolSize:      getenvInt("REDIS_POOL_SIZE", 0),
		RedisMinIdleConns:  getenvInt("REDIS_MIN_IDLE_CONNS", 0),
		CacheMaxEntries:    getenvInt("CACHE_MAX_ENTRIES", 10000),
		WindowMinDays:      getenvInt("WINDOW_MIN_DAYS", 7),
		WindowMaxDays:      getenvInt("WINDOW_MAX_DAYS", 30),
		FusionWeighting:    strings.ToLower(getenvDefault("FUSION_WEIGHTING", "priority")),
		LogLevel:           strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getenvDefault("LOG_FORMAT", "json")),
		CatalogFile:        os.Getenv("CATALOG_FILE"),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "30s", &cfg.HTTPTimeout},
		{"UPSTREAM_INITIAL_BACKOFF", "500ms", &cfg.UpstreamInitialBackoff},
		{"UPSTREAM_MAX_BACKOFF", "5s", &cfg.UpstreamMaxBackoff},
		{"REDIS_DIAL_TIMEOUT", "0s", &cfg.RedisDialTimeout},
		{"REDIS_READ_TIMEOUT", "0s", &cfg.RedisReadTimeout},
		{"REDIS_WRITE_TIMEOUT", "0s", &cfg.RedisWriteTimeout},
		{"CACHE_OP_TIMEOUT", "500ms", &cfg.CacheOpTimeout},
		{"FETCH_TIMEOUT", "60s", &cfg.FetchTimeout},
		{"LICENSE_MONITOR_INTERVAL", "1h", &cfg.LicenseMonitorInterval},
	}
	for _, d := range durations {
		v, err := getenvDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	reliability, err := parseReliability(os.Getenv("FUSION_RELIABILITY"))
	if err != nil {
		return nil, fmt.Errorf("invalid FUSION_RELIABILITY: %w", err)
	}
	cfg.FusionReliability = reliability

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// parseReliability reads "id=w,id=w". Empty input yields nil.
func parseReliability(raw string) (map[string]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		id, w, ok := strings.Cut(strings.TrimSpace(pair), "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("entry %q is not id=weight", pair)
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
		if err != nil || weight < 0 {
			return nil, fmt.Errorf("entry %q has an invalid weight", pair)
		}
		out[id] = weight
	}
	return out, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
