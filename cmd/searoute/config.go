package main

import (
	"errors"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/star/searoute/internal/auth"
	"github.com/star/searoute/internal/backend"
	"github.com/star/searoute/internal/fleet"
	"github.com/star/searoute/internal/panels"
	"github.com/star/searoute/internal/simclock"
	"github.com/star/searoute/internal/stream"
	"github.com/star/searoute/internal/tracker"
)

type routesConfig struct {
	Path  string
	Watch bool
}

type cacheConfig struct {
	Dir      string
	MaxFiles int
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("SEAROUTE_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("SEAROUTE_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SEAROUTE_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SEAROUTE_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadRoutesConfig(logger *slog.Logger) routesConfig {
	cfg := routesConfig{
		Path:  "configs/routes.yaml",
		Watch: true,
	}

	if v := os.Getenv("SEAROUTE_ROUTES_FILE"); v != "" {
		cfg.Path = v
	}

	if v := os.Getenv("SEAROUTE_ROUTES_WATCH"); v != "" {
		watch, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SEAROUTE_ROUTES_WATCH value, defaulting to true", "value", v)
		} else {
			cfg.Watch = watch
		}
	}

	logger.Info("routes config", "path", cfg.Path, "watch", cfg.Watch)
	return cfg
}

func loadFleetConfig(logger *slog.Logger) fleet.Config {
	cfg := fleet.Config{Workers: runtime.NumCPU()}

	if v := os.Getenv("SEAROUTE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SEAROUTE_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	logger.Info("fleet config", "workers", cfg.Workers)
	return cfg
}

// loadClockConfig returns the clock configuration and whether the clock
// should start running immediately.
func loadClockConfig(logger *slog.Logger) (simclock.Config, bool) {
	cfg := simclock.Config{
		Step:  simclock.DefaultStep,
		Speed: 1,
	}
	autostart := true

	if v := os.Getenv("SEAROUTE_CLOCK_STEP"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 100 {
			logger.Warn("invalid SEAROUTE_CLOCK_STEP value, using default", "value", v, "default", simclock.DefaultStep)
		} else {
			cfg.Step = f
		}
	}

	if v := os.Getenv("SEAROUTE_CLOCK_SPEED"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			logger.Warn("invalid SEAROUTE_CLOCK_SPEED value, using default", "value", v, "default", 1)
		} else {
			cfg.Speed = f
		}
	}

	if v := os.Getenv("SEAROUTE_CLOCK_AUTOSTART"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SEAROUTE_CLOCK_AUTOSTART value, defaulting to true", "value", v)
		} else {
			autostart = b
		}
	}

	logger.Info("clock config",
		"step", cfg.Step,
		"speed", cfg.Speed,
		"autostart", autostart,
	)
	return cfg, autostart
}

func loadTrackerConfig(logger *slog.Logger) tracker.Config {
	cfg := tracker.Config{
		TickInterval:  100 * time.Millisecond,
		TrailCapacity: simclock.DefaultTrailCapacity,
	}

	if v := os.Getenv("SEAROUTE_TICK_INTERVAL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 10 {
			logger.Warn("invalid SEAROUTE_TICK_INTERVAL_MS value, using default", "value", v, "default", 100)
		} else {
			cfg.TickInterval = time.Duration(n) * time.Millisecond
		}
	}

	if v := os.Getenv("SEAROUTE_TRAIL_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SEAROUTE_TRAIL_CAPACITY value, using default", "value", v, "default", cfg.TrailCapacity)
		} else {
			cfg.TrailCapacity = n
		}
	}

	return cfg
}

func loadBackendConfig(logger *slog.Logger) backend.Config {
	cfg := backend.Config{
		BaseURL:      "http://localhost:8000",
		Timeout:      10 * time.Second,
		MaxBodyBytes: 1 << 20,
	}

	if v := os.Getenv("SEAROUTE_BACKEND_URL"); v != "" {
		cfg.BaseURL = v
	}

	if v := os.Getenv("SEAROUTE_BACKEND_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SEAROUTE_BACKEND_TIMEOUT value, using default", "value", v, "default", 10)
		} else {
			cfg.Timeout = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SEAROUTE_BACKEND_MAX_BODY"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			logger.Warn("invalid SEAROUTE_BACKEND_MAX_BODY value, using default", "value", v, "default", cfg.MaxBodyBytes)
		} else {
			cfg.MaxBodyBytes = n
		}
	}

	logger.Info("backend config",
		"base_url", cfg.BaseURL,
		"timeout_seconds", cfg.Timeout.Seconds(),
	)
	return cfg
}

func loadPanelConfig(logger *slog.Logger) (cacheConfig, panels.Config) {
	cache := cacheConfig{
		Dir:      "/tmp/searoute/panels",
		MaxFiles: 5,
	}
	cfg := panels.Config{
		Latitude:          37.7749,
		Longitude:         -122.4194,
		NewsLimit:         5,
		WeatherInterval:   5 * time.Minute,
		NewsInterval:      5 * time.Minute,
		RiskInterval:      5 * time.Minute,
		PositionsInterval: 60 * time.Second,
	}

	if v := os.Getenv("SEAROUTE_PANEL_CACHE_DIR"); v != "" {
		cache.Dir = v
	}

	if v := os.Getenv("SEAROUTE_PANEL_CACHE_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SEAROUTE_PANEL_CACHE_MAX_FILES value, using default", "value", v, "default", 5)
		} else {
			cache.MaxFiles = n
		}
	}

	if v := os.Getenv("SEAROUTE_PANEL_CENTER"); v != "" {
		lat, lon, err := parseLatLon(v)
		if err != nil {
			logger.Warn("invalid SEAROUTE_PANEL_CENTER value, using default", "value", v, "error", err)
		} else {
			cfg.Latitude, cfg.Longitude = lat, lon
		}
	}

	if v := os.Getenv("SEAROUTE_NEWS_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SEAROUTE_NEWS_LIMIT value, using default", "value", v, "default", 5)
		} else {
			cfg.NewsLimit = n
		}
	}

	intervals := []struct {
		env string
		dst *time.Duration
	}{
		{"SEAROUTE_WEATHER_INTERVAL", &cfg.WeatherInterval},
		{"SEAROUTE_NEWS_INTERVAL", &cfg.NewsInterval},
		{"SEAROUTE_RISK_INTERVAL", &cfg.RiskInterval},
		{"SEAROUTE_POSITIONS_INTERVAL", &cfg.PositionsInterval},
	}
	for _, iv := range intervals {
		v := os.Getenv(iv.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid interval value, using default", "env", iv.env, "value", v, "default_seconds", iv.dst.Seconds())
			continue
		}
		*iv.dst = time.Duration(n) * time.Second
	}

	if v := os.Getenv("SEAROUTE_AIS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SEAROUTE_AIS_ENABLED value, defaulting to false", "value", v)
		} else {
			cfg.PositionsEnabled = b
		}
	}

	logger.Info("panel config",
		"cache_dir", cache.Dir,
		"latitude", cfg.Latitude,
		"longitude", cfg.Longitude,
		"weather_interval_seconds", cfg.WeatherInterval.Seconds(),
		"news_interval_seconds", cfg.NewsInterval.Seconds(),
		"risk_interval_seconds", cfg.RiskInterval.Seconds(),
		"ais_enabled", cfg.PositionsEnabled,
	)
	return cache, cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		MaxConcurrent:      1000,
		KeepaliveInterval:  30 * time.Second,
		DefaultTrail:       simclock.DefaultTrailCapacity,
	}

	if v := os.Getenv("SEAROUTE_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SEAROUTE_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("SEAROUTE_STREAM_MAX_TOTAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SEAROUTE_STREAM_MAX_TOTAL value, using default", "value", v, "default", 1000)
		} else {
			cfg.MaxConcurrent = n
		}
	}

	if v := os.Getenv("SEAROUTE_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SEAROUTE_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SEAROUTE_TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SEAROUTE_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = b
		}
	}

	if v := os.Getenv("SEAROUTE_ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_concurrent", cfg.MaxConcurrent,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"allowed_origins", cfg.AllowedOrigins,
	)
	return cfg
}

// parseLatLon parses "lat,lon".
func parseLatLon(s string) (float64, float64, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, errors.New("expected lat,lon")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, errors.New("latitude must be in [-90, 90]")
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, errors.New("longitude must be in [-180, 180]")
	}
	return lat, lon, nil
}
