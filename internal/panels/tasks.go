package panels

import (
	"context"
	"time"

	"github.com/star/searoute/internal/backend"
)

// Panel names.
const (
	PanelPositions = "positions"
	PanelWeather   = "weather"
	PanelNews      = "news"
	PanelRisk      = "risk"
)

// Config holds panel polling configuration loaded from environment variables.
type Config struct {
	Latitude          float64       // Point the weather and risk panels describe
	Longitude         float64       //
	NewsLimit         int           // Articles per news fetch (default: 5)
	WeatherInterval   time.Duration // default: 5m
	NewsInterval      time.Duration // default: 5m
	RiskInterval      time.Duration // default: 5m
	PositionsInterval time.Duration // default: 60s
	PositionsEnabled  bool          // Poll the upstream AIS feed
}

// Provider is the subset of the backend client the panels poll.
type Provider interface {
	Weather(ctx context.Context, lat, lon float64) (backend.WeatherReport, error)
	News(ctx context.Context, limit int) ([]backend.NewsArticle, error)
	Risk(ctx context.Context, lat, lon float64) (backend.RiskLevel, error)
	Positions(ctx context.Context) ([]backend.VesselReport, error)
}

func (c *Config) applyDefaults() {
	if c.NewsLimit <= 0 {
		c.NewsLimit = 5
	}
	if c.WeatherInterval <= 0 {
		c.WeatherInterval = 5 * time.Minute
	}
	if c.NewsInterval <= 0 {
		c.NewsInterval = 5 * time.Minute
	}
	if c.RiskInterval <= 0 {
		c.RiskInterval = 5 * time.Minute
	}
	if c.PositionsInterval <= 0 {
		c.PositionsInterval = 60 * time.Second
	}
}

// DefaultTasks returns the dashboard's panel tasks backed by p.
func DefaultTasks(p Provider, cfg Config) []Task {
	cfg.applyDefaults()

	tasks := []Task{
		{
			Name:     PanelWeather,
			Interval: cfg.WeatherInterval,
			Fetch: func(ctx context.Context) (any, error) {
				return p.Weather(ctx, cfg.Latitude, cfg.Longitude)
			},
		},
		{
			Name:     PanelNews,
			Interval: cfg.NewsInterval,
			Fetch: func(ctx context.Context) (any, error) {
				return emptyIfNil(p.News(ctx, cfg.NewsLimit))
			},
		},
		{
			Name:     PanelRisk,
			Interval: cfg.RiskInterval,
			Fetch: func(ctx context.Context) (any, error) {
				return p.Risk(ctx, cfg.Latitude, cfg.Longitude)
			},
		},
	}

	if cfg.PositionsEnabled {
		tasks = append(tasks, Task{
			Name:     PanelPositions,
			Interval: cfg.PositionsInterval,
			Fetch: func(ctx context.Context) (any, error) {
				return emptyIfNil(p.Positions(ctx))
			},
		})
	}
	return tasks
}

// emptyIfNil turns a successful nil list into an empty one, so the panel
// stores [] rather than null.
func emptyIfNil[T any](list []T, err error) ([]T, error) {
	if err == nil && list == nil {
		list = []T{}
	}
	return list, err
}
