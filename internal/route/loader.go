package route

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// fileConfig is the on-disk shape of a route file.
type fileConfig struct {
	Routes []Route     `mapstructure:"routes"`
	Stats  StatsParams `mapstructure:"stats"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("stats.fuel_price_per_ton", 650.0)
	v.SetDefault("stats.vessel_capacity_teu", 14000)
	v.SetDefault("stats.avg_speed_knots", 15.5)
	v.SetDefault("stats.fuel_tons_per_hour", 6.25)
}

// Parse reads a route file from r. format is a viper config type ("yaml", "json", "toml").
func Parse(r io.Reader, format, source string) (*RouteSet, error) {
	v := viper.New()
	v.SetConfigType(format)
	setDefaults(v)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("reading route config: %w", err)
	}
	return decode(v, source)
}

func decode(v *viper.Viper, source string) (*RouteSet, error) {
	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding route config: %w", err)
	}
	if len(cfg.Routes) == 0 {
		return nil, ErrNoRoutes
	}

	seen := make(map[string]bool, len(cfg.Routes))
	for _, r := range cfg.Routes {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate route name %q", r.Name)
		}
		seen[r.Name] = true
	}

	return &RouteSet{
		Source:   source,
		LoadedAt: time.Now(),
		Routes:   cfg.Routes,
		Stats:    cfg.Stats,
	}, nil
}

// readFile parses the route file at path with a fresh viper instance, so a
// failed read never leaves stale values behind.
func readFile(path string) (*RouteSet, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading route file %s: %w", path, err)
	}
	rs, err := decode(v, path)
	if err != nil {
		return nil, fmt.Errorf("route file %s: %w", path, err)
	}
	return rs, nil
}

// Loader reads a route file into a Store and optionally keeps it in sync with disk.
type Loader struct {
	path   string
	store  *Store
	logger *slog.Logger
	v      *viper.Viper // file watcher only

	mu       sync.Mutex // serializes reloads
	onReload func(*RouteSet, error)
}

// NewLoader creates a Loader for the route file at path.
func NewLoader(path string, store *Store, logger *slog.Logger) *Loader {
	v := viper.New()
	v.SetConfigFile(path)
	return &Loader{
		path:   path,
		store:  store,
		logger: logger,
		v:      v,
	}
}

// OnReload registers fn to run after every watched reload attempt. rs is the
// newly published set, or nil when err is set and the store was left alone.
func (l *Loader) OnReload(fn func(rs *RouteSet, err error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReload = fn
}

// Load reads the route file and publishes it to the store.
func (l *Loader) Load() (*RouteSet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rs, err := readFile(l.path)
	if err != nil {
		return nil, err
	}
	l.store.Set(rs)
	l.logger.Info("routes loaded", "path", l.path, "routes", len(rs.Routes))
	return rs, nil
}

// Watch reloads the store whenever the route file changes on disk.
// An invalid edit is logged and the previous route set stays active.
func (l *Loader) Watch() {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.mu.Lock()
		defer l.mu.Unlock()

		rs, err := readFile(l.path)
		if err != nil {
			l.logger.Warn("route file reload rejected", "path", l.path, "op", e.Op.String(), "error", err)
		} else {
			l.store.Set(rs)
			l.logger.Info("routes reloaded", "path", l.path, "routes", len(rs.Routes))
		}
		if l.onReload != nil {
			l.onReload(rs, err)
		}
	})
	l.v.WatchConfig()
}
