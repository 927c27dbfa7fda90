// Package config loads the settings of a tile view from YAML, with defaults,
// validation and TILEVIEW_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
	"gopkg.in/yaml.v3"

	"github.com/eak1mov/go-tileview/cache"
	"github.com/eak1mov/go-tileview/compositor"
	"github.com/eak1mov/go-tileview/provider"
	"github.com/eak1mov/go-tileview/view"
)

// EnvPrefix starts the name of every environment override.
const EnvPrefix = "TILEVIEW_"

var ErrInvalidConfig = errors.New("tileview: invalid config")

type Config struct {
	Provider           string        `yaml:"provider" default:"StamenTonerInverted" validate:"required"`
	CacheBackend       string        `yaml:"cache_backend" default:"fs" validate:"oneof=fs sqlite memory"`
	CachePath          string        `yaml:"cache_path" default:"tilecache" validate:"required_unless=CacheBackend memory"`
	MemoryCacheEntries int           `yaml:"memory_cache_entries" default:"1000" validate:"gte=0"`
	FetchConcurrency   int           `yaml:"fetch_concurrency" default:"10" validate:"gte=1,lte=64"`
	UserAgent          string        `yaml:"user_agent"`
	RequestTimeout     time.Duration `yaml:"request_timeout" default:"30s" validate:"gte=0"`
	ZoomCalibration    float64       `yaml:"zoom_calibration" default:"17.756199785269995" validate:"gt=0"`
	MissingTiles       string        `yaml:"missing_tiles" default:"fallback" validate:"oneof=raise ignore fallback"`
	MinEventInterval   time.Duration `yaml:"min_event_interval" validate:"gte=0"`
	TileMargin         int           `yaml:"tile_margin" default:"1" validate:"gte=0"`
	StrictSync         bool          `yaml:"strict_sync"`
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads path and applies the environment. An empty path loads the defaults.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}
	return Parse(data, os.LookupEnv)
}

// Parse decodes data over the defaults, then applies overrides found by lookupEnv.
func Parse(data []byte, lookupEnv func(string) (string, bool)) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if lookupEnv != nil {
		if err := c.applyEnv(lookupEnv); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// EnvName returns the variable that overrides the YAML key.
func EnvName(key string) string {
	return EnvPrefix + strcase.ToScreamingSnake(key)
}

// applyEnv decodes each override as a YAML scalar into the field it names.
func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := range t.NumField() {
		key, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		value, ok := lookupEnv(EnvName(key))
		if !ok {
			continue
		}
		if err := yaml.Unmarshal([]byte(value), v.Field(i).Addr().Interface()); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvName(key), err)
		}
	}
	return nil
}

func (c *Config) Missing() (compositor.OnMissing, error) {
	return compositor.ParseOnMissing(c.MissingTiles)
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}

// OpenCache opens the configured response cache. A nil logger discards.
func (c *Config) OpenCache(logger *slog.Logger) (cache.Store, error) {
	logger = orDiscard(logger)
	return cache.Open(c.CacheBackend, c.CachePath, c.MemoryCacheEntries, cache.WithLogger(logger))
}

// NewClient builds the tile client on top of store, which may be nil.
func (c *Config) NewClient(store cache.Store, logger *slog.Logger) *provider.Client {
	logger = orDiscard(logger)
	opts := []provider.ClientOption{
		provider.WithTimeout(c.RequestTimeout),
		provider.WithLogger(logger),
	}
	if store != nil {
		opts = append(opts, provider.WithStore(store))
	}
	if c.UserAgent != "" {
		opts = append(opts, provider.WithUserAgent(c.UserAgent))
	}
	return provider.NewClient(opts...)
}

// LookupProvider resolves the configured provider name in reg.
func (c *Config) LookupProvider(reg *provider.Registry) (provider.Provider, error) {
	return reg.Lookup(c.Provider)
}

// ViewOptions translates the view settings into controller options.
func (c *Config) ViewOptions(client *provider.Client, logger *slog.Logger) ([]view.Option, error) {
	missing, err := c.Missing()
	if err != nil {
		return nil, err
	}
	logger = orDiscard(logger)
	return []view.Option{
		view.WithClient(client),
		view.WithLogger(logger),
		view.WithZoomCalibration(c.ZoomCalibration),
		view.WithTileMargin(c.TileMargin),
		view.WithMissingTiles(missing),
		view.WithFetchConcurrency(c.FetchConcurrency),
		view.WithMinEventInterval(c.MinEventInterval),
		view.WithStrictSync(c.StrictSync),
	}, nil
}
