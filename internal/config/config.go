// Package config loads gateway settings from a config file, GRAPHSTITCH_*
// environment variables and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GRAPHSTITCH_SERVER_ADDR.
const EnvPrefix = "GRAPHSTITCH"

type Config struct {
	// Supergraph is the path of the composed SDL annotated with @source and
	// @resolver.
	Supergraph string           `mapstructure:"supergraph"`
	Locations  []LocationConfig `mapstructure:"locations"`
	Server     ServerConfig     `mapstructure:"server"`
	Transport  TransportConfig  `mapstructure:"transport"`
	Client     ClientConfig     `mapstructure:"client"`
	Log        LogConfig        `mapstructure:"log"`
	Otel       OtelConfig       `mapstructure:"otel"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// LocationConfig maps a supergraph location to its GraphQL endpoints.
// Locations are a list rather than a map so names keep their case.
type LocationConfig struct {
	Name      string   `mapstructure:"name"`
	Endpoints []string `mapstructure:"endpoints"`
}

type ServerConfig struct {
	Addr             string        `mapstructure:"addr"`
	Path             string        `mapstructure:"path"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
	Pretty           bool          `mapstructure:"pretty"`
	CORSOrigins      []string      `mapstructure:"cors_origins"`
	MetadataHeaders  []string      `mapstructure:"metadata_headers"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
}

type TransportConfig struct {
	MaxConnsPerEndpoint int           `mapstructure:"max_conns_per_endpoint"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
}

type ClientConfig struct {
	Validate      bool `mapstructure:"validate"`
	PlanCacheSize int  `mapstructure:"plan_cache_size"`
	Concurrency   int  `mapstructure:"concurrency"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type OtelConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Service  string `mapstructure:"service"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

var defaults = map[string]any{
	"supergraph":                       "supergraph.graphql",
	"server.addr":                      ":8080",
	"server.path":                      "/graphql",
	"server.timeout":                   10 * time.Second,
	"server.max_body_bytes":            int64(1 << 20),
	"server.pretty":                    false,
	"server.cors_origins":              []string{},
	"server.metadata_headers":          []string{},
	"server.batch_concurrency":         4,
	"transport.max_conns_per_endpoint": 16,
	"transport.request_timeout":        3 * time.Second,
	"client.validate":                  true,
	"client.plan_cache_size":           256,
	"client.concurrency":               0,
	"log.level":                        "info",
	"log.development":                  false,
	"otel.endpoint":                    "",
	"otel.service":                     "graphstitch",
	"metrics.enabled":                  true,
	"metrics.path":                     "/metrics",
}

// Load reads the config file at path, if any, applies environment
// overrides and then flags whose names match config keys.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if flags != nil {
		var err error
		flags.VisitAll(func(f *pflag.Flag) {
			if _, known := defaults[f.Name]; known && err == nil {
				err = v.BindPFlag(f.Name, f)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	seen := map[string]bool{}
	for i, loc := range c.Locations {
		switch {
		case loc.Name == "":
			errs = append(errs, fmt.Errorf("locations[%d]: name is required", i))
		case seen[loc.Name]:
			errs = append(errs, fmt.Errorf("locations[%d]: duplicate location %q", i, loc.Name))
		case len(loc.Endpoints) == 0:
			errs = append(errs, fmt.Errorf("location %q: no endpoints", loc.Name))
		}
		seen[loc.Name] = true
	}
	if c.Client.PlanCacheSize < 0 {
		errs = append(errs, errors.New("client.plan_cache_size must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Endpoints returns endpoints keyed by location name.
func (c *Config) Endpoints() map[string][]string {
	out := make(map[string][]string, len(c.Locations))
	for _, loc := range c.Locations {
		out[loc.Name] = append(out[loc.Name], loc.Endpoints...)
	}
	return out
}
