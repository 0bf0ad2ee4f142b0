// Package config provides YAML configuration parsing for railfeed.
//
// This package enables running railfeed as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//
//	api:
//	  key: ${TRV_API_KEY}
//
//	positions:
//	  interval: 45s
//	  stale_after: 10m
//
//	events:
//	  interval: 2m30s
//
//	routes:
//	  batch_size: 80
//
//	prefs:
//	  path: /var/lib/railfeed/prefs.json
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort             = 8080
	defaultPositionInterval = 45 * time.Second
	defaultEventInterval    = 150 * time.Second
	defaultStaleAfter       = 10 * time.Minute
	defaultRouteBatchSize   = 80

	// minPollInterval is the minimum allowed polling interval. This
	// prevents accidental DoS of the upstream API with overly aggressive
	// polling.
	minPollInterval = 5 * time.Second

	// maxPollInterval keeps an interval typo from silently freezing a
	// store.
	maxPollInterval = time.Hour
)

// Config is the root configuration structure for railfeed.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// API configures access to the transit data API.
	API APIConfig `yaml:"api"`

	// Positions configures the train position store.
	Positions PositionsConfig `yaml:"positions"`

	// Events configures the traffic event store.
	Events EventsConfig `yaml:"events"`

	// Routes configures the route resolution registry.
	Routes RoutesConfig `yaml:"routes"`

	// Prefs configures preference persistence.
	Prefs PrefsConfig `yaml:"prefs"`

	// Metrics toggles Prometheus metrics collection.
	Metrics MetricsConfig `yaml:"metrics"`
}

// APIConfig holds the upstream API credentials and location.
type APIConfig struct {
	// Key is the API authentication key. Required.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Key string `yaml:"key"`

	// BaseURL overrides the production API endpoint. Mainly useful for
	// pointing railfeed at a mock server. Values support environment
	// variable substitution.
	BaseURL string `yaml:"base_url"`
}

// PositionsConfig tunes the train position store.
type PositionsConfig struct {
	// Interval is the time between position polls.
	// Accepts duration strings like "45s", "1m". Defaults to 45s.
	Interval Duration `yaml:"interval"`

	// StaleAfter is the age at which an unseen train is evicted.
	// Defaults to 10m and must not be shorter than Interval.
	StaleAfter Duration `yaml:"stale_after"`
}

// EventsConfig tunes the traffic event store.
type EventsConfig struct {
	// Interval is the time between event polls. Defaults to 2m30s.
	Interval Duration `yaml:"interval"`
}

// RoutesConfig tunes the route resolution registry.
type RoutesConfig struct {
	// BatchSize is the most route lookups resolved in one upstream
	// request. Defaults to 80.
	BatchSize int `yaml:"batch_size"`
}

// PrefsConfig controls preference persistence.
type PrefsConfig struct {
	// Path is the JSON file preferences are saved to. Empty keeps
	// preferences in memory only. Values support environment variable
	// substitution.
	Path string `yaml:"path"`
}

// MetricsConfig toggles the Prometheus registry and the /metrics endpoint.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports the effective metrics setting.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the API key, base URL and
// preferences path. Defaults are applied for every unset field except the
// API key, which is required.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Positions.Interval == 0 {
		cfg.Positions.Interval = Duration(defaultPositionInterval)
	}
	if cfg.Positions.StaleAfter == 0 {
		cfg.Positions.StaleAfter = Duration(defaultStaleAfter)
	}
	if cfg.Events.Interval == 0 {
		cfg.Events.Interval = Duration(defaultEventInterval)
	}
	if cfg.Routes.BatchSize == 0 {
		cfg.Routes.BatchSize = defaultRouteBatchSize
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	key, err := expandEnvVars(c.API.Key)
	if err != nil {
		return fmt.Errorf("api.key: %w", err)
	}
	c.API.Key = key
	if c.API.Key == "" {
		return fmt.Errorf("api.key is required")
	}

	if c.API.BaseURL != "" {
		expanded, err := expandEnvVars(c.API.BaseURL)
		if err != nil {
			return fmt.Errorf("api.base_url: %w", err)
		}
		c.API.BaseURL = expanded

		parsed, err := url.Parse(c.API.BaseURL)
		if err != nil {
			return fmt.Errorf("api.base_url: invalid url: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("api.base_url: scheme must be http or https, got %q", parsed.Scheme)
		}
	}

	for _, iv := range []struct {
		name string
		d    time.Duration
	}{
		{"positions.interval", c.Positions.Interval.Duration()},
		{"events.interval", c.Events.Interval.Duration()},
	} {
		if iv.d < minPollInterval {
			return fmt.Errorf("%s must be at least %s, got %s", iv.name, minPollInterval, iv.d)
		}
		if iv.d > maxPollInterval {
			return fmt.Errorf("%s must not exceed %s, got %s", iv.name, maxPollInterval, iv.d)
		}
	}

	if c.Positions.StaleAfter.Duration() < c.Positions.Interval.Duration() {
		return fmt.Errorf("positions.stale_after (%s) must not be shorter than positions.interval (%s)",
			c.Positions.StaleAfter.Duration(), c.Positions.Interval.Duration())
	}

	if c.Routes.BatchSize < 1 || c.Routes.BatchSize > 400 {
		return fmt.Errorf("routes.batch_size must be between 1 and 400, got %d", c.Routes.BatchSize)
	}

	if c.Prefs.Path != "" {
		expanded, err := expandEnvVars(c.Prefs.Path)
		if err != nil {
			return fmt.Errorf("prefs.path: %w", err)
		}
		c.Prefs.Path = expanded
	}

	return nil
}
