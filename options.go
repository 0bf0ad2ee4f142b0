package railfeed

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// rfConfig holds mutable state during RailFeed construction.
type rfConfig struct {
	apiKey           string
	baseURL          string
	port             int
	positionInterval time.Duration
	eventInterval    time.Duration
	staleAfter       time.Duration
	routeBatchSize   int
	prefsPath        string
	metricsEnabled   bool
	logger           *slog.Logger
}

// Option is a function that configures a [RailFeed] instance during
// construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithAPIKey], [WithBaseURL], [WithPort],
// [WithPositionInterval], [WithEventInterval], [WithStaleAfter],
// [WithRouteBatchSize], [WithPrefsPath], [WithMetrics], [WithLogger].
type Option func(*rfConfig) error

// WithAPIKey sets the Trafikverket open API authentication key.
//
// A key is required for [New] to succeed; register one at
// https://data.trafikverket.se to obtain it.
//
// Example:
//
//	rf, err := railfeed.New(
//	    railfeed.WithAPIKey(os.Getenv("TRV_API_KEY")),
//	)
//
// Returns an error if the key is empty.
func WithAPIKey(key string) Option {
	return func(cfg *rfConfig) error {
		if key == "" {
			return errors.New("API key cannot be empty")
		}
		cfg.apiKey = key
		return nil
	}
}

// WithBaseURL overrides the upstream API endpoint.
//
// Defaults to the public Trafikverket data endpoint. Overriding it is
// mainly useful for pointing the feed at a staging environment or a local
// stub server in tests.
//
// Example:
//
//	rf, err := railfeed.New(
//	    railfeed.WithAPIKey(key),
//	    railfeed.WithBaseURL("http://localhost:9090/v2/data.json"),
//	)
//
// Returns an error if the URL does not parse or is not http/https.
func WithBaseURL(rawURL string) Option {
	return func(cfg *rfConfig) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base URL must use http or https, got %q", u.Scheme)
		}
		cfg.baseURL = rawURL
		return nil
	}
}

// WithPort sets the HTTP port for the API server.
//
// The REST API and event stream will be available at
// http://localhost:<port>. Defaults to 8080 if not specified.
//
// Example:
//
//	rf, err := railfeed.New(
//	    railfeed.WithAPIKey(key),
//	    railfeed.WithPort(9090),
//	)
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *rfConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithPositionInterval sets how often the train position feed is polled.
//
// Positions poll incrementally: after the first full listing only entries
// modified since the previous poll are fetched, so short intervals stay
// cheap. Defaults to 45 seconds if not specified.
//
// Example:
//
//	rf, err := railfeed.New(
//	    railfeed.WithAPIKey(key),
//	    railfeed.WithPositionInterval(30 * time.Second),
//	)
//
// Returns an error if the duration is zero or negative.
func WithPositionInterval(d time.Duration) Option {
	return func(cfg *rfConfig) error {
		if d <= 0 {
			return errors.New("position interval must be positive")
		}
		cfg.positionInterval = d
		return nil
	}
}

// WithEventInterval sets how often the traffic event feeds are polled.
//
// Traffic events change far less often than positions, so this interval is
// usually a multiple of the position interval. Defaults to 150 seconds if
// not specified.
//
// Returns an error if the duration is zero or negative.
func WithEventInterval(d time.Duration) Option {
	return func(cfg *rfConfig) error {
		if d <= 0 {
			return errors.New("event interval must be positive")
		}
		cfg.eventInterval = d
		return nil
	}
}

// WithStaleAfter sets how long a train may go without a position update
// before it is evicted from the cache.
//
// Defaults to 10 minutes if not specified. Must not be shorter than the
// position interval, otherwise healthy trains would be evicted between
// polls; [New] rejects such a combination.
//
// Returns an error if the duration is zero or negative.
func WithStaleAfter(d time.Duration) Option {
	return func(cfg *rfConfig) error {
		if d <= 0 {
			return errors.New("stale-after must be positive")
		}
		cfg.staleAfter = d
		return nil
	}
}

// WithRouteBatchSize sets how many unresolved trains a single route lookup
// batch may carry.
//
// Larger batches mean fewer upstream calls but bigger responses. The
// upstream filter accepts at most 400 identifiers per request. Defaults to
// 80 if not specified.
//
// Returns an error if the size is outside the range 1-400.
func WithRouteBatchSize(n int) Option {
	return func(cfg *rfConfig) error {
		if n < 1 || n > 400 {
			return errors.New("route batch size must be between 1 and 400")
		}
		cfg.routeBatchSize = n
		return nil
	}
}

// WithPrefsPath enables preference persistence at the given file path.
//
// Preferences are stored as a small JSON document, written atomically on
// every change and loaded once at construction. Without this option
// preferences live in memory only and reset on restart.
//
// Example:
//
//	rf, err := railfeed.New(
//	    railfeed.WithAPIKey(key),
//	    railfeed.WithPrefsPath(filepath.Join(home, ".railfeed", "prefs.json")),
//	)
//
// Returns an error if the path is empty.
func WithPrefsPath(path string) Option {
	return func(cfg *rfConfig) error {
		if path == "" {
			return errors.New("prefs path cannot be empty")
		}
		cfg.prefsPath = path
		return nil
	}
}

// WithMetrics enables or disables Prometheus metrics.
//
// When enabled (the default) the server exposes /metrics and the stores
// record poll, record-count and notification counters. Disabling removes
// the endpoint and all collection overhead.
func WithMetrics(enabled bool) Option {
	return func(cfg *rfConfig) error {
		cfg.metricsEnabled = enabled
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the RailFeed instance.
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	rf, err := railfeed.New(
//	    railfeed.WithAPIKey(key),
//	    railfeed.WithLogger(logger),
//	)
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *rfConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}
