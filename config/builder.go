package config

import (
	"github.com/railfeed/railfeed"
)

// BuildOptions converts parsed configuration into SDK options for
// [railfeed.New].
//
// Every value carries a validated default from [Parse], so the returned
// slice always configures the feed completely. Optional settings (the base
// URL override and preference persistence) are emitted only when set.
func BuildOptions(cfg *Config) []railfeed.Option {
	opts := []railfeed.Option{
		railfeed.WithAPIKey(cfg.API.Key),
		railfeed.WithPort(cfg.Port),
		railfeed.WithPositionInterval(cfg.Positions.Interval.Duration()),
		railfeed.WithStaleAfter(cfg.Positions.StaleAfter.Duration()),
		railfeed.WithEventInterval(cfg.Events.Interval.Duration()),
		railfeed.WithRouteBatchSize(cfg.Routes.BatchSize),
		railfeed.WithMetrics(cfg.Metrics.IsEnabled()),
	}

	if cfg.API.BaseURL != "" {
		opts = append(opts, railfeed.WithBaseURL(cfg.API.BaseURL))
	}

	if cfg.Prefs.Path != "" {
		opts = append(opts, railfeed.WithPrefsPath(cfg.Prefs.Path))
	}

	return opts
}
