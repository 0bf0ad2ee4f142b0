package railfeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/railfeed/railfeed/internal/metrics"
	"github.com/railfeed/railfeed/internal/server"
	"github.com/railfeed/railfeed/internal/trv"
	"github.com/railfeed/railfeed/positions"
	"github.com/railfeed/railfeed/prefs"
	"github.com/railfeed/railfeed/routes"
	"github.com/railfeed/railfeed/traffic"
)

const (
	defaultBaseURL          = "https://api.trafikinfo.trafikverket.se/v2/data.json"
	defaultPort             = 8080
	defaultPositionInterval = 45 * time.Second
	defaultEventInterval    = 150 * time.Second
	defaultStaleAfter       = 10 * time.Minute
	defaultRouteBatchSize   = 80
)

// RailFeed is the main orchestrator for the live train data sync layer.
//
// RailFeed owns the upstream API client, the observable stores built on top
// of it, and the HTTP server that exposes them. It is created using [New]
// with functional options and started with [RailFeed.Start].
//
// The typical lifecycle is:
//
//	rf, err := railfeed.New(railfeed.WithAPIKey(key))
//	if err != nil {
//	    slog.Error("failed to create railfeed", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	rf.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// trigger graceful shutdown.
//
// The stores are also usable without Start: [RailFeed.Positions],
// [RailFeed.Events] and [RailFeed.Routes] return live stores whose polling
// begins with their first subscriber, so an embedding application can
// consume snapshots directly and skip the HTTP server entirely.
type RailFeed struct {
	client           *trv.Client
	metrics          *metrics.Registry
	positions        *positions.Store
	events           *traffic.Store
	routes           *routes.Registry
	prefs            *prefs.Store
	port             int
	positionInterval time.Duration
	eventInterval    time.Duration
	logger           *slog.Logger
}

// New creates a new [RailFeed] instance with the given options.
//
// An API key must be configured via [WithAPIKey]. Other options have
// sensible defaults:
//   - Position interval: 45 seconds
//   - Event interval: 150 seconds
//   - Stale-after: 10 minutes
//   - Route batch size: 80
//   - Port: 8080
//   - Metrics: enabled
//
// Returns an error if no API key is configured or if any option is invalid.
//
// Example:
//
//	rf, err := railfeed.New(
//	    railfeed.WithAPIKey(os.Getenv("TRV_API_KEY")),
//	    railfeed.WithPositionInterval(30 * time.Second),
//	    railfeed.WithPort(9090),
//	)
func New(opts ...Option) (*RailFeed, error) {
	cfg := &rfConfig{
		baseURL:          defaultBaseURL,
		port:             defaultPort,
		positionInterval: defaultPositionInterval,
		eventInterval:    defaultEventInterval,
		staleAfter:       defaultStaleAfter,
		routeBatchSize:   defaultRouteBatchSize,
		metricsEnabled:   true,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.apiKey == "" {
		return nil, errors.New("an API key is required")
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	// cross-field check: evicting faster than we poll would drop healthy trains
	if cfg.staleAfter < cfg.positionInterval {
		return nil, fmt.Errorf("stale-after (%s) must not be shorter than the position interval (%s)",
			cfg.staleAfter, cfg.positionInterval)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	client := trv.NewClient(cfg.baseURL, cfg.apiKey)

	var reg *metrics.Registry
	if cfg.metricsEnabled {
		reg = metrics.NewRegistry()
	}

	var storage prefs.Storage
	if cfg.prefsPath != "" {
		storage = prefs.NewFileStorage(cfg.prefsPath)
	}

	return &RailFeed{
		client:           client,
		metrics:          reg,
		positions:        positions.New(client, cfg.positionInterval, cfg.staleAfter, logger, reg),
		events:           traffic.New(client, cfg.eventInterval, logger, reg),
		routes:           routes.New(client, cfg.routeBatchSize, logger, reg),
		prefs:            prefs.New(storage, logger),
		port:             cfg.port,
		positionInterval: cfg.positionInterval,
		eventInterval:    cfg.eventInterval,
		logger:           logger,
	}, nil
}

// Start begins polling the upstream feeds and serving the HTTP API.
//
// Start is a blocking call that runs until the provided context is
// cancelled. During execution:
//
//   - The position and traffic event feeds are polled immediately, then at
//     their configured intervals
//   - Every position poll feeds the route registry, which resolves
//     origin/destination labels for new trains in the background
//   - The HTTP server starts on the configured port
//   - The REST API and SSE stream are available at http://localhost:<port>
//
// The caller controls the lifecycle via context cancellation. For signal
// handling, use [signal.NotifyContext]:
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//	rf.Start(ctx)
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server
// fails to start.
func (rf *RailFeed) Start(ctx context.Context) error {
	rf.logger.Info("railfeed starting",
		"positions_interval", rf.positionInterval.String(),
		"events_interval", rf.eventInterval.String(),
	)
	rf.logger.Info("api available", "url", fmt.Sprintf("http://localhost:%d", rf.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	// Keep-warm subscriptions pin the pollers running for the lifetime of
	// Start, independent of how many HTTP clients are connected. The
	// position subscription doubles as the bridge into the route registry.
	unsubTrains := rf.positions.Subscribe(rf.feedRoutes)
	unsubEvents := rf.events.Subscribe(func() {})
	unsubRoutes := rf.routes.Subscribe(func() {})

	cleanup := func() {
		unsubTrains()
		unsubEvents()
		unsubRoutes()
		rf.client.Close()
	}

	httpServer := server.NewServer(rf.positions, rf.events, rf.routes, rf.prefs, rf.metrics, rf.port, rf.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	cleanup()
	rf.logger.Info("railfeed stopped")
	return nil
}

// feedRoutes hands the current train set to the route registry. Runs as a
// position store listener on every published change; listeners fire outside
// store locks and EnsureRoutesFor only queues work, so the callback is
// cheap and cannot deadlock.
func (rf *RailFeed) feedRoutes() {
	snap := rf.positions.Snapshot()
	if len(snap.Trains) == 0 {
		return
	}

	refs := make([]routes.TrainRef, 0, len(snap.Trains))
	for _, t := range snap.Trains {
		refs = append(refs, routes.TrainRef{
			ID:               t.ID,
			AdvertisedIdent:  t.AdvertisedIdent,
			OperationalIdent: t.OperationalIdent,
		})
	}
	rf.routes.EnsureRoutesFor(refs)
}

// Positions returns the live train position store.
//
// The store is shared with the HTTP server; polling starts with its first
// subscriber and stops when the last unsubscribes.
func (rf *RailFeed) Positions() *positions.Store {
	return rf.positions
}

// Events returns the traffic event store.
func (rf *RailFeed) Events() *traffic.Store {
	return rf.events
}

// Routes returns the route resolution registry.
//
// The registry fills lazily: it resolves labels for whatever train
// references are handed to it, which [RailFeed.Start] does on every
// position poll.
func (rf *RailFeed) Routes() *routes.Registry {
	return rf.routes
}

// Prefs returns the user preference store.
func (rf *RailFeed) Prefs() *prefs.Store {
	return rf.prefs
}

// Port returns the configured HTTP port for the API server.
func (rf *RailFeed) Port() int {
	return rf.port
}
