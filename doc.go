// Package railfeed provides a live data synchronization layer for Swedish
// railway traffic, built on the Trafikverket open API.
//
// RailFeed is designed as an SDK-first library: it polls the upstream
// position and traffic event feeds, maintains observable in-memory stores
// with immutable snapshots, resolves train routes in batched background
// lookups, and optionally serves the whole state over a REST + SSE HTTP
// API for frontend consumption.
//
// # Quick Start
//
// Create a feed and start it with graceful shutdown:
//
//	rf, _ := railfeed.New(railfeed.WithAPIKey(os.Getenv("TRV_API_KEY")))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	rf.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// RailFeed uses the functional options pattern for configuration:
//
//	rf, err := railfeed.New(
//	    railfeed.WithAPIKey(key),
//	    railfeed.WithPositionInterval(30 * time.Second),
//	    railfeed.WithEventInterval(2 * time.Minute),
//	    railfeed.WithPort(9090),
//	    railfeed.WithPrefsPath("/var/lib/railfeed/prefs.json"),
//	)
//
// # Consuming Stores Directly
//
// The HTTP server is optional. The stores returned by [RailFeed.Positions],
// [RailFeed.Events], [RailFeed.Routes] and [RailFeed.Prefs] follow a shared
// observable contract: Subscribe registers a change listener and returns an
// unsubscribe function, Snapshot returns the current immutable state, and
// polling runs exactly while at least one subscriber exists.
//
//	store := rf.Positions()
//	unsubscribe := store.Subscribe(func() {
//	    snap := store.Snapshot()
//	    fmt.Printf("%d trains\n", len(snap.Trains))
//	})
//	defer unsubscribe()
//
// Snapshots are immutable and referentially stable: a train that did not
// change between polls keeps the same pointer, so diffing two snapshots is
// a matter of comparing pointers.
//
// # Architecture
//
// The public store packages each own one slice of the state:
//
//   - positions: the live train position cache (incremental merge polling)
//   - traffic: the merged traffic event list (full replacement polling)
//   - routes: batched origin/destination resolution
//   - prefs: user view preferences with optional file persistence
//
// Supporting packages under internal/ (the upstream API client, the
// generic observable store, the HTTP server and the metrics registry) are
// not part of the public API and may change without notice.
package railfeed
