// Package server provides the HTTP surface of railfeed.
//
// This package is internal to railfeed and handles all HTTP concerns:
//
//   - REST API: JSON snapshots of trains, events, routes and preferences
//   - Server-Sent Events: real-time snapshot updates at "/api/stream"
//   - Metrics: the prometheus scrape endpoint at "/metrics"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the railfeed library should not need to interact with this
// package directly. The server is started by [railfeed.RailFeed.Start].
package server
