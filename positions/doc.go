// Package positions maintains the live train position cache.
//
// It owns the moving-train side of the sync layer: it polls the position
// feed on a fixed cadence, normalizes raw entries into [Train] records,
// merges them into a stable-ordered cache, prunes records that have gone
// stale, and publishes immutable snapshots to subscribers.
//
// The main components are:
//
//   - [Store]: the observable position store
//   - [Train]: one normalized moving-train record
//   - [Snapshot]: the immutable state handed to readers
//
// Polls alternate between full refreshes, which replace the cache from a
// complete upstream listing, and incremental refreshes, which only ask for
// entries modified since the freshest timestamp seen so far. Records that did
// not change keep their previous pointer, so consumers holding a snapshot can
// skip unchanged entries with a plain identity comparison.
//
// Stores are normally constructed and wired by the railfeed root package;
// this package is the type surface those accessors return.
package positions
