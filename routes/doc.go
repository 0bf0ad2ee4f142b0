// Package routes resolves train origin/destination labels.
//
// It maintains a registry of route lookups keyed by train id. Callers hand
// it the trains of each position poll; unknown ids are queued, coalesced
// into batches and resolved through the departure announcement feed.
// Results are matched back to their trains by advertised or operational
// identifier, falling back to a global reverse index of every identifier
// ever seen.
//
// The main components are:
//
//   - [Registry]: the observable route registry
//   - [TrainRef]: the pass-by-value identifier tuple handed in per train
//   - [Route]: one resolved origin/destination pair
//
// Resolution is terminal: an id that came back from a batch, with labels or
// as a miss, is never looked up again. Only one batch is in flight at a
// time; ids arriving meanwhile accumulate for the next one.
//
// Registries are normally constructed and wired by the railfeed root
// package; this package is the type surface those accessors return.
package routes
