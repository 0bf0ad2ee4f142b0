// Package traffic maintains the merged traffic event list.
//
// It aggregates two independently shaped upstream feeds into one taxonomy:
// situation deviations, which carry structured severity and impact data,
// and reason-coded train messages, which are flatter but sometimes reference
// the same underlying event. Both feeds are folded into per-id drafts,
// scored, labeled in Swedish, sorted worst-first and published as immutable
// snapshots.
//
// The main components are:
//
//   - [Store]: the observable event store
//   - [Event]: one finished traffic event
//   - [Severity]: the ordinal low/medium/high/critical grading
//
// Every poll replaces the event list wholesale; there is no incremental
// mode. Events that came out identical to the previous poll keep their
// pointer, so an unchanged upstream produces no notification.
//
// Stores are normally constructed and wired by the railfeed root package;
// this package is the type surface those accessors return.
package traffic
