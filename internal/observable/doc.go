// Package observable provides the snapshot/subscribe primitive shared by
// the railfeed data stores.
//
// A [Store] holds a single immutable snapshot value. Readers obtain the
// current snapshot with [Store.Snapshot]; writers replace it with
// [Store.Set], which notifies every subscribed listener exactly once per
// call that actually changed the state. A Set that produces an equal value
// is a no-op: no replacement, no notification, so consumers that compare
// snapshots by reference never re-run for nothing.
//
// Subscriber count drives the owning store's lifecycle: the first
// subscription fires the start hook (typically "begin polling") and the
// last unsubscribe fires the stop hook. Hooks are installed with
// [Store.SetLifecycle].
//
// The main components are:
//
//   - [Store]: generic snapshot holder with listener registry
//   - [New]: constructor taking the initial snapshot and an equality func
//
// Stores are safe for concurrent use. Listeners are invoked outside the
// internal lock, so a listener may call Snapshot (or even Set) without
// deadlocking.
package observable
