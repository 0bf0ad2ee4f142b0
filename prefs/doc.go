// Package prefs holds user view preferences on the shared observable
// store, backed by optional persistent storage.
//
// Preferences load once at construction and every accepted mutation is
// written back through [Storage] best-effort. The zero storage keeps
// preferences in memory only.
package prefs
