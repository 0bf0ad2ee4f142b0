package prefs

import (
	"log/slog"
	"sync"

	"github.com/railfeed/railfeed/internal/observable"
)

// Store serves preferences to readers and persists every change.
//
// Mutations are serialized and publish only when content actually changed.
// Change listeners must not mutate the store from their callback.
type Store struct {
	storage Storage
	logger  *slog.Logger

	mu   sync.Mutex
	core *observable.Store[Prefs]
}

// New creates a preference store seeded from storage. storage may be nil
// for a purely in-memory store; a failed load logs a warning and falls
// back to the defaults.
func New(storage Storage, logger *slog.Logger) *Store {
	initial := Default()
	if storage != nil {
		loaded, err := storage.Load()
		if err != nil {
			logger.Warn("loading preferences failed", "error", err)
		} else {
			initial = loaded
		}
	}
	return &Store{
		storage: storage,
		logger:  logger,
		core:    observable.New(initial, prefsEqual),
	}
}

// Subscribe registers a change listener and returns its unsubscribe func.
func (s *Store) Subscribe(fn func()) func() {
	return s.core.Subscribe(fn)
}

// Snapshot returns the current preferences. Treat the result as read-only.
func (s *Store) Snapshot() Prefs {
	return s.core.Snapshot()
}

func (s *Store) SetShowEvents(v bool) {
	s.mutate(func(p *Prefs) { p.ShowEvents = v })
}

func (s *Store) SetShowOnlyPassenger(v bool) {
	s.mutate(func(p *Prefs) { p.ShowOnlyPassenger = v })
}

func (s *Store) SetMapStyle(style string) {
	s.mutate(func(p *Prefs) { p.MapStyle = style })
}

// ToggleFavourite adds id to the favourites, or removes it when present.
func (s *Store) ToggleFavourite(id string) {
	s.mutate(func(p *Prefs) {
		for i, fav := range p.Favourites {
			if fav == id {
				p.Favourites = append(p.Favourites[:i], p.Favourites[i+1:]...)
				return
			}
		}
		p.Favourites = append(p.Favourites, id)
	})
}

// IsFavourite reports whether id is among the favourites.
func (s *Store) IsFavourite(id string) bool {
	for _, fav := range s.core.Snapshot().Favourites {
		if fav == id {
			return true
		}
	}
	return false
}

// Replace overwrites all preferences at once.
func (s *Store) Replace(next Prefs) {
	s.mutate(func(p *Prefs) { *p = clone(next) })
}

func (s *Store) mutate(apply func(*Prefs)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := clone(s.core.Snapshot())
	apply(&next)
	if !s.core.Set(next) {
		return
	}
	if s.storage == nil {
		return
	}
	if err := s.storage.Save(next); err != nil {
		s.logger.Warn("saving preferences failed", "error", err)
	}
}
