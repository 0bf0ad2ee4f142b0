package prefs

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubStorage struct {
	loaded  Prefs
	loadErr error
	saved   []Prefs
	saveErr error
}

func (s *stubStorage) Load() (Prefs, error) { return s.loaded, s.loadErr }

func (s *stubStorage) Save(p Prefs) error {
	s.saved = append(s.saved, p)
	return s.saveErr
}

func TestStore_SeedsFromStorage(t *testing.T) {
	storage := &stubStorage{loaded: Prefs{MapStyle: "satellite", Favourites: []string{"t1"}}}
	s := New(storage, testLogger())

	got := s.Snapshot()
	if got.MapStyle != "satellite" || !s.IsFavourite("t1") {
		t.Errorf("Snapshot() = %+v, want the stored preferences", got)
	}
}

func TestStore_LoadFailureFallsBackToDefaults(t *testing.T) {
	storage := &stubStorage{loadErr: errors.New("disk broke")}
	s := New(storage, testLogger())

	if got := s.Snapshot(); got.MapStyle != "standard" || !got.ShowEvents {
		t.Errorf("Snapshot() = %+v, want defaults after a failed load", got)
	}
}

func TestStore_NotifiesOnlyOnGenuineChange(t *testing.T) {
	s := New(nil, testLogger())
	var notified int
	unsub := s.Subscribe(func() { notified++ })
	defer unsub()

	s.SetMapStyle("standard") // already the default
	if notified != 0 {
		t.Fatalf("no-op mutation notified %d times", notified)
	}

	s.SetMapStyle("satellite")
	s.SetMapStyle("satellite")
	if notified != 1 {
		t.Errorf("notified %d times, want 1", notified)
	}
	if got := s.Snapshot().MapStyle; got != "satellite" {
		t.Errorf("MapStyle = %q, want satellite", got)
	}
}

func TestStore_ToggleFavourite(t *testing.T) {
	s := New(nil, testLogger())
	var notified int
	unsub := s.Subscribe(func() { notified++ })
	defer unsub()

	s.ToggleFavourite("t1")
	s.ToggleFavourite("t2")
	if !s.IsFavourite("t1") || !s.IsFavourite("t2") {
		t.Fatalf("Favourites = %v, want t1 and t2", s.Snapshot().Favourites)
	}

	s.ToggleFavourite("t1")
	if s.IsFavourite("t1") {
		t.Error("t1 still a favourite after the second toggle")
	}
	if got := s.Snapshot().Favourites; len(got) != 1 || got[0] != "t2" {
		t.Errorf("Favourites = %v, want [t2]", got)
	}
	if notified != 3 {
		t.Errorf("notified %d times, want 3", notified)
	}
}

func TestStore_SaveIsBestEffort(t *testing.T) {
	storage := &stubStorage{loaded: Default(), saveErr: errors.New("read-only fs")}
	s := New(storage, testLogger())

	s.SetShowEvents(false)
	if s.Snapshot().ShowEvents {
		t.Error("mutation lost when the save failed")
	}
	if len(storage.saved) != 1 {
		t.Errorf("storage saw %d saves, want 1", len(storage.saved))
	}
}

func TestStore_NoopMutationDoesNotSave(t *testing.T) {
	storage := &stubStorage{loaded: Default()}
	s := New(storage, testLogger())

	s.SetShowEvents(true) // default already
	if len(storage.saved) != 0 {
		t.Errorf("no-op mutation saved %d times", len(storage.saved))
	}
}

func TestStore_ReplaceCopiesFavourites(t *testing.T) {
	s := New(nil, testLogger())

	favs := []string{"t1"}
	s.Replace(Prefs{MapStyle: "satellite", Favourites: favs})
	favs[0] = "mutated"

	if got := s.Snapshot().Favourites[0]; got != "t1" {
		t.Errorf("Favourites[0] = %q, caller mutation leaked in", got)
	}
}

func TestFileStorage_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	storage := NewFileStorage(path)

	want := Prefs{ShowEvents: true, MapStyle: "satellite", Favourites: []string{"t9"}}
	if err := storage.Save(want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := storage.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !prefsEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestFileStorage_MissingFileYieldsDefaults(t *testing.T) {
	storage := NewFileStorage(filepath.Join(t.TempDir(), "never-written.json"))

	got, err := storage.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !prefsEqual(got, Default()) {
		t.Errorf("Load() = %+v, want defaults", got)
	}
}

func TestFileStorage_CorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStorage(path).Load(); err == nil {
		t.Error("Load() succeeded on corrupt JSON")
	}
}
