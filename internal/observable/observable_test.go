package observable

import (
	"sync"
	"testing"
)

type testState struct {
	value   int
	label   string
	records []*int
}

func testEq(a, b testState) bool {
	if a.value != b.value || a.label != b.label {
		return false
	}
	if len(a.records) != len(b.records) {
		return false
	}
	for i := range a.records {
		if a.records[i] != b.records[i] {
			return false
		}
	}
	return true
}

func TestStore_SnapshotReturnsInitial(t *testing.T) {
	s := New(testState{value: 7, label: "initial"}, testEq)

	got := s.Snapshot()
	if got.value != 7 || got.label != "initial" {
		t.Errorf("Snapshot() = %+v, want value=7 label=initial", got)
	}
}

func TestStore_SetNotifiesSubscribers(t *testing.T) {
	s := New(testState{}, testEq)

	notified := 0
	unsub := s.Subscribe(func() { notified++ })
	defer unsub()

	if changed := s.Set(testState{value: 1}); !changed {
		t.Fatal("Set() = false, want true for a changed state")
	}

	if notified != 1 {
		t.Errorf("listener called %d times, want 1", notified)
	}
	if got := s.Snapshot().value; got != 1 {
		t.Errorf("Snapshot().value = %d, want 1", got)
	}
}

func TestStore_SetEqualStateDoesNotNotify(t *testing.T) {
	rec := new(int)
	s := New(testState{value: 3, records: []*int{rec}}, testEq)

	notified := 0
	unsub := s.Subscribe(func() { notified++ })
	defer unsub()

	// same value and same record pointer: must be treated as no change
	if changed := s.Set(testState{value: 3, records: []*int{rec}}); changed {
		t.Error("Set() = true, want false for an equal state")
	}

	if notified != 0 {
		t.Errorf("listener called %d times, want 0", notified)
	}
}

func TestStore_NotifiesEachListenerOncePerChange(t *testing.T) {
	s := New(testState{}, testEq)

	var calls []string
	unsubA := s.Subscribe(func() { calls = append(calls, "a") })
	defer unsubA()
	unsubB := s.Subscribe(func() { calls = append(calls, "b") })
	defer unsubB()

	s.Set(testState{value: 1})
	s.Set(testState{value: 2})

	if len(calls) != 4 {
		t.Errorf("got %d listener calls, want 4 (2 listeners x 2 changes)", len(calls))
	}
}

func TestStore_UnsubscribeStopsNotifications(t *testing.T) {
	s := New(testState{}, testEq)

	notified := 0
	unsub := s.Subscribe(func() { notified++ })

	s.Set(testState{value: 1})
	unsub()
	s.Set(testState{value: 2})

	if notified != 1 {
		t.Errorf("listener called %d times, want 1", notified)
	}
}

func TestStore_UnsubscribeIsIdempotent(t *testing.T) {
	s := New(testState{}, testEq)

	stops := 0
	s.SetLifecycle(nil, func() { stops++ })

	unsubA := s.Subscribe(func() {})
	unsubB := s.Subscribe(func() {})

	// double unsubscribe of A must not count subscriber B out
	unsubA()
	unsubA()

	if stops != 0 {
		t.Fatalf("stop hook fired %d times with a subscriber still present, want 0", stops)
	}

	unsubB()
	if stops != 1 {
		t.Errorf("stop hook fired %d times, want 1", stops)
	}
}

func TestStore_LifecycleFiresOnEdgeTransitions(t *testing.T) {
	s := New(testState{}, testEq)

	starts, stops := 0, 0
	s.SetLifecycle(func() { starts++ }, func() { stops++ })

	unsubA := s.Subscribe(func() {})
	unsubB := s.Subscribe(func() {})

	if starts != 1 {
		t.Errorf("start hook fired %d times after two subscribes, want 1", starts)
	}

	unsubA()
	if stops != 0 {
		t.Errorf("stop hook fired %d times with one subscriber left, want 0", stops)
	}

	unsubB()
	if stops != 1 {
		t.Errorf("stop hook fired %d times after last unsubscribe, want 1", stops)
	}

	// a fresh subscribe restarts the cycle
	unsubC := s.Subscribe(func() {})
	defer unsubC()
	if starts != 2 {
		t.Errorf("start hook fired %d times, want 2", starts)
	}
}

func TestStore_ListenerMayReadSnapshot(t *testing.T) {
	s := New(testState{}, testEq)

	var seen int
	unsub := s.Subscribe(func() {
		// must not deadlock
		seen = s.Snapshot().value
	})
	defer unsub()

	s.Set(testState{value: 42})

	if seen != 42 {
		t.Errorf("listener observed value %d, want 42", seen)
	}
}

func TestStore_ListenerPanicDoesNotPropagate(t *testing.T) {
	s := New(testState{}, testEq)

	unsubBad := s.Subscribe(func() { panic("listener bug") })
	defer unsubBad()

	notified := 0
	unsub := s.Subscribe(func() { notified++ })
	defer unsub()

	// must not panic the committing goroutine
	s.Set(testState{value: 1})

	if notified != 1 {
		t.Errorf("healthy listener called %d times, want 1", notified)
	}
}

func TestStore_NilEqualityTreatsEverySetAsChange(t *testing.T) {
	s := New[testState](testState{value: 1}, nil)

	notified := 0
	unsub := s.Subscribe(func() { notified++ })
	defer unsub()

	s.Set(testState{value: 1})
	s.Set(testState{value: 1})

	if notified != 2 {
		t.Errorf("listener called %d times, want 2", notified)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New(testState{}, testEq)

	var wg sync.WaitGroup
	const goroutines = 10
	const iterations = 100

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				s.Set(testState{value: n*iterations + j})
			}
		}(i)
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				_ = s.Snapshot()
			}
		}()
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := s.Subscribe(func() {})
			unsub()
		}()
	}

	wg.Wait()
}
