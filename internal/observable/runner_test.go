package observable

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunner_StartsAndStopsWithSubscribers(t *testing.T) {
	store := New(0, func(a, b int) bool { return a == b })
	var r Runner

	var starts atomic.Int32
	run := func(ctx context.Context) {
		starts.Add(1)
		<-ctx.Done()
	}
	lifecycle := func() { r.Reconcile(store.SubscriberCount, run) }
	store.SetLifecycle(lifecycle, lifecycle)

	if r.Running() {
		t.Fatal("runner active before any subscriber")
	}

	unsub1 := store.Subscribe(func() {})
	if !r.Running() {
		t.Fatal("runner not active after first subscriber")
	}

	unsub2 := store.Subscribe(func() {})
	unsub1()
	if !r.Running() {
		t.Fatal("runner stopped while a subscriber remains")
	}

	unsub2()
	if r.Running() {
		t.Fatal("runner still active after last unsubscribe")
	}

	if got := starts.Load(); got != 1 {
		t.Fatalf("run started %d times, want 1", got)
	}
}

func TestRunner_StopWaitsForRunToReturn(t *testing.T) {
	store := New(0, nil)
	var r Runner

	var exited atomic.Bool
	run := func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		exited.Store(true)
	}
	lifecycle := func() { r.Reconcile(store.SubscriberCount, run) }
	store.SetLifecycle(lifecycle, lifecycle)

	unsub := store.Subscribe(func() {})
	unsub()

	if !exited.Load() {
		t.Fatal("unsubscribe returned before run exited")
	}
}

func TestRunner_Restart(t *testing.T) {
	store := New(0, nil)
	var r Runner

	var starts atomic.Int32
	run := func(ctx context.Context) {
		starts.Add(1)
		<-ctx.Done()
	}
	lifecycle := func() { r.Reconcile(store.SubscriberCount, run) }
	store.SetLifecycle(lifecycle, lifecycle)

	for i := 0; i < 3; i++ {
		unsub := store.Subscribe(func() {})
		unsub()
	}

	if got := starts.Load(); got != 3 {
		t.Fatalf("run started %d times across 3 cycles, want 3", got)
	}
	if r.Running() {
		t.Fatal("runner active after final unsubscribe")
	}
}

// Racing subscribes and unsubscribes must leave the runner in the state
// matching the final subscriber count, with no goroutine leaked.
func TestRunner_ConcurrentChurnConverges(t *testing.T) {
	store := New(0, nil)
	var r Runner

	run := func(ctx context.Context) { <-ctx.Done() }
	lifecycle := func() { r.Reconcile(store.SubscriberCount, run) }
	store.SetLifecycle(lifecycle, lifecycle)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := store.Subscribe(func() {})
			unsub()
		}()
	}
	wg.Wait()

	if store.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0", store.SubscriberCount())
	}
	if r.Running() {
		t.Fatal("runner active after churn settled at zero subscribers")
	}
}
