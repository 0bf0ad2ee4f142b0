package observable

import (
	"context"
	"sync"
)

// Runner ties one background goroutine's lifetime to a store's subscriber
// count. It is the standard companion for [Store.SetLifecycle]: both hooks
// point at [Runner.Reconcile], which starts the goroutine when subscribers
// exist and stops it when none remain.
//
// Reconcile re-checks the live count rather than trusting the edge that
// triggered it, so subscribe/unsubscribe races converge on the correct
// running state no matter which hook fires last.
//
// The zero value is ready to use.
type Runner struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Reconcile starts run in a goroutine when count() > 0 and none is running,
// and stops a running one when count() == 0. Stopping cancels the context
// handed to run and waits for run to return.
//
// run must therefore never call Reconcile from its own goroutine; in
// particular a store listener must not drop the store's final subscription
// from inside its callback, as the stop path would wait on itself.
func (r *Runner) Reconcile(count func() int, run func(ctx context.Context)) {
	r.mu.Lock()
	want := count() > 0
	running := r.cancel != nil

	if want == running {
		r.mu.Unlock()
		return
	}

	if want {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		r.cancel = cancel
		r.done = done
		r.mu.Unlock()

		go func() {
			defer close(done)
			run(ctx)
		}()
		return
	}

	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the background goroutine is currently active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}
