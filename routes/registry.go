package routes

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/railfeed/railfeed/internal/metrics"
	"github.com/railfeed/railfeed/internal/observable"
	"github.com/railfeed/railfeed/internal/trv"
)

const (
	// DefaultBatchCap is the most ids drained into one resolution batch.
	DefaultBatchCap = 80

	// perBatchLimit caps the records one announcement request returns.
	perBatchLimit = 400

	// windowMinutes bounds the announcement lookback, two days.
	windowMinutes = 2880
)

// Fetcher is the upstream collaborator batches are resolved through.
// *trv.Client satisfies it.
type Fetcher interface {
	TrainAnnouncements(ctx context.Context, idents []string, q trv.AnnouncementQuery) ([]trv.TrainAnnouncement, error)
}

// TrainRef carries the identifiers of one train, passed by value on every
// position poll. ID is the stable cache key; the ident fields are the join
// keys the announcement feed understands.
type TrainRef struct {
	ID               string
	AdvertisedIdent  string
	OperationalIdent string
}

// Route is one resolved origin/destination pair. A Resolved route with
// empty labels is a terminal miss: the lookup ran and found nothing.
type Route struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Resolved bool   `json:"resolved"`
}

// Snapshot is the immutable state handed to readers. Routes is a fresh copy
// per publication; Version increases by one per committed change.
type Snapshot struct {
	Version uint64           `json:"version"`
	Routes  map[string]Route `json:"routes"`
}

func snapshotsEqual(a, b Snapshot) bool {
	return a.Version == b.Version
}

// Registry queues, batches and resolves route lookups.
//
// The batch consumer runs while the registry has subscribers. All methods
// are safe for concurrent use.
type Registry struct {
	fetcher  Fetcher
	batchCap int
	logger   *slog.Logger
	metrics  *metrics.Registry

	core   *observable.Store[Snapshot]
	runner observable.Runner
	work   chan struct{}

	mu      sync.Mutex
	routes  map[string]Route    // terminal results
	queued  map[string]TrainRef // awaiting a batch
	queue   []string            // drain order of queued ids
	reverse map[string]string   // ident → id, every ref ever seen
	version uint64
}

// New creates a route registry resolving through fetcher, draining at most
// batchCap ids per batch. A non-positive batchCap falls back to
// [DefaultBatchCap]. reg may be nil to disable metrics.
func New(fetcher Fetcher, batchCap int, logger *slog.Logger, reg *metrics.Registry) *Registry {
	if batchCap <= 0 {
		batchCap = DefaultBatchCap
	}
	r := &Registry{
		fetcher:  fetcher,
		batchCap: batchCap,
		logger:   logger,
		metrics:  reg,
		work:     make(chan struct{}, 1),
		routes:   make(map[string]Route),
		queued:   make(map[string]TrainRef),
		reverse:  make(map[string]string),
	}
	r.core = observable.New(Snapshot{Routes: map[string]Route{}}, snapshotsEqual)
	r.core.SetLifecycle(r.lifecycle, r.lifecycle)
	return r
}

func (r *Registry) lifecycle() {
	r.runner.Reconcile(r.core.SubscriberCount, r.run)
}

// Subscribe registers a change listener and returns its unsubscribe func.
// The first subscriber starts the batch consumer.
func (r *Registry) Subscribe(fn func()) func() {
	return r.core.Subscribe(fn)
}

// Snapshot returns the current state.
func (r *Registry) Snapshot() Snapshot {
	return r.core.Snapshot()
}

// RouteFor returns the resolved route for a train id. ok is false while the
// id is unknown or still queued.
func (r *Registry) RouteFor(id string) (Route, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.routes[id]
	return rt, ok
}

// EnsureRoutesFor queues lookups for every train the registry has not seen
// yet. Fire and forget: results surface through the snapshot once a batch
// lands. Trains without any usable identifier resolve immediately as
// terminal misses.
func (r *Registry) EnsureRoutesFor(refs []TrainRef) {
	r.mu.Lock()
	enqueued := false
	resolvedNow := false
	for _, ref := range refs {
		if ref.ID == "" {
			continue
		}
		if _, done := r.routes[ref.ID]; done {
			continue
		}
		if _, waiting := r.queued[ref.ID]; waiting {
			continue
		}
		if ref.AdvertisedIdent == "" && ref.OperationalIdent == "" {
			r.routes[ref.ID] = Route{Resolved: true}
			resolvedNow = true
			continue
		}
		r.queued[ref.ID] = ref
		r.queue = append(r.queue, ref.ID)
		if ref.AdvertisedIdent != "" {
			r.reverse[ref.AdvertisedIdent] = ref.ID
		}
		if ref.OperationalIdent != "" {
			r.reverse[ref.OperationalIdent] = ref.ID
		}
		enqueued = true
	}
	if resolvedNow {
		r.version++
	}
	var snap Snapshot
	if resolvedNow {
		snap = r.snapshotLocked()
	}
	depth := len(r.queue)
	r.mu.Unlock()

	if resolvedNow {
		r.core.Set(snap)
	}
	if enqueued {
		r.kick()
	}
	if r.metrics != nil {
		r.metrics.RouteQueueDepth.Set(float64(depth))
	}
}

func (r *Registry) kick() {
	select {
	case r.work <- struct{}{}:
	default:
	}
}

func (r *Registry) run(ctx context.Context) {
	// work queued while the consumer was stopped
	for r.drainOnce(ctx) {
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.work:
			for r.drainOnce(ctx) {
			}
		}
	}
}

// drainOnce resolves one batch. It reports whether the caller should keep
// draining: true after a committed batch, false when the queue is empty or
// the context died mid-flight.
func (r *Registry) drainOnce(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	r.mu.Lock()
	batch := make([]TrainRef, 0, r.batchCap)
	drained := make([]string, 0, r.batchCap)
	for len(batch) < r.batchCap && len(r.queue) > 0 {
		id := r.queue[0]
		r.queue = r.queue[1:]
		ref, ok := r.queued[id]
		if !ok {
			continue
		}
		if _, done := r.routes[id]; done {
			// resolved out of band, e.g. via the reverse index
			delete(r.queued, id)
			continue
		}
		batch = append(batch, ref)
		drained = append(drained, id)
	}
	r.mu.Unlock()

	if len(batch) == 0 {
		return false
	}

	idents := make([]string, 0, 2*len(batch))
	seen := make(map[string]struct{}, 2*len(batch))
	for _, ref := range batch {
		for _, ident := range [2]string{ref.AdvertisedIdent, ref.OperationalIdent} {
			if ident == "" {
				continue
			}
			if _, dup := seen[ident]; dup {
				continue
			}
			seen[ident] = struct{}{}
			idents = append(idents, ident)
		}
	}

	results, err := r.fetcher.TrainAnnouncements(ctx, idents, trv.AnnouncementQuery{
		PerBatchLimit: perBatchLimit,
		WindowMinutes: windowMinutes,
	})
	if ctx.Err() != nil {
		// cancelled mid-flight: put the batch back untouched so a later
		// consumer can retry it
		r.mu.Lock()
		r.queue = append(drained, r.queue...)
		r.mu.Unlock()
		return false
	}
	if err != nil {
		// a failed batch resolves to misses rather than retrying forever
		r.logger.Warn("route batch failed", "ids", len(batch), "error", err)
		r.commitBatch(batch, nil)
		return true
	}

	r.commitBatch(batch, results)
	return true
}

// commitBatch matches results back to ids and marks every batch id
// resolved, matched or not. Results may also resolve queued ids outside the
// batch through the reverse index; already-resolved ids are never
// overwritten.
func (r *Registry) commitBatch(batch []TrainRef, results []trv.TrainAnnouncement) {
	batchIdx := make(map[string]string, 2*len(batch))
	for _, ref := range batch {
		if ref.AdvertisedIdent != "" {
			batchIdx[ref.AdvertisedIdent] = ref.ID
		}
		if ref.OperationalIdent != "" {
			batchIdx[ref.OperationalIdent] = ref.ID
		}
	}

	r.mu.Lock()
	assigned := make(map[string]Route, len(batch))
	for _, ann := range results {
		route := routeFromAnnouncement(ann)
		for _, ident := range [2]string{ann.AdvertisedTrainIdent, ann.OperationalTrainNumber} {
			if ident == "" {
				continue
			}
			id, ok := batchIdx[ident]
			if !ok {
				id, ok = r.reverse[ident]
			}
			if !ok {
				continue
			}
			if _, done := r.routes[id]; done {
				continue
			}
			if _, dup := assigned[id]; dup {
				continue
			}
			assigned[id] = route
		}
	}
	for _, ref := range batch {
		if _, ok := assigned[ref.ID]; ok {
			continue
		}
		assigned[ref.ID] = Route{Resolved: true}
	}

	for id, rt := range assigned {
		r.routes[id] = rt
		delete(r.queued, id)
	}
	r.version++
	snap := r.snapshotLocked()
	depth := len(r.queue)
	r.mu.Unlock()

	r.core.Set(snap)

	if r.metrics != nil {
		r.metrics.RouteBatches.Inc()
		r.metrics.RoutesResolved.Add(float64(len(assigned)))
		r.metrics.RouteQueueDepth.Set(float64(depth))
	}
	r.logger.Debug("route batch committed", "batch", len(batch), "resolved", len(assigned), "queued", depth)
}

func (r *Registry) snapshotLocked() Snapshot {
	routes := make(map[string]Route, len(r.routes))
	for id, rt := range r.routes {
		routes[id] = rt
	}
	return Snapshot{Version: r.version, Routes: routes}
}

func routeFromAnnouncement(ann trv.TrainAnnouncement) Route {
	return Route{
		From:     primaryLocation(ann.FromLocation),
		To:       primaryLocation(ann.ToLocation),
		Resolved: true,
	}
}

// primaryLocation picks the location the upstream marks first in its Order
// sequence, which is how announcements advertise a journey's endpoints.
func primaryLocation(locs []trv.AnnouncedLocation) string {
	best := ""
	bestOrder := math.MaxInt
	for _, l := range locs {
		if l.LocationName == "" {
			continue
		}
		if best == "" || l.Order < bestOrder {
			best = l.LocationName
			bestOrder = l.Order
		}
	}
	return best
}
