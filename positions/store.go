package positions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/railfeed/railfeed/internal/metrics"
	"github.com/railfeed/railfeed/internal/observable"
	"github.com/railfeed/railfeed/internal/trv"
)

const (
	// DefaultInterval is the background poll cadence.
	DefaultInterval = 45 * time.Second

	// fullRefreshFactor forces a full refresh when the last one is older
	// than this many poll intervals.
	fullRefreshFactor = 5

	// DefaultStaleAfter is the age at which a record is evicted from the
	// cache.
	DefaultStaleAfter = 10 * time.Minute

	// cutoffMargin is subtracted from the incremental cutoff to tolerate
	// clock skew and boundary misses at the source.
	cutoffMargin = 5 * time.Second
)

// Fetcher is the upstream collaborator the store polls. A nil since asks for
// the complete current set; otherwise only entries modified after since are
// returned. *trv.Client satisfies it.
type Fetcher interface {
	TrainPositions(ctx context.Context, since *time.Time) ([]trv.TrainPosition, error)
}

// Snapshot is the immutable state handed to readers.
type Snapshot struct {
	// Trains in stable insertion order. The slice and the records it
	// points at are never mutated after publication.
	Trains []*Train `json:"trains"`

	// Loading is true during the first load and forced refreshes only,
	// never during routine background polls.
	Loading bool `json:"loading"`

	// Err carries a user-facing message when the most recent poll failed.
	// The previous trains remain available alongside it.
	Err string `json:"err,omitempty"`

	// LastUpdated is the freshest record timestamp observed in the cache.
	LastUpdated time.Time `json:"lastUpdated"`
}

func snapshotsEqual(a, b Snapshot) bool {
	if a.Loading != b.Loading || a.Err != b.Err || !a.LastUpdated.Equal(b.LastUpdated) {
		return false
	}
	if len(a.Trains) != len(b.Trains) {
		return false
	}
	for i := range a.Trains {
		if a.Trains[i] != b.Trains[i] {
			return false
		}
	}
	return true
}

// Store polls the position feed and maintains the train cache.
//
// Polling starts when the first subscriber arrives and stops when the last
// one leaves. All methods are safe for concurrent use.
type Store struct {
	fetcher    Fetcher
	interval   time.Duration
	staleAfter time.Duration
	logger     *slog.Logger
	metrics    *metrics.Registry
	now        func() time.Time

	core   *observable.Store[Snapshot]
	runner observable.Runner
	wake   chan struct{}

	mu           sync.Mutex
	cache        map[string]*Train
	order        []string
	watermark    time.Time
	lastFull     time.Time
	polledOnce   bool
	forcePending bool
	fetchCancel  context.CancelFunc
}

// New creates a position store polling fetcher every interval, evicting
// records older than staleAfter. Non-positive durations fall back to
// [DefaultInterval] and [DefaultStaleAfter]. reg may be nil to disable
// metrics.
func New(fetcher Fetcher, interval, staleAfter time.Duration, logger *slog.Logger, reg *metrics.Registry) *Store {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	s := &Store{
		fetcher:    fetcher,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger,
		metrics:    reg,
		now:        time.Now,
		wake:       make(chan struct{}, 1),
		cache:      make(map[string]*Train),
	}
	s.core = observable.New(Snapshot{}, snapshotsEqual)
	s.core.SetLifecycle(s.lifecycle, s.lifecycle)
	return s
}

func (s *Store) lifecycle() {
	s.runner.Reconcile(s.core.SubscriberCount, s.run)
}

// Subscribe registers a change listener and returns its unsubscribe func.
// The first subscriber starts background polling.
func (s *Store) Subscribe(fn func()) func() {
	return s.core.Subscribe(fn)
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	return s.core.Snapshot()
}

// GetByID returns the cached record for a train id.
func (s *Store) GetByID(id string) (*Train, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.cache[id]
	return t, ok
}

// Refetch requests an immediate poll, superseding any fetch already in
// flight. With forceFull set the poll reloads the complete set and asserts
// Loading while it runs. Refetch is a no-op while the store has no
// subscribers.
func (s *Store) Refetch(forceFull bool) {
	if !s.runner.Running() {
		return
	}

	s.mu.Lock()
	if forceFull {
		s.forcePending = true
	}
	cancel := s.fetchCancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store) run(ctx context.Context) {
	// drop any wake queued while stopped
	select {
	case <-s.wake:
	default:
	}

	s.poll(ctx, false)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx, false)
		case <-s.wake:
			s.poll(ctx, s.takeForcePending())
		}
	}
}

func (s *Store) takeForcePending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	force := s.forcePending
	s.forcePending = false
	return force
}

// poll runs one fetch-and-merge cycle. Cycles are serialized by the run
// loop; a fetch abandoned through cancellation commits nothing.
func (s *Store) poll(ctx context.Context, force bool) {
	if ctx.Err() != nil {
		return
	}

	now := s.now()

	s.mu.Lock()
	full := force || s.watermark.IsZero() || now.Sub(s.lastFull) >= fullRefreshFactor*s.interval
	var since *time.Time
	if !full {
		cutoff := s.watermark.Add(-cutoffMargin)
		since = &cutoff
	}
	showLoading := !s.polledOnce || force
	s.polledOnce = true
	fetchCtx, cancel := context.WithCancel(ctx)
	s.fetchCancel = cancel
	s.mu.Unlock()
	defer cancel()

	if showLoading {
		snap := s.core.Snapshot()
		snap.Loading = true
		s.core.Set(snap)
	}

	raw, err := s.fetcher.TrainPositions(fetchCtx, since)
	if fetchCtx.Err() != nil {
		// superseded or shut down; whatever came back is stale
		s.observePoll(metrics.ResultCanceled)
		return
	}
	if err != nil {
		s.logger.Warn("train position poll failed", "full", full, "error", err)
		s.observePoll(metrics.ResultError)
		snap := s.core.Snapshot()
		snap.Loading = false
		snap.Err = "Kunde inte hämta tågpositioner just nu."
		s.core.Set(snap)
		return
	}

	s.commit(raw, full, now)
}

// commit merges a fetch result into the cache and publishes the new
// snapshot.
func (s *Store) commit(raw []trv.TrainPosition, full bool, now time.Time) {
	s.mu.Lock()

	incoming := make([]*Train, 0, len(raw))
	for _, entry := range raw {
		if t := newTrain(entry); t != nil {
			incoming = append(incoming, t)
		}
	}

	if full {
		s.rebuild(incoming)
		s.lastFull = now
	} else {
		s.upsert(incoming)
	}
	s.evictStale(now)
	s.watermark = s.freshest()

	trains := make([]*Train, 0, len(s.order))
	for _, id := range s.order {
		trains = append(trains, s.cache[id])
	}
	watermark := s.watermark
	s.mu.Unlock()

	changed := s.core.Set(Snapshot{Trains: trains, LastUpdated: watermark})

	s.observePoll(metrics.ResultOK)
	if s.metrics != nil {
		s.metrics.Records.WithLabelValues(metrics.StorePositions).Set(float64(len(trains)))
		if changed {
			s.metrics.Notifications.WithLabelValues(metrics.StorePositions).Inc()
		}
	}
	s.logger.Debug("train positions merged", "full", full, "records", len(trains), "changed", changed)
}

// rebuild replaces cache and order from a full listing, keeping the old
// pointer for records that did not change. Duplicate ids keep their first
// position in the response order; the later entry's content wins.
func (s *Store) rebuild(incoming []*Train) {
	old := s.cache
	s.cache = make(map[string]*Train, len(incoming))
	s.order = make([]string, 0, len(incoming))

	for _, t := range incoming {
		if prev, ok := old[t.ID]; ok && trainsEqual(prev, t) {
			t = prev
		}
		if _, seen := s.cache[t.ID]; !seen {
			s.order = append(s.order, t.ID)
		}
		s.cache[t.ID] = t
	}
}

// upsert applies an incremental batch: changed records are replaced in
// place, unknown ids are appended after all previously known ones, and
// records equal to their cached version are left untouched.
func (s *Store) upsert(incoming []*Train) {
	for _, t := range incoming {
		prev, ok := s.cache[t.ID]
		if !ok {
			s.cache[t.ID] = t
			s.order = append(s.order, t.ID)
			continue
		}
		if trainsEqual(prev, t) {
			continue
		}
		s.cache[t.ID] = t
	}
}

// evictStale drops every record whose freshness timestamp is older than the
// stale-age threshold.
func (s *Store) evictStale(now time.Time) {
	cutoff := now.Add(-s.staleAfter)
	kept := s.order[:0]
	for _, id := range s.order {
		if s.cache[id].UpdatedAt.Before(cutoff) {
			delete(s.cache, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// freshest returns the max record timestamp in the cache, the baseline for
// the next incremental cutoff.
func (s *Store) freshest() time.Time {
	var max time.Time
	for _, t := range s.cache {
		if t.UpdatedAt.After(max) {
			max = t.UpdatedAt
		}
	}
	return max
}

func (s *Store) observePoll(result string) {
	if s.metrics != nil {
		s.metrics.Polls.WithLabelValues(metrics.StorePositions, result).Inc()
	}
}
