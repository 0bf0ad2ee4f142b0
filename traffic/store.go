package traffic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/railfeed/railfeed/internal/metrics"
	"github.com/railfeed/railfeed/internal/observable"
	"github.com/railfeed/railfeed/internal/trv"
)

// DefaultInterval is the background poll cadence. Event volumes are low, so
// the feed is replaced wholesale on a relaxed schedule.
const DefaultInterval = 150 * time.Second

// Fetcher is the upstream collaborator the store polls. *trv.Client
// satisfies it.
type Fetcher interface {
	Situations(ctx context.Context) ([]trv.Situation, error)
	TrainMessages(ctx context.Context) ([]trv.TrainMessage, error)
	StationNames(ctx context.Context) (map[string]string, error)
}

// Snapshot is the immutable state handed to readers.
type Snapshot struct {
	// Events sorted worst first. The slice and the records it points at
	// are never mutated after publication.
	Events []*Event `json:"events"`

	// Loading is true during the first load and manual refreshes only.
	Loading bool `json:"loading"`

	// Err carries a user-facing message when the most recent poll failed.
	// The previous events remain available alongside it.
	Err string `json:"err,omitempty"`

	// LastUpdated is the freshest event update time in the current list.
	LastUpdated time.Time `json:"lastUpdated"`
}

func snapshotsEqual(a, b Snapshot) bool {
	if a.Loading != b.Loading || a.Err != b.Err || !a.LastUpdated.Equal(b.LastUpdated) {
		return false
	}
	if len(a.Events) != len(b.Events) {
		return false
	}
	for i := range a.Events {
		if a.Events[i] != b.Events[i] {
			return false
		}
	}
	return true
}

// Store polls the two event feeds and maintains the merged event list.
//
// Polling starts when the first subscriber arrives and stops when the last
// one leaves. All methods are safe for concurrent use.
type Store struct {
	fetcher  Fetcher
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Registry

	core   *observable.Store[Snapshot]
	runner observable.Runner
	wake   chan struct{}

	mu            sync.Mutex
	stations      map[string]string
	prev          map[string]*Event
	polledOnce    bool
	manualPending bool
	fetchCancel   context.CancelFunc
}

// New creates a traffic event store polling fetcher every interval. A
// non-positive interval falls back to [DefaultInterval]. reg may be nil to
// disable metrics.
func New(fetcher Fetcher, interval time.Duration, logger *slog.Logger, reg *metrics.Registry) *Store {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Store{
		fetcher:  fetcher,
		interval: interval,
		logger:   logger,
		metrics:  reg,
		wake:     make(chan struct{}, 1),
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

// Refetch requests an immediate poll, superseding any fetch already in
// flight. Manual refreshes assert Loading while they run. Refetch is a
// no-op while the store has no subscribers.
func (s *Store) Refetch() {
	if !s.runner.Running() {
		return
	}

	s.mu.Lock()
	s.manualPending = true
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

// Reset drops the event state back to empty. The station lookup cache is
// kept; polling, if running, continues and will repopulate the list.
func (s *Store) Reset() {
	s.mu.Lock()
	s.prev = nil
	s.polledOnce = false
	s.mu.Unlock()

	s.core.Set(Snapshot{})
}

func (s *Store) run(ctx context.Context) {
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
			s.poll(ctx, s.takeManualPending())
		}
	}
}

func (s *Store) takeManualPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	manual := s.manualPending
	s.manualPending = false
	return manual
}

// poll runs one fetch-and-replace cycle. Both feeds are fetched
// concurrently; the station lookup joins the same flight the first time and
// whenever a previous attempt failed.
func (s *Store) poll(ctx context.Context, manual bool) {
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	showLoading := !s.polledOnce || manual
	s.polledOnce = true
	needStations := s.stations == nil
	fetchCtx, cancel := context.WithCancel(ctx)
	s.fetchCancel = cancel
	s.mu.Unlock()
	defer cancel()

	if showLoading {
		snap := s.core.Snapshot()
		snap.Loading = true
		s.core.Set(snap)
	}

	var (
		situations []trv.Situation
		messages   []trv.TrainMessage
		stations   map[string]string
	)
	g, gctx := errgroup.WithContext(fetchCtx)
	g.Go(func() error {
		var err error
		if situations, err = s.fetcher.Situations(gctx); err != nil {
			return fmt.Errorf("situations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if messages, err = s.fetcher.TrainMessages(gctx); err != nil {
			return fmt.Errorf("train messages: %w", err)
		}
		return nil
	})
	if needStations {
		g.Go(func() error {
			names, err := s.fetcher.StationNames(gctx)
			if err != nil {
				// not fatal to the poll: labels fall back to raw
				// signatures and the lookup is retried next cycle
				s.logger.Warn("station lookup failed", "error", err)
				return nil
			}
			stations = names
			return nil
		})
	}
	err := g.Wait()

	if fetchCtx.Err() != nil {
		s.observePoll(metrics.ResultCanceled)
		return
	}
	if err != nil {
		s.logger.Warn("traffic event poll failed", "error", err)
		s.observePoll(metrics.ResultError)
		snap := s.core.Snapshot()
		snap.Loading = false
		snap.Err = "Kunde inte hämta trafikhändelser just nu."
		s.core.Set(snap)
		return
	}

	s.mu.Lock()
	if stations != nil {
		s.stations = stations
	}
	lookup := s.stations
	s.mu.Unlock()

	s.commit(situations, messages, lookup)
}

// commit replaces the event list, keeping the previous poll's pointer for
// events that came out identical.
func (s *Store) commit(situations []trv.Situation, messages []trv.TrainMessage, stations map[string]string) {
	events := merge(situations, messages, stations)

	s.mu.Lock()
	for i, ev := range events {
		if prev, ok := s.prev[ev.ID]; ok && eventsEqual(prev, ev) {
			events[i] = prev
		}
	}
	prev := make(map[string]*Event, len(events))
	var last time.Time
	for _, ev := range events {
		prev[ev.ID] = ev
		if ev.UpdatedAt != nil && ev.UpdatedAt.After(last) {
			last = *ev.UpdatedAt
		}
	}
	s.prev = prev
	s.mu.Unlock()

	changed := s.core.Set(Snapshot{Events: events, LastUpdated: last})

	s.observePoll(metrics.ResultOK)
	if s.metrics != nil {
		s.metrics.Records.WithLabelValues(metrics.StoreTraffic).Set(float64(len(events)))
		if changed {
			s.metrics.Notifications.WithLabelValues(metrics.StoreTraffic).Inc()
		}
	}
	s.logger.Debug("traffic events merged", "events", len(events), "changed", changed)
}

func (s *Store) observePoll(result string) {
	if s.metrics != nil {
		s.metrics.Polls.WithLabelValues(metrics.StoreTraffic, result).Inc()
	}
}
