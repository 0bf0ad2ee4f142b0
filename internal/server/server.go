package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/railfeed/railfeed/internal/metrics"
	"github.com/railfeed/railfeed/positions"
	"github.com/railfeed/railfeed/prefs"
	"github.com/railfeed/railfeed/routes"
	"github.com/railfeed/railfeed/traffic"
)

// sseWriteTimeout is the maximum time allowed for a single SSE write
// operation. This prevents goroutine leaks when clients are slow or
// disconnected. Must be <= shutdown timeout to ensure clean shutdown.
const sseWriteTimeout = 5 * time.Second

// TrainSource is the position store surface the server reads.
type TrainSource interface {
	Subscribe(fn func()) func()
	Snapshot() positions.Snapshot
	GetByID(id string) (*positions.Train, bool)
}

// EventSource is the traffic store surface the server reads.
type EventSource interface {
	Subscribe(fn func()) func()
	Snapshot() traffic.Snapshot
}

// RouteSource is the route registry surface the server reads.
type RouteSource interface {
	Subscribe(fn func()) func()
	Snapshot() routes.Snapshot
	RouteFor(id string) (routes.Route, bool)
}

// PrefsSource is the preference store surface the server reads and writes.
type PrefsSource interface {
	Subscribe(fn func()) func()
	Snapshot() prefs.Prefs
	Replace(prefs.Prefs)
}

// Server handles HTTP requests for the railfeed API.
//
// Server provides these endpoints:
//   - GET /api/trains: current train positions as JSON
//   - GET /api/trains/{id}: one train plus its resolved route
//   - GET /api/events: current traffic events as JSON
//   - GET /api/routes: resolved routes as JSON
//   - GET /api/prefs, PUT /api/prefs: user preferences
//   - GET /api/stream: Server-Sent Events with named snapshot updates
//   - GET /metrics: prometheus scrape endpoint, when metrics are configured
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	trains  TrainSource
	events  EventSource
	routes  RouteSource
	prefs   PrefsSource
	metrics *metrics.Registry

	port       int
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - trains, events, routes, prefs: the stores served
//   - reg: metrics registry backing /metrics (may be nil)
//   - port: TCP port to listen on
//   - logger: logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(trains TrainSource, events EventSource, routes RouteSource, prefs PrefsSource, reg *metrics.Registry, port int, logger *slog.Logger) *Server {
	return &Server{
		trains:  trains,
		events:  events,
		routes:  routes,
		prefs:   prefs,
		metrics: reg,
		port:    port,
		logger:  logger,
	}
}

// handler builds the request mux. Split out from Start so tests can drive
// the full routing table through httptest.
func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/trains", s.handleTrains)
	mux.HandleFunc("/api/trains/", s.handleTrainByID)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/routes", s.handleRoutes)
	mux.HandleFunc("/api/prefs", s.handlePrefs)
	mux.HandleFunc("/api/stream", s.handleStream)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler: s.handler(),
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

func (s *Server) handleTrains(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.trains.Snapshot())
}

// trainDetail is the per-train response: the record and, once resolution
// has finished, its route.
type trainDetail struct {
	Train *positions.Train `json:"train"`
	Route *routes.Route    `json:"route,omitempty"`
}

func (s *Server) handleTrainByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/trains/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	train, ok := s.trains.GetByID(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	detail := trainDetail{Train: train}
	if route, ok := s.routes.RouteFor(id); ok {
		detail.Route = &route
	}
	s.writeJSON(w, detail)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.events.Snapshot())
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.routes.Snapshot())
}

func (s *Server) handlePrefs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, s.prefs.Snapshot())
	case http.MethodPut:
		var next prefs.Prefs
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			http.Error(w, "Invalid preferences payload", http.StatusBadRequest)
			return
		}
		s.prefs.Replace(next)
		s.writeJSON(w, s.prefs.Snapshot())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleStream streams snapshot updates via Server-Sent Events.
//
// Each connection subscribes to the three data stores, which keeps their
// background polling alive for as long as at least one client is attached.
// Updates are coalesced per store: the client always receives the newest
// snapshot, not every intermediate one.
//
// The handler uses write deadlines to prevent goroutine leaks when clients
// are slow or disconnected. Without deadlines, a blocked Fprintf call would
// prevent the handler from detecting context cancellation.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// ResponseController provides deadline-aware write and flush operations.
	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some
	// ResponseWriter impls)
	deadlinesSupported := true

	writeEvent := func(name string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			s.logger.Error("failed to encode stream event", "event", name, "error", err)
			return nil
		}

		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	// set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// one wake slot per store: a pending wake means "re-read the snapshot"
	trainsWake := make(chan struct{}, 1)
	eventsWake := make(chan struct{}, 1)
	routesWake := make(chan struct{}, 1)

	unsubTrains := s.trains.Subscribe(func() { wake(trainsWake) })
	defer unsubTrains()
	unsubEvents := s.events.Subscribe(func() { wake(eventsWake) })
	defer unsubEvents()
	unsubRoutes := s.routes.Subscribe(func() { wake(routesWake) })
	defer unsubRoutes()

	if s.metrics != nil {
		s.metrics.StreamClients.Inc()
		defer s.metrics.StreamClients.Dec()
	}

	// send the current snapshots up front (also protected by write deadline)
	if err := writeEvent("trains", s.trains.Snapshot()); err != nil {
		return
	}
	if err := writeEvent("events", s.events.Snapshot()); err != nil {
		return
	}
	if err := writeEvent("routes", s.routes.Snapshot()); err != nil {
		return
	}

	// stream updates
	for {
		select {
		case <-trainsWake:
			if err := writeEvent("trains", s.trains.Snapshot()); err != nil {
				return
			}
		case <-eventsWake:
			if err := writeEvent("events", s.events.Snapshot()); err != nil {
				return
			}
		case <-routesWake:
			if err := writeEvent("routes", s.routes.Snapshot()); err != nil {
				return
			}
		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
