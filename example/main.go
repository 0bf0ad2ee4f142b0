package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/railfeed/railfeed"
)

func main() {
	// start mock upstream (see mock_server.go)
	go StartMockTrafikverket(":9999")
	time.Sleep(100 * time.Millisecond)

	rf, err := railfeed.New(
		railfeed.WithAPIKey("demo-key"),
		railfeed.WithBaseURL("http://localhost:9999"),
		railfeed.WithPositionInterval(5*time.Second),
		railfeed.WithEventInterval(15*time.Second),
		railfeed.WithPort(8080),
	)
	if err != nil {
		slog.Error("failed to create railfeed", "error", err)
		os.Exit(1)
	}

	// consume the SDK surface directly alongside the HTTP API: log whenever
	// the train set changes
	positions := rf.Positions()
	unsubscribe := positions.Subscribe(func() {
		snap := positions.Snapshot()
		slog.Info("positions updated", "trains", len(snap.Trains))
	})
	defer unsubscribe()

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   RailFeed Demo                                       ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Mock Trafikverket feed: 4 trains on 3 lines,        ║")
	fmt.Println("  ║   1 disruption rotating severity every 45s            ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Try:                                                ║")
	fmt.Println("  ║   • curl localhost:8080/api/trains                    ║")
	fmt.Println("  ║   • curl localhost:8080/api/events                    ║")
	fmt.Println("  ║   • curl localhost:8080/api/routes                    ║")
	fmt.Println("  ║   • curl -N localhost:8080/api/stream                 ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rf.Start(ctx); err != nil {
		slog.Error("railfeed error", "error", err)
		os.Exit(1)
	}
}
