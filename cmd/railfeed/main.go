// Package main is the entry point for the railfeed CLI.
//
// RailFeed can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	railfeed serve -c config.yaml    # Start the sync server
//	railfeed validate -c config.yaml # Validate configuration
//	railfeed version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "railfeed",
	Short: "A live Swedish railway data sync server",
	Long: `RailFeed keeps a live mirror of Swedish railway traffic.

It polls the Trafikverket open API for train positions and traffic
events, resolves train routes in the background, and serves the whole
state over a REST API with Server-Sent Events for live updates.

Quick start:
  1. Register an API key at https://data.trafikverket.se
  2. Create a config file (railfeed.yaml)
  3. Run: railfeed serve -c railfeed.yaml
  4. Fetch http://localhost:8080/api/trains

Example config:
  port: 8080
  api:
    key: ${TRV_API_KEY}
  positions:
    interval: 45s`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this railfeed binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("railfeed %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
