package main

import (
	"fmt"

	"github.com/railfeed/railfeed/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a RailFeed configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  railfeed validate -c config.yaml
  railfeed validate --config /etc/railfeed/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	prefsTarget := cfg.Prefs.Path
	if prefsTarget == "" {
		prefsTarget = "in-memory"
	}
	metricsState := "enabled"
	if !cfg.Metrics.IsEnabled() {
		metricsState = "disabled"
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:               %d\n", cfg.Port)
	fmt.Printf("  Position interval:  %s\n", cfg.Positions.Interval.Duration())
	fmt.Printf("  Stale after:        %s\n", cfg.Positions.StaleAfter.Duration())
	fmt.Printf("  Event interval:     %s\n", cfg.Events.Interval.Duration())
	fmt.Printf("  Route batch size:   %d\n", cfg.Routes.BatchSize)
	fmt.Printf("  Preferences:        %s\n", prefsTarget)
	fmt.Printf("  Metrics:            %s\n", metricsState)

	return nil
}
