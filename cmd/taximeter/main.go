// Package main provides the taximeter CLI: the meter server and commands to
// drive it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taximeter/internal/app"
	"taximeter/internal/config"
)

var (
	// configFile is set by the --config flag.
	configFile string

	// cfg is loaded before every command except version.
	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "taximeter",
	Short: "Taximeter prices a trip by time spent stopped and moving",
	Long: `Taximeter runs a trip meter that accrues time while the taxi is stopped
or moving and prices the trip when it finishes. The serve command exposes the
meter over HTTP; the other commands drive a running server or quote fares.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", os.Getenv("TAXIMETER_CONFIG"), "config file (YAML)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fareCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(finishCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(receiptCmd)
	rootCmd.AddCommand(watchCmd)
}

// loadConfig reads the configuration and sets up logging.
func loadConfig(cmd *cobra.Command, args []string) error {
	// Skip for version command
	if cmd.Name() == "version" {
		return nil
	}

	loaded, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := app.InitLogger(loaded.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	cfg = loaded
	return nil
}
