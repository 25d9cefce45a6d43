package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taximeter/internal/meter"
)

var (
	flagStoppedSeconds float64
	flagMovingSeconds  float64
)

var fareCmd = &cobra.Command{
	Use:   "fare",
	Short: "Quote the fare for the given stopped and moving seconds",
	Long: `Fare prices a trip offline with the configured rates and minimum fare.

Example:
  taximeter fare --stopped 200 --moving 0
  taximeter fare --stopped 30 --moving 120`,
	Args: cobra.NoArgs,
	RunE: runFare,
}

func init() {
	fareCmd.Flags().Float64Var(&flagStoppedSeconds, "stopped", 0, "seconds spent stopped")
	fareCmd.Flags().Float64Var(&flagMovingSeconds, "moving", 0, "seconds spent moving")
}

func runFare(cmd *cobra.Command, args []string) error {
	if err := meter.ValidateSeconds(flagStoppedSeconds, flagMovingSeconds); err != nil {
		return err
	}

	fares, err := meter.NewFareCalculator(cfg.Meter.Rates())
	if err != nil {
		return err
	}

	breakdown := fares.Breakdown(flagStoppedSeconds, flagMovingSeconds)
	symbol := cfg.Meter.CurrencySymbol
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Stopped: %.3fs  %s%.2f\n", flagStoppedSeconds, symbol, breakdown.StoppedCharge)
	fmt.Fprintf(out, "Moving:  %.3fs  %s%.2f\n", flagMovingSeconds, symbol, breakdown.MovingCharge)
	if breakdown.MinimumApplied {
		fmt.Fprintf(out, "Minimum fare applied: %s%.2f\n", symbol, fares.Rates().MinimumFare)
	}
	fmt.Fprintf(out, "Fare to pay: %s%.2f\n", symbol, breakdown.Total)
	return nil
}
