package main

import (
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flagInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh the live meter until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&flagInterval, "interval", 0, "refresh interval (default: meter.poll_interval)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := flagInterval
	if interval <= 0 {
		interval = cfg.Meter.PollInterval
	}

	c := newClient()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		view, err := c.Status(ctx)
		switch {
		case err == nil:
			printMeter(cmd.OutOrStdout(), view)
		case ctx.Err() != nil:
			return nil
		default:
			// Keep polling; the server may come back.
			log.WithError(err).Warn("failed to read meter")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
