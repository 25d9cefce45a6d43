package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"taximeter/internal/client"
	"taximeter/internal/handler"
)

// flagAddr is the meter server address used by the client commands.
var flagAddr string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a trip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().Start(cmd.Context())
		if err != nil {
			return err
		}
		if resp.Trip != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Trip %s started\n", resp.Trip.ID)
		}
		printMeter(cmd.OutOrStdout(), &resp.Meter)
		return nil
	},
}

var moveCmd = &cobra.Command{
	Use:   "move",
	Short: "Switch the running trip to the moving rate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := newClient().Move(cmd.Context())
		if err != nil {
			return err
		}
		printMeter(cmd.OutOrStdout(), view)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Switch the running trip to the stopped rate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := newClient().Stop(cmd.Context())
		if err != nil {
			return err
		}
		printMeter(cmd.OutOrStdout(), view)
		return nil
	},
}

var finishCmd = &cobra.Command{
	Use:   "finish",
	Short: "Finish the running trip and print the fare",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newClient().Finish(cmd.Context())
		if errors.Is(err, client.ErrNoActiveTrip) {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				fmt.Fprintln(cmd.ErrOrStderr(), apiErr.Message)
			}
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the live meter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := newClient().Status(cmd.Context())
		if err != nil {
			return err
		}
		printMeter(cmd.OutOrStdout(), view)
		return nil
	},
}

var receiptCmd = &cobra.Command{
	Use:   "receipt",
	Short: "Print the receipt of the last finished trip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := newClient().Receipt(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{startCmd, moveCmd, stopCmd, finishCmd, statusCmd, receiptCmd, watchCmd} {
		cmd.Flags().StringVar(&flagAddr, "addr", "", "meter server URL (default: http://localhost:<server.port>)")
	}
}

func newClient() *client.Client {
	addr := flagAddr
	if addr == "" {
		addr = "http://localhost:" + cfg.Server.Port
	}
	return client.New(addr, nil)
}

// printMeter writes the meter view: times with 3 decimals, fare with 2.
func printMeter(w io.Writer, view *handler.MeterResponse) {
	fmt.Fprintf(w, "%-11s  %-8s  stopped %9.3fs  moving %9.3fs  fare %s\n",
		view.Status, view.State, view.StoppedSeconds, view.MovingSeconds, view.FareDisplay)
}
