/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/expensetracker/apiserver/internal/mq"
	"github.com/expensetracker/apiserver/internal/server"
	"github.com/expensetracker/apiserver/types"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect domain events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print events from the events channel as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := server.NewEventsBackend(ctx, cfg.Events, logger)
		if err != nil {
			return err
		}
		events := mq.NewEvents(backend, cfg.Events.Channel, logger)
		defer events.Close()

		logger.Info("tailing events", "backend", cfg.Events.Backend, "channel", cfg.Events.Channel)
		enc := json.NewEncoder(cmd.OutOrStdout())
		err = events.Tail(ctx, func(_ context.Context, event types.Event) error {
			return enc.Encode(event)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
