/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jobnest/apiserver/config"
	"github.com/jobnest/apiserver/internal/mq"
	"github.com/jobnest/apiserver/internal/server"
	"github.com/jobnest/apiserver/types"
	"github.com/spf13/cobra"
)

// notifyCmd consumes job board events and logs them.
var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Consume job board events from the configured broker",
	Long: `Consumes job and application events published by the server and logs
one line per event. Requires MQ_BACKEND to be set. Usage:

	jobnest notify
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if cfg.MQ.Backend == "" {
			return errors.New("MQ_BACKEND is required")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := server.NewLogger(os.Stdout, cfg.Log)
		broker, err := mq.NewFromConfig(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer broker.Close()

		logger.Info("consuming events", slog.String("backend", cfg.MQ.Backend), slog.String("channel", cfg.MQ.Channel))
		err = broker.SubscribeEvents(ctx, cfg.MQ.Channel, func(ctx context.Context, event types.Event) error {
			logger.Info("event received",
				slog.String("id", event.ID),
				slog.String("type", string(event.Type)),
				slog.String("job_id", event.JobID),
				slog.String("application_id", event.ApplicationID),
				slog.String("actor_id", event.ActorID),
				slog.String("status", string(event.Status)),
				slog.Time("occurred_at", event.OccurredAt),
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}
