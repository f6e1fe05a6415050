package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akylbek/payment-system/payment-switch/internal/config"
	"github.com/akylbek/payment-system/payment-switch/internal/events"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
)

func eventsCmd() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print payment state changes from Kafka as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			reader := events.NewKafkaReader(cfg.KafkaBrokers, cfg.StateTopic, group)
			defer reader.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			enc := json.NewEncoder(cmd.OutOrStdout())
			return events.Consume(ctx, reader, func(_ context.Context, e models.PaymentStateChangedEvent) error {
				return enc.Encode(e)
			})
		},
	}
	cmd.Flags().StringVar(&group, "group", "payment-switch-events", "kafka consumer group")
	return cmd
}
