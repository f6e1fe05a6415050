package events

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
)

const webhookSubjectPrefix = "webhooks."

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier fans processed webhooks out on webhooks.<connector>.
type NATSNotifier struct {
	conn Publisher
}

func NewNATSNotifier(conn Publisher) *NATSNotifier {
	return &NATSNotifier{conn: conn}
}

func WebhookSubject(connector string) string {
	return webhookSubjectPrefix + connector
}

func (n *NATSNotifier) NotifyWebhook(_ context.Context, event models.WebhookEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode webhook event: %w", err)
	}
	if err := n.conn.Publish(WebhookSubject(event.Connector), data); err != nil {
		return fmt.Errorf("publish webhook event: %w", err)
	}
	return nil
}

// LogSink stands in for both brokers when the switch runs without them.
type LogSink struct{}

func (LogSink) PublishStateChange(_ context.Context, event models.PaymentStateChangedEvent) error {
	telemetry.Logger.Debug("State change",
		zap.String("payment_id", event.PaymentID),
		zap.String("operation", event.Operation),
		zap.String("state", string(event.State)),
	)
	return nil
}

func (LogSink) NotifyWebhook(_ context.Context, event models.WebhookEvent) error {
	telemetry.Logger.Debug("Webhook event",
		zap.String("connector", event.Connector),
		zap.String("event_type", string(event.EventType)),
		zap.String("payment_id", event.PaymentID),
	)
	return nil
}
