package interfaces

import (
	"context"
	"time"

	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

// ConnectorTransport sends a composed request to a connector. A non-2xx
// status is not an error at this level.
type ConnectorTransport interface {
	Send(ctx context.Context, connector string, req *types.Request) (*types.Response, error)
}

// EventPublisher announces committed payment state changes.
type EventPublisher interface {
	PublishStateChange(ctx context.Context, event models.PaymentStateChangedEvent) error
}

// WebhookNotifier fans processed inbound webhooks out to internal consumers.
type WebhookNotifier interface {
	NotifyWebhook(ctx context.Context, event models.WebhookEvent) error
}

// PaymentMethodVault stores payment-method material behind a short-lived token.
type PaymentMethodVault interface {
	SavePaymentMethod(ctx context.Context, token string, data models.PaymentMethodData, ttl time.Duration) error
	GetPaymentMethod(ctx context.Context, token string) (*models.PaymentMethodData, error)
}
