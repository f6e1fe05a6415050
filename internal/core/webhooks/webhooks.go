// Package webhooks folds connector notifications and browser redirects into
// payment state through the sync operation.
package webhooks

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/core/payments"
	"github.com/akylbek/payment-system/payment-switch/internal/interfaces"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/services"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
)

// Outcome is what became of an inbound webhook.
type Outcome string

const (
	OutcomeProcessed      Outcome = "processed"
	OutcomeNotImplemented Outcome = "not_implemented"
	OutcomeNotSupported   Outcome = "event_not_supported"
	OutcomeForwarded      Outcome = "forwarded"
	OutcomeFailed         Outcome = "failed"
)

type Core struct {
	payments *payments.Core
	notifier interfaces.WebhookNotifier
	now      func() time.Time
}

func NewCore(pc *payments.Core, notifier interfaces.WebhookNotifier) *Core {
	return &Core{payments: pc, notifier: notifier, now: time.Now}
}

// HandleWebhook parses a connector notification and, for payment events,
// re-runs the sync operation over the carried resource without calling the
// connector. Connectors without webhook support are acknowledged as a no-op.
func (c *Core) HandleWebhook(ctx context.Context, merchantID, connector string, body []byte) (outcome Outcome, err error) {
	ctx, span := telemetry.StartSpan(ctx, "webhooks.incoming",
		attribute.String("merchant_id", merchantID),
		attribute.String("connector", connector),
	)
	defer func() {
		if err != nil {
			outcome = OutcomeFailed
		}
		telemetry.WebhooksTotal.WithLabelValues(connector, string(outcome)).Inc()
		telemetry.EndSpan(span, err)
	}()

	webhook, err := c.payments.Steps().Registry.Webhook(connector)
	if err != nil {
		return "", err
	}

	refID, err := webhook.GetWebhookObjectReferenceID(body)
	if apierrors.IsConnectorErrorKind(err, apierrors.WebhooksNotImplemented) {
		telemetry.Logger.Info("Webhooks not implemented for connector, ignoring",
			zap.String("connector", connector),
			zap.String("merchant_id", merchantID),
		)
		return OutcomeNotImplemented, nil
	}
	if err != nil {
		return "", apierrors.WithContext(err, connector, "webhook")
	}
	eventType, err := webhook.GetWebhookEventType(body)
	if err != nil {
		return "", apierrors.WithContext(err, connector, "webhook")
	}
	if eventType == models.WebhookEventNotSupported {
		telemetry.Logger.Info("Webhook event not supported, ignoring",
			zap.String("connector", connector),
			zap.String("object_reference_id", refID),
		)
		return OutcomeNotSupported, nil
	}
	resource, err := webhook.GetWebhookResourceObject(body)
	if err != nil {
		return "", apierrors.WithContext(err, connector, "webhook")
	}

	event := models.WebhookEvent{
		MerchantID:  merchantID,
		Connector:   connector,
		EventType:   eventType,
		ObjectRefID: refID,
		Resource:    json.RawMessage(resource),
		ReceivedAt:  c.now().UTC(),
	}

	outcome = OutcomeForwarded
	if isPaymentEvent(eventType) {
		paymentID, err := c.syncFromResource(ctx, merchantID, connector, refID, resource)
		if err != nil {
			return "", err
		}
		event.PaymentID = paymentID
		outcome = OutcomeProcessed
	}

	if err := c.notifier.NotifyWebhook(ctx, event); err != nil {
		telemetry.Logger.Error("Failed to notify webhook",
			zap.String("connector", connector),
			zap.String("object_reference_id", refID),
			zap.Error(err),
		)
	}
	telemetry.Logger.Info("Webhook handled",
		zap.String("connector", connector),
		zap.String("event_type", string(eventType)),
		zap.String("payment_id", event.PaymentID),
		zap.String("outcome", string(outcome)),
	)
	return outcome, nil
}

func (c *Core) syncFromResource(ctx context.Context, merchantID, connector, refID string, resource []byte) (string, error) {
	store := c.payments.Store()
	merchant, err := payments.LoadMerchant(ctx, store, merchantID)
	if err != nil {
		return "", err
	}
	attempt, err := store.FindPaymentAttemptByConnectorTransactionID(ctx, merchantID, refID, payments.StorageScheme(merchant))
	if err != nil {
		return "", apierrors.ToNotFound(err, apierrors.PaymentNotFound())
	}
	if attempt.Connector != connector {
		return "", apierrors.InvalidRequestData("The webhook connector does not match the payment's connector")
	}

	_, err = c.payments.SyncPayment(ctx, merchantID, &models.RetrievePaymentRequest{
		PaymentID:              attempt.PaymentID,
		ConnectorTransactionID: refID,
		Connector:              connector,
	}, services.HandleResponse(resource))
	if err != nil {
		return "", err
	}
	return attempt.PaymentID, nil
}

// HandleRedirect completes a payment after the customer returns from the
// connector. The connector decides whether the query already carries the
// result or the payment must be re-synced.
func (c *Core) HandleRedirect(ctx context.Context, merchantID, paymentID, connector string, query url.Values) (*models.PaymentResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "webhooks.redirect",
		attribute.String("payment_id", paymentID),
		attribute.String("connector", connector),
	)
	resp, err := c.redirect(ctx, merchantID, paymentID, connector, query)
	telemetry.EndSpan(span, err)
	return resp, err
}

func (c *Core) redirect(ctx context.Context, merchantID, paymentID, connector string, query url.Values) (*models.PaymentResponse, error) {
	redirect, err := c.payments.Steps().Registry.Redirect(connector)
	if err != nil {
		return nil, err
	}
	action, err := redirect.GetFlowType(query)
	if err != nil {
		return nil, apierrors.WithContext(err, connector, "redirect")
	}

	telemetry.Logger.Info("Redirect received",
		zap.String("payment_id", paymentID),
		zap.String("connector", connector),
		zap.String("call_mode", action.Mode.String()),
	)
	return c.payments.SyncPayment(ctx, merchantID, &models.RetrievePaymentRequest{
		PaymentID: paymentID,
		Connector: connector,
		ForceSync: action.Mode == services.CallModeTrigger,
	}, action)
}

func isPaymentEvent(t models.WebhookEventType) bool {
	switch t {
	case models.WebhookEventPaymentSucceeded, models.WebhookEventPaymentFailed, models.WebhookEventPaymentProcessing:
		return true
	}
	return false
}
