package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/interfaces"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

// updateAttempt applies update unless it would move the attempt along an
// edge its status graph does not have.
func (c *Core) updateAttempt(ctx context.Context, attempt *models.PaymentAttempt, update models.PaymentAttemptUpdate, scheme models.StorageScheme) (*models.PaymentAttempt, error) {
	next := update.NextStatus(attempt.Status)
	if !attempt.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("attempt %s: %s -> %s: %w", attempt.AttemptID, attempt.Status, next, apierrors.ErrIllegalTransition)
	}
	out, err := c.store.UpdatePaymentAttempt(ctx, attempt, update, scheme)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// updateIntent writes the intent and announces the change.
func (c *Core) updateIntent(
	ctx context.Context,
	op models.Operation,
	intent *models.PaymentIntent,
	attempt *models.PaymentAttempt,
	update models.PaymentIntentUpdate,
	scheme models.StorageScheme,
) (*models.PaymentIntent, error) {
	out, err := c.store.UpdatePaymentIntent(ctx, intent, update, scheme)
	if err != nil {
		return nil, err
	}
	c.announce(ctx, op, intent.Status, out, attempt)
	return out, nil
}

// announce publishes a state change event. Inside a transaction the event
// is held until commit. Delivery failures are logged and never undo the
// committed write.
func (c *Core) announce(ctx context.Context, op models.Operation, previous models.IntentStatus, intent *models.PaymentIntent, attempt *models.PaymentAttempt) {
	event := models.PaymentStateChangedEvent{
		PaymentID:     intent.PaymentID,
		MerchantID:    intent.MerchantID,
		AttemptID:     attempt.AttemptID,
		Operation:     string(op),
		State:         intent.Status,
		PreviousState: previous,
		AttemptStatus: attempt.Status,
		Connector:     attempt.Connector,
		Timestamp:     time.Now().UTC(),
	}
	if c.pending != nil {
		*c.pending = append(*c.pending, event)
		return
	}
	c.emit(ctx, event)
}

func (c *Core) emit(ctx context.Context, event models.PaymentStateChangedEvent) {
	if event.PreviousState != event.State {
		telemetry.StateTransitionsTotal.WithLabelValues(string(event.PreviousState), string(event.State)).Inc()
		telemetry.Logger.Info("Payment state transition",
			zap.String("payment_id", event.PaymentID),
			zap.String("from_state", string(event.PreviousState)),
			zap.String("to_state", string(event.State)),
		)
	}
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishStateChange(ctx, event); err != nil {
		telemetry.Logger.Error("Failed to publish state change",
			zap.String("payment_id", event.PaymentID),
			zap.Error(err),
		)
	}
}

// withTx runs fn with a Core bound to one storage transaction. State changes
// announced by fn are published only once the transaction has committed.
func (c *Core) withTx(ctx context.Context, fn func(txc *Core) error) error {
	var pending []models.PaymentStateChangedEvent
	err := c.store.WithTx(ctx, func(tx interfaces.StorageInterface) error {
		txc := *c
		txc.store = tx
		txc.pending = &pending
		return fn(&txc)
	})
	if err != nil {
		return err
	}
	for _, event := range pending {
		c.emit(ctx, event)
	}
	return nil
}

// syncIntent moves the intent to the status derived from the attempt, if it
// differs from the current one.
func syncIntent[F types.Flow](ctx context.Context, c *Core, op models.Operation, data *PaymentData[F], amountCaptured *int64) error {
	status := data.Attempt.Status.IntentStatus()
	if status == data.Intent.Status && amountCaptured == nil {
		return nil
	}
	intent, err := c.updateIntent(ctx, op, &data.Intent, &data.Attempt,
		models.IntentResponseUpdate{Status: status, AmountCaptured: amountCaptured}, data.Scheme)
	if err != nil {
		return err
	}
	data.Intent = *intent
	return nil
}

// saveConnectorResponse records the latest connector interaction of the attempt.
func saveConnectorResponse[F types.Flow](ctx context.Context, c *Core, data *PaymentData[F], resp *types.PaymentsResponseData) error {
	update := models.ConnectorResponseUpdate{ConnectorName: data.Connector}
	switch resp.ResourceID.Kind {
	case types.ConnectorTransactionIDKind:
		update.ConnectorTransactionID = resp.ResourceID.Value
	case types.EncodedDataKind:
		update.EncodedData = resp.ResourceID.Value
	}
	if resp.RedirectionData != nil {
		raw, err := json.Marshal(resp.RedirectionData)
		if err != nil {
			return err
		}
		update.AuthenticationData = raw
	}

	if data.ConnectorResponse != nil {
		cr, err := c.store.UpdateConnectorResponse(ctx, data.ConnectorResponse, update, data.Scheme)
		if err != nil {
			return err
		}
		data.ConnectorResponse = cr
		return nil
	}

	cr := &models.ConnectorResponse{
		PaymentID:  data.Intent.PaymentID,
		MerchantID: data.Intent.MerchantID,
		AttemptID:  data.Attempt.AttemptID,
	}
	update.ApplyTo(cr)
	cr, err := c.store.InsertConnectorResponse(ctx, cr, data.Scheme)
	if err != nil {
		return err
	}
	data.ConnectorResponse = cr
	return nil
}

// transactionID is the connector transaction id of resp, or "" when the
// connector answered with something else.
func transactionID(resp *types.PaymentsResponseData) string {
	if resp == nil {
		return ""
	}
	id, err := resp.ResourceID.GetConnectorTransactionID()
	if err != nil {
		return ""
	}
	return id
}
