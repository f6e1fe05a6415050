package payments

import (
	"context"
	"fmt"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

// preconditionMessage is the reason reported when op is not allowed for an
// intent in status s.
func preconditionMessage(op models.Operation, s models.IntentStatus) string {
	switch op {
	case models.OperationCancel:
		return "You cannot cancel the payment that has not been authorized"
	case models.OperationCapture:
		return fmt.Sprintf("You cannot capture the payment because it has status %s", s)
	case models.OperationConfirm:
		return fmt.Sprintf("You cannot confirm this payment because it has status %s", s)
	default:
		return fmt.Sprintf("The operation %s is not allowed for a payment with status %s", op, s)
	}
}

func checkPrecondition(intent *models.PaymentIntent, op models.Operation) error {
	if intent.Status.Permits(op) {
		return nil
	}
	return apierrors.PreconditionFailed(preconditionMessage(op, intent.Status))
}

func checkAttemptPrecondition(attempt *models.PaymentAttempt, op models.Operation) error {
	if attempt.Status.Permits(op) {
		return nil
	}
	return apierrors.PreconditionFailed(fmt.Sprintf(
		"You cannot %s this payment because its active attempt has status %s", op, attempt.Status))
}

// loadTrackers assembles PaymentData from storage. When op is not empty the
// preconditions of op are enforced as soon as the intent and then the
// active attempt are read, so an illegal request never reaches a connector.
// It never writes.
func loadTrackers[F types.Flow](ctx context.Context, c *Core, v ValidateResult, op models.Operation) (*PaymentData[F], error) {
	intent, err := c.store.FindPaymentIntentByPaymentIDMerchantID(ctx, v.PaymentID, v.MerchantID, v.Scheme)
	if err != nil {
		return nil, apierrors.ToNotFound(err, apierrors.PaymentNotFound())
	}
	if op != "" {
		if err := checkPrecondition(intent, op); err != nil {
			return nil, err
		}
	}

	attempt, err := c.store.FindPaymentAttemptByAttemptIDMerchantID(ctx, intent.ActiveAttemptID, v.MerchantID, v.Scheme)
	if err != nil {
		return nil, apierrors.ToNotFound(err, apierrors.PaymentNotFound())
	}
	if op != "" {
		if err := checkAttemptPrecondition(attempt, op); err != nil {
			return nil, err
		}
	}

	data := &PaymentData[F]{
		Intent:    *intent,
		Attempt:   *attempt,
		Connector: attempt.Connector,
		Scheme:    v.Scheme,
	}

	if data.Address.Shipping, err = c.findAddress(ctx, intent.ShippingAddressID); err != nil {
		return nil, err
	}
	if data.Address.Billing, err = c.findAddress(ctx, intent.BillingAddressID); err != nil {
		return nil, err
	}

	cr, err := c.store.FindConnectorResponseByPaymentIDMerchantIDAttemptID(ctx, intent.PaymentID, v.MerchantID, attempt.AttemptID, v.Scheme)
	switch {
	case err == nil:
		data.ConnectorResponse = cr
	case !apierrors.IsNotFound(err):
		return nil, apierrors.InternalServerError().WithCause(err)
	}

	refunds, err := c.store.FindRefundsByPaymentIDMerchantID(ctx, intent.PaymentID, v.MerchantID, v.Scheme)
	if err != nil && !apierrors.IsNotFound(err) {
		return nil, apierrors.InternalServerError().WithCause(err)
	}
	data.Refunds = refunds

	return data, nil
}

func (c *Core) findAddress(ctx context.Context, addressID string) (*models.Address, error) {
	if addressID == "" {
		return nil, nil
	}
	address, err := c.store.FindAddressByAddressID(ctx, addressID)
	if err != nil {
		return nil, apierrors.ToNotFound(err, apierrors.InvalidRequestData("Address does not exist in our records"))
	}
	return address, nil
}
