// Package refunds runs the refund Execute and RSync flows against the
// connector that processed the payment.
package refunds

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/core/payments"
	"github.com/akylbek/payment-system/payment-switch/internal/interfaces"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/services"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

const refundIDPrefix = "ref_"

type Core struct {
	store interfaces.StorageInterface
	steps services.StepContext
}

func NewCore(store interfaces.StorageInterface, steps services.StepContext) *Core {
	return &Core{store: store, steps: steps}
}

// CreateRefund refunds part or all of a succeeded payment. The refund is
// stored as pending before the connector is called and updated with the
// connector's answer afterwards.
func (c *Core) CreateRefund(ctx context.Context, merchantID string, req *models.CreateRefundRequest) (refund *models.Refund, err error) {
	ctx, span := telemetry.StartSpan(ctx, "refunds.create",
		attribute.String("merchant_id", merchantID),
		attribute.String("payment_id", req.PaymentID),
	)
	defer func() {
		telemetry.OperationsTotal.WithLabelValues("refund", result(err)).Inc()
		telemetry.EndSpan(span, err)
	}()

	if req.PaymentID == "" {
		return nil, apierrors.MissingRequiredFieldError("payment_id")
	}
	if req.Amount != nil && *req.Amount <= 0 {
		return nil, apierrors.InvalidDataValue("amount")
	}

	merchant, err := payments.LoadMerchant(ctx, c.store, merchantID)
	if err != nil {
		return nil, err
	}
	scheme := payments.StorageScheme(merchant)

	intent, err := c.store.FindPaymentIntentByPaymentIDMerchantID(ctx, req.PaymentID, merchantID, scheme)
	if err != nil {
		return nil, apierrors.ToNotFound(err, apierrors.PaymentNotFound())
	}
	if !intent.Status.Permits(models.OperationRefund) {
		return nil, apierrors.PreconditionFailed("The payment has not succeeded yet. Please pass a successful payment to initiate refund")
	}
	attempt, err := c.store.FindPaymentAttemptByAttemptIDMerchantID(ctx, intent.ActiveAttemptID, merchantID, scheme)
	if err != nil {
		return nil, apierrors.ToNotFound(err, apierrors.PaymentNotFound())
	}

	prior, err := c.store.FindRefundsByPaymentIDMerchantID(ctx, intent.PaymentID, merchantID, scheme)
	if err != nil && !apierrors.IsNotFound(err) {
		return nil, apierrors.InternalServerError().WithCause(err)
	}
	captured := intent.Amount
	if intent.AmountCaptured != nil {
		captured = *intent.AmountCaptured
	}
	refundable := captured - refundedAmount(prior)

	amount := refundable
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount <= 0 || amount > refundable {
		return nil, apierrors.InvalidRequestData("The refund amount exceeds the amount captured")
	}

	auth, err := payments.ResolveConnectorAuth(ctx, c.store, merchantID, attempt.Connector)
	if err != nil {
		return nil, err
	}
	if _, err := services.Lookup[types.Execute, types.RefundsData, types.RefundsResponseData](c.steps.Registry, attempt.Connector); err != nil {
		return nil, err
	}

	refundID := req.RefundID
	if refundID == "" {
		refundID = refundIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	refund, err = c.store.InsertRefund(ctx, &models.Refund{
		RefundID:               refundID,
		PaymentID:              intent.PaymentID,
		MerchantID:             merchantID,
		AttemptID:              attempt.AttemptID,
		Connector:              attempt.Connector,
		ConnectorTransactionID: attempt.ConnectorTransactionID,
		Status:                 models.RefundStatusPending,
		RefundAmount:           amount,
		TotalAmount:            intent.Amount,
		Currency:               intent.Currency,
		Reason:                 req.Reason,
	}, scheme)
	if err != nil {
		return nil, apierrors.ToDuplicate(err, apierrors.DuplicateRefund())
	}

	data := routerData[types.Execute](refund, auth)
	data, err = services.ExecuteConnectorProcessingStep(ctx, c.steps, data, services.Trigger())
	if err != nil {
		telemetry.Logger.Warn("Refund call failed",
			zap.String("refund_id", refund.RefundID),
			zap.String("connector", refund.Connector),
			zap.Error(err),
		)
		c.markFailed(ctx, refund, err, scheme)
		return nil, err
	}
	return c.fold(ctx, refund, data.Response, data.ErrorResponse, scheme)
}

// markFailed fails a refund whose execute call never produced a connector
// verdict, so it stops counting against the refundable amount.
func (c *Core) markFailed(ctx context.Context, refund *models.Refund, cause error, scheme models.StorageScheme) {
	code := "router_error"
	var ce *apierrors.ConnectorError
	if errors.As(cause, &ce) {
		code = string(ce.Kind)
	}
	_, err := c.store.UpdateRefund(ctx, refund, models.RefundErrorUpdate{
		Status:       models.RefundStatusFailure,
		ErrorCode:    code,
		ErrorMessage: cause.Error(),
	}, scheme)
	if err != nil {
		telemetry.Logger.Error("Failed to mark refund as failed",
			zap.String("refund_id", refund.RefundID),
			zap.Error(err),
		)
	}
}

// RetrieveRefund returns a refund, syncing it with the connector when
// force_sync is set and the refund is not final yet.
func (c *Core) RetrieveRefund(ctx context.Context, merchantID string, req *models.RetrieveRefundRequest) (refund *models.Refund, err error) {
	ctx, span := telemetry.StartSpan(ctx, "refunds.sync",
		attribute.String("merchant_id", merchantID),
		attribute.String("refund_id", req.RefundID),
	)
	defer func() {
		telemetry.OperationsTotal.WithLabelValues("refund_sync", result(err)).Inc()
		telemetry.EndSpan(span, err)
	}()

	if req.RefundID == "" {
		return nil, apierrors.MissingRequiredFieldError("refund_id")
	}
	merchant, err := payments.LoadMerchant(ctx, c.store, merchantID)
	if err != nil {
		return nil, err
	}
	scheme := payments.StorageScheme(merchant)

	refund, err = c.store.FindRefundByMerchantIDRefundID(ctx, merchantID, req.RefundID, scheme)
	if err != nil {
		return nil, apierrors.ToNotFound(err, apierrors.RefundNotFound())
	}
	if !req.ForceSync || refund.Status.IsFinal() {
		return refund, nil
	}

	auth, err := payments.ResolveConnectorAuth(ctx, c.store, merchantID, refund.Connector)
	if err != nil {
		return nil, err
	}
	data := routerData[types.RSync](refund, auth)
	data, err = services.ExecuteConnectorProcessingStep(ctx, c.steps, data, services.Trigger())
	if err != nil {
		return nil, err
	}
	return c.fold(ctx, refund, data.Response, data.ErrorResponse, scheme)
}

// fold writes the connector's verdict onto the refund. A connector error
// response fails the refund on execute; on sync it only records the error.
func (c *Core) fold(ctx context.Context, refund *models.Refund, resp *types.RefundsResponseData, errResp *types.ErrorResponse, scheme models.StorageScheme) (*models.Refund, error) {
	var update models.RefundUpdate
	switch {
	case errResp != nil:
		status := models.RefundStatusFailure
		if refund.ConnectorRefundID != "" {
			status = refund.Status
		}
		update = models.RefundErrorUpdate{Status: status, ErrorCode: errResp.Code, ErrorMessage: errResp.Message}
	case resp != nil:
		update = models.RefundResponseUpdate{ConnectorRefundID: resp.ConnectorRefundID, Status: resp.RefundStatus}
	default:
		return refund, nil
	}

	out, err := c.store.UpdateRefund(ctx, refund, update, scheme)
	if err != nil {
		return nil, err
	}
	telemetry.Logger.Info("Refund updated",
		zap.String("refund_id", out.RefundID),
		zap.String("payment_id", out.PaymentID),
		zap.String("from_status", string(refund.Status)),
		zap.String("to_status", string(out.Status)),
	)
	return out, nil
}

func routerData[F types.Flow](refund *models.Refund, auth types.ConnectorAuthType) types.RouterData[F, types.RefundsData, types.RefundsResponseData] {
	return types.RouterData[F, types.RefundsData, types.RefundsResponseData]{
		MerchantID:        refund.MerchantID,
		Connector:         refund.Connector,
		PaymentID:         refund.PaymentID,
		AttemptID:         refund.AttemptID,
		ConnectorAuthType: auth,
		Request: types.RefundsData{
			RefundID:               refund.RefundID,
			ConnectorTransactionID: refund.ConnectorTransactionID,
			ConnectorRefundID:      refund.ConnectorRefundID,
			Currency:               refund.Currency,
			Amount:                 refund.TotalAmount,
			RefundAmount:           refund.RefundAmount,
			Reason:                 refund.Reason,
		},
	}
}

// refundedAmount is what earlier refunds already took or may still take.
func refundedAmount(refunds []models.Refund) int64 {
	var total int64
	for _, r := range refunds {
		switch r.Status {
		case models.RefundStatusFailure, models.RefundStatusTransactionFailure:
			continue
		}
		total += r.RefundAmount
	}
	return total
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
