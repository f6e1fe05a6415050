package payments

import (
	"context"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/services"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

// paymentCancel voids an authorization. The attempt is moved to
// VoidInitiated before the connector is called; the connector's own verdict
// is picked up by a later sync.
type paymentCancel struct{}

func (paymentCancel) Name() models.Operation { return models.OperationCancel }

func (paymentCancel) ValidateRequest(req *models.CancelPaymentRequest, merchant *models.MerchantAccount) (ValidateResult, error) {
	return validatePayment(req.PaymentID, merchant)
}

func (paymentCancel) GetTrackers(ctx context.Context, c *Core, v ValidateResult, req *models.CancelPaymentRequest) (*PaymentData[types.Void], error) {
	data, err := loadTrackers[types.Void](ctx, c, v, models.OperationCancel)
	if err != nil {
		return nil, err
	}
	data.CancellationReason = req.CancellationReason
	return data, nil
}

func (paymentCancel) Domain(ctx context.Context, c *Core, data *PaymentData[types.Void], _ *models.CancelPaymentRequest, _ *models.MerchantAccount) error {
	if err := boundConnector(ctx, c, data); err != nil {
		return err
	}
	return supportsFlow[types.Void, types.PaymentsCancelData](c, data.Connector)
}

func (paymentCancel) Checkpoint(ctx context.Context, c *Core, data *PaymentData[types.Void]) error {
	attempt, err := c.updateAttempt(ctx, &data.Attempt, models.AttemptVoidUpdate{
		Status:             models.AttemptStatusVoidInitiated,
		CancellationReason: data.CancellationReason,
	}, data.Scheme)
	if err != nil {
		return err
	}
	data.Attempt = *attempt
	return nil
}

func (paymentCancel) CallAction(_ *PaymentData[types.Void], requested services.CallConnectorAction) services.CallConnectorAction {
	return requested
}

func (paymentCancel) ConnectorRequest(data *PaymentData[types.Void]) (types.PaymentsCancelData, error) {
	return types.PaymentsCancelData{
		Amount:                 data.Attempt.Amount,
		Currency:               data.Attempt.Currency,
		ConnectorTransactionID: data.Attempt.ConnectorTransactionID,
		CancellationReason:     data.CancellationReason,
	}, nil
}

func (paymentCancel) UpdateTrackers(ctx context.Context, c *Core, data *PaymentData[types.Void], rd types.PaymentsCancelRouterData) error {
	if rd.ErrorResponse == nil {
		telemetry.Logger.Info("Void accepted by connector",
			zap.String("payment_id", data.Intent.PaymentID),
			zap.String("connector", data.Connector),
			zap.String("connector_status", string(rd.Status)),
		)
		return nil
	}

	failed := models.AttemptStatusVoidFailed
	attempt, err := c.updateAttempt(ctx, &data.Attempt, models.AttemptErrorUpdate{
		Status:       &failed,
		ErrorCode:    rd.ErrorResponse.Code,
		ErrorMessage: rd.ErrorResponse.Message,
	}, data.Scheme)
	if err != nil {
		return err
	}
	data.Attempt = *attempt
	return nil
}

// CancelPayment voids an authorized payment.
func (c *Core) CancelPayment(ctx context.Context, merchantID string, req *models.CancelPaymentRequest) (*models.PaymentResponse, error) {
	data, err := RunOperation[types.Void, models.CancelPaymentRequest, types.PaymentsCancelData](
		ctx, c, merchantID, paymentCancel{}, req, services.Trigger())
	if err != nil {
		return nil, err
	}
	return paymentResponse(data), nil
}
