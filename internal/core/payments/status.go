package payments

import (
	"context"

	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/services"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

// paymentStatus reads a payment and, when asked to or when a resource
// arrived out-of-band, reconciles it with the connector.
type paymentStatus struct{}

func (paymentStatus) Name() models.Operation { return models.OperationSync }

func (paymentStatus) ValidateRequest(req *models.RetrievePaymentRequest, merchant *models.MerchantAccount) (ValidateResult, error) {
	return validatePayment(req.PaymentID, merchant)
}

func (paymentStatus) GetTrackers(ctx context.Context, c *Core, v ValidateResult, req *models.RetrievePaymentRequest) (*PaymentData[types.PSync], error) {
	var op models.Operation
	if req.ForceSync {
		op = models.OperationSync
	}
	data, err := loadTrackers[types.PSync](ctx, c, v, op)
	if err != nil {
		return nil, err
	}
	data.ForceSync = req.ForceSync
	return data, nil
}

func (paymentStatus) Domain(ctx context.Context, c *Core, data *PaymentData[types.PSync], req *models.RetrievePaymentRequest, _ *models.MerchantAccount) error {
	connector := data.Attempt.Connector
	if connector == "" {
		connector = req.Connector
	}
	if connector == "" {
		return nil
	}
	return bindConnector(ctx, c, data, connector)
}

func (paymentStatus) CallAction(data *PaymentData[types.PSync], requested services.CallConnectorAction) services.CallConnectorAction {
	switch {
	case data.Connector == "":
		return services.Avoid()
	case requested.Mode == services.CallModeHandleResponse:
		return requested
	case data.ForceSync && !data.Attempt.Status.IsTerminal():
		return services.Trigger()
	default:
		return services.Avoid()
	}
}

func (paymentStatus) ConnectorRequest(data *PaymentData[types.PSync]) (types.PaymentsSyncData, error) {
	req := types.PaymentsSyncData{
		ConnectorTransactionID: types.ConnectorTransactionID(data.Attempt.ConnectorTransactionID),
	}
	if data.ConnectorResponse != nil {
		req.EncodedData = data.ConnectorResponse.EncodedData
	}
	return req, nil
}

func (paymentStatus) UpdateTrackers(ctx context.Context, c *Core, data *PaymentData[types.PSync], rd types.PaymentsSyncRouterData) error {
	if rd.ErrorResponse != nil {
		attempt, err := c.updateAttempt(ctx, &data.Attempt, models.AttemptErrorUpdate{
			ErrorCode:    rd.ErrorResponse.Code,
			ErrorMessage: rd.ErrorResponse.Message,
		}, data.Scheme)
		if err != nil {
			return err
		}
		data.Attempt = *attempt
		return nil
	}

	status := rd.Status
	if status == "" {
		status = data.Attempt.Status
	}
	txnID := transactionID(rd.Response)
	if status == data.Attempt.Status && (txnID == "" || txnID == data.Attempt.ConnectorTransactionID) {
		return nil
	}

	attempt, err := c.updateAttempt(ctx, &data.Attempt, models.AttemptResponseUpdate{
		Status:                 status,
		Connector:              data.Connector,
		ConnectorTransactionID: txnID,
	}, data.Scheme)
	if err != nil {
		return err
	}
	data.Attempt = *attempt

	var captured *int64
	if data.Attempt.Status == models.AttemptStatusCharged && data.Intent.AmountCaptured == nil {
		amount := data.Attempt.Amount
		if data.Attempt.AmountToCapture != nil {
			amount = *data.Attempt.AmountToCapture
		}
		captured = &amount
	}
	return syncIntent(ctx, c, models.OperationSync, data, captured)
}

// RetrievePayment returns the payment, syncing it with the connector first
// when force_sync is set.
func (c *Core) RetrievePayment(ctx context.Context, merchantID string, req *models.RetrievePaymentRequest) (*models.PaymentResponse, error) {
	return c.SyncPayment(ctx, merchantID, req, services.Trigger())
}

// SyncPayment runs the sync operation with an explicit call mode. Webhook and
// redirect handling pass HandleResponse with the resource they received.
func (c *Core) SyncPayment(ctx context.Context, merchantID string, req *models.RetrievePaymentRequest, action services.CallConnectorAction) (*models.PaymentResponse, error) {
	data, err := RunOperation[types.PSync, models.RetrievePaymentRequest, types.PaymentsSyncData](
		ctx, c, merchantID, paymentStatus{}, req, action)
	if err != nil {
		return nil, err
	}
	return paymentResponse(data), nil
}
