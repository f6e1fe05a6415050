package payments

import (
	"context"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/services"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

type paymentCapture struct{}

func (paymentCapture) Name() models.Operation { return models.OperationCapture }

func (paymentCapture) ValidateRequest(req *models.CapturePaymentRequest, merchant *models.MerchantAccount) (ValidateResult, error) {
	if req.AmountToCapture != nil && *req.AmountToCapture <= 0 {
		return ValidateResult{}, apierrors.InvalidDataValue("amount_to_capture")
	}
	return validatePayment(req.PaymentID, merchant)
}

func (paymentCapture) GetTrackers(ctx context.Context, c *Core, v ValidateResult, req *models.CapturePaymentRequest) (*PaymentData[types.Capture], error) {
	data, err := loadTrackers[types.Capture](ctx, c, v, models.OperationCapture)
	if err != nil {
		return nil, err
	}
	if req.AmountToCapture != nil && *req.AmountToCapture > data.Attempt.Amount {
		return nil, apierrors.InvalidRequestData("amount_to_capture is greater than the authorized amount")
	}
	data.AmountToCapture = req.AmountToCapture
	return data, nil
}

func (paymentCapture) Domain(ctx context.Context, c *Core, data *PaymentData[types.Capture], _ *models.CapturePaymentRequest, _ *models.MerchantAccount) error {
	return boundConnector(ctx, c, data)
}

func (paymentCapture) CallAction(_ *PaymentData[types.Capture], requested services.CallConnectorAction) services.CallConnectorAction {
	return requested
}

func (paymentCapture) ConnectorRequest(data *PaymentData[types.Capture]) (types.PaymentsCaptureData, error) {
	return types.PaymentsCaptureData{
		AmountToCapture:        data.AmountToCapture,
		Amount:                 data.Attempt.Amount,
		Currency:               data.Attempt.Currency,
		ConnectorTransactionID: data.Attempt.ConnectorTransactionID,
	}, nil
}

func (paymentCapture) UpdateTrackers(ctx context.Context, c *Core, data *PaymentData[types.Capture], rd types.PaymentsCaptureRouterData) error {
	if rd.ErrorResponse != nil {
		failed := models.AttemptStatusCaptureFailed
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

	attempt, err := c.updateAttempt(ctx, &data.Attempt, models.AttemptResponseUpdate{
		Status:                 rd.Status,
		ConnectorTransactionID: transactionID(rd.Response),
		AmountToCapture:        data.AmountToCapture,
	}, data.Scheme)
	if err != nil {
		return err
	}
	data.Attempt = *attempt

	var captured *int64
	if data.Attempt.Status == models.AttemptStatusCharged {
		amount := data.Attempt.Amount
		if data.AmountToCapture != nil {
			amount = *data.AmountToCapture
		}
		captured = &amount
	}
	return syncIntent(ctx, c, models.OperationCapture, data, captured)
}

// CapturePayment captures an authorized payment, in full unless
// amount_to_capture says otherwise.
func (c *Core) CapturePayment(ctx context.Context, merchantID string, req *models.CapturePaymentRequest) (*models.PaymentResponse, error) {
	data, err := RunOperation[types.Capture, models.CapturePaymentRequest, types.PaymentsCaptureData](
		ctx, c, merchantID, paymentCapture{}, req, services.Trigger())
	if err != nil {
		return nil, err
	}
	return paymentResponse(data), nil
}
