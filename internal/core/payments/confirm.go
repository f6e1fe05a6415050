package payments

import (
	"context"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/services"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

// paymentConfirm authorizes a created payment with the selected connector.
type paymentConfirm struct{}

func (paymentConfirm) Name() models.Operation { return models.OperationConfirm }

func (paymentConfirm) ValidateRequest(req *models.ConfirmPaymentRequest, merchant *models.MerchantAccount) (ValidateResult, error) {
	return validatePayment(req.PaymentID, merchant)
}

func (paymentConfirm) GetTrackers(ctx context.Context, c *Core, v ValidateResult, req *models.ConfirmPaymentRequest) (*PaymentData[types.Authorize], error) {
	data, err := loadTrackers[types.Authorize](ctx, c, v, models.OperationConfirm)
	if err != nil {
		return nil, err
	}
	if req.ClientSecret != "" && req.ClientSecret != data.Intent.ClientSecret {
		return nil, apierrors.InvalidRequestData("The client_secret provided does not match the client_secret associated with the Payment")
	}
	return data, nil
}

func (paymentConfirm) Domain(ctx context.Context, c *Core, data *PaymentData[types.Authorize], req *models.ConfirmPaymentRequest, merchant *models.MerchantAccount) error {
	customer, err := c.resolveCustomer(ctx, merchant.MerchantID, models.Customer{CustomerID: data.Intent.CustomerID})
	if err != nil {
		return err
	}
	data.Customer = customer

	pm, token, err := c.resolvePaymentMethod(ctx, paymentMethodInput{
		Inline:  req.PaymentMethodData,
		Token:   req.PaymentToken,
		CardCVC: req.CardCVC,
	}, data.Attempt.PaymentToken)
	if err != nil {
		return err
	}
	data.PaymentMethodData = pm
	data.Attempt.PaymentToken = token
	if req.PaymentMethod != "" {
		data.Attempt.PaymentMethod = req.PaymentMethod
	} else if data.Attempt.PaymentMethod == "" && pm.Card != nil {
		data.Attempt.PaymentMethod = models.PaymentMethodCard
	}
	if req.ReturnURL != "" {
		data.Intent.ReturnURL = req.ReturnURL
	}

	connector, err := c.selectConnector(ctx, merchant, req.Connector, data.Attempt.Connector)
	if err != nil {
		return err
	}
	return bindConnector(ctx, c, data, connector)
}

func (paymentConfirm) CallAction(_ *PaymentData[types.Authorize], requested services.CallConnectorAction) services.CallConnectorAction {
	return requested
}

func (paymentConfirm) ConnectorRequest(data *PaymentData[types.Authorize]) (types.PaymentsAuthorizeData, error) {
	req := types.PaymentsAuthorizeData{
		PaymentMethodData: *data.PaymentMethodData,
		Amount:            data.Attempt.Amount,
		Currency:          data.Attempt.Currency,
		CaptureMethod:     data.Attempt.CaptureMethod,
		Confirm:           true,
		Description:       data.Intent.Description,
	}
	if data.Customer != nil {
		req.Email = data.Customer.Email
	}
	return req, nil
}

func (paymentConfirm) UpdateTrackers(ctx context.Context, c *Core, data *PaymentData[types.Authorize], rd types.PaymentsAuthorizeRouterData) error {
	update := models.AttemptConfirmUpdate{
		Connector:          data.Connector,
		PaymentMethod:      data.Attempt.PaymentMethod,
		PaymentToken:       data.Attempt.PaymentToken,
		AuthenticationType: data.Attempt.AuthenticationType,
		CaptureMethod:      data.Attempt.CaptureMethod,
	}
	if rd.ErrorResponse != nil {
		update.Status = models.AttemptStatusFailure
		update.ErrorCode = rd.ErrorResponse.Code
		update.ErrorMessage = rd.ErrorResponse.Message
	} else {
		update.Status = rd.Status
		if update.Status == "" {
			update.Status = models.AttemptStatusPending
		}
		update.ConnectorTransactionID = transactionID(rd.Response)
	}

	attempt, err := c.updateAttempt(ctx, &data.Attempt, update, data.Scheme)
	if err != nil {
		return err
	}
	data.Attempt = *attempt

	if rd.Response != nil {
		if err := saveConnectorResponse(ctx, c, data, rd.Response); err != nil {
			return err
		}
		data.Redirection = rd.Response.RedirectionData
	}

	intent, err := c.updateIntent(ctx, models.OperationConfirm, &data.Intent, &data.Attempt, models.IntentConfirmUpdate{
		Status:          data.Attempt.Status.IntentStatus(),
		ActiveAttemptID: data.Attempt.AttemptID,
		ReturnURL:       data.Intent.ReturnURL,
	}, data.Scheme)
	if err != nil {
		return err
	}
	data.Intent = *intent
	return nil
}

// ConfirmPayment authorizes the payment, running any connector pre-tasks first.
func (c *Core) ConfirmPayment(ctx context.Context, merchantID string, req *models.ConfirmPaymentRequest) (*models.PaymentResponse, error) {
	data, err := RunOperation[types.Authorize, models.ConfirmPaymentRequest, types.PaymentsAuthorizeData](
		ctx, c, merchantID, paymentConfirm{}, req, services.Trigger())
	if err != nil {
		return nil, err
	}
	return paymentResponse(data), nil
}
