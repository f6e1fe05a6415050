// Package sagepay integrates the Sagepay (Opayo) Pi REST API. Card payments
// need a merchant session key and a card identifier before the transaction
// itself can be registered, so Authorize runs a two step pre-task chain.
package sagepay

import (
	"context"
	"fmt"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/config"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/services"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

const Name = "sagepay"

// Register installs every Sagepay flow into r. Session and webhooks are left
// unregistered and resolve to NotImplemented.
func Register(r *services.Registry) {
	services.Register[types.PreAuthorize, types.PreAuthorizeData, types.PaymentsResponseData](r, Name, preAuthorize{})
	services.Register[types.CardTokenize, types.CardTokenizeData, types.PaymentsResponseData](r, Name, cardTokenize{})
	services.Register[types.Authorize, types.PaymentsAuthorizeData, types.PaymentsResponseData](r, Name, authorize{})
	services.Register[types.PSync, types.PaymentsSyncData, types.PaymentsResponseData](r, Name, paymentSync{})
	services.Register[types.Capture, types.PaymentsCaptureData, types.PaymentsResponseData](r, Name, capture{})
	services.Register[types.Void, types.PaymentsCancelData, types.PaymentsResponseData](r, Name, void{})
	services.Register[types.Execute, types.RefundsData, types.RefundsResponseData](r, Name, refundExecute{})
	services.Register[types.RSync, types.RefundsData, types.RefundsResponseData](r, Name, refundSync{})
}

type common struct{}

func (common) headers(auth types.ConnectorAuthType) ([]types.Header, error) {
	a, err := newAuthType(auth)
	if err != nil {
		return nil, err
	}
	return []types.Header{
		{Name: "Content-Type", Value: "application/json"},
		{Name: "Authorization", Value: "Basic " + a.apiKey},
	}, nil
}

func (common) GetErrorResponse(res *types.Response) (*types.ErrorResponse, error) {
	var body errorResponse
	if err := decode(res.Body, &body); err != nil {
		return nil, err
	}
	out := body.toErrorResponse()
	out.StatusCode = res.StatusCode
	return out, nil
}

// preAuthorize obtains a merchant session key.
type preAuthorize struct{ common }

func (c preAuthorize) GetHeaders(_ context.Context, data types.PaymentsPreAuthorizeRouterData, _ config.ConnectorParams) ([]types.Header, error) {
	return c.headers(data.ConnectorAuthType)
}

func (preAuthorize) GetURL(_ types.PaymentsPreAuthorizeRouterData, params config.ConnectorParams) (string, error) {
	return params.BaseURL + "v1/merchant-session-keys", nil
}

func (preAuthorize) GetRequestBody(data types.PaymentsPreAuthorizeRouterData) ([]byte, error) {
	auth, err := newAuthType(data.ConnectorAuthType)
	if err != nil {
		return nil, err
	}
	return encode(sessionRequest{VendorName: auth.vendorName})
}

func (c preAuthorize) BuildRequest(ctx context.Context, data types.PaymentsPreAuthorizeRouterData, params config.ConnectorParams) (*types.Request, error) {
	return services.ComposeRequest[types.PreAuthorize, types.PreAuthorizeData, types.PaymentsResponseData](ctx, c, types.MethodPost, data, params)
}

func (preAuthorize) HandleResponse(data types.PaymentsPreAuthorizeRouterData, res *types.Response) (types.PaymentsPreAuthorizeRouterData, error) {
	var body sessionResponse
	if err := decode(res.Body, &body); err != nil {
		return data, err
	}
	if body.MerchantSessionKey == "" {
		return data, apierrors.MissingField("merchantSessionKey")
	}
	data.SessionToken = body.MerchantSessionKey
	data.Response = &types.PaymentsResponseData{ResourceID: types.ResponseID{Kind: types.NoResponseID}}
	return data, nil
}

// cardTokenize exchanges raw card details for a card identifier. The call is
// authorized with the session key, not the integration key.
type cardTokenize struct{ common }

func (cardTokenize) GetHeaders(_ context.Context, data types.PaymentsCardTokenizeRouterData, _ config.ConnectorParams) ([]types.Header, error) {
	token := data.Request.SessionToken
	if token == "" {
		token = data.SessionToken
	}
	if token == "" {
		return nil, apierrors.MissingField("merchantSessionKey")
	}
	return []types.Header{
		{Name: "Content-Type", Value: "application/json"},
		{Name: "Authorization", Value: "Bearer " + token},
	}, nil
}

func (cardTokenize) GetURL(_ types.PaymentsCardTokenizeRouterData, params config.ConnectorParams) (string, error) {
	return params.BaseURL + "v1/card-identifiers", nil
}

func (cardTokenize) GetRequestBody(data types.PaymentsCardTokenizeRouterData) ([]byte, error) {
	req, err := newCardTokenizeRequest(data)
	if err != nil {
		return nil, err
	}
	return encode(req)
}

func (c cardTokenize) BuildRequest(ctx context.Context, data types.PaymentsCardTokenizeRouterData, params config.ConnectorParams) (*types.Request, error) {
	return services.ComposeRequest[types.CardTokenize, types.CardTokenizeData, types.PaymentsResponseData](ctx, c, types.MethodPost, data, params)
}

func (cardTokenize) HandleResponse(data types.PaymentsCardTokenizeRouterData, res *types.Response) (types.PaymentsCardTokenizeRouterData, error) {
	var body cardTokenizeResponse
	if err := decode(res.Body, &body); err != nil {
		return data, err
	}
	if body.CardIdentifier == "" {
		return data, apierrors.MissingField("cardIdentifier")
	}
	data.CardToken = body.CardIdentifier
	data.Response = &types.PaymentsResponseData{ResourceID: types.ResponseID{Kind: types.NoResponseID}}
	return data, nil
}

type authorize struct{ common }

// PreTasks obtains a session key and then tokenizes the card with it. The
// card identifier is only valid for the session key it was issued under.
func (authorize) PreTasks(data types.PaymentsAuthorizeRouterData) []services.PreTask {
	return []services.PreTask{
		{
			Name: types.PreAuthorize{}.FlowName(),
			Run: func(ctx context.Context, sc services.StepContext, carry types.CarryOver) (types.CarryOver, error) {
				out, err := services.ExecuteSubFlow[types.PreAuthorize, types.PreAuthorizeData, types.PaymentsResponseData](
					ctx, sc, data, carry, types.PreAuthorizeData{
						Amount:   data.Request.Amount,
						Currency: data.Request.Currency,
					})
				if err != nil {
					return carry, err
				}
				carry.SessionToken = out.SessionToken
				return carry, nil
			},
		},
		{
			Name: types.CardTokenize{}.FlowName(),
			Run: func(ctx context.Context, sc services.StepContext, carry types.CarryOver) (types.CarryOver, error) {
				card := data.Request.PaymentMethodData.Card
				if card == nil {
					return carry, apierrors.MissingField("payment_method_data.card")
				}
				out, err := services.ExecuteSubFlow[types.CardTokenize, types.CardTokenizeData, types.PaymentsResponseData](
					ctx, sc, data, carry, types.CardTokenizeData{
						Card:         *card,
						SessionToken: carry.SessionToken,
					})
				if err != nil {
					return carry, err
				}
				carry.CardToken = out.CardToken
				return carry, nil
			},
		},
	}
}

func (c authorize) GetHeaders(_ context.Context, data types.PaymentsAuthorizeRouterData, _ config.ConnectorParams) ([]types.Header, error) {
	return c.headers(data.ConnectorAuthType)
}

func (authorize) GetURL(_ types.PaymentsAuthorizeRouterData, params config.ConnectorParams) (string, error) {
	return params.BaseURL + "v1/transactions", nil
}

func (authorize) GetRequestBody(data types.PaymentsAuthorizeRouterData) ([]byte, error) {
	req, err := newPaymentsRequest(data)
	if err != nil {
		return nil, err
	}
	return encode(req)
}

func (c authorize) BuildRequest(ctx context.Context, data types.PaymentsAuthorizeRouterData, params config.ConnectorParams) (*types.Request, error) {
	return services.ComposeRequest[types.Authorize, types.PaymentsAuthorizeData, types.PaymentsResponseData](ctx, c, types.MethodPost, data, params)
}

func (authorize) HandleResponse(data types.PaymentsAuthorizeRouterData, res *types.Response) (types.PaymentsAuthorizeRouterData, error) {
	return foldTransaction(data, res)
}

type paymentSync struct{ common }

func (c paymentSync) GetHeaders(_ context.Context, data types.PaymentsSyncRouterData, _ config.ConnectorParams) ([]types.Header, error) {
	return c.headers(data.ConnectorAuthType)
}

func (paymentSync) GetURL(data types.PaymentsSyncRouterData, params config.ConnectorParams) (string, error) {
	id, err := data.Request.ConnectorTransactionID.GetConnectorTransactionID()
	if err != nil {
		return "", err
	}
	return params.BaseURL + "v1/transactions/" + id, nil
}

func (paymentSync) GetRequestBody(types.PaymentsSyncRouterData) ([]byte, error) {
	return nil, nil
}

func (c paymentSync) BuildRequest(ctx context.Context, data types.PaymentsSyncRouterData, params config.ConnectorParams) (*types.Request, error) {
	return services.ComposeRequest[types.PSync, types.PaymentsSyncData, types.PaymentsResponseData](ctx, c, types.MethodGet, data, params)
}

func (paymentSync) HandleResponse(data types.PaymentsSyncRouterData, res *types.Response) (types.PaymentsSyncRouterData, error) {
	return foldTransaction(data, res)
}

func foldTransaction[F types.Flow, Req any](data types.RouterData[F, Req, types.PaymentsResponseData], res *types.Response) (types.RouterData[F, Req, types.PaymentsResponseData], error) {
	var body transactionResponse
	if err := decode(res.Body, &body); err != nil {
		return data, err
	}
	if body.TransactionID == "" {
		return data, apierrors.MissingField("transactionId")
	}
	resp := body.paymentsResponse()
	data.Status = body.attemptStatus()
	data.Response = &resp
	return data, nil
}

// capture releases a Deferred transaction.
type capture struct{ common }

func (c capture) GetHeaders(_ context.Context, data types.PaymentsCaptureRouterData, _ config.ConnectorParams) ([]types.Header, error) {
	return c.headers(data.ConnectorAuthType)
}

func (capture) GetURL(data types.PaymentsCaptureRouterData, params config.ConnectorParams) (string, error) {
	if data.Request.ConnectorTransactionID == "" {
		return "", apierrors.NewConnectorError(apierrors.MissingConnectorTransactionID, nil)
	}
	return params.BaseURL + "v1/transactions/" + data.Request.ConnectorTransactionID + "/instructions", nil
}

func (capture) GetRequestBody(data types.PaymentsCaptureRouterData) ([]byte, error) {
	amount := data.Request.Amount
	if data.Request.AmountToCapture != nil {
		amount = *data.Request.AmountToCapture
	}
	return encode(instructionRequest{InstructionType: "release", Amount: amount})
}

func (c capture) BuildRequest(ctx context.Context, data types.PaymentsCaptureRouterData, params config.ConnectorParams) (*types.Request, error) {
	return services.ComposeRequest[types.Capture, types.PaymentsCaptureData, types.PaymentsResponseData](ctx, c, types.MethodPost, data, params)
}

func (capture) HandleResponse(data types.PaymentsCaptureRouterData, res *types.Response) (types.PaymentsCaptureRouterData, error) {
	return foldInstruction(data, res, data.Request.ConnectorTransactionID)
}

// void aborts a Deferred transaction that was never released.
type void struct{ common }

func (c void) GetHeaders(_ context.Context, data types.PaymentsCancelRouterData, _ config.ConnectorParams) ([]types.Header, error) {
	return c.headers(data.ConnectorAuthType)
}

func (void) GetURL(data types.PaymentsCancelRouterData, params config.ConnectorParams) (string, error) {
	if data.Request.ConnectorTransactionID == "" {
		return "", apierrors.NewConnectorError(apierrors.MissingConnectorTransactionID, nil)
	}
	return params.BaseURL + "v1/transactions/" + data.Request.ConnectorTransactionID + "/instructions", nil
}

func (void) GetRequestBody(types.PaymentsCancelRouterData) ([]byte, error) {
	return encode(instructionRequest{InstructionType: "abort"})
}

func (c void) BuildRequest(ctx context.Context, data types.PaymentsCancelRouterData, params config.ConnectorParams) (*types.Request, error) {
	return services.ComposeRequest[types.Void, types.PaymentsCancelData, types.PaymentsResponseData](ctx, c, types.MethodPost, data, params)
}

func (void) HandleResponse(data types.PaymentsCancelRouterData, res *types.Response) (types.PaymentsCancelRouterData, error) {
	return foldInstruction(data, res, data.Request.ConnectorTransactionID)
}

func foldInstruction[F types.Flow, Req any](data types.RouterData[F, Req, types.PaymentsResponseData], res *types.Response, txnID string) (types.RouterData[F, Req, types.PaymentsResponseData], error) {
	var body instructionResponse
	if err := decode(res.Body, &body); err != nil {
		return data, err
	}
	switch body.InstructionType {
	case "release":
		data.Status = models.AttemptStatusCharged
	case "abort":
		data.Status = models.AttemptStatusVoided
	default:
		return data, apierrors.NewConnectorError(apierrors.ResponseHandlingFailed, fmt.Errorf("unexpected instruction %q", body.InstructionType))
	}
	data.Response = &types.PaymentsResponseData{ResourceID: types.ConnectorTransactionID(txnID)}
	return data, nil
}

type refundExecute struct{ common }

func (c refundExecute) GetHeaders(_ context.Context, data types.RefundExecuteRouterData, _ config.ConnectorParams) ([]types.Header, error) {
	return c.headers(data.ConnectorAuthType)
}

func (refundExecute) GetURL(data types.RefundExecuteRouterData, params config.ConnectorParams) (string, error) {
	if data.Request.ConnectorTransactionID == "" {
		return "", apierrors.NewConnectorError(apierrors.MissingConnectorTransactionID, nil)
	}
	return params.BaseURL + "v1/transactions", nil
}

func (refundExecute) GetRequestBody(data types.RefundExecuteRouterData) ([]byte, error) {
	return encode(newRefundRequest(data))
}

func (c refundExecute) BuildRequest(ctx context.Context, data types.RefundExecuteRouterData, params config.ConnectorParams) (*types.Request, error) {
	return services.ComposeRequest[types.Execute, types.RefundsData, types.RefundsResponseData](ctx, c, types.MethodPost, data, params)
}

func (refundExecute) HandleResponse(data types.RefundExecuteRouterData, res *types.Response) (types.RefundExecuteRouterData, error) {
	return foldRefund(data, res)
}

type refundSync struct{ common }

func (c refundSync) GetHeaders(_ context.Context, data types.RefundSyncRouterData, _ config.ConnectorParams) ([]types.Header, error) {
	return c.headers(data.ConnectorAuthType)
}

func (refundSync) GetURL(data types.RefundSyncRouterData, params config.ConnectorParams) (string, error) {
	if data.Request.ConnectorRefundID == "" {
		return "", apierrors.NewConnectorError(apierrors.MissingConnectorRefundID, nil)
	}
	return params.BaseURL + "v1/transactions/" + data.Request.ConnectorRefundID, nil
}

func (refundSync) GetRequestBody(types.RefundSyncRouterData) ([]byte, error) {
	return nil, nil
}

func (c refundSync) BuildRequest(ctx context.Context, data types.RefundSyncRouterData, params config.ConnectorParams) (*types.Request, error) {
	return services.ComposeRequest[types.RSync, types.RefundsData, types.RefundsResponseData](ctx, c, types.MethodGet, data, params)
}

func (refundSync) HandleResponse(data types.RefundSyncRouterData, res *types.Response) (types.RefundSyncRouterData, error) {
	return foldRefund(data, res)
}

func foldRefund[F types.Flow](data types.RouterData[F, types.RefundsData, types.RefundsResponseData], res *types.Response) (types.RouterData[F, types.RefundsData, types.RefundsResponseData], error) {
	var body transactionResponse
	if err := decode(res.Body, &body); err != nil {
		return data, err
	}
	if body.TransactionID == "" {
		return data, apierrors.MissingField("transactionId")
	}
	data.Response = &types.RefundsResponseData{
		ConnectorRefundID: body.TransactionID,
		RefundStatus:      body.refundStatus(),
	}
	return data, nil
}
