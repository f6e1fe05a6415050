// Package trustpay integrates the TrustPay card gateway. Requests are form
// encoded, amounts travel in major units and results carry a numeric status.
package trustpay

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/config"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/services"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

const Name = "trustpay"

const contentType = "application/x-www-form-urlencoded"

// Register installs the TrustPay flows. Void and Session are not offered by
// the gateway and stay unregistered.
func Register(r *services.Registry) {
	services.Register[types.Authorize, types.PaymentsAuthorizeData, types.PaymentsResponseData](r, Name, authorize{})
	services.Register[types.PSync, types.PaymentsSyncData, types.PaymentsResponseData](r, Name, paymentSync{})
	services.Register[types.Capture, types.PaymentsCaptureData, types.PaymentsResponseData](r, Name, capture{})
	services.Register[types.Execute, types.RefundsData, types.RefundsResponseData](r, Name, refundExecute{})
	services.Register[types.RSync, types.RefundsData, types.RefundsResponseData](r, Name, refundSync{})
	r.RegisterWebhook(Name, Webhook{})
	r.RegisterRedirect(Name, Redirect{})
}

type common struct{}

func (common) headers(auth types.ConnectorAuthType) ([]types.Header, error) {
	key, err := apiKey(auth)
	if err != nil {
		return nil, err
	}
	return []types.Header{
		{Name: "Content-Type", Value: contentType},
		{Name: "X-Api-Key", Value: key},
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

type authorize struct{ common }

func (c authorize) GetHeaders(_ context.Context, data types.PaymentsAuthorizeRouterData, _ config.ConnectorParams) ([]types.Header, error) {
	return c.headers(data.ConnectorAuthType)
}

func (authorize) GetURL(_ types.PaymentsAuthorizeRouterData, params config.ConnectorParams) (string, error) {
	return params.BaseURL + "mapi5/Card/PayPopup", nil
}

func (authorize) GetRequestBody(data types.PaymentsAuthorizeRouterData) ([]byte, error) {
	form, err := newPaymentsForm(data)
	if err != nil {
		return nil, err
	}
	return []byte(form.Encode()), nil
}

func (c authorize) BuildRequest(ctx context.Context, data types.PaymentsAuthorizeRouterData, params config.ConnectorParams) (*types.Request, error) {
	return services.ComposeRequest[types.Authorize, types.PaymentsAuthorizeData, types.PaymentsResponseData](ctx, c, types.MethodPost, data, params)
}

func (authorize) HandleResponse(data types.PaymentsAuthorizeRouterData, res *types.Response) (types.PaymentsAuthorizeRouterData, error) {
	var body paymentsResponse
	if err := decode(res.Body, &body); err != nil {
		return data, err
	}
	if body.InstanceID == "" {
		return data, apierrors.MissingField("instance_id")
	}
	resp := types.PaymentsResponseData{ResourceID: types.ConnectorTransactionID(body.InstanceID)}
	data.Status = body.Status.attemptStatus()
	if body.RedirectURL != "" && body.Status == statusPending {
		data.Status = models.AttemptStatusAuthenticationPending
		resp.Redirect = true
		resp.RedirectionData = &types.RedirectForm{Endpoint: body.RedirectURL, Method: types.MethodGet, Form: map[string]string{}}
	}
	data.Response = &resp
	return data, nil
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
	return params.BaseURL + "instance/" + url.PathEscape(id), nil
}

func (paymentSync) GetRequestBody(types.PaymentsSyncRouterData) ([]byte, error) {
	return nil, nil
}

func (c paymentSync) BuildRequest(ctx context.Context, data types.PaymentsSyncRouterData, params config.ConnectorParams) (*types.Request, error) {
	return services.ComposeRequest[types.PSync, types.PaymentsSyncData, types.PaymentsResponseData](ctx, c, types.MethodGet, data, params)
}

func (paymentSync) HandleResponse(data types.PaymentsSyncRouterData, res *types.Response) (types.PaymentsSyncRouterData, error) {
	var body syncResponse
	if err := decode(res.Body, &body); err != nil {
		return data, err
	}
	if body.InstanceID == "" {
		return data, apierrors.MissingField("instance_id")
	}
	if body.Amount != "" {
		if _, err := parseAmount(body.Amount); err != nil {
			return data, apierrors.NewConnectorError(apierrors.ResponseDeserializationFailed, err)
		}
	}
	data.Status = body.Status.attemptStatus()
	data.Response = &types.PaymentsResponseData{ResourceID: types.ConnectorTransactionID(body.InstanceID)}
	return data, nil
}

type capture struct{ common }

func (c capture) GetHeaders(_ context.Context, data types.PaymentsCaptureRouterData, _ config.ConnectorParams) ([]types.Header, error) {
	return c.headers(data.ConnectorAuthType)
}

func (capture) GetURL(data types.PaymentsCaptureRouterData, params config.ConnectorParams) (string, error) {
	if data.Request.ConnectorTransactionID == "" {
		return "", apierrors.NewConnectorError(apierrors.MissingConnectorTransactionID, nil)
	}
	return params.BaseURL + "instance/" + url.PathEscape(data.Request.ConnectorTransactionID) + "/capture", nil
}

func (capture) GetRequestBody(data types.PaymentsCaptureRouterData) ([]byte, error) {
	amount := data.Request.Amount
	if data.Request.AmountToCapture != nil {
		amount = *data.Request.AmountToCapture
	}
	return []byte(newAmountForm(amount, data.Request.Currency, data.Request.ConnectorTransactionID).Encode()), nil
}

func (c capture) BuildRequest(ctx context.Context, data types.PaymentsCaptureRouterData, params config.ConnectorParams) (*types.Request, error) {
	return services.ComposeRequest[types.Capture, types.PaymentsCaptureData, types.PaymentsResponseData](ctx, c, types.MethodPost, data, params)
}

func (capture) HandleResponse(data types.PaymentsCaptureRouterData, res *types.Response) (types.PaymentsCaptureRouterData, error) {
	var body genericResponse
	if err := decode(res.Body, &body); err != nil {
		return data, err
	}
	id := body.InstanceID
	if id == "" {
		id = data.Request.ConnectorTransactionID
	}
	if body.Status == statusSuccess {
		data.Status = models.AttemptStatusCharged
	} else {
		data.Status = models.AttemptStatusCaptureFailed
	}
	data.Response = &types.PaymentsResponseData{ResourceID: types.ConnectorTransactionID(id)}
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
	return params.BaseURL + "instance/" + url.PathEscape(data.Request.ConnectorTransactionID) + "/refund", nil
}

func (refundExecute) GetRequestBody(data types.RefundExecuteRouterData) ([]byte, error) {
	form := newAmountForm(data.Request.RefundAmount, data.Request.Currency, data.Request.ConnectorTransactionID)
	form.Set("reference", data.Request.RefundID)
	return []byte(form.Encode()), nil
}

func (c refundExecute) BuildRequest(ctx context.Context, data types.RefundExecuteRouterData, params config.ConnectorParams) (*types.Request, error) {
	return services.ComposeRequest[types.Execute, types.RefundsData, types.RefundsResponseData](ctx, c, types.MethodPost, data, params)
}

func (refundExecute) HandleResponse(data types.RefundExecuteRouterData, res *types.Response) (types.RefundExecuteRouterData, error) {
	var body genericResponse
	if err := decode(res.Body, &body); err != nil {
		return data, err
	}
	if body.InstanceID == "" {
		return data, apierrors.MissingField("instance_id")
	}
	data.Response = &types.RefundsResponseData{ConnectorRefundID: body.InstanceID, RefundStatus: body.Status.refundStatus()}
	return data, nil
}

type refundSync struct{ common }

func (c refundSync) GetHeaders(_ context.Context, data types.RefundSyncRouterData, _ config.ConnectorParams) ([]types.Header, error) {
	return c.headers(data.ConnectorAuthType)
}

func (refundSync) GetURL(data types.RefundSyncRouterData, params config.ConnectorParams) (string, error) {
	if data.Request.ConnectorRefundID == "" {
		return "", apierrors.NewConnectorError(apierrors.MissingConnectorRefundID, nil)
	}
	return params.BaseURL + "instance/" + url.PathEscape(data.Request.ConnectorRefundID), nil
}

func (refundSync) GetRequestBody(types.RefundSyncRouterData) ([]byte, error) {
	return nil, nil
}

func (c refundSync) BuildRequest(ctx context.Context, data types.RefundSyncRouterData, params config.ConnectorParams) (*types.Request, error) {
	return services.ComposeRequest[types.RSync, types.RefundsData, types.RefundsResponseData](ctx, c, types.MethodGet, data, params)
}

func (refundSync) HandleResponse(data types.RefundSyncRouterData, res *types.Response) (types.RefundSyncRouterData, error) {
	var body syncResponse
	if err := decode(res.Body, &body); err != nil {
		return data, err
	}
	if body.InstanceID == "" {
		return data, apierrors.MissingField("instance_id")
	}
	data.Response = &types.RefundsResponseData{ConnectorRefundID: body.InstanceID, RefundStatus: body.Status.refundStatus()}
	return data, nil
}

// Webhook parses TrustPay payment notifications, which carry the same shape
// as the instance resource.
type Webhook struct{}

func (Webhook) parse(body []byte) (syncResponse, error) {
	var n syncResponse
	if err := json.Unmarshal(body, &n); err != nil {
		return n, apierrors.NewConnectorError(apierrors.ResponseDeserializationFailed, err)
	}
	if n.InstanceID == "" {
		return n, apierrors.MissingField("instance_id")
	}
	return n, nil
}

func (w Webhook) GetWebhookObjectReferenceID(body []byte) (string, error) {
	n, err := w.parse(body)
	if err != nil {
		return "", err
	}
	return n.InstanceID, nil
}

func (w Webhook) GetWebhookEventType(body []byte) (models.WebhookEventType, error) {
	n, err := w.parse(body)
	if err != nil {
		return "", apierrors.NewConnectorError(apierrors.WebhookEventTypeNotFound, err)
	}
	return n.Status.webhookEvent(), nil
}

func (w Webhook) GetWebhookResourceObject(body []byte) ([]byte, error) {
	n, err := w.parse(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(n)
}

// Redirect folds the result TrustPay appends to the return URL when both the
// instance id and a numeric status are present, and re-syncs otherwise.
type Redirect struct{}

func (Redirect) GetFlowType(query url.Values) (services.CallConnectorAction, error) {
	id := query.Get("instance_id")
	raw := query.Get("status")
	if id == "" || raw == "" {
		return services.Trigger(), nil
	}
	status, err := strconv.Atoi(raw)
	if err != nil {
		return services.Trigger(), nil
	}
	body, err := json.Marshal(syncResponse{Status: paymentStatus(status), InstanceID: id})
	if err != nil {
		return services.CallConnectorAction{}, apierrors.NewConnectorError(apierrors.RequestEncodingFailed, err)
	}
	return services.HandleResponse(body), nil
}
