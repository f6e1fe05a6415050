package trustpay

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/config"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/services"
	"github.com/akylbek/payment-system/payment-switch/internal/services/servicestest"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

const baseURL = "https://trustpay.test/"

var auth = types.ConnectorAuthType{Kind: types.HeaderKey, APIKey: "tp-key"}

func newStepContext(transport *servicestest.Transport) services.StepContext {
	registry := services.NewRegistry()
	Register(registry)
	return services.StepContext{
		Connectors: config.Connectors{Name: {BaseURL: baseURL}},
		Transport:  transport,
		Registry:   registry,
	}
}

func TestAuthorize_FormEncodedBody(t *testing.T) {
	transport := servicestest.NewTransport().
		On("POST", "mapi5/Card/PayPopup", 200, `{"status":0,"description":"OK","instanceId":"inst_42"}`)

	data := types.PaymentsAuthorizeRouterData{
		Connector:         Name,
		PaymentID:         "pay_1",
		ConnectorAuthType: auth,
		Request: types.PaymentsAuthorizeData{
			Amount:   1050,
			Currency: "EUR",
			PaymentMethodData: models.PaymentMethodData{Card: &models.Card{
				CardNumber:   "4200000000000000",
				CardExpMonth: "7",
				CardExpYear:  "2031",
				CardCVC:      "123",
			}},
		},
	}

	out, err := services.ExecuteConnectorProcessingStep(context.Background(), newStepContext(transport), data, services.Trigger())
	require.NoError(t, err)

	req := transport.Requests()[0]
	assert.Equal(t, contentType, servicestest.Header(req, "Content-Type"))
	assert.Equal(t, "tp-key", servicestest.Header(req, "X-Api-Key"))

	form, err := url.ParseQuery(string(req.Body))
	require.NoError(t, err)
	assert.Equal(t, "10.50", form.Get("amount"))
	assert.Equal(t, "EUR", form.Get("currency"))
	assert.Equal(t, "07/31", form.Get("exp"))
	assert.Equal(t, "123", form.Get("cvv"))
	assert.Equal(t, defaultRedirectURL, form.Get("redirectUrl"))

	require.NotNil(t, out.Response)
	id, err := out.Response.ResourceID.GetConnectorTransactionID()
	require.NoError(t, err)
	assert.Equal(t, "inst_42", id)
	assert.Equal(t, models.AttemptStatusCharged, out.Status)
}

func TestAuthorize_NonNumericCVC(t *testing.T) {
	data := types.PaymentsAuthorizeRouterData{
		Request: types.PaymentsAuthorizeData{PaymentMethodData: models.PaymentMethodData{Card: &models.Card{CardCVC: "abc"}}},
	}
	_, err := authorize{}.GetRequestBody(data)
	assert.True(t, apierrors.IsConnectorErrorKind(err, apierrors.RequestEncodingFailed))
}

func TestPaymentSync_MissingTransactionIDFailsBeforeCall(t *testing.T) {
	transport := servicestest.NewTransport()
	data := types.PaymentsSyncRouterData{
		Connector:         Name,
		ConnectorAuthType: auth,
		Request:           types.PaymentsSyncData{ConnectorTransactionID: types.ConnectorTransactionID("")},
	}

	_, err := services.ExecuteConnectorProcessingStep(context.Background(), newStepContext(transport), data, services.Trigger())
	require.Error(t, err)
	assert.True(t, apierrors.IsConnectorErrorKind(err, apierrors.MissingConnectorTransactionID))
	assert.Empty(t, transport.Requests())
}

func TestPaymentSync_ResourceIDRoundTrip(t *testing.T) {
	transport := servicestest.NewTransport().
		On("GET", "instance/inst_42", 200, `{"status":1,"instance_id":"inst_42","created":"2023-01-01","amount":"10.50","currency":"EUR"}`)
	data := types.PaymentsSyncRouterData{
		Connector:         Name,
		ConnectorAuthType: auth,
		Request:           types.PaymentsSyncData{ConnectorTransactionID: types.ConnectorTransactionID("inst_42")},
	}

	out, err := services.ExecuteConnectorProcessingStep(context.Background(), newStepContext(transport), data, services.Trigger())
	require.NoError(t, err)

	assert.Equal(t, baseURL+"instance/inst_42", transport.Requests()[0].URL)
	assert.Equal(t, types.MethodGet, transport.Requests()[0].Method)
	assert.Nil(t, transport.Requests()[0].Body)
	require.NotNil(t, out.Response)
	assert.Equal(t, data.Request.ConnectorTransactionID, out.Response.ResourceID)
	assert.Equal(t, models.AttemptStatusPending, out.Status)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status paymentStatus
		want   models.AttemptStatus
	}{
		{statusSuccess, models.AttemptStatusCharged},
		{statusPending, models.AttemptStatusPending},
		{statusExpired, models.AttemptStatusAuthorizationFailed},
		{statusError, models.AttemptStatusFailure},
		{statusServerCallFailed, models.AttemptStatusFailure},
		{statusAbortedByUser, models.AttemptStatusAuthorizationFailed},
		{statusFailure, models.AttemptStatusFailure},
		{paymentStatus(-99), models.AttemptStatusFailure},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.attemptStatus(), "status %d", tt.status)
	}

	assert.Equal(t, models.RefundStatusSuccess, statusSuccess.refundStatus())
	assert.Equal(t, models.RefundStatusPending, statusPending.refundStatus())
	assert.Equal(t, models.RefundStatusFailure, statusError.refundStatus())
}

func TestAmounts(t *testing.T) {
	assert.Equal(t, "0.05", formatAmount(5))
	assert.Equal(t, "50.00", formatAmount(5000))

	minor, err := parseAmount("10.50")
	require.NoError(t, err)
	assert.Equal(t, int64(1050), minor)

	_, err = parseAmount("ten")
	assert.Error(t, err)
}

func TestRefund_RequiresInstanceID(t *testing.T) {
	data := types.RefundExecuteRouterData{Request: types.RefundsData{ConnectorTransactionID: "inst_42"}}

	_, err := refundExecute{}.HandleResponse(data, &types.Response{StatusCode: 200, Body: []byte(`{"status":0}`)})
	var ce *apierrors.ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, apierrors.MissingRequiredField, ce.Kind)
	assert.Equal(t, "instanceId", ce.Field)

	out, err := refundExecute{}.HandleResponse(data, &types.Response{StatusCode: 200, Body: []byte(`{"status":1,"instance_id":"ref_inst"}`)})
	require.NoError(t, err)
	assert.Equal(t, "ref_inst", out.Response.ConnectorRefundID)
	assert.Equal(t, models.RefundStatusPending, out.Response.RefundStatus)
}

func TestCapture(t *testing.T) {
	transport := servicestest.NewTransport().
		On("POST", "instance/inst_42/capture", 200, `{"status":0,"instance_id":"inst_42"}`)
	data := types.PaymentsCaptureRouterData{
		Connector:         Name,
		ConnectorAuthType: auth,
		Request:           types.PaymentsCaptureData{Amount: 1050, Currency: "EUR", ConnectorTransactionID: "inst_42"},
	}

	out, err := services.ExecuteConnectorProcessingStep(context.Background(), newStepContext(transport), data, services.Trigger())
	require.NoError(t, err)
	assert.Equal(t, models.AttemptStatusCharged, out.Status)

	form, err := url.ParseQuery(string(transport.Requests()[0].Body))
	require.NoError(t, err)
	assert.Equal(t, "10.50", form.Get("amount"))
	assert.Equal(t, "inst_42", form.Get("instance_id"))
}

func TestVoidNotImplemented(t *testing.T) {
	data := types.PaymentsCancelRouterData{Connector: Name, ConnectorAuthType: auth}
	_, err := services.ExecuteConnectorProcessingStep(context.Background(), newStepContext(servicestest.NewTransport()), data, services.Trigger())
	assert.True(t, apierrors.IsConnectorErrorKind(err, apierrors.NotImplemented))
}

func TestErrorResponse(t *testing.T) {
	body := `{"status":-2,"description":"Validation failed","errors":[{"code":1101,"description":"Invalid amount"}]}`
	out, err := common{}.GetErrorResponse(&types.Response{StatusCode: 400, Body: []byte(body)})
	require.NoError(t, err)
	assert.Equal(t, "1101", out.Code)
	assert.Equal(t, "Validation failed", out.Message)
	assert.Equal(t, "Invalid amount", out.Reason)
	assert.Equal(t, 400, out.StatusCode)
}

func TestWebhook(t *testing.T) {
	body := []byte(`{"status":0,"instance_id":"inst_42","amount":"10.50","currency":"EUR"}`)

	id, err := Webhook{}.GetWebhookObjectReferenceID(body)
	require.NoError(t, err)
	assert.Equal(t, "inst_42", id)

	event, err := Webhook{}.GetWebhookEventType(body)
	require.NoError(t, err)
	assert.Equal(t, models.WebhookEventPaymentSucceeded, event)

	resource, err := Webhook{}.GetWebhookResourceObject(body)
	require.NoError(t, err)
	out, err := paymentSync{}.HandleResponse(types.PaymentsSyncRouterData{}, &types.Response{StatusCode: 200, Body: resource})
	require.NoError(t, err)
	assert.Equal(t, models.AttemptStatusCharged, out.Status)

	_, err = Webhook{}.GetWebhookEventType([]byte(`{"status":0}`))
	assert.True(t, apierrors.IsConnectorErrorKind(err, apierrors.WebhookEventTypeNotFound))
}

func TestRedirect(t *testing.T) {
	action, err := Redirect{}.GetFlowType(url.Values{"instance_id": {"inst_42"}, "status": {"-4"}})
	require.NoError(t, err)
	require.Equal(t, services.CallModeHandleResponse, action.Mode)

	out, err := paymentSync{}.HandleResponse(types.PaymentsSyncRouterData{}, &types.Response{StatusCode: 200, Body: action.Body})
	require.NoError(t, err)
	assert.Equal(t, models.AttemptStatusAuthorizationFailed, out.Status)

	action, err = Redirect{}.GetFlowType(url.Values{"instance_id": {"inst_42"}})
	require.NoError(t, err)
	assert.Equal(t, services.CallModeTrigger, action.Mode)
}
