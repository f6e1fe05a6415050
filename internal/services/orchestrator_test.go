package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/config"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

const testConnector = "dummy"

type fakeTransport struct {
	mu        sync.Mutex
	requests  []*types.Request
	responses map[string]*types.Response
	err       error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: make(map[string]*types.Response)}
}

func (f *fakeTransport) on(path string, status int, body string) {
	f.responses[path] = &types.Response{StatusCode: status, Body: []byte(body)}
}

func (f *fakeTransport) Send(_ context.Context, _ string, req *types.Request) (*types.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	for path, res := range f.responses {
		if strings.HasSuffix(req.URL, path) {
			return res, nil
		}
	}
	return &types.Response{StatusCode: 404, Body: []byte(`{"code":"not_found","message":"no route"}`)}, nil
}

func (f *fakeTransport) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, strings.TrimPrefix(r.URL, "http://dummy.test/"))
	}
	return out
}

type jsonIntegration[F types.Flow, Req any] struct {
	path string
	fold func(d types.RouterData[F, Req, types.PaymentsResponseData], body map[string]string) types.RouterData[F, Req, types.PaymentsResponseData]
}

func (j jsonIntegration[F, Req]) GetHeaders(context.Context, types.RouterData[F, Req, types.PaymentsResponseData], config.ConnectorParams) ([]types.Header, error) {
	return []types.Header{{Name: "Content-Type", Value: "application/json"}}, nil
}

func (j jsonIntegration[F, Req]) GetURL(_ types.RouterData[F, Req, types.PaymentsResponseData], params config.ConnectorParams) (string, error) {
	return params.BaseURL + j.path, nil
}

func (j jsonIntegration[F, Req]) GetRequestBody(d types.RouterData[F, Req, types.PaymentsResponseData]) ([]byte, error) {
	return json.Marshal(map[string]string{"session": d.SessionToken, "card": d.CardToken})
}

func (j jsonIntegration[F, Req]) BuildRequest(ctx context.Context, d types.RouterData[F, Req, types.PaymentsResponseData], params config.ConnectorParams) (*types.Request, error) {
	return ComposeRequest[F, Req, types.PaymentsResponseData](ctx, j, types.MethodPost, d, params)
}

func (j jsonIntegration[F, Req]) HandleResponse(d types.RouterData[F, Req, types.PaymentsResponseData], res *types.Response) (types.RouterData[F, Req, types.PaymentsResponseData], error) {
	var body map[string]string
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return d, apierrors.NewConnectorError(apierrors.ResponseDeserializationFailed, err)
	}
	return j.fold(d, body), nil
}

func (j jsonIntegration[F, Req]) GetErrorResponse(res *types.Response) (*types.ErrorResponse, error) {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return nil, apierrors.NewConnectorError(apierrors.ResponseDeserializationFailed, err)
	}
	return &types.ErrorResponse{Code: body.Code, Message: body.Message}, nil
}

type chainedAuthorize struct {
	jsonIntegration[types.Authorize, types.PaymentsAuthorizeData]
}

func (a chainedAuthorize) PreTasks(data types.PaymentsAuthorizeRouterData) []PreTask {
	return []PreTask{
		{
			Name: "PreAuthorize",
			Run: func(ctx context.Context, sc StepContext, carry types.CarryOver) (types.CarryOver, error) {
				out, err := ExecuteSubFlow[types.PreAuthorize, types.PreAuthorizeData, types.PaymentsResponseData](
					ctx, sc, data, carry, types.PreAuthorizeData{Amount: data.Request.Amount})
				if err != nil {
					return carry, err
				}
				carry.SessionToken = out.SessionToken
				return carry, nil
			},
		},
		{
			Name: "CardTokenize",
			Run: func(ctx context.Context, sc StepContext, carry types.CarryOver) (types.CarryOver, error) {
				out, err := ExecuteSubFlow[types.CardTokenize, types.CardTokenizeData, types.PaymentsResponseData](
					ctx, sc, data, carry, types.CardTokenizeData{SessionToken: carry.SessionToken})
				if err != nil {
					return carry, err
				}
				carry.CardToken = out.CardToken
				return carry, nil
			},
		},
	}
}

func newTestContext(t *testing.T, transport *fakeTransport) StepContext {
	t.Helper()

	registry := NewRegistry()
	Register[types.PreAuthorize, types.PreAuthorizeData, types.PaymentsResponseData](registry, testConnector,
		jsonIntegration[types.PreAuthorize, types.PreAuthorizeData]{
			path: "session",
			fold: func(d types.PaymentsPreAuthorizeRouterData, body map[string]string) types.PaymentsPreAuthorizeRouterData {
				d.SessionToken = body["token"]
				d.Response = &types.PaymentsResponseData{}
				return d
			},
		})
	Register[types.CardTokenize, types.CardTokenizeData, types.PaymentsResponseData](registry, testConnector,
		jsonIntegration[types.CardTokenize, types.CardTokenizeData]{
			path: "card",
			fold: func(d types.PaymentsCardTokenizeRouterData, body map[string]string) types.PaymentsCardTokenizeRouterData {
				d.CardToken = body["token"]
				d.Response = &types.PaymentsResponseData{}
				return d
			},
		})
	Register[types.Authorize, types.PaymentsAuthorizeData, types.PaymentsResponseData](registry, testConnector,
		chainedAuthorize{jsonIntegration[types.Authorize, types.PaymentsAuthorizeData]{
			path: "pay",
			fold: func(d types.PaymentsAuthorizeRouterData, body map[string]string) types.PaymentsAuthorizeRouterData {
				d.Response = &types.PaymentsResponseData{ResourceID: types.ConnectorTransactionID(body["id"])}
				return d
			},
		}})

	return StepContext{
		Connectors: config.Connectors{testConnector: {BaseURL: "http://dummy.test/"}},
		Transport:  transport,
		Registry:   registry,
	}
}

func authorizeData() types.PaymentsAuthorizeRouterData {
	return types.PaymentsAuthorizeRouterData{
		MerchantID: "merchant_1",
		Connector:  testConnector,
		PaymentID:  "pay_1",
		AttemptID:  "pay_1_1",
		Request:    types.PaymentsAuthorizeData{Amount: 5000, Currency: "USD"},
	}
}

func TestExecute_PreTasksRunInOrderAndCarryTokens(t *testing.T) {
	transport := newFakeTransport()
	transport.on("session", 200, `{"token":"sk_123"}`)
	transport.on("card", 200, `{"token":"ci_456"}`)
	transport.on("pay", 200, `{"id":"txn_789"}`)
	sc := newTestContext(t, transport)

	out, err := ExecuteConnectorProcessingStep(context.Background(), sc, authorizeData(), Trigger())
	require.NoError(t, err)

	assert.Equal(t, []string{"session", "card", "pay"}, transport.paths())
	assert.Contains(t, string(transport.requests[1].Body), "sk_123")
	assert.Contains(t, string(transport.requests[2].Body), "ci_456")
	assert.Contains(t, string(transport.requests[2].Body), "sk_123")

	require.NotNil(t, out.Response)
	assert.Equal(t, types.ConnectorTransactionID("txn_789"), out.Response.ResourceID)
	assert.Equal(t, "ci_456", out.CardToken)
	assert.Equal(t, 200, out.HTTPCode)
	assert.Nil(t, out.ErrorResponse)
}

func TestExecute_PreTaskFailureStopsChain(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*fakeTransport)
		wantPaths []string
		wantStep  string
	}{
		{
			name: "first step rejected",
			setup: func(f *fakeTransport) {
				f.on("session", 401, `{"code":"auth","message":"bad vendor"}`)
			},
			wantPaths: []string{"session"},
			wantStep:  "PreAuthorize",
		},
		{
			name: "second step malformed",
			setup: func(f *fakeTransport) {
				f.on("session", 200, `{"token":"sk_123"}`)
				f.on("card", 200, `not json`)
			},
			wantPaths: []string{"session", "card"},
			wantStep:  "CardTokenize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newFakeTransport()
			transport.on("pay", 200, `{"id":"txn_789"}`)
			tt.setup(transport)
			sc := newTestContext(t, transport)

			_, err := ExecuteConnectorProcessingStep(context.Background(), sc, authorizeData(), Trigger())
			require.Error(t, err)

			assert.Equal(t, tt.wantPaths, transport.paths())

			var ce *apierrors.ConnectorError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.wantStep, ce.Step)
			assert.Equal(t, testConnector, ce.Connector)
			assert.Contains(t, err.Error(), tt.wantStep)
		})
	}
}

func TestExecute_HandleResponseModeSkipsTransport(t *testing.T) {
	transport := newFakeTransport()
	sc := newTestContext(t, transport)

	out, err := ExecuteConnectorProcessingStep(context.Background(), sc, authorizeData(), HandleResponse([]byte(`{"id":"txn_webhook"}`)))
	require.NoError(t, err)

	assert.Empty(t, transport.paths())
	require.NotNil(t, out.Response)
	assert.Equal(t, types.ConnectorTransactionID("txn_webhook"), out.Response.ResourceID)
}

func TestExecute_AvoidModeLeavesDataUntouched(t *testing.T) {
	transport := newFakeTransport()
	sc := newTestContext(t, transport)

	in := authorizeData()
	out, err := ExecuteConnectorProcessingStep(context.Background(), sc, in, Avoid())
	require.NoError(t, err)

	assert.Empty(t, transport.paths())
	assert.Equal(t, in, out)
}

func TestExecute_ErrorResponseIsNotAnError(t *testing.T) {
	transport := newFakeTransport()
	transport.on("session", 200, `{"token":"sk_123"}`)
	transport.on("card", 200, `{"token":"ci_456"}`)
	transport.on("pay", 402, `{"code":"card_declined","message":"Declined"}`)
	sc := newTestContext(t, transport)

	out, err := ExecuteConnectorProcessingStep(context.Background(), sc, authorizeData(), Trigger())
	require.NoError(t, err)

	assert.Nil(t, out.Response)
	require.NotNil(t, out.ErrorResponse)
	assert.Equal(t, "card_declined", out.ErrorResponse.Code)
	assert.Equal(t, 402, out.ErrorResponse.StatusCode)
}

func TestExecute_TransportFailure(t *testing.T) {
	transport := newFakeTransport()
	transport.err = errors.New("connection refused")
	sc := newTestContext(t, transport)

	_, err := ExecuteConnectorProcessingStep(context.Background(), sc, authorizeData(), Trigger())
	require.Error(t, err)
	assert.Len(t, transport.paths(), 1)
	assert.True(t, apierrors.IsConnectorErrorKind(err, apierrors.ProcessingStepFailed))
}

func TestExecute_UnregisteredFlowIsNotImplemented(t *testing.T) {
	sc := newTestContext(t, newFakeTransport())

	data := types.PaymentsSessionRouterData{Connector: testConnector}
	_, err := ExecuteConnectorProcessingStep(context.Background(), sc, data, Trigger())
	require.Error(t, err)

	assert.True(t, apierrors.IsConnectorErrorKind(err, apierrors.NotImplemented))
	apiErr := apierrors.From(err)
	assert.Equal(t, "IR_00", apiErr.Code)
	assert.Equal(t, "Session", apiErr.Reason)
}

func TestExecute_UnknownConnector(t *testing.T) {
	sc := newTestContext(t, newFakeTransport())

	data := authorizeData()
	data.Connector = "nope"
	_, err := ExecuteConnectorProcessingStep(context.Background(), sc, data, Trigger())

	apiErr, ok := apierrors.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "IR_07", apiErr.Code)
}

func TestExecute_UnconfiguredConnector(t *testing.T) {
	transport := newFakeTransport()
	sc := newTestContext(t, transport)
	sc.Connectors = config.Connectors{}

	_, err := ExecuteConnectorProcessingStep(context.Background(), sc, authorizeData(), Trigger())
	require.Error(t, err)
	assert.Empty(t, transport.paths())
	assert.True(t, apierrors.IsConnectorErrorKind(err, apierrors.ProcessingStepFailed))
}

func TestRegistry_Connectors(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterWebhook("zeta", WebhooksNotImplemented{})
	Register[types.PSync, types.PaymentsSyncData, types.PaymentsResponseData](registry, "alpha",
		Unsupported[types.PSync, types.PaymentsSyncData, types.PaymentsResponseData]{})

	assert.Equal(t, []string{"alpha", "zeta"}, registry.Connectors())
	assert.True(t, registry.HasConnector("alpha"))

	w, err := registry.Webhook("alpha")
	require.NoError(t, err)
	_, err = w.GetWebhookEventType(nil)
	assert.True(t, apierrors.IsConnectorErrorKind(err, apierrors.WebhooksNotImplemented))

	rr, err := registry.Redirect("alpha")
	require.NoError(t, err)
	action, err := rr.GetFlowType(nil)
	require.NoError(t, err)
	assert.Equal(t, CallModeTrigger, action.Mode)

	_, err = registry.Webhook("missing")
	assert.Error(t, err)
}
