package services

import (
	"context"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/config"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

// ConnectorIntegration is what a connector implements once for every flow it
// supports. Implementations must not touch payment storage.
type ConnectorIntegration[F types.Flow, Req any, Resp any] interface {
	// GetHeaders may perform an auxiliary lookup such as a token exchange.
	GetHeaders(ctx context.Context, data types.RouterData[F, Req, Resp], params config.ConnectorParams) ([]types.Header, error)
	// GetURL fails with MissingConnectorTransactionID when the flow needs an
	// identifier the envelope does not carry.
	GetURL(data types.RouterData[F, Req, Resp], params config.ConnectorParams) (string, error)
	// GetRequestBody returns nil for flows without a body.
	GetRequestBody(data types.RouterData[F, Req, Resp]) ([]byte, error)
	// BuildRequest returns nil when no network call is needed.
	BuildRequest(ctx context.Context, data types.RouterData[F, Req, Resp], params config.ConnectorParams) (*types.Request, error)
	HandleResponse(data types.RouterData[F, Req, Resp], res *types.Response) (types.RouterData[F, Req, Resp], error)
	GetErrorResponse(res *types.Response) (*types.ErrorResponse, error)
}

// PreTask is one auxiliary connector call that has to complete before the
// primary call of a flow. Run receives everything earlier steps produced and
// returns it extended with its own output.
type PreTask struct {
	Name string
	Run  func(ctx context.Context, sc StepContext, carry types.CarryOver) (types.CarryOver, error)
}

// PreTaskProvider is implemented by integrations whose primary call depends
// on a chain of preparatory calls.
type PreTaskProvider[F types.Flow, Req any, Resp any] interface {
	PreTasks(data types.RouterData[F, Req, Resp]) []PreTask
}

// ComposeRequest assembles the transport request from the integration's
// URL, header and body builders.
func ComposeRequest[F types.Flow, Req any, Resp any](
	ctx context.Context,
	integ ConnectorIntegration[F, Req, Resp],
	method types.Method,
	data types.RouterData[F, Req, Resp],
	params config.ConnectorParams,
) (*types.Request, error) {
	url, err := integ.GetURL(data, params)
	if err != nil {
		return nil, err
	}
	headers, err := integ.GetHeaders(ctx, data, params)
	if err != nil {
		return nil, err
	}
	body, err := integ.GetRequestBody(data)
	if err != nil {
		return nil, err
	}
	return types.NewRequestBuilder().
		Method(method).
		URL(url).
		Headers(headers).
		Body(body).
		Build(), nil
}

// Unsupported is embedded by connectors for flows they only register to
// report a clear capability error.
type Unsupported[F types.Flow, Req any, Resp any] struct{}

func (Unsupported[F, Req, Resp]) GetHeaders(context.Context, types.RouterData[F, Req, Resp], config.ConnectorParams) ([]types.Header, error) {
	return nil, apierrors.NotImplementedError(types.FlowName[F]())
}

func (Unsupported[F, Req, Resp]) GetURL(types.RouterData[F, Req, Resp], config.ConnectorParams) (string, error) {
	return "", apierrors.NotImplementedError(types.FlowName[F]())
}

func (Unsupported[F, Req, Resp]) GetRequestBody(types.RouterData[F, Req, Resp]) ([]byte, error) {
	return nil, apierrors.NotImplementedError(types.FlowName[F]())
}

func (Unsupported[F, Req, Resp]) BuildRequest(context.Context, types.RouterData[F, Req, Resp], config.ConnectorParams) (*types.Request, error) {
	return nil, apierrors.NotImplementedError(types.FlowName[F]())
}

func (Unsupported[F, Req, Resp]) HandleResponse(data types.RouterData[F, Req, Resp], _ *types.Response) (types.RouterData[F, Req, Resp], error) {
	return data, apierrors.NotImplementedError(types.FlowName[F]())
}

func (Unsupported[F, Req, Resp]) GetErrorResponse(*types.Response) (*types.ErrorResponse, error) {
	return nil, apierrors.NotImplementedError(types.FlowName[F]())
}
