package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/config"
	"github.com/akylbek/payment-system/payment-switch/internal/interfaces"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

type CallMode int

const (
	// CallModeTrigger performs the outbound call.
	CallModeTrigger CallMode = iota
	// CallModeHandleResponse folds a response obtained out-of-band, such
	// as a webhook resource, without calling the connector.
	CallModeHandleResponse
	// CallModeAvoid skips the connector entirely.
	CallModeAvoid
)

func (m CallMode) String() string {
	switch m {
	case CallModeTrigger:
		return "trigger"
	case CallModeHandleResponse:
		return "handle_response"
	case CallModeAvoid:
		return "avoid"
	default:
		return fmt.Sprintf("call_mode(%d)", int(m))
	}
}

type CallConnectorAction struct {
	Mode CallMode
	Body []byte
}

func Trigger() CallConnectorAction { return CallConnectorAction{Mode: CallModeTrigger} }

func HandleResponse(body []byte) CallConnectorAction {
	return CallConnectorAction{Mode: CallModeHandleResponse, Body: body}
}

func Avoid() CallConnectorAction { return CallConnectorAction{Mode: CallModeAvoid} }

// StepContext is the immutable context shared by every connector call of a
// pipeline execution.
type StepContext struct {
	Connectors config.Connectors
	Transport  interfaces.ConnectorTransport
	Registry   *Registry
}

// ExecuteConnectorProcessingStep runs one connector interaction of flow F.
//
// In Trigger mode the integration's pre-tasks run first, strictly in order,
// and the first failing step aborts the call. A non-2xx connector response is
// not an error: it is parsed into data.ErrorResponse so the caller can
// persist the failure.
func ExecuteConnectorProcessingStep[F types.Flow, Req any, Resp any](
	ctx context.Context,
	sc StepContext,
	data types.RouterData[F, Req, Resp],
	action CallConnectorAction,
) (out types.RouterData[F, Req, Resp], err error) {
	flow := types.FlowName[F]()
	connector := data.Connector

	ctx, span := telemetry.StartSpan(ctx, "connector."+flow,
		attribute.String("connector", connector),
		attribute.String("payment_id", data.PaymentID),
		attribute.String("call_mode", action.Mode.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	integ, err := Lookup[F, Req, Resp](sc.Registry, connector)
	if err != nil {
		return data, err
	}

	switch action.Mode {
	case CallModeAvoid:
		return data, nil

	case CallModeHandleResponse:
		res := &types.Response{StatusCode: 200, Body: action.Body}
		out, err := integ.HandleResponse(data, res)
		if err != nil {
			return data, apierrors.WithContext(err, connector, flow)
		}
		out.HTTPCode = res.StatusCode
		return out, nil
	}

	params, ok := sc.Connectors.Get(connector)
	if !ok {
		return data, &apierrors.ConnectorError{
			Kind:      apierrors.ProcessingStepFailed,
			Connector: connector,
			Flow:      flow,
			Err:       errors.New("connector is not configured"),
		}
	}

	if provider, ok := integ.(PreTaskProvider[F, Req, Resp]); ok {
		carry, err := runPreTasks(ctx, sc, connector, provider.PreTasks(data))
		if err != nil {
			return data, err
		}
		data = data.WithCarryOver(carry)
	}

	req, err := integ.BuildRequest(ctx, data, params)
	if err != nil {
		return data, apierrors.WithContext(err, connector, flow)
	}
	if req == nil {
		telemetry.Logger.Debug("Connector flow needs no outbound call",
			zap.String("connector", connector),
			zap.String("flow", flow),
			zap.String("payment_id", data.PaymentID),
		)
		return data, nil
	}

	start := time.Now()
	res, err := sc.Transport.Send(ctx, connector, req)
	if err != nil {
		telemetry.ConnectorCallDuration.WithLabelValues(connector, flow, "transport_error").Observe(time.Since(start).Seconds())
		return data, &apierrors.ConnectorError{Kind: apierrors.ProcessingStepFailed, Connector: connector, Flow: flow, Err: err}
	}

	outcome := "success"
	if !res.IsSuccess() {
		outcome = "error_response"
	}
	telemetry.ConnectorCallDuration.WithLabelValues(connector, flow, outcome).Observe(time.Since(start).Seconds())

	telemetry.Logger.Debug("Connector response received",
		zap.String("connector", connector),
		zap.String("flow", flow),
		zap.String("payment_id", data.PaymentID),
		zap.Int("status_code", res.StatusCode),
	)

	data.HTTPCode = res.StatusCode
	if res.IsSuccess() {
		out, err := integ.HandleResponse(data, res)
		if err != nil {
			return data, apierrors.WithContext(err, connector, flow)
		}
		out.ErrorResponse = nil
		return out, nil
	}

	errResp, err := integ.GetErrorResponse(res)
	if err != nil {
		return data, apierrors.WithContext(err, connector, flow)
	}
	if errResp == nil {
		errResp = &types.ErrorResponse{Code: "NO_ERROR_CODE", Message: "NO_ERROR_MESSAGE"}
	}
	if errResp.StatusCode == 0 {
		errResp.StatusCode = res.StatusCode
	}
	data.Response = nil
	data.ErrorResponse = errResp
	return data, nil
}

func runPreTasks(ctx context.Context, sc StepContext, connector string, tasks []PreTask) (types.CarryOver, error) {
	var carry types.CarryOver
	for _, task := range tasks {
		next, err := task.Run(ctx, sc, carry)
		if err != nil {
			telemetry.PretaskFailuresTotal.WithLabelValues(connector, task.Name).Inc()
			telemetry.Logger.Warn("Connector pre-task failed",
				zap.String("connector", connector),
				zap.String("step", task.Name),
				zap.Error(err),
			)
			return carry, apierrors.AtStep(err, connector, task.Name)
		}
		carry = next
	}
	return carry, nil
}

// ExecuteSubFlow runs flow F2 as a pre-task of src. The sub-call inherits
// src's identity and authentication plus the carry-over gathered so far. A
// connector error response fails the step.
func ExecuteSubFlow[F2 types.Flow, Req2 any, Resp2 any, F1 types.Flow, Req1 any, Resp1 any](
	ctx context.Context,
	sc StepContext,
	src types.RouterData[F1, Req1, Resp1],
	carry types.CarryOver,
	req Req2,
) (types.RouterData[F2, Req2, Resp2], error) {
	data := types.ChangeFlow[F2, Req2, Resp2](src.WithCarryOver(carry), req)
	out, err := ExecuteConnectorProcessingStep(ctx, sc, data, Trigger())
	if err != nil {
		return out, err
	}
	if out.ErrorResponse != nil {
		return out, &apierrors.ConnectorError{
			Kind:      apierrors.ProcessingStepFailed,
			Connector: out.Connector,
			Flow:      types.FlowName[F2](),
			Err:       fmt.Errorf("%s: %s", out.ErrorResponse.Code, out.ErrorResponse.Message),
		}
	}
	if out.Response == nil {
		return out, &apierrors.ConnectorError{
			Kind:      apierrors.ResponseHandlingFailed,
			Connector: out.Connector,
			Flow:      types.FlowName[F2](),
		}
	}
	return out, nil
}
