package payments

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/services"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

// RunOperation drives one execution of op for the given merchant.
//
// Stages run strictly in order and the first failure aborts the rest.
// Nothing is written before UpdateTrackers except an operation's own
// Checkpoint, and the writes of UpdateTrackers commit together or not at all. When the call mode resolves to Avoid the loaded data is
// returned as is.
func RunOperation[F types.Flow, Req any, FReq any](
	ctx context.Context,
	c *Core,
	merchantID string,
	op Operation[F, Req, FReq],
	req *Req,
	requested services.CallConnectorAction,
) (data *PaymentData[F], err error) {
	name := string(op.Name())
	ctx, span := telemetry.StartSpan(ctx, "payments."+name,
		attribute.String("merchant_id", merchantID),
		attribute.String("flow", types.FlowName[F]()),
	)
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		telemetry.OperationsTotal.WithLabelValues(name, result).Inc()
		telemetry.EndSpan(span, err)
	}()

	merchant, err := LoadMerchant(ctx, c.store, merchantID)
	if err != nil {
		return nil, err
	}

	v, err := op.ValidateRequest(req, merchant)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("payment_id", v.PaymentID))

	data, err = op.GetTrackers(ctx, c, v, req)
	if err != nil {
		return nil, err
	}

	if err := op.Domain(ctx, c, data, req, merchant); err != nil {
		return nil, err
	}

	if cp, ok := op.(Checkpointer[F]); ok {
		if err := cp.Checkpoint(ctx, c, data); err != nil {
			return nil, err
		}
	}

	action := op.CallAction(data, requested)
	if action.Mode == services.CallModeAvoid {
		telemetry.Logger.Debug("Connector call skipped",
			zap.String("operation", name),
			zap.String("payment_id", v.PaymentID),
		)
		return data, nil
	}

	freq, err := op.ConnectorRequest(data)
	if err != nil {
		return nil, err
	}

	rd := constructRouterData[F](data, merchant, freq)
	rd, err = services.ExecuteConnectorProcessingStep(ctx, c.steps, rd, action)
	if err != nil {
		telemetry.Logger.Warn("Connector call failed",
			zap.String("operation", name),
			zap.String("payment_id", v.PaymentID),
			zap.String("connector", data.Connector),
			zap.String("flow", types.FlowName[F]()),
			zap.Error(err),
		)
		return nil, err
	}
	data.SessionToken = rd.SessionToken
	data.CardToken = rd.CardToken

	err = c.withTx(ctx, func(txc *Core) error {
		return op.UpdateTrackers(ctx, txc, data, rd)
	})
	if err != nil {
		telemetry.Logger.Error("Failed to update payment trackers",
			zap.String("operation", name),
			zap.String("payment_id", v.PaymentID),
			zap.Error(err),
		)
		return nil, err
	}

	telemetry.Logger.Info("Payment operation completed",
		zap.String("operation", name),
		zap.String("payment_id", v.PaymentID),
		zap.String("connector", data.Connector),
		zap.String("attempt_status", string(data.Attempt.Status)),
	)
	return data, nil
}

func constructRouterData[F types.Flow, FReq any](
	data *PaymentData[F],
	merchant *models.MerchantAccount,
	req FReq,
) types.RouterData[F, FReq, types.PaymentsResponseData] {
	returnURL := data.Intent.ReturnURL
	if returnURL == "" {
		returnURL = merchant.ReturnURL
	}
	return types.RouterData[F, FReq, types.PaymentsResponseData]{
		MerchantID:         data.Intent.MerchantID,
		Connector:          data.Connector,
		PaymentID:          data.Intent.PaymentID,
		AttemptID:          data.Attempt.AttemptID,
		Status:             data.Attempt.Status,
		PaymentMethod:      data.Attempt.PaymentMethod,
		AuthenticationType: data.Attempt.AuthenticationType,
		ConnectorAuthType:  data.ConnectorAuthType,
		Description:        data.Intent.Description,
		ReturnURL:          returnURL,
		Address:            data.Address,
		Request:            req,
		SessionToken:       data.SessionToken,
		CardToken:          data.CardToken,
	}
}
