package payments

import (
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

func paymentResponse[F types.Flow](data *PaymentData[F]) *models.PaymentResponse {
	out := buildResponse(&data.Intent, &data.Attempt, data.Refunds)
	if r := data.Redirection; r != nil {
		out.NextAction = &models.NextAction{
			Type:        "redirect_to_url",
			RedirectURL: r.Endpoint,
			Method:      string(r.Method),
			Form:        r.Form,
		}
	}
	return out
}

func buildResponse(intent *models.PaymentIntent, attempt *models.PaymentAttempt, refunds []models.Refund) *models.PaymentResponse {
	return &models.PaymentResponse{
		PaymentID:              intent.PaymentID,
		MerchantID:             intent.MerchantID,
		Status:                 intent.Status,
		AttemptStatus:          attempt.Status,
		Amount:                 intent.Amount,
		AmountCaptured:         intent.AmountCaptured,
		Currency:               intent.Currency,
		CustomerID:             intent.CustomerID,
		ReturnURL:              intent.ReturnURL,
		Connector:              attempt.Connector,
		ConnectorTransactionID: attempt.ConnectorTransactionID,
		CancellationReason:     attempt.CancellationReason,
		ErrorCode:              attempt.ErrorCode,
		ErrorMessage:           attempt.ErrorMessage,
		Refunds:                refunds,
		CreatedAt:              intent.CreatedAt,
	}
}
