package trustpay

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

const defaultRedirectURL = "https://test-tpgw.trustpay.eu"

func apiKey(auth types.ConnectorAuthType) (string, error) {
	if auth.Kind != types.HeaderKey || auth.APIKey == "" {
		return "", apierrors.NewConnectorError(apierrors.FailedToObtainAuthType, nil)
	}
	return auth.APIKey, nil
}

// formatAmount renders a minor-unit amount the way the gateway expects it,
// in major units with two decimals.
func formatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// parseAmount is the inverse of formatAmount.
func parseAmount(major string) (int64, error) {
	d, err := decimal.NewFromString(major)
	if err != nil {
		return 0, err
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

// paymentStatus is the gateway's numeric result code.
type paymentStatus int

const (
	statusSuccess          paymentStatus = 0
	statusPending          paymentStatus = 1
	statusExpired          paymentStatus = -1
	statusError            paymentStatus = -2
	statusServerCallFailed paymentStatus = -3
	statusAbortedByUser    paymentStatus = -4
	statusFailure          paymentStatus = -255
)

func (s paymentStatus) attemptStatus() models.AttemptStatus {
	switch s {
	case statusSuccess:
		return models.AttemptStatusCharged
	case statusPending:
		return models.AttemptStatusPending
	case statusExpired, statusAbortedByUser:
		return models.AttemptStatusAuthorizationFailed
	default:
		return models.AttemptStatusFailure
	}
}

func (s paymentStatus) refundStatus() models.RefundStatus {
	switch s {
	case statusSuccess:
		return models.RefundStatusSuccess
	case statusPending:
		return models.RefundStatusPending
	default:
		return models.RefundStatusFailure
	}
}

func (s paymentStatus) webhookEvent() models.WebhookEventType {
	switch s {
	case statusSuccess:
		return models.WebhookEventPaymentSucceeded
	case statusPending:
		return models.WebhookEventPaymentProcessing
	default:
		return models.WebhookEventPaymentFailed
	}
}

func newPaymentsForm(data types.PaymentsAuthorizeRouterData) (url.Values, error) {
	card := data.Request.PaymentMethodData.Card
	if card == nil {
		return nil, apierrors.NotImplementedError("payment method " + string(data.PaymentMethod))
	}
	if _, err := strconv.Atoi(card.CardCVC); err != nil {
		return nil, apierrors.NewConnectorError(apierrors.RequestEncodingFailed, fmt.Errorf("card_cvc: %w", err))
	}
	year := card.CardExpYear
	if len(year) > 2 {
		year = year[len(year)-2:]
	}
	month := card.CardExpMonth
	if len(month) == 1 {
		month = "0" + month
	}
	redirectURL := data.ReturnURL
	if redirectURL == "" {
		redirectURL = defaultRedirectURL
	}

	form := url.Values{}
	form.Set("amount", formatAmount(data.Request.Amount))
	form.Set("currency", data.Request.Currency)
	form.Set("pan", card.CardNumber)
	form.Set("cvv", card.CardCVC)
	form.Set("exp", month+"/"+year)
	form.Set("redirectUrl", redirectURL)
	return form, nil
}

func newAmountForm(minor int64, currency, instanceID string) url.Values {
	form := url.Values{}
	form.Set("amount", formatAmount(minor))
	form.Set("currency", currency)
	form.Set("instance_id", instanceID)
	return form
}

type paymentsResponse struct {
	Status        paymentStatus `json:"status"`
	Description   string        `json:"description"`
	InstanceID    string        `json:"instanceId"`
	PaymentStatus string        `json:"paymentStatus"`
	RedirectURL   string        `json:"redirectUrl"`
}

// syncResponse is both the instance resource and the body of a payment
// notification.
type syncResponse struct {
	Status        paymentStatus `json:"status"`
	InstanceID    string        `json:"instance_id"`
	Created       string        `json:"created,omitempty"`
	Amount        string        `json:"amount,omitempty"`
	Currency      string        `json:"currency,omitempty"`
	Reference     string        `json:"reference,omitempty"`
	PaymentStatus string        `json:"payment_status,omitempty"`
}

type genericResponse struct {
	Status      paymentStatus `json:"status"`
	Description string        `json:"description"`
	InstanceID  string        `json:"instance_id"`
}

type errorType struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

type errorResponse struct {
	Status      int         `json:"status"`
	Description string      `json:"description"`
	Errors      []errorType `json:"errors"`
}

func (e errorResponse) toErrorResponse() *types.ErrorResponse {
	out := &types.ErrorResponse{Code: strconv.Itoa(e.Status), Message: e.Description}
	if len(e.Errors) > 0 {
		out.Code = strconv.Itoa(e.Errors[0].Code)
		out.Reason = e.Errors[0].Description
		if out.Message == "" {
			out.Message = e.Errors[0].Description
		}
	}
	return out
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return apierrors.NewConnectorError(apierrors.ResponseDeserializationFailed, err)
	}
	return nil
}
