package models

import (
	"encoding/json"
	"time"
)

type Card struct {
	CardNumber     string `json:"card_number" binding:"required"`
	CardExpMonth   string `json:"card_exp_month" binding:"required"`
	CardExpYear    string `json:"card_exp_year" binding:"required"`
	CardHolderName string `json:"card_holder_name"`
	CardCVC        string `json:"card_cvc"`
}

// PaymentMethodData is the inline payment-method material of a request.
type PaymentMethodData struct {
	Card *Card `json:"card,omitempty"`
}

type AddressDetails struct {
	Line1       string `json:"line1"`
	Line2       string `json:"line2"`
	Line3       string `json:"line3"`
	City        string `json:"city"`
	State       string `json:"state"`
	Zip         string `json:"zip"`
	Country     string `json:"country"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}

type CreatePaymentRequest struct {
	PaymentID          string             `json:"payment_id"`
	Amount             int64              `json:"amount" binding:"required,gt=0"`
	Currency           string             `json:"currency" binding:"required,len=3"`
	CustomerID         string             `json:"customer_id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	Phone              string             `json:"phone"`
	Description        string             `json:"description"`
	ReturnURL          string             `json:"return_url"`
	CaptureMethod      CaptureMethod      `json:"capture_method"`
	AuthenticationType AuthenticationType `json:"authentication_type"`
	Confirm            bool               `json:"confirm"`
	Connector          string             `json:"connector"`
	PaymentMethod      PaymentMethodType  `json:"payment_method"`
	PaymentMethodData  *PaymentMethodData `json:"payment_method_data"`
	PaymentToken       string             `json:"payment_token"`
	CardCVC            string             `json:"card_cvc"`
	Shipping           *AddressDetails    `json:"shipping"`
	Billing            *AddressDetails    `json:"billing"`
	Metadata           json.RawMessage    `json:"metadata"`
}

type ConfirmPaymentRequest struct {
	PaymentID         string             `json:"-"`
	ClientSecret      string             `json:"client_secret"`
	Connector         string             `json:"connector"`
	PaymentMethod     PaymentMethodType  `json:"payment_method"`
	PaymentMethodData *PaymentMethodData `json:"payment_method_data"`
	PaymentToken      string             `json:"payment_token"`
	CardCVC           string             `json:"card_cvc"`
	ReturnURL         string             `json:"return_url"`
}

type CapturePaymentRequest struct {
	PaymentID       string `json:"-"`
	AmountToCapture *int64 `json:"amount_to_capture" binding:"omitempty,gt=0"`
}

type CancelPaymentRequest struct {
	PaymentID          string  `json:"-"`
	CancellationReason *string `json:"cancellation_reason"`
}

type RetrievePaymentRequest struct {
	PaymentID              string `json:"-"`
	ConnectorTransactionID string `json:"-"`
	ForceSync              bool   `json:"force_sync"`
	Connector              string `json:"connector"`
}

type CreateRefundRequest struct {
	RefundID  string `json:"refund_id"`
	PaymentID string `json:"payment_id" binding:"required"`
	Amount    *int64 `json:"amount" binding:"omitempty,gt=0"`
	Reason    string `json:"reason"`
}

type RetrieveRefundRequest struct {
	RefundID  string `json:"-"`
	ForceSync bool   `json:"force_sync"`
}

type PaymentResponse struct {
	PaymentID              string        `json:"payment_id"`
	MerchantID             string        `json:"merchant_id"`
	Status                 IntentStatus  `json:"status"`
	AttemptStatus          AttemptStatus `json:"attempt_status"`
	Amount                 int64         `json:"amount"`
	AmountCaptured         *int64        `json:"amount_captured,omitempty"`
	Currency               string        `json:"currency"`
	CustomerID             string        `json:"customer_id,omitempty"`
	ReturnURL              string        `json:"return_url,omitempty"`
	Connector              string        `json:"connector,omitempty"`
	ConnectorTransactionID string        `json:"connector_transaction_id,omitempty"`
	CancellationReason     *string       `json:"cancellation_reason,omitempty"`
	ClientSecret           string        `json:"client_secret,omitempty"`
	ErrorCode              string        `json:"error_code,omitempty"`
	ErrorMessage           string        `json:"error_message,omitempty"`
	NextAction             *NextAction   `json:"next_action,omitempty"`
	Refunds                []Refund      `json:"refunds,omitempty"`
	CreatedAt              time.Time     `json:"created_at"`
}

// NextAction tells the caller to send the customer's browser elsewhere,
// typically to complete 3-D Secure.
type NextAction struct {
	Type        string            `json:"type"`
	RedirectURL string            `json:"redirect_to_url"`
	Method      string            `json:"method"`
	Form        map[string]string `json:"form,omitempty"`
}
