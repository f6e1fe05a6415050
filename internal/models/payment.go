package models

import (
	"encoding/json"
	"time"
)

// PaymentIntent is the merchant-scoped, payment-level record.
type PaymentIntent struct {
	PaymentID         string          `json:"payment_id"`
	MerchantID        string          `json:"merchant_id"`
	Status            IntentStatus    `json:"status"`
	Amount            int64           `json:"amount"`
	Currency          string          `json:"currency"`
	AmountCaptured    *int64          `json:"amount_captured,omitempty"`
	CustomerID        string          `json:"customer_id,omitempty"`
	Description       string          `json:"description,omitempty"`
	ReturnURL         string          `json:"return_url,omitempty"`
	ShippingAddressID string          `json:"shipping_address_id,omitempty"`
	BillingAddressID  string          `json:"billing_address_id,omitempty"`
	ClientSecret      string          `json:"client_secret,omitempty"`
	ActiveAttemptID   string          `json:"active_attempt_id"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	Version           int64           `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	ModifiedAt        time.Time       `json:"modified_at"`
}

// PaymentAttempt is one processing attempt of a PaymentIntent.
type PaymentAttempt struct {
	PaymentID              string             `json:"payment_id"`
	MerchantID             string             `json:"merchant_id"`
	AttemptID              string             `json:"attempt_id"`
	Status                 AttemptStatus      `json:"status"`
	Amount                 int64              `json:"amount"`
	Currency               string             `json:"currency"`
	Connector              string             `json:"connector,omitempty"`
	ConnectorTransactionID string             `json:"connector_transaction_id,omitempty"`
	PaymentMethod          PaymentMethodType  `json:"payment_method,omitempty"`
	PaymentToken           string             `json:"payment_token,omitempty"`
	CaptureMethod          CaptureMethod      `json:"capture_method,omitempty"`
	AuthenticationType     AuthenticationType `json:"authentication_type,omitempty"`
	AmountToCapture        *int64             `json:"amount_to_capture,omitempty"`
	CancellationReason     *string            `json:"cancellation_reason,omitempty"`
	ErrorCode              string             `json:"error_code,omitempty"`
	ErrorMessage           string             `json:"error_message,omitempty"`
	Version                int64              `json:"version"`
	CreatedAt              time.Time          `json:"created_at"`
	ModifiedAt             time.Time          `json:"modified_at"`
}

// PaymentIntentUpdate is a typed delta applied by the storage layer.
type PaymentIntentUpdate interface {
	ApplyTo(intent *PaymentIntent)
}

// IntentStatusUpdate moves the intent to a new status.
type IntentStatusUpdate struct {
	Status IntentStatus
}

func (u IntentStatusUpdate) ApplyTo(intent *PaymentIntent) {
	intent.Status = u.Status
}

// IntentResponseUpdate records the outcome of a connector call.
type IntentResponseUpdate struct {
	Status         IntentStatus
	AmountCaptured *int64
}

func (u IntentResponseUpdate) ApplyTo(intent *PaymentIntent) {
	intent.Status = u.Status
	if u.AmountCaptured != nil {
		intent.AmountCaptured = u.AmountCaptured
	}
}

// IntentConfirmUpdate is written when a payment is confirmed.
type IntentConfirmUpdate struct {
	Status          IntentStatus
	ActiveAttemptID string
	ReturnURL       string
}

func (u IntentConfirmUpdate) ApplyTo(intent *PaymentIntent) {
	intent.Status = u.Status
	if u.ActiveAttemptID != "" {
		intent.ActiveAttemptID = u.ActiveAttemptID
	}
	if u.ReturnURL != "" {
		intent.ReturnURL = u.ReturnURL
	}
}

// PaymentAttemptUpdate is a typed delta applied by the storage layer.
type PaymentAttemptUpdate interface {
	ApplyTo(attempt *PaymentAttempt)
	// NextStatus is the status the attempt ends up in after the update.
	NextStatus(current AttemptStatus) AttemptStatus
}

// AttemptVoidUpdate marks a void as initiated and stores the merchant's reason verbatim.
type AttemptVoidUpdate struct {
	Status             AttemptStatus
	CancellationReason *string
}

func (u AttemptVoidUpdate) ApplyTo(a *PaymentAttempt) {
	a.Status = u.Status
	a.CancellationReason = u.CancellationReason
}

func (u AttemptVoidUpdate) NextStatus(AttemptStatus) AttemptStatus { return u.Status }

// AttemptConfirmUpdate records the outcome of a confirm: the resolved
// connector and payment method together with the authorization result.
type AttemptConfirmUpdate struct {
	Status                 AttemptStatus
	Connector              string
	ConnectorTransactionID string
	PaymentMethod          PaymentMethodType
	PaymentToken           string
	AuthenticationType     AuthenticationType
	CaptureMethod          CaptureMethod
	ErrorCode              string
	ErrorMessage           string
}

func (u AttemptConfirmUpdate) ApplyTo(a *PaymentAttempt) {
	a.Status = u.Status
	a.Connector = u.Connector
	if u.ConnectorTransactionID != "" {
		a.ConnectorTransactionID = u.ConnectorTransactionID
	}
	if u.PaymentMethod != "" {
		a.PaymentMethod = u.PaymentMethod
	}
	if u.PaymentToken != "" {
		a.PaymentToken = u.PaymentToken
	}
	if u.AuthenticationType != "" {
		a.AuthenticationType = u.AuthenticationType
	}
	if u.CaptureMethod != "" {
		a.CaptureMethod = u.CaptureMethod
	}
	a.ErrorCode = u.ErrorCode
	a.ErrorMessage = u.ErrorMessage
}

func (u AttemptConfirmUpdate) NextStatus(AttemptStatus) AttemptStatus { return u.Status }

// AttemptResponseUpdate folds a successful connector response into the attempt.
type AttemptResponseUpdate struct {
	Status                 AttemptStatus
	Connector              string
	ConnectorTransactionID string
	AuthenticationType     AuthenticationType
	AmountToCapture        *int64
}

func (u AttemptResponseUpdate) ApplyTo(a *PaymentAttempt) {
	a.Status = u.Status
	if u.Connector != "" {
		a.Connector = u.Connector
	}
	if u.ConnectorTransactionID != "" {
		a.ConnectorTransactionID = u.ConnectorTransactionID
	}
	if u.AuthenticationType != "" {
		a.AuthenticationType = u.AuthenticationType
	}
	if u.AmountToCapture != nil {
		a.AmountToCapture = u.AmountToCapture
	}
	a.ErrorCode = ""
	a.ErrorMessage = ""
}

func (u AttemptResponseUpdate) NextStatus(AttemptStatus) AttemptStatus { return u.Status }

// AttemptErrorUpdate records a structured connector failure. A nil Status
// leaves the current status untouched.
type AttemptErrorUpdate struct {
	Status       *AttemptStatus
	ErrorCode    string
	ErrorMessage string
}

func (u AttemptErrorUpdate) ApplyTo(a *PaymentAttempt) {
	if u.Status != nil {
		a.Status = *u.Status
	}
	a.ErrorCode = u.ErrorCode
	a.ErrorMessage = u.ErrorMessage
}

func (u AttemptErrorUpdate) NextStatus(current AttemptStatus) AttemptStatus {
	if u.Status != nil {
		return *u.Status
	}
	return current
}

// AttemptStatusUpdate only moves the status.
type AttemptStatusUpdate struct {
	Status AttemptStatus
}

func (u AttemptStatusUpdate) ApplyTo(a *PaymentAttempt) { a.Status = u.Status }

func (u AttemptStatusUpdate) NextStatus(AttemptStatus) AttemptStatus { return u.Status }
