package types

import (
	"encoding/json"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
)

type ResponseIDKind int

const (
	NoResponseID ResponseIDKind = iota
	ConnectorTransactionIDKind
	EncodedDataKind
)

// ResponseID identifies the connector-side resource a response refers to.
type ResponseID struct {
	Kind  ResponseIDKind
	Value string
}

func ConnectorTransactionID(id string) ResponseID {
	return ResponseID{Kind: ConnectorTransactionIDKind, Value: id}
}

func EncodedData(data string) ResponseID {
	return ResponseID{Kind: EncodedDataKind, Value: data}
}

// GetConnectorTransactionID fails with a missing-identifier condition when
// no connector transaction id is present.
func (r ResponseID) GetConnectorTransactionID() (string, error) {
	if r.Kind != ConnectorTransactionIDKind || r.Value == "" {
		return "", apierrors.NewConnectorError(apierrors.MissingConnectorTransactionID, nil)
	}
	return r.Value, nil
}

type PaymentAddress struct {
	Shipping *models.Address
	Billing  *models.Address
}

type PaymentsAuthorizeData struct {
	PaymentMethodData models.PaymentMethodData
	Amount            int64
	Currency          string
	CaptureMethod     models.CaptureMethod
	Confirm           bool
	Email             string
	Description       string
}

type PaymentsCaptureData struct {
	AmountToCapture        *int64
	Amount                 int64
	Currency               string
	ConnectorTransactionID string
}

type PaymentsCancelData struct {
	Amount                 int64
	Currency               string
	ConnectorTransactionID string
	CancellationReason     *string
}

type PaymentsSyncData struct {
	ConnectorTransactionID ResponseID
	EncodedData            string
}

type PaymentsSessionData struct {
	Amount   int64
	Currency string
	Country  string
}

// PreAuthorizeData is the input of a connector's session-key pre-task.
type PreAuthorizeData struct {
	Amount   int64
	Currency string
}

// CardTokenizeData is the input of a connector's card tokenization pre-task.
// SessionToken is the value produced by the preceding PreAuthorize step.
type CardTokenizeData struct {
	Card         models.Card
	SessionToken string
}

type RefundsData struct {
	RefundID               string
	ConnectorTransactionID string
	ConnectorRefundID      string
	Currency               string
	Amount                 int64
	RefundAmount           int64
	Reason                 string
}

type RedirectForm struct {
	Endpoint string            `json:"endpoint"`
	Method   Method            `json:"method"`
	Form     map[string]string `json:"form"`
}

type PaymentsResponseData struct {
	ResourceID        ResponseID
	Redirect          bool
	RedirectionData   *RedirectForm
	ConnectorMetadata json.RawMessage
}

type RefundsResponseData struct {
	ConnectorRefundID string
	RefundStatus      models.RefundStatus
}

// ErrorResponse is the common representation of a connector's error payload.
type ErrorResponse struct {
	Code       string
	Message    string
	Reason     string
	StatusCode int
}

// CarryOver holds the values a pre-task chain hands to the primary call.
type CarryOver struct {
	SessionToken string
	CardToken    string
}
