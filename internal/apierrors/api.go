package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the discriminator of the public error taxonomy.
type ErrorType string

const (
	TypeInvalidRequest ErrorType = "invalid_request"
	TypeObjectNotFound ErrorType = "object_not_found"
	TypeInvalidState   ErrorType = "invalid_state"
	TypeConnector      ErrorType = "connector_error"
	TypeProcessing     ErrorType = "processing_error"
	TypeServer         ErrorType = "server_error"
)

// APIError is what callers of the switch see: one code plus a message.
type APIError struct {
	Type       ErrorType `json:"type"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Connector  string    `json:"connector,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	StatusCode int       `json:"-"`
	cause      error
}

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Type, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s %s: %s", e.Type, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.cause }

// WithCause keeps the underlying error for logging; it is never serialized.
func (e *APIError) WithCause(err error) *APIError {
	out := *e
	out.cause = err
	return &out
}

func InvalidRequestData(message string) *APIError {
	return &APIError{Type: TypeInvalidRequest, Code: "IR_06", Message: message, StatusCode: http.StatusBadRequest}
}

func MissingRequiredFieldError(field string) *APIError {
	return &APIError{
		Type:       TypeInvalidRequest,
		Code:       "IR_04",
		Message:    fmt.Sprintf("Missing required param: %s", field),
		StatusCode: http.StatusBadRequest,
	}
}

func InvalidDataValue(field string) *APIError {
	return &APIError{
		Type:       TypeInvalidRequest,
		Code:       "IR_05",
		Message:    fmt.Sprintf("%s contains invalid data. Expected format is %s", field, field),
		StatusCode: http.StatusBadRequest,
	}
}

func PreconditionFailed(message string) *APIError {
	return &APIError{Type: TypeInvalidState, Code: "IR_16", Message: message, StatusCode: http.StatusBadRequest}
}

func PaymentNotFound() *APIError {
	return &APIError{Type: TypeObjectNotFound, Code: "HE_02", Message: "Payment does not exist in our records", StatusCode: http.StatusNotFound}
}

func RefundNotFound() *APIError {
	return &APIError{Type: TypeObjectNotFound, Code: "HE_02", Message: "Refund does not exist in our records", StatusCode: http.StatusNotFound}
}

func CustomerNotFound() *APIError {
	return &APIError{Type: TypeObjectNotFound, Code: "HE_02", Message: "Customer does not exist in our records", StatusCode: http.StatusNotFound}
}

func MerchantAccountNotFound() *APIError {
	return &APIError{Type: TypeObjectNotFound, Code: "HE_02", Message: "Merchant account does not exist in our records", StatusCode: http.StatusNotFound}
}

func MerchantConnectorAccountNotFound() *APIError {
	return &APIError{Type: TypeObjectNotFound, Code: "HE_02", Message: "Merchant connector account does not exist in our records", StatusCode: http.StatusNotFound}
}

func DuplicatePayment(paymentID string) *APIError {
	return &APIError{Type: TypeInvalidRequest, Code: "HE_01", Message: fmt.Sprintf("The payment with the specified payment_id '%s' already exists in our records", paymentID), StatusCode: http.StatusBadRequest}
}

func DuplicateRefund() *APIError {
	return &APIError{Type: TypeInvalidRequest, Code: "HE_01", Message: "The refund with the specified refund_id already exists in our records", StatusCode: http.StatusBadRequest}
}

func IdempotentRequestInProgress() *APIError {
	return &APIError{Type: TypeInvalidRequest, Code: "IR_30", Message: "A request with this Idempotency-Key is still being processed", StatusCode: http.StatusConflict}
}

func IncorrectConnectorNameGiven() *APIError {
	return &APIError{Type: TypeInvalidRequest, Code: "IR_07", Message: "Invalid connector name provided", StatusCode: http.StatusBadRequest}
}

func ConnectorNotResolved() *APIError {
	return &APIError{Type: TypeProcessing, Code: "IR_08", Message: "No connector could be selected for this payment", StatusCode: http.StatusBadRequest}
}

func MissingConnectorTransactionIDError() *APIError {
	return &APIError{Type: TypeConnector, Code: "CE_05", Message: "The connector transaction id is missing for this payment", StatusCode: http.StatusBadRequest}
}

func NotImplementedAPI(message string) *APIError {
	return &APIError{Type: TypeInvalidRequest, Code: "IR_00", Message: message, StatusCode: http.StatusNotImplemented}
}

func ExternalConnectorError(connector, code, message string, status int) *APIError {
	if status == 0 {
		status = http.StatusBadRequest
	}
	return &APIError{
		Type:       TypeConnector,
		Code:       "CE_00",
		Message:    fmt.Sprintf("%s: %s", code, message),
		Connector:  connector,
		StatusCode: status,
	}
}

func ConnectorProcessingFailed(connector, reason string) *APIError {
	return &APIError{
		Type:       TypeConnector,
		Code:       "CE_01",
		Message:    "Failed while processing the connector request",
		Connector:  connector,
		Reason:     reason,
		StatusCode: http.StatusBadGateway,
	}
}

func InternalServerError() *APIError {
	return &APIError{Type: TypeServer, Code: "HE_00", Message: "Something went wrong", StatusCode: http.StatusInternalServerError}
}

// AsAPIError returns the APIError in err's chain, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
