package apierrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrom(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"api error passes through", fmt.Errorf("wrapped: %w", PaymentNotFound()), "HE_02", http.StatusNotFound},
		{"concurrent update", Storage("update attempt", ErrConcurrentUpdate), "IR_16", http.StatusBadRequest},
		{"illegal transition", ErrIllegalTransition, "IR_16", http.StatusBadRequest},
		{"missing field", MissingField("amount"), "IR_04", http.StatusBadRequest},
		{"not implemented", WithContext(NotImplementedError("session"), "sagepay", "Session"), "IR_00", http.StatusNotImplemented},
		{"missing transaction id", NewConnectorError(MissingConnectorTransactionID, nil), "CE_05", http.StatusBadRequest},
		{"other connector failure", NewConnectorError(ResponseDeserializationFailed, errors.New("eof")), "CE_01", http.StatusBadGateway},
		{"unknown", errors.New("boom"), "HE_00", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := From(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.status, got.StatusCode)
		})
	}

	assert.Nil(t, From(nil))
}

func TestToNotFound(t *testing.T) {
	err := ToNotFound(Storage("find intent", ErrValueNotFound), PaymentNotFound())
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "HE_02", apiErr.Code)
	assert.ErrorIs(t, err, ErrValueNotFound)

	apiErr, _ = AsAPIError(ToNotFound(errors.New("connection reset"), PaymentNotFound()))
	assert.Equal(t, "HE_00", apiErr.Code)

	assert.NoError(t, ToNotFound(nil, PaymentNotFound()))
}

func TestToDuplicate(t *testing.T) {
	err := ToDuplicate(Storage("insert refund", ErrDuplicateValue), DuplicateRefund())
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "HE_01", apiErr.Code)
	assert.True(t, IsDuplicate(err))
}

func TestWithContext_KeepsDeeperContext(t *testing.T) {
	inner := &ConnectorError{Kind: MissingRequiredField, Field: "card", Connector: "trustpay"}
	err := WithContext(inner, "sagepay", "Authorize")

	var ce *ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "trustpay", ce.Connector)
	assert.Equal(t, "Authorize", ce.Flow)

	err = WithContext(errors.New("dial tcp: timeout"), "sagepay", "PSync")
	assert.True(t, IsConnectorErrorKind(err, ProcessingStepFailed))
	assert.Contains(t, err.Error(), "sagepay: processing_step_failed (flow PSync)")
}

func TestAtStep(t *testing.T) {
	err := AtStep(AtStep(MissingField("merchant_session_key"), "sagepay", "card_tokenize"), "sagepay", "pre_authorize")

	var ce *ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "pre_authorize", ce.Step)
	assert.Equal(t, `sagepay: missing required field "merchant_session_key" (step pre_authorize)`, err.Error())

	err = AtStep(errors.New("refused"), "sagepay", "card_tokenize")
	assert.True(t, IsConnectorErrorKind(err, ProcessingStepFailed))
	assert.NoError(t, AtStep(nil, "sagepay", "card_tokenize"))
}
