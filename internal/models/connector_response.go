package models

import (
	"encoding/json"
	"time"
)

// ConnectorResponse is the durable record of the latest outbound interaction
// for an attempt, keyed by payment id, merchant id and attempt id.
type ConnectorResponse struct {
	PaymentID              string          `json:"payment_id"`
	MerchantID             string          `json:"merchant_id"`
	AttemptID              string          `json:"attempt_id"`
	ConnectorName          string          `json:"connector_name,omitempty"`
	ConnectorTransactionID string          `json:"connector_transaction_id,omitempty"`
	AuthenticationData     json.RawMessage `json:"authentication_data,omitempty"`
	EncodedData            string          `json:"encoded_data,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	ModifiedAt             time.Time       `json:"modified_at"`
}

// ConnectorResponseUpdate replaces the connector-facing fields.
type ConnectorResponseUpdate struct {
	ConnectorName          string
	ConnectorTransactionID string
	AuthenticationData     json.RawMessage
	EncodedData            string
}

func (u ConnectorResponseUpdate) ApplyTo(cr *ConnectorResponse) {
	if u.ConnectorName != "" {
		cr.ConnectorName = u.ConnectorName
	}
	if u.ConnectorTransactionID != "" {
		cr.ConnectorTransactionID = u.ConnectorTransactionID
	}
	if u.AuthenticationData != nil {
		cr.AuthenticationData = u.AuthenticationData
	}
	if u.EncodedData != "" {
		cr.EncodedData = u.EncodedData
	}
}
