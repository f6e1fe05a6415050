package models

import "time"

type Refund struct {
	RefundID               string       `json:"refund_id"`
	PaymentID              string       `json:"payment_id"`
	MerchantID             string       `json:"merchant_id"`
	AttemptID              string       `json:"attempt_id"`
	Connector              string       `json:"connector"`
	ConnectorTransactionID string       `json:"connector_transaction_id"`
	ConnectorRefundID      string       `json:"connector_refund_id,omitempty"`
	Status                 RefundStatus `json:"status"`
	RefundAmount           int64        `json:"refund_amount"`
	TotalAmount            int64        `json:"total_amount"`
	Currency               string       `json:"currency"`
	Reason                 string       `json:"reason,omitempty"`
	ErrorCode              string       `json:"error_code,omitempty"`
	ErrorMessage           string       `json:"error_message,omitempty"`
	Version                int64        `json:"version"`
	CreatedAt              time.Time    `json:"created_at"`
	ModifiedAt             time.Time    `json:"modified_at"`
}

type RefundUpdate interface {
	ApplyTo(r *Refund)
}

type RefundResponseUpdate struct {
	ConnectorRefundID string
	Status            RefundStatus
}

func (u RefundResponseUpdate) ApplyTo(r *Refund) {
	if u.ConnectorRefundID != "" {
		r.ConnectorRefundID = u.ConnectorRefundID
	}
	r.Status = u.Status
	r.ErrorCode = ""
	r.ErrorMessage = ""
}

type RefundErrorUpdate struct {
	Status       RefundStatus
	ErrorCode    string
	ErrorMessage string
}

func (u RefundErrorUpdate) ApplyTo(r *Refund) {
	r.Status = u.Status
	r.ErrorCode = u.ErrorCode
	r.ErrorMessage = u.ErrorMessage
}
