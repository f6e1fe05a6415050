package models

import (
	"encoding/json"
	"time"
)

type PaymentStateChangedEvent struct {
	PaymentID     string        `json:"payment_id"`
	MerchantID    string        `json:"merchant_id"`
	AttemptID     string        `json:"attempt_id"`
	Operation     string        `json:"operation"`
	State         IntentStatus  `json:"state"`
	PreviousState IntentStatus  `json:"previous_state"`
	AttemptStatus AttemptStatus `json:"attempt_status"`
	Connector     string        `json:"connector,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

type WebhookEventType string

const (
	WebhookEventPaymentSucceeded  WebhookEventType = "payment_intent_success"
	WebhookEventPaymentFailed     WebhookEventType = "payment_intent_failure"
	WebhookEventPaymentProcessing WebhookEventType = "payment_intent_processing"
	WebhookEventRefundSucceeded   WebhookEventType = "refund_success"
	WebhookEventRefundFailed      WebhookEventType = "refund_failure"
	WebhookEventNotSupported      WebhookEventType = "event_not_supported"
)

type WebhookEvent struct {
	MerchantID  string           `json:"merchant_id"`
	Connector   string           `json:"connector"`
	EventType   WebhookEventType `json:"event_type"`
	ObjectRefID string           `json:"object_reference_id"`
	PaymentID   string           `json:"payment_id,omitempty"`
	Resource    json.RawMessage  `json:"resource"`
	ReceivedAt  time.Time        `json:"received_at"`
}
