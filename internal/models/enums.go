package models

// IntentStatus is the payment-level lifecycle state.
type IntentStatus string

const (
	IntentStatusRequiresPaymentMethod  IntentStatus = "requires_payment_method"
	IntentStatusRequiresConfirmation   IntentStatus = "requires_confirmation"
	IntentStatusRequiresCustomerAction IntentStatus = "requires_customer_action"
	IntentStatusProcessing             IntentStatus = "processing"
	IntentStatusRequiresCapture        IntentStatus = "requires_capture"
	IntentStatusSucceeded              IntentStatus = "succeeded"
	IntentStatusFailed                 IntentStatus = "failed"
	IntentStatusCancelled              IntentStatus = "cancelled"
)

// AttemptStatus is the state of one processing attempt against a connector.
type AttemptStatus string

const (
	AttemptStatusStarted               AttemptStatus = "started"
	AttemptStatusPaymentMethodAwaited  AttemptStatus = "payment_method_awaited"
	AttemptStatusConfirmationAwaited   AttemptStatus = "confirmation_awaited"
	AttemptStatusAuthenticationPending AttemptStatus = "authentication_pending"
	AttemptStatusPending               AttemptStatus = "pending"
	AttemptStatusAuthorizing           AttemptStatus = "authorizing"
	AttemptStatusAuthorized            AttemptStatus = "authorized"
	AttemptStatusAuthorizationFailed   AttemptStatus = "authorization_failed"
	AttemptStatusRouterDeclined        AttemptStatus = "router_declined"
	AttemptStatusCaptureInitiated      AttemptStatus = "capture_initiated"
	AttemptStatusCaptureFailed         AttemptStatus = "capture_failed"
	AttemptStatusCharged               AttemptStatus = "charged"
	AttemptStatusVoidInitiated         AttemptStatus = "void_initiated"
	AttemptStatusVoided                AttemptStatus = "voided"
	AttemptStatusVoidFailed            AttemptStatus = "void_failed"
	AttemptStatusFailure               AttemptStatus = "failure"
)

// RefundStatus is the state of a refund.
type RefundStatus string

const (
	RefundStatusPending            RefundStatus = "pending"
	RefundStatusSuccess            RefundStatus = "success"
	RefundStatusFailure            RefundStatus = "failure"
	RefundStatusManualReview       RefundStatus = "manual_review"
	RefundStatusTransactionFailure RefundStatus = "transaction_failure"
)

// IsFinal reports whether the refund no longer needs a sync with the connector.
func (s RefundStatus) IsFinal() bool {
	switch s {
	case RefundStatusSuccess, RefundStatusFailure, RefundStatusTransactionFailure:
		return true
	}
	return false
}

// StorageScheme selects how reads and writes for a merchant are isolated.
type StorageScheme string

const (
	// StorageSchemePostgresOnly reads and writes straight to Postgres with an
	// optimistic version check on every update.
	StorageSchemePostgresOnly StorageScheme = "postgres_only"
	// StorageSchemeRedisKv serves reads from Redis and serializes updates
	// with a per-record lock.
	StorageSchemeRedisKv StorageScheme = "redis_kv"
)

type CaptureMethod string

const (
	CaptureMethodAutomatic CaptureMethod = "automatic"
	CaptureMethodManual    CaptureMethod = "manual"
)

type AuthenticationType string

const (
	AuthenticationTypeThreeDs   AuthenticationType = "three_ds"
	AuthenticationTypeNoThreeDs AuthenticationType = "no_three_ds"
)

type PaymentMethodType string

const (
	PaymentMethodCard   PaymentMethodType = "card"
	PaymentMethodWallet PaymentMethodType = "wallet"
	PaymentMethodPaypal PaymentMethodType = "paypal"
)
