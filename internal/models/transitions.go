package models

// attemptTransitions lists the statuses an attempt may move to from each
// status. Self transitions are always legal and are not listed.
var attemptTransitions = map[AttemptStatus][]AttemptStatus{
	AttemptStatusStarted:               preAuthorizationTargets(AttemptStatusPaymentMethodAwaited, AttemptStatusConfirmationAwaited),
	AttemptStatusPaymentMethodAwaited:  preAuthorizationTargets(AttemptStatusConfirmationAwaited),
	AttemptStatusConfirmationAwaited:   preAuthorizationTargets(),
	AttemptStatusAuthenticationPending: authorizationOutcomes(),
	AttemptStatusPending:               authorizationOutcomes(),
	AttemptStatusAuthorizing:           authorizationOutcomes(),
	AttemptStatusAuthorized: {
		AttemptStatusCaptureInitiated, AttemptStatusCharged, AttemptStatusCaptureFailed,
		AttemptStatusVoidInitiated, AttemptStatusVoided, AttemptStatusVoidFailed,
	},
	AttemptStatusCaptureInitiated: {AttemptStatusCharged, AttemptStatusCaptureFailed},
	AttemptStatusCaptureFailed:    {AttemptStatusCaptureInitiated, AttemptStatusCharged, AttemptStatusVoidInitiated},
	AttemptStatusVoidInitiated:    {AttemptStatusVoided, AttemptStatusVoidFailed},
	AttemptStatusVoidFailed:       {AttemptStatusVoidInitiated, AttemptStatusVoided},
}

func authorizationOutcomes() []AttemptStatus {
	return []AttemptStatus{
		AttemptStatusAuthenticationPending, AttemptStatusPending, AttemptStatusAuthorizing,
		AttemptStatusAuthorized, AttemptStatusAuthorizationFailed, AttemptStatusCharged,
		AttemptStatusFailure, AttemptStatusRouterDeclined,
	}
}

func preAuthorizationTargets(extra ...AttemptStatus) []AttemptStatus {
	return append(extra, authorizationOutcomes()...)
}

// CanTransitionTo reports whether the attempt status graph allows moving
// from s to next. Anything not listed is illegal.
func (s AttemptStatus) CanTransitionTo(next AttemptStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range attemptTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s AttemptStatus) IsTerminal() bool {
	return len(attemptTransitions[s]) == 0
}

// IntentStatus derives the payment-level status from an attempt status.
func (s AttemptStatus) IntentStatus() IntentStatus {
	switch s {
	case AttemptStatusCharged:
		return IntentStatusSucceeded
	case AttemptStatusAuthorized, AttemptStatusCaptureFailed, AttemptStatusVoidFailed:
		return IntentStatusRequiresCapture
	case AttemptStatusVoided:
		return IntentStatusCancelled
	case AttemptStatusAuthenticationPending:
		return IntentStatusRequiresCustomerAction
	case AttemptStatusStarted, AttemptStatusPaymentMethodAwaited:
		return IntentStatusRequiresPaymentMethod
	case AttemptStatusConfirmationAwaited:
		return IntentStatusRequiresConfirmation
	case AttemptStatusAuthorizationFailed, AttemptStatusRouterDeclined, AttemptStatusFailure:
		return IntentStatusFailed
	default:
		return IntentStatusProcessing
	}
}

// Operation names a pipeline operation whose intent precondition is checked
// by the tracker loader.
type Operation string

const (
	OperationCreate  Operation = "create"
	OperationConfirm Operation = "confirm"
	OperationCapture Operation = "capture"
	OperationCancel  Operation = "cancel"
	OperationSync    Operation = "sync"
	OperationRefund  Operation = "refund"
)

var intentPreconditions = map[Operation][]IntentStatus{
	OperationConfirm: {IntentStatusRequiresPaymentMethod, IntentStatusRequiresConfirmation},
	OperationCapture: {IntentStatusRequiresCapture},
	OperationCancel:  {IntentStatusRequiresCapture},
	OperationSync: {
		IntentStatusRequiresCustomerAction, IntentStatusProcessing, IntentStatusRequiresCapture,
		IntentStatusSucceeded, IntentStatusFailed, IntentStatusCancelled,
	},
	OperationRefund: {IntentStatusSucceeded},
}

// Permits reports whether op may run against an intent in status s.
func (s IntentStatus) Permits(op Operation) bool {
	for _, allowed := range intentPreconditions[op] {
		if allowed == s {
			return true
		}
	}
	return false
}

// attemptPreconditions narrows intentPreconditions for operations whose
// connector call only makes sense from some attempt statuses. A cancelled
// authorization keeps its intent at RequiresCapture until the void settles,
// so the intent alone cannot tell a capturable payment from a voiding one.
// Operations not listed accept any attempt status.
var attemptPreconditions = map[Operation][]AttemptStatus{
	OperationConfirm: {AttemptStatusStarted, AttemptStatusPaymentMethodAwaited, AttemptStatusConfirmationAwaited},
	OperationCapture: {AttemptStatusAuthorized, AttemptStatusCaptureFailed},
	OperationCancel:  {AttemptStatusAuthorized, AttemptStatusCaptureFailed, AttemptStatusVoidFailed},
}

// Permits reports whether op may run against an active attempt in status s.
func (s AttemptStatus) Permits(op Operation) bool {
	allowed, ok := attemptPreconditions[op]
	if !ok {
		return true
	}
	for _, status := range allowed {
		if status == s {
			return true
		}
	}
	return false
}
