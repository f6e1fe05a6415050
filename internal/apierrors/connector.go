package apierrors

import (
	"errors"
	"fmt"
)

// ConnectorErrorKind classifies a failure raised while talking to a connector.
type ConnectorErrorKind string

const (
	FailedToObtainAuthType        ConnectorErrorKind = "failed_to_obtain_auth_type"
	RequestEncodingFailed         ConnectorErrorKind = "request_encoding_failed"
	ResponseDeserializationFailed ConnectorErrorKind = "response_deserialization_failed"
	ResponseHandlingFailed        ConnectorErrorKind = "response_handling_failed"
	MissingRequiredField          ConnectorErrorKind = "missing_required_field"
	MissingConnectorTransactionID ConnectorErrorKind = "missing_connector_transaction_id"
	MissingConnectorRefundID      ConnectorErrorKind = "missing_connector_refund_id"
	NotImplemented                ConnectorErrorKind = "not_implemented"
	FlowNotSupported              ConnectorErrorKind = "flow_not_supported"
	WebhooksNotImplemented        ConnectorErrorKind = "webhooks_not_implemented"
	WebhookEventTypeNotFound      ConnectorErrorKind = "webhook_event_type_not_found"
	ProcessingStepFailed          ConnectorErrorKind = "processing_step_failed"
)

// ConnectorError is the common shape of every connector-local failure. The
// orchestrator fills Connector, Flow and Step as the error bubbles up.
type ConnectorError struct {
	Kind       ConnectorErrorKind
	Connector  string
	Flow       string
	Step       string
	Field      string
	Capability string
	Err        error
}

func (e *ConnectorError) Error() string {
	msg := string(e.Kind)
	switch e.Kind {
	case MissingRequiredField:
		msg = fmt.Sprintf("missing required field %q", e.Field)
	case NotImplemented, FlowNotSupported:
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Capability)
	}
	if e.Connector != "" {
		msg = e.Connector + ": " + msg
	}
	if e.Step != "" {
		msg = fmt.Sprintf("%s (step %s)", msg, e.Step)
	} else if e.Flow != "" {
		msg = fmt.Sprintf("%s (flow %s)", msg, e.Flow)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectorError) Unwrap() error { return e.Err }

// Is matches another *ConnectorError by kind, so errors.Is(err,
// &ConnectorError{Kind: MissingConnectorTransactionID}) works through wrapping.
func (e *ConnectorError) Is(target error) bool {
	t, ok := target.(*ConnectorError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NewConnectorError(kind ConnectorErrorKind, err error) *ConnectorError {
	return &ConnectorError{Kind: kind, Err: err}
}

func MissingField(field string) *ConnectorError {
	return &ConnectorError{Kind: MissingRequiredField, Field: field}
}

func NotImplementedError(capability string) *ConnectorError {
	return &ConnectorError{Kind: NotImplemented, Capability: capability}
}

// IsConnectorErrorKind reports whether err wraps a ConnectorError of kind.
func IsConnectorErrorKind(err error, kind ConnectorErrorKind) bool {
	return errors.Is(err, &ConnectorError{Kind: kind})
}

// WithContext attaches connector and flow to a connector error without
// overwriting context already recorded by a deeper layer. Other errors are
// wrapped as a processing step failure.
func WithContext(err error, connector, flow string) error {
	if err == nil {
		return nil
	}
	var ce *ConnectorError
	if !errors.As(err, &ce) {
		return &ConnectorError{Kind: ProcessingStepFailed, Connector: connector, Flow: flow, Err: err}
	}
	if ce.Connector == "" {
		ce.Connector = connector
	}
	if ce.Flow == "" {
		ce.Flow = flow
	}
	return err
}

// AtStep marks err as raised by the named pre-task step. The outermost step
// name is kept, which is the failing step as seen by the primary flow.
func AtStep(err error, connector, step string) error {
	if err == nil {
		return nil
	}
	var ce *ConnectorError
	if errors.As(err, &ce) {
		out := *ce
		if out.Connector == "" {
			out.Connector = connector
		}
		out.Step = step
		return &out
	}
	return &ConnectorError{Kind: ProcessingStepFailed, Connector: connector, Step: step, Err: err}
}
