package apierrors

import (
	"errors"
)

// ToNotFound maps a storage failure to notFound when the record is missing,
// and to an internal error otherwise.
func ToNotFound(err error, notFound *APIError) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) {
		return notFound.WithCause(err)
	}
	return InternalServerError().WithCause(err)
}

// ToDuplicate maps a storage failure on insert.
func ToDuplicate(err error, duplicate *APIError) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDuplicateValue) {
		return duplicate.WithCause(err)
	}
	return InternalServerError().WithCause(err)
}

// FromConnector translates a connector-local failure into the public taxonomy.
func FromConnector(err error) *APIError {
	var ce *ConnectorError
	if !errors.As(err, &ce) {
		return InternalServerError().WithCause(err)
	}
	reason := ce.Error()
	switch ce.Kind {
	case MissingConnectorTransactionID:
		out := MissingConnectorTransactionIDError()
		out.Connector = ce.Connector
		return out.WithCause(err)
	case MissingRequiredField:
		return MissingRequiredFieldError(ce.Field).WithCause(err)
	case NotImplemented, FlowNotSupported:
		out := NotImplementedAPI("This feature is not yet implemented for " + ce.Connector)
		out.Connector = ce.Connector
		out.Reason = ce.Capability
		return out.WithCause(err)
	case WebhooksNotImplemented:
		out := NotImplementedAPI("Webhooks are not implemented for " + ce.Connector)
		out.Connector = ce.Connector
		return out.WithCause(err)
	default:
		return ConnectorProcessingFailed(ce.Connector, reason).WithCause(err)
	}
}

// From converts any error produced by the pipeline into an APIError.
func From(err error) *APIError {
	if err == nil {
		return nil
	}
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr
	}
	var ce *ConnectorError
	if errors.As(err, &ce) {
		return FromConnector(err)
	}
	if errors.Is(err, ErrConcurrentUpdate) {
		return PreconditionFailed("The payment was modified by another request, please retry").WithCause(err)
	}
	if errors.Is(err, ErrIllegalTransition) {
		return PreconditionFailed("The requested status change is not allowed for this payment").WithCause(err)
	}
	return InternalServerError().WithCause(err)
}
