package services

import (
	"net/url"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
)

// IncomingWebhook extracts what the core needs out of a raw webhook payload.
type IncomingWebhook interface {
	// GetWebhookObjectReferenceID returns the connector transaction id the
	// payload concerns.
	GetWebhookObjectReferenceID(body []byte) (string, error)
	GetWebhookEventType(body []byte) (models.WebhookEventType, error)
	// GetWebhookResourceObject returns the body to be folded through the
	// sync flow's response handler.
	GetWebhookResourceObject(body []byte) ([]byte, error)
}

// ConnectorRedirectResponse classifies a browser redirect back from a connector.
type ConnectorRedirectResponse interface {
	GetFlowType(query url.Values) (CallConnectorAction, error)
}

// WebhooksNotImplemented is the parser of connectors without webhook support.
type WebhooksNotImplemented struct{}

func (WebhooksNotImplemented) GetWebhookObjectReferenceID([]byte) (string, error) {
	return "", apierrors.NewConnectorError(apierrors.WebhooksNotImplemented, nil)
}

func (WebhooksNotImplemented) GetWebhookEventType([]byte) (models.WebhookEventType, error) {
	return "", apierrors.NewConnectorError(apierrors.WebhooksNotImplemented, nil)
}

func (WebhooksNotImplemented) GetWebhookResourceObject([]byte) ([]byte, error) {
	return nil, apierrors.NewConnectorError(apierrors.WebhooksNotImplemented, nil)
}

// DefaultRedirect asks for a fresh sync with the connector.
type DefaultRedirect struct{}

func (DefaultRedirect) GetFlowType(url.Values) (CallConnectorAction, error) {
	return Trigger(), nil
}
