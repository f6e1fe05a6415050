package services

import (
	"sort"
	"sync"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

type integrationKey struct {
	connector string
	flow      string
}

// Registry maps (connector, flow) to the integration handling it. Adding a
// flow for one connector never changes what another connector resolves to.
type Registry struct {
	mu           sync.RWMutex
	connectors   map[string]struct{}
	integrations map[integrationKey]any
	webhooks     map[string]IncomingWebhook
	redirects    map[string]ConnectorRedirectResponse
}

func NewRegistry() *Registry {
	return &Registry{
		connectors:   make(map[string]struct{}),
		integrations: make(map[integrationKey]any),
		webhooks:     make(map[string]IncomingWebhook),
		redirects:    make(map[string]ConnectorRedirectResponse),
	}
}

// Register installs integ as the handler of flow F for connector.
func Register[F types.Flow, Req any, Resp any](r *Registry, connector string, integ ConnectorIntegration[F, Req, Resp]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[connector] = struct{}{}
	r.integrations[integrationKey{connector: connector, flow: types.FlowName[F]()}] = integ
}

// Lookup returns the integration of flow F for connector. A known connector
// without a handler for F yields a NotImplemented connector error.
func Lookup[F types.Flow, Req any, Resp any](r *Registry, connector string) (ConnectorIntegration[F, Req, Resp], error) {
	flow := types.FlowName[F]()

	r.mu.RLock()
	_, known := r.connectors[connector]
	entry, ok := r.integrations[integrationKey{connector: connector, flow: flow}]
	r.mu.RUnlock()

	if !known {
		return nil, apierrors.IncorrectConnectorNameGiven()
	}
	if !ok {
		return nil, &apierrors.ConnectorError{Kind: apierrors.NotImplemented, Connector: connector, Flow: flow, Capability: flow}
	}
	integ, ok := entry.(ConnectorIntegration[F, Req, Resp])
	if !ok {
		return nil, &apierrors.ConnectorError{Kind: apierrors.FlowNotSupported, Connector: connector, Flow: flow, Capability: flow}
	}
	return integ, nil
}

func (r *Registry) RegisterWebhook(connector string, w IncomingWebhook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[connector] = struct{}{}
	r.webhooks[connector] = w
}

func (r *Registry) RegisterRedirect(connector string, rr ConnectorRedirectResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[connector] = struct{}{}
	r.redirects[connector] = rr
}

// Webhook returns the connector's inbound webhook parser. Connectors that
// never registered one report WebhooksNotImplemented.
func (r *Registry) Webhook(connector string) (IncomingWebhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.connectors[connector]; !ok {
		return nil, apierrors.IncorrectConnectorNameGiven()
	}
	if w, ok := r.webhooks[connector]; ok {
		return w, nil
	}
	return WebhooksNotImplemented{}, nil
}

// Redirect returns the connector's redirect classifier, defaulting to a
// re-sync with the connector.
func (r *Registry) Redirect(connector string) (ConnectorRedirectResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.connectors[connector]; !ok {
		return nil, apierrors.IncorrectConnectorNameGiven()
	}
	if rr, ok := r.redirects[connector]; ok {
		return rr, nil
	}
	return DefaultRedirect{}, nil
}

func (r *Registry) HasConnector(connector string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connectors[connector]
	return ok
}

// Connectors lists registered connector names in lexical order.
func (r *Registry) Connectors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
