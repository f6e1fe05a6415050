package models

import "encoding/json"

// RoutingAlgorithm is the merchant's connector selection rule.
type RoutingAlgorithm struct {
	// Kind is "single" (always Connectors[0]) or "priority" (first connector
	// in order that has an enabled connector account).
	Kind       string   `json:"type"`
	Connectors []string `json:"connectors"`
}

type MerchantAccount struct {
	MerchantID       string            `json:"merchant_id"`
	StorageScheme    StorageScheme     `json:"storage_scheme"`
	RoutingAlgorithm *RoutingAlgorithm `json:"routing_algorithm,omitempty"`
	ReturnURL        string            `json:"return_url,omitempty"`
}

// MerchantConnectorAccount holds a merchant's credentials for one connector.
// ConnectorAccountDetails is decoded into a types.ConnectorAuthType when a
// connector call is assembled.
type MerchantConnectorAccount struct {
	MerchantID              string          `json:"merchant_id"`
	ConnectorName           string          `json:"connector_name"`
	ConnectorAccountDetails json.RawMessage `json:"connector_account_details"`
	Disabled                bool            `json:"disabled"`
}
