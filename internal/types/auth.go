package types

import (
	"encoding/json"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
)

type AuthKind string

const (
	HeaderKey    AuthKind = "HeaderKey"
	BodyKey      AuthKind = "BodyKey"
	SignatureKey AuthKind = "SignatureKey"
	NoKey        AuthKind = "NoKey"
)

// ConnectorAuthType is a merchant's credential set for one connector.
type ConnectorAuthType struct {
	Kind      AuthKind `json:"auth_type"`
	APIKey    string   `json:"api_key,omitempty"`
	Key1      string   `json:"key1,omitempty"`
	APISecret string   `json:"api_secret,omitempty"`
}

// ParseConnectorAuthType decodes the stored connector account details.
func ParseConnectorAuthType(raw json.RawMessage) (ConnectorAuthType, error) {
	var auth ConnectorAuthType
	if len(raw) == 0 {
		return auth, apierrors.NewConnectorError(apierrors.FailedToObtainAuthType, nil)
	}
	if err := json.Unmarshal(raw, &auth); err != nil {
		return auth, apierrors.NewConnectorError(apierrors.FailedToObtainAuthType, err)
	}
	switch auth.Kind {
	case HeaderKey:
		if auth.APIKey == "" {
			return auth, apierrors.NewConnectorError(apierrors.FailedToObtainAuthType, nil)
		}
	case BodyKey, SignatureKey:
		if auth.APIKey == "" || auth.Key1 == "" {
			return auth, apierrors.NewConnectorError(apierrors.FailedToObtainAuthType, nil)
		}
	case NoKey:
	default:
		return auth, apierrors.NewConnectorError(apierrors.FailedToObtainAuthType, nil)
	}
	return auth, nil
}
