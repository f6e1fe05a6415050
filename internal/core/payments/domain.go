package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/interfaces"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/services"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

const (
	routingSingle   = "single"
	routingPriority = "priority"
)

// LoadMerchant fetches the merchant account every operation runs against.
func LoadMerchant(ctx context.Context, store interfaces.StorageInterface, merchantID string) (*models.MerchantAccount, error) {
	if merchantID == "" {
		return nil, apierrors.MissingRequiredFieldError("merchant_id")
	}
	merchant, err := store.FindMerchantAccountByMerchantID(ctx, merchantID)
	if err != nil {
		return nil, apierrors.ToNotFound(err, apierrors.MerchantAccountNotFound())
	}
	return merchant, nil
}

// ResolveConnectorAuth decodes the merchant's credentials for connector.
func ResolveConnectorAuth(ctx context.Context, store interfaces.StorageInterface, merchantID, connector string) (types.ConnectorAuthType, error) {
	mca, err := store.FindMerchantConnectorAccount(ctx, merchantID, connector)
	if err != nil {
		return types.ConnectorAuthType{}, apierrors.ToNotFound(err, apierrors.MerchantConnectorAccountNotFound())
	}
	if mca.Disabled {
		return types.ConnectorAuthType{}, apierrors.MerchantConnectorAccountNotFound()
	}
	auth, err := types.ParseConnectorAuthType(mca.ConnectorAccountDetails)
	if err != nil {
		return types.ConnectorAuthType{}, apierrors.WithContext(err, connector, "")
	}
	return auth, nil
}

// resolveCustomer fetches the customer the intent refers to and creates a
// bare record when the reference is unknown.
func (c *Core) resolveCustomer(ctx context.Context, merchantID string, details models.Customer) (*models.Customer, error) {
	if details.CustomerID == "" {
		return nil, nil
	}
	customer, err := c.store.FindCustomerByCustomerIDMerchantID(ctx, details.CustomerID, merchantID)
	if err == nil {
		return customer, nil
	}
	if !apierrors.IsNotFound(err) {
		return nil, apierrors.InternalServerError().WithCause(err)
	}

	details.MerchantID = merchantID
	customer, err = c.store.InsertCustomer(ctx, &details)
	if err != nil {
		return nil, apierrors.InternalServerError().WithCause(err)
	}
	telemetry.Logger.Info("Customer created",
		zap.String("merchant_id", merchantID),
		zap.String("customer_id", customer.CustomerID),
	)
	return customer, nil
}

// paymentMethodInput is the payment-method part of a create or confirm request.
type paymentMethodInput struct {
	Inline  *models.PaymentMethodData
	Token   string
	CardCVC string
}

// resolvePaymentMethod returns the payment-method material for the attempt
// and the vault token it is stored under. An inline card is vaulted without
// its verification code. A supplied card_cvc replaces the card's code.
func (c *Core) resolvePaymentMethod(ctx context.Context, in paymentMethodInput, attemptToken string) (*models.PaymentMethodData, string, error) {
	if in.Inline != nil && in.Inline.Card != nil {
		pm := clonePaymentMethod(*in.Inline)
		token, err := c.vaultPaymentMethod(ctx, pm)
		if err != nil {
			return nil, "", err
		}
		if in.CardCVC != "" {
			pm.Card.CardCVC = in.CardCVC
		}
		return &pm, token, nil
	}

	token := in.Token
	if token == "" {
		token = attemptToken
	}
	if token == "" {
		return nil, "", apierrors.MissingRequiredFieldError("payment_method_data")
	}
	pm, err := c.vault.GetPaymentMethod(ctx, token)
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, "", apierrors.InvalidRequestData("payment_token is invalid or has expired")
		}
		return nil, "", apierrors.InternalServerError().WithCause(err)
	}
	if in.CardCVC != "" && pm.Card != nil {
		pm.Card.CardCVC = in.CardCVC
	}
	return pm, token, nil
}

func (c *Core) vaultPaymentMethod(ctx context.Context, pm models.PaymentMethodData) (string, error) {
	stored := clonePaymentMethod(pm)
	if stored.Card != nil {
		stored.Card.CardCVC = ""
	}
	token := "token_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := c.vault.SavePaymentMethod(ctx, token, stored, c.vaultTTL); err != nil {
		return "", apierrors.InternalServerError().WithCause(err)
	}
	return token, nil
}

func clonePaymentMethod(pm models.PaymentMethodData) models.PaymentMethodData {
	if pm.Card != nil {
		card := *pm.Card
		pm.Card = &card
	}
	return pm
}

// selectConnector picks exactly one connector: the request override, then
// the connector already bound to the attempt, then the merchant's routing
// rule.
func (c *Core) selectConnector(ctx context.Context, merchant *models.MerchantAccount, override, current string) (string, error) {
	connector := override
	if connector == "" {
		connector = current
	}
	if connector == "" {
		var err error
		if connector, err = c.route(ctx, merchant); err != nil {
			return "", err
		}
	}
	if !c.steps.Registry.HasConnector(connector) {
		return "", apierrors.IncorrectConnectorNameGiven()
	}
	return connector, nil
}

func (c *Core) route(ctx context.Context, merchant *models.MerchantAccount) (string, error) {
	algo := merchant.RoutingAlgorithm
	if algo == nil || len(algo.Connectors) == 0 {
		return "", apierrors.ConnectorNotResolved()
	}
	switch algo.Kind {
	case routingSingle, "":
		return algo.Connectors[0], nil
	case routingPriority:
		for _, connector := range algo.Connectors {
			mca, err := c.store.FindMerchantConnectorAccount(ctx, merchant.MerchantID, connector)
			if err != nil {
				if apierrors.IsNotFound(err) {
					continue
				}
				return "", apierrors.InternalServerError().WithCause(err)
			}
			if !mca.Disabled {
				return connector, nil
			}
		}
	}
	return "", apierrors.ConnectorNotResolved()
}

// bindConnector records the chosen connector and its credentials on data.
func bindConnector[F types.Flow](ctx context.Context, c *Core, data *PaymentData[F], connector string) error {
	auth, err := ResolveConnectorAuth(ctx, c.store, data.Intent.MerchantID, connector)
	if err != nil {
		return err
	}
	data.Connector = connector
	data.ConnectorAuthType = auth
	return nil
}

// boundConnector resolves the connector an earlier confirm already chose.
func boundConnector[F types.Flow](ctx context.Context, c *Core, data *PaymentData[F]) error {
	if data.Attempt.Connector == "" {
		return apierrors.ConnectorNotResolved()
	}
	if !c.steps.Registry.HasConnector(data.Attempt.Connector) {
		return apierrors.IncorrectConnectorNameGiven()
	}
	return bindConnector(ctx, c, data, data.Attempt.Connector)
}

// supportsFlow fails when connector has no integration for flow F, before
// anything is written on its behalf.
func supportsFlow[F types.Flow, Req any](c *Core, connector string) error {
	_, err := services.Lookup[F, Req, types.PaymentsResponseData](c.steps.Registry, connector)
	return err
}
