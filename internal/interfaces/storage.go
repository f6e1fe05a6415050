package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/payment-switch/internal/models"
)

// PaymentIntentInterface defines the contract for payment intent data access
type PaymentIntentInterface interface {
	InsertPaymentIntent(ctx context.Context, intent *models.PaymentIntent, scheme models.StorageScheme) (*models.PaymentIntent, error)
	FindPaymentIntentByPaymentIDMerchantID(ctx context.Context, paymentID, merchantID string, scheme models.StorageScheme) (*models.PaymentIntent, error)
	UpdatePaymentIntent(ctx context.Context, intent *models.PaymentIntent, update models.PaymentIntentUpdate, scheme models.StorageScheme) (*models.PaymentIntent, error)
}

// PaymentAttemptInterface defines the contract for payment attempt data access
type PaymentAttemptInterface interface {
	InsertPaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt, scheme models.StorageScheme) (*models.PaymentAttempt, error)
	// FindPaymentAttemptByPaymentIDMerchantID returns the most recent attempt of the payment.
	FindPaymentAttemptByPaymentIDMerchantID(ctx context.Context, paymentID, merchantID string, scheme models.StorageScheme) (*models.PaymentAttempt, error)
	FindPaymentAttemptByAttemptIDMerchantID(ctx context.Context, attemptID, merchantID string, scheme models.StorageScheme) (*models.PaymentAttempt, error)
	FindPaymentAttemptByConnectorTransactionID(ctx context.Context, merchantID, connectorTransactionID string, scheme models.StorageScheme) (*models.PaymentAttempt, error)
	UpdatePaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt, update models.PaymentAttemptUpdate, scheme models.StorageScheme) (*models.PaymentAttempt, error)
}

type CustomerInterface interface {
	FindCustomerByCustomerIDMerchantID(ctx context.Context, customerID, merchantID string) (*models.Customer, error)
	InsertCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error)
}

type AddressInterface interface {
	FindAddressByAddressID(ctx context.Context, addressID string) (*models.Address, error)
	InsertAddress(ctx context.Context, address *models.Address) (*models.Address, error)
}

type ConnectorResponseInterface interface {
	InsertConnectorResponse(ctx context.Context, cr *models.ConnectorResponse, scheme models.StorageScheme) (*models.ConnectorResponse, error)
	FindConnectorResponseByPaymentIDMerchantIDAttemptID(ctx context.Context, paymentID, merchantID, attemptID string, scheme models.StorageScheme) (*models.ConnectorResponse, error)
	UpdateConnectorResponse(ctx context.Context, cr *models.ConnectorResponse, update models.ConnectorResponseUpdate, scheme models.StorageScheme) (*models.ConnectorResponse, error)
}

type MerchantAccountInterface interface {
	FindMerchantAccountByMerchantID(ctx context.Context, merchantID string) (*models.MerchantAccount, error)
	InsertMerchantAccount(ctx context.Context, merchant *models.MerchantAccount) (*models.MerchantAccount, error)
	FindMerchantConnectorAccount(ctx context.Context, merchantID, connector string) (*models.MerchantConnectorAccount, error)
	InsertMerchantConnectorAccount(ctx context.Context, mca *models.MerchantConnectorAccount) (*models.MerchantConnectorAccount, error)
}

type RefundInterface interface {
	InsertRefund(ctx context.Context, refund *models.Refund, scheme models.StorageScheme) (*models.Refund, error)
	FindRefundByMerchantIDRefundID(ctx context.Context, merchantID, refundID string, scheme models.StorageScheme) (*models.Refund, error)
	FindRefundsByPaymentIDMerchantID(ctx context.Context, paymentID, merchantID string, scheme models.StorageScheme) ([]models.Refund, error)
	UpdateRefund(ctx context.Context, refund *models.Refund, update models.RefundUpdate, scheme models.StorageScheme) (*models.Refund, error)
}

// StorageInterface is everything the payment core reads from or writes to.
// Lookups that find nothing return an error wrapping apierrors.ErrValueNotFound.
type StorageInterface interface {
	PaymentIntentInterface
	PaymentAttemptInterface
	CustomerInterface
	AddressInterface
	ConnectorResponseInterface
	MerchantAccountInterface
	RefundInterface

	// WithTx runs fn against a store whose writes commit together when fn
	// returns nil and are all discarded otherwise.
	WithTx(ctx context.Context, fn func(tx StorageInterface) error) error
}
