package payments

import (
	"strings"

	"github.com/google/uuid"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
)

const (
	paymentIDPrefix    = "pay_"
	clientSecretMarker = "_secret_"
	maxPaymentIDLength = 64
)

// validatePaymentID rejects anything that cannot name a payment intent,
// including a client secret passed in place of the id.
func validatePaymentID(id string) error {
	if id == "" {
		return apierrors.MissingRequiredFieldError("payment_id")
	}
	if !strings.HasPrefix(id, paymentIDPrefix) ||
		strings.Contains(id, clientSecretMarker) ||
		len(id) > maxPaymentIDLength {
		return apierrors.InvalidDataValue("payment_id")
	}
	return nil
}

func newPaymentID() string {
	return paymentIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newClientSecret(paymentID string) string {
	return paymentID + clientSecretMarker + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// StorageScheme is the merchant's storage consistency mode.
func StorageScheme(merchant *models.MerchantAccount) models.StorageScheme {
	if merchant.StorageScheme == "" {
		return models.StorageSchemePostgresOnly
	}
	return merchant.StorageScheme
}

func validatePayment(paymentID string, merchant *models.MerchantAccount) (ValidateResult, error) {
	if err := validatePaymentID(paymentID); err != nil {
		return ValidateResult{}, err
	}
	return ValidateResult{
		MerchantID: merchant.MerchantID,
		PaymentID:  paymentID,
		Scheme:     StorageScheme(merchant),
	}, nil
}
