package payments

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/interfaces"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
)

func validateCreate(req *models.CreatePaymentRequest) error {
	if req.Amount <= 0 {
		return apierrors.InvalidDataValue("amount")
	}
	if len(req.Currency) != 3 {
		return apierrors.InvalidDataValue("currency")
	}
	switch req.CaptureMethod {
	case "", models.CaptureMethodAutomatic, models.CaptureMethodManual:
	default:
		return apierrors.InvalidDataValue("capture_method")
	}
	switch req.AuthenticationType {
	case "", models.AuthenticationTypeThreeDs, models.AuthenticationTypeNoThreeDs:
	default:
		return apierrors.InvalidDataValue("authentication_type")
	}
	if req.PaymentID != "" {
		return validatePaymentID(req.PaymentID)
	}
	return nil
}

// CreatePayment inserts a payment intent with its first attempt. With
// confirm set the payment is confirmed straight away.
func (c *Core) CreatePayment(ctx context.Context, merchantID string, req *models.CreatePaymentRequest) (resp *models.PaymentResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "payments.create", attribute.String("merchant_id", merchantID))
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		telemetry.OperationsTotal.WithLabelValues(string(models.OperationCreate), result).Inc()
		telemetry.EndSpan(span, err)
	}()

	merchant, err := LoadMerchant(ctx, c.store, merchantID)
	if err != nil {
		return nil, err
	}
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	if req.Connector != "" && !c.steps.Registry.HasConnector(req.Connector) {
		return nil, apierrors.IncorrectConnectorNameGiven()
	}

	paymentID := req.PaymentID
	if paymentID == "" {
		paymentID = newPaymentID()
	}
	scheme := StorageScheme(merchant)
	span.SetAttributes(attribute.String("payment_id", paymentID))

	customer, err := c.resolveCustomer(ctx, merchantID, models.Customer{
		CustomerID:  req.CustomerID,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Description: req.Description,
	})
	if err != nil {
		return nil, err
	}

	intent := &models.PaymentIntent{
		PaymentID:    paymentID,
		MerchantID:   merchantID,
		Status:       models.IntentStatusRequiresPaymentMethod,
		Amount:       req.Amount,
		Currency:     strings.ToUpper(req.Currency),
		Description:  req.Description,
		ReturnURL:    req.ReturnURL,
		ClientSecret: newClientSecret(paymentID),
		Metadata:     req.Metadata,
	}
	if customer != nil {
		intent.CustomerID = customer.CustomerID
	}
	if intent.ShippingAddressID, err = c.insertAddress(ctx, merchantID, intent.CustomerID, req.Shipping); err != nil {
		return nil, err
	}
	if intent.BillingAddressID, err = c.insertAddress(ctx, merchantID, intent.CustomerID, req.Billing); err != nil {
		return nil, err
	}

	attempt := &models.PaymentAttempt{
		PaymentID:          paymentID,
		MerchantID:         merchantID,
		AttemptID:          paymentID + "_1",
		Status:             models.AttemptStatusPaymentMethodAwaited,
		Amount:             req.Amount,
		Currency:           intent.Currency,
		Connector:          req.Connector,
		PaymentMethod:      req.PaymentMethod,
		PaymentToken:       req.PaymentToken,
		CaptureMethod:      req.CaptureMethod,
		AuthenticationType: req.AuthenticationType,
	}
	if attempt.CaptureMethod == "" {
		attempt.CaptureMethod = models.CaptureMethodAutomatic
	}
	if attempt.AuthenticationType == "" {
		attempt.AuthenticationType = models.AuthenticationTypeNoThreeDs
	}

	var cvc string
	if pm := req.PaymentMethodData; pm != nil && pm.Card != nil {
		if attempt.PaymentToken, err = c.vaultPaymentMethod(ctx, *pm); err != nil {
			return nil, err
		}
		if attempt.PaymentMethod == "" {
			attempt.PaymentMethod = models.PaymentMethodCard
		}
		cvc = pm.Card.CardCVC
	}
	if req.CardCVC != "" {
		cvc = req.CardCVC
	}
	if attempt.PaymentToken != "" {
		intent.Status = models.IntentStatusRequiresConfirmation
		attempt.Status = models.AttemptStatusConfirmationAwaited
	}
	intent.ActiveAttemptID = attempt.AttemptID

	err = c.store.WithTx(ctx, func(tx interfaces.StorageInterface) error {
		var err error
		if intent, err = tx.InsertPaymentIntent(ctx, intent, scheme); err != nil {
			return err
		}
		attempt, err = tx.InsertPaymentAttempt(ctx, attempt, scheme)
		return err
	})
	if err != nil {
		return nil, apierrors.ToDuplicate(err, apierrors.DuplicatePayment(paymentID))
	}

	telemetry.Logger.Info("Payment created",
		zap.String("payment_id", paymentID),
		zap.String("merchant_id", merchantID),
		zap.Int64("amount", intent.Amount),
		zap.String("currency", intent.Currency),
		zap.String("status", string(intent.Status)),
	)
	c.announce(ctx, models.OperationCreate, "", intent, attempt)

	if !req.Confirm {
		out := buildResponse(intent, attempt, nil)
		out.ClientSecret = intent.ClientSecret
		return out, nil
	}

	out, err := c.ConfirmPayment(ctx, merchantID, &models.ConfirmPaymentRequest{
		PaymentID:     paymentID,
		ClientSecret:  intent.ClientSecret,
		Connector:     req.Connector,
		PaymentMethod: attempt.PaymentMethod,
		CardCVC:       cvc,
		ReturnURL:     req.ReturnURL,
	})
	if err != nil {
		return nil, err
	}
	out.ClientSecret = intent.ClientSecret
	return out, nil
}

func (c *Core) insertAddress(ctx context.Context, merchantID, customerID string, details *models.AddressDetails) (string, error) {
	if details == nil {
		return "", nil
	}
	address, err := c.store.InsertAddress(ctx, &models.Address{
		AddressID:   "addr_" + strings.TrimPrefix(newPaymentID(), paymentIDPrefix),
		MerchantID:  merchantID,
		CustomerID:  customerID,
		Line1:       details.Line1,
		Line2:       details.Line2,
		Line3:       details.Line3,
		City:        details.City,
		State:       details.State,
		Zip:         details.Zip,
		Country:     details.Country,
		FirstName:   details.FirstName,
		LastName:    details.LastName,
		PhoneNumber: details.PhoneNumber,
	})
	if err != nil {
		return "", apierrors.InternalServerError().WithCause(err)
	}
	return address.AddressID, nil
}
