package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/config"
	"github.com/akylbek/payment-system/payment-switch/internal/connector/sagepay"
	"github.com/akylbek/payment-system/payment-switch/internal/connector/trustpay"
	"github.com/akylbek/payment-system/payment-switch/internal/interfaces"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/repository/inmemory"
	"github.com/akylbek/payment-system/payment-switch/internal/services"
	"github.com/akylbek/payment-system/payment-switch/internal/services/servicestest"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

const (
	merchantID  = "merchant_1"
	sagepayURL  = "https://sagepay.test/api/"
	trustpayURL = "https://trustpay.test/"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PaymentStateChangedEvent
}

func (p *recordingPublisher) PublishStateChange(_ context.Context, event models.PaymentStateChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	store     *inmemory.Store
	vault     *inmemory.Vault
	transport *servicestest.Transport
	publisher *recordingPublisher
	core      *Core
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := inmemory.NewStore()
	_, err := store.InsertMerchantAccount(ctx, &models.MerchantAccount{
		MerchantID:       merchantID,
		StorageScheme:    models.StorageSchemePostgresOnly,
		RoutingAlgorithm: &models.RoutingAlgorithm{Kind: "single", Connectors: []string{sagepay.Name}},
	})
	require.NoError(t, err)
	_, err = store.InsertMerchantConnectorAccount(ctx, &models.MerchantConnectorAccount{
		MerchantID:              merchantID,
		ConnectorName:           sagepay.Name,
		ConnectorAccountDetails: json.RawMessage(`{"auth_type":"HeaderKey","api_key":"integration-key","key1":"acme"}`),
	})
	require.NoError(t, err)
	_, err = store.InsertMerchantConnectorAccount(ctx, &models.MerchantConnectorAccount{
		MerchantID:              merchantID,
		ConnectorName:           trustpay.Name,
		ConnectorAccountDetails: json.RawMessage(`{"auth_type":"HeaderKey","api_key":"tp-key"}`),
	})
	require.NoError(t, err)

	registry := services.NewRegistry()
	sagepay.Register(registry)
	trustpay.Register(registry)

	transport := servicestest.NewTransport()
	steps := services.StepContext{
		Connectors: config.Connectors{
			sagepay.Name:  {BaseURL: sagepayURL},
			trustpay.Name: {BaseURL: trustpayURL},
		},
		Transport: transport,
		Registry:  registry,
	}

	vault := inmemory.NewVault()
	publisher := &recordingPublisher{}
	return &fixture{
		store:     store,
		vault:     vault,
		transport: transport,
		publisher: publisher,
		core:      NewCore(store, vault, publisher, steps, time.Minute),
	}
}

// seed stores an intent and its active attempt directly, bypassing create.
func (f *fixture) seed(t *testing.T, paymentID string, intentStatus models.IntentStatus, attemptStatus models.AttemptStatus, connector, txnID string) {
	t.Helper()
	ctx := context.Background()
	attemptID := paymentID + "_1"

	_, err := f.store.InsertPaymentIntent(ctx, &models.PaymentIntent{
		PaymentID:       paymentID,
		MerchantID:      merchantID,
		Status:          intentStatus,
		Amount:          5000,
		Currency:        "USD",
		ActiveAttemptID: attemptID,
	}, models.StorageSchemePostgresOnly)
	require.NoError(t, err)

	_, err = f.store.InsertPaymentAttempt(ctx, &models.PaymentAttempt{
		PaymentID:              paymentID,
		MerchantID:             merchantID,
		AttemptID:              attemptID,
		Status:                 attemptStatus,
		Amount:                 5000,
		Currency:               "USD",
		Connector:              connector,
		ConnectorTransactionID: txnID,
		PaymentMethod:          models.PaymentMethodCard,
		CaptureMethod:          models.CaptureMethodManual,
		AuthenticationType:     models.AuthenticationTypeNoThreeDs,
	}, models.StorageSchemePostgresOnly)
	require.NoError(t, err)
}

func (f *fixture) attempt(t *testing.T, paymentID string) *models.PaymentAttempt {
	t.Helper()
	attempt, err := f.store.FindPaymentAttemptByAttemptIDMerchantID(context.Background(), paymentID+"_1", merchantID, models.StorageSchemePostgresOnly)
	require.NoError(t, err)
	return attempt
}

func apiError(t *testing.T, err error) *apierrors.APIError {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := apierrors.AsAPIError(err)
	require.True(t, ok, "expected an APIError, got %v", err)
	return apiErr
}

func strPtr(s string) *string { return &s }

func TestCancelPayment_VoidInitiated(t *testing.T) {
	tests := []struct {
		name   string
		reason *string
	}{
		{name: "reason stored verbatim", reason: strPtr("  Customer changed their mind!  ")},
		{name: "no reason", reason: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, "pay_cancel", models.IntentStatusRequiresCapture, models.AttemptStatusAuthorized, sagepay.Name, "T-1")
			f.transport.On("POST", "v1/transactions/T-1/instructions", 201, `{"instructionType":"abort","date":"2023-01-01T00:00:00Z"}`)

			resp, err := f.core.CancelPayment(context.Background(), merchantID, &models.CancelPaymentRequest{
				PaymentID:          "pay_cancel",
				CancellationReason: tt.reason,
			})
			require.NoError(t, err)

			assert.Equal(t, models.AttemptStatusVoidInitiated, resp.AttemptStatus)
			assert.Equal(t, tt.reason, resp.CancellationReason)
			assert.Equal(t, models.IntentStatusRequiresCapture, resp.Status)

			stored := f.attempt(t, "pay_cancel")
			assert.Equal(t, models.AttemptStatusVoidInitiated, stored.Status)
			assert.Equal(t, tt.reason, stored.CancellationReason)
			assert.Equal(t, int64(5000), stored.Amount)
			assert.Equal(t, "USD", stored.Currency)

			assert.Equal(t, []string{"v1/transactions/T-1/instructions"}, f.transport.Paths(sagepayURL))
		})
	}
}

func TestCancelPayment_IllegalStateDoesNotWrite(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_charged", models.IntentStatusSucceeded, models.AttemptStatusCharged, sagepay.Name, "T-1")
	before := f.store.Writes()

	_, err := f.core.CancelPayment(context.Background(), merchantID, &models.CancelPaymentRequest{
		PaymentID:          "pay_charged",
		CancellationReason: strPtr("duplicate"),
	})

	apiErr := apiError(t, err)
	assert.Equal(t, "IR_16", apiErr.Code)
	assert.Equal(t, "You cannot cancel the payment that has not been authorized", apiErr.Message)
	assert.Equal(t, before, f.store.Writes())
	assert.Empty(t, f.transport.Requests())
	assert.Equal(t, models.AttemptStatusCharged, f.attempt(t, "pay_charged").Status)
}

func TestCancelPayment_ConnectorRejectsVoid(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_reject", models.IntentStatusRequiresCapture, models.AttemptStatusAuthorized, sagepay.Name, "T-1")
	f.transport.On("POST", "v1/transactions/T-1/instructions", 400, `{"code":1018,"description":"Transaction already aborted"}`)

	resp, err := f.core.CancelPayment(context.Background(), merchantID, &models.CancelPaymentRequest{PaymentID: "pay_reject"})
	require.NoError(t, err)
	assert.Equal(t, models.AttemptStatusVoidFailed, resp.AttemptStatus)
	assert.Equal(t, "1018", resp.ErrorCode)
	assert.Equal(t, "Transaction already aborted", resp.ErrorMessage)
}

func TestCancelPayment_UnsupportedFlowFailsBeforeWrite(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_tp", models.IntentStatusRequiresCapture, models.AttemptStatusAuthorized, trustpay.Name, "inst_1")
	before := f.store.Writes()

	_, err := f.core.CancelPayment(context.Background(), merchantID, &models.CancelPaymentRequest{PaymentID: "pay_tp"})
	require.Error(t, err)
	assert.True(t, apierrors.IsConnectorErrorKind(err, apierrors.NotImplemented))
	assert.Equal(t, before, f.store.Writes())
	assert.Equal(t, models.AttemptStatusAuthorized, f.attempt(t, "pay_tp").Status)
}

func TestCancelPayment_InvalidIdentifiers(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		paymentID string
		code      string
	}{
		{name: "missing", paymentID: "", code: "IR_04"},
		{name: "client secret", paymentID: "pay_abc_secret_xyz", code: "IR_05"},
		{name: "wrong prefix", paymentID: "ref_abc", code: "IR_05"},
		{name: "too long", paymentID: "pay_" + strings.Repeat("a", 80), code: "IR_05"},
		{name: "unknown payment", paymentID: "pay_unknown", code: "HE_02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.core.CancelPayment(context.Background(), merchantID, &models.CancelPaymentRequest{PaymentID: tt.paymentID})
			assert.Equal(t, tt.code, apiError(t, err).Code)
		})
	}
}

func TestUnknownMerchant(t *testing.T) {
	f := newFixture(t)
	_, err := f.core.CancelPayment(context.Background(), "merchant_missing", &models.CancelPaymentRequest{PaymentID: "pay_x"})
	assert.Equal(t, "Merchant account does not exist in our records", apiError(t, err).Message)
}

func TestLoadTrackers_RepeatedReadsAreIdentical(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_idem", models.IntentStatusRequiresCapture, models.AttemptStatusAuthorized, sagepay.Name, "T-1")
	v := ValidateResult{MerchantID: merchantID, PaymentID: "pay_idem", Scheme: models.StorageSchemePostgresOnly}

	first, err := loadTrackers[types.Void](context.Background(), f.core, v, models.OperationCancel)
	require.NoError(t, err)
	second, err := loadTrackers[types.Void](context.Background(), f.core, v, models.OperationCancel)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCreateAndConfirm_ChainedAuthorize(t *testing.T) {
	f := newFixture(t)
	f.transport.
		On("POST", "v1/merchant-session-keys", 201, `{"merchantSessionKey":"sk_123","expiry":"2030-01-01T00:00:00Z"}`).
		On("POST", "v1/card-identifiers", 201, `{"cardIdentifier":"ci_456","expiry":"2030-01-01T00:00:00Z","cardType":"Visa"}`).
		On("POST", "v1/transactions", 201, `{"transactionId":"T-9","transactionType":"Payment","status":"Ok","statusCode":"0000","statusDetail":"Authorised","currency":"USD"}`)

	resp, err := f.core.CreatePayment(context.Background(), merchantID, &models.CreatePaymentRequest{
		Amount:     5000,
		Currency:   "usd",
		CustomerID: "cus_1",
		Email:      "jane@example.com",
		Confirm:    true,
		PaymentMethodData: &models.PaymentMethodData{Card: &models.Card{
			CardNumber:     "4929000000006",
			CardExpMonth:   "3",
			CardExpYear:    "2029",
			CardHolderName: "Jane Doe",
			CardCVC:        "123",
		}},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.PaymentID, "pay_"))
	assert.True(t, strings.HasPrefix(resp.ClientSecret, resp.PaymentID+"_secret_"))
	assert.Equal(t, models.IntentStatusSucceeded, resp.Status)
	assert.Equal(t, models.AttemptStatusCharged, resp.AttemptStatus)
	assert.Equal(t, sagepay.Name, resp.Connector)
	assert.Equal(t, "T-9", resp.ConnectorTransactionID)
	assert.Equal(t, "USD", resp.Currency)

	assert.Equal(t, []string{"v1/merchant-session-keys", "v1/card-identifiers", "v1/transactions"}, f.transport.Paths(sagepayURL))
	auth := f.transport.Requests()[2]
	assert.Contains(t, string(auth.Body), `"cardIdentifier":"ci_456"`)
	assert.Contains(t, string(auth.Body), `"merchantSessionKey":"sk_123"`)
	assert.Contains(t, string(auth.Body), `"customerEmail":"jane@example.com"`)

	tokenize := f.transport.Requests()[1]
	assert.Contains(t, string(tokenize.Body), `"securityCode":"123"`)

	stored := f.attempt(t, resp.PaymentID)
	require.NotEmpty(t, stored.PaymentToken)
	vaulted, err := f.vault.GetPaymentMethod(context.Background(), stored.PaymentToken)
	require.NoError(t, err)
	assert.Empty(t, vaulted.Card.CardCVC)

	cr, err := f.store.FindConnectorResponseByPaymentIDMerchantIDAttemptID(context.Background(), resp.PaymentID, merchantID, stored.AttemptID, models.StorageSchemePostgresOnly)
	require.NoError(t, err)
	assert.Equal(t, "T-9", cr.ConnectorTransactionID)

	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, string(models.OperationCreate), f.publisher.events[0].Operation)
	assert.Equal(t, models.IntentStatusRequiresConfirmation, f.publisher.events[0].State)
	assert.Equal(t, models.IntentStatusRequiresConfirmation, f.publisher.events[1].PreviousState)
	assert.Equal(t, models.IntentStatusSucceeded, f.publisher.events[1].State)
}

func TestConfirm_PreTaskFailureLeavesPaymentUntouched(t *testing.T) {
	f := newFixture(t)
	f.transport.
		On("POST", "v1/merchant-session-keys", 201, `{"merchantSessionKey":"sk_123"}`).
		On("POST", "v1/card-identifiers", 422, `{"errors":[{"code":1005,"description":"Invalid card number","property":"cardDetails.cardNumber"}]}`)

	created, err := f.core.CreatePayment(context.Background(), merchantID, &models.CreatePaymentRequest{
		Amount:   1200,
		Currency: "GBP",
		PaymentMethodData: &models.PaymentMethodData{Card: &models.Card{
			CardNumber: "1234", CardExpMonth: "1", CardExpYear: "2030",
		}},
	})
	require.NoError(t, err)
	before := f.store.Writes()

	_, err = f.core.ConfirmPayment(context.Background(), merchantID, &models.ConfirmPaymentRequest{
		PaymentID:    created.PaymentID,
		ClientSecret: created.ClientSecret,
	})
	require.Error(t, err)

	var ce *apierrors.ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "CardTokenize", ce.Step)
	assert.Equal(t, []string{"v1/merchant-session-keys", "v1/card-identifiers"}, f.transport.Paths(sagepayURL))
	assert.Equal(t, before, f.store.Writes())
	assert.Equal(t, models.AttemptStatusConfirmationAwaited, f.attempt(t, created.PaymentID).Status)
}

func TestConfirm_ConnectorDeclineMarksPaymentFailed(t *testing.T) {
	f := newFixture(t)
	f.transport.
		On("POST", "v1/merchant-session-keys", 201, `{"merchantSessionKey":"sk_123"}`).
		On("POST", "v1/card-identifiers", 201, `{"cardIdentifier":"ci_456"}`).
		On("POST", "v1/transactions", 422, `{"code":1004,"description":"The Amount value is invalid"}`)

	resp, err := f.core.CreatePayment(context.Background(), merchantID, &models.CreatePaymentRequest{
		Amount:   1,
		Currency: "USD",
		Confirm:  true,
		PaymentMethodData: &models.PaymentMethodData{Card: &models.Card{
			CardNumber: "4929000000006", CardExpMonth: "3", CardExpYear: "2029", CardCVC: "123",
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusFailed, resp.Status)
	assert.Equal(t, models.AttemptStatusFailure, resp.AttemptStatus)
	assert.Equal(t, "1004", resp.ErrorCode)
	assert.Equal(t, "The Amount value is invalid", resp.ErrorMessage)
}

func TestConfirm_RejectsWrongClientSecret(t *testing.T) {
	f := newFixture(t)
	created, err := f.core.CreatePayment(context.Background(), merchantID, &models.CreatePaymentRequest{Amount: 100, Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusRequiresPaymentMethod, created.Status)

	_, err = f.core.ConfirmPayment(context.Background(), merchantID, &models.ConfirmPaymentRequest{
		PaymentID:    created.PaymentID,
		ClientSecret: created.PaymentID + "_secret_wrong",
	})
	assert.Equal(t, "IR_06", apiError(t, err).Code)
}

func TestConfirm_RequiresPaymentMethod(t *testing.T) {
	f := newFixture(t)
	created, err := f.core.CreatePayment(context.Background(), merchantID, &models.CreatePaymentRequest{Amount: 100, Currency: "USD"})
	require.NoError(t, err)

	_, err = f.core.ConfirmPayment(context.Background(), merchantID, &models.ConfirmPaymentRequest{PaymentID: created.PaymentID})
	assert.Equal(t, "IR_04", apiError(t, err).Code)

	_, err = f.core.ConfirmPayment(context.Background(), merchantID, &models.ConfirmPaymentRequest{
		PaymentID:    created.PaymentID,
		PaymentToken: "token_expired",
	})
	assert.Equal(t, "IR_06", apiError(t, err).Code)
}

func TestCreatePayment_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  models.CreatePaymentRequest
		code string
	}{
		{name: "zero amount", req: models.CreatePaymentRequest{Amount: 0, Currency: "USD"}, code: "IR_05"},
		{name: "bad currency", req: models.CreatePaymentRequest{Amount: 10, Currency: "US"}, code: "IR_05"},
		{name: "bad capture method", req: models.CreatePaymentRequest{Amount: 10, Currency: "USD", CaptureMethod: "later"}, code: "IR_05"},
		{name: "unknown connector", req: models.CreatePaymentRequest{Amount: 10, Currency: "USD", Connector: "acme"}, code: "IR_07"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.core.CreatePayment(context.Background(), merchantID, &tt.req)
			assert.Equal(t, tt.code, apiError(t, err).Code)
		})
	}
}

func TestCreatePayment_DuplicateID(t *testing.T) {
	f := newFixture(t)
	req := &models.CreatePaymentRequest{PaymentID: "pay_dup", Amount: 100, Currency: "USD"}

	_, err := f.core.CreatePayment(context.Background(), merchantID, req)
	require.NoError(t, err)

	_, err = f.core.CreatePayment(context.Background(), merchantID, req)
	apiErr := apiError(t, err)
	assert.Equal(t, "HE_01", apiErr.Code)
	assert.Contains(t, apiErr.Message, "pay_dup")
}

func TestCapturePayment(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_cap", models.IntentStatusRequiresCapture, models.AttemptStatusAuthorized, sagepay.Name, "T-1")
	f.transport.On("POST", "v1/transactions/T-1/instructions", 201, `{"instructionType":"release","date":"2023-01-01T00:00:00Z"}`)

	amount := int64(3000)
	resp, err := f.core.CapturePayment(context.Background(), merchantID, &models.CapturePaymentRequest{
		PaymentID:       "pay_cap",
		AmountToCapture: &amount,
	})
	require.NoError(t, err)

	assert.Equal(t, models.IntentStatusSucceeded, resp.Status)
	assert.Equal(t, models.AttemptStatusCharged, resp.AttemptStatus)
	require.NotNil(t, resp.AmountCaptured)
	assert.Equal(t, int64(3000), *resp.AmountCaptured)
	assert.Contains(t, string(f.transport.Requests()[0].Body), `"amount":3000`)
}

func TestCapturePayment_Preconditions(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_pending", models.IntentStatusProcessing, models.AttemptStatusPending, sagepay.Name, "T-1")
	f.seed(t, "pay_big", models.IntentStatusRequiresCapture, models.AttemptStatusAuthorized, sagepay.Name, "T-2")

	_, err := f.core.CapturePayment(context.Background(), merchantID, &models.CapturePaymentRequest{PaymentID: "pay_pending"})
	assert.Equal(t, "IR_16", apiError(t, err).Code)

	tooMuch := int64(9000)
	_, err = f.core.CapturePayment(context.Background(), merchantID, &models.CapturePaymentRequest{PaymentID: "pay_big", AmountToCapture: &tooMuch})
	assert.Equal(t, "IR_06", apiError(t, err).Code)
	assert.Empty(t, f.transport.Requests())
}

func TestSyncPayment_MissingConnectorTransactionID(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_sync", models.IntentStatusProcessing, models.AttemptStatusPending, sagepay.Name, "")
	before := f.store.Writes()

	_, err := f.core.RetrievePayment(context.Background(), merchantID, &models.RetrievePaymentRequest{
		PaymentID: "pay_sync",
		ForceSync: true,
	})
	require.Error(t, err)
	assert.True(t, apierrors.IsConnectorErrorKind(err, apierrors.MissingConnectorTransactionID))
	assert.Equal(t, "CE_05", apierrors.From(err).Code)
	assert.Empty(t, f.transport.Requests())
	assert.Equal(t, before, f.store.Writes())
}

func TestSyncPayment_CallModes(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_sync", models.IntentStatusProcessing, models.AttemptStatusPending, sagepay.Name, "T-1")
	f.transport.On("GET", "v1/transactions/T-1", 200, `{"transactionId":"T-1","transactionType":"Payment","status":"Ok","statusCode":"0000"}`)

	resp, err := f.core.RetrievePayment(context.Background(), merchantID, &models.RetrievePaymentRequest{PaymentID: "pay_sync"})
	require.NoError(t, err)
	assert.Equal(t, models.AttemptStatusPending, resp.AttemptStatus)
	assert.Empty(t, f.transport.Requests(), "no call without force_sync")

	resp, err = f.core.RetrievePayment(context.Background(), merchantID, &models.RetrievePaymentRequest{PaymentID: "pay_sync", ForceSync: true})
	require.NoError(t, err)
	assert.Equal(t, models.AttemptStatusCharged, resp.AttemptStatus)
	assert.Equal(t, models.IntentStatusSucceeded, resp.Status)
	require.NotNil(t, resp.AmountCaptured)
	assert.Equal(t, int64(5000), *resp.AmountCaptured)
	assert.Len(t, f.transport.Requests(), 1)

	resp, err = f.core.RetrievePayment(context.Background(), merchantID, &models.RetrievePaymentRequest{PaymentID: "pay_sync", ForceSync: true})
	require.NoError(t, err)
	assert.Equal(t, models.AttemptStatusCharged, resp.AttemptStatus)
	assert.Len(t, f.transport.Requests(), 1, "terminal attempts are not re-synced")
}

func TestSyncPayment_HandleResponseSkipsNetwork(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_hook", models.IntentStatusRequiresCustomerAction, models.AttemptStatusAuthenticationPending, sagepay.Name, "T-3")

	body := []byte(`{"transactionId":"T-3","transactionType":"Deferred","status":"Ok","statusCode":"0000"}`)
	resp, err := f.core.SyncPayment(context.Background(), merchantID, &models.RetrievePaymentRequest{PaymentID: "pay_hook"}, services.HandleResponse(body))
	require.NoError(t, err)

	assert.Equal(t, models.AttemptStatusAuthorized, resp.AttemptStatus)
	assert.Equal(t, models.IntentStatusRequiresCapture, resp.Status)
	assert.Empty(t, f.transport.Requests())
}

func TestSelectConnector_PriorityRouting(t *testing.T) {
	f := newFixture(t)
	merchant := &models.MerchantAccount{
		MerchantID:       merchantID,
		RoutingAlgorithm: &models.RoutingAlgorithm{Kind: "priority", Connectors: []string{"adyen", trustpay.Name, sagepay.Name}},
	}

	connector, err := f.core.selectConnector(context.Background(), merchant, "", "")
	require.NoError(t, err)
	assert.Equal(t, trustpay.Name, connector)

	connector, err = f.core.selectConnector(context.Background(), merchant, sagepay.Name, trustpay.Name)
	require.NoError(t, err)
	assert.Equal(t, sagepay.Name, connector, "request override wins")

	_, err = f.core.selectConnector(context.Background(), &models.MerchantAccount{MerchantID: merchantID}, "", "")
	assert.Equal(t, "IR_08", apiError(t, err).Code)

	_, err = f.core.selectConnector(context.Background(), merchant, "acme", "")
	assert.Equal(t, "IR_07", apiError(t, err).Code)
}

func TestLoadTrackers_AttemptStatusGuardsConnectorCall(t *testing.T) {
	tests := []struct {
		name    string
		intent  models.IntentStatus
		attempt models.AttemptStatus
		run     func(c *Core) error
	}{
		{
			name:    "capture while void is in flight",
			intent:  models.IntentStatusRequiresCapture,
			attempt: models.AttemptStatusVoidInitiated,
			run: func(c *Core) error {
				_, err := c.CapturePayment(context.Background(), merchantID, &models.CapturePaymentRequest{PaymentID: "pay_guard"})
				return err
			},
		},
		{
			name:    "capture after void failed",
			intent:  models.IntentStatusRequiresCapture,
			attempt: models.AttemptStatusVoidFailed,
			run: func(c *Core) error {
				_, err := c.CapturePayment(context.Background(), merchantID, &models.CapturePaymentRequest{PaymentID: "pay_guard"})
				return err
			},
		},
		{
			name:    "cancel twice",
			intent:  models.IntentStatusRequiresCapture,
			attempt: models.AttemptStatusVoidInitiated,
			run: func(c *Core) error {
				_, err := c.CancelPayment(context.Background(), merchantID, &models.CancelPaymentRequest{PaymentID: "pay_guard"})
				return err
			},
		},
		{
			name:    "confirm an already charged attempt",
			intent:  models.IntentStatusRequiresConfirmation,
			attempt: models.AttemptStatusCharged,
			run: func(c *Core) error {
				_, err := c.ConfirmPayment(context.Background(), merchantID, &models.ConfirmPaymentRequest{
					PaymentID:         "pay_guard",
					PaymentMethodData: &models.PaymentMethodData{Card: &models.Card{CardNumber: "4929000000006", CardExpMonth: "3", CardExpYear: "2029"}},
				})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, "pay_guard", tt.intent, tt.attempt, sagepay.Name, "T-1")
			f.transport.On("", "", 201, `{}`)
			before := f.store.Writes()

			err := tt.run(f.core)

			apiErr := apiError(t, err)
			assert.Equal(t, "IR_16", apiErr.Code)
			assert.Contains(t, apiErr.Message, string(tt.attempt))
			assert.Empty(t, f.transport.Requests())
			assert.Equal(t, before, f.store.Writes())
			assert.Equal(t, tt.attempt, f.attempt(t, "pay_guard").Status)
		})
	}
}

func TestCancelThenCapture_DoesNotReachConnector(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_cc", models.IntentStatusRequiresCapture, models.AttemptStatusAuthorized, sagepay.Name, "T-1")
	f.transport.On("POST", "v1/transactions/T-1/instructions", 201, `{"instructionType":"abort"}`)

	_, err := f.core.CancelPayment(context.Background(), merchantID, &models.CancelPaymentRequest{PaymentID: "pay_cc"})
	require.NoError(t, err)

	_, err = f.core.CapturePayment(context.Background(), merchantID, &models.CapturePaymentRequest{PaymentID: "pay_cc"})
	assert.Equal(t, "IR_16", apiError(t, err).Code)
	assert.Len(t, f.transport.Requests(), 1)
	assert.Equal(t, models.AttemptStatusVoidInitiated, f.attempt(t, "pay_cc").Status)
}

// brokenIntentStore fails every intent update, after the attempt of the same
// tracker update has already been written.
type brokenIntentStore struct {
	*inmemory.Store
}

func (s *brokenIntentStore) UpdatePaymentIntent(context.Context, *models.PaymentIntent, models.PaymentIntentUpdate, models.StorageScheme) (*models.PaymentIntent, error) {
	return nil, apierrors.Storage("update payment intent", errors.New("connection reset by peer"))
}

func (s *brokenIntentStore) WithTx(ctx context.Context, fn func(tx interfaces.StorageInterface) error) error {
	return s.Store.WithTx(ctx, func(interfaces.StorageInterface) error { return fn(s) })
}

func TestConfirm_TrackerUpdateIsAtomic(t *testing.T) {
	f := newFixture(t)
	f.transport.
		On("POST", "v1/merchant-session-keys", 201, `{"merchantSessionKey":"sk_123"}`).
		On("POST", "v1/card-identifiers", 201, `{"cardIdentifier":"ci_456"}`).
		On("POST", "v1/transactions", 201, `{"transactionId":"T-9","status":"Ok","statusCode":"0000"}`)

	created, err := f.core.CreatePayment(context.Background(), merchantID, &models.CreatePaymentRequest{
		Amount:   5000,
		Currency: "USD",
		PaymentMethodData: &models.PaymentMethodData{Card: &models.Card{
			CardNumber: "4929000000006", CardExpMonth: "3", CardExpYear: "2029", CardCVC: "123",
		}},
	})
	require.NoError(t, err)
	writes := f.store.Writes()

	broken := NewCore(&brokenIntentStore{f.store}, f.vault, f.publisher, f.core.steps, time.Minute)
	_, err = broken.ConfirmPayment(context.Background(), merchantID, &models.ConfirmPaymentRequest{PaymentID: created.PaymentID})
	require.Error(t, err)
	assert.Equal(t, "HE_00", apierrors.From(err).Code)

	assert.Equal(t, writes, f.store.Writes())
	assert.Equal(t, models.AttemptStatusConfirmationAwaited, f.attempt(t, created.PaymentID).Status)
	intent, err := f.store.FindPaymentIntentByPaymentIDMerchantID(context.Background(), created.PaymentID, merchantID, models.StorageSchemePostgresOnly)
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusRequiresConfirmation, intent.Status)
	_, err = f.store.FindConnectorResponseByPaymentIDMerchantIDAttemptID(context.Background(), created.PaymentID, merchantID, created.PaymentID+"_1", models.StorageSchemePostgresOnly)
	assert.True(t, apierrors.IsNotFound(err))

	require.Len(t, f.publisher.events, 1, "rolled back changes are not announced")
	assert.Equal(t, string(models.OperationCreate), f.publisher.events[0].Operation)
}
