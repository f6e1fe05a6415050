package refunds

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/config"
	"github.com/akylbek/payment-system/payment-switch/internal/connector/sagepay"
	"github.com/akylbek/payment-system/payment-switch/internal/connector/trustpay"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/repository/inmemory"
	"github.com/akylbek/payment-system/payment-switch/internal/services"
	"github.com/akylbek/payment-system/payment-switch/internal/services/servicestest"
)

const merchantID = "merchant_1"

type fixture struct {
	store     *inmemory.Store
	transport *servicestest.Transport
	core      *Core
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := inmemory.NewStore()
	_, err := store.InsertMerchantAccount(ctx, &models.MerchantAccount{MerchantID: merchantID})
	require.NoError(t, err)
	for name, details := range map[string]string{
		sagepay.Name:  `{"auth_type":"HeaderKey","api_key":"integration-key","key1":"acme"}`,
		trustpay.Name: `{"auth_type":"HeaderKey","api_key":"tp-key"}`,
	} {
		_, err = store.InsertMerchantConnectorAccount(ctx, &models.MerchantConnectorAccount{
			MerchantID:              merchantID,
			ConnectorName:           name,
			ConnectorAccountDetails: json.RawMessage(details),
		})
		require.NoError(t, err)
	}

	registry := services.NewRegistry()
	sagepay.Register(registry)
	trustpay.Register(registry)

	transport := servicestest.NewTransport()
	return &fixture{
		store:     store,
		transport: transport,
		core: NewCore(store, services.StepContext{
			Connectors: config.Connectors{
				sagepay.Name:  {BaseURL: "https://sagepay.test/api/"},
				trustpay.Name: {BaseURL: "https://trustpay.test/"},
			},
			Transport: transport,
			Registry:  registry,
		}),
	}
}

func (f *fixture) seed(t *testing.T, paymentID string, status models.IntentStatus, connector string, captured *int64) {
	t.Helper()
	ctx := context.Background()
	_, err := f.store.InsertPaymentIntent(ctx, &models.PaymentIntent{
		PaymentID:       paymentID,
		MerchantID:      merchantID,
		Status:          status,
		Amount:          5000,
		AmountCaptured:  captured,
		Currency:        "GBP",
		ActiveAttemptID: paymentID + "_1",
	}, models.StorageSchemePostgresOnly)
	require.NoError(t, err)
	_, err = f.store.InsertPaymentAttempt(ctx, &models.PaymentAttempt{
		PaymentID:              paymentID,
		MerchantID:             merchantID,
		AttemptID:              paymentID + "_1",
		Status:                 models.AttemptStatusCharged,
		Amount:                 5000,
		Currency:               "GBP",
		Connector:              connector,
		ConnectorTransactionID: "T-1",
	}, models.StorageSchemePostgresOnly)
	require.NoError(t, err)
}

func apiCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	apiErr, ok := apierrors.AsAPIError(err)
	if !ok {
		apiErr = apierrors.From(err)
	}
	return apiErr.Code
}

func int64Ptr(v int64) *int64 { return &v }

func TestCreateRefund_Success(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_r1", models.IntentStatusSucceeded, sagepay.Name, nil)
	f.transport.On("POST", "v1/transactions", 201, `{"transactionId":"R-1","transactionType":"Refund","status":"Ok"}`)

	refund, err := f.core.CreateRefund(context.Background(), merchantID, &models.CreateRefundRequest{
		PaymentID: "pay_r1",
		Amount:    int64Ptr(1500),
		Reason:    "damaged",
	})
	require.NoError(t, err)

	assert.Equal(t, models.RefundStatusSuccess, refund.Status)
	assert.Equal(t, "R-1", refund.ConnectorRefundID)
	assert.Equal(t, int64(1500), refund.RefundAmount)
	assert.Equal(t, "T-1", refund.ConnectorTransactionID)
	assert.Contains(t, refund.RefundID, refundIDPrefix)

	stored, err := f.store.FindRefundByMerchantIDRefundID(context.Background(), merchantID, refund.RefundID, models.StorageSchemePostgresOnly)
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusSuccess, stored.Status)
	require.Len(t, f.transport.Requests(), 1)
}

func TestCreateRefund_DefaultsToRemainingAmount(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_r2", models.IntentStatusSucceeded, sagepay.Name, int64Ptr(4000))
	f.transport.On("POST", "v1/transactions", 201, `{"transactionId":"R-2","transactionType":"Refund","status":"Ok"}`)

	first, err := f.core.CreateRefund(context.Background(), merchantID, &models.CreateRefundRequest{
		PaymentID: "pay_r2",
		Amount:    int64Ptr(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), first.RefundAmount)

	rest, err := f.core.CreateRefund(context.Background(), merchantID, &models.CreateRefundRequest{PaymentID: "pay_r2"})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), rest.RefundAmount)

	_, err = f.core.CreateRefund(context.Background(), merchantID, &models.CreateRefundRequest{
		PaymentID: "pay_r2",
		Amount:    int64Ptr(1),
	})
	assert.Equal(t, "IR_06", apiCode(t, err))
}

func TestCreateRefund_Rejected(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_r3", models.IntentStatusSucceeded, sagepay.Name, nil)
	f.transport.On("POST", "v1/transactions", 422, `{"errors":[{"code":1008,"description":"Refund amount exceeds the original transaction"}]}`)

	refund, err := f.core.CreateRefund(context.Background(), merchantID, &models.CreateRefundRequest{
		PaymentID: "pay_r3",
		Amount:    int64Ptr(500),
	})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusFailure, refund.Status)
	assert.NotEmpty(t, refund.ErrorCode)
}

func TestCreateRefund_Preconditions(t *testing.T) {
	tests := []struct {
		name      string
		paymentID string
		status    models.IntentStatus
		connector string
		req       *models.CreateRefundRequest
		code      string
	}{
		{
			name:      "missing payment id",
			paymentID: "pay_p1",
			status:    models.IntentStatusSucceeded,
			connector: sagepay.Name,
			req:       &models.CreateRefundRequest{},
			code:      "IR_04",
		},
		{
			name:      "unknown payment",
			paymentID: "pay_p2",
			status:    models.IntentStatusSucceeded,
			connector: sagepay.Name,
			req:       &models.CreateRefundRequest{PaymentID: "pay_missing"},
			code:      "HE_02",
		},
		{
			name:      "payment not succeeded",
			paymentID: "pay_p3",
			status:    models.IntentStatusRequiresCapture,
			connector: sagepay.Name,
			req:       &models.CreateRefundRequest{PaymentID: "pay_p3"},
			code:      "IR_16",
		},
		{
			name:      "amount above captured",
			paymentID: "pay_p4",
			status:    models.IntentStatusSucceeded,
			connector: sagepay.Name,
			req:       &models.CreateRefundRequest{PaymentID: "pay_p4", Amount: int64Ptr(5001)},
			code:      "IR_06",
		},
		{
			name:      "non-positive amount",
			paymentID: "pay_p5",
			status:    models.IntentStatusSucceeded,
			connector: sagepay.Name,
			req:       &models.CreateRefundRequest{PaymentID: "pay_p5", Amount: int64Ptr(0)},
			code:      "IR_05",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, tt.paymentID, tt.status, tt.connector, nil)

			_, err := f.core.CreateRefund(context.Background(), merchantID, tt.req)
			assert.Equal(t, tt.code, apiCode(t, err))
			assert.Empty(t, f.transport.Requests())

			refunds, err := f.store.FindRefundsByPaymentIDMerchantID(context.Background(), tt.paymentID, merchantID, models.StorageSchemePostgresOnly)
			require.NoError(t, err)
			assert.Empty(t, refunds)
		})
	}
}

func TestCreateRefund_Trustpay(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_tp", models.IntentStatusSucceeded, trustpay.Name, nil)
	f.transport.On("POST", "instance/T-1/refund", 200, `{"status":1,"instance_id":"TP-R1"}`)

	refund, err := f.core.CreateRefund(context.Background(), merchantID, &models.CreateRefundRequest{PaymentID: "pay_tp"})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusPending, refund.Status)
	assert.Equal(t, "TP-R1", refund.ConnectorRefundID)
	assert.Equal(t, int64(5000), refund.RefundAmount)

	reqs := f.transport.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, string(reqs[0].Body), "reference="+refund.RefundID)
}

func TestCreateRefund_MissingConnectorAccount(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_unknown", models.IntentStatusSucceeded, "adyen", nil)

	_, err := f.core.CreateRefund(context.Background(), merchantID, &models.CreateRefundRequest{PaymentID: "pay_unknown"})
	assert.Equal(t, "HE_02", apiCode(t, err))
	assert.Empty(t, f.transport.Requests())

	refunds, err := f.store.FindRefundsByPaymentIDMerchantID(context.Background(), "pay_unknown", merchantID, models.StorageSchemePostgresOnly)
	require.NoError(t, err)
	assert.Empty(t, refunds)
}

func TestCreateRefund_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_dup", models.IntentStatusSucceeded, sagepay.Name, nil)
	f.transport.On("POST", "v1/transactions", 201, `{"transactionId":"R-9","transactionType":"Refund","status":"Ok"}`)

	req := &models.CreateRefundRequest{RefundID: "ref_fixed", PaymentID: "pay_dup", Amount: int64Ptr(100)}
	_, err := f.core.CreateRefund(context.Background(), merchantID, req)
	require.NoError(t, err)

	_, err = f.core.CreateRefund(context.Background(), merchantID, req)
	assert.Equal(t, "HE_01", apiCode(t, err))
	assert.Len(t, f.transport.Requests(), 1)
}

func TestRetrieveRefund(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "pay_sync", models.IntentStatusSucceeded, sagepay.Name, nil)
	f.transport.
		On("POST", "v1/transactions", 201, `{"transactionId":"R-5","transactionType":"Refund","status":"Pending"}`).
		On("GET", "v1/transactions/R-5", 200, `{"transactionId":"R-5","transactionType":"Refund","status":"Ok"}`)

	created, err := f.core.CreateRefund(context.Background(), merchantID, &models.CreateRefundRequest{
		PaymentID: "pay_sync",
		Amount:    int64Ptr(700),
	})
	require.NoError(t, err)
	require.Equal(t, models.RefundStatusPending, created.Status)

	cached, err := f.core.RetrieveRefund(context.Background(), merchantID, &models.RetrieveRefundRequest{RefundID: created.RefundID})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusPending, cached.Status)
	assert.Len(t, f.transport.Requests(), 1)

	synced, err := f.core.RetrieveRefund(context.Background(), merchantID, &models.RetrieveRefundRequest{RefundID: created.RefundID, ForceSync: true})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusSuccess, synced.Status)
	assert.Len(t, f.transport.Requests(), 2)

	// Final refunds are not synced again.
	_, err = f.core.RetrieveRefund(context.Background(), merchantID, &models.RetrieveRefundRequest{RefundID: created.RefundID, ForceSync: true})
	require.NoError(t, err)
	assert.Len(t, f.transport.Requests(), 2)
}

func TestRetrieveRefund_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.core.RetrieveRefund(context.Background(), merchantID, &models.RetrieveRefundRequest{RefundID: "ref_nope"})
	assert.Equal(t, "HE_02", apiCode(t, err))

	_, err = f.core.RetrieveRefund(context.Background(), merchantID, &models.RetrieveRefundRequest{})
	assert.Equal(t, "IR_04", apiCode(t, err))
}

func TestCreateRefund_TransportFailureFailsRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "pay_down", models.IntentStatusSucceeded, sagepay.Name, nil)
	f.transport.Err = errors.New("dial tcp: i/o timeout")

	_, err := f.core.CreateRefund(ctx, merchantID, &models.CreateRefundRequest{PaymentID: "pay_down", RefundID: "ref_1"})
	require.Error(t, err)

	stored, err := f.store.FindRefundByMerchantIDRefundID(ctx, merchantID, "ref_1", models.StorageSchemePostgresOnly)
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusFailure, stored.Status)
	assert.Equal(t, string(apierrors.ProcessingStepFailed), stored.ErrorCode)
	assert.Contains(t, stored.ErrorMessage, "i/o timeout")

	synced, err := f.core.RetrieveRefund(ctx, merchantID, &models.RetrieveRefundRequest{RefundID: "ref_1", ForceSync: true})
	require.NoError(t, err)
	assert.Equal(t, models.RefundStatusFailure, synced.Status)
	assert.Len(t, f.transport.Requests(), 1, "failed refunds are final")

	f.transport.Err = nil
	f.transport.On("POST", "v1/transactions", 201, `{"transactionId":"R-2","transactionType":"Refund","status":"Ok"}`)
	retry, err := f.core.CreateRefund(ctx, merchantID, &models.CreateRefundRequest{PaymentID: "pay_down", RefundID: "ref_2"})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), retry.RefundAmount)
	assert.Equal(t, models.RefundStatusSuccess, retry.Status)
}
