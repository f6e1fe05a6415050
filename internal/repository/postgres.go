package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/interfaces"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
)

// PostgresStore implements the storage interface on PostgreSQL. Updates are
// optimistic: they only apply when the stored version matches the version
// the caller loaded.
type PostgresStore struct {
	db *sql.DB
	q  querier
}

// querier is the part of *sql.DB and *sql.Tx the queries run on.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

// WithTx runs fn against a store bound to one database transaction. The
// transaction commits when fn returns nil and rolls back otherwise. Nested
// calls join the enclosing transaction.
func (r *PostgresStore) WithTx(ctx context.Context, fn func(tx interfaces.StorageInterface) error) error {
	if _, inTx := r.q.(*sql.Tx); inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apierrors.Storage("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&PostgresStore{db: r.db, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apierrors.Storage("commit transaction", err)
	}
	return nil
}

func (r *PostgresStore) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS merchant_account (
			merchant_id VARCHAR(64) PRIMARY KEY,
			storage_scheme VARCHAR(32) NOT NULL DEFAULT 'postgres_only',
			routing_algorithm JSONB,
			return_url TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS merchant_connector_account (
			merchant_id VARCHAR(64) NOT NULL,
			connector_name VARCHAR(64) NOT NULL,
			connector_account_details JSONB NOT NULL,
			disabled BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (merchant_id, connector_name)
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			customer_id VARCHAR(64) NOT NULL,
			merchant_id VARCHAR(64) NOT NULL,
			name VARCHAR(255),
			email VARCHAR(255),
			phone VARCHAR(255),
			description TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (customer_id, merchant_id)
		)`,
		`CREATE TABLE IF NOT EXISTS address (
			address_id VARCHAR(64) PRIMARY KEY,
			merchant_id VARCHAR(64) NOT NULL,
			customer_id VARCHAR(64),
			line1 TEXT, line2 TEXT, line3 TEXT,
			city VARCHAR(128), state VARCHAR(128), zip VARCHAR(32), country VARCHAR(2),
			first_name VARCHAR(255), last_name VARCHAR(255), phone_number VARCHAR(64),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS payment_intent (
			payment_id VARCHAR(64) NOT NULL,
			merchant_id VARCHAR(64) NOT NULL,
			status VARCHAR(64) NOT NULL,
			amount BIGINT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			amount_captured BIGINT,
			customer_id VARCHAR(64),
			description TEXT,
			return_url TEXT,
			shipping_address_id VARCHAR(64),
			billing_address_id VARCHAR(64),
			client_secret VARCHAR(128),
			active_attempt_id VARCHAR(64) NOT NULL,
			metadata JSONB,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			modified_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (payment_id, merchant_id)
		)`,
		`CREATE TABLE IF NOT EXISTS payment_attempt (
			attempt_id VARCHAR(64) NOT NULL,
			payment_id VARCHAR(64) NOT NULL,
			merchant_id VARCHAR(64) NOT NULL,
			status VARCHAR(64) NOT NULL,
			amount BIGINT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			connector VARCHAR(64),
			connector_transaction_id VARCHAR(128),
			payment_method VARCHAR(32),
			payment_token VARCHAR(128),
			capture_method VARCHAR(32),
			authentication_type VARCHAR(32),
			amount_to_capture BIGINT,
			cancellation_reason TEXT,
			error_code VARCHAR(255),
			error_message TEXT,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			modified_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (attempt_id, merchant_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_attempt_payment_id ON payment_attempt(payment_id, merchant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_attempt_connector_txn ON payment_attempt(merchant_id, connector_transaction_id)`,
		`CREATE TABLE IF NOT EXISTS connector_response (
			payment_id VARCHAR(64) NOT NULL,
			merchant_id VARCHAR(64) NOT NULL,
			attempt_id VARCHAR(64) NOT NULL,
			connector_name VARCHAR(64),
			connector_transaction_id VARCHAR(128),
			authentication_data JSONB,
			encoded_data TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			modified_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (payment_id, merchant_id, attempt_id)
		)`,
		`CREATE TABLE IF NOT EXISTS refund (
			refund_id VARCHAR(64) NOT NULL,
			payment_id VARCHAR(64) NOT NULL,
			merchant_id VARCHAR(64) NOT NULL,
			attempt_id VARCHAR(64) NOT NULL,
			connector VARCHAR(64) NOT NULL,
			connector_transaction_id VARCHAR(128) NOT NULL,
			connector_refund_id VARCHAR(128),
			status VARCHAR(32) NOT NULL,
			refund_amount BIGINT NOT NULL,
			total_amount BIGINT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			reason TEXT,
			error_code VARCHAR(255),
			error_message TEXT,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			modified_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (refund_id, merchant_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refund_payment_id ON refund(payment_id, merchant_id)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// translate maps driver errors onto the storage sentinels.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apierrors.Storage(op, apierrors.ErrValueNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return apierrors.Storage(op, apierrors.ErrDuplicateValue)
	}
	return apierrors.Storage(op, err)
}

// checkVersioned turns an update that matched no row into a concurrency
// failure, or not-found when the row is gone entirely.
func checkVersioned(op string, result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return apierrors.Storage(op, err)
	}
	if rows == 0 {
		return apierrors.Storage(op, apierrors.ErrConcurrentUpdate)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	out := v.String
	return &out
}

const intentColumns = `payment_id, merchant_id, status, amount, currency, amount_captured, customer_id,
	description, return_url, shipping_address_id, billing_address_id, client_secret,
	active_attempt_id, metadata, version, created_at, modified_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntent(row rowScanner) (*models.PaymentIntent, error) {
	var (
		intent                                     models.PaymentIntent
		amountCaptured                             sql.NullInt64
		customerID, description, returnURL, secret sql.NullString
		shippingID, billingID                      sql.NullString
		metadata                                   []byte
	)
	err := row.Scan(&intent.PaymentID, &intent.MerchantID, &intent.Status, &intent.Amount, &intent.Currency,
		&amountCaptured, &customerID, &description, &returnURL, &shippingID, &billingID, &secret,
		&intent.ActiveAttemptID, &metadata, &intent.Version, &intent.CreatedAt, &intent.ModifiedAt)
	if err != nil {
		return nil, err
	}
	intent.AmountCaptured = int64Ptr(amountCaptured)
	intent.CustomerID = customerID.String
	intent.Description = description.String
	intent.ReturnURL = returnURL.String
	intent.ShippingAddressID = shippingID.String
	intent.BillingAddressID = billingID.String
	intent.ClientSecret = secret.String
	intent.Metadata = metadata
	return &intent, nil
}

func (r *PostgresStore) InsertPaymentIntent(ctx context.Context, intent *models.PaymentIntent, _ models.StorageScheme) (*models.PaymentIntent, error) {
	row := r.q.QueryRowContext(ctx, `
		INSERT INTO payment_intent (payment_id, merchant_id, status, amount, currency, amount_captured,
			customer_id, description, return_url, shipping_address_id, billing_address_id, client_secret,
			active_attempt_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+intentColumns,
		intent.PaymentID, intent.MerchantID, intent.Status, intent.Amount, intent.Currency,
		nullInt64(intent.AmountCaptured), nullString(intent.CustomerID), nullString(intent.Description),
		nullString(intent.ReturnURL), nullString(intent.ShippingAddressID), nullString(intent.BillingAddressID),
		nullString(intent.ClientSecret), intent.ActiveAttemptID, nullJSON(intent.Metadata))
	out, err := scanIntent(row)
	return out, translate("insert payment intent", err)
}

func (r *PostgresStore) FindPaymentIntentByPaymentIDMerchantID(ctx context.Context, paymentID, merchantID string, _ models.StorageScheme) (*models.PaymentIntent, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+intentColumns+`
		FROM payment_intent WHERE payment_id = $1 AND merchant_id = $2
	`, paymentID, merchantID)
	out, err := scanIntent(row)
	return out, translate("find payment intent", err)
}

func (r *PostgresStore) UpdatePaymentIntent(ctx context.Context, intent *models.PaymentIntent, update models.PaymentIntentUpdate, _ models.StorageScheme) (*models.PaymentIntent, error) {
	next := *intent
	update.ApplyTo(&next)

	result, err := r.q.ExecContext(ctx, `
		UPDATE payment_intent
		SET status = $1, amount_captured = $2, active_attempt_id = $3, return_url = $4,
			version = version + 1, modified_at = NOW()
		WHERE payment_id = $5 AND merchant_id = $6 AND version = $7
	`, next.Status, nullInt64(next.AmountCaptured), next.ActiveAttemptID, nullString(next.ReturnURL),
		intent.PaymentID, intent.MerchantID, intent.Version)
	if err != nil {
		return nil, translate("update payment intent", err)
	}
	if err := checkVersioned("update payment intent", result); err != nil {
		return nil, err
	}

	next.Version = intent.Version + 1
	next.ModifiedAt = time.Now()
	return &next, nil
}

const attemptColumns = `attempt_id, payment_id, merchant_id, status, amount, currency, connector,
	connector_transaction_id, payment_method, payment_token, capture_method, authentication_type,
	amount_to_capture, cancellation_reason, error_code, error_message, version, created_at, modified_at`

func scanAttempt(row rowScanner) (*models.PaymentAttempt, error) {
	var (
		attempt                               models.PaymentAttempt
		connector, txnID, method, token       sql.NullString
		captureMethod, authType               sql.NullString
		errorCode, errorMessage, cancelReason sql.NullString
		amountToCapture                       sql.NullInt64
	)
	err := row.Scan(&attempt.AttemptID, &attempt.PaymentID, &attempt.MerchantID, &attempt.Status,
		&attempt.Amount, &attempt.Currency, &connector, &txnID, &method, &token, &captureMethod, &authType,
		&amountToCapture, &cancelReason, &errorCode, &errorMessage, &attempt.Version,
		&attempt.CreatedAt, &attempt.ModifiedAt)
	if err != nil {
		return nil, err
	}
	attempt.Connector = connector.String
	attempt.ConnectorTransactionID = txnID.String
	attempt.PaymentMethod = models.PaymentMethodType(method.String)
	attempt.PaymentToken = token.String
	attempt.CaptureMethod = models.CaptureMethod(captureMethod.String)
	attempt.AuthenticationType = models.AuthenticationType(authType.String)
	attempt.AmountToCapture = int64Ptr(amountToCapture)
	attempt.CancellationReason = stringPtr(cancelReason)
	attempt.ErrorCode = errorCode.String
	attempt.ErrorMessage = errorMessage.String
	return &attempt, nil
}

func (r *PostgresStore) InsertPaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt, _ models.StorageScheme) (*models.PaymentAttempt, error) {
	row := r.q.QueryRowContext(ctx, `
		INSERT INTO payment_attempt (attempt_id, payment_id, merchant_id, status, amount, currency, connector,
			connector_transaction_id, payment_method, payment_token, capture_method, authentication_type,
			amount_to_capture, cancellation_reason, error_code, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING `+attemptColumns,
		attempt.AttemptID, attempt.PaymentID, attempt.MerchantID, attempt.Status, attempt.Amount,
		attempt.Currency, nullString(attempt.Connector), nullString(attempt.ConnectorTransactionID),
		nullString(string(attempt.PaymentMethod)), nullString(attempt.PaymentToken),
		nullString(string(attempt.CaptureMethod)), nullString(string(attempt.AuthenticationType)),
		nullInt64(attempt.AmountToCapture), nullStringPtr(attempt.CancellationReason),
		nullString(attempt.ErrorCode), nullString(attempt.ErrorMessage))
	out, err := scanAttempt(row)
	return out, translate("insert payment attempt", err)
}

func (r *PostgresStore) FindPaymentAttemptByPaymentIDMerchantID(ctx context.Context, paymentID, merchantID string, _ models.StorageScheme) (*models.PaymentAttempt, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+attemptColumns+`
		FROM payment_attempt WHERE payment_id = $1 AND merchant_id = $2
		ORDER BY created_at DESC LIMIT 1
	`, paymentID, merchantID)
	out, err := scanAttempt(row)
	return out, translate("find payment attempt", err)
}

func (r *PostgresStore) FindPaymentAttemptByAttemptIDMerchantID(ctx context.Context, attemptID, merchantID string, _ models.StorageScheme) (*models.PaymentAttempt, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+attemptColumns+`
		FROM payment_attempt WHERE attempt_id = $1 AND merchant_id = $2
	`, attemptID, merchantID)
	out, err := scanAttempt(row)
	return out, translate("find payment attempt", err)
}

func (r *PostgresStore) FindPaymentAttemptByConnectorTransactionID(ctx context.Context, merchantID, connectorTransactionID string, _ models.StorageScheme) (*models.PaymentAttempt, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+attemptColumns+`
		FROM payment_attempt WHERE merchant_id = $1 AND connector_transaction_id = $2
	`, merchantID, connectorTransactionID)
	out, err := scanAttempt(row)
	return out, translate("find payment attempt by connector transaction id", err)
}

func (r *PostgresStore) UpdatePaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt, update models.PaymentAttemptUpdate, _ models.StorageScheme) (*models.PaymentAttempt, error) {
	next := *attempt
	update.ApplyTo(&next)

	result, err := r.q.ExecContext(ctx, `
		UPDATE payment_attempt
		SET status = $1, connector = $2, connector_transaction_id = $3, payment_method = $4,
			payment_token = $5, capture_method = $6, authentication_type = $7, amount_to_capture = $8,
			cancellation_reason = $9, error_code = $10, error_message = $11,
			version = version + 1, modified_at = NOW()
		WHERE attempt_id = $12 AND merchant_id = $13 AND version = $14
	`, next.Status, nullString(next.Connector), nullString(next.ConnectorTransactionID),
		nullString(string(next.PaymentMethod)), nullString(next.PaymentToken),
		nullString(string(next.CaptureMethod)), nullString(string(next.AuthenticationType)),
		nullInt64(next.AmountToCapture), nullStringPtr(next.CancellationReason),
		nullString(next.ErrorCode), nullString(next.ErrorMessage),
		attempt.AttemptID, attempt.MerchantID, attempt.Version)
	if err != nil {
		return nil, translate("update payment attempt", err)
	}
	if err := checkVersioned("update payment attempt", result); err != nil {
		return nil, err
	}

	next.Version = attempt.Version + 1
	next.ModifiedAt = time.Now()
	return &next, nil
}
