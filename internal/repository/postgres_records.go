package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/akylbek/payment-system/payment-switch/internal/models"
)

func (r *PostgresStore) FindCustomerByCustomerIDMerchantID(ctx context.Context, customerID, merchantID string) (*models.Customer, error) {
	var (
		c                         models.Customer
		name, email, phone, descr sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT customer_id, merchant_id, name, email, phone, description, created_at
		FROM customers WHERE customer_id = $1 AND merchant_id = $2
	`, customerID, merchantID).Scan(&c.CustomerID, &c.MerchantID, &name, &email, &phone, &descr, &c.CreatedAt)
	if err != nil {
		return nil, translate("find customer", err)
	}
	c.Name, c.Email, c.Phone, c.Description = name.String, email.String, phone.String, descr.String
	return &c, nil
}

func (r *PostgresStore) InsertCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	out := *customer
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO customers (customer_id, merchant_id, name, email, phone, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, customer.CustomerID, customer.MerchantID, nullString(customer.Name), nullString(customer.Email),
		nullString(customer.Phone), nullString(customer.Description)).Scan(&out.CreatedAt)
	if err != nil {
		return nil, translate("insert customer", err)
	}
	return &out, nil
}

func (r *PostgresStore) FindAddressByAddressID(ctx context.Context, addressID string) (*models.Address, error) {
	var (
		a      models.Address
		fields [12]sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT address_id, merchant_id, customer_id, line1, line2, line3, city, state, zip, country,
			first_name, last_name, phone_number, created_at
		FROM address WHERE address_id = $1
	`, addressID).Scan(&a.AddressID, &a.MerchantID, &fields[0], &fields[1], &fields[2], &fields[3],
		&fields[4], &fields[5], &fields[6], &fields[7], &fields[8], &fields[9], &fields[10], &a.CreatedAt)
	if err != nil {
		return nil, translate("find address", err)
	}
	a.CustomerID = fields[0].String
	a.Line1, a.Line2, a.Line3 = fields[1].String, fields[2].String, fields[3].String
	a.City, a.State, a.Zip, a.Country = fields[4].String, fields[5].String, fields[6].String, fields[7].String
	a.FirstName, a.LastName, a.PhoneNumber = fields[8].String, fields[9].String, fields[10].String
	return &a, nil
}

func (r *PostgresStore) InsertAddress(ctx context.Context, address *models.Address) (*models.Address, error) {
	out := *address
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO address (address_id, merchant_id, customer_id, line1, line2, line3, city, state, zip,
			country, first_name, last_name, phone_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`, address.AddressID, address.MerchantID, nullString(address.CustomerID), nullString(address.Line1),
		nullString(address.Line2), nullString(address.Line3), nullString(address.City), nullString(address.State),
		nullString(address.Zip), nullString(address.Country), nullString(address.FirstName),
		nullString(address.LastName), nullString(address.PhoneNumber)).Scan(&out.CreatedAt)
	if err != nil {
		return nil, translate("insert address", err)
	}
	return &out, nil
}

func (r *PostgresStore) InsertConnectorResponse(ctx context.Context, cr *models.ConnectorResponse, _ models.StorageScheme) (*models.ConnectorResponse, error) {
	out := *cr
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO connector_response (payment_id, merchant_id, attempt_id, connector_name,
			connector_transaction_id, authentication_data, encoded_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, modified_at
	`, cr.PaymentID, cr.MerchantID, cr.AttemptID, nullString(cr.ConnectorName),
		nullString(cr.ConnectorTransactionID), nullJSON(cr.AuthenticationData),
		nullString(cr.EncodedData)).Scan(&out.CreatedAt, &out.ModifiedAt)
	if err != nil {
		return nil, translate("insert connector response", err)
	}
	return &out, nil
}

func (r *PostgresStore) FindConnectorResponseByPaymentIDMerchantIDAttemptID(ctx context.Context, paymentID, merchantID, attemptID string, _ models.StorageScheme) (*models.ConnectorResponse, error) {
	var (
		cr                   models.ConnectorResponse
		name, txnID, encoded sql.NullString
		authData             []byte
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT payment_id, merchant_id, attempt_id, connector_name, connector_transaction_id,
			authentication_data, encoded_data, created_at, modified_at
		FROM connector_response WHERE payment_id = $1 AND merchant_id = $2 AND attempt_id = $3
	`, paymentID, merchantID, attemptID).Scan(&cr.PaymentID, &cr.MerchantID, &cr.AttemptID, &name, &txnID,
		&authData, &encoded, &cr.CreatedAt, &cr.ModifiedAt)
	if err != nil {
		return nil, translate("find connector response", err)
	}
	cr.ConnectorName, cr.ConnectorTransactionID, cr.EncodedData = name.String, txnID.String, encoded.String
	cr.AuthenticationData = authData
	return &cr, nil
}

func (r *PostgresStore) UpdateConnectorResponse(ctx context.Context, cr *models.ConnectorResponse, update models.ConnectorResponseUpdate, _ models.StorageScheme) (*models.ConnectorResponse, error) {
	next := *cr
	update.ApplyTo(&next)

	result, err := r.q.ExecContext(ctx, `
		UPDATE connector_response
		SET connector_name = $1, connector_transaction_id = $2, authentication_data = $3,
			encoded_data = $4, modified_at = NOW()
		WHERE payment_id = $5 AND merchant_id = $6 AND attempt_id = $7
	`, nullString(next.ConnectorName), nullString(next.ConnectorTransactionID), nullJSON(next.AuthenticationData),
		nullString(next.EncodedData), cr.PaymentID, cr.MerchantID, cr.AttemptID)
	if err != nil {
		return nil, translate("update connector response", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, translate("update connector response", sql.ErrNoRows)
	}

	next.ModifiedAt = time.Now()
	return &next, nil
}

func (r *PostgresStore) FindMerchantAccountByMerchantID(ctx context.Context, merchantID string) (*models.MerchantAccount, error) {
	var (
		m         models.MerchantAccount
		routing   []byte
		returnURL sql.NullString
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT merchant_id, storage_scheme, routing_algorithm, return_url
		FROM merchant_account WHERE merchant_id = $1
	`, merchantID).Scan(&m.MerchantID, &m.StorageScheme, &routing, &returnURL)
	if err != nil {
		return nil, translate("find merchant account", err)
	}
	m.ReturnURL = returnURL.String
	if len(routing) > 0 {
		var algo models.RoutingAlgorithm
		if err := json.Unmarshal(routing, &algo); err != nil {
			return nil, translate("decode routing algorithm", err)
		}
		m.RoutingAlgorithm = &algo
	}
	return &m, nil
}

func (r *PostgresStore) InsertMerchantAccount(ctx context.Context, merchant *models.MerchantAccount) (*models.MerchantAccount, error) {
	var routing []byte
	if merchant.RoutingAlgorithm != nil {
		var err error
		if routing, err = json.Marshal(merchant.RoutingAlgorithm); err != nil {
			return nil, translate("encode routing algorithm", err)
		}
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO merchant_account (merchant_id, storage_scheme, routing_algorithm, return_url)
		VALUES ($1, $2, $3, $4)
	`, merchant.MerchantID, merchant.StorageScheme, nullJSON(routing), nullString(merchant.ReturnURL))
	if err != nil {
		return nil, translate("insert merchant account", err)
	}
	out := *merchant
	return &out, nil
}

func (r *PostgresStore) FindMerchantConnectorAccount(ctx context.Context, merchantID, connector string) (*models.MerchantConnectorAccount, error) {
	var mca models.MerchantConnectorAccount
	err := r.q.QueryRowContext(ctx, `
		SELECT merchant_id, connector_name, connector_account_details, disabled
		FROM merchant_connector_account WHERE merchant_id = $1 AND connector_name = $2
	`, merchantID, connector).Scan(&mca.MerchantID, &mca.ConnectorName, &mca.ConnectorAccountDetails, &mca.Disabled)
	if err != nil {
		return nil, translate("find merchant connector account", err)
	}
	return &mca, nil
}

func (r *PostgresStore) InsertMerchantConnectorAccount(ctx context.Context, mca *models.MerchantConnectorAccount) (*models.MerchantConnectorAccount, error) {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO merchant_connector_account (merchant_id, connector_name, connector_account_details, disabled)
		VALUES ($1, $2, $3, $4)
	`, mca.MerchantID, mca.ConnectorName, string(mca.ConnectorAccountDetails), mca.Disabled)
	if err != nil {
		return nil, translate("insert merchant connector account", err)
	}
	out := *mca
	return &out, nil
}

const refundColumns = `refund_id, payment_id, merchant_id, attempt_id, connector, connector_transaction_id,
	connector_refund_id, status, refund_amount, total_amount, currency, reason, error_code, error_message,
	version, created_at, modified_at`

func scanRefund(row rowScanner) (*models.Refund, error) {
	var (
		refund                                   models.Refund
		connectorRefundID, reason, code, message sql.NullString
	)
	err := row.Scan(&refund.RefundID, &refund.PaymentID, &refund.MerchantID, &refund.AttemptID,
		&refund.Connector, &refund.ConnectorTransactionID, &connectorRefundID, &refund.Status,
		&refund.RefundAmount, &refund.TotalAmount, &refund.Currency, &reason, &code, &message,
		&refund.Version, &refund.CreatedAt, &refund.ModifiedAt)
	if err != nil {
		return nil, err
	}
	refund.ConnectorRefundID = connectorRefundID.String
	refund.Reason = reason.String
	refund.ErrorCode = code.String
	refund.ErrorMessage = message.String
	return &refund, nil
}

func (r *PostgresStore) InsertRefund(ctx context.Context, refund *models.Refund, _ models.StorageScheme) (*models.Refund, error) {
	row := r.q.QueryRowContext(ctx, `
		INSERT INTO refund (refund_id, payment_id, merchant_id, attempt_id, connector, connector_transaction_id,
			connector_refund_id, status, refund_amount, total_amount, currency, reason, error_code, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+refundColumns,
		refund.RefundID, refund.PaymentID, refund.MerchantID, refund.AttemptID, refund.Connector,
		refund.ConnectorTransactionID, nullString(refund.ConnectorRefundID), refund.Status, refund.RefundAmount,
		refund.TotalAmount, refund.Currency, nullString(refund.Reason), nullString(refund.ErrorCode),
		nullString(refund.ErrorMessage))
	out, err := scanRefund(row)
	return out, translate("insert refund", err)
}

func (r *PostgresStore) FindRefundByMerchantIDRefundID(ctx context.Context, merchantID, refundID string, _ models.StorageScheme) (*models.Refund, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+refundColumns+`
		FROM refund WHERE merchant_id = $1 AND refund_id = $2
	`, merchantID, refundID)
	out, err := scanRefund(row)
	return out, translate("find refund", err)
}

func (r *PostgresStore) FindRefundsByPaymentIDMerchantID(ctx context.Context, paymentID, merchantID string, _ models.StorageScheme) ([]models.Refund, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+refundColumns+`
		FROM refund WHERE payment_id = $1 AND merchant_id = $2
		ORDER BY created_at
	`, paymentID, merchantID)
	if err != nil {
		return nil, translate("find refunds", err)
	}
	defer rows.Close()

	var refunds []models.Refund
	for rows.Next() {
		refund, err := scanRefund(rows)
		if err != nil {
			return nil, translate("find refunds", err)
		}
		refunds = append(refunds, *refund)
	}
	return refunds, translate("find refunds", rows.Err())
}

func (r *PostgresStore) UpdateRefund(ctx context.Context, refund *models.Refund, update models.RefundUpdate, _ models.StorageScheme) (*models.Refund, error) {
	next := *refund
	update.ApplyTo(&next)

	result, err := r.q.ExecContext(ctx, `
		UPDATE refund
		SET connector_refund_id = $1, status = $2, error_code = $3, error_message = $4,
			version = version + 1, modified_at = NOW()
		WHERE refund_id = $5 AND merchant_id = $6 AND version = $7
	`, nullString(next.ConnectorRefundID), next.Status, nullString(next.ErrorCode), nullString(next.ErrorMessage),
		refund.RefundID, refund.MerchantID, refund.Version)
	if err != nil {
		return nil, translate("update refund", err)
	}
	if err := checkVersioned("update refund", result); err != nil {
		return nil, err
	}

	next.Version = refund.Version + 1
	next.ModifiedAt = time.Now()
	return &next, nil
}
