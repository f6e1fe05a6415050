// Package inmemory is a map-backed StorageInterface. It is used by tests and
// by the --memory development mode of the server.
package inmemory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/interfaces"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
)

type recordKey struct {
	merchantID string
	id         string
}

type connectorResponseKey struct {
	merchantID string
	paymentID  string
	attemptID  string
}

// Store keeps copies of every record, so callers never share state with it.
type Store struct {
	mu sync.RWMutex

	intents            map[recordKey]models.PaymentIntent
	attempts           map[recordKey]models.PaymentAttempt
	attemptsByPayment  map[recordKey][]string
	customers          map[recordKey]models.Customer
	addresses          map[string]models.Address
	connectorResponses map[connectorResponseKey]models.ConnectorResponse
	merchants          map[string]models.MerchantAccount
	connectorAccounts  map[recordKey]models.MerchantConnectorAccount
	refunds            map[recordKey]models.Refund
	refundsByPayment   map[recordKey][]string

	writes atomic.Int64
	now    func() time.Time

	// txMu serializes transactions. Writes made outside a transaction while
	// one is rolling back are lost with it.
	txMu sync.Mutex
}

func NewStore() *Store {
	return &Store{
		intents:            make(map[recordKey]models.PaymentIntent),
		attempts:           make(map[recordKey]models.PaymentAttempt),
		attemptsByPayment:  make(map[recordKey][]string),
		customers:          make(map[recordKey]models.Customer),
		addresses:          make(map[string]models.Address),
		connectorResponses: make(map[connectorResponseKey]models.ConnectorResponse),
		merchants:          make(map[string]models.MerchantAccount),
		connectorAccounts:  make(map[recordKey]models.MerchantConnectorAccount),
		refunds:            make(map[recordKey]models.Refund),
		refundsByPayment:   make(map[recordKey][]string),
		now:                time.Now,
	}
}

// Writes is the number of inserts and updates performed so far.
func (s *Store) Writes() int64 {
	return s.writes.Load()
}

type snapshot struct {
	intents            map[recordKey]models.PaymentIntent
	attempts           map[recordKey]models.PaymentAttempt
	attemptsByPayment  map[recordKey][]string
	customers          map[recordKey]models.Customer
	addresses          map[string]models.Address
	connectorResponses map[connectorResponseKey]models.ConnectorResponse
	refunds            map[recordKey]models.Refund
	refundsByPayment   map[recordKey][]string
	writes             int64
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		intents:            maps.Clone(s.intents),
		attempts:           maps.Clone(s.attempts),
		attemptsByPayment:  maps.Clone(s.attemptsByPayment),
		customers:          maps.Clone(s.customers),
		addresses:          maps.Clone(s.addresses),
		connectorResponses: maps.Clone(s.connectorResponses),
		refunds:            maps.Clone(s.refunds),
		refundsByPayment:   maps.Clone(s.refundsByPayment),
		writes:             s.writes.Load(),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents = snap.intents
	s.attempts = snap.attempts
	s.attemptsByPayment = snap.attemptsByPayment
	s.customers = snap.customers
	s.addresses = snap.addresses
	s.connectorResponses = snap.connectorResponses
	s.refunds = snap.refunds
	s.refundsByPayment = snap.refundsByPayment
	s.writes.Store(snap.writes)
}

// WithTx runs fn and undoes every payment record write fn made when it
// returns an error. Merchant accounts are not part of the snapshot.
func (s *Store) WithTx(_ context.Context, fn func(tx interfaces.StorageInterface) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(txStore{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// txStore is the view of Store handed to a transaction. Nested calls join it.
type txStore struct {
	*Store
}

func (t txStore) WithTx(_ context.Context, fn func(tx interfaces.StorageInterface) error) error {
	return fn(t)
}

func notFound(op string) error {
	return apierrors.Storage(op, apierrors.ErrValueNotFound)
}

func (s *Store) InsertPaymentIntent(_ context.Context, intent *models.PaymentIntent, _ models.StorageScheme) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{intent.MerchantID, intent.PaymentID}
	if _, ok := s.intents[key]; ok {
		return nil, apierrors.Storage("insert payment intent", apierrors.ErrDuplicateValue)
	}
	out := *intent
	now := s.now()
	out.CreatedAt, out.ModifiedAt, out.Version = now, now, 1
	s.intents[key] = out
	s.writes.Add(1)
	return &out, nil
}

func (s *Store) FindPaymentIntentByPaymentIDMerchantID(_ context.Context, paymentID, merchantID string, _ models.StorageScheme) (*models.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	intent, ok := s.intents[recordKey{merchantID, paymentID}]
	if !ok {
		return nil, notFound("find payment intent")
	}
	return &intent, nil
}

func (s *Store) UpdatePaymentIntent(_ context.Context, intent *models.PaymentIntent, update models.PaymentIntentUpdate, _ models.StorageScheme) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{intent.MerchantID, intent.PaymentID}
	current, ok := s.intents[key]
	if !ok {
		return nil, notFound("update payment intent")
	}
	if current.Version != intent.Version {
		return nil, apierrors.Storage("update payment intent", apierrors.ErrConcurrentUpdate)
	}
	update.ApplyTo(&current)
	current.Version++
	current.ModifiedAt = s.now()
	s.intents[key] = current
	s.writes.Add(1)
	return &current, nil
}

func (s *Store) InsertPaymentAttempt(_ context.Context, attempt *models.PaymentAttempt, _ models.StorageScheme) (*models.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{attempt.MerchantID, attempt.AttemptID}
	if _, ok := s.attempts[key]; ok {
		return nil, apierrors.Storage("insert payment attempt", apierrors.ErrDuplicateValue)
	}
	out := *attempt
	now := s.now()
	out.CreatedAt, out.ModifiedAt, out.Version = now, now, 1
	s.attempts[key] = out
	pk := recordKey{attempt.MerchantID, attempt.PaymentID}
	s.attemptsByPayment[pk] = append(s.attemptsByPayment[pk], attempt.AttemptID)
	s.writes.Add(1)
	return &out, nil
}

func (s *Store) FindPaymentAttemptByPaymentIDMerchantID(_ context.Context, paymentID, merchantID string, _ models.StorageScheme) (*models.PaymentAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.attemptsByPayment[recordKey{merchantID, paymentID}]
	if len(ids) == 0 {
		return nil, notFound("find payment attempt")
	}
	attempt := s.attempts[recordKey{merchantID, ids[len(ids)-1]}]
	return &attempt, nil
}

func (s *Store) FindPaymentAttemptByAttemptIDMerchantID(_ context.Context, attemptID, merchantID string, _ models.StorageScheme) (*models.PaymentAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attempt, ok := s.attempts[recordKey{merchantID, attemptID}]
	if !ok {
		return nil, notFound("find payment attempt")
	}
	return &attempt, nil
}

func (s *Store) FindPaymentAttemptByConnectorTransactionID(_ context.Context, merchantID, connectorTransactionID string, _ models.StorageScheme) (*models.PaymentAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for key, attempt := range s.attempts {
		if key.merchantID == merchantID && attempt.ConnectorTransactionID == connectorTransactionID && connectorTransactionID != "" {
			return &attempt, nil
		}
	}
	return nil, notFound("find payment attempt by connector transaction id")
}

func (s *Store) UpdatePaymentAttempt(_ context.Context, attempt *models.PaymentAttempt, update models.PaymentAttemptUpdate, _ models.StorageScheme) (*models.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{attempt.MerchantID, attempt.AttemptID}
	current, ok := s.attempts[key]
	if !ok {
		return nil, notFound("update payment attempt")
	}
	if current.Version != attempt.Version {
		return nil, apierrors.Storage("update payment attempt", apierrors.ErrConcurrentUpdate)
	}
	update.ApplyTo(&current)
	current.Version++
	current.ModifiedAt = s.now()
	s.attempts[key] = current
	s.writes.Add(1)
	return &current, nil
}

func (s *Store) FindCustomerByCustomerIDMerchantID(_ context.Context, customerID, merchantID string) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[recordKey{merchantID, customerID}]
	if !ok {
		return nil, notFound("find customer")
	}
	return &customer, nil
}

func (s *Store) InsertCustomer(_ context.Context, customer *models.Customer) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{customer.MerchantID, customer.CustomerID}
	if _, ok := s.customers[key]; ok {
		return nil, apierrors.Storage("insert customer", apierrors.ErrDuplicateValue)
	}
	out := *customer
	out.CreatedAt = s.now()
	s.customers[key] = out
	s.writes.Add(1)
	return &out, nil
}

func (s *Store) FindAddressByAddressID(_ context.Context, addressID string) (*models.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	address, ok := s.addresses[addressID]
	if !ok {
		return nil, notFound("find address")
	}
	return &address, nil
}

func (s *Store) InsertAddress(_ context.Context, address *models.Address) (*models.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.addresses[address.AddressID]; ok {
		return nil, apierrors.Storage("insert address", apierrors.ErrDuplicateValue)
	}
	out := *address
	out.CreatedAt = s.now()
	s.addresses[address.AddressID] = out
	s.writes.Add(1)
	return &out, nil
}

func (s *Store) InsertConnectorResponse(_ context.Context, cr *models.ConnectorResponse, _ models.StorageScheme) (*models.ConnectorResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := connectorResponseKey{cr.MerchantID, cr.PaymentID, cr.AttemptID}
	if _, ok := s.connectorResponses[key]; ok {
		return nil, apierrors.Storage("insert connector response", apierrors.ErrDuplicateValue)
	}
	out := *cr
	now := s.now()
	out.CreatedAt, out.ModifiedAt = now, now
	s.connectorResponses[key] = out
	s.writes.Add(1)
	return &out, nil
}

func (s *Store) FindConnectorResponseByPaymentIDMerchantIDAttemptID(_ context.Context, paymentID, merchantID, attemptID string, _ models.StorageScheme) (*models.ConnectorResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cr, ok := s.connectorResponses[connectorResponseKey{merchantID, paymentID, attemptID}]
	if !ok {
		return nil, notFound("find connector response")
	}
	return &cr, nil
}

func (s *Store) UpdateConnectorResponse(_ context.Context, cr *models.ConnectorResponse, update models.ConnectorResponseUpdate, _ models.StorageScheme) (*models.ConnectorResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := connectorResponseKey{cr.MerchantID, cr.PaymentID, cr.AttemptID}
	current, ok := s.connectorResponses[key]
	if !ok {
		return nil, notFound("update connector response")
	}
	update.ApplyTo(&current)
	current.ModifiedAt = s.now()
	s.connectorResponses[key] = current
	s.writes.Add(1)
	return &current, nil
}

func (s *Store) FindMerchantAccountByMerchantID(_ context.Context, merchantID string) (*models.MerchantAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merchant, ok := s.merchants[merchantID]
	if !ok {
		return nil, notFound("find merchant account")
	}
	return &merchant, nil
}

func (s *Store) InsertMerchantAccount(_ context.Context, merchant *models.MerchantAccount) (*models.MerchantAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.merchants[merchant.MerchantID]; ok {
		return nil, apierrors.Storage("insert merchant account", apierrors.ErrDuplicateValue)
	}
	out := *merchant
	s.merchants[merchant.MerchantID] = out
	return &out, nil
}

func (s *Store) FindMerchantConnectorAccount(_ context.Context, merchantID, connector string) (*models.MerchantConnectorAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mca, ok := s.connectorAccounts[recordKey{merchantID, connector}]
	if !ok {
		return nil, notFound("find merchant connector account")
	}
	return &mca, nil
}

func (s *Store) InsertMerchantConnectorAccount(_ context.Context, mca *models.MerchantConnectorAccount) (*models.MerchantConnectorAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{mca.MerchantID, mca.ConnectorName}
	if _, ok := s.connectorAccounts[key]; ok {
		return nil, apierrors.Storage("insert merchant connector account", apierrors.ErrDuplicateValue)
	}
	out := *mca
	s.connectorAccounts[key] = out
	return &out, nil
}

func (s *Store) InsertRefund(_ context.Context, refund *models.Refund, _ models.StorageScheme) (*models.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{refund.MerchantID, refund.RefundID}
	if _, ok := s.refunds[key]; ok {
		return nil, apierrors.Storage("insert refund", apierrors.ErrDuplicateValue)
	}
	out := *refund
	now := s.now()
	out.CreatedAt, out.ModifiedAt, out.Version = now, now, 1
	s.refunds[key] = out
	pk := recordKey{refund.MerchantID, refund.PaymentID}
	s.refundsByPayment[pk] = append(s.refundsByPayment[pk], refund.RefundID)
	s.writes.Add(1)
	return &out, nil
}

func (s *Store) FindRefundByMerchantIDRefundID(_ context.Context, merchantID, refundID string, _ models.StorageScheme) (*models.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refund, ok := s.refunds[recordKey{merchantID, refundID}]
	if !ok {
		return nil, notFound("find refund")
	}
	return &refund, nil
}

func (s *Store) FindRefundsByPaymentIDMerchantID(_ context.Context, paymentID, merchantID string, _ models.StorageScheme) ([]models.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.refundsByPayment[recordKey{merchantID, paymentID}]
	out := make([]models.Refund, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.refunds[recordKey{merchantID, id}])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateRefund(_ context.Context, refund *models.Refund, update models.RefundUpdate, _ models.StorageScheme) (*models.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{refund.MerchantID, refund.RefundID}
	current, ok := s.refunds[key]
	if !ok {
		return nil, notFound("update refund")
	}
	if current.Version != refund.Version {
		return nil, apierrors.Storage("update refund", apierrors.ErrConcurrentUpdate)
	}
	update.ApplyTo(&current)
	current.Version++
	current.ModifiedAt = s.now()
	s.refunds[key] = current
	s.writes.Add(1)
	return &current, nil
}
