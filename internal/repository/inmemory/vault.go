package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
)

type vaultEntry struct {
	data      models.PaymentMethodData
	expiresAt time.Time
}

// Vault is a PaymentMethodVault that lives in process memory.
type Vault struct {
	mu      sync.Mutex
	entries map[string]vaultEntry
}

func NewVault() *Vault {
	return &Vault{entries: make(map[string]vaultEntry)}
}

func (v *Vault) SavePaymentMethod(_ context.Context, token string, data models.PaymentMethodData, ttl time.Duration) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries[token] = vaultEntry{data: data, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (v *Vault) GetPaymentMethod(_ context.Context, token string) (*models.PaymentMethodData, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	entry, ok := v.entries[token]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(v.entries, token)
		return nil, apierrors.Storage("get payment method", apierrors.ErrValueNotFound)
	}
	data := entry.data
	if data.Card != nil {
		card := *data.Card
		data.Card = &card
	}
	return &data, nil
}
