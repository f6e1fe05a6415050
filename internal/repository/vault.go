package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
)

// RedisVault keeps payment-method material behind a temporary token.
type RedisVault struct {
	client *redis.Client
}

func NewRedisVault(client *redis.Client) *RedisVault {
	return &RedisVault{client: client}
}

func vaultKey(token string) string {
	return "pm_token_" + token
}

func (v *RedisVault) SavePaymentMethod(ctx context.Context, token string, data models.PaymentMethodData, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return apierrors.Storage("encode payment method", err)
	}
	if err := v.client.Set(ctx, vaultKey(token), raw, ttl).Err(); err != nil {
		return apierrors.Storage("save payment method", err)
	}
	return nil
}

func (v *RedisVault) GetPaymentMethod(ctx context.Context, token string) (*models.PaymentMethodData, error) {
	raw, err := v.client.Get(ctx, vaultKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apierrors.Storage("get payment method", apierrors.ErrValueNotFound)
	}
	if err != nil {
		return nil, apierrors.Storage("get payment method", err)
	}
	var data models.PaymentMethodData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, apierrors.Storage("decode payment method", err)
	}
	return &data, nil
}
