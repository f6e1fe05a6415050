package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/interfaces"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
)

const (
	kvCacheTTL = 24 * time.Hour
	kvLockTTL  = 30 * time.Second
)

// releaseLock deletes a lock only while it still holds the caller's token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// KVStore serves the redis_kv storage scheme in front of a durable store.
// Intent, attempt and connector response reads go through Redis first and
// every update of those records holds a per-record lock. Calls made with the
// postgres_only scheme pass straight through.
type KVStore struct {
	interfaces.StorageInterface
	redis *redis.Client

	// dirty collects the cache keys written inside a transaction. They are
	// dropped once the transaction ends instead of being cached early.
	dirty *[]string
}

func NewKVStore(durable interfaces.StorageInterface, redisClient *redis.Client) *KVStore {
	return &KVStore{StorageInterface: durable, redis: redisClient}
}

// WithTx runs fn inside a transaction of the durable store. Cache entries
// of records written by fn are invalidated after commit or rollback.
func (s *KVStore) WithTx(ctx context.Context, fn func(tx interfaces.StorageInterface) error) error {
	if s.dirty != nil {
		return fn(s)
	}

	var dirty []string
	err := s.StorageInterface.WithTx(ctx, func(tx interfaces.StorageInterface) error {
		return fn(&KVStore{StorageInterface: tx, redis: s.redis, dirty: &dirty})
	})
	if len(dirty) > 0 {
		if delErr := s.redis.Del(ctx, dirty...).Err(); delErr != nil {
			telemetry.Logger.Warn("Failed to invalidate cached records", zap.Strings("keys", dirty), zap.Error(delErr))
		}
	}
	return err
}

func intentKey(merchantID, paymentID string) string {
	return fmt.Sprintf("mid_%s_pid_%s_intent", merchantID, paymentID)
}

func attemptKey(merchantID, attemptID string) string {
	return fmt.Sprintf("mid_%s_aid_%s_attempt", merchantID, attemptID)
}

func connectorResponseCacheKey(merchantID, paymentID, attemptID string) string {
	return fmt.Sprintf("mid_%s_pid_%s_aid_%s_connector_response", merchantID, paymentID, attemptID)
}

// readThrough serves key from Redis and fills it from load on a miss.
// Inside a transaction the cache is bypassed so fn sees its own writes.
func (s *KVStore) readThrough(ctx context.Context, key string, out interface{}, load func() (interface{}, error)) error {
	inTx := s.dirty != nil
	if !inTx {
		cached, err := s.redis.Get(ctx, key).Bytes()
		if err == nil {
			if err := json.Unmarshal(cached, out); err == nil {
				return nil
			}
		} else if !errors.Is(err, redis.Nil) {
			telemetry.Logger.Warn("Redis read failed, falling back to durable store", zap.String("key", key), zap.Error(err))
		}
	}

	value, err := load()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return apierrors.Storage("encode cache entry", err)
	}
	if !inTx {
		s.cache(ctx, key, raw)
	}
	return json.Unmarshal(raw, out)
}

func (s *KVStore) cache(ctx context.Context, key string, raw []byte) {
	if err := s.redis.Set(ctx, key, raw, kvCacheTTL).Err(); err != nil {
		telemetry.Logger.Warn("Failed to cache record", zap.String("key", key), zap.Error(err))
	}
}

func (s *KVStore) cacheValue(ctx context.Context, key string, value interface{}) {
	if s.dirty != nil {
		*s.dirty = append(*s.dirty, key)
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.cache(ctx, key, raw)
}

// withLock serializes updates of one record across processes.
func (s *KVStore) withLock(ctx context.Context, key string, fn func() error) error {
	lockKey := "lock:" + key
	token := uuid.NewString()
	locked, err := s.redis.SetNX(ctx, lockKey, token, kvLockTTL).Result()
	if err != nil {
		return apierrors.Storage("acquire lock", err)
	}
	if !locked {
		return apierrors.Storage("acquire lock", apierrors.ErrConcurrentUpdate)
	}
	defer func() {
		if err := releaseLock.Run(ctx, s.redis, []string{lockKey}, token).Err(); err != nil {
			telemetry.Logger.Warn("Failed to release lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()
	return fn()
}

func (s *KVStore) InsertPaymentIntent(ctx context.Context, intent *models.PaymentIntent, scheme models.StorageScheme) (*models.PaymentIntent, error) {
	out, err := s.StorageInterface.InsertPaymentIntent(ctx, intent, scheme)
	if err == nil && scheme == models.StorageSchemeRedisKv {
		s.cacheValue(ctx, intentKey(out.MerchantID, out.PaymentID), out)
	}
	return out, err
}

func (s *KVStore) FindPaymentIntentByPaymentIDMerchantID(ctx context.Context, paymentID, merchantID string, scheme models.StorageScheme) (*models.PaymentIntent, error) {
	if scheme != models.StorageSchemeRedisKv {
		return s.StorageInterface.FindPaymentIntentByPaymentIDMerchantID(ctx, paymentID, merchantID, scheme)
	}
	var intent models.PaymentIntent
	err := s.readThrough(ctx, intentKey(merchantID, paymentID), &intent, func() (interface{}, error) {
		return s.StorageInterface.FindPaymentIntentByPaymentIDMerchantID(ctx, paymentID, merchantID, scheme)
	})
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (s *KVStore) UpdatePaymentIntent(ctx context.Context, intent *models.PaymentIntent, update models.PaymentIntentUpdate, scheme models.StorageScheme) (*models.PaymentIntent, error) {
	if scheme != models.StorageSchemeRedisKv {
		return s.StorageInterface.UpdatePaymentIntent(ctx, intent, update, scheme)
	}
	key := intentKey(intent.MerchantID, intent.PaymentID)
	var out *models.PaymentIntent
	err := s.withLock(ctx, key, func() error {
		var err error
		out, err = s.StorageInterface.UpdatePaymentIntent(ctx, intent, update, scheme)
		if err != nil {
			s.redis.Del(ctx, key)
			return err
		}
		s.cacheValue(ctx, key, out)
		return nil
	})
	return out, err
}

func (s *KVStore) InsertPaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt, scheme models.StorageScheme) (*models.PaymentAttempt, error) {
	out, err := s.StorageInterface.InsertPaymentAttempt(ctx, attempt, scheme)
	if err == nil && scheme == models.StorageSchemeRedisKv {
		s.cacheValue(ctx, attemptKey(out.MerchantID, out.AttemptID), out)
	}
	return out, err
}

// FindPaymentAttemptByAttemptIDMerchantID is the attempt lookup of the
// tracker loader. Lookups by payment id or connector transaction id go to
// the durable store.
func (s *KVStore) FindPaymentAttemptByAttemptIDMerchantID(ctx context.Context, attemptID, merchantID string, scheme models.StorageScheme) (*models.PaymentAttempt, error) {
	if scheme != models.StorageSchemeRedisKv {
		return s.StorageInterface.FindPaymentAttemptByAttemptIDMerchantID(ctx, attemptID, merchantID, scheme)
	}
	var attempt models.PaymentAttempt
	err := s.readThrough(ctx, attemptKey(merchantID, attemptID), &attempt, func() (interface{}, error) {
		return s.StorageInterface.FindPaymentAttemptByAttemptIDMerchantID(ctx, attemptID, merchantID, scheme)
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (s *KVStore) UpdatePaymentAttempt(ctx context.Context, attempt *models.PaymentAttempt, update models.PaymentAttemptUpdate, scheme models.StorageScheme) (*models.PaymentAttempt, error) {
	if scheme != models.StorageSchemeRedisKv {
		return s.StorageInterface.UpdatePaymentAttempt(ctx, attempt, update, scheme)
	}
	key := attemptKey(attempt.MerchantID, attempt.AttemptID)
	var out *models.PaymentAttempt
	err := s.withLock(ctx, key, func() error {
		var err error
		out, err = s.StorageInterface.UpdatePaymentAttempt(ctx, attempt, update, scheme)
		if err != nil {
			s.redis.Del(ctx, key)
			return err
		}
		s.cacheValue(ctx, key, out)
		return nil
	})
	return out, err
}

func (s *KVStore) FindConnectorResponseByPaymentIDMerchantIDAttemptID(ctx context.Context, paymentID, merchantID, attemptID string, scheme models.StorageScheme) (*models.ConnectorResponse, error) {
	if scheme != models.StorageSchemeRedisKv {
		return s.StorageInterface.FindConnectorResponseByPaymentIDMerchantIDAttemptID(ctx, paymentID, merchantID, attemptID, scheme)
	}
	var cr models.ConnectorResponse
	err := s.readThrough(ctx, connectorResponseCacheKey(merchantID, paymentID, attemptID), &cr, func() (interface{}, error) {
		return s.StorageInterface.FindConnectorResponseByPaymentIDMerchantIDAttemptID(ctx, paymentID, merchantID, attemptID, scheme)
	})
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

func (s *KVStore) UpdateConnectorResponse(ctx context.Context, cr *models.ConnectorResponse, update models.ConnectorResponseUpdate, scheme models.StorageScheme) (*models.ConnectorResponse, error) {
	out, err := s.StorageInterface.UpdateConnectorResponse(ctx, cr, update, scheme)
	if scheme == models.StorageSchemeRedisKv {
		key := connectorResponseCacheKey(cr.MerchantID, cr.PaymentID, cr.AttemptID)
		if err != nil {
			s.redis.Del(ctx, key)
		} else {
			s.cacheValue(ctx, key, out)
		}
	}
	return out, err
}
