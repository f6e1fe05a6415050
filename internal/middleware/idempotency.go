package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
	// inProgressTTL bounds how long a crashed request keeps its key claimed.
	inProgressTTL = time.Minute
	inProgress    = "IN_PROGRESS"
)

// StoredResponse is a replayable response recorded under an idempotency key.
type StoredResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type IdempotencyStore interface {
	// Get returns the stored response of key, or nil when there is none yet.
	Get(ctx context.Context, key string) (*StoredResponse, error)
	// Reserve claims key for one in-flight request. It reports false when
	// the key is already claimed or holds a stored response.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Save(ctx context.Context, key string, res StoredResponse, ttl time.Duration) error
	// Release gives up a claim that produced nothing worth replaying.
	Release(ctx context.Context, key string) error
}

// RedisIdempotencyStore keeps replayable responses in Redis.
type RedisIdempotencyStore struct {
	client *redis.Client
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*StoredResponse, error) {
	cached, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if string(cached) == inProgress {
		return nil, nil
	}
	var res StoredResponse
	if err := json.Unmarshal(cached, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, res StoredResponse, ttl time.Duration) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := s.client.SetNX(ctx, key, inProgress, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX error: %w", err)
	}
	return set, nil
}

// releaseClaim deletes key only while it still holds the in-progress marker.
var releaseClaim = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return releaseClaim.Run(ctx, s.client, []string{key}, inProgress).Err()
}

// MemoryIdempotencyStore is the single-process store used without Redis.
// Entries never expire.
type MemoryIdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]StoredResponse
	inFlight map[string]struct{}
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries:  make(map[string]StoredResponse),
		inFlight: make(map[string]struct{}),
	}
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) (*StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (s *MemoryIdempotencyStore) Reserve(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return false, nil
	}
	if _, ok := s.inFlight[key]; ok {
		return false, nil
	}
	s.inFlight[key] = struct{}{}
	return true, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, key string, res StoredResponse, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = res
	delete(s.inFlight, key)
	return nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
	return nil
}

type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func replay(c *gin.Context, res *StoredResponse) {
	c.Header("Idempotent-Replayed", "true")
	c.Data(res.Status, "application/json; charset=utf-8", res.Body)
	c.Abort()
}

// IdempotencyMiddleware replays the first successful response stored under
// the request's Idempotency-Key. Keys are scoped to the merchant. While one
// request holds a key, others carrying it are turned away with 409.
func IdempotencyMiddleware(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			apiErr := apierrors.MissingRequiredFieldError(IdempotencyHeader)
			c.AbortWithStatusJSON(apiErr.StatusCode, gin.H{"error": apiErr})
			return
		}

		ctx := c.Request.Context()
		storeKey := fmt.Sprintf("idempotency:%s:%s", MerchantID(c), key)

		cached, err := store.Get(ctx, storeKey)
		if err != nil {
			telemetry.Logger.Warn("Idempotency lookup failed", zap.String("idempotency_key", key), zap.Error(err))
		}
		if cached != nil {
			replay(c, cached)
			return
		}

		reserved, err := store.Reserve(ctx, storeKey, inProgressTTL)
		if err != nil {
			telemetry.Logger.Error("Failed to reserve idempotency key", zap.String("idempotency_key", key), zap.Error(err))
			apiErr := apierrors.InternalServerError()
			c.AbortWithStatusJSON(apiErr.StatusCode, gin.H{"error": apiErr})
			return
		}
		if !reserved {
			// The holder may have finished between the lookup and the claim.
			if cached, err := store.Get(ctx, storeKey); err == nil && cached != nil {
				replay(c, cached)
				return
			}
			apiErr := apierrors.IdempotentRequestInProgress()
			c.AbortWithStatusJSON(apiErr.StatusCode, gin.H{"error": apiErr})
			return
		}

		w := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Set("idempotency_key", key)
		c.Next()

		status := w.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			if err := store.Release(ctx, storeKey); err != nil {
				telemetry.Logger.Warn("Failed to release idempotency key", zap.String("idempotency_key", key), zap.Error(err))
			}
			return
		}
		if err := store.Save(ctx, storeKey, StoredResponse{Status: status, Body: w.body.Bytes()}, idempotencyTTL); err != nil {
			telemetry.Logger.Error("Failed to store idempotent response",
				zap.String("idempotency_key", key),
				zap.Error(err),
			)
		}
	}
}
