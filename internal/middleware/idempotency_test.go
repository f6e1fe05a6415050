package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStores_Reserve(t *testing.T) {
	mr := miniredis.RunT(t)
	stores := map[string]IdempotencyStore{
		"memory": NewMemoryIdempotencyStore(),
		"redis":  NewRedisIdempotencyStore(redis.NewClient(&redis.Options{Addr: mr.Addr()})),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ok, err := store.Reserve(ctx, "idempotency:m:k", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = store.Reserve(ctx, "idempotency:m:k", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok, "key is held")

			res, err := store.Get(ctx, "idempotency:m:k")
			require.NoError(t, err)
			assert.Nil(t, res, "a claim is not a replayable response")

			require.NoError(t, store.Release(ctx, "idempotency:m:k"))
			ok, err = store.Reserve(ctx, "idempotency:m:k", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "released key can be claimed again")

			require.NoError(t, store.Save(ctx, "idempotency:m:k", StoredResponse{Status: 201, Body: []byte(`{"payment_id":"pay_1"}`)}, time.Hour))
			ok, err = store.Reserve(ctx, "idempotency:m:k", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok, "stored response keeps the key")

			require.NoError(t, store.Release(ctx, "idempotency:m:k"))
			res, err = store.Get(ctx, "idempotency:m:k")
			require.NoError(t, err)
			require.NotNil(t, res, "release never drops a stored response")
			assert.Equal(t, 201, res.Status)
		})
	}
}
