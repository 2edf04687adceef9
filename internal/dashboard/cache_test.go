package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheFetchBytesStoresAndHits(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	key := SnapshotKey("session", "2024-01-01", "2024-01-31")
	assert.Equal(t, "stockpulse:snapshot:session:2024-01-01:2024-01-31", key)

	calls := 0
	loader := func(context.Context) ([]byte, error) {
		calls++
		return []byte("png"), nil
	}

	payload, hit, err := cache.FetchBytes(ctx, key, loader)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []byte("png"), payload)

	payload, hit, err = cache.FetchBytes(ctx, key, loader)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("png"), payload)
	assert.Equal(t, 1, calls)

	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestCacheLoaderErrorIsNotStored(t *testing.T) {
	cache, mr := newTestCache(t)
	boom := errors.New("render failed")

	_, _, err := cache.FetchBytes(context.Background(), "k", func(context.Context) ([]byte, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestCacheDisabledCallsLoader(t *testing.T) {
	var cache *Cache
	assert.False(t, cache.Enabled())

	key := SnapshotKey("a", "b")

	calls := 0
	for i := 0; i < 2; i++ {
		_, hit, err := NewCache(nil, time.Minute).FetchBytes(context.Background(), key, func(context.Context) ([]byte, error) {
			calls++
			return []byte("x"), nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 2, calls)

	_, _, err := cache.FetchBytes(context.Background(), key, nil)
	assert.Error(t, err)
}
