package masterdata

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

func newTestCache(t *testing.T) (*ListCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewListCache(rdb, time.Minute), mr
}

func TestCacheFillsOnMiss(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	calls := 0
	fill := func(ctx context.Context) (any, error) {
		calls++
		return []Country{{ID: 1, Name: "India"}}, nil
	}

	first, err := cache.Get(ctx, "countries", fill)
	require.NoError(t, err)
	assert.Contains(t, string(first), "India")
	assert.Equal(t, 1, calls)

	// Second read is served from redis, no repository hit.
	second, err := cache.Get(ctx, "countries", fill)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	assert.True(t, mr.Exists("masterdata:all:countries"))
}

func TestCacheExpiresWithTTL(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	calls := 0
	fill := func(ctx context.Context) (any, error) {
		calls++
		return []Country{{ID: 1, Name: "India"}}, nil
	}

	_, err := cache.Get(ctx, "countries", fill)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.Get(ctx, "countries", fill)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCacheInvalidate(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	fill := func(ctx context.Context) (any, error) {
		return []Country{{ID: 1, Name: "India"}}, nil
	}
	_, err := cache.Get(ctx, "countries", fill)
	require.NoError(t, err)
	require.True(t, mr.Exists("masterdata:all:countries"))

	cache.Invalidate(ctx, "countries")
	assert.False(t, mr.Exists("masterdata:all:countries"))
}

func TestCacheFillErrorPropagates(t *testing.T) {
	cache, _ := newTestCache(t)

	boom := errors.New("db down")
	_, err := cache.Get(context.Background(), "states", func(ctx context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
}

func TestNilClientDegradesToDirectLoad(t *testing.T) {
	cache := NewListCache(nil, time.Minute)

	calls := 0
	fill := func(ctx context.Context) (any, error) {
		calls++
		return []Tax{{ID: 4, Name: "CGST 9"}}, nil
	}
	data, err := cache.Get(context.Background(), "taxes", fill)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CGST 9")

	_, err = cache.Get(context.Background(), "taxes", fill)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
