package reports

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), client
}

func TestFetchJSONCachesLoaderResult(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return []StatusCount{{Status: "Delivered", Count: 3}}, nil
	}

	key, err := cache.BuildKey(ctx, "reports", "shipment_status")
	require.NoError(t, err)

	var first []StatusCount
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.Len(t, first, 1)
	require.Equal(t, int64(3), first[0].Count)

	var second []StatusCount
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, first, second)
	require.Equal(t, 1, calls)
}

func TestBumpChangesKeys(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "reports", "cost_by_brand")
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, "reports", "cost_by_brand")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestNilCachePassesThrough(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	var out []StatusCount
	err := cache.FetchJSON(ctx, "ignored", &out, func(context.Context) (interface{}, error) {
		return []StatusCount{{Status: "IN-Transit", Count: 2}}, nil
	})
	require.NoError(t, err)
	require.Len(t, out, 1)

	require.NoError(t, cache.Bump(ctx))
}
