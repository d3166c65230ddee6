package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client), mr
}

func TestGetOrCreatePopulatesAndHits(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var calls int32
	loader := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return map[string]int{"qty": 42}, nil
	}

	var got map[string]int
	require.NoError(t, c.GetOrCreate(ctx, "inventory_1", time.Minute, &got, loader))
	require.Equal(t, 42, got["qty"])

	got = nil
	require.NoError(t, c.GetOrCreate(ctx, "inventory_1", time.Minute, &got, loader))
	require.Equal(t, 42, got["qty"])
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrCreateSingleFlight(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	loader := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out string
			require.NoError(t, c.GetOrCreate(ctx, "shared", time.Minute, &out, loader))
			require.Equal(t, "value", out)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRemoveMatch(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var out string
	for _, key := range []string{"low_stock_alerts_1_0_1_20", "low_stock_alerts_2_0_1_20", "inventory_9"} {
		require.NoError(t, c.GetOrCreate(ctx, key, time.Minute, &out, func(context.Context) (interface{}, error) {
			return "x", nil
		}))
	}

	require.NoError(t, c.RemoveMatch(ctx, "low_stock_alerts_*"))
	require.False(t, mr.Exists("low_stock_alerts_1_0_1_20"))
	require.False(t, mr.Exists("low_stock_alerts_2_0_1_20"))
	require.True(t, mr.Exists("inventory_9"))
}

func TestNilCacheFallsThrough(t *testing.T) {
	var c *Cache
	var out int
	err := c.GetOrCreate(context.Background(), "k", time.Minute, &out, func(context.Context) (interface{}, error) {
		return 7, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, out)
}
