package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platform/internal/auth"
)

type listPayload struct {
	Names []string `json:"names"`
	Total int64    `json:"total"`
}

func TestFetchMissThenHit(t *testing.T) {
	c := New(NewMemoryStore())
	ctx := context.Background()

	var calls atomic.Int32
	load := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return listPayload{Names: []string{"alpha", "beta"}, Total: 2}, nil
	}

	var first listPayload
	require.NoError(t, c.Fetch(ctx, "catalog_item:all:list:1:20", CategoryCatalog, &first, load))
	assert.Equal(t, int32(1), calls.Load())

	var second listPayload
	require.NoError(t, c.Fetch(ctx, "catalog_item:all:list:1:20", CategoryCatalog, &second, load))
	assert.Equal(t, int32(1), calls.Load(), "hit must not re-invoke the loader")
	assert.Equal(t, first, second)

	assert.Equal(t, int64(1), c.Hits())
	assert.Equal(t, int64(1), c.Misses())
}

func TestFetchScopeKeysIsolate(t *testing.T) {
	c := New(NewMemoryStore())
	ctx := context.Background()

	locA := auth.LocationScope(uuid.New())
	locB := auth.LocationScope(uuid.New())

	keyA := Key(auth.KindCatalogItem, locA, "list", "1", "20")
	keyB := Key(auth.KindCatalogItem, locB, "list", "1", "20")
	require.NotEqual(t, keyA, keyB)

	require.NoError(t, c.Fetch(ctx, keyA, CategoryCatalog, &listPayload{}, func(ctx context.Context) (interface{}, error) {
		return listPayload{Names: []string{"a-only"}}, nil
	}))

	// Scope B must not see scope A's entry.
	var got listPayload
	require.NoError(t, c.Fetch(ctx, keyB, CategoryCatalog, &got, func(ctx context.Context) (interface{}, error) {
		return listPayload{Names: []string{"b-only"}}, nil
	}))
	assert.Equal(t, []string{"b-only"}, got.Names)
}

func TestFetchLoaderErrorNotCached(t *testing.T) {
	c := New(NewMemoryStore())
	ctx := context.Background()

	boom := errors.New("repository down")
	err := c.Fetch(ctx, "k", CategoryCatalog, &listPayload{}, func(ctx context.Context) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	// A failed load leaves nothing behind; the next call reloads.
	var got listPayload
	require.NoError(t, c.Fetch(ctx, "k", CategoryCatalog, &got, func(ctx context.Context) (interface{}, error) {
		return listPayload{Total: 7}, nil
	}))
	assert.Equal(t, int64(7), got.Total)
}

func TestFetchConcurrentMissesCollapse(t *testing.T) {
	c := New(NewMemoryStore())
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		<-release
		return listPayload{Total: 1}, nil
	}

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			var out listPayload
			assert.NoError(t, c.Fetch(ctx, "shared", CategoryCatalog, &out, load))
		}()
	}

	// Give every worker a chance to reach the singleflight barrier.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent misses must collapse into one load")
}

func TestInvalidate(t *testing.T) {
	store := NewMemoryStore()
	c := New(store)
	ctx := context.Background()

	locA := uuid.New()
	locB := uuid.New()
	seed := func(key string) {
		require.NoError(t, c.Fetch(ctx, key, CategoryCatalog, &listPayload{}, func(ctx context.Context) (interface{}, error) {
			return listPayload{}, nil
		}))
	}
	seed("catalog_item:loc:" + locA.String() + ":list:1:20")
	seed("catalog_item:loc:" + locA.String() + ":list:2:20")
	seed("catalog_item:loc:" + locB.String() + ":list:1:20")

	c.Invalidate("catalog_item:loc:" + locA.String() + ":*")

	// Sibling location entries survive.
	assert.Equal(t, 1, store.Len())

	// Invalidating an already-clean pattern is a no-op.
	c.Invalidate("catalog_item:loc:" + locA.String() + ":*")
	assert.Equal(t, 1, store.Len())
}

func TestFetchCorruptEntryWithGlobKey(t *testing.T) {
	store := NewMemoryStore()
	c := New(store)
	ctx := context.Background()

	// Keys embed raw user search strings; glob metacharacters must not
	// change what the corrupt-entry cleanup deletes.
	key := "catalog_item:all:list:1:20:[*]"
	require.NoError(t, store.Set(key, []byte("{not json"), time.Minute))
	require.NoError(t, store.Set("catalog_item:all:list:1:20:x", []byte(`{"total":9}`), time.Minute))

	var got listPayload
	var calls atomic.Int32
	require.NoError(t, c.Fetch(ctx, key, CategoryCatalog, &got, func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return listPayload{Total: 5}, nil
	}))

	assert.Equal(t, int32(1), calls.Load(), "corrupt entry falls through to the loader")
	assert.Equal(t, int64(5), got.Total)

	// The sibling entry is untouched and the rewritten key decodes.
	raw, ok := store.Get("catalog_item:all:list:1:20:x")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"total":9}`), raw)
}

func TestFetchMarshalFailureStillServes(t *testing.T) {
	store := NewMemoryStore()
	c := New(store)
	ctx := context.Background()

	// Channels cannot marshal; the read must still serve the loaded value.
	var got map[string]interface{}
	err := c.Fetch(ctx, "k", CategoryCatalog, &got, func(ctx context.Context) (interface{}, error) {
		return map[string]interface{}{"ch": make(chan int)}, nil
	})
	require.NoError(t, err)
	assert.Contains(t, got, "ch")
	assert.Equal(t, 0, store.Len(), "an unserializable value is never stored")

	// Same degradation without a backing store.
	var nilCache *Cache
	got = nil
	require.NoError(t, nilCache.Fetch(ctx, "k", CategoryCatalog, &got, func(ctx context.Context) (interface{}, error) {
		return map[string]interface{}{"ch": make(chan int)}, nil
	}))
	assert.Contains(t, got, "ch")
}

func TestNilCacheDegradesToLoader(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	var calls atomic.Int32
	load := func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return listPayload{Total: 3}, nil
	}

	var got listPayload
	require.NoError(t, c.Fetch(ctx, "k", CategoryCatalog, &got, load))
	require.NoError(t, c.Fetch(ctx, "k", CategoryCatalog, &got, load))

	assert.Equal(t, int32(2), calls.Load(), "nil cache always calls the loader")
	assert.Equal(t, int64(3), got.Total)

	// Invalidate and counters are safe on a nil cache.
	c.Invalidate("k")
	assert.Equal(t, int64(0), c.Hits())
	assert.Equal(t, int64(0), c.Misses())
}

func TestKeyShape(t *testing.T) {
	loc := uuid.New()
	scope := auth.LocationScope(loc)

	key := Key(auth.KindTransaction, scope, "list", "1", "20", "PENDING")
	assert.Equal(t, "transaction:loc:"+loc.String()+":list:1:20:PENDING", key)
}

func TestCategoryTTLs(t *testing.T) {
	assert.Equal(t, 10*time.Minute, CategoryCatalog.TTL())
	assert.Equal(t, 30*time.Minute, CategoryLocation.TTL())
	assert.Equal(t, 30*time.Minute, CategoryTransaction.TTL())
	assert.Equal(t, 60*time.Minute, CategoryAccount.TTL())
	assert.Equal(t, 24*time.Hour, CategoryReference.TTL())
}
