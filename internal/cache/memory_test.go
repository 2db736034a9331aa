package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	m := NewMemoryStore()

	require.NoError(t, m.Set("k", []byte("value"), time.Minute))
	got, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	m := NewMemoryStore()

	require.NoError(t, m.Set("k", []byte("v"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, ok := m.Get("k")
	assert.False(t, ok, "expired entry must not be served")
	assert.Equal(t, 0, m.Len(), "expired entry is dropped on read")
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	m := NewMemoryStore()

	src := []byte("payload")
	require.NoError(t, m.Set("k", src, time.Minute))
	src[0] = 'X'

	got, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got, "mutating the input must not change the stored value")

	got[0] = 'Y'
	again, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), again, "mutating a returned value must not change the stored value")
}

func TestMemoryStoreDeleteIsExact(t *testing.T) {
	m := NewMemoryStore()

	require.NoError(t, m.Set("list:[a-z]*", []byte("v1"), time.Minute))
	require.NoError(t, m.Set("list:abc", []byte("v2"), time.Minute))

	// The key is taken literally, never as a pattern.
	require.NoError(t, m.Delete("list:[a-z]*"))

	_, ok := m.Get("list:[a-z]*")
	assert.False(t, ok)
	_, ok = m.Get("list:abc")
	assert.True(t, ok)

	// Deleting a missing key is a no-op.
	require.NoError(t, m.Delete("missing"))
}

func TestMemoryStoreDeleteMatching(t *testing.T) {
	m := NewMemoryStore()

	keys := []string{
		"catalog_item:loc:a:list:1",
		"catalog_item:loc:a:list:2",
		"catalog_item:loc:b:list:1",
		"transaction:loc:a:list:1",
	}
	for _, k := range keys {
		require.NoError(t, m.Set(k, []byte("v"), time.Minute))
	}

	require.NoError(t, m.DeleteMatching("catalog_item:loc:a:*"))

	_, ok := m.Get("catalog_item:loc:a:list:1")
	assert.False(t, ok)
	_, ok = m.Get("catalog_item:loc:a:list:2")
	assert.False(t, ok)
	_, ok = m.Get("catalog_item:loc:b:list:1")
	assert.True(t, ok, "sibling location survives")
	_, ok = m.Get("transaction:loc:a:list:1")
	assert.True(t, ok, "other kinds survive")

	// Matching nothing is a no-op.
	require.NoError(t, m.DeleteMatching("nothing:*"))
	assert.Equal(t, 2, m.Len())
}

func TestMemoryStoreOverwriteRefreshesTTL(t *testing.T) {
	m := NewMemoryStore()

	require.NoError(t, m.Set("k", []byte("old"), 10*time.Millisecond))
	require.NoError(t, m.Set("k", []byte("new"), time.Minute))
	time.Sleep(20 * time.Millisecond)

	got, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), got)
}
