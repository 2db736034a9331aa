package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"platform/internal/auth"
)

// Category is a named class of cache entries sharing one expiration policy.
// Bands trade staleness against load; they are never tuned per request.
type Category string

const (
	CategoryCatalog     Category = "catalog"
	CategoryLocation    Category = "location"
	CategoryTransaction Category = "transaction"
	CategoryAccount     Category = "account"
	CategoryReference   Category = "reference"
)

func (c Category) TTL() time.Duration {
	switch c {
	case CategoryCatalog:
		return 10 * time.Minute
	case CategoryLocation:
		return 30 * time.Minute
	case CategoryTransaction:
		return 30 * time.Minute
	case CategoryAccount:
		return 60 * time.Minute
	case CategoryReference:
		return 24 * time.Hour
	default:
		return 10 * time.Minute
	}
}

// Key builds a cache key from resource kind, resolved scope and identifying
// suffix parts. Embedding the scope token is mandatory: two principals with
// different scopes for the same logical query must never share a key.
func Key(kind auth.ResourceKind, scope auth.ScopeFilter, parts ...string) string {
	segs := append([]string{string(kind), scope.Token()}, parts...)
	return strings.Join(segs, ":")
}

// Loader produces the authoritative value on a cache miss. It runs behind
// the authorization gate, never before it.
type Loader func(ctx context.Context) (interface{}, error)

// Cache fronts expensive reads with a best-effort TTL store. A nil Cache or
// nil backing store degrades to calling the loader directly, so the system
// stays correct with caching entirely unavailable.
type Cache struct {
	store  Store
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

func New(store Store) *Cache {
	return &Cache{store: store}
}

// Fetch returns the cached payload for key, or invokes loader, stores the
// result under the category's TTL, and returns it. Concurrent misses on the
// same key collapse into a single loader call. dest must be a pointer; the
// payload is JSON-decoded into it so repeated hits yield byte-identical data.
func (c *Cache) Fetch(ctx context.Context, key string, cat Category, dest interface{}, loader Loader) error {
	if c == nil || c.store == nil {
		return loadInto(ctx, dest, loader)
	}

	if payload, ok := c.store.Get(key); ok {
		if err := json.Unmarshal(payload, dest); err == nil {
			c.hits.Add(1)
			return nil
		}
		// Corrupt entry: drop it and fall through to the loader. Exact
		// delete, the key may embed glob metacharacters from user input.
		log.Printf("cache: discarding undecodable entry %q", key)
		if err := c.store.Delete(key); err != nil {
			log.Printf("cache: delete %q failed: %v", key, err)
		}
	}
	c.misses.Add(1)

	payload, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			// Serialization is a cache concern, not a load failure: serve
			// the authoritative value and skip the store.
			log.Printf("cache: marshal %q failed: %v", key, err)
			return &fetched{value: value}, nil
		}
		if err := c.store.Set(key, raw, cat.TTL()); err != nil {
			// Best effort: a store failure must never fail the read.
			log.Printf("cache: set %q failed: %v", key, err)
		}
		return &fetched{raw: raw}, nil
	})
	if err != nil {
		return err
	}
	res := payload.(*fetched)
	if res.raw != nil {
		return json.Unmarshal(res.raw, dest)
	}
	return assign(dest, res.value)
}

// fetched carries a load result out of the singleflight group: the cached
// byte form when it serialized, the raw value when it did not.
type fetched struct {
	raw   []byte
	value interface{}
}

// Invalidate removes every entry matching each pattern. Failures are logged
// and swallowed: a write that already committed must not fail because its
// invalidation did, the entry simply expires via TTL instead. Invalidating
// an already-clean pattern is a no-op.
func (c *Cache) Invalidate(patterns ...string) {
	if c == nil || c.store == nil {
		return
	}
	for _, p := range patterns {
		if err := c.store.DeleteMatching(p); err != nil {
			log.Printf("cache: invalidate %q failed: %v", p, err)
		}
	}
}

// Hits reports the number of cache hits recorded so far.
func (c *Cache) Hits() int64 {
	if c == nil {
		return 0
	}
	return c.hits.Load()
}

// Misses reports the number of cache misses recorded so far.
func (c *Cache) Misses() int64 {
	if c == nil {
		return 0
	}
	return c.misses.Load()
}

func loadInto(ctx context.Context, dest interface{}, loader Loader) error {
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return assign(dest, value)
	}
	return json.Unmarshal(raw, dest)
}

// assign copies a loaded value straight into dest for the paths where the
// JSON round-trip is unavailable.
func assign(dest, value interface{}) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return fmt.Errorf("cache: dest must be a non-nil pointer")
	}
	vv := reflect.ValueOf(value)
	if !vv.IsValid() {
		return fmt.Errorf("cache: loader returned nil")
	}
	if vv.Kind() == reflect.Ptr && !vv.IsNil() && vv.Type().Elem() == dv.Elem().Type() {
		vv = vv.Elem()
	}
	if !vv.Type().AssignableTo(dv.Elem().Type()) {
		return fmt.Errorf("cache: cannot assign %T to %T", value, dest)
	}
	dv.Elem().Set(vv)
	return nil
}
