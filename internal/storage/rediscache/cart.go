// Package rediscache caches carts in Redis for the read path.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/bytebuy/internal/domain/cart"
)

var _ cart.Cache = (*CartCache)(nil)

// setIfNotOlder writes the cart hash unless the cached version is newer.
//
// KEYS[1] cart key; ARGV[1] version (UpdatedAt in µs); ARGV[2] JSON; ARGV[3] TTL in ms.
var setIfNotOlder = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// CartCache implements cart.Cache with versioned JSON hashes and a jittered
// TTL so entries written together do not expire together.
type CartCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
	jitter  time.Duration
}

// NewCartCache returns a CartCache. Entries live between ttl and ttl+ttl/3.
func NewCartCache(client redis.UniversalClient, ttl time.Duration) *CartCache {
	return &CartCache{
		client:  client,
		baseTTL: ttl,
		jitter:  ttl / 3,
	}
}

// Get returns the cached cart or cart.ErrCacheMiss.
func (c *CartCache) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	data, err := c.client.HGet(ctx, cacheKey(userID), "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var out cart.Cart
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &out, nil
}

// Set stores v under its user key unless a later version is already cached.
func (c *CartCache) Set(ctx context.Context, v *cart.Cart) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	ttl := c.baseTTL
	if c.jitter > 0 {
		ttl += rand.N(c.jitter)
	}
	err = setIfNotOlder.Run(ctx, c.client,
		[]string{cacheKey(v.UserID)},
		version(v.UpdatedAt), data, ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete evicts the user's cart. Deleting a missing key is not an error.
func (c *CartCache) Delete(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return "cart:" + userID
}

// version keeps within the 2^53 range Lua numbers represent exactly.
func version(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}
