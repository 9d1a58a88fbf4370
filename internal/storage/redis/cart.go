// Package redis stores short-lived state in Redis: per-user carts and cached
// JSON payloads.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/swag-store/internal/domain/cart"
)

const cartKeyPrefix = "cart:"

// CartStore implements cart.Store. Each cart is a JSON document whose TTL is
// refreshed on every save.
type CartStore struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewCartStore creates a CartStore. A non-positive ttl keeps carts forever.
func NewCartStore(client goredis.UniversalClient, ttl time.Duration) *CartStore {
	if ttl < 0 {
		ttl = 0
	}
	return &CartStore{client: client, ttl: ttl}
}

func cartKey(userKey string) string {
	return cartKeyPrefix + userKey
}

// Load returns the user's cart, or an empty cart when none is stored.
func (s *CartStore) Load(ctx context.Context, userKey string) (*cart.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(userKey)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return &cart.Cart{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	var c cart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	return &c, nil
}

// Save writes the cart. Empty carts are deleted instead.
func (s *CartStore) Save(ctx context.Context, userKey string, c *cart.Cart) error {
	if c == nil || c.Empty() {
		return s.Delete(ctx, userKey)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}
	if err := s.client.Set(ctx, cartKey(userKey), data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "set cart")
	}
	return nil
}

// Delete removes the user's cart.
func (s *CartStore) Delete(ctx context.Context, userKey string) error {
	if err := s.client.Del(ctx, cartKey(userKey)).Err(); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}
