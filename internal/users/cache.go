package users

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheKeyPrefix = "users:id:"
	// cacheLoadTimeout bounds a shared load, which outlives any single caller.
	cacheLoadTimeout = 5 * time.Second
)

// cachedUser keeps the password hash that User hides from JSON.
type cachedUser struct {
	User
	PasswordHash string `json:"passwordHash"`
}

// CachedStore is a read-through Redis cache in front of a Store for lookups by id.
// Writes go to the backing store first and then evict the cached entry.
type CachedStore struct {
	Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCachedStore wraps store. A nil client disables caching.
func NewCachedStore(store Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{Store: store, client: client, ttl: ttl, logger: logger}
}

// FindByID serves from cache, loading through the backing store on a miss.
// Concurrent misses for the same id share one load. The load is detached from the
// caller's cancellation so one abandoned request cannot fail the others waiting on it.
func (c *CachedStore) FindByID(ctx context.Context, id string) (User, error) {
	if c.client == nil {
		return c.Store.FindByID(ctx, id)
	}
	key := cacheKeyPrefix + id
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cu cachedUser
		if err := json.Unmarshal(payload, &cu); err == nil {
			u := cu.User
			u.PasswordHash = cu.PasswordHash
			return u, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("user cache read failed", slog.String("id", id), slog.Any("error", err))
	}

	loadCtx := context.WithoutCancel(ctx)
	res := c.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(loadCtx, cacheLoadTimeout)
		defer cancel()
		u, err := c.Store.FindByID(ctx, id)
		if err != nil {
			return User{}, err
		}
		c.put(ctx, key, u)
		return u, nil
	})
	select {
	case <-ctx.Done():
		return User{}, ctx.Err()
	case r := <-res:
		if r.Err != nil {
			return User{}, r.Err
		}
		return r.Val.(User), nil
	}
}

// Update writes through and evicts the entry.
func (c *CachedStore) Update(ctx context.Context, u User) (User, error) {
	updated, err := c.Store.Update(ctx, u)
	c.evict(ctx, u.ID)
	return updated, err
}

// Deactivate writes through and evicts the entry.
func (c *CachedStore) Deactivate(ctx context.Context, id string) (bool, error) {
	ok, err := c.Store.Deactivate(ctx, id)
	c.evict(ctx, id)
	return ok, err
}

func (c *CachedStore) put(ctx context.Context, key string, u User) {
	payload, err := json.Marshal(cachedUser{User: u, PasswordHash: u.PasswordHash})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("user cache write failed", slog.String("id", u.ID), slog.Any("error", err))
	}
}

func (c *CachedStore) evict(ctx context.Context, id string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKeyPrefix+id).Err(); err != nil {
		c.logger.Warn("user cache evict failed", slog.String("id", id), slog.Any("error", err))
	}
}
