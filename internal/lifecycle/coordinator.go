package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Coordinator hands out expiring claims on keys. It serializes sweeps across
// replicas and remembers which staged warnings were already sent.
type Coordinator interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// releaseScript deletes a key only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type redisClaim struct {
	token string
	until time.Time
}

// RedisCoordinator implements Coordinator with SETNX. Each claim stores a
// fresh token so a release never removes a claim taken by someone else
// after ours expired.
type RedisCoordinator struct {
	client *redis.Client
	prefix string

	mu     sync.Mutex
	claims map[string]redisClaim
}

// NewRedisCoordinator creates a coordinator; every key is stored under prefix
func NewRedisCoordinator(client *redis.Client, prefix string) *RedisCoordinator {
	return &RedisCoordinator{client: client, prefix: prefix, claims: make(map[string]redisClaim)}
}

func (c *RedisCoordinator) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, c.prefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, claim := range c.claims {
		if now.After(claim.until) {
			delete(c.claims, k)
		}
	}
	c.claims[key] = redisClaim{token: token, until: now.Add(ttl)}
	return true, nil
}

// Release drops our claim on key. A claim that already expired, or that
// was never ours, is left alone.
func (c *RedisCoordinator) Release(ctx context.Context, key string) error {
	c.mu.Lock()
	claim, ok := c.claims[key]
	delete(c.claims, key)
	c.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, c.client, []string{c.prefix + key}, claim.token).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// LocalCoordinator keeps claims in process, for single-replica deployments
type LocalCoordinator struct {
	mu     sync.Mutex
	clock  clock.Clock
	claims map[string]time.Time
}

// NewLocalCoordinator creates an in-process coordinator
func NewLocalCoordinator(clk clock.Clock) *LocalCoordinator {
	return &LocalCoordinator{clock: clk, claims: make(map[string]time.Time)}
}

func (c *LocalCoordinator) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if until, ok := c.claims[key]; ok && now.Before(until) {
		return false, nil
	}
	c.claims[key] = now.Add(ttl)
	return true, nil
}

func (c *LocalCoordinator) Release(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claims, key)
	return nil
}
