package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownCache maps a component name to the time its cooldown expires. The
// in-memory implementation is the default single-instance backend; NewRedisCooldown
// lets multiple coordinator instances share cooldown state, mirroring the
// teacher's pattern of offering Redis-backed state as an optional, not
// required, shared-state convenience (spec's Non-goals rule out distributed
// consensus, not shared caches).
type CooldownCache interface {
	Get(ctx context.Context, component string) (time.Time, bool, error)
	Set(ctx context.Context, component string, until time.Time) error
}

type memCooldown struct {
	mu   sync.Mutex
	data map[string]time.Time
}

// NewMemCooldown constructs an in-process CooldownCache.
func NewMemCooldown() CooldownCache {
	return &memCooldown{data: make(map[string]time.Time)}
}

func (c *memCooldown) Get(_ context.Context, component string) (time.Time, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.data[component]
	return t, ok, nil
}

func (c *memCooldown) Set(_ context.Context, component string, until time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[component] = until
	return nil
}

type redisCooldown struct {
	client *redis.Client
	prefix string
}

// NewRedisCooldown constructs a CooldownCache backed by client, namespaced
// under prefix (e.g. "mindforge:cooldown:").
func NewRedisCooldown(client *redis.Client, prefix string) CooldownCache {
	return &redisCooldown{client: client, prefix: prefix}
}

func (c *redisCooldown) Get(ctx context.Context, component string) (time.Time, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+component).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (c *redisCooldown) Set(ctx context.Context, component string, until time.Time) error {
	ttl := time.Until(until)
	if ttl < 0 {
		ttl = 0
	}
	return c.client.Set(ctx, c.prefix+component, until.Format(time.RFC3339Nano), ttl).Err()
}
