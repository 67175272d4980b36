package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DedupStore remembers processed message ids for the dedup window.
// MarkIfNew returns true exactly once per id within the window. Forget
// releases a mark so a message that failed to enqueue can be
// redelivered and processed.
type DedupStore interface {
	MarkIfNew(ctx context.Context, messageID string) (bool, error)
	Forget(ctx context.Context, messageID string) error
}

func dedupKey(messageID string) string {
	return "dedup:msg:" + messageID
}

// RedisDedup implements the dedup window with SETNX and a TTL, so a
// vendor redelivery of the same message id is acknowledged without a
// second dispatch.
type RedisDedup struct {
	Client *redis.Client
	Window time.Duration
}

func NewRedisDedup(client *redis.Client, window time.Duration) *RedisDedup {
	return &RedisDedup{Client: client, Window: window}
}

func (d *RedisDedup) MarkIfNew(ctx context.Context, messageID string) (bool, error) {
	fresh, err := d.Client.SetNX(ctx, dedupKey(messageID), 1, d.Window).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return fresh, nil
}

func (d *RedisDedup) Forget(ctx context.Context, messageID string) error {
	if err := d.Client.Del(ctx, dedupKey(messageID)).Err(); err != nil {
		return fmt.Errorf("dedup release failed: %w", err)
	}
	return nil
}

// MemoryDedup is the in-process dedup store used in tests.
type MemoryDedup struct {
	mu   sync.Mutex
	seen map[string]time.Time

	Window time.Duration
}

func NewMemoryDedup(window time.Duration) *MemoryDedup {
	return &MemoryDedup{seen: make(map[string]time.Time), Window: window}
}

func (d *MemoryDedup) MarkIfNew(_ context.Context, messageID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	if at, ok := d.seen[messageID]; ok && now.Sub(at) <= d.Window {
		return false, nil
	}
	d.seen[messageID] = now
	return true, nil
}

func (d *MemoryDedup) Forget(_ context.Context, messageID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, messageID)
	return nil
}
