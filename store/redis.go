package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLock is a distributed, per-tenant lock used to keep two
// BatchOrchestrator processes from syncing the same tenant concurrently.
// It is advisory only: nothing in this module enforces it beyond the
// orchestrator checking it before starting a tenant.
type RedisLock struct {
	client *redis.Client
}

// NewRedisLock parses url (e.g. redis://localhost:6379/0) and connects.
func NewRedisLock(url string) (*RedisLock, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisLock{client: client}, nil
}

// Acquire attempts to take the lock for tenantID, expiring automatically
// after ttl if never released. It returns false, nil when another holder
// already has it.
func (l *RedisLock) Acquire(ctx context.Context, tenantID string, ttl time.Duration) (bool, error) {
	key := "jirasync:lock:" + tenantID
	return l.client.SetNX(ctx, key, time.Now().Format(time.RFC3339), ttl).Result()
}

// Release drops the lock for tenantID, if held.
func (l *RedisLock) Release(ctx context.Context, tenantID string) error {
	return l.client.Del(ctx, "jirasync:lock:"+tenantID).Err()
}

// Close releases the underlying connection.
func (l *RedisLock) Close() error {
	return l.client.Close()
}

// Client returns the underlying Redis client so callers can build other
// Redis-backed components (e.g. CacheStatsPublisher) sharing one
// connection pool instead of opening a second one.
func (l *RedisLock) Client() *redis.Client {
	return l.client
}

// CacheStatsPublisher mirrors a tenant's RequestCache stats onto a Redis
// pub/sub channel. Subscribe has no caller in this module, and the serve
// command does not read the channel; the admin surface's /admin/cache endpoints report only the cache registry of
// the process serving them.
type CacheStatsPublisher struct {
	client *redis.Client
	topic  string
}

// NewCacheStatsPublisher wraps an already-connected Redis client.
func NewCacheStatsPublisher(client *redis.Client, topic string) *CacheStatsPublisher {
	return &CacheStatsPublisher{client: client, topic: topic}
}

// CacheStatsMessage is the payload the batch-sync command publishes once
// per tenant after a batch run.
type CacheStatsMessage struct {
	TenantID   string `json:"tenant_id"`
	Hits       int    `json:"hits"`
	Misses     int    `json:"misses"`
	CachedKeys int    `json:"cached_keys"`
}

// Publish mirrors msg onto the configured topic.
func (p *CacheStatsPublisher) Publish(ctx context.Context, msg CacheStatsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling cache stats: %w", err)
	}
	return p.client.Publish(ctx, p.topic, data).Err()
}

// Subscribe returns a channel of CacheStatsMessage received on the
// configured topic until ctx is canceled.
func (p *CacheStatsPublisher) Subscribe(ctx context.Context) (<-chan CacheStatsMessage, error) {
	pubsub := p.client.Subscribe(ctx, p.topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, err
	}

	out := make(chan CacheStatsMessage)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		ch := pubsub.Channel()
		for {
			select {
			case msg := <-ch:
				if msg == nil {
					return
				}
				var parsed CacheStatsMessage
				if err := json.Unmarshal([]byte(msg.Payload), &parsed); err == nil {
					out <- parsed
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
