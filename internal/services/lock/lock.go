package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"
)

// releaseScript deletes the lock only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a cross-process run lock on a single Redis key per name
type RedisLock struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger arbor.ILogger
}

var _ interfaces.RunLock = (*RedisLock)(nil)

// NewRedisLock connects to Redis and verifies connectivity
func NewRedisLock(ctx context.Context, config *common.RedisConfig, logger arbor.ILogger) (*RedisLock, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = "nato-scraper"
	}

	return &RedisLock{
		client: client,
		prefix: prefix,
		ttl:    common.ParseDurationOr(config.LockTTL, 2*time.Hour),
		logger: logger,
	}, nil
}

// Key returns the Redis key guarding name
func (l *RedisLock) Key(name string) string {
	return l.prefix + ":lock:" + name
}

// Acquire takes the lock for name. acquired is false when another process holds it.
func (l *RedisLock) Acquire(ctx context.Context, name string) (func(), bool, error) {
	key := l.Key(name)
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		l.logger.Info().Str("key", key).Msg("Lock held by another process")
		return nil, false, nil
	}

	release := func() {
		// The caller's context may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("Failed to release lock")
		}
	}
	return release, true, nil
}

// Close closes the Redis client
func (l *RedisLock) Close() error {
	return l.client.Close()
}

// NoopLock always grants the lock. Used when Redis is not configured.
type NoopLock struct{}

var _ interfaces.RunLock = NoopLock{}

// Acquire always succeeds
func (NoopLock) Acquire(ctx context.Context, name string) (func(), bool, error) {
	return func() {}, true, nil
}
