package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "payment_lock:"

// releaseScript deletes the key only if it still holds our token, so an expired
// lock taken over by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client redis.UniversalClient
	logger *zap.Logger
}

func NewRedisLocker(client redis.UniversalClient, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{client: client, logger: logger.Named("lock")}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	lockKey := keyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", lockKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The request context may already be done; release on a short detached one.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		deleted, err := releaseScript.Run(rctx, l.client, []string{lockKey}, token).Int()
		if err != nil {
			l.logger.Warn("Failed to release lock, it stays held until its TTL",
				zap.String("key", lockKey),
				zap.Duration("ttl", ttl),
				zap.Error(err),
			)
			return
		}
		if deleted == 0 {
			l.logger.Warn("Lock expired before release", zap.String("key", lockKey), zap.Duration("ttl", ttl))
		}
	}
	return release, true, nil
}

// NoopLocker always grants the lock. The ledger's compare-and-set still applies.
type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}
