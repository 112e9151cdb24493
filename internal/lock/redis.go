package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docsign/internal/domain"
	"docsign/internal/port"
)

const (
	keyPrefix    = "docsign:lock:"
	pollInterval = 50 * time.Millisecond
)

// releaseScript deletes the key only when it still holds our token, so an
// expired lock re-acquired by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis serializes signing per document across instances.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedis creates a DocumentLocker backed by SET NX PX. ttl bounds how long
// a crashed holder can block a document.
func NewRedis(client *redis.Client, ttl time.Duration, log *zap.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, log: log.With(zap.String("component", "redis_lock"))}
}

var _ port.DocumentLocker = (*Redis)(nil)

// Lock polls until the key is acquired or ctx is done.
func (r *Redis) Lock(ctx context.Context, documentID uuid.UUID) (func(), error) {
	key := keyPrefix + documentID.String()
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, domain.ErrLockNotAcquired
			}
			return nil, fmt.Errorf("redisLock.Lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, domain.ErrLockNotAcquired
		case <-ticker.C:
		}
	}

	return func() {
		// Release must run even when the request context is already done.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			r.log.Warn("redisLock.Unlock: release failed", zap.String("document_id", documentID.String()), zap.Error(err))
		}
	}, nil
}

// Ping reports whether Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("redisLock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
