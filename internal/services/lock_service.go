package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockTTL   = 10 * time.Second
	lockRetry = 25 * time.Millisecond
)

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock re-acquired by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// KeyedLocks serializes check-then-write sequences per logical key (a usage
// subject, or a collection+day pair during id allocation). With a Redis
// client configured the lock is held across instances via SET NX with a TTL;
// without one it degrades to per-key in-process mutexes, which is sufficient
// for a single-instance deployment.
type KeyedLocks struct {
	redis *redis.Client // nil for in-process mode
	local sync.Map      // map[string]*sync.Mutex
}

// NewKeyedLocks creates a lock service. Pass a nil client for in-process locks.
func NewKeyedLocks(client *redis.Client) *KeyedLocks {
	return &KeyedLocks{redis: client}
}

// Acquire takes the lock for key, blocking until it is held or ctx is done.
// The returned release function must be called exactly once.
func (l *KeyedLocks) Acquire(ctx context.Context, key string) (release func(), err error) {
	if l.redis == nil {
		mu := l.localMutex(key)
		mu.Lock()
		return mu.Unlock, nil
	}

	redisKey := "lock:" + key
	token := uuid.NewString()

	for {
		ok, err := l.redis.SetNX(ctx, redisKey, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
		case <-time.After(lockRetry):
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(ctx, l.redis, []string{redisKey}, token).Result()
	}, nil
}

func (l *KeyedLocks) localMutex(key string) *sync.Mutex {
	if mu, ok := l.local.Load(key); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := l.local.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
