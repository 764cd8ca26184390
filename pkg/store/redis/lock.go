package redis

import (
	"context"
	"time"

	"benchhub/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// unlockScript deletes the lock only when it still holds our token, so an
// expired lock reacquired by another instance is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// Mutex is a best-effort distributed lock used to serialize dispatch ticks
// and health sweeps across orchestrator instances. With a nil client it
// degrades to an always-granted lock for single-instance deployments.
type Mutex struct {
	rdb   *redis.Client
	key   string
	token string
	ttl   time.Duration
}

func NewMutex(rdb *redis.Client, name string, ttl time.Duration) *Mutex {
	return &Mutex{
		rdb:   rdb,
		key:   lockKeyPrefix + name,
		token: uuid.New().String(),
		ttl:   ttl,
	}
}

// TryLock attempts to take the lock without blocking.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	if m.rdb == nil {
		return true, nil
	}
	return m.rdb.SetNX(ctx, m.key, m.token, m.ttl).Result()
}

// Unlock releases the lock if this instance still owns it.
func (m *Mutex) Unlock(ctx context.Context) {
	if m.rdb == nil {
		return
	}
	if err := unlockScript.Run(ctx, m.rdb, []string{m.key}, m.token).Err(); err != nil && err != redis.Nil {
		logger.Warnf("Failed to release lock %s: %v", m.key, err)
	}
}
