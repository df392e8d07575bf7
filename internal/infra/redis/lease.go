package redis

import (
	"context"
	"time"

	"assessment-engine/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// StartGuard implements app.StartGuard with SET NX PX, so the lease holds
// across every process sharing the Redis instance.
type StartGuard struct {
	client *redis.Client
}

func NewStartGuard(client *redis.Client) *StartGuard {
	return &StartGuard{client: client}
}

func (g *StartGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	release, ok, err := acquire(ctx, g.client, "lease:start:"+key, ttl)
	if err != nil {
		return nil, domain.Persistence("acquire start lease", err)
	}
	if !ok {
		return nil, domain.ErrStartInProgress
	}
	return release, nil
}

func acquire(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func() {
		// Detached so a cancelled request still frees its lock.
		_ = releaseScript.Run(context.WithoutCancel(ctx), client, []string{key}, token).Err()
	}, true, nil
}
