package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultKey is the Redis key holding the store write lease.
const DefaultKey = "aquaflow:store:lock"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lease lock shared by every store server pointing at the same
// backend. The lease expires after ttl so a crashed holder cannot wedge writers.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	poll   time.Duration
	logger *zerolog.Logger
}

func NewRedis(client *redis.Client, key string, ttl time.Duration, logger *zerolog.Logger) *Redis {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Redis{client: client, key: key, ttl: ttl, poll: 25 * time.Millisecond, logger: logger}
}

func (r *Redis) Acquire(ctx context.Context, wait time.Duration) (func(), error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire redis lock: %w", err)
		}
		if ok {
			return r.releaser(token), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}

		sleep := r.poll
		if remaining < sleep {
			sleep = remaining
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (r *Redis) releaser(token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{r.key}, token).Err(); err != nil {
				r.logger.Warn().Err(err).Str("key", r.key).Msg("release redis lock")
			}
		})
	}
}
