package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redisv9 "github.com/redis/go-redis/v9"
)

var releaseScript = redisv9.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SubmitGuard allows one in-flight submission per user.
type SubmitGuard struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewSubmitGuard(client *redisv9.Client, ttl time.Duration) *SubmitGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SubmitGuard{client: client, ttl: ttl}
}

// Acquire returns ok=false when another submission by userID holds the
// guard. The release func only deletes the guard it acquired.
func (g *SubmitGuard) Acquire(ctx context.Context, userID string) (release func(), ok bool, err error) {
	key := submitKey(userID)
	token := uuid.NewString()

	ok, err = g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis acquire submit guard failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, g.client, []string{key}, token).Err()
	}, true, nil
}

func submitKey(userID string) string {
	return fmt.Sprintf("experiences:submit:%s", userID)
}
