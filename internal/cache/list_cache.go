package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"experienceboard/internal/model"
)

const (
	listKey      = "experiences:list"
	listDirtyKey = "experiences:list:dirty"
)

// ListCache holds the full experience list. After Invalidate, Set is refused
// until the dirty marker expires so a read that started before the write
// cannot put stale data back.
type ListCache struct {
	client         *redisv9.Client
	listTTL        time.Duration
	dirtyMarkerTTL time.Duration
}

func NewListCache(client *redisv9.Client, listTTL, dirtyMarkerTTL time.Duration) *ListCache {
	if listTTL <= 0 {
		listTTL = 30 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 2 * time.Second
	}
	return &ListCache{
		client:         client,
		listTTL:        listTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *ListCache) Get(ctx context.Context) ([]model.Experience, bool, error) {
	raw, err := c.client.Get(ctx, listKey).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get experience list failed: %w", err)
	}

	var list []model.Experience
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached experience list failed: %w", err)
	}
	return list, true, nil
}

func (c *ListCache) Set(ctx context.Context, list []model.Experience) error {
	dirty, err := c.client.Exists(ctx, listDirtyKey).Result()
	if err != nil {
		return fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	if dirty > 0 {
		return nil
	}

	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal experience list cache failed: %w", err)
	}
	if err := c.client.Set(ctx, listKey, payload, c.listTTL).Err(); err != nil {
		return fmt.Errorf("redis set experience list failed: %w", err)
	}
	return nil
}

func (c *ListCache) Invalidate(ctx context.Context) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, listDirtyKey, "1", c.dirtyMarkerTTL)
	pipe.Del(ctx, listKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis invalidate experience list failed: %w", err)
	}
	return nil
}
