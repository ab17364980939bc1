package cache

import (
	"context"
	"os"
	"testing"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"experienceboard/internal/model"
)

func testClient(t *testing.T) *redisv9.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redisv9.NewClient(&redisv9.Options{Addr: addr, DB: 15})
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		_ = client.Close()
	})
	return client
}

func TestSubmitKey(t *testing.T) {
	assert.Equal(t, "experiences:submit:u1", submitKey("u1"))
}

func TestListCacheRoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewListCache(testClient(t), time.Minute, 200*time.Millisecond)

	_, hit, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, []model.Experience{{ID: "r1", CompanyName: "Acme"}}))
	list, hit, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "Acme", list[0].CompanyName)

	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.Set(ctx, []model.Experience{{ID: "stale"}}))
	_, hit, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, hit)

	time.Sleep(300 * time.Millisecond)
	require.NoError(t, c.Set(ctx, []model.Experience{{ID: "fresh"}}))
	_, hit, err = c.Get(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestSubmitGuard(t *testing.T) {
	ctx := context.Background()
	g := NewSubmitGuard(testClient(t), time.Minute)

	release, ok, err := g.Acquire(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = g.Acquire(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	other, ok, err := g.Acquire(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, ok)
	other()

	release()
	release2, ok, err := g.Acquire(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}
