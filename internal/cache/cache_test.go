package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	var got profile
	found, err := c.Get(ctx, "user:missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "user:1", profile{ID: "1", Name: "Ana"}, time.Minute))
	found, err = c.Get(ctx, "user:1", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Ana", got.Name)

	require.NoError(t, c.Delete(ctx, "user:1"))
	found, err = c.Get(ctx, "user:1", &got)
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, c.Ping(ctx))
}

func TestMemoryCache(t *testing.T) {
	exerciseCache(t, NewMemory())
}

func TestMemoryCacheExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	now = now.Add(2 * time.Minute)

	var v string
	found, err := m.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis integration test")
	}
	client := DialRedis(addr, "", 0)
	r := NewRedis(client, "travelties-test:")
	defer r.Close()
	exerciseCache(t, r)
}
