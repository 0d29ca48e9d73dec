package redis

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tomatomall/internal/pkg/bootstrap"
)

// 需要真实 Redis：REDIS_ADDRS=localhost:6379 go test ./internal/pkg/redis/...
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addrs := os.Getenv("REDIS_ADDRS")
	if addrs == "" {
		t.Skip("REDIS_ADDRS not set")
	}
	c, err := NewClient(context.Background(), bootstrap.RedisConfig{Addrs: strings.Split(addrs, ",")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGuard_Acquire(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	g, err := NewGuard(c, "test:guard:"+uuid.NewString()+":", 5*time.Second)
	require.NoError(t, err)

	release, ok, err := g.Acquire(ctx, "42")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = g.Acquire(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be rejected")

	release(ctx)
	release2, ok, err := g.Acquire(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)
	release2(ctx)
}

func TestGuard_StaleReleaseKeepsNewHolder(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	g, err := NewGuard(c, "test:guard:"+uuid.NewString()+":", 100*time.Millisecond)
	require.NoError(t, err)

	stale, ok, err := g.Acquire(ctx, "7")
	require.NoError(t, err)
	require.True(t, ok)
	time.Sleep(200 * time.Millisecond)

	_, ok, err = g.Acquire(ctx, "7")
	require.NoError(t, err)
	require.True(t, ok)

	stale(ctx)
	_, ok, err = g.Acquire(ctx, "7")
	require.NoError(t, err)
	assert.False(t, ok, "expired holder must not release the new one")
}

func TestLoadScriptFromContent_Empty(t *testing.T) {
	c := Wrap(nil)
	assert.Error(t, c.LoadScriptFromContent("empty", ""))
	_, err := c.RunScript(context.Background(), "missing", nil)
	assert.Error(t, err)
}
