package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentpanel/config"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.DefaultTTL = time.Minute

	m, err := NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return mr, m
}

func TestNewManager_ConnectFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	_, err := NewManager(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestManager_JSONRoundTrip(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.SetJSON(ctx, "k", payload{Name: "a", Count: 2}, 0))
	assert.True(t, mr.Exists("agentpanel:cache:k"), "key prefix applied")

	var got payload
	require.NoError(t, m.GetJSON(ctx, "k", &got))
	assert.Equal(t, payload{Name: "a", Count: 2}, got)
}

func TestManager_Miss(t *testing.T) {
	_, m := setupTestRedis(t)

	var got payload
	err := m.GetJSON(context.Background(), "absent", &got)
	assert.True(t, IsCacheMiss(err))
}

func TestManager_TTL(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.SetJSON(ctx, "short", payload{}, 2*time.Second))
	require.NoError(t, m.SetJSON(ctx, "default", payload{}, 0))
	assert.Equal(t, 2*time.Second, mr.TTL("agentpanel:cache:short"))
	assert.Equal(t, time.Minute, mr.TTL("agentpanel:cache:default"))

	mr.FastForward(3 * time.Second)
	assert.True(t, IsCacheMiss(m.GetJSON(ctx, "short", &payload{})))
	assert.NoError(t, m.GetJSON(ctx, "default", &payload{}))
}

func TestManager_Delete(t *testing.T) {
	_, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.SetJSON(ctx, "a", payload{}, 0))
	require.NoError(t, m.Delete(ctx, "a"))
	require.NoError(t, m.Delete(ctx))
	assert.True(t, IsCacheMiss(m.GetJSON(ctx, "a", &payload{})))
}

func TestManager_InvalidValues(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	err := m.SetJSON(ctx, "bad", make(chan int), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal")

	require.NoError(t, mr.Set("agentpanel:cache:garbage", "{not json"))
	err = m.GetJSON(ctx, "garbage", &payload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestManager_Closed(t *testing.T) {
	_, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.Ping(ctx))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.ErrorIs(t, m.Ping(ctx), ErrClosed)
	assert.ErrorIs(t, m.SetJSON(ctx, "k", payload{}, 0), ErrClosed)
	assert.ErrorIs(t, m.GetJSON(ctx, "k", &payload{}), ErrClosed)
}

func TestManager_ConcurrentOperations(t *testing.T) {
	_, m := setupTestRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, m.SetJSON(ctx, "shared", payload{Count: i}, 0))
			var got payload
			assert.NoError(t, m.GetJSON(ctx, "shared", &got))
		}(i)
	}
	wg.Wait()
}

func TestConfigFromRedis(t *testing.T) {
	cfg := ConfigFromRedis(config.RedisConfig{Addr: "r:6379", DB: 2, PoolSize: 4}, "app:")
	assert.Equal(t, "r:6379", cfg.Addr)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, 4, cfg.PoolSize)
	assert.Equal(t, "app:cache:", cfg.KeyPrefix)

	cfg = ConfigFromRedis(config.RedisConfig{Addr: "r:6379"}, "")
	assert.Equal(t, DefaultConfig().KeyPrefix, cfg.KeyPrefix)
	assert.Equal(t, DefaultConfig().PoolSize, cfg.PoolSize)
}
