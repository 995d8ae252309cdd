package roles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentpanel/agent/discussion"
	"github.com/BaSui01/agentpanel/internal/cache"
	"github.com/BaSui01/agentpanel/testutil/mocks"
)

const twoRoles = `{"roles":[{"name":"Startup CEO","stance":"s","personality":"p"},{"name":"Worker","stance":"s","personality":"p"}]}`

func newRedisCache(t *testing.T) (*miniredis.Miniredis, *cache.Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, cache.NewManagerWithClient(client, cache.DefaultConfig(), nil)
}

func TestCachedGenerator_HitsCache(t *testing.T) {
	_, c := newRedisCache(t)
	provider := mocks.NewSuccessProvider(twoRoles)
	g := NewCachedGenerator(NewGenerator(provider, DefaultGeneratorConfig(), nil), c, time.Hour, nil)
	ctx := context.Background()

	first, err := g.Generate(ctx, "Should we work overtime", 2)
	require.NoError(t, err)
	second, err := g.Generate(ctx, "  should WE work   overtime ", 2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.GetCallCount(), "second call is served from cache")
	assert.Equal(t, "Startup_CEO", second[0].Name)
	assert.Contains(t, second[0].Persona, "You are Startup CEO.")

	_, err = g.Generate(ctx, "Should we work overtime", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.GetCallCount(), "count is part of the key")
}

func TestCachedGenerator_ErrorsAreNotCached(t *testing.T) {
	mr, c := newRedisCache(t)
	provider := mocks.NewErrorProvider(errors.New("down"))
	g := NewCachedGenerator(NewGenerator(provider, DefaultGeneratorConfig(), nil), c, 0, nil)

	_, err := g.Generate(context.Background(), "topic", 3)
	require.Error(t, err)
	assert.Empty(t, mr.Keys())

	agents := g.GenerateOrFallback(context.Background(), "topic", 3)
	assert.Equal(t, []string{"Supporter", "Critic", "Mediator"}, namesOf(agents))
}

func TestCachedGenerator_UnregistrableRosterIsNotCached(t *testing.T) {
	mr, c := newRedisCache(t)
	provider := mocks.NewSuccessProvider(`[{"name":"Critic"},{"name":"critic."}]`)
	g := NewCachedGenerator(NewGenerator(provider, DefaultGeneratorConfig(), nil), c, time.Hour, nil)

	agents := g.GenerateOrFallback(context.Background(), "topic", 2)
	assert.Equal(t, []string{"Supporter", "Critic", "Mediator"}, namesOf(agents))
	assert.Empty(t, mr.Keys())
}

func TestCachedGenerator_SkipsStaleInvalidEntry(t *testing.T) {
	_, c := newRedisCache(t)
	ctx := context.Background()
	stale := []discussion.Agent{{Name: "You"}, {Name: "Critic"}}
	require.NoError(t, c.SetJSON(ctx, CacheKey("topic", 2), stale, time.Hour))

	provider := mocks.NewSuccessProvider(twoRoles)
	g := NewCachedGenerator(NewGenerator(provider, DefaultGeneratorConfig(), nil), c, time.Hour, nil)

	agents, err := g.Generate(ctx, "topic", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Startup_CEO", "Worker"}, namesOf(agents))
	assert.Equal(t, 1, provider.GetCallCount())
}

func TestCachedGenerator_CacheUnavailable(t *testing.T) {
	mr, c := newRedisCache(t)
	mr.Close()

	provider := mocks.NewSuccessProvider(twoRoles)
	g := NewCachedGenerator(NewGenerator(provider, DefaultGeneratorConfig(), nil), c, 0, nil)

	agents, err := g.Generate(context.Background(), "topic", 2)
	require.NoError(t, err, "cache outage degrades to direct generation")
	assert.Len(t, agents, 2)
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CacheKey("A  b", 3), CacheKey(" a B ", 3))
	assert.NotEqual(t, CacheKey("a b", 3), CacheKey("a b", 2))
	assert.NotEqual(t, CacheKey("a b", 3), CacheKey("a c", 3))
	assert.Regexp(t, `^roles:3:[0-9a-f]{24}$`, CacheKey("x", 3))
}
