package roles

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentpanel/agent/discussion"
)

// Source produces agents for a topic. *Generator implements it.
type Source interface {
	Generate(ctx context.Context, topic string, n int) ([]discussion.Agent, error)
}

// Cache is the subset of internal/cache.Manager used for generated rosters.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// CachedGenerator memoizes generated rosters per (topic, count). Cache
// failures are logged and treated as misses.
type CachedGenerator struct {
	source Source
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedGenerator wraps source with cache. A zero ttl uses the cache default.
func NewCachedGenerator(source Source, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedGenerator{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "role_cache")),
	}
}

// Generate returns cached agents for topic when present, otherwise generates
// and stores them. Generation errors are never cached.
func (c *CachedGenerator) Generate(ctx context.Context, topic string, n int) ([]discussion.Agent, error) {
	key := CacheKey(topic, n)

	var cached []discussion.Agent
	if err := c.cache.GetJSON(ctx, key, &cached); err == nil && len(cached) > 0 {
		if _, err := discussion.NewRegistry(cached...); err == nil {
			c.logger.Debug("roles served from cache", zap.String("key", key))
			return cached, nil
		}
		c.logger.Warn("ignoring cached roles that no longer form a registry", zap.String("key", key))
	}

	agents, err := c.source.Generate(ctx, topic, n)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetJSON(ctx, key, agents, c.ttl); err != nil {
		c.logger.Warn("failed to cache generated roles", zap.String("key", key), zap.Error(err))
	}
	return agents, nil
}

// GenerateOrFallback behaves like Generator.GenerateOrFallback.
func (c *CachedGenerator) GenerateOrFallback(ctx context.Context, topic string, n int) []discussion.Agent {
	agents, err := c.Generate(ctx, topic, n)
	if err != nil {
		c.logger.Warn("role generation failed, using fallback roster", zap.Error(err))
		return FallbackRoster()
	}
	return agents
}

// CacheKey is stable across whitespace and letter case of the topic.
func CacheKey(topic string, n int) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.Join(strings.Fields(topic), " "))))
	return "roles:" + strconv.Itoa(n) + ":" + hex.EncodeToString(sum[:12])
}
