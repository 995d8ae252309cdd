package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentpanel/agent/discussion"
	"github.com/BaSui01/agentpanel/agent/persistence"
	"github.com/BaSui01/agentpanel/agent/roles"
	"github.com/BaSui01/agentpanel/api/handlers"
	"github.com/BaSui01/agentpanel/config"
	"github.com/BaSui01/agentpanel/internal/cache"
	"github.com/BaSui01/agentpanel/internal/database"
	"github.com/BaSui01/agentpanel/internal/migration"
	"github.com/BaSui01/agentpanel/llm"
	"github.com/BaSui01/agentpanel/llm/providers"
	"github.com/BaSui01/agentpanel/llm/providers/openai"
)

// =============================================================================
// 🧩 组件装配（serve 与 chat 共用）
// =============================================================================

// roleCacheTTL 生成角色的缓存时间
const roleCacheTTL = 24 * time.Hour

// discussionConfig 将配置段转换为讨论引擎配置
func discussionConfig(dc config.DiscussionConfig) discussion.Config {
	mode, err := discussion.ParseMode(dc.DefaultMode)
	if err != nil {
		mode = discussion.ModeAdaptive
	}
	return discussion.Config{
		MaxTurns:       dc.MaxTurns,
		ContextWindow:  dc.ContextWindow,
		MaxSentences:   dc.MaxSentences,
		BackendTimeout: dc.BackendTimeout,
		DefaultMode:    mode,
		Adaptive: discussion.AdaptiveConfig{
			FrequencyWindow: dc.FrequencyWindow,
			RecentWindow:    dc.RecentWindow,
			EntryTruncate:   dc.EntryTruncate,
			PersonaSummary:  dc.PersonaSummary,
		},
	}
}

// speechSettings / judgeSettings / roleSettings 采样参数
func speechSettings(lc config.LLMConfig) discussion.SamplingSettings {
	return discussion.SamplingSettings{Model: lc.Model, Temperature: float32(lc.SpeechTemperature), MaxTokens: lc.SpeechMaxTokens}
}

func judgeSettings(lc config.LLMConfig) discussion.SamplingSettings {
	return discussion.SamplingSettings{Model: lc.Model, Temperature: float32(lc.JudgeTemperature), MaxTokens: lc.JudgeMaxTokens}
}

func roleSettings(lc config.LLMConfig) roles.GeneratorConfig {
	return roles.GeneratorConfig{Model: lc.Model, Temperature: float32(lc.RoleTemperature), MaxTokens: lc.RoleMaxTokens}
}

// newProvider 创建 OpenAI 兼容 Provider
func newProvider(lc config.LLMConfig, logger *zap.Logger) *openai.Provider {
	return openai.New(providers.OpenAIConfig{
		BaseProviderConfig: providers.BaseProviderConfig{
			APIKey:  lc.APIKey,
			BaseURL: lc.BaseURL,
			Model:   lc.Model,
			Timeout: lc.Timeout,
		},
	}, logger)
}

// withRetries 为 Provider 增加指数退避重试
func withRetries(p llm.Provider, maxRetries int, logger *zap.Logger) llm.Provider {
	if maxRetries <= 0 {
		return p
	}
	rc := providers.DefaultRetryConfig()
	rc.MaxRetries = maxRetries
	return providers.NewRetryableProvider(p, rc, logger)
}

// =============================================================================
// 🗄️ 存储
// =============================================================================

// storage 持有存储及其底层资源
type storage struct {
	store persistence.Store
	pool  *database.PoolManager
	cache *cache.Manager
}

// Close 关闭所有底层资源
func (s *storage) Close() error {
	var firstErr error
	if s.cache != nil {
		if err := s.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// openStorage 根据 persistence.type 打开存储
func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	st := &storage{}

	switch persistence.StoreType(cfg.Persistence.Type) {
	case persistence.StoreTypeMemory, "":
		st.store = persistence.NewMemoryStore()

	case persistence.StoreTypeRedis:
		store, err := persistence.NewStore(persistence.StoreConfig{
			Type: persistence.StoreTypeRedis,
			Redis: persistence.RedisStoreConfig{
				Addr:      cfg.Redis.Addr,
				Password:  cfg.Redis.Password,
				DB:        cfg.Redis.DB,
				PoolSize:  cfg.Redis.PoolSize,
				KeyPrefix: cfg.Persistence.KeyPrefix,
			},
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		st.store = store

		// 生成的角色缓存在同一个 Redis 上；不可用时退化为不缓存
		cm, err := cache.NewManager(cache.ConfigFromRedis(cfg.Redis, cfg.Persistence.KeyPrefix), logger)
		if err != nil {
			logger.Warn("role cache disabled", zap.Error(err))
		} else {
			st.cache = cm
		}

	case persistence.StoreTypeDatabase:
		dbCfg := cfg.Database
		if dbCfg.AutoMigrate {
			if err := migrateUp(ctx, dbCfg, logger); err != nil {
				return nil, err
			}
		}
		pool, err := database.Open(dbCfg.Driver, dbCfg.DSN(), database.PoolConfig{
			MaxOpenConns:        dbCfg.MaxOpenConns,
			MaxIdleConns:        dbCfg.MaxIdleConns,
			ConnMaxLifetime:     dbCfg.ConnMaxLifetime,
			ConnMaxIdleTime:     database.DefaultPoolConfig().ConnMaxIdleTime,
			HealthCheckInterval: dbCfg.HealthCheckInterval,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		st.pool = pool

		store, err := persistence.NewStore(persistence.StoreConfig{Type: persistence.StoreTypeDatabase}, pool.DB())
		if err != nil {
			_ = pool.Close()
			return nil, err
		}
		st.store = store

	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Persistence.Type)
	}

	logger.Info("storage ready", zap.String("type", cfg.Persistence.Type))
	return st, nil
}

// migrateUp 启动时执行迁移
func migrateUp(ctx context.Context, dbCfg config.DatabaseConfig, logger *zap.Logger) error {
	m, err := migration.NewMigratorFromDatabaseConfig(dbCfg, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(ctx); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// newRoleSource 创建角色生成器；有缓存时包一层 CachedGenerator
func newRoleSource(provider llm.Provider, lc config.LLMConfig, c *cache.Manager, logger *zap.Logger) handlers.RoleSource {
	gen := roles.NewGenerator(provider, roleSettings(lc), logger)
	if c == nil {
		return gen
	}
	return roles.NewCachedGenerator(gen, c, roleCacheTTL, logger)
}
