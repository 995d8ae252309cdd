package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, DiscussionConfig{}, cfg.Discussion)
	assert.NotEqual(t, LLMConfig{}, cfg.LLM)
	assert.NotEqual(t, PersistenceConfig{}, cfg.Persistence)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
}

func TestDefaultDiscussionConfig(t *testing.T) {
	cfg := DefaultDiscussionConfig()
	assert.Equal(t, 12, cfg.MaxTurns)
	assert.Equal(t, 5, cfg.ContextWindow)
	assert.Equal(t, 3, cfg.MaxSentences)
	assert.Equal(t, 10, cfg.FrequencyWindow)
	assert.Equal(t, 8, cfg.RecentWindow)
	assert.Equal(t, 200, cfg.EntryTruncate)
	assert.Equal(t, 100, cfg.PersonaSummary)
	assert.Equal(t, 60*time.Second, cfg.BackendTimeout)
	assert.Equal(t, "adaptive", cfg.DefaultMode)
	assert.Equal(t, 3, cfg.Roles)
}

func TestDefaultLLMConfig(t *testing.T) {
	cfg := DefaultLLMConfig()
	assert.Equal(t, 0.8, cfg.SpeechTemperature)
	assert.Equal(t, 200, cfg.SpeechMaxTokens)
	assert.Equal(t, 0.9, cfg.JudgeTemperature)
	assert.Equal(t, 20, cfg.JudgeMaxTokens)
	assert.Equal(t, 0.8, cfg.RoleTemperature)
	assert.Equal(t, 800, cfg.RoleMaxTokens)
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 8080, cfg.HTTPPort)
	// 写超时必须覆盖一次完整的后端调用
	assert.Greater(t, cfg.WriteTimeout, DefaultDiscussionConfig().BackendTimeout)
	assert.Empty(t, cfg.CORSAllowedOrigins)
}

func TestDefaultPersistenceConfig(t *testing.T) {
	cfg := DefaultPersistenceConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "agentpanel:", cfg.KeyPrefix)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
}
