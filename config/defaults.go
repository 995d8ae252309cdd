// =============================================================================
// 📦 AgentPanel 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		Discussion:  DefaultDiscussionConfig(),
		LLM:         DefaultLLMConfig(),
		Persistence: DefaultPersistenceConfig(),
		Database:    DefaultDatabaseConfig(),
		Redis:       DefaultRedisConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    3 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
		MaxDiscussions:  1000,
	}
}

// DefaultDiscussionConfig 返回默认讨论配置
func DefaultDiscussionConfig() DiscussionConfig {
	return DiscussionConfig{
		MaxTurns:        12,
		ContextWindow:   5,
		MaxSentences:    3,
		FrequencyWindow: 10,
		RecentWindow:    8,
		EntryTruncate:   200,
		PersonaSummary:  100,
		BackendTimeout:  60 * time.Second,
		DefaultMode:     "adaptive",
		Roles:           3,
		Roster:          "classic",
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:           "https://api.openai.com",
		Model:             "gpt-4o-mini",
		Timeout:           60 * time.Second,
		MaxRetries:        3,
		SpeechTemperature: 0.8,
		SpeechMaxTokens:   200,
		JudgeTemperature:  0.9,
		JudgeMaxTokens:    20,
		RoleTemperature:   0.8,
		RoleMaxTokens:     800,
	}
}

// DefaultPersistenceConfig 返回默认存储配置
func DefaultPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		Type:      "memory",
		KeyPrefix: "agentpanel:",
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
		PoolSize: 10,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:              "postgres",
		Host:                "localhost",
		Port:                5432,
		User:                "agentpanel",
		Password:            "",
		Name:                "agentpanel",
		SSLMode:             "disable",
		MaxOpenConns:        25,
		MaxIdleConns:        5,
		ConnMaxLifetime:     5 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
		AutoMigrate:         false,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:        false,
		OTLPEndpoint:   "localhost:4317",
		ServiceName:    "agentpanel",
		SampleRate:     0.1,
		Insecure:       true,
		ExportInterval: 30 * time.Second,
	}
}
