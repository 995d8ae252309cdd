package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/agentpanel/agent/discussion"
	"github.com/BaSui01/agentpanel/api/handlers"
	"github.com/BaSui01/agentpanel/config"
	"github.com/BaSui01/agentpanel/internal/metrics"
	"github.com/BaSui01/agentpanel/internal/server"
	"github.com/BaSui01/agentpanel/internal/telemetry"
)

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

// retireInterval 回收已结束讨论的周期
const retireInterval = time.Minute

func newServeCommand(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the AgentPanel HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			logger := initLogger(cfg.Log)
			defer func() { _ = logger.Sync() }()

			logger.Info("Starting AgentPanel",
				zap.String("version", Version),
				zap.String("build_time", BuildTime),
				zap.String("git_commit", GitCommit),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := NewServer(ctx, cfg, logger)
			if err != nil {
				logger.Error("failed to build server", zap.Error(err))
				return err
			}
			if err := srv.Run(ctx); err != nil {
				return err
			}

			logger.Info("AgentPanel stopped")
			return nil
		},
	}
}

// =============================================================================
// 🧱 Server
// =============================================================================

// Server 组装讨论引擎、存储、指标与 HTTP 服务
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	otel      *telemetry.Providers
	storage   *storage
	registry  *prometheus.Registry
	collector *metrics.Collector

	manager     *discussion.Manager
	discussions *handlers.DiscussionHandler
	health      *handlers.HealthHandler
	httpManager *server.Manager
}

// NewServer 根据配置创建服务器；失败时释放已打开的资源
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	otelProviders, err := telemetry.Init(cfg.Telemetry, Version, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		otelProviders = &telemetry.Providers{}
	}
	s.otel = otelProviders

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		_ = s.otel.Shutdown(context.Background())
		return nil, err
	}
	s.storage = st

	// 指标
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.collector = metrics.NewCollector("agentpanel", s.registry, logger)
	if st.pool != nil {
		if err := s.collector.RegisterDBStats(st.pool.SQLDB(), cfg.Database.Name); err != nil {
			logger.Warn("failed to register database stats", zap.Error(err))
		}
	}

	// 模型与讨论引擎
	raw := newProvider(cfg.LLM, logger)
	provider := withRetries(raw, cfg.LLM.MaxRetries, logger)

	s.manager = discussion.NewManager(
		discussion.NewLLMBackend(provider, speechSettings(cfg.LLM)),
		discussionConfig(cfg.Discussion),
		logger,
		discussion.WithJudge(discussion.NewLLMJudge(provider, judgeSettings(cfg.LLM))),
		discussion.WithObserver(s.collector),
		discussion.WithTracerProvider(otelProviders.TracerProvider()),
	)

	hcfg := handlers.DefaultDiscussionHandlerConfig()
	hcfg.MaxDiscussions = cfg.Server.MaxDiscussions
	if cfg.Discussion.Roles > 0 {
		hcfg.DefaultRoles = cfg.Discussion.Roles
	}
	if cfg.Discussion.Roster != "" {
		hcfg.DefaultRoster = cfg.Discussion.Roster
	}
	s.discussions = handlers.NewDiscussionHandler(
		s.manager,
		st.store,
		newRoleSource(provider, cfg.LLM, st.cache, logger),
		handlers.NewEventHub(0, logger),
		hcfg,
		logger,
	).WithGauge(s.collector)

	// 健康检查
	s.health = handlers.NewHealthHandler(logger)
	s.health.RegisterCheck(handlers.NewCheck("store", st.store.Ping))
	if st.pool != nil {
		pool := st.pool
		s.health.RegisterCheck(handlers.NewDatabaseHealthCheck("database", pool.Ping, func() any { return pool.GetStats() }))
	}
	if st.cache != nil {
		s.health.RegisterCheck(handlers.Optional(handlers.NewCheck("cache", st.cache.Ping)))
	}
	// 模型服务抖动时讨论仍可读取，只降级不摘流量
	s.health.RegisterCheck(handlers.Optional(handlers.NewProviderHealthCheck(raw)))

	return s, nil
}

// Handler 构建路由与中间件链。ctx 控制限流器的清理协程。
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	s.discussions.Register(mux)

	mux.HandleFunc("GET /health", s.health.HandleHealth)
	mux.HandleFunc("GET /healthz", s.health.HandleHealthz)
	mux.HandleFunc("GET /ready", s.health.HandleReady)
	mux.HandleFunc("GET /version", s.health.HandleVersion(Version, BuildTime, GitCommit))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares, RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))
	}
	// 必须最内层，以便读取匹配到的路由模式
	middlewares = append(middlewares, MetricsMiddleware(s.collector))

	return Chain(mux, middlewares...)
}

// Run 启动 HTTP 服务与后台回收任务，阻塞到 ctx 取消或服务出错
func (s *Server) Run(ctx context.Context) error {
	s.httpManager = server.NewManager(s.Handler(ctx), server.ConfigFromServer(s.cfg.Server), s.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.httpManager.Run(gctx)
	})
	g.Go(func() error {
		s.retireLoop(gctx)
		return nil
	})
	g.Go(func() error {
		// 劫持后的 WebSocket 连接不受 http.Server.Shutdown 管理
		<-gctx.Done()
		s.discussions.Events().CloseAll()
		return nil
	})

	err := g.Wait()
	if closeErr := s.Close(); closeErr != nil {
		s.logger.Warn("shutdown incomplete", zap.Error(closeErr))
	}
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// retireLoop 定期回收已结束但客户端未取走终止信号的讨论
func (s *Server) retireLoop(ctx context.Context) {
	ticker := time.NewTicker(retireInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.discussions.RetireCompleted(ctx)
		}
	}
}

// Close 释放存储与遥测资源
func (s *Server) Close() error {
	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultServerConfig().ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error
	if err := s.otel.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
