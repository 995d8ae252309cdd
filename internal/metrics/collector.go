// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。讨论相关方法的参数只使用字符串，
// 使其可以直接作为 discussion.Observer 使用。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 讨论指标
	turnsTotal         *prometheus.CounterVec
	backendCallsTotal  *prometheus.CounterVec
	backendDuration    *prometheus.HistogramVec
	selectionFallbacks *prometheus.CounterVec
	humanInjections    prometheus.Counter
	stateTransitions   *prometheus.CounterVec
	activeDiscussions  prometheus.Gauge

	registerer prometheus.Registerer
	namespace  string
	logger     *zap.Logger
}

// NewCollector 创建指标收集器。reg 为 nil 时注册到默认 Registry。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		registerer: reg,
		namespace:  namespace,
		logger:     logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		},
		[]string{"method", "path"},
	)

	// 讨论指标
	c.turnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discussion_turns_total",
			Help:      "Total number of completed discussion turns",
		},
		[]string{"mode", "strategy"},
	)

	c.backendCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discussion_backend_calls_total",
			Help:      "Total number of generation and judge calls",
		},
		[]string{"operation", "status"},
	)

	c.backendDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discussion_backend_call_duration_seconds",
			Help:      "Generation and judge call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	c.selectionFallbacks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discussion_selection_fallbacks_total",
			Help:      "Turns where adaptive selection fell back to rotation",
		},
		[]string{"mode"},
	)

	c.humanInjections = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discussion_human_messages_total",
			Help:      "Total number of injected human messages",
		},
	)

	c.stateTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discussion_state_transitions_total",
			Help:      "Total number of discussion state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	c.activeDiscussions = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "discussions_active",
			Help:      "Number of live discussion handles",
		},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🎭 讨论指标记录
// =============================================================================

// ObserveTurn 记录一个完成的轮次
func (c *Collector) ObserveTurn(mode, strategy string) {
	c.turnsTotal.WithLabelValues(mode, strategy).Inc()
}

// ObserveBackendCall 记录一次生成或评审调用
func (c *Collector) ObserveBackendCall(operation string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.backendCallsTotal.WithLabelValues(operation, status).Inc()
	c.backendDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveSelectionFallback 记录自适应选择回退到轮询
func (c *Collector) ObserveSelectionFallback(mode string) {
	c.selectionFallbacks.WithLabelValues(mode).Inc()
}

// ObserveHumanInjection 记录一条人类发言
func (c *Collector) ObserveHumanInjection() {
	c.humanInjections.Inc()
}

// ObserveStateTransition 记录状态转换
func (c *Collector) ObserveStateTransition(from, to string) {
	c.stateTransitions.WithLabelValues(from, to).Inc()
}

// SetActiveDiscussions 设置存活的讨论数
func (c *Collector) SetActiveDiscussions(n int) {
	c.activeDiscussions.Set(float64(n))
}

// =============================================================================
// 🗄️ 数据库指标
// =============================================================================

// RegisterDBStats 导出连接池统计信息
func (c *Collector) RegisterDBStats(db *sql.DB, dbName string) error {
	return c.registerer.Register(collectors.NewDBStatsCollector(db, dbName))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
