package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("test", reg, zap.NewNop()), reg
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordHTTPRequest("GET", "/api/v1/discussions", 200, 100*time.Millisecond, 2048)
	c.RecordHTTPRequest("GET", "/api/v1/discussions", 201, 50*time.Millisecond, 1024)
	c.RecordHTTPRequest("POST", "/api/v1/discussions", 502, time.Second, 10)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/api/v1/discussions", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/api/v1/discussions", "5xx")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.httpRequestDuration))
}

func TestCollector_DiscussionObserver(t *testing.T) {
	c, reg := newTestCollector(t)

	c.ObserveTurn("adaptive", "adaptive")
	c.ObserveTurn("adaptive", "fallback_round_robin")
	c.ObserveTurn("adaptive", "adaptive")
	c.ObserveBackendCall("generate", 200*time.Millisecond, nil)
	c.ObserveBackendCall("judge", 20*time.Millisecond, errors.New("boom"))
	c.ObserveSelectionFallback("adaptive")
	c.ObserveHumanInjection()
	c.ObserveStateTransition("uninitialized", "running")
	c.SetActiveDiscussions(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("adaptive", "adaptive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.backendCallsTotal.WithLabelValues("judge", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.backendCallsTotal.WithLabelValues("generate", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.selectionFallbacks.WithLabelValues("adaptive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.humanInjections))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.activeDiscussions))

	expected := `
# HELP test_discussion_state_transitions_total Total number of discussion state transitions
# TYPE test_discussion_state_transitions_total counter
test_discussion_state_transitions_total{from_state="uninitialized",to_state="running"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_discussion_state_transitions_total"))
}

func TestCollector_RegisterDBStats(t *testing.T) {
	c, reg := newTestCollector(t)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, c.RegisterDBStats(db, "panel"))
	// 同名重复注册会失败
	assert.Error(t, c.RegisterDBStats(db, "panel"))

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "go_sql_max_open_connections" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCollector_NilRegistererUsesDefault(t *testing.T) {
	c := NewCollector("test_default_registry", nil, nil)
	assert.Equal(t, prometheus.DefaultRegisterer, c.registerer)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{409, "4xx"},
		{502, "5xx"},
		{100, "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusCode(tt.code))
	}
}
