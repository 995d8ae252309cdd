package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentpanel/agent/discussion"
	"github.com/BaSui01/agentpanel/agent/persistence"
	"github.com/BaSui01/agentpanel/config"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newVersionCommand()
	cmd.SetOut(&out)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "AgentPanel "+Version)
	assert.Contains(t, out.String(), "Git Commit: "+GitCommit)
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9090
discussion:
  max_turns: 4
  default_mode: round_robin
persistence:
  type: memory
`), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, 4, cfg.Discussion.MaxTurns)
	assert.Equal(t, "round_robin", cfg.Discussion.DefaultMode)
	// 未出现的字段保留默认值
	assert.Equal(t, config.DefaultDiscussionConfig().ContextWindow, cfg.Discussion.ContextWindow)
}

func TestLoadConfig_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("discussion:\n  max_turns: -1\n"), 0o600))

	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestDiscussionConfig(t *testing.T) {
	dc := config.DefaultDiscussionConfig()
	dc.MaxTurns = 7
	dc.DefaultMode = "round_robin"
	dc.BackendTimeout = 3 * time.Second

	got := discussionConfig(dc)
	assert.Equal(t, 7, got.MaxTurns)
	assert.Equal(t, discussion.ModeRoundRobin, got.DefaultMode)
	assert.Equal(t, 3*time.Second, got.BackendTimeout)
	assert.Equal(t, dc.FrequencyWindow, got.Adaptive.FrequencyWindow)

	dc.DefaultMode = "whatever"
	assert.Equal(t, discussion.ModeAdaptive, discussionConfig(dc).DefaultMode)
}

func TestHealthCommand(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	var out bytes.Buffer
	cmd := newHealthCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--addr", healthy.URL})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "OK")

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	cmd = newHealthCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--addr", failing.URL})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestOpenStorage_Memory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Persistence.Type = "memory"

	st, err := openStorage(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer st.Close()

	assert.Nil(t, st.pool)
	assert.Nil(t, st.cache)
	assert.NoError(t, st.store.Ping(context.Background()))
}

func TestOpenStorage_SQLite(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Persistence.Type = "database"
	cfg.Database.Driver = "sqlite"
	cfg.Database.Name = filepath.Join(t.TempDir(), "panel.db")
	cfg.Database.AutoMigrate = true

	ctx := context.Background()
	st, err := openStorage(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer st.Close()
	require.NotNil(t, st.pool)

	rec := &persistence.DiscussionRecord{ID: "d1", Topic: "tea or coffee", Mode: "adaptive", Status: persistence.StatusCreated}
	require.NoError(t, st.store.CreateDiscussion(ctx, rec))

	got, err := st.store.GetDiscussion(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "tea or coffee", got.Topic)
}

func TestOpenStorage_UnknownType(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Persistence.Type = "tape"

	_, err := openStorage(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
