package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 8080
  mode: release
redis:
  addr: localhost:6379
  db: 3
worker:
  heartbeat_timeout: 120
health:
  timeout_policy: requeue
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_PATH", path)

	require.NoError(t, Init())

	assert.Equal(t, 8080, GlobalConfig.Server.Port)
	assert.Equal(t, "release", GlobalConfig.Server.Mode)
	assert.Equal(t, "localhost:6379", GlobalConfig.Redis.Addr)
	assert.Equal(t, 3, GlobalConfig.Redis.DB)
	assert.Equal(t, 120, GlobalConfig.Worker.HeartbeatTimeout)
	assert.Equal(t, TimeoutPolicyRequeue, GlobalConfig.Health.TimeoutPolicy)
}

func TestInitMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, Init())
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, 10, cfg.Worker.HeartbeatInterval)
	assert.Equal(t, 60, cfg.Worker.HeartbeatTimeout)
	assert.Equal(t, 10, cfg.Health.CheckInterval)
	assert.Equal(t, 30, cfg.Health.JobCheckInterval)
	assert.Equal(t, 3600, cfg.Health.JobTimeout)
	assert.Equal(t, TimeoutPolicyFail, cfg.Health.TimeoutPolicy)
	assert.Equal(t, 5, cfg.Dispatch.TickInterval)
	assert.Equal(t, 5, cfg.Dispatch.MaxTxRetries)
	assert.Equal(t, "reports", cfg.Reports.Dir)

	// Explicit values are preserved
	cfg = Config{}
	cfg.Worker.HeartbeatTimeout = 90
	cfg.ApplyDefaults()
	assert.Equal(t, 90, cfg.Worker.HeartbeatTimeout)
}
