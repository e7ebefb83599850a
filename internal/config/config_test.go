package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Pipeline.MaxConcurrentScans)
	assert.Equal(t, 5, cfg.Pipeline.WorkerConcurrency)
	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.SmoothingDelay)
	assert.Equal(t, 24*time.Hour, cfg.Pipeline.DedupWindow)
	assert.False(t, cfg.Sources.Markets.Enabled)
}

func TestLoad_SparseFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  worker_concurrency: 2
sources:
  markets:
    enabled: true
    url: https://api.example.org/new
    schedule: "@every 30s"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Pipeline.WorkerConcurrency)
	assert.Equal(t, 10, cfg.Pipeline.MaxConcurrentScans, "unset fields keep defaults")
	assert.True(t, cfg.Sources.Markets.Enabled)
	assert.Equal(t, "@every 30s", cfg.Sources.Markets.Schedule)
	assert.Equal(t, 15*time.Second, cfg.Sources.Markets.Timeout)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok-123")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("WEBHOOK_URL", "https://hooks.example.org/x")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "tok-123", cfg.Channels.Telegram.BotToken)
	assert.Equal(t, int64(42), cfg.Channels.Telegram.ChatID)
	assert.Equal(t, "https://hooks.example.org/x", cfg.Channels.Webhook.URL)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Pipeline.WorkerConcurrency = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Sources.Forum.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sources.forum")
}
