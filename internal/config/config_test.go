package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "payslip.db", cfg.Store.SQLitePath)
	assert.Equal(t, "hybrid", cfg.Extraction.Method)
	assert.Equal(t, "native", cfg.Extraction.PDFProvider)
	assert.Equal(t, 3, cfg.Extraction.MaxAttempts)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(2048), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.InDelta(t, 0.80, cfg.Pricing.Anthropic["claude-haiku-4-5-20251001"].Input, 1e-9)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PAYSLIP_STORE_DRIVER", "postgres")
	t.Setenv("PAYSLIP_ANTHROPIC_KEY", "sk-test")
	t.Setenv("PAYSLIP_SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
store:
  driver: sqlite
  sqlite_path: /tmp/test.db
extraction:
  method: ai
fetch:
  timeout_secs: 30
  max_size_mb: 8
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.Store.SQLitePath)
	assert.Equal(t, "ai", cfg.Extraction.Method)
	assert.Equal(t, int64(8<<20), cfg.Fetch.MaxSize())
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nope"}))
}
