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
	assert.Equal(t, "overview.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Batch.MaxConcurrentCompanies)

	assert.Equal(t, "https://accounts.zoho.com", cfg.Zoho.AccountsURL)
	assert.Equal(t, "https://www.zohoapis.com/crm/v2", cfg.Zoho.APIBaseURL)
	assert.Equal(t, "Accounts", cfg.Zoho.Module)
	assert.InDelta(t, 5.0, cfg.Zoho.RateLimitRPS, 0.001)

	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, []string{"claude-haiku-4-5-20251001"}, cfg.Anthropic.FallbackModels)
	assert.Equal(t, int64(4096), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 3, cfg.Anthropic.MaxAttempts)

	assert.Equal(t, "https://r.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, "https://s.jina.ai", cfg.Jina.SearchBaseURL)
	assert.Equal(t, "https://api.firecrawl.dev/v1", cfg.Firecrawl.BaseURL)

	assert.Equal(t, 10, cfg.Scrape.TimeoutSecs)
	assert.Equal(t, 4, cfg.Enrich.MaxConcurrent)
	assert.Equal(t, 10, cfg.Enrich.TimeoutSecs)
	assert.Equal(t, 300, cfg.Pipeline.RequestTimeoutSecs)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OVERVIEW_ANTHROPIC_KEY", "sk-test")
	t.Setenv("OVERVIEW_STORE_DRIVER", "postgres")
	t.Setenv("OVERVIEW_SERVER_PORT", "9090")
	t.Setenv("OVERVIEW_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
store:
  driver: sqlite
  database_url: /tmp/custom.db
zoho:
  module: Leads
anthropic:
  model: claude-sonnet-4-5-20250929
  max_tokens: 2048
server:
  port: 3000
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "Leads", cfg.Zoho.Module)
	assert.Equal(t, int64(2048), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 3000, cfg.Server.Port)
	// Untouched keys keep their defaults.
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestInitLogger_Valid(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "verbose", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
