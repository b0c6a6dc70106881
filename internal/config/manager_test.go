package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := NewManager().Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, MatcherModeCatalog, cfg.Matcher.Mode)
	assert.Equal(t, 20*time.Second, cfg.Scraper.PageTimeout)
	assert.Equal(t, ".csv", cfg.Scraper.FileExtension)
	assert.Equal(t, 25, cfg.Pipeline.TopN)
	assert.Equal(t, 10, cfg.Pipeline.DefaultLimit)
	assert.Empty(t, cfg.Pipeline.Categories)
	assert.Equal(t, "google_trends", cfg.Registry.SourceTag)
	assert.Empty(t, cfg.Database.DSN)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := NewManager().Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9100
matcher:
  mode: http
  base_url: http://matcher:8000
  timeout: 45s
pipeline:
  categories: [movies, shows]
`)
	t.Setenv("TRENDPULSE_PIPELINE_TOP_N", "40")
	t.Setenv("TRENDPULSE_DATABASE_DSN", "postgres://app:secret@db:5432/trends")

	cfg, err := NewManager().Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, MatcherModeHTTP, cfg.Matcher.Mode)
	assert.Equal(t, 45*time.Second, cfg.Matcher.Timeout)
	assert.Equal(t, []string{"movies", "shows"}, cfg.Pipeline.Categories)
	assert.Equal(t, 40, cfg.Pipeline.TopN)
	assert.Equal(t, "postgres://app:secret@db:5432/trends", cfg.Database.DSN)
}

func TestLoadCategoriesFromEnv(t *testing.T) {
	t.Setenv("TRENDPULSE_PIPELINE_CATEGORIES", "movies, shows ,")

	cfg, err := NewManager().Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"movies", "shows"}, cfg.Pipeline.Categories)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad port", "server:\n  port: 70000\n", "invalid server port"},
		{"http mode without url", "matcher:\n  mode: http\n", "base_url is required"},
		{"unknown mode", "matcher:\n  mode: llm\n", "unknown matcher mode"},
		{"registry without key", "registry:\n  base_url: http://registry\n", "api_key is required"},
		{"top_n out of range", "pipeline:\n  top_n: 101\n", "top_n"},
		{"extension without dot", "scraper:\n  file_extension: csv\n", "file_extension"},
		{"pool bounds", "database:\n  max_conns: 2\n  min_conns: 5\n", "exceeds max_conns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager().Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReload(t *testing.T) {
	m := NewManager()
	require.Error(t, m.Reload())

	path := writeConfig(t, "server:\n  port: 9000\n")
	_, err := m.Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9001\n"), 0o600))
	require.NoError(t, m.Reload())
	assert.Equal(t, 9001, m.GetConfig().Server.Port)
}
