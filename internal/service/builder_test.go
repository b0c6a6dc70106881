package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpulse/internal/config"
	"trendpulse/pkg/store"
)

func TestBuildWithoutDatabaseUsesMemoryStore(t *testing.T) {
	cfg, err := config.NewManager().Load("")
	require.NoError(t, err)

	c, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Store.(*store.MemoryStore)
	assert.True(t, ok)
	assert.Equal(t, "catalog", c.Matcher.Name())
	assert.NotNil(t, c.Runner.Orchestrator())
}

func TestBuildHTTPMatcher(t *testing.T) {
	t.Setenv("TRENDPULSE_MATCHER_MODE", "http")
	t.Setenv("TRENDPULSE_MATCHER_BASE_URL", "http://127.0.0.1:1")
	cfg, err := config.NewManager().Load("")
	require.NoError(t, err)

	c, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "http", c.Matcher.Name())
}

func TestBuildRejectsIncompleteClients(t *testing.T) {
	t.Run("registry without key", func(t *testing.T) {
		cfg, err := config.NewManager().Load("")
		require.NoError(t, err)
		cfg.Registry.BaseURL = "http://registry.internal"
		cfg.Registry.APIKey = ""

		c, err := Build(context.Background(), cfg)
		assert.Nil(t, c)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "registry client")
	})

	t.Run("http matcher without url", func(t *testing.T) {
		cfg, err := config.NewManager().Load("")
		require.NoError(t, err)
		cfg.Matcher.Mode = config.MatcherModeHTTP
		cfg.Matcher.BaseURL = ""

		c, err := Build(context.Background(), cfg)
		assert.Nil(t, c)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "matcher client")
	})
}
