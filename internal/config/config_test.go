package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3003", cfg.Listen)
	assert.Equal(t, "http://localhost:16686", cfg.Query.URL)
	assert.Equal(t, 20, cfg.Query.SearchLimit)
	assert.Equal(t, CacheTypeMemory, cfg.Cache.Type)
	assert.Equal(t, 300, cfg.Cache.TTLSeconds)
	assert.Equal(t, "./data/tracelens.db", cfg.Database.Path)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
listen: 127.0.0.1:8080
query:
  url: http://jaeger:16686/
  search_limit: 50
cache:
  type: redis
  redis_url: redis://localhost:6379
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	// Trailing slash is stripped by sanitization.
	assert.Equal(t, "http://jaeger:16686", cfg.Query.URL)
	assert.Equal(t, 50, cfg.Query.SearchLimit)
	assert.Equal(t, CacheTypeRedis, cfg.Cache.Type)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "missing query url",
			content: "query:\n  url: \"\"\n",
			errMsg:  "query backend URL is required",
		},
		{
			name:    "invalid search limit",
			content: "query:\n  search_limit: 0\n",
			errMsg:  "search limit",
		},
		{
			name:    "invalid refresh schedule",
			content: "refresh_schedule: not-a-cron\n",
			errMsg:  "refresh schedule",
		},
		{
			name:    "redis without url",
			content: "cache:\n  type: redis\n",
			errMsg:  "Redis URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TRACELENS_QUERY_URL", "http://env-backend:16686")

	cfg, err := Load(writeConfigFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "http://env-backend:16686", cfg.Query.URL)
}
