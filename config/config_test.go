package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("SALESSWARM_CACHE_URL", "")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.CompanyIntelTTL)
}

func TestLoad_RedisEnvironment(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache.internal:6380/2")
	t.Setenv("REDIS_PASSWORD", "hunter2")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "redis://cache.internal:6380/2", cfg.Cache.URL)
	assert.Equal(t, "hunter2", cfg.Cache.Password)
}

func TestLoad_PrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://legacy:6379")
	t.Setenv("SALESSWARM_CACHE_URL", "sqlite:///var/lib/salesswarm/cache.db")
	t.Setenv("SALESSWARM_DISPATCH_WORKERS", "3")
	t.Setenv("SALESSWARM_CACHE_TTL", "90m")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///var/lib/salesswarm/cache.db", cfg.Cache.URL)
	assert.Equal(t, 3, cfg.Dispatch.Workers)
	assert.Equal(t, 90*time.Minute, cfg.Cache.TTL)
}

func TestReadFile(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	path := filepath.Join(t.TempDir(), "salesswarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache:
  url: ""
  company_intel_ttl: 48h
dispatch:
  queue_size: 16
logging:
  level: debug
  format: json
`), 0o600))

	v := New()
	require.NoError(t, ReadFile(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Empty(t, cfg.Cache.URL)
	assert.Equal(t, 48*time.Hour, cfg.Cache.CompanyIntelTTL)
	assert.Equal(t, 16, cfg.Dispatch.QueueSize)
	assert.Equal(t, "debug", cfg.Logging.Level)

	assert.NoError(t, ReadFile(v, ""))
	assert.Error(t, ReadFile(New(), filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Cache.TTL = 0
	cfg.Dispatch.Workers = 0
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{"cache.ttl", "dispatch.workers", "logging.level", "logging.format"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestConfig_Logger(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "json"
	var buf bytes.Buffer
	cfg.Logger(&buf).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}
