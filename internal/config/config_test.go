package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, ProviderOpenAI, cfg.DraftProvider)
	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAIModel)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAIBaseURL)
	assert.Equal(t, CacheMemory, cfg.CacheBackend)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Empty(t, cfg.OTLPEndpoint)
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "OPENAI_API_KEY=sk-from-file\nPORT=9000\nCORS_ALLOWED_ORIGINS=http://a.test, http://b.test\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-file", cfg.OpenAIAPIKey)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("OPENAI_API_KEY=sk-from-file\nLOG_LEVEL=debug\n"), 0o600))

	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.OpenAIAPIKey)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("DRAFT_PROVIDER", "Anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "ak-test")
	t.Setenv("DRAFT_RATE_LIMIT", "0")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:9999/v1/")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, ProviderAnthropic, cfg.DraftProvider)
	assert.Zero(t, cfg.DraftRateLimit)
	assert.Equal(t, "http://localhost:9999/v1", cfg.OpenAIBaseURL)

	key, setting := cfg.ProviderCredential()
	assert.Equal(t, "ak-test", key)
	assert.Equal(t, "ANTHROPIC_API_KEY", setting)
}

func TestProviderCredential_OpenAI(t *testing.T) {
	cfg := &Config{DraftProvider: ProviderOpenAI}
	key, setting := cfg.ProviderCredential()
	assert.Empty(t, key)
	assert.Equal(t, "OPENAI_API_KEY", setting)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:           8080,
			MaxUploadBytes: 1024,
			HTTPTimeout:    time.Second,
			DraftProvider:  ProviderOpenAI,
			CacheBackend:   CacheMemory,
		}
	}

	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"bad port":          {func(c *Config) { c.Port = 0 }, "PORT"},
		"bad upload limit":  {func(c *Config) { c.MaxUploadBytes = 0 }, "MAX_UPLOAD_BYTES"},
		"bad timeout":       {func(c *Config) { c.HTTPTimeout = 0 }, "HTTP_TIMEOUT"},
		"unknown provider":  {func(c *Config) { c.DraftProvider = "gemini" }, "DRAFT_PROVIDER"},
		"unknown cache":     {func(c *Config) { c.CacheBackend = "memcached" }, "CACHE_BACKEND"},
		"redis without url": {func(c *Config) { c.CacheBackend = CacheRedis }, "REDIS_URL"},
	}

	require.NoError(t, valid().Validate())
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
