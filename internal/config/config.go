package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// Draft providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all application configuration.
// Values come from the environment, then an optional dotenv file, then defaults.
type Config struct {
	// Server
	Port               int
	LogLevel           string
	MaxUploadBytes     int64
	CORSAllowedOrigins []string

	// HTTP client
	HTTPTimeout time.Duration

	// Draft generation
	DraftProvider    string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicModel   string
	DraftMaxTokens   int

	// Resilience
	DraftRateLimit float64 // requests per second; <= 0 disables limiting
	DraftRateBurst int
	MaxConcurrency int

	// Cache
	CacheBackend string
	RedisURL     string
	CacheTTL     time.Duration

	// Observability
	OTLPEndpoint string
}

// Load reads configuration. envFile names an optional dotenv file; a missing
// file is not an error. Process environment variables take precedence over it.
func Load(envFile string) (*Config, error) {
	v := viper.New()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
	}
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("max_upload_bytes", 10<<20)
	v.SetDefault("cors_allowed_origins", "*")
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("draft_provider", ProviderOpenAI)
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("openai_model", "gpt-3.5-turbo")
	v.SetDefault("anthropic_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("draft_max_tokens", 1024)
	v.SetDefault("draft_rate_limit", 5.0)
	v.SetDefault("draft_rate_burst", 10)
	v.SetDefault("max_concurrency", 8)
	v.SetDefault("cache_backend", CacheMemory)
	v.SetDefault("cache_ttl", 15*time.Minute)

	// Keys without a default are only visible to AutomaticEnv lookups.
	for _, key := range []string{
		"openai_api_key", "anthropic_api_key", "anthropic_base_url",
		"redis_url", "otel_exporter_otlp_endpoint",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	if envFile != "" {
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, eris.Wrap(err, "config: read env file")
		}
	}

	cfg := &Config{
		Port:               v.GetInt("port"),
		LogLevel:           strings.ToLower(v.GetString("log_level")),
		MaxUploadBytes:     v.GetInt64("max_upload_bytes"),
		CORSAllowedOrigins: splitList(v.GetString("cors_allowed_origins")),
		HTTPTimeout:        v.GetDuration("http_timeout"),
		DraftProvider:      strings.ToLower(v.GetString("draft_provider")),
		OpenAIAPIKey:       v.GetString("openai_api_key"),
		OpenAIBaseURL:      strings.TrimRight(v.GetString("openai_base_url"), "/"),
		OpenAIModel:        v.GetString("openai_model"),
		AnthropicAPIKey:    v.GetString("anthropic_api_key"),
		AnthropicBaseURL:   v.GetString("anthropic_base_url"),
		AnthropicModel:     v.GetString("anthropic_model"),
		DraftMaxTokens:     v.GetInt("draft_max_tokens"),
		DraftRateLimit:     v.GetFloat64("draft_rate_limit"),
		DraftRateBurst:     v.GetInt("draft_rate_burst"),
		MaxConcurrency:     v.GetInt("max_concurrency"),
		CacheBackend:       strings.ToLower(v.GetString("cache_backend")),
		RedisURL:           v.GetString("redis_url"),
		CacheTTL:           v.GetDuration("cache_ttl"),
		OTLPEndpoint:       v.GetString("otel_exporter_otlp_endpoint"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail later at wiring time.
// Provider credentials are not checked here: a missing key only disables drafts.
func (c *Config) Validate() error {
	var errs []string

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be in 1..65535, got %d", c.Port))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, "MAX_UPLOAD_BYTES must be positive")
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, "HTTP_TIMEOUT must be a positive duration")
	}
	switch c.DraftProvider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Sprintf("DRAFT_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderAnthropic, c.DraftProvider))
	}
	switch c.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if c.RedisURL == "" {
			errs = append(errs, "REDIS_URL is required when CACHE_BACKEND=redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("CACHE_BACKEND must be %q or %q, got %q", CacheMemory, CacheRedis, c.CacheBackend))
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// ProviderCredential returns the API key of the selected draft provider and
// the name of the setting it comes from.
func (c *Config) ProviderCredential() (key, setting string) {
	if c.DraftProvider == ProviderAnthropic {
		return c.AnthropicAPIKey, "ANTHROPIC_API_KEY"
	}
	return c.OpenAIAPIKey, "OPENAI_API_KEY"
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
