package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the API service
type Config struct {
	// Server
	Port           string
	Environment    string
	LogLevel       string
	RequestTimeout time.Duration
	AllowedOrigins []string

	// External generation service
	Anthropic AnthropicConfig

	// Optional infrastructure, disabled when empty
	RedisURL     string
	NATSURL      string
	OTLPEndpoint string

	RateLimitPerMinute int
}

// AnthropicConfig configures the Messages API client.
// An empty APIKey switches the pipeline to the local generator.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Version   string
	MaxTokens int
}

// Configured reports whether a credential is present
func (a AnthropicConfig) Configured() bool {
	return strings.TrimSpace(a.APIKey) != ""
}

var defaults = map[string]any{
	"PORT":                        "8080",
	"GO_ENV":                      "development",
	"LOG_LEVEL":                   "info",
	"REQUEST_TIMEOUT":             "30s",
	"CORS_ALLOWED_ORIGINS":        "*",
	"ANTHROPIC_API_KEY":           "",
	"ANTHROPIC_BASE_URL":          "https://api.anthropic.com",
	"ANTHROPIC_MODEL":             "claude-3-5-sonnet-latest",
	"ANTHROPIC_VERSION":           "2023-06-01",
	"ANTHROPIC_MAX_TOKENS":        2000,
	"REDIS_URL":                   "",
	"NATS_URL":                    "",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"RATE_LIMIT_PER_MINUTE":       30,
}

// Load reads configuration from the environment, after loading an optional .env file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return FromViper(newViper()), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance
func FromViper(v *viper.Viper) *Config {
	timeout := v.GetDuration("REQUEST_TIMEOUT")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxTokens := v.GetInt("ANTHROPIC_MAX_TOKENS")
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	perMinute := v.GetInt("RATE_LIMIT_PER_MINUTE")
	if perMinute < 0 {
		perMinute = 0
	}

	return &Config{
		Port:           v.GetString("PORT"),
		Environment:    v.GetString("GO_ENV"),
		LogLevel:       strings.ToLower(v.GetString("LOG_LEVEL")),
		RequestTimeout: timeout,
		AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		Anthropic: AnthropicConfig{
			APIKey:    strings.TrimSpace(v.GetString("ANTHROPIC_API_KEY")),
			BaseURL:   strings.TrimRight(v.GetString("ANTHROPIC_BASE_URL"), "/"),
			Model:     v.GetString("ANTHROPIC_MODEL"),
			Version:   v.GetString("ANTHROPIC_VERSION"),
			MaxTokens: maxTokens,
		},
		RedisURL:           v.GetString("REDIS_URL"),
		NATSURL:            v.GetString("NATS_URL"),
		OTLPEndpoint:       v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RateLimitPerMinute: perMinute,
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
