package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Env      Environment `envconfig:"ENV" default:"development"`
	LogLevel string      `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool        `envconfig:"DEBUG" default:"false"`

	// Application
	App AppConfig

	// Server
	Server ServerConfig

	// Database
	Database DatabaseConfig

	// LLM provider
	LLM LLMConfig

	// Browser automation
	Browser BrowserConfig

	// Autofill pipeline
	Autofill AutofillConfig

	// Security
	Security SecurityConfig
}

// AppConfig holds application metadata
type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"memfill"`
	Version  string `envconfig:"APP_VERSION" default:"1.0.0"`
	LogLevel string `envconfig:"APP_LOG_LEVEL" default:"info"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"127.0.0.1"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	MaxRequestSize  int64         `envconfig:"SERVER_MAX_REQUEST_SIZE" default:"10485760"` // 10MB
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `envconfig:"DB_PATH" default:"memfill.db"`
}

// LLMConfig holds language model provider settings
type LLMConfig struct {
	// Provider selects the backend: "anthropic" or "openai"
	Provider string `envconfig:"LLM_PROVIDER" default:"anthropic"`

	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY" default:""`
	AnthropicModel  string `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-20250514"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:""`

	Timeout      time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`
	RateLimitRPM int           `envconfig:"LLM_RATE_LIMIT_RPM" default:"50"`
	CacheTTL     time.Duration `envconfig:"LLM_CACHE_TTL" default:"1h"`
	MaxRetries   int           `envconfig:"LLM_MAX_RETRIES" default:"3"`
}

// APIKey returns the key for the selected provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.AnthropicAPIKey
}

// BrowserConfig holds browser automation settings
type BrowserConfig struct {
	Headless       bool `envconfig:"BROWSER_HEADLESS" default:"true"`
	ViewportWidth  int  `envconfig:"BROWSER_VIEWPORT_WIDTH" default:"1920"`
	ViewportHeight int  `envconfig:"BROWSER_VIEWPORT_HEIGHT" default:"1080"`
}

// AutofillConfig holds pipeline tuning knobs
type AutofillConfig struct {
	// ConfidenceThreshold gates automatic filling; lower-confidence
	// matches still appear in the preview.
	ConfidenceThreshold float64       `envconfig:"AUTOFILL_CONFIDENCE_THRESHOLD" default:"0.7"`
	AutoApply           bool          `envconfig:"AUTOFILL_AUTO_APPLY" default:"false"`
	CollectTimeout      time.Duration `envconfig:"AUTOFILL_COLLECT_TIMEOUT" default:"2s"`
	MutationDebounce    time.Duration `envconfig:"AUTOFILL_MUTATION_DEBOUNCE" default:"500ms"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	// APIKey guards the API surface; empty disables authentication.
	APIKey       string `envconfig:"SECURITY_API_KEY" default:""`
	APIKeyHeader string `envconfig:"SECURITY_API_KEY_HEADER" default:"X-API-Key"`

	// RateLimitPerMin caps requests per client per minute; zero disables.
	RateLimitPerMin int `envconfig:"SECURITY_RATE_LIMIT_PER_MIN" default:"300"`

	// CORS
	CORSEnabled        bool     `envconfig:"CORS_ENABLED" default:"true"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// TLS
	TLSEnabled  bool   `envconfig:"TLS_ENABLED" default:"false"`
	TLSCertFile string `envconfig:"TLS_CERT_FILE" default:""`
	TLSKeyFile  string `envconfig:"TLS_KEY_FILE" default:""`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config without failing on missing provider
// keys (for CLI tools where matching degrades to the purpose-based
// fallback).
func LoadWithDefaults() (*Config, error) {
	var cfg Config
	envconfig.Process("", &cfg)

	if cfg.LLM.AnthropicAPIKey == "" {
		cfg.LLM.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errors []string

	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		errors = append(errors, fmt.Sprintf("unknown LLM_PROVIDER %q", c.LLM.Provider))
	}

	if c.Env != EnvDevelopment && c.LLM.APIKey() == "" {
		errors = append(errors, "an LLM API key is required outside development")
	}

	if t := c.Autofill.ConfidenceThreshold; t < 0 || t > 1 {
		errors = append(errors, "AUTOFILL_CONFIDENCE_THRESHOLD must be between 0 and 1")
	}

	if c.Env == EnvProduction {
		if c.Security.TLSEnabled && (c.Security.TLSCertFile == "" || c.Security.TLSKeyFile == "") {
			errors = append(errors, "TLS_CERT_FILE and TLS_KEY_FILE are required when TLS is enabled")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// GetLogLevel returns the appropriate zap log level
func (c *Config) GetLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
