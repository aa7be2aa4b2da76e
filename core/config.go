package core

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the storefront SDK.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// A YAML file can be layered in with WithConfigFile; values from the file
// override defaults but are still overridden by environment variables and
// later options.
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithBaseURL("https://shop.example.com"),
//	    WithSessionFile("~/.storefront/session"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// Backend API settings
	API APIConfig `yaml:"api"`

	// Session identity settings
	Session SessionConfig `yaml:"session"`

	// Resilience configuration
	Resilience ResilienceConfig `yaml:"resilience"`

	// Telemetry configuration (optional module)
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig contains backend API client configuration.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig controls where the per-browser session identifier lives.
// Provider is one of "file", "redis" or "inmemory".
type SessionConfig struct {
	Provider string        `yaml:"provider"`
	FilePath string        `yaml:"file_path"`
	RedisURL string        `yaml:"redis_url"`
	Key      string        `yaml:"key"`
	TTL      time.Duration `yaml:"ttl"`
}

// ResilienceConfig contains fault tolerance settings for the API client.
type ResilienceConfig struct {
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// RetryConfig defines retry settings with exponential backoff.
// Formula: interval = min(InitialInterval * (Multiplier ^ attempt), MaxInterval)
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Multiplier      float64       `yaml:"multiplier"`
	JitterEnabled   bool          `yaml:"jitter_enabled"`
}

// CircuitBreakerConfig defines circuit breaker pattern settings.
// The breaker fails fast once Threshold consecutive failures are seen,
// then allows HalfOpenRequests probes after Timeout.
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Threshold        int           `yaml:"threshold"`
	Timeout          time.Duration `yaml:"timeout"`
	HalfOpenRequests int           `yaml:"half_open_requests"`
}

// TelemetryConfig contains observability settings.
// Provider is "stdout" (development) or "otlp" (collector endpoint).
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Provider     string  `yaml:"provider"`
	Endpoint     string  `yaml:"endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Option is a functional option that mutates a Config.
// Options are applied in order and can return an error if invalid.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults.
// These can be overridden by a config file, environment variables
// and functional options, in that order.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{
			Provider: "file",
			FilePath: defaultSessionPath(),
			Key:      "sessionId",
		},
		Resilience: ResilienceConfig{
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 1 * time.Second,
				MaxInterval:     30 * time.Second,
				Multiplier:      2.0,
				JitterEnabled:   true,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          false,
				Threshold:        5,
				Timeout:          30 * time.Second,
				HalfOpenRequests: 3,
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			Provider:     "stdout",
			ServiceName:  "storefront-client",
			SamplingRate: 1.0,
			Insecure:     true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".storefront-session"
	}
	return home + string(os.PathSeparator) + ".storefront" + string(os.PathSeparator) + "session"
}

// NewConfig creates a configuration with the three-layer priority applied.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables take precedence over defaults and file values but
// are overridden by functional options.
//
// Variable naming convention:
//   - SDK-specific: STOREFRONT_<SETTING>
//   - Standard variables: REDIS_URL, OTEL_EXPORTER_OTLP_ENDPOINT
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("STOREFRONT_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("STOREFRONT_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.API.Timeout = d
		}
	}

	if v := os.Getenv("STOREFRONT_SESSION_PROVIDER"); v != "" {
		c.Session.Provider = v
	}
	if v := os.Getenv("STOREFRONT_SESSION_FILE"); v != "" {
		c.Session.FilePath = v
	}
	if v := firstEnv("STOREFRONT_REDIS_URL", "REDIS_URL"); v != "" {
		c.Session.RedisURL = v
	}
	if v := os.Getenv("STOREFRONT_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Session.TTL = d
		}
	}

	if v := os.Getenv("STOREFRONT_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resilience.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("STOREFRONT_CB_ENABLED"); v != "" {
		c.Resilience.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv("STOREFRONT_CB_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resilience.CircuitBreaker.Threshold = n
		}
	}

	if v := os.Getenv("STOREFRONT_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := firstEnv("STOREFRONT_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Provider = "otlp"
	}
	if v := firstEnv("STOREFRONT_SERVICE_NAME", "OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	}

	if v := os.Getenv("STOREFRONT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STOREFRONT_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	return nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: api.base_url", ErrMissingConfiguration)
	}
	if _, err := url.Parse(c.API.BaseURL); err != nil {
		return fmt.Errorf("%w: api.base_url: %v", ErrInvalidConfiguration, err)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("%w: api.timeout must be positive", ErrInvalidConfiguration)
	}

	switch c.Session.Provider {
	case "file":
		if c.Session.FilePath == "" {
			return fmt.Errorf("%w: session.file_path", ErrMissingConfiguration)
		}
	case "redis":
		if c.Session.RedisURL == "" {
			return fmt.Errorf("%w: session.redis_url", ErrMissingConfiguration)
		}
	case "inmemory":
	default:
		return fmt.Errorf("%w: unknown session provider %q", ErrInvalidConfiguration, c.Session.Provider)
	}

	if c.Resilience.Retry.MaxAttempts < 0 {
		return fmt.Errorf("%w: retry.max_attempts must not be negative", ErrInvalidConfiguration)
	}
	if c.Telemetry.Enabled && c.Telemetry.Provider == "otlp" && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("%w: telemetry.endpoint required for otlp provider", ErrMissingConfiguration)
	}

	return nil
}

// WithConfigFile layers a YAML configuration file onto the config.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfiguration, path, err)
		}
		return nil
	}
}

// WithBaseURL sets the backend API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Config) error {
		if baseURL == "" {
			return fmt.Errorf("%w: base URL cannot be empty", ErrInvalidConfiguration)
		}
		c.API.BaseURL = strings.TrimRight(baseURL, "/")
		return nil
	}
}

// WithTimeout sets the per-request timeout for the API client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfiguration)
		}
		c.API.Timeout = timeout
		return nil
	}
}

// WithSessionFile stores the session identifier in a file at path.
func WithSessionFile(path string) Option {
	return func(c *Config) error {
		c.Session.Provider = "file"
		c.Session.FilePath = path
		return nil
	}
}

// WithRedisSession stores the session identifier in Redis.
func WithRedisSession(redisURL string) Option {
	return func(c *Config) error {
		c.Session.Provider = "redis"
		c.Session.RedisURL = redisURL
		return nil
	}
}

// WithInMemorySession keeps the session identifier in process memory only.
// Each new process gets a fresh anonymous cart; useful for tests.
func WithInMemorySession() Option {
	return func(c *Config) error {
		c.Session.Provider = "inmemory"
		return nil
	}
}

// WithRetry configures the retry policy for API requests.
func WithRetry(maxAttempts int, initialInterval time.Duration) Option {
	return func(c *Config) error {
		if maxAttempts < 0 {
			return fmt.Errorf("%w: max attempts must not be negative", ErrInvalidConfiguration)
		}
		c.Resilience.Retry.MaxAttempts = maxAttempts
		c.Resilience.Retry.InitialInterval = initialInterval
		return nil
	}
}

// WithCircuitBreaker enables circuit breaker protection on the API client.
func WithCircuitBreaker(threshold int, timeout time.Duration) Option {
	return func(c *Config) error {
		c.Resilience.CircuitBreaker.Enabled = true
		c.Resilience.CircuitBreaker.Threshold = threshold
		c.Resilience.CircuitBreaker.Timeout = timeout
		return nil
	}
}

// WithTelemetry enables OpenTelemetry tracing and metrics.
func WithTelemetry(provider, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		c.Telemetry.Provider = provider
		c.Telemetry.Endpoint = endpoint
		return nil
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
