package config

import (
	"fmt"
	"strconv"
	"strings"
)

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	LogRequests   bool // Log incoming request summaries
	LogModelCalls bool // Log hosted model calls and fallbacks
	LogVerbose    bool // Log full metadata produced per color
	DebugMode     bool // Enable debug logging for database operations
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled      bool   // Whether to use Postgres storage
	Host         string // Database host
	Port         int    // Database port
	Database     string // Database name
	Username     string // Database username
	Password     string // Database password
	SSLMode      string // SSL mode (disable, require, etc.)
	MaxOpenConns int    // Maximum open connections
	MaxIdleConns int    // Maximum idle connections
	MaxLifetime  int    // Connection max lifetime in seconds
	CleanupHours int    // Hours after which to cleanup stale records (0 disables)
}

// ProviderConfig holds the hosted model provider configuration
type ProviderConfig struct {
	Enabled        bool   // Whether to call a hosted model for color metadata
	Type           string // openai, anthropic, gemini or mistral
	BaseURL        string // Provider API base URL, empty uses the vendor default
	APIKey         string // Provider API key
	Model          string // Model identifier, empty uses the provider default
	TimeoutSeconds int    // Per-call timeout
}

// CacheConfig holds analysis cache configuration
type CacheConfig struct {
	Enabled    bool // Whether to cache analysis results by hex
	TTLSeconds int  // Entry lifetime, 0 means entries never expire
	MaxEntries int  // Capacity bound, 0 means unbounded
}

// EmbeddingConfig holds embedder configuration
type EmbeddingConfig struct {
	Backend  string // "feature" or "onnx"
	ModelDir string // Directory holding model_quantized.onnx and tokenizer.json
}

// Config holds all configuration for the color intelligence service
type Config struct {
	ListenPort     string   // Address for the HTTP server, ":PORT" form
	APIKeys        []string // Accepted client API keys, empty disables auth
	BatchLimit     int      // Maximum colors per batch request
	RateLimitRPS   float64  // Per-key request rate, 0 disables limiting
	RateLimitBurst int      // Per-key burst allowance
	SentryDSN      string   // Sentry DSN, empty disables reporting
	Provider       ProviderConfig
	Database       DatabaseConfig
	Cache          CacheConfig
	Embedding      EmbeddingConfig
	Logging        LoggingConfig
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ListenPort:     ":8080",
		BatchLimit:     64,
		RateLimitRPS:   10,
		RateLimitBurst: 20,
		Provider: ProviderConfig{
			Enabled:        false,
			Type:           "openai",
			BaseURL:        "", // each provider constructor applies its vendor default
			TimeoutSeconds: 20,
		},
		Database: DatabaseConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         5432,
			Database:     "chromind",
			Username:     "postgres",
			Password:     "",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 25,
			MaxLifetime:  300,
			CleanupHours: 0,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 3600,
			MaxEntries: 4096,
		},
		Embedding: EmbeddingConfig{
			Backend:  "feature",
			ModelDir: "model/quantized",
		},
		Logging: LoggingConfig{
			LogRequests:   true,
			LogModelCalls: true,
			LogVerbose:    false,
		},
	}
}

// validatePort checks that a port string is in ":PORT" form with a numeric
// port in the valid range.
func validatePort(port, fieldName string) error {
	if port == "" {
		return fmt.Errorf("%s: port cannot be empty", fieldName)
	}
	if !strings.HasPrefix(port, ":") {
		return fmt.Errorf("%s: port must be in format ':PORT' where PORT is numeric (current value: %s)", fieldName, port)
	}
	num, err := strconv.Atoi(strings.TrimPrefix(port, ":"))
	if err != nil {
		return fmt.Errorf("%s: port must be in format ':PORT' where PORT is numeric (current value: %s)", fieldName, port)
	}
	if num < 1 || num > 65535 {
		return fmt.Errorf("%s: port must be between 1 and 65535 (current value: %d)", fieldName, num)
	}
	return nil
}

func validateProviderType(providerType, fieldName string) error {
	switch providerType {
	case "openai", "anthropic", "gemini", "mistral":
		return nil
	default:
		return fmt.Errorf("%s: unsupported provider type (current value: %s)", fieldName, providerType)
	}
}

func validateEmbeddingBackend(backend, fieldName string) error {
	switch backend {
	case "feature", "onnx":
		return nil
	default:
		return fmt.Errorf("%s: backend must be 'feature' or 'onnx' (current value: %s)", fieldName, backend)
	}
}

// ValidateConfig checks the configuration for internal consistency and
// returns all problems found joined into a single error.
func (c *Config) ValidateConfig() error {
	var errs []string

	if err := validatePort(c.ListenPort, "ListenPort"); err != nil {
		errs = append(errs, err.Error())
	}
	if c.BatchLimit < 1 {
		errs = append(errs, fmt.Sprintf("BatchLimit: must be at least 1 (current value: %d)", c.BatchLimit))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Sprintf("RateLimitRPS: must not be negative (current value: %g)", c.RateLimitRPS))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Sprintf("RateLimitBurst: must be at least 1 when rate limiting is enabled (current value: %d)", c.RateLimitBurst))
	}
	if err := validateProviderType(c.Provider.Type, "Provider.Type"); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Provider.Enabled && c.Provider.APIKey == "" {
		errs = append(errs, "Provider.APIKey: key cannot be empty when the provider is enabled")
	}
	if c.Provider.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Sprintf("Provider.TimeoutSeconds: must be at least 1 (current value: %d)", c.Provider.TimeoutSeconds))
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, "Database.Host: host cannot be empty when the database is enabled")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("Database.Port: port must be between 1 and 65535 (current value: %d)", c.Database.Port))
		}
	}
	if c.Cache.TTLSeconds < 0 {
		errs = append(errs, fmt.Sprintf("Cache.TTLSeconds: must not be negative (current value: %d)", c.Cache.TTLSeconds))
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Sprintf("Cache.MaxEntries: must not be negative (current value: %d)", c.Cache.MaxEntries))
	}
	if err := validateEmbeddingBackend(c.Embedding.Backend, "Embedding.Backend"); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Embedding.Backend == "onnx" && c.Embedding.ModelDir == "" {
		errs = append(errs, "Embedding.ModelDir: model directory cannot be empty for the onnx backend")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
