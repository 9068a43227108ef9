package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/huetone/chromind/config"
	"github.com/huetone/chromind/embedding"
	"github.com/huetone/chromind/intel"
	"github.com/huetone/chromind/providers"
	"github.com/huetone/chromind/server"
	"github.com/huetone/chromind/store"
)

const TRUE = "true"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file from current directory")
	} else {
		log.Printf("Note: .env file not found or could not be loaded: %v", err)
	}

	cfg := config.DefaultConfig()

	configPath := flag.String("config", "", "Path to JSON config file")
	flag.Parse()

	if *configPath != "" {
		loadConfigFromFile(*configPath, cfg)
	}

	// Override configuration with environment variables
	loadConfigFromEnv(cfg)

	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Printf("Warning: Sentry initialization failed: %v", err)
		} else {
			log.Println("Sentry error reporting enabled")
			defer sentry.Flush(2 * time.Second)
		}
	}

	colorStore, analysisLog := buildStore(cfg)
	embedder := buildEmbedder(cfg)
	intelService := buildIntel(cfg)

	srv, err := server.NewServer(cfg, server.Deps{
		Store:    colorStore,
		Logs:     analysisLog,
		Intel:    intelService,
		Embedder: embedder,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Printf("Failed to close server: %v", err)
		}
	}()

	if cfg.Database.Enabled && cfg.Database.CleanupHours > 0 {
		go runCleanup(colorStore, time.Duration(cfg.Database.CleanupHours)*time.Hour)
	}

	srv.StartWithErrorHandling()
}

// buildStore opens the configured store. A Postgres failure at startup falls
// back to the in-memory store so the service still comes up.
func buildStore(cfg *config.Config) (store.ColorStore, store.AnalysisLog) {
	if cfg.Database.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pg, err := store.NewPostgresStore(ctx, store.DatabaseConfig{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			Database:     cfg.Database.Database,
			Username:     cfg.Database.Username,
			Password:     cfg.Database.Password,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			MaxLifetime:  time.Duration(cfg.Database.MaxLifetime) * time.Second,
		})
		if err != nil {
			log.Printf("Warning: Failed to connect to database, falling back to in-memory storage: %v", err)
			cfg.Database.Enabled = false
		} else {
			log.Printf("Connected to database %s@%s:%d", cfg.Database.Database, cfg.Database.Host, cfg.Database.Port)
			return pg, pg
		}
	}

	mem := store.NewMemoryStore()
	return mem, mem
}

// buildEmbedder selects the embedding backend. The manager itself serves as
// the embedder so every request goes through its current model and a Reload
// swaps the model under live traffic. A failed initial load falls back to
// the deterministic feature embedder.
func buildEmbedder(cfg *config.Config) embedding.Embedder {
	if cfg.Embedding.Backend == "onnx" {
		manager, err := embedding.NewManager(cfg.Embedding.ModelDir)
		if err != nil {
			log.Printf("Warning: ONNX embedder unavailable, falling back to feature embedder: %v", err)
		} else if !manager.Healthy() {
			log.Printf("Warning: ONNX embedder unhealthy, falling back to feature embedder")
		} else {
			return manager
		}
	}
	return embedding.NewFeatureEmbedder()
}

// buildIntel wires the metadata service, with or without a hosted model.
func buildIntel(cfg *config.Config) *intel.Service {
	opts := []intel.Option{
		intel.WithTimeout(time.Duration(cfg.Provider.TimeoutSeconds) * time.Second),
		intel.WithCallLogging(cfg.Logging.LogModelCalls),
	}

	if !cfg.Provider.Enabled {
		return intel.NewService(nil, opts...)
	}

	p, err := providers.New(cfg.Provider.Type, providers.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Model:   cfg.Provider.Model,
	})
	if err != nil {
		log.Fatalf("Failed to create provider: %v", err)
	}
	if err := p.ValidateConfig(); err != nil {
		log.Fatalf("Invalid provider configuration: %v", err)
	}
	log.Printf("Hosted model provider: %s", p.GetName())
	return intel.NewService(p, opts...)
}

// runCleanup periodically removes records older than the retention window.
func runCleanup(s store.ColorStore, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		deleted, err := s.CleanupOlderThan(ctx, retention)
		cancel()
		if err != nil {
			log.Printf("[Cleanup] ❌ Failed: %v", err)
			continue
		}
		if deleted > 0 {
			log.Printf("[Cleanup] Removed %d records older than %s", deleted, retention)
		}
	}
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(path string, cfg *config.Config) {
	// #nosec G304 - Config file path is controlled by application, not user input
	file, err := os.Open(path)
	if err != nil {
		log.Printf("Failed to open config file: %v", err)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("Failed to close config file: %v", err)
		}
	}()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		log.Printf("Failed to decode config file: %v", err)
	}
}

// loadConfigFromEnv loads configuration from environment variables
func loadConfigFromEnv(cfg *config.Config) {
	loadServerConfig(cfg)
	loadDatabaseConfig(cfg)
	loadProviderConfig(cfg)
	loadEmbeddingConfig(cfg)
	loadLoggingConfig(cfg)
}

// loadServerConfig loads server configuration from environment variables
func loadServerConfig(cfg *config.Config) {
	if port := os.Getenv("CHROMIND_PORT"); port != "" {
		cfg.ListenPort = port
	}

	if keys := os.Getenv("CHROMIND_API_KEYS"); keys != "" {
		cfg.APIKeys = cfg.APIKeys[:0]
		for _, key := range strings.Split(keys, ",") {
			if key = strings.TrimSpace(key); key != "" {
				cfg.APIKeys = append(cfg.APIKeys, key)
			}
		}
	}

	if limit := os.Getenv("CHROMIND_BATCH_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			cfg.BatchLimit = n
		}
	}

	if rps := os.Getenv("CHROMIND_RATE_LIMIT_RPS"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.RateLimitRPS = v
		}
	}

	if burst := os.Getenv("CHROMIND_RATE_LIMIT_BURST"); burst != "" {
		if n, err := strconv.Atoi(burst); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		cfg.SentryDSN = dsn
	}

	if ttl := os.Getenv("CHROMIND_CACHE_TTL_SECONDS"); ttl != "" {
		if n, err := strconv.Atoi(ttl); err == nil {
			cfg.Cache.TTLSeconds = n
		}
	}

	if enabled := os.Getenv("CHROMIND_CACHE_ENABLED"); enabled != "" {
		cfg.Cache.Enabled = enabled == TRUE
	}
}

// loadDatabaseConfig loads database configuration from environment variables
func loadDatabaseConfig(cfg *config.Config) {
	if dbEnabled := os.Getenv("DB_ENABLED"); dbEnabled != "" {
		cfg.Database.Enabled = dbEnabled == TRUE
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Database.Port = p
		}
	}

	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.Database.Database = dbName
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.Username = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}

	if sslMode := os.Getenv("DB_SSL_MODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}

	if cleanupHours := os.Getenv("DB_CLEANUP_HOURS"); cleanupHours != "" {
		if hours, err := strconv.Atoi(cleanupHours); err == nil {
			cfg.Database.CleanupHours = hours
		}
	}
}

// loadProviderConfig loads hosted model configuration from environment
// variables. The provider-specific key variables match what the vendors
// document, so an existing shell setup works unchanged.
func loadProviderConfig(cfg *config.Config) {
	if enabled := os.Getenv("CHROMIND_PROVIDER_ENABLED"); enabled != "" {
		cfg.Provider.Enabled = enabled == TRUE
	}

	if providerType := os.Getenv("CHROMIND_PROVIDER"); providerType != "" {
		cfg.Provider.Type = providerType
	}

	if baseURL := os.Getenv("CHROMIND_PROVIDER_BASE_URL"); baseURL != "" {
		cfg.Provider.BaseURL = baseURL
	}

	if model := os.Getenv("CHROMIND_PROVIDER_MODEL"); model != "" {
		cfg.Provider.Model = model
	}

	keyVars := map[string]string{
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
		"gemini":    "GEMINI_API_KEY",
		"mistral":   "MISTRAL_API_KEY",
	}
	if keyVar, ok := keyVars[cfg.Provider.Type]; ok {
		if apiKey := os.Getenv(keyVar); apiKey != "" {
			cfg.Provider.APIKey = apiKey
			log.Printf("Loaded %s from environment (length: %d)", keyVar, len(apiKey))
		}
	}
}

// loadEmbeddingConfig loads embedder configuration from environment variables
func loadEmbeddingConfig(cfg *config.Config) {
	if backend := os.Getenv("CHROMIND_EMBEDDER"); backend != "" {
		cfg.Embedding.Backend = backend
	}

	if modelDir := os.Getenv("CHROMIND_MODEL_DIR"); modelDir != "" {
		cfg.Embedding.ModelDir = modelDir
	}
}

// loadLoggingConfig loads logging configuration from environment variables
func loadLoggingConfig(cfg *config.Config) {
	if logRequests := os.Getenv("LOG_REQUESTS"); logRequests != "" {
		cfg.Logging.LogRequests = logRequests == TRUE
	}

	if logModelCalls := os.Getenv("LOG_MODEL_CALLS"); logModelCalls != "" {
		cfg.Logging.LogModelCalls = logModelCalls == TRUE
	}

	if logVerbose := os.Getenv("LOG_VERBOSE"); logVerbose != "" {
		cfg.Logging.LogVerbose = logVerbose == TRUE
	}

	if debugMode := os.Getenv("DEBUG_MODE"); debugMode != "" {
		cfg.Logging.DebugMode = debugMode == TRUE
	}
}
