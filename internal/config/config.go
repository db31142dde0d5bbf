package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"rag-docqa-platform/internal/retrieval"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// Retrieval tuning
	ChunkSize           int
	ChunkOverlap        int
	TopK                int
	SimilarityThreshold float64
	BuildTimeout        time.Duration
	QueryTimeout        time.Duration
	ExtractTimeout      time.Duration
	RetrievalConfigFile string

	// Uploads
	MinUploadFiles   int
	MaxUploadFiles   int
	MaxFileSize      int64
	UploadStagingDir string

	// Chat transcripts
	ChatStore  string // "mongo" (default) or "sqlite"
	MongoURI   string
	DBName     string
	SQLitePath string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Sessions
	SessionBackend       string // "disk" (default) or "redis"
	SessionDir           string
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration

	// Generative model
	LLMProvider  string // "gemini" (default) or "openai"
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string
	APIKeyFile   string
	LLMTimeout   time.Duration

	RateLimitReqs   int
	RateLimitWindow int

	// Observability
	TracingEnabled bool
	OTELEndpoint   string

	// Async ingestion
	AsyncIngestEnabled bool
	WorkerConcurrency  int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"), ","),

		ChunkSize:           getEnvInt("CHUNK_SIZE", retrieval.DefaultChunkSize),
		ChunkOverlap:        getEnvInt("CHUNK_OVERLAP", retrieval.DefaultChunkOverlap),
		TopK:                getEnvInt("TOP_K", retrieval.DefaultTopK),
		SimilarityThreshold: getEnvFloat64("SIMILARITY_THRESHOLD", retrieval.DefaultSimilarityThreshold),
		BuildTimeout:        getEnvDuration("BUILD_TIMEOUT", 60*time.Second),
		QueryTimeout:        getEnvDuration("QUERY_TIMEOUT", 5*time.Second),
		ExtractTimeout:      getEnvDuration("EXTRACT_TIMEOUT", 30*time.Second),
		RetrievalConfigFile: getEnv("RETRIEVAL_CONFIG_FILE", ""),

		MinUploadFiles:   getEnvInt("MIN_UPLOAD_FILES", 3),
		MaxUploadFiles:   getEnvInt("MAX_UPLOAD_FILES", 10),
		MaxFileSize:      getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB per file
		UploadStagingDir: getEnv("UPLOAD_STAGING_DIR", "./storage/staging"),

		ChatStore:  strings.ToLower(getEnv("CHAT_STORE", "mongo")),
		MongoURI:   getEnv("MONGO_URI", "mongodb://localhost:27017/rag_docqa"),
		DBName:     getEnv("DB_NAME", "rag_docqa"),
		SQLitePath: getEnv("SQLITE_PATH", "./storage/chats.db"),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		SessionBackend:       strings.ToLower(getEnv("SESSION_BACKEND", "disk")),
		SessionDir:           getEnv("SESSION_DIR", "./storage/sessions"),
		SessionTTL:           getEnvDuration("SESSION_TTL", 24*time.Hour),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),

		LLMProvider:  strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", "")),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		APIKeyFile:   getEnv("API_KEY_FILE", "./storage/api_key.txt"),
		LLMTimeout:   getEnvDuration("LLM_TIMEOUT", 60*time.Second),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTELEndpoint:   getEnv("OTEL_ENDPOINT", "localhost:4317"),

		AsyncIngestEnabled: getEnvBool("ASYNC_INGEST_ENABLED", false),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 4),
	}

	if cfg.RetrievalConfigFile != "" {
		if err := applyRetrievalFile(cfg, cfg.RetrievalConfigFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if err := retrieval.ValidateChunkParams(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	if c.MinUploadFiles < 1 || c.MaxUploadFiles < c.MinUploadFiles {
		return fmt.Errorf("upload limits invalid: min=%d max=%d", c.MinUploadFiles, c.MaxUploadFiles)
	}
	switch c.ChatStore {
	case "mongo", "sqlite":
	default:
		return fmt.Errorf("CHAT_STORE must be mongo or sqlite, got %q", c.ChatStore)
	}
	switch c.SessionBackend {
	case "disk", "redis":
	default:
		return fmt.Errorf("SESSION_BACKEND must be disk or redis, got %q", c.SessionBackend)
	}
	switch c.LLMProvider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("LLM_PROVIDER must be gemini or openai, got %q", c.LLMProvider)
	}
	return nil
}

// SearchOptions returns the configured retrieval selection parameters.
func (c *Config) SearchOptions() retrieval.SearchOptions {
	return retrieval.SearchOptions{TopK: c.TopK, Threshold: c.SimilarityThreshold}
}

// Chunker returns a chunker for the configured window.
func (c *Config) Chunker() (*retrieval.Chunker, error) {
	return retrieval.NewChunker(c.ChunkSize, c.ChunkOverlap)
}

// ProviderAPIKey returns the environment key for the selected model provider.
func (c *Config) ProviderAPIKey() string {
	if c.LLMProvider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}
