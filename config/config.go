package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Supabase      SupabaseConfig
	Embedding     EmbeddingConfig
	Providers     ProvidersConfig
	Voice         VoiceConfig
	RAG           RAGConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL (pgvector) database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	Driver           string // "pgx" or "postgres" (lib/pq)
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	InitSchema       bool
}

// SupabaseConfig holds the Supabase project settings used for object storage
// and for verifying session tokens.
type SupabaseConfig struct {
	URL       string
	Key       string
	Bucket    string
	JWTSecret string
	Timeout   time.Duration
}

// EmbeddingConfig holds the remote embedding service configuration
type EmbeddingConfig struct {
	Provider     string // "runpod" or "openai"
	URL          string
	APIKey       string
	Model        string
	Dimensions   int
	MaxLength    int
	BatchSize    int
	Timeout      time.Duration
	BatchTimeout time.Duration
	MaxAttempts  int
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
}

// ProvidersConfig holds LLM provider configurations
type ProvidersConfig struct {
	OpenAI OpenAIConfig
}

// OpenAIConfig holds OpenAI provider configuration.
// An empty APIKey leaves the openai agent unconfigured; requests for it fail.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// VoiceConfig holds ElevenLabs text-to-speech configuration
type VoiceConfig struct {
	APIKey         string
	DefaultVoiceID string
	ModelID        string
	Timeout        time.Duration
	MaxTextLength  int
}

// RAGConfig holds retrieval and generation defaults
type RAGConfig struct {
	SimilarityThreshold   float64
	DefaultTopK           int
	DefaultTemperature    float64
	EmergencyKeywordsFile string
}

// AuditConfig holds the consultation audit trail worker settings
type AuditConfig struct {
	BufferSize  int
	WorkerCount int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxUploadBytes:  int64(getEnvAsInt("MAX_UPLOAD_BYTES", 50<<20)),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: loadDatabaseConfig(),
		Supabase: SupabaseConfig{
			URL:       strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			Key:       getEnv("SUPABASE_KEY", getEnv("SUPABASE_ANON_KEY", "")),
			Bucket:    getEnv("SUPABASE_BUCKET", "documents"),
			JWTSecret: getEnv("SUPABASE_JWT_SECRET", ""),
			Timeout:   getEnvAsDuration("SUPABASE_TIMEOUT", 60*time.Second),
		},
		Embedding: EmbeddingConfig{
			Provider:     getEnv("EMBEDDING_PROVIDER", "runpod"),
			URL:          strings.TrimRight(getEnv("RUNPOD_EMBEDDING_URL", ""), "/"),
			APIKey:       getEnv("RUNPOD_EMBEDDING_KEY", ""),
			Model:        getEnv("EMBEDDING_MODEL", "BioBERT"),
			Dimensions:   getEnvAsInt("EMBEDDING_DIMENSIONS", 768),
			MaxLength:    getEnvAsInt("EMBEDDING_MAX_LENGTH", 512),
			BatchSize:    getEnvAsInt("EMBEDDING_BATCH_SIZE", 8),
			Timeout:      getEnvAsDuration("EMBEDDING_TIMEOUT", 30*time.Second),
			BatchTimeout: getEnvAsDuration("EMBEDDING_BATCH_TIMEOUT", 60*time.Second),
			MaxAttempts:  getEnvAsInt("EMBEDDING_MAX_ATTEMPTS", 3),
			MinBackoff:   getEnvAsDuration("EMBEDDING_MIN_BACKOFF", 4*time.Second),
			MaxBackoff:   getEnvAsDuration("EMBEDDING_MAX_BACKOFF", 10*time.Second),
		},
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:    getEnv("OPENAI_API_KEY", ""),
				BaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
				MaxTokens: getEnvAsInt("OPENAI_MAX_TOKENS", 500),
				Timeout:   getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
			},
		},
		Voice: VoiceConfig{
			APIKey:         getEnv("ELEVENLABS_API_KEY", ""),
			DefaultVoiceID: getEnv("ELEVENLABS_VOICE_ID", "default"),
			ModelID:        getEnv("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),
			Timeout:        getEnvAsDuration("ELEVENLABS_TIMEOUT", 60*time.Second),
			MaxTextLength:  getEnvAsInt("VOICE_MAX_TEXT_LENGTH", 5000),
		},
		RAG: RAGConfig{
			SimilarityThreshold:   getEnvAsFloat("RAG_SIMILARITY_THRESHOLD", 0.5),
			DefaultTopK:           getEnvAsInt("RAG_DEFAULT_TOP_K", 5),
			DefaultTemperature:    getEnvAsFloat("RAG_DEFAULT_TEMPERATURE", 0.7),
			EmergencyKeywordsFile: getEnv("EMERGENCY_KEYWORDS_FILE", ""),
		},
		Audit: AuditConfig{
			BufferSize:  getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			WorkerCount: getEnvAsInt("AUDIT_WORKER_COUNT", 2),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}
	if c.Database.Driver != "pgx" && c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Supabase.URL == "" || c.Supabase.Key == "" {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_KEY must be set")
	}
	if c.Supabase.JWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET must be set")
	}

	switch c.Embedding.Provider {
	case "runpod":
		if c.Embedding.URL == "" {
			return fmt.Errorf("RUNPOD_EMBEDDING_URL must be set")
		}
	case "openai":
		if c.Providers.OpenAI.APIKey == "" {
			return fmt.Errorf("openai embedding provider selected but OPENAI_API_KEY not set")
		}
	default:
		return fmt.Errorf("unknown embedding provider: %s", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive")
	}
	if c.Embedding.MaxAttempts < 1 {
		return fmt.Errorf("embedding max attempts must be at least 1")
	}

	if c.RAG.SimilarityThreshold < 0 || c.RAG.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be between 0 and 1")
	}
	if c.RAG.DefaultTopK <= 0 {
		return fmt.Errorf("default top_k must be positive")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// LLMConfigured reports whether the openai agent has a credential
func (c *Config) LLMConfigured() bool {
	return c.Providers.OpenAI.APIKey != ""
}

// VoiceConfigured reports whether text-to-speech has a credential
func (c *Config) VoiceConfigured() bool {
	return c.Voice.APIKey != ""
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("driver=%s host=%s port=%s database=%s", c.Driver, host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("driver=%s host=%s port=%d database=%s", c.Driver, c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", "pgx"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		InitSchema:      getEnvAsBool("DB_INIT_SCHEMA", true),
	}
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}
	cfg.Host = getEnv("DB_HOST", "localhost")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "postgres")
	cfg.Password = getEnv("DB_PASSWORD", "")
	cfg.Database = getEnv("DB_NAME", "medrag")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
