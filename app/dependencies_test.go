package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/upb/medrag/config"
	"github.com/upb/medrag/handlers"
	"github.com/upb/medrag/internal/emergency"
	"github.com/upb/medrag/models"
	"github.com/upb/medrag/repositories"
	"github.com/upb/medrag/repositories/postgres"
	"github.com/upb/medrag/services"
	"github.com/upb/medrag/services/consultation"
	"github.com/upb/medrag/supabaseauth"
	"github.com/upb/medrag/utils"
)

func TestNewDependencies(t *testing.T) {
	t.Run("successful initialization with all components", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		logger := zaptest.NewLogger(t)

		// Skip if database not available
		if !isDatabaseAvailable(t, cfg) {
			t.Skip("database not available")
		}

		deps, err := NewDependencies(ctx, cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, deps)

		// Verify infrastructure
		assert.NotNil(t, deps.Config)
		assert.NotNil(t, deps.DB)
		assert.NotNil(t, deps.Logger)

		// Verify repositories
		assert.NotNil(t, deps.Repositories.Documents)
		assert.NotNil(t, deps.Repositories.Jobs)
		assert.NotNil(t, deps.Repositories.Consultations)

		// Verify services
		assert.NotNil(t, deps.Orchestrator)
		assert.NotNil(t, deps.Ingestion)
		assert.NotNil(t, deps.Voice)
		assert.NotNil(t, deps.AuthMiddleware)

		// Cleanup
		err = deps.Close(ctx)
		assert.NoError(t, err)
	})

	t.Run("database connection failure", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Database.Host = "invalid-host-that-does-not-exist"
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize database")
	})
}

func TestInitServices(t *testing.T) {
	t.Run("optional backends disabled without keys", func(t *testing.T) {
		cfg := testConfig(t)
		deps, _ := newMockedDependencies(t, cfg)

		require.NoError(t, deps.initServices(cfg))
		defer deps.Close(context.Background())

		assert.Equal(t, []string{"openai", "txagent"}, deps.Agents.List())
		assert.Equal(t, []string{"openai", "txagent"}, deps.Orchestrator.Agents())
		assert.Equal(t, "runpod", deps.Embedder.Name())
		assert.Equal(t, 768, deps.Embedder.Dimensions())
		assert.False(t, deps.Voice.Configured())
		assert.True(t, deps.Detector.Detect("I think I am having a heart attack").IsEmergency)
	})

	t.Run("openai agent and embedder with api key", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Providers.OpenAI.APIKey = "sk-test"
		cfg.Embedding.Provider = "openai"
		cfg.Voice.APIKey = "el-test"
		deps, _ := newMockedDependencies(t, cfg)

		require.NoError(t, deps.initServices(cfg))
		defer deps.Close(context.Background())

		assert.Equal(t, []string{"openai", "txagent"}, deps.Agents.List())
		assert.Equal(t, "openai", deps.Embedder.Name())
		assert.True(t, deps.Voice.Configured())
	})

	t.Run("custom emergency keywords file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "keywords.yaml")
		require.NoError(t, os.WriteFile(path, []byte("keywords:\n  - anaphylaxis\n"), 0o600))

		cfg := testConfig(t)
		cfg.RAG.EmergencyKeywordsFile = path
		deps, _ := newMockedDependencies(t, cfg)

		require.NoError(t, deps.initServices(cfg))
		defer deps.Close(context.Background())

		assert.True(t, deps.Detector.Detect("possible anaphylaxis after a bee sting").IsEmergency)
		assert.False(t, deps.Detector.Detect("chest pain").IsEmergency)
	})

	t.Run("missing keywords file fails", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.RAG.EmergencyKeywordsFile = filepath.Join(t.TempDir(), "missing.yaml")
		deps, _ := newMockedDependencies(t, cfg)

		err := deps.initServices(cfg)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "emergency keywords")
	})
}

func TestOpenAIAgentWithoutKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.OpenAI.APIKey = ""

	agents, err := consultation.DefaultRegistry(newLLMGenerator(cfg))
	require.NoError(t, err)
	assert.Equal(t, []string{"openai", "txagent"}, agents.List())

	orchestrator := consultation.NewOrchestrator(
		emergency.NewDefaultDetector(),
		fixedEmbedder{},
		noMatches{},
		agents,
		nil,
		consultation.Config{SimilarityThreshold: 0.5, DefaultTopK: 5},
		zap.NewNop(),
		nil,
	)

	_, err = orchestrator.Consult(context.Background(), &consultation.Request{
		UserID: "user-1",
		Query:  "What is the usual metformin dose?",
		Agent:  consultation.AgentLLM,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrProviderNotConfigured)

	w := httptest.NewRecorder()
	handlers.HandleServiceError(w, err, zap.NewNop())
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, utils.CategoryProcessing, body.Category)
	assert.Contains(t, body.Details, "not configured")
}

func TestInitAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("reject all without secret", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Supabase.JWTSecret = ""
		deps := &Dependencies{Config: cfg, Logger: zap.NewNop()}

		deps.initAuth(cfg)
		require.NotNil(t, deps.AuthMiddleware)

		_, err := (&rejectAllValidator{}).ValidateToken(ctx, "anything")
		assert.Error(t, err)
	})

	t.Run("adapter maps supabase claims", func(t *testing.T) {
		cfg := testConfig(t)
		deps := &Dependencies{Config: cfg, Logger: zap.NewNop()}
		deps.initAuth(cfg)
		require.NotNil(t, deps.AuthMiddleware)

		now := time.Now()
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":        "7f1c2b5e-0000-4000-8000-000000000001",
			"aud":        "authenticated",
			"role":       "authenticated",
			"email":      "patient@example.com",
			"session_id": "sess-1",
			"iat":        now.Unix(),
			"exp":        now.Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(cfg.Supabase.JWTSecret))
		require.NoError(t, err)

		adapter := &supabaseTokenValidatorAdapter{validator: newTestValidator(cfg)}
		claims, err := adapter.ValidateToken(ctx, signed)
		require.NoError(t, err)
		assert.Equal(t, "7f1c2b5e-0000-4000-8000-000000000001", claims.Sub)
		assert.Equal(t, "patient@example.com", claims.Email)
		assert.Equal(t, "authenticated", claims.Role)
		assert.Equal(t, "sess-1", claims.SessionID)
		assert.Equal(t, now.Add(time.Hour).Unix(), claims.Exp)
	})

	t.Run("adapter propagates validation errors", func(t *testing.T) {
		cfg := testConfig(t)
		adapter := &supabaseTokenValidatorAdapter{validator: newTestValidator(cfg)}

		claims, err := adapter.ValidateToken(ctx, "not-a-jwt")
		assert.Error(t, err)
		assert.Nil(t, claims)
	})
}

func TestDependenciesAccessors(t *testing.T) {
	deps := &Dependencies{Logger: zap.NewNop()}

	assert.Nil(t, deps.SQLDB())
	assert.NotNil(t, deps.Auth())
	assert.Same(t, deps.Auth(), deps.Auth())
}

func TestDependenciesClose(t *testing.T) {
	t.Run("graceful shutdown", func(t *testing.T) {
		cfg := testConfig(t)
		deps, mock := newMockedDependencies(t, cfg)
		require.NoError(t, deps.initServices(cfg))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// Close should succeed
		assert.NoError(t, deps.Close(ctx))

		// Second close must not fail on the already stopped trail
		assert.NoError(t, deps.Close(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing wired", func(t *testing.T) {
		deps := &Dependencies{Logger: zap.NewNop()}
		assert.NoError(t, deps.Close(context.Background()))
	})
}

// Test helpers

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type noMatches struct{}

func (noMatches) Match(context.Context, []float32, float64, int, string) ([]*models.DocumentMatch, error) {
	return nil, nil
}

// newMockedDependencies wires repositories over go-sqlmock so services can be
// built without a database
func newMockedDependencies(t *testing.T, cfg *config.Config) (*Dependencies, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := zap.NewNop()
	db := postgres.WrapDB(sqlDB, logger)

	return &Dependencies{
		Config: cfg,
		Logger: logger,
		DB:     db,
		Repositories: &repositories.Repositories{
			Documents:     postgres.NewDocumentRepository(db, logger),
			Jobs:          postgres.NewJobRepository(db, logger),
			Consultations: postgres.NewConsultationRepository(db, logger),
		},
	}, mock
}

func newTestValidator(cfg *config.Config) *supabaseauth.Validator {
	return supabaseauth.NewValidator(supabaseauth.Config{JWTSecret: cfg.Supabase.JWTSecret})
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: config.DatabaseConfig{
			Driver:          "pgx",
			Host:            getEnvOrDefault("DB_HOST", "localhost"),
			Port:            5432,
			User:            getEnvOrDefault("DB_USER", "medrag"),
			Password:        getEnvOrDefault("DB_PASSWORD", "medrag"),
			Database:        getEnvOrDefault("DB_NAME", "medrag_test"),
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Supabase: config.SupabaseConfig{
			URL:       "https://example.supabase.co",
			Key:       "service-key",
			Bucket:    "documents",
			JWTSecret: "super-secret-jwt-token-with-at-least-32-characters",
		},
		Embedding: config.EmbeddingConfig{
			Provider:    "runpod",
			URL:         "http://localhost:8001",
			Model:       "BioBERT",
			Dimensions:  768,
			MaxLength:   512,
			BatchSize:   8,
			Timeout:     time.Second,
			MaxAttempts: 1,
		},
		Providers: config.ProvidersConfig{
			OpenAI: config.OpenAIConfig{
				BaseURL:   "https://api.openai.com/v1",
				Model:     "gpt-4o-mini",
				MaxTokens: 500,
				Timeout:   60 * time.Second,
			},
		},
		RAG: config.RAGConfig{
			SimilarityThreshold: 0.5,
			DefaultTopK:         5,
			DefaultTemperature:  0.7,
		},
		Audit: config.AuditConfig{
			BufferSize:  10,
			WorkerCount: 1,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:       "debug",
			LogFormat:      "json",
			MetricsEnabled: false,
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func isDatabaseAvailable(t *testing.T, cfg *config.Config) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	factory, err := postgres.NewRepositoryFactory(ctx, cfg, zap.NewNop())
	if err != nil {
		return false
	}
	defer factory.Close()

	return factory.GetDB().PingContext(ctx) == nil
}
