package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/medrag/config"
	"github.com/upb/medrag/internal/emergency"
	"github.com/upb/medrag/internal/extract"
	"github.com/upb/medrag/internal/observability"
	"github.com/upb/medrag/internal/storage"
	"github.com/upb/medrag/middleware"
	"github.com/upb/medrag/repositories"
	"github.com/upb/medrag/repositories/postgres"
	"github.com/upb/medrag/services/audit"
	"github.com/upb/medrag/services/consultation"
	"github.com/upb/medrag/services/embedding"
	"github.com/upb/medrag/services/ingestion"
	"github.com/upb/medrag/services/providers"
	"github.com/upb/medrag/services/providers/openai"
	"github.com/upb/medrag/services/voice"
	"github.com/upb/medrag/supabaseauth"
)

const auditStopTimeout = 10 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Repositories *repositories.Repositories

	// Remote backends
	Embedder embedding.Embedder
	Store    storage.Store

	// Services
	Detector     *emergency.Detector
	Agents       *consultation.Registry
	AuditTrail   *audit.ConsultationTrail
	Orchestrator *consultation.Orchestrator
	Ingestion    *ingestion.Service
	Voice        *voice.Service

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics()
	}

	// Initialize PostgreSQL
	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.Repositories = deps.RepoFactory.NewRepositories()
	logger.Info("repositories initialized")

	if err := deps.initServices(cfg); err != nil {
		_ = deps.RepoFactory.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.Strings("agents", deps.Agents.List()),
		zap.String("embedding_provider", deps.Embedder.Name()),
		zap.Bool("voice_configured", deps.Voice.Configured()))
	return deps, nil
}

// initDatabase opens the PostgreSQL pool and, when configured, applies the schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(ctx, cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initServices builds the remote clients and domain services on top of
// d.Repositories
func (d *Dependencies) initServices(cfg *config.Config) error {
	d.Embedder = newEmbedder(cfg, d.Logger, d.Metrics)

	d.Store = storage.NewSupabaseStore(storage.Config{
		URL:     cfg.Supabase.URL,
		Key:     cfg.Supabase.Key,
		Bucket:  cfg.Supabase.Bucket,
		Timeout: cfg.Supabase.Timeout,
	}, d.Logger)

	detector, err := newDetector(cfg.RAG.EmergencyKeywordsFile)
	if err != nil {
		return err
	}
	d.Detector = detector

	agents, err := consultation.DefaultRegistry(newLLMGenerator(cfg))
	if err != nil {
		return err
	}
	d.Agents = agents
	if !cfg.LLMConfigured() {
		d.Logger.Warn("OPENAI_API_KEY not set, openai agent will report it is not configured")
	}

	d.AuditTrail = audit.NewConsultationTrail(d.Repositories.Consultations, d.Logger, d.Metrics, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	})
	if err := d.AuditTrail.Start(); err != nil {
		return fmt.Errorf("failed to start audit trail: %w", err)
	}

	d.Orchestrator = consultation.NewOrchestrator(
		d.Detector,
		d.Embedder,
		d.Repositories.Documents,
		d.Agents,
		d.AuditTrail,
		consultation.Config{
			SimilarityThreshold: cfg.RAG.SimilarityThreshold,
			DefaultTopK:         cfg.RAG.DefaultTopK,
		},
		d.Logger,
		d.Metrics,
	)

	d.Ingestion = ingestion.NewService(
		extract.NewRegistry(),
		d.Embedder,
		d.Repositories.Documents,
		d.Repositories.Jobs,
		d.Store,
		d.Logger,
		d.Metrics,
	)

	var synth voice.Synthesizer
	if cfg.VoiceConfigured() {
		synth = voice.NewElevenLabsClient(voice.ElevenLabsConfig{
			APIKey:  cfg.Voice.APIKey,
			ModelID: cfg.Voice.ModelID,
			Timeout: cfg.Voice.Timeout,
		})
	} else {
		d.Logger.Warn("ELEVENLABS_API_KEY not set, voice generation disabled")
	}
	d.Voice = voice.NewService(synth, d.Store, d.Repositories.Consultations, voice.Config{
		DefaultVoiceID: cfg.Voice.DefaultVoiceID,
		MaxTextLength:  cfg.Voice.MaxTextLength,
	}, d.Logger, d.Metrics)

	return nil
}

func newEmbedder(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) embedding.Embedder {
	retry := embedding.RetryConfig{
		MaxAttempts: cfg.Embedding.MaxAttempts,
		MinBackoff:  cfg.Embedding.MinBackoff,
		MaxBackoff:  cfg.Embedding.MaxBackoff,
	}

	if cfg.Embedding.Provider == "openai" {
		return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     cfg.Providers.OpenAI.APIKey,
			BaseURL:    cfg.Providers.OpenAI.BaseURL,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Embedding.Timeout,
			Retry:      retry,
		}, logger, metrics)
	}

	return embedding.NewRunPodClient(embedding.RunPodConfig{
		URL:          cfg.Embedding.URL,
		APIKey:       cfg.Embedding.APIKey,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
		MaxLength:    cfg.Embedding.MaxLength,
		BatchSize:    cfg.Embedding.BatchSize,
		Timeout:      cfg.Embedding.Timeout,
		BatchTimeout: cfg.Embedding.BatchTimeout,
		Retry:        retry,
	}, logger, metrics)
}

func newDetector(keywordsFile string) (*emergency.Detector, error) {
	if keywordsFile == "" {
		return emergency.NewDefaultDetector(), nil
	}
	keywords, err := emergency.LoadKeywords(keywordsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load emergency keywords: %w", err)
	}
	return emergency.NewDetector(keywords), nil
}

// newLLMGenerator builds the openai generator. Without an API key it has no
// provider and Generate returns ErrProviderNotConfigured.
func newLLMGenerator(cfg *config.Config) *consultation.LLMGenerator {
	var provider providers.ChatProvider
	if cfg.LLMConfigured() {
		provider = openai.NewOpenAIAdapter(providers.ProviderConfig{
			APIKey:  cfg.Providers.OpenAI.APIKey,
			BaseURL: cfg.Providers.OpenAI.BaseURL,
			Model:   cfg.Providers.OpenAI.Model,
			Timeout: cfg.Providers.OpenAI.Timeout,
		})
	}
	return consultation.NewLLMGenerator(provider, cfg.Providers.OpenAI.Model, cfg.Providers.OpenAI.MaxTokens)
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Supabase.JWTSecret == "" {
		d.Logger.Warn("SUPABASE_JWT_SECRET not set, protected endpoints will reject every request")
		// Use reject-all validator so protected routes return 401
		d.AuthMiddleware = middleware.NewAuthMiddleware(&rejectAllValidator{}, d.Logger)
		return
	}
	validator := supabaseauth.NewValidator(supabaseauth.Config{
		JWTSecret: cfg.Supabase.JWTSecret,
	})
	d.AuthMiddleware = middleware.NewAuthMiddleware(&supabaseTokenValidatorAdapter{validator: validator}, d.Logger)
	d.Logger.Info("supabase token validation enabled")
}

// Auth returns the auth middleware, falling back to one that rejects every
// token when none was wired
func (d *Dependencies) Auth() *middleware.AuthMiddleware {
	if d.AuthMiddleware == nil {
		d.AuthMiddleware = middleware.NewAuthMiddleware(&rejectAllValidator{}, d.Logger)
	}
	return d.AuthMiddleware
}

// SQLDB returns the underlying pool, or nil when no database is wired
func (d *Dependencies) SQLDB() *sql.DB {
	if d.DB == nil {
		return nil
	}
	return d.DB.DB
}

// supabaseTokenValidatorAdapter adapts supabaseauth.Validator to middleware.TokenValidator
type supabaseTokenValidatorAdapter struct {
	validator *supabaseauth.Validator
}

func (a *supabaseTokenValidatorAdapter) ValidateToken(ctx context.Context, token string) (*middleware.Claims, error) {
	parsed, err := a.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{
		Sub:       parsed.UserID,
		Email:     parsed.Email,
		Role:      parsed.Role,
		SessionID: parsed.SessionID,
		Exp:       parsed.ExpiresAt.Unix(),
		Iat:       parsed.IssuedAt.Unix(),
	}, nil
}

// rejectAllValidator rejects all tokens (used when no JWT secret is configured)
type rejectAllValidator struct{}

func (*rejectAllValidator) ValidateToken(context.Context, string) (*middleware.Claims, error) {
	return nil, fmt.Errorf("authentication not configured")
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain pending audit records before the pool goes away
	if d.AuditTrail != nil {
		timeout := auditStopTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.AuditTrail.Stop(timeout); err != nil && !errors.Is(err, audit.ErrNotRunning) {
			errs = append(errs, fmt.Errorf("failed to stop audit trail: %w", err))
		}
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
