package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/medrag/app"
	"github.com/upb/medrag/handlers"
	"github.com/upb/medrag/middleware"
	"github.com/upb/medrag/utils"
)

const defaultRequestTimeout = 120 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	requestTimeout := defaultRequestTimeout
	allowedOrigins := []string{"*"}
	var maxUploadBytes int64
	if deps.Config != nil {
		if deps.Config.Server.RequestTimeout > 0 {
			requestTimeout = deps.Config.Server.RequestTimeout
		}
		if len(deps.Config.Server.AllowedOrigins) > 0 {
			allowedOrigins = deps.Config.Server.AllowedOrigins
		}
		maxUploadBytes = deps.Config.Server.MaxUploadBytes
	}

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))
	r.Use(deps.Metrics.Middleware())

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(deps.SQLDB(), healthChecker(deps), deps.Logger)
	embed := handlers.NewEmbedHandler(deps.Embedder, deps.Logger)
	consult := handlers.NewConsultationHandler(deps.Orchestrator, deps.Logger)
	documents := handlers.NewDocumentHandler(deps.Ingestion, maxUploadBytes, deps.Logger)
	voice := handlers.NewVoiceHandler(deps.Voice, deps.Logger)

	// Public endpoints
	r.Get("/", health.HandleRoot)
	r.Get("/health", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// API routes (require a Supabase session)
	r.Route("/api", func(r chi.Router) {
		r.Use(deps.Auth().RequireAuth)

		r.Post("/embed", embed.HandleEmbed)
		r.Post("/chat", consult.HandleChat)
		r.Post("/medical-consultation", consult.HandleMedicalConsultation)

		r.Post("/upload", documents.HandleUpload)
		r.Get("/documents", documents.HandleList)
		r.Delete("/documents/{id}", documents.HandleDelete)
		r.Post("/process-document", documents.HandleProcessDocument)
		r.Get("/process-document/{job_id}", documents.HandleGetJob)

		r.Post("/generate-voice", voice.HandleGenerate)
		r.Get("/voices", voice.HandleVoices)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}

// healthChecker returns nil when no embedder is wired so readiness reports
// it as not configured
func healthChecker(deps *app.Dependencies) handlers.HealthChecker {
	if deps.Embedder == nil {
		return nil
	}
	return deps.Embedder
}
