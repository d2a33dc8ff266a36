package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mediakit/backend/internal/api/handlers"
	"github.com/mediakit/backend/internal/auth"
	"github.com/mediakit/backend/internal/billing"
	"github.com/mediakit/backend/internal/cache"
	"github.com/mediakit/backend/internal/config"
	"github.com/mediakit/backend/internal/database"
	"github.com/mediakit/backend/internal/media"
	"github.com/mediakit/backend/internal/metrics"
	"github.com/mediakit/backend/internal/middleware"
	"github.com/mediakit/backend/internal/ratelimit"
	"github.com/mediakit/backend/internal/recognize"
	"github.com/mediakit/backend/internal/repository"
	"github.com/mediakit/backend/internal/usage"
)

// NewRouter creates and configures the main router
func NewRouter(cfg *config.Config, db *database.DB, redisCache *cache.Redis) *chi.Mux {
	r := chi.NewRouter()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	counterRepo := repository.NewCounterRepository(db)
	overrideRepo := repository.NewOverrideRepository(db)

	// Initialize auth services
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTExpiration)
	apiKeyService := auth.NewAPIKeyService(db, cfg.MaxAPIKeysPerUser)
	authMiddleware := auth.NewAuthMiddleware(jwtService, apiKeyService)

	// The usage gate, with Prometheus instrumentation when enabled
	var recorder usage.Recorder
	if cfg.EnableMetrics {
		recorder = metrics.NewGateRecorder(prometheus.DefaultRegisterer)
	}
	gate := usage.NewGate(counterRepo, overrideRepo, recorder)

	// Burst limiter over Redis, separate from the daily quota gate
	burstLimiter := ratelimit.NewLimiter(redisCache)

	// External tool adapters
	ffmpeg := media.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath)
	recognizer := recognize.NewClient(cfg.AudDAPIKey, cfg.AudDEndpoint)

	// Billing
	billingService := billing.NewService(userRepo, cfg.StripeWebhookSecret,
		billing.PriceTiersFromConfig(cfg.StripePriceBasic, cfg.StripePricePro, cfg.StripePriceEnterprise))

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Timing)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORSWithOrigins(cfg.CORSOrigins))
	r.Use(authMiddleware.OptionalAuth) // resolve identity for rate limiting without requiring it
	r.Use(middleware.RateLimit(burstLimiter))

	// Initialize handlers
	healthHandler := handlers.NewHealthChecker(db, redisCache)
	authHandler := handlers.NewAuthHandler(userRepo, jwtService, apiKeyService)
	usageHandler := handlers.NewUsageHandler(gate, userRepo, redisCache, cfg.CacheTTL)
	toolsHandler := handlers.NewToolsHandler(gate, userRepo, ffmpeg, recognizer, cfg.UploadDir, cfg.UploadTimeout)
	billingHandler := handlers.NewBillingHandler(billingService)
	adminHandler := handlers.NewAdminHandler(userRepo, overrideRepo, counterRepo)

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", handlers.LivenessProbe)
	r.Get("/health/ready", healthHandler.ReadinessProbe)

	if cfg.EnableMetrics {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	// Stripe webhook; authenticated by signature, not by session
	r.Post("/webhooks/stripe", billingHandler.StripeWebhook)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.RefreshToken)

		// Public tier catalog
		r.Get("/tiers", usageHandler.GetTierInfo)

		// Protected user endpoints
		r.Route("/user", func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Get("/me", authHandler.GetCurrentUser)
			r.Get("/usage", usageHandler.GetUsage)
			r.Post("/api-keys", authHandler.CreateAPIKey)
			r.Get("/api-keys", authHandler.ListAPIKeys)
			r.Delete("/api-keys/{keyID}", authHandler.RevokeAPIKey)
		})

		// Quota gate endpoints
		r.Route("/usage", func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/check", usageHandler.Check)
			r.Post("/increment", usageHandler.Increment)
		})

		// Operator tooling, mounted only when a token is configured
		if cfg.AdminToken != "" {
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminOnly(cfg.AdminToken))
				r.Get("/users/{userID}/limits", adminHandler.GetUserLimits)
				r.Put("/users/{userID}/limits", adminHandler.UpdateUserLimits)
				r.Get("/users/{userID}/usage", adminHandler.GetUserUsage)
			})
		}

		// Gated tool endpoints; each consumes one unit of quota on attempt
		r.Route("/tools", func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/probe", toolsHandler.Probe)
			r.Post("/convert", toolsHandler.Convert)
			r.Post("/compress", toolsHandler.Compress)
			r.Post("/enhance", toolsHandler.Enhance)
			r.Post("/metadata", toolsHandler.EditMetadata)
			r.Post("/identify", toolsHandler.Identify)
		})
	})

	return r
}
