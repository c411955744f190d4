package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/middleware"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/logger"
)

// RouterConfig holds HTTP surface settings.
type RouterConfig struct {
	JWTSecret           string
	AllowedOrigins      []string
	IPRateLimitRequests int
	IPRateLimitWindow   time.Duration
}

// NewRouter wires the gateway endpoints.
func NewRouter(log *logger.Logger, cfg RouterConfig, health *HealthHandler, chat *ChatHandler, usage *UsageHandler) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.IPRateLimitRequests > 0 {
			r.Use(middleware.IPRateLimit(cfg.IPRateLimitRequests, cfg.IPRateLimitWindow))
		}
		r.Use(middleware.Auth(cfg.JWTSecret))

		r.Post("/chat", chat.Chat)
		r.Get("/usage", usage.Get)
	})

	return r
}
