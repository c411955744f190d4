package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the browser extension and dashboard origins to call the API
// and read the usage headers on streamed replies.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Correlation-ID"},
		ExposedHeaders:   []string{"X-Correlation-ID", "X-Usage-Minutes-Used", "X-Usage-Minutes-Limit", "X-Usage-Tier", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
