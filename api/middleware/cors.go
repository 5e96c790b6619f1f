package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/pcstore-storefront/api/responses"
)

// CORS applies the configured browser origin policy. The session id travels in a
// header so it must be both allowed and exposed.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", SessionHeader, requestIDHeader, IdempotencyHeader, "X-Requested-With"},
		ExposedHeaders:   []string{SessionHeader, requestIDHeader, responses.SessionExpiredHeader, "Retry-After", replayHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
