package middleware

import (
	"net/http"
	"time"

	"github.com/rs/cors"
)

// CORS allows browser clients from origins to call the API with bearer tokens.
// Cookies are never used, so credentials stay disabled and "*" is safe.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(corsOptions(origins)).Handler
}

func corsOptions(origins []string) cors.Options {
	allowed := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			allowed = []string{"*"}
			break
		}
		allowed = append(allowed, origin)
	}
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}

	return cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		// Location points at a created user; Retry-After accompanies 429.
		ExposedHeaders: []string{"Location", "Retry-After", requestIDHeader},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}
}
