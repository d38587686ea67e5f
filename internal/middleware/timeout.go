package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"user-service/internal/model"
)

const defaultRequestTimeout = 30 * time.Second

// Timeout bounds the time a handler may take. A request that runs out of time
// gets a 503 carrying the usual JSON error envelope.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	body, _ := json.Marshal(model.ErrorResponse{
		Error: &model.APIError{Code: "REQUEST_TIMEOUT", Message: "request timed out"},
	})

	return func(next http.Handler) http.Handler {
		limited := http.TimeoutHandler(next, timeout, string(body))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Handlers that set their own Content-Type override this one.
			w.Header().Set("Content-Type", "application/json")
			limited.ServeHTTP(w, r)
		})
	}
}
