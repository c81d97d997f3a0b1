package middleware

import (
	"net/http"

	"app/internal/logger"
)

// LoggerMiddleware logs every handled request with its method and full URI.
func LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		log := logger.New()
		log.Debug().
			Str("method", r.Method).
			Str("uri", r.URL.RequestURI()).
			Msg("Request handled")
	})
}
