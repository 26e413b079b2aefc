package middleware

import (
	"net/http"

	"github.com/rs/cors"
	"github.com/samber/lo"
)

// CorsMiddleware lets the web client call the API with its identity cookie.
// An empty origin list accepts any origin.
func CorsMiddleware(allowedOrigins []string) func(h http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodHead, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           600,
	}

	if len(allowedOrigins) == 0 {
		opts.AllowOriginFunc = func(origin string) bool {
			return true
		}
	} else {
		opts.AllowOriginFunc = func(origin string) bool {
			return lo.Contains(allowedOrigins, origin)
		}
	}

	return cors.New(opts).Handler
}
