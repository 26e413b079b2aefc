package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.notebook.dev/notebook/core"
)

type AuthTokenContextKeyType string
type UserIdContextKeyType string

type FindAuthTokenFunc func(r *http.Request) string

// FindAuthToken prefers a bearer header and falls back to the identity cookie.
func FindAuthToken(r *http.Request, cookieName string) string {
	authHeader := ParseAuthTokenHeader(r.Header)

	if authHeader != "" {
		return authHeader
	}

	if cookie, err := r.Cookie(cookieName); cookie != nil && err == nil {
		return cookie.Value
	}

	return ""
}

func ParseAuthTokenHeader(headers http.Header) string {
	authHeader := headers.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	authHeader = strings.TrimPrefix(authHeader, "Bearer ")
	authHeader = strings.TrimPrefix(authHeader, "bearer ")

	return authHeader
}

type AuthMiddlewareOptions struct {
	Users          core.UserService
	FindToken      FindAuthTokenFunc
	AuthContextKey string
	EmptyAllowed   bool
}

// AuthMiddleware resolves the session token to a user and stores the user id on the request context.
func AuthMiddleware(options AuthMiddlewareOptions) func(http.Handler) http.Handler {
	if options.AuthContextKey == "" {
		options.AuthContextKey = string(DEFAULT_USER_ID_CONTEXT_KEY)
	}

	if options.FindToken == nil {
		options.FindToken = func(r *http.Request) string {
			return FindAuthToken(r, core.AUTH_COOKIE_NAME)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authToken := options.FindToken(r)

			if authToken == "" {
				if !options.EmptyAllowed {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			user, err := options.Users.UserBySessionToken(authToken)
			if err != nil || user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIdContextKeyType(options.AuthContextKey), user.ID)
			ctx = context.WithValue(ctx, AUTH_TOKEN_CONTEXT_KEY, authToken)
			r = r.WithContext(ctx)

			next.ServeHTTP(w, r)
		})
	}
}
