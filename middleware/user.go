package middleware

import (
	"context"
	"errors"
)

const (
	DEFAULT_USER_ID_CONTEXT_KEY UserIdContextKeyType    = "user_id"
	AUTH_TOKEN_CONTEXT_KEY      AuthTokenContextKeyType = "auth_token"
)

var (
	ErrNoUserInContext      = errors.New("request has no authenticated user")
	ErrNoAuthTokenInContext = errors.New("request has no session token")
)

func userKey(key ...string) UserIdContextKeyType {
	if len(key) > 0 && key[0] != "" {
		return UserIdContextKeyType(key[0])
	}
	return DEFAULT_USER_ID_CONTEXT_KEY
}

// GetUserFromContext returns the owner id AuthMiddleware stored for this request.
func GetUserFromContext(ctx context.Context, key ...string) (uint, error) {
	userID, ok := ctx.Value(userKey(key...)).(uint)
	if !ok || userID == 0 {
		return 0, ErrNoUserInContext
	}

	return userID, nil
}

func GetAuthTokenFromContext(ctx context.Context) (string, error) {
	token, ok := ctx.Value(AUTH_TOKEN_CONTEXT_KEY).(string)
	if !ok || token == "" {
		return "", ErrNoAuthTokenInContext
	}

	return token, nil
}
