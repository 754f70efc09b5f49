package auth

import (
	"context"
	"errors"
	"net/http"

	"ms-events/internal/logger"
	"ms-events/internal/utils"
)

type contextKey string

const userIDKey contextKey = "user_id"

var ErrUnauthenticated = errors.New("authentication credentials were not provided or are invalid")

// TokenVerifier resolves a raw bearer token to the id of the calling user.
type TokenVerifier interface {
	VerifyAccess(ctx context.Context, raw string) (string, error)
}

// Chain accepts a token if any of its verifiers does, trying them in order.
type Chain []TokenVerifier

func (c Chain) VerifyAccess(ctx context.Context, raw string) (string, error) {
	lastErr := ErrUnauthenticated
	for _, v := range c {
		userID, err := v.VerifyAccess(ctx, raw)
		if err == nil {
			return userID, nil
		}
		lastErr = err
	}
	return "", lastErr
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's id in the request context.
func Middleware(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse(err.Error(), "not_authenticated"))
				return
			}

			userID, err := verifier.VerifyAccess(r.Context(), rawToken)
			if err != nil || userID == "" {
				log.LogSecurity("AUTH", "rejected token on "+r.Method+" "+r.URL.Path)
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Given token not valid for any token type", "token_not_valid"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// UserID extracts the authenticated user id placed by Middleware.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
