package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/username/tradeanalytics/backend/src/logger"
	"github.com/username/tradeanalytics/backend/src/model"
	"github.com/username/tradeanalytics/backend/src/utils"
)

type contextKey string

const (
	userIDContextKey    contextKey = "userID"
	requestIDContextKey contextKey = "requestID"
)

// GetUserIDFromContext returns the authenticated user id placed by
// AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}

// ContextualLoggerMiddleware attaches a request-scoped logger carrying a
// generated request id.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		ctxLogger := logger.L.With(slog.String("requestID", requestID))

		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthMiddleware validates the bearer token and then re-checks that the
// user still exists and is not soft-deleted. The token is never the sole
// source of truth: a token issued before an account was deleted is
// rejected here even if its expiry has not passed.
func (h *AuthHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger := logger.FromContext(r.Context())

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			ctxLogger.Debug("missing or malformed Authorization header", "path", r.URL.Path)
			utils.SendAuthError(w, "Access token required")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			ctxLogger.Debug("token validation failed", "path", r.URL.Path, "error", err)
			utils.SendAuthError(w, "Invalid or expired token")
			return
		}

		if _, err := model.GetUserByID(h.db, claims.UserID); err != nil {
			ctxLogger.Warn("token references deleted or missing user", "userID", claims.UserID)
			utils.SendAuthError(w, "Account deleted or not found")
			return
		}

		ctxLogger = ctxLogger.With(slog.Int64("userID", claims.UserID))
		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, userIDContextKey, claims.UserID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
