package middleware

import (
	"net/http"

	"vipra-store/internal/auth"
	"vipra-store/internal/logger"
	"vipra-store/internal/utils"

	"go.uber.org/zap"
)

type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// AuthMiddleware attaches the caller's identity when a valid session token is
// present. Requests without one continue anonymously.
func AuthMiddleware(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.Parse(tokenStr)
			if err != nil {
				logger.FromCtx(r.Context()).Debug("ignoring invalid session token", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			noteUser(r.Context(), claims.UserID)
			ctx := utils.SetUserContext(r.Context(), claims.UserID, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
