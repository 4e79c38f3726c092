package middleware

import (
	"context"
	"net/http"
	"time"

	"vipra-store/internal/logger"

	"go.uber.org/zap"
)

// responseRecorder lets us capture HTTP status codes
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

type requestMetaKey struct{}

// requestMeta is filled in by inner middleware so the access log can report it.
type requestMeta struct {
	userID uint
}

func noteUser(ctx context.Context, userID uint) {
	if meta, ok := ctx.Value(requestMetaKey{}).(*requestMeta); ok {
		meta.userID = userID
	}
}

// LoggingMiddleware logs every HTTP request once it has been served.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		meta := &requestMeta{}
		r = r.WithContext(context.WithValue(r.Context(), requestMetaKey{}, meta))

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_ip", r.RemoteAddr),
		}
		if meta.userID != 0 {
			fields = append(fields, zap.Uint("user_id", meta.userID))
		}

		logger.FromCtx(r.Context()).Info("HTTP Request", fields...)
	})
}
