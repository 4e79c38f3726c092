package middleware

import (
	"net/http"

	"vipra-store/internal/logger"

	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

const (
	CSRFCookieName = "csrftoken"
	CSRFFieldName  = "csrfmiddlewaretoken"
)

// CSRF requires a valid form token on every unsafe request. Pages render the
// token with csrf.TemplateField.
func CSRF(key []byte, secure bool) func(http.Handler) http.Handler {
	return csrf.Protect(key,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName(CSRFCookieName),
		csrf.FieldName(CSRFFieldName),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
	)
}

func csrfFailure(w http.ResponseWriter, r *http.Request) {
	logger.FromCtx(r.Context()).Warn("csrf check failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(csrf.FailureReason(r)),
	)
	http.Error(w, "Forbidden (CSRF token missing or incorrect.)", http.StatusForbidden)
}
