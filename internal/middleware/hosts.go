package middleware

import (
	"net"
	"net/http"
	"strings"

	"vipra-store/internal/logger"

	"go.uber.org/zap"
)

// AllowedHosts rejects requests whose Host header is not listed. A "*" entry
// allows any host; debug mode always admits local hosts.
func AllowedHosts(hosts []string, debug bool) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(hosts)+2)
	allowAll := false
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if h == "*" {
			allowAll = true
		}
		allowed[h] = true
	}
	if debug {
		allowed["localhost"] = true
		allowed["127.0.0.1"] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowAll {
				next.ServeHTTP(w, r)
				return
			}

			host := stripPort(r.Host)
			if !allowed[host] {
				logger.FromCtx(r.Context()).Warn("rejected disallowed host", zap.String("host", r.Host))
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func stripPort(hostport string) string {
	host := strings.ToLower(hostport)
	if h, _, err := net.SplitHostPort(host); err == nil {
		return strings.Trim(h, "[]")
	}
	return strings.Trim(host, "[]")
}
