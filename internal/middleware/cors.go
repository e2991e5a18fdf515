package middleware

import (
	"net/http"

	"github.com/gmbtravels/gmbservice/internal/apperr"

	log "github.com/sirupsen/logrus"
)

const (
	corsAllowHeaders = "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization"
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
)

// Cors allows cross-origin calls from allowedOrigins only ("*" allows any origin).
// Requests without an Origin header (curl, smoke tests, server to server) are let through.
func Cors(allowedOrigins []string) func(next http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !allowAll && !allowed[origin] {
				log.Warnf("CORS: origin not allowed for path [%s] and origin [%s]", r.URL.Path, origin)
				apperr.WriteHTTP(w, apperr.Authorization("origin not allowed"))
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
			w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")

			// preflight
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
