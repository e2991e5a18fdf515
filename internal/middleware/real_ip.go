package middleware

import (
	"net/http"

	"github.com/gmbtravels/gmbservice/pkg"
)

// RealIP resolves the client address once per request, honoring proxy headers from trusted proxies only.
// Later pkg.ClientIP calls (logging, rate limiting) read the resolved value.
func RealIP(proxies *pkg.TrustedProxies) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := pkg.WithClientIP(r.Context(), proxies.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
