package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gmbtravels/gmbservice/internal/apperr"
	"github.com/gmbtravels/gmbservice/internal/auth"
	"github.com/gmbtravels/gmbservice/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type tokenVerifier interface {
	Verify(tokenString string) (*auth.Claims, error)
}

type AuthMiddlewareHandler struct {
	verifier tokenVerifier
}

func NewAuthMiddlewareHandler(verifier tokenVerifier) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		verifier: verifier,
	}
}

// AuthCheck rejects requests without a valid bearer token before the wrapped handler runs,
// and attaches the token claims to the request context otherwise.
func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			token, ok := BearerToken(r)
			if !ok {
				log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
				span.SetStatus(codes.Error, "missing-auth-token")
				apperr.WriteHTTP(w, apperr.Authentication("missing bearer token"))
				return
			}

			claims, err := h.verifier.Verify(token)
			if err != nil {
				log.Tracef("[invalid token] [auth middleware] unauthorized => %s: %s", r.URL.Path, err)
				span.SetStatus(codes.Error, "invalid-token")
				span.RecordError(err)
				apperr.WriteHTTP(w, err)
				return
			}

			span.SetAttributes(
				attribute.String("subject", claims.Subject),
				attribute.String("role", claims.Role),
			)
			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(ctx, claims)))
		})
	}
}

// BearerToken extracts the token from the "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireRole lets through only requests whose token role is one of roles. Must run after AuthCheck.
func RequireRole(roles ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				apperr.WriteHTTP(w, apperr.Authentication("missing bearer token"))
				return
			}

			if !slices.Contains(roles, claims.Role) {
				log.Debugf("[role check] [%s] with role [%s] denied => %s %s", claims.Subject, claims.Role, r.Method, r.URL.Path)
				apperr.WriteHTTP(w, apperr.Authorization("role "+claims.Role+" may not perform this action"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
