package misc

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gmbtravels/gmbservice/internal/apperr"
	"github.com/gmbtravels/gmbservice/internal/auth"
	"github.com/gmbtravels/gmbservice/internal/crud"
	"github.com/gmbtravels/gmbservice/internal/middleware"
	"github.com/gmbtravels/gmbservice/internal/telemetry/metrics"
	"github.com/gmbtravels/gmbservice/internal/telemetry/tracing"
	"github.com/gmbtravels/gmbservice/pkg"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const readinessTimeout = 3 * time.Second

type authenticator interface {
	Login(ctx context.Context, creds auth.Credentials) (auth.Token, error)
}

type documentCounter interface {
	Count(ctx context.Context) (int64, error)
}

type redisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

type Handler struct {
	authService    authenticator
	store          documentCounter
	redisClient    redisPinger
	metricsManager *metrics.Manager
	versionInfo    string
}

type LoginResponse struct {
	Status string `json:"status"`
	auth.Token
}

type MeResponse struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func NewHandler(
	authService authenticator,
	store documentCounter,
	redisClient *redis.Client,
	metricsManager *metrics.Manager,
	versionInfo string,
) *Handler {
	handler := &Handler{
		authService:    authService,
		store:          store,
		metricsManager: metricsManager,
		versionInfo:    versionInfo,
	}
	// redis is optional, only checked for readiness when configured
	if redisClient != nil {
		handler.redisClient = redisClient
	}
	return handler
}

// SetupRoutes registers the health, version and auth routes on apiRouter.
// The login route is rate limited when rateLimiter is set.
func (handler *Handler) SetupRoutes(
	apiRouter *mux.Router,
	authCheck func(next http.Handler) http.Handler,
	rateLimiter middleware.RequestRateLimiter,
	loginAttemptsPerMin int,
) {
	apiRouter.HandleFunc("/health", handler.handleHealth).Methods("GET").Name("health")
	apiRouter.HandleFunc("/ready", handler.handleReady).Methods("GET").Name("ready")
	apiRouter.HandleFunc("/version", handler.handleGetVersionInfo).Methods("GET").Name("version")

	var login http.Handler = http.HandlerFunc(handler.handleLogin)
	if rateLimiter != nil {
		// brute force protection
		login = middleware.RateLimit(rateLimiter, handler.metricsManager, "login", loginAttemptsPerMin)(login)
	}
	apiRouter.Handle("/auth/login", login).Methods("POST").Name("login")

	apiRouter.Handle("/auth/me", authCheck(http.HandlerFunc(handler.handleMe))).Methods("GET").Name("me")
}

func (handler *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (handler *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "miscHandler.ready")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	resp := ReadinessResponse{
		Status: "ok",
		Checks: map[string]string{},
	}

	if _, err := handler.store.Count(ctx); err != nil {
		log.Warnf("readiness: store check failed: %s", err)
		resp.Status = "unavailable"
		resp.Checks["store"] = "unavailable"
	} else {
		resp.Checks["store"] = "ok"
	}

	if handler.redisClient != nil {
		if err := handler.redisClient.Ping(ctx).Err(); err != nil {
			log.Warnf("readiness: redis check failed: %s", err)
			resp.Status = "unavailable"
			resp.Checks["redis"] = "unavailable"
		} else {
			resp.Checks["redis"] = "ok"
		}
	}

	span.SetAttributes(attribute.String("readiness", resp.Status))

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	pkg.WriteJSON(w, status, resp)
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "miscHandler.login")
	var err error
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var creds auth.Credentials
	if err = crud.DecodeAndValidateLenient(w, r, &creds); err != nil {
		handler.countLogin("malformed")
		apperr.WriteHTTP(w, err)
		return
	}

	token, err := handler.authService.Login(ctx, creds)
	if err != nil {
		if errors.Is(err, apperr.ErrAuthentication) {
			handler.countLogin("failure")
			log.Tracef("failed login attempt for [%s] from [%s]", creds.Username, pkg.ClientIP(r))
		} else {
			handler.countLogin("error")
		}
		apperr.WriteHTTP(w, err)
		return
	}

	handler.countLogin("success")
	log.Debugf("admin [%s] logged in", creds.Username)
	pkg.WriteJSON(w, http.StatusOK, LoginResponse{
		Status: "success",
		Token:  token,
	})
}

func (handler *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		apperr.WriteHTTP(w, apperr.Authentication("missing token"))
		return
	}

	me := MeResponse{
		Username: claims.Subject,
		Role:     claims.Role,
	}
	if claims.ExpiresAt != nil {
		me.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}

	pkg.WriteSuccess(w, http.StatusOK, me)
}

func (handler *Handler) handleGetVersionInfo(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, handler.versionInfo)
}

func (handler *Handler) countLogin(result string) {
	if handler.metricsManager != nil {
		handler.metricsManager.CounterLogins.WithLabelValues(result).Inc()
	}
}
