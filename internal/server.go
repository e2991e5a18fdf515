package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gmbtravels/gmbservice/internal/auth"
	"github.com/gmbtravels/gmbservice/internal/blogs"
	"github.com/gmbtravels/gmbservice/internal/config"
	"github.com/gmbtravels/gmbservice/internal/docstore"
	"github.com/gmbtravels/gmbservice/internal/middleware"
	"github.com/gmbtravels/gmbservice/internal/misc"
	"github.com/gmbtravels/gmbservice/internal/sitesettings"
	"github.com/gmbtravels/gmbservice/internal/team"
	"github.com/gmbtravels/gmbservice/internal/telemetry/metrics"
	"github.com/gmbtravels/gmbservice/internal/telemetry/tracing"
	"github.com/gmbtravels/gmbservice/internal/tourpackages"
	"github.com/gmbtravels/gmbservice/internal/vehicles"
	"github.com/gmbtravels/gmbservice/pkg"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/multierr"
)

const serviceName = "gmb-backend"

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config  *config.Config
	backend docstore.Backend

	admins       *docstore.Collection[auth.Admin]
	team         *docstore.Collection[team.Member]
	vehicles     *docstore.Collection[vehicles.Vehicle]
	blogs        *docstore.Collection[blogs.Blog]
	packages     *docstore.Collection[tourpackages.TourPackage]
	siteSettings *docstore.Collection[sitesettings.Settings]

	redisClient    *redis.Client
	authService    *auth.Service
	trustedProxies *pkg.TrustedProxies

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config      *config.Config
	VersionInfo string
	// Backend, when set, is used instead of opening Config.DatabaseURI.
	Backend docstore.Backend
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	trustedProxies, err := pkg.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	backend := params.Backend
	if backend == nil {
		backend, err = docstore.Open(ctx, docstore.OpenParams{
			URI:            cfg.DatabaseURI,
			Database:       cfg.DatabaseName,
			TracingEnabled: cfg.Env.HoneycombEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("open document store: %w", err)
		}
	}

	var collectors []prometheus.Collector
	if mc, ok := backend.(docstore.MetricsCollector); ok {
		collectors = append(collectors, mc.Collector())
	}
	promRegistry := metrics.SetupPrometheus(collectors...)
	metricsManager := metrics.NewManager("gmb", "backend", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	var rdb *redis.Client
	if cfg.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: cfg.Env.RedisPassword,
			DB:       0, // use default DB
		})

		rdbStatus := rdb.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}
	} else {
		log.Warnln("redis not configured, login rate limiting disabled")
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(cfg.Env.HoneycombEnabled, serviceName, rdb)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:      cfg,
		versionInfo: params.VersionInfo,
		backend:     backend,

		admins:       docstore.NewCollection[auth.Admin](backend, auth.AdminsCollection),
		team:         docstore.NewCollection[team.Member](backend, team.Collection),
		vehicles:     docstore.NewCollection[vehicles.Vehicle](backend, vehicles.Collection),
		blogs:        docstore.NewCollection[blogs.Blog](backend, blogs.Collection),
		packages:     docstore.NewCollection[tourpackages.TourPackage](backend, tourpackages.Collection),
		siteSettings: docstore.NewCollection[sitesettings.Settings](backend, sitesettings.Collection),

		redisClient:    rdb,
		trustedProxies: trustedProxies,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}

	previousKeys, err := auth.ParsePreviousKeys(cfg.Env.PreviousSecretKeys)
	if err != nil {
		return nil, fmt.Errorf("previous secret keys: %w", err)
	}
	keyring, err := auth.NewKeyring(cfg.Env.SecretKeyID, cfg.Env.SecretKey, previousKeys)
	if err != nil {
		return nil, fmt.Errorf("new keyring: %w", err)
	}
	s.authService = auth.NewService(s.admins, keyring, cfg.TokenTTL())

	if _, err := auth.SeedAdmin(ctx, s.admins, auth.AdminConfig{
		Username:     cfg.Env.AdminUsername,
		Password:     cfg.Env.AdminPassword,
		PasswordHash: cfg.Env.AdminPasswordHash,
		Role:         cfg.Env.AdminRole,
		BcryptCost:   cfg.BcryptCost,
	}); err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	if _, err := sitesettings.Seed(ctx, s.siteSettings, sitesettings.Defaults()); err != nil {
		return nil, fmt.Errorf("seed site settings: %w", err)
	}

	return s, nil
}

// Router returns the API handler, CORS included.
func (s *Server) Router() http.Handler {
	return s.routerSetup()
}

func (s *Server) routerSetup() http.Handler {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.authService)

	apiRouter := r.PathPrefix("/api").Subrouter()
	adminRouter := apiRouter.PathPrefix("/admin").Subrouter()
	adminRouter.Use(authMiddleware.AuthCheck())

	var rateLimiter middleware.RequestRateLimiter
	if s.redisClient != nil && s.config.LoginAttemptsPerMin > 0 {
		rateLimiter = redis_rate.NewLimiter(s.redisClient)
	}
	miscHandler := misc.NewHandler(s.authService, s.admins, s.redisClient, s.metricsManager, s.versionInfo)
	miscHandler.SetupRoutes(apiRouter, authMiddleware.AuthCheck(), rateLimiter, s.config.LoginAttemptsPerMin)

	team.NewHandler(s.team, s.metricsManager).SetupRoutes(apiRouter, adminRouter)
	vehicles.NewHandler(s.vehicles, s.metricsManager).SetupRoutes(apiRouter, adminRouter)
	blogs.NewHandler(s.blogs, s.metricsManager).SetupRoutes(apiRouter, adminRouter)
	tourpackages.NewHandler(s.packages, s.metricsManager).SetupRoutes(apiRouter, adminRouter)
	sitesettings.NewHandler(s.siteSettings, s.metricsManager).SetupRoutes(apiRouter, adminRouter)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.RealIP(s.trustedProxies))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.DrainAndCloseRequest())

	// CORS wraps the router so preflight requests are answered before route matching
	return middleware.Cors(s.config.AllowedOrigins)(r)
}

func (s *Server) Serve(host string, port int) {
	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:           s.routerSetup(),
		Addr:              ipAndPort,
		WriteTimeout:      time.Minute,
		ReadTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		ConnState:         s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.InstrumentMetricHandler(
		s.promRegistry,
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
	))
	metricsAddr := net.JoinHostPort(s.config.MetricsHost, strconv.Itoa(s.config.MetricsPort))
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

// GracefulShutdown stops the servers first, then releases redis, the store and the tracer.
func (s *Server) GracefulShutdown() error {
	log.Debug("graceful shutdown initiated ...")
	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	var err error
	if s.httpServer != nil {
		if shutdownErr := s.httpServer.Shutdown(ctx); shutdownErr != nil {
			err = multierr.Append(err, fmt.Errorf("shutdown http server: %w", shutdownErr))
		}
		log.Warnln("server shut down")
	}
	if s.metricsHttpServer != nil {
		if shutdownErr := s.metricsHttpServer.Shutdown(ctx); shutdownErr != nil {
			err = multierr.Append(err, fmt.Errorf("shutdown metrics http server: %w", shutdownErr))
		}
		log.Warnln("metrics server shut down")
	}

	if s.redisClient != nil {
		if closeErr := s.redisClient.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("close redis client: %w", closeErr))
		}
	}

	log.Debugln("closing document store ...")
	if closeErr := s.backend.Close(ctx); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("close document store: %w", closeErr))
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	return err
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
