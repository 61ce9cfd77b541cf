package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vkuzn/auth-service/internal/core/port"
	"github.com/vkuzn/auth-service/internal/infra/config"
	"github.com/vkuzn/auth-service/internal/infra/security"
	"github.com/vkuzn/auth-service/internal/transport/http/handlers"
	"github.com/vkuzn/auth-service/internal/transport/http/middleware"
	"github.com/vkuzn/auth-service/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth         *usecase.AuthService
	Registration *usecase.RegistrationService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Services ServiceSet
	Csrf     *security.CsrfProtector
	Limiter  port.RateLimiter
	Metrics  *middleware.HTTPMetrics
	Database DatabaseChecker
	Cache    CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.CSRF(deps.Csrf, middleware.CSRFConfig{
		CookieName: deps.Config.CSRF.CookieName,
		HeaderName: deps.Config.CSRF.HeaderName,
	}))

	authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Csrf, handlers.CookieConfig{
		CSRFCookieName: deps.Config.CSRF.CookieName,
		Secure:         deps.Config.IsProduction(),
	})

	var loginMiddlewares []gin.HandlerFunc
	if deps.Limiter != nil {
		loginMiddlewares = append(loginMiddlewares, middleware.RateLimit(deps.Limiter, deps.Logger))
	}
	authHandler.RegisterRoutes(api, loginMiddlewares...)

	registrationHandler := handlers.NewRegistrationHandler(deps.Services.Registration)
	registrationHandler.RegisterRoutes(api)

	return r
}
