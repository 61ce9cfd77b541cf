package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/vkuzn/auth-service/internal/core/domain"
	"github.com/vkuzn/auth-service/internal/core/port"
	"github.com/vkuzn/auth-service/internal/infra/config"
	"github.com/vkuzn/auth-service/internal/infra/database"
	kafkainfra "github.com/vkuzn/auth-service/internal/infra/kafka"
	"github.com/vkuzn/auth-service/internal/infra/logger"
	redisinfra "github.com/vkuzn/auth-service/internal/infra/redis"
	"github.com/vkuzn/auth-service/internal/infra/security"
	memoryrepo "github.com/vkuzn/auth-service/internal/repository/memory"
	postgresrepo "github.com/vkuzn/auth-service/internal/repository/postgres"
	redisrepo "github.com/vkuzn/auth-service/internal/repository/redis"
	"github.com/vkuzn/auth-service/internal/transport/http/middleware"
	"github.com/vkuzn/auth-service/internal/transport/http/routes"
	"github.com/vkuzn/auth-service/internal/usecase"
)

// Application bundles the wired service and its owned resources.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	tokens port.TokenRepository
}

// New wires configuration into a runnable application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	argonCfg := security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}
	if err := security.ConfigureArgon2(argonCfg); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	issuer, err := security.NewTokenIssuer(security.TokenIssuerConfig{
		Issuer:        cfg.JWT.Issuer,
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	var (
		users    port.UserRepository
		tokens   port.TokenRepository
		pool     *pgxpool.Pool
		dbCheck  routes.DatabaseChecker
		memoryDB bool
	)

	switch strings.ToLower(cfg.Storage.Driver) {
	case "", "postgres":
		pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		repos := postgresrepo.NewRepositories(pool)
		users = repos.Users
		tokens = repos.Tokens
		dbCheck = pool
	case "memory":
		store := memoryrepo.NewStore()
		users = store
		tokens = store
		memoryDB = true
		log.Warn("using in-memory storage, data does not survive restarts")
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	var (
		redisClient *redisinfra.Client
		limiter     port.RateLimiter
		cacheCheck  routes.CacheChecker
	)
	redisClient, err = redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		if !memoryDB {
			if pool != nil {
				pool.Close()
			}
			return nil, fmt.Errorf("init redis: %w", err)
		}
		log.Warn("redis unavailable, login rate limiting disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		limiter, err = redisrepo.NewSlidingWindowLimiter(redisClient.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix:   "auth:rate-limit:login",
			Window:      cfg.RateLimit.LoginWindow,
			MaxAttempts: cfg.RateLimit.LoginMaxAttempts,
		})
		if err != nil {
			return nil, fmt.Errorf("init rate limiter: %w", err)
		}
		cacheCheck = redisClient
	}

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	policy := domain.LockoutPolicy{
		MaxAttempts:     cfg.Lockout.MaxAttempts,
		LockoutDuration: cfg.Lockout.LockoutDuration,
	}

	authService, err := usecase.NewAuthService(users, tokens, issuer, policy, eventPublisher, log)
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	passwordValidator := security.DefaultPasswordValidator()
	if score := cfg.Password.MinStrengthScore; score > 0 {
		rules := append(security.DefaultPasswordRules(), security.RequirePasswordStrengthRule(score))
		passwordValidator = security.NewPasswordValidator(rules...)
		log.Info("password strength gate enabled", zap.Int("min_score", score))
	}

	registrationService, err := usecase.NewRegistrationService(users, passwordValidator, eventPublisher, log)
	if err != nil {
		return nil, fmt.Errorf("init registration service: %w", err)
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config: cfg,
		Logger: log,
		Services: routes.ServiceSet{
			Auth:         authService,
			Registration: registrationService,
		},
		Csrf:     security.NewCsrfProtector(cfg.CSRF.SecretLength),
		Limiter:  limiter,
		Metrics:  metrics,
		Database: dbCheck,
		Cache:    cacheCheck,
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		tokens: tokens,
	}, nil
}

// Run serves HTTP until the context is canceled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	go a.runTokenJanitor(ctx)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// runTokenJanitor periodically deletes refresh token records past their
// expiry. Revoked-but-unexpired records stay until expiry so replay attempts
// keep hitting an explicit revoked row.
func (a *Application) runTokenJanitor(ctx context.Context) {
	if a.tokens == nil {
		return
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := a.tokens.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				a.logger.Warn("delete expired refresh tokens", zap.Error(err))
				continue
			}
			if deleted > 0 {
				a.logger.Info("deleted expired refresh tokens", zap.Int("count", deleted))
			}
		}
	}
}
