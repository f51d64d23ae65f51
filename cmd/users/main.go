package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/easyhotel/easyhotel/internal/app"
	"github.com/easyhotel/easyhotel/internal/auth"
	"github.com/easyhotel/easyhotel/internal/observability"
	"github.com/easyhotel/easyhotel/internal/platform/cache"
	"github.com/easyhotel/easyhotel/internal/platform/db"
	"github.com/easyhotel/easyhotel/internal/platform/httpx"
	"github.com/easyhotel/easyhotel/internal/servicekeys"
	"github.com/easyhotel/easyhotel/internal/svcclient"
	"github.com/easyhotel/easyhotel/internal/users"
)

const serviceName = "users-service"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err == nil {
		err = cfg.ValidateSecrets()
	}
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("service", serviceName))
	metrics := observability.NewMetrics()

	pool, err := db.New(ctx, db.Options{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	repo := users.NewRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		logger.Error("migrate users schema", slog.Any("error", err))
		os.Exit(1)
	}

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisOptions()); err != nil {
		logger.Warn("redis unavailable, user cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}
	store := users.NewCachedStore(repo, redisClient, cfg.UserCacheTTL, logger)

	tokens, err := auth.NewTokenAuthority(auth.TokenConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		AccessTTL: cfg.JWTAccessTTL,
	})
	if err != nil {
		logger.Error("init token authority", slog.Any("error", err))
		os.Exit(1)
	}
	guard := auth.NewGuard(tokens, logger)

	registry, err := servicekeys.NewRegistry(servicekeys.DefaultServices(cfg.ServiceKeys()))
	if err != nil {
		logger.Error("init service registry", slog.Any("error", err))
		os.Exit(1)
	}
	if registry.Len() == 0 {
		logger.Warn("no service api keys configured, /service routes will reject every caller")
	}

	peersCfg := cfg.PeersConfig()
	peersCfg.Logger = logger
	peersCfg.Recorder = metrics
	peers, err := svcclient.NewPeers(peersCfg)
	if err != nil {
		logger.Error("init peer clients", slog.Any("error", err))
		os.Exit(1)
	}

	validate := httpx.NewValidator()
	users.RegisterValidations(validate)

	userService := users.NewService(store, tokens, logger)
	userHandler := users.NewHandler(userService, guard, validate, logger)
	serviceHandler := users.NewServiceHandler(userService, servicekeys.Middleware{Registry: registry, Logger: logger}, peers, validate, cfg.AppEnv, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		ServiceName: serviceName,
		Metrics:     metrics,
		Handlers:    []app.RouteMounter{userHandler, serviceHandler},
		Endpoints: map[string]string{
			"auth":    "/auth",
			"users":   "/users",
			"service": "/service",
			"health":  "/health",
			"metrics": "/metrics",
		},
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
