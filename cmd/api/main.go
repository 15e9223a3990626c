package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fleetpark/internal/config"
	"fleetpark/internal/db"
	"fleetpark/internal/domain"
	apihttp "fleetpark/internal/http"
	"fleetpark/internal/repository"
	"fleetpark/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db unreachable", zap.Error(err))
	}

	tokenStore, storeKind, closeStore := refreshTokenStore(ctx, cfg, logger)
	defer closeStore()

	accessTTL := time.Duration(cfg.JWTAccessTTLMinutes) * time.Minute
	refreshTTL := time.Duration(cfg.JWTRefreshTTLMinutes) * time.Minute
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured, every login will fail")
	}
	jwtSvc := service.NewJWTServiceWithStore(cfg.JWTSecret, accessTTL, refreshTTL, tokenStore)

	userSvc := service.NewUserService(logger, repository.NewPgUserRepository(pool))
	router := apihttp.NewRouter(logger, apihttp.NewUserHandler(logger, userSvc, jwtSvc), jwtSvc)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	roles := make([]string, 0, len(domain.Roles()))
	for _, r := range domain.Roles() {
		roles = append(roles, r.String())
	}
	logger.Info("identity api starting",
		zap.String("port", cfg.HTTPPort),
		zap.Duration("access_ttl", accessTTL),
		zap.Duration("refresh_ttl", refreshTTL),
		zap.String("refresh_store", storeKind),
		zap.Strings("roles", roles),
	)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("identity api stopped")
}

// refreshTokenStore elige Redis si esta configurado y responde; si no, memoria.
func refreshTokenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.RefreshTokenStore, string, func()) {
	if cfg.RedisAddr == "" {
		return service.NewMemoryRefreshTokenStore(), "memory", func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed, refresh tokens kept in memory", zap.Error(err))
		_ = client.Close()
		return service.NewMemoryRefreshTokenStore(), "memory", func() {}
	}
	return service.NewRedisRefreshTokenStore(client), "redis", func() { _ = client.Close() }
}
