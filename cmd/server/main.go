package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"kasirpos/backend/internal/cache"
	"kasirpos/backend/internal/config"
	"kasirpos/backend/internal/httpapi"
	"kasirpos/backend/internal/service"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/store/memory"
	mongostore "kasirpos/backend/internal/store/mongo"
	pgstore "kasirpos/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	lg, err := newLogger(cfg)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, lg, cfg); err != nil {
		lg.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.LogDevelopment {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// run wires the store, cache, service and HTTP API, serves until ctx is
// cancelled and then drains in-flight requests.
func run(ctx context.Context, lg *zap.Logger, cfg config.Config) error {
	if err := validateSecurityConfig(cfg); err != nil {
		return errors.Wrap(err, "invalid security configuration")
	}
	if cfg.AuthSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		cfg.AuthSecret = secret
		lg.Warn("POS_AUTH_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
	}

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	repo, closers, err := openRepository(startCtx, lg, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, closeFn := range closers {
			if err := closeFn(closeCtx); err != nil {
				lg.Warn("close error", zap.Error(err))
			}
		}
	}()

	settingsCache := cache.SettingsCache(cache.NoopSettingsCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSettingsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(startCtx); err != nil {
			lg.Warn("redis unavailable, using noop settings cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = redisCache.Close()
		} else {
			settingsCache = redisCache
			closers = append(closers, func(context.Context) error { return redisCache.Close() })
			lg.Info("settings cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		lg.Info("settings cache: noop")
	}

	svc := service.New(repo, service.Options{
		Logger:              lg,
		SettingsCache:       settingsCache,
		SettingsCacheTTL:    cfg.SettingsCacheTTL,
		DefaultTaxRate:      cfg.DefaultTaxRate,
		DefaultDiscountRate: cfg.DefaultDiscountRate,
		Location:            cfg.Location(),
	})
	if cfg.SuperAdminEmail != "" {
		if err := svc.EnsureSuperAdmin(startCtx, cfg.SuperAdminEmail, cfg.SuperAdminPassword); err != nil {
			return errors.Wrap(err, "bootstrap superadmin")
		}
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, lg)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()

		lg.Info("shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("shutdown error", zap.Error(err))
		}
	}()

	lg.Info("POS backend listening", zap.String("addr", cfg.Address()), zap.String("timezone", cfg.Location().String()))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	lg.Info("server stopped")
	return nil
}

// openRepository picks MongoDB, then PostgreSQL, then the seeded in-memory
// store. A configured backend that cannot be reached is fatal.
func openRepository(ctx context.Context, lg *zap.Logger, cfg config.Config) (store.Repository, []func(context.Context) error, error) {
	switch {
	case cfg.MongoURI != "":
		mg, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, errors.Wrap(err, "mongodb unavailable and POS_MONGO_URI is set; refusing to start with in-memory fallback")
		}
		lg.Info("repository: mongodb", zap.String("database", cfg.MongoDatabase))
		return mg, []func(context.Context) error{mg.Close}, nil

	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, errors.Wrap(err, "migrate postgres")
		}
		lg.Info("repository: postgres")
		return pg, []func(context.Context) error{func(context.Context) error { return pg.Close() }}, nil

	default:
		lg.Info("repository: in-memory (seeded demo data)")
		return memory.NewSeeded(lg), nil, nil
	}
}

// validateSecurityConfig requires a strong token secret whenever data is
// persisted. The in-memory demo may run without one.
func validateSecurityConfig(cfg config.Config) error {
	persistent := cfg.MongoURI != "" || cfg.DatabaseURL != ""
	if cfg.AuthSecret == "" && !persistent {
		return nil
	}
	if len(cfg.AuthSecret) < 32 {
		return errors.New("POS_AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.SuperAdminEmail != "" && len(cfg.SuperAdminPassword) < 8 {
		return errors.New("POS_SUPERADMIN_PASSWORD must be at least 8 characters")
	}
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generate auth secret")
	}
	return hex.EncodeToString(buf), nil
}
