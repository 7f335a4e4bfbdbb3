package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"LoginGuard/internal/auth"
	"LoginGuard/internal/config"
	"LoginGuard/internal/domain"
	"LoginGuard/internal/httpapi"
	"LoginGuard/internal/kvstore"
	"LoginGuard/internal/metrics"
	"LoginGuard/internal/notifications"
	"LoginGuard/internal/service"
	"LoginGuard/internal/store/postgres"
	"LoginGuard/internal/throttle"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var (
		authSvc     *service.AuthService
		settingsSvc *service.SettingsService
		dbPing      func(context.Context) error
		pgPool      *pgxpool.Pool
		err         error
	)

	if cfg.DBDSN != "" {
		pgPool, err = postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("db open: %w", err)
		}
		defer pgPool.Close()

		if err := postgres.EnsureSchema(ctx, pgPool, cfg.SchemaPath); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.AttemptStore == config.AttemptStoreRedis {
		redisClient, err = kvstore.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis open: %w", err)
		}
		defer redisClient.Close()
	}

	attempts, err := openAttemptStore(ctx, cfg, logger, pgPool, redisClient)
	if err != nil {
		return err
	}

	alerts, err := newLockoutAlerter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if pgPool != nil {
		users := postgres.NewUsersStore(pgPool)

		if err := bootstrapAdminUser(ctx, logger, users, cfg.AdminBootstrapEmail, cfg.AdminBootstrapUsername, cfg.AdminBootstrapPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}

		settingsSvc = &service.SettingsService{
			Store:    postgres.NewSettingsStore(pgPool),
			Attempts: attempts,
			Logger:   logger,
		}
		authSvc = &service.AuthService{
			Users:      users,
			Sessions:   postgres.NewSessionsStore(pgPool),
			SessionTTL: cfg.SessionTTL,
			Settings:   settingsSvc,
			Attempts:   attempts,
			Alerts:     alerts,
			Metrics:    m,
			Logger:     logger,
			Now:        time.Now,
		}
		dbPing = pgPool.Ping
	} else {
		logger.Warn("APP_DB_DSN not set: auth and admin endpoints disabled")
	}

	var flood *httpapi.FloodLimiter
	if redisClient != nil {
		flood, err = httpapi.NewRedisFloodLimiter(cfg.LoginRate, redisClient)
	} else {
		flood, err = httpapi.NewFloodLimiter(cfg.LoginRate)
	}
	if err != nil {
		return fmt.Errorf("APP_LOGIN_RATE: %w", err)
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.NewRouter(httpapi.RouterOpts{
			Logger:       logger,
			IsProd:       cfg.IsProd(),
			DBPing:       dbPing,
			Auth:         authSvc,
			Settings:     settingsSvc,
			Metrics:      m,
			LoginFlood:   flood,
			CookieCodec:  auth.NewCookieCodec([]byte(cfg.CookieSecret)),
			CookieSecure: cfg.CookieSecure(),
			SessionTTL:   cfg.SessionTTL,
			AdminEmails:  cfg.AdminEmails,
			TrustProxy:   cfg.TrustProxy,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr, "attempt_store", cfg.AttemptStore)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// openAttemptStore picks the expiring store for login attempt records and
// starts a janitor for stores without native expiry.
func openAttemptStore(ctx context.Context, cfg config.Config, logger *slog.Logger, pool *pgxpool.Pool, redisClient *redis.Client) (throttle.Store, error) {
	switch cfg.AttemptStore {
	case config.AttemptStoreRedis:
		return kvstore.NewRedis(redisClient, kvstore.DefaultRedisPrefix), nil
	case config.AttemptStorePostgres:
		if pool == nil {
			return nil, errors.New("APP_ATTEMPT_STORE=postgres requires APP_DB_DSN")
		}
		store := postgres.NewTransientsStore(pool)
		go kvstore.RunJanitor(ctx, cfg.AttemptSweepInterval, logger, "postgres", store.DeleteExpired)
		return store, nil
	default:
		store := kvstore.NewMemory()
		go kvstore.RunJanitor(ctx, cfg.AttemptSweepInterval, logger, "memory", store.SweepExpired)
		return store, nil
	}
}

func newLockoutAlerter(ctx context.Context, cfg config.Config, logger *slog.Logger) (service.LockoutNotifier, error) {
	if len(cfg.LockoutAlertTokens) == 0 {
		return nil, nil
	}
	sender, err := notifications.NewFCMSender(ctx, cfg.FCMProjectID, cfg.FCMCredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("lockout alerts: %w", err)
	}
	logger.Info("lockout alerts enabled", "tokens", len(cfg.LockoutAlertTokens))
	return &notifications.LockoutAlerter{
		Sender: sender,
		Tokens: cfg.LockoutAlertTokens,
		Logger: logger,
	}, nil
}

func bootstrapAdminUser(ctx context.Context, logger *slog.Logger, users *postgres.UsersStore, email, username, password string) error {
	if password == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(password) < 12 {
		return errors.New("APP_ADMIN_BOOTSTRAP_PASSWORD: must be at least 12 characters")
	}
	if email == "" || username == "" {
		return errors.New("admin bootstrap: email and username are required")
	}

	_, err := users.GetUserByEmail(ctx, email)
	if err == nil {
		logger.Info("admin bootstrap: user already exists", "email", email)
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("admin bootstrap: lookup user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("admin bootstrap: hash password: %w", err)
	}

	_, err = users.CreateUser(ctx, email, username, hash)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) || errors.Is(err, domain.ErrUsernameTaken) {
			logger.Info("admin bootstrap: user already exists", "email", email)
			return nil
		}
		return fmt.Errorf("admin bootstrap: create user: %w", err)
	}

	logger.Info("admin bootstrap: created admin user", "email", email)
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
