package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"securedocs/internal/auth"
	"securedocs/internal/config"
	"securedocs/internal/cryptox"
	"securedocs/internal/handler"
	"securedocs/internal/health"
	"securedocs/internal/lockout"
	"securedocs/internal/logging"
	"securedocs/internal/metrics"
	"securedocs/internal/repository"
	"securedocs/internal/service"
	"securedocs/internal/storage"
	"securedocs/internal/storage/disk"
	"securedocs/internal/storage/s3"
	"securedocs/migrations"
)

const version = "1.0.0"

const purgeInterval = time.Hour

// ensureDatabase connects to the always-present postgres database and creates ours if missing.
func ensureDatabase(ctx context.Context, cfg config.DatabaseConfig) error {
	sys := cfg
	sys.Name = "postgres"
	pgDB, err := sqlx.ConnectContext(ctx, "postgres", sys.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres database: %w", err)
	}
	defer pgDB.Close()

	var exists bool
	err = pgDB.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Name)
	if err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}
	if !exists {
		if _, err := pgDB.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(cfg.Name)); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
	}
	return nil
}

func connectWithRetry(ctx context.Context, cfg config.DatabaseConfig, log logging.Logger, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	if err := ensureDatabase(ctx, cfg); err != nil {
		log.Warn(ctx, "could not ensure database exists", "error", err)
	}

	var (
		db  *sqlx.DB
		err error
	)
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.ConnectContext(ctx, "postgres", cfg.GetDSN())
		if err == nil {
			return db, nil
		}
		log.Warn(ctx, "failed to connect to database", "attempt", i+1, "max_attempts", maxAttempts, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxAttempts, err)
}

func runMigrations(ctx context.Context, cfg config.DatabaseConfig, log logging.Logger) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.URL())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		log.Warn(ctx, "found dirty database state, forcing version", "version", current)
		if err := m.Force(int(current)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func newStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	if cfg.Backend == config.StorageS3 {
		client, err := s3.NewClient(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	store, err := disk.New(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func newLockout(ctx context.Context, cfg *config.Config, log logging.Logger) (lockout.Lockout, func()) {
	if cfg.Redis.Addr == "" {
		log.Info(ctx, "login lockout disabled: no redis address configured")
		return lockout.Disabled{}, func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn(ctx, "redis unreachable, lockout fails open until it recovers", "error", err)
	}
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			log.Warn(ctx, "error closing redis client", "error", err)
		}
	}
	return lockout.NewRedisLockout(rdb, log, cfg.Lockout.MaxAttempts, cfg.Lockout.Window), closeFn
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := ".app.env"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logging.New(os.Stdout, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := connectWithRetry(ctx, cfg.Database, log, 5, 5*time.Second)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error(ctx, "error closing database connection", "error", err)
		}
	}()

	if err := runMigrations(ctx, cfg.Database, log); err != nil {
		return err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := newStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to init %s storage: %w", cfg.Storage.Backend, err)
	}

	lock, closeRedis := newLockout(ctx, cfg, log)
	defer closeRedis()

	codec, err := cryptox.NewCodec(cfg.Auth.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to init codec: %w", err)
	}

	m := metrics.New()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	userRepo := repository.NewUserRepository(db)
	fileRepo := repository.NewFileRepository(db)
	grantRepo := repository.NewGrantRepository(db)

	userService := service.NewUserService(userRepo, auth.NewPasswordHasher(cfg.Auth.BcryptCost), tokens, codec,
		lock, cfg.Server.PublicBaseURL, m, log)
	fileService := service.NewFileService(fileRepo, store, service.FileConfig{
		MaxSizeBytes:      cfg.Files.MaxSizeBytes,
		AllowedExtensions: cfg.Files.AllowedExtensions,
	}, m, log)
	downloadService := service.NewDownloadService(grantRepo, fileService, service.DownloadConfig{
		GrantTTL:         cfg.Download.GrantTTL,
		HistoryRetention: cfg.Download.HistoryRetention,
		PublicBaseURL:    cfg.Server.PublicBaseURL,
	}, m, log)

	if cfg.Bootstrap.OpsEmail != "" && cfg.Bootstrap.OpsPassword != "" {
		if err := userService.EnsureOpsUser(ctx, cfg.Bootstrap.OpsEmail, cfg.Bootstrap.OpsPassword); err != nil {
			return err
		}
	}

	checker := health.NewChecker(db, 2*time.Second)

	router := handler.NewRouter(handler.RouterDeps{
		Auth:           handler.NewAuthHandler(userService, log),
		Files:          handler.NewFileHandler(fileService, downloadService, log),
		Users:          handler.NewUserHandler(userService, log),
		System:         handler.NewSystemHandler(version, checker, log),
		Tokens:         tokens,
		Metrics:        m,
		Log:            log,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(log.Slog().Handler(), slog.LevelError),
	}

	grpcCtx, stopGRPC := context.WithCancel(context.Background())
	defer stopGRPC()
	grpcServer := health.NewServer(":"+cfg.Server.GRPCPort, checker, 15*time.Second, log)
	errCh := make(chan error, 2)

	go func() {
		if err := grpcServer.Run(grpcCtx); err != nil {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()

	go func() {
		log.Info(ctx, "Starting HTTP server", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := downloadService.PurgeStale(ctx); err != nil {
					log.Error(ctx, "error purging stale download grants", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		log.Info(context.Background(), "Shutting down servers...")
	case err := <-errCh:
		log.Error(context.Background(), "server failed, shutting down", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "HTTP server forced to shutdown", "error", err)
	}
	stopGRPC()

	log.Info(shutdownCtx, "Server exited properly")
	return nil
}
