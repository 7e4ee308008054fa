package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-logger/glog"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	accounts "github.com/screenhall/go-accounts"
	"github.com/screenhall/go-accounts/notifications"
	"github.com/screenhall/go-accounts/storage"
)

func main() {
	// missing .env is fine, the environment may be set directly
	_ = godotenv.Load()

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("accounts"),
		glog.WithAddSource(false),
	)

	cfg := LoadConfig()

	if err := run(cfg, lgr); err != nil {
		lgr.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *Config, lgr *glog.BaseLogger) error {
	ctx := context.Background()

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	if err := accounts.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repo := accounts.NewRepositoryManager(db)
	repo.MustValidate()

	logger := &logAdapter{lgr.GetLogger("core")}

	tokenService := accounts.NewTokenService(cfg, logger)
	auther := accounts.NewAuthenticator(repo, tokenService).WithLogger(logger)

	var notifier accounts.Notifier = notifications.NoopSender{}
	if cfg.ResendAPIKey != "" {
		notifier = notifications.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom)
	}

	var store accounts.ObjectStore = storage.NoopStore{}
	if cfg.S3.Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to configure object storage: %w", err)
		}
		store = s3Store
	}

	controller := accounts.NewAccountsController(
		accounts.WithControllerLogger(logger),
		accounts.WithControllerDeterministicIDs(cfg.DeterministicIDs),
		accounts.WithControllerRepo(repo),
		accounts.WithControllerConfig(cfg),
		accounts.WithControllerAuther(auther),
		accounts.WithControllerTokenService(tokenService),
		accounts.WithControllerNotifier(notifier),
		accounts.WithControllerStore(store),
	)

	app := fiber.New(fiber.Config{
		AppName:      "screenhall accounts",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	controller.RegisterRoutes(app)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepExpiredTokens(sweepCtx, repo, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.HTTPAddr)
	}()

	lgr.Info("server listening", "addr", cfg.HTTPAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		lgr.Info("shutting down", "signal", sig.String())
		stopSweep()
		return app.ShutdownWithTimeout(10 * time.Second)
	}
}

// sweepExpiredTokens prunes expired credential records hourly. Expired
// tokens are rejected at read time regardless, this just keeps the tables
// small.
func sweepExpiredTokens(ctx context.Context, repo accounts.RepositoryManager, logger accounts.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if n, err := repo.ActivationTokens().DeleteExpired(ctx, now); err != nil {
				logger.Warn("failed to sweep activation tokens: %v", err)
			} else if n > 0 {
				logger.Info("swept %d expired activation tokens", n)
			}
			if n, err := repo.PasswordResetTokens().DeleteExpired(ctx, now); err != nil {
				logger.Warn("failed to sweep reset tokens: %v", err)
			} else if n > 0 {
				logger.Info("swept %d expired reset tokens", n)
			}
			if n, err := repo.RefreshTokens().DeleteExpired(ctx, now); err != nil {
				logger.Warn("failed to sweep refresh tokens: %v", err)
			} else if n > 0 {
				logger.Info("swept %d expired refresh tokens", n)
			}
		}
	}
}

// logAdapter bridges the structured glog logger to the printf-style
// accounts.Logger.
type logAdapter struct {
	lgr glog.Logger
}

func (l *logAdapter) Debug(format string, args ...any) { l.lgr.Debug(fmt.Sprintf(format, args...)) }
func (l *logAdapter) Info(format string, args ...any)  { l.lgr.Info(fmt.Sprintf(format, args...)) }
func (l *logAdapter) Warn(format string, args ...any)  { l.lgr.Warn(fmt.Sprintf(format, args...)) }
func (l *logAdapter) Error(format string, args ...any) { l.lgr.Error(fmt.Sprintf(format, args...)) }
