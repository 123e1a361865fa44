package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/agrilens/internal/auth"
	"github.com/example/agrilens/internal/config"
	"github.com/example/agrilens/internal/dashboard"
	"github.com/example/agrilens/internal/grpcclient"
	"github.com/example/agrilens/internal/handlers"
	"github.com/example/agrilens/internal/intake"
	"github.com/example/agrilens/internal/logging"
	"github.com/example/agrilens/internal/marketplace"
	"github.com/example/agrilens/internal/outcome"
	"github.com/example/agrilens/internal/repository"
	"github.com/example/agrilens/internal/session"
	"github.com/example/agrilens/internal/usecase"
)

const startupTimeout = 15 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(logging.Options{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return runServe(cmd.Context(), cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	db, err := initDatabase(startCtx, cfg.Database, logger)
	if err != nil {
		return err
	}
	repo := repository.NewScanRepository(db, logger)
	if err := repo.AutoMigrate(startCtx); err != nil {
		return err
	}

	redisClient, err := initRedis(startCtx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	readyChecks := map[string]func(context.Context) error{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}

	var selector outcome.Selector = outcome.NewRandomSelector(nil)
	if addr := cfg.Analysis.RemoteAddr; addr != "" {
		analyzer, err := grpcclient.Dial(startCtx, addr, logger)
		if err != nil {
			logger.Warn("remote analyzer unavailable, using simulated outcomes", zap.String("addr", addr), zap.Error(err))
		} else {
			defer analyzer.Close()
			readyChecks["analyzer"] = analyzer.Ping
			selector = outcome.NewFallbackSelector(analyzer, selector, func(err error) {
				logger.Warn("remote analyzer failed, falling back to simulated outcome", zap.Error(err))
			})
		}
	}

	manager := session.NewManager(session.ManagerOptions{
		Delays: map[outcome.Kind]time.Duration{
			outcome.KindDisease: cfg.DiseaseDelay(),
			outcome.KindGrade:   cfg.GradeDelay(),
		},
		TTL:      cfg.SessionTTL(),
		Selector: selector,
		Logger:   logger,
	})
	intaker := intake.New(intake.Options{MaxBytes: cfg.Intake.MaxUploadBytes})
	scans := usecase.NewScanUseCase(manager, intaker, repo, usecase.NewRedisCache(redisClient), logger)

	r := gin.Default()
	r.MaxMultipartMemory = handlers.MaxUploadSize
	handlers.RegisterRoutes(r, handlers.Deps{
		Scans:       scans,
		Catalog:     marketplace.NewCatalog(),
		Favorites:   marketplace.NewRedisFavorites(redisClient),
		Dashboard:   dashboard.NewService(scans, logger),
		Logger:      logger,
		ReadyChecks: readyChecks,
	}, auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience).Middleware())

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer stop()
		logger.Info("agrilens API listening", zap.String("addr", cfg.HTTP.Addr))
		return serveHTTPServer(server, cfg.ShutdownTimeout(), logger)
	})
	g.Go(func() error {
		return manager.Run(gctx, cfg.SweepInterval())
	})
	return g.Wait()
}

func initDatabase(ctx context.Context, cfg config.DatabaseConfig, zapLogger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Error("failed to connect to database", zap.Error(err))
		return nil, logging.NewOperationError("serve.init_database", "", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, logging.NewOperationError("serve.init_database", "", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Error("database ping failed", zap.Error(err))
		return nil, logging.NewOperationError("serve.ping_database", "", err)
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg config.RedisConfig, zapLogger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Error("redis connection failed", zap.Error(err), zap.String("addr", cfg.Addr))
		_ = client.Close()
		return nil, logging.NewOperationError("serve.init_redis", "", err)
	}
	return client, nil
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

// serveHTTPServerWithOptions serves until the server fails or a signal
// arrives, then drains in-flight requests for at most shutdownTimeout.
func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := signalCh
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
