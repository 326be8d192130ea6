package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aulavirtual/lms-server-go/internal/bootstrap"
	"github.com/aulavirtual/lms-server-go/internal/http/routes"
	"github.com/aulavirtual/lms-server-go/pkg/bunny"
	"github.com/aulavirtual/lms-server-go/pkg/cache"
	"github.com/aulavirtual/lms-server-go/pkg/config"
	"github.com/aulavirtual/lms-server-go/pkg/database"
	"github.com/aulavirtual/lms-server-go/pkg/gcs"
	"github.com/aulavirtual/lms-server-go/pkg/jobs"
	"github.com/aulavirtual/lms-server-go/pkg/logger"
	"github.com/aulavirtual/lms-server-go/pkg/metrics"
	"github.com/aulavirtual/lms-server-go/pkg/middleware"
	"github.com/aulavirtual/lms-server-go/pkg/request"
	"github.com/aulavirtual/lms-server-go/pkg/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger, err := logger.New(logger.Options{Level: cfg.LogLevel, JSON: cfg.IsProduction(), Dir: cfg.LogDir})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(ctx, cfg.Database, appLogger)
	if err != nil {
		appLogger.Error("database connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if err := database.Close(db, appLogger); err != nil {
			appLogger.Error("database close failed", slog.String("error", err.Error()))
		}
	}()

	if err := bootstrap.ApplyDatabaseMigrations(db, cfg, appLogger); err != nil {
		appLogger.Error("migrations failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cacheClient, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Error("cache connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cacheClient.Close()

	provider := bootstrap.NewIdentityProvider(cfg, db)

	if err := bootstrap.EnsureDefaultAdmin(ctx, db, provider, cfg.Admin, appLogger); err != nil {
		appLogger.Error("ensure default admin failed", slog.String("error", err.Error()))
	}

	store, closeStore, err := newObjectStore(ctx, cfg)
	if err != nil {
		appLogger.Error("object store initialization failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	if cfg.Jobs.Enabled {
		scheduler := jobs.NewScheduler(appLogger)
		if err := scheduler.AddJob(jobs.NewEnrollmentExpiryReportJob(db, appLogger), cfg.Jobs.EnrollmentSchedule); err != nil {
			appLogger.Error("schedule job failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := scheduler.AddJob(jobs.NewOrphanProgressReportJob(db, appLogger), cfg.Jobs.OrphanSchedule); err != nil {
			appLogger.Error("schedule job failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	router := gin.New()

	router.Use(middleware.Recovery(appLogger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.RequestID())                       // Add request IDs for tracing
	router.Use(middleware.Compression(middleware.BestSpeed)) // Compress responses (gzip)
	router.Use(middleware.RequestLogger(appLogger))          // Log all requests
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RouteSizeLimit(10*1024*1024, map[string]int64{ // 10MB, uploads excepted
		routes.UploadRoute: cfg.MaxUploadBytes,
	}))
	router.Use(metrics.Middleware())       // Collect Prometheus metrics
	router.Use(request.Handler(appLogger)) // Request context handler

	rateLimiter := middleware.NewRateLimiter(cacheClient, appLogger, cfg.RateLimit.Requests, cfg.RateLimit.Window, "rl")
	router.Use(rateLimiter.Middleware())

	routes.Register(router, routes.Dependencies{
		Config:   cfg,
		DB:       db,
		Logger:   appLogger,
		Identity: provider,
		Store:    store,
		Cache:    cacheClient,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           router,
		ReadTimeout:       0, // uploads stream for as long as they need
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	go func() {
		appLogger.Info("server starting",
			slog.String("addr", cfg.ServerAddress()),
			slog.String("env", cfg.Env),
			slog.String("identity", cfg.Identity.Provider),
			slog.String("storage", cfg.Storage.Backend),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server listen failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("server shutdown failed", slog.String("error", err.Error()))
	} else {
		appLogger.Info("server stopped gracefully")
	}
}

func newObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, func(), error) {
	switch cfg.Storage.Backend {
	case config.StorageGCS:
		store, err := gcs.New(ctx, cfg.Storage.GCS.Bucket, cfg.Storage.GCS.CredentialsFile, cfg.Storage.GCS.CDNURL)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		bunnyCfg := cfg.Storage.Bunny
		store := bunny.NewStorageClient(bunnyCfg.StorageZone, bunnyCfg.APIKey, bunnyCfg.BaseURL, bunnyCfg.CDNURL, bunnyCfg.TokenKey)
		return store, func() {}, nil
	}
}
