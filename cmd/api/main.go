package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/cloudbox/internal/auth"
	"github.com/abduss/cloudbox/internal/config"
	"github.com/abduss/cloudbox/internal/file"
	"github.com/abduss/cloudbox/internal/logger"
	"github.com/abduss/cloudbox/internal/server"
	"github.com/abduss/cloudbox/internal/storage"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	zl, err := logger.Init()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		zl.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres, zl)
	if err != nil {
		zl.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	if cfg.Postgres.RunMigrations {
		if err := storage.Migrate(cfg.Postgres, zl); err != nil {
			zl.Fatal("migrate database", zap.Error(err))
		}
	}

	minioClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		zl.Fatal("connect minio", zap.Error(err))
	}
	if err := storage.EnsureBucket(ctx, minioClient, cfg.MinIO, zl); err != nil {
		zl.Fatal("ensure bucket", zap.Error(err))
	}

	authService := auth.NewService(auth.NewRepository(dbPool), cfg.Auth, zl)

	fileRepo := file.NewRepository(dbPool)
	fileStore := file.NewMinIOStore(minioClient, cfg.MinIO.Bucket)
	fileService := file.NewService(fileRepo, fileStore, zl, cfg.Files.MaxUploadSize)

	reconciler := file.NewReconciler(fileRepo, fileStore, cfg.Files.ReconcileInterval, zl)
	reconciler.Start(ctx)
	defer reconciler.Stop()

	router := server.NewRouter(server.Dependencies{
		Config:      cfg,
		Logger:      zl,
		DB:          dbPool,
		ObjectStore: minioClient,
		AuthService: authService,
		FileService: fileService,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zl.Info("cloudbox api listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("bucket", cfg.MinIO.Bucket),
			zap.String("max_upload", humanize.IBytes(uint64(cfg.Files.MaxUploadSize))),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	zl.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown error", zap.Error(err))
	}
}
