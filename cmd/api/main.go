package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"contactdesk/internal/config"
	"contactdesk/internal/database"
	"contactdesk/internal/domain/contact"
	"contactdesk/internal/pkg/jwt"
	"contactdesk/internal/pkg/logger"
	"contactdesk/internal/server"
	"contactdesk/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zl, err := logger.New(cfg.LogLevel, !cfg.IsProd())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL, zl)
	if err != nil {
		return err
	}
	if err := contact.Migrate(db); err != nil {
		return err
	}

	driver, err := storage.New(ctx, cfg.Storage, cfg.JWTSecret, zl)
	if err != nil {
		return err
	}
	zl.Info("storage ready",
		zap.String("driver", driver.Name()),
		zap.String("upload_mode", cfg.Storage.UploadMode),
		zap.Duration("upload_url_ttl", cfg.Storage.UploadURLTTL),
	)

	router := server.NewRouter(server.Deps{
		DB:          db,
		Tokens:      jwt.New(cfg.JWTSecret, 24*time.Hour),
		Storage:     driver,
		Hub:         contact.NewHub(zl),
		Log:         zl,
		CORSOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down", zap.Duration("grace", cfg.ShutdownPeriod))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		_ = sqlDB.Close()
	}
	return err
}
