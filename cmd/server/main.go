package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flockkeeper-backend/internal/config"
	"flockkeeper-backend/internal/database"
	"flockkeeper-backend/internal/logger"
	"flockkeeper-backend/internal/mirror"
	"flockkeeper-backend/internal/server"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.LogMode))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	if cfg.UsesDefaultDSN() {
		baseLogger.Warn("DATABASE_DSN not set, using local default")
	}

	db, err := database.Init(cfg, baseLogger.Named("database"))
	if err != nil {
		baseLogger.Fatal("failed to init database", zap.Error(err))
	}

	runner := mirror.NewRunner(baseLogger.Named("mirror"), cfg.SideEffectTimeout)
	app := server.New(server.Deps{
		Config: cfg,
		DB:     db,
		Log:    baseLogger,
		Runner: runner,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.HTTPPort))
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	// detached expense projections still in flight
	runner.Wait()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
