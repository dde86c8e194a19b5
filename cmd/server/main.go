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

	"github.com/deimercs/gestorfacturas/internal/config"
	"github.com/deimercs/gestorfacturas/internal/infra"
	"github.com/deimercs/gestorfacturas/internal/metrics"
	"github.com/deimercs/gestorfacturas/internal/repository"
	"github.com/deimercs/gestorfacturas/internal/router"
	"github.com/deimercs/gestorfacturas/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// @title Gestor de Ordenes API
// @version 1.0
// @description Ordenes de compra con numeracion consecutiva y adjuntos PDF.
// @BasePath /
// @securityDefinitions.apikey SessionID
// @in header
// @name X-Session-ID
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in dev, JSON in prod
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.DBDebug)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if cfg.RunMigrations {
		if err := infra.RunMigrations(db, cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := infra.NewRedis(ctx, cfg.RedisURL, cfg.WorkerPoolSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	uploads, err := infra.NewUploadStore(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare upload dir")
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Worker handlers are wired here (composition root) so that the pool
	// has full access to all infrastructure dependencies.
	mailer := infra.NewMailer(cfg)
	if !mailer.Configured() {
		log.Warn().Msg("SMTP_HOST vacio: los envios de ordenes por email iran a la DLQ")
	}
	workerHandlers := worker.WorkerHandlers{
		Email:    worker.NewEmailWorker(repository.NewOrdenRepository(db), mailer, cfg.CompanyName),
		Limpieza: worker.NewLimpiezaWorker(uploads),
	}
	workers := worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, workerHandlers, m)

	r := router.New(cfg, db, rdb, uploads, m)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("ordenes backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	cancel()
	workers.Wait()
	_ = rdb.Close()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server exited")
}
