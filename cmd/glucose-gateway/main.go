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

	"go.uber.org/zap"

	"github.com/angadhsingh1/ETL-Pipeline/internal/config"
	"github.com/angadhsingh1/ETL-Pipeline/internal/database"
	"github.com/angadhsingh1/ETL-Pipeline/internal/gateway"
	"github.com/angadhsingh1/ETL-Pipeline/internal/logger"
	"github.com/angadhsingh1/ETL-Pipeline/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "glucose-gateway")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	db, err := database.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Release(db, log)
	log.Info("Connected to DB", zap.String("host", cfg.DB.Host), zap.String("database", cfg.DB.Name))

	if err := repository.VerifySchema(db); err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Gateway.Addr,
		Handler: gateway.NewServer(
			repository.NewPatientRepository(db, cfg.Load.BatchSize),
			repository.NewRunRepository(db),
			log,
		).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("API Gateway listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
