package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cimillas/ticket-ledger/internal/app"
	"github.com/cimillas/ticket-ledger/internal/clock"
	"github.com/cimillas/ticket-ledger/internal/config"
	"github.com/cimillas/ticket-ledger/internal/logging"
	"github.com/cimillas/ticket-ledger/internal/storage/postgres"
	transporthttp "github.com/cimillas/ticket-ledger/internal/transport/http"
	"github.com/cimillas/ticket-ledger/migrations"
)

const startupTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ticket-ledger: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("ticket-ledger", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to a YAML config file")
	logLevel := flags.String("log-level", "", "log level override (debug, info, warn, error)")
	skipMigrations := flags.Bool("skip-migrations", false, "do not apply embedded migrations on startup")
	if err := flags.Parse(args); err != nil {
		return err
	}

	envPath, envErr := config.LoadEnvFile()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	switch {
	case envErr != nil:
		logger.Warn("failed to load .env", zap.Error(envErr))
	case envPath == "":
		logger.Debug(".env not found in current or parent directories")
	default:
		logger.Info("loaded env file", zap.String("path", envPath))
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	pool, err := postgres.Open(startupCtx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database",
		zap.String("url", postgres.Redact(cfg.Database.URL)),
		zap.Int32("max_conns", cfg.Database.MaxConns),
		zap.Duration("lock_timeout", cfg.Database.LockTimeout),
		zap.Duration("statement_timeout", cfg.Database.StatementTimeout),
	)

	if !*skipMigrations {
		applied, err := migrations.Apply(startupCtx, pool)
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("applied migrations", zap.Strings("names", applied))
		}
	}

	tickets := postgres.NewTicketRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	tx := postgres.NewTxManager(pool,
		postgres.WithOperationTimeout(cfg.Ledger.OperationTimeout),
		postgres.WithLogger(logger.Named("tx")),
	)

	ledger := app.NewTransactionalLedger(app.NewLedgerService(tickets, userRepo), tx)
	users := app.NewTransactionalUsers(app.NewUserService(userRepo, tickets, clock.NewSystem()), tx)

	server := &http.Server{
		Addr: ":" + strings.TrimPrefix(cfg.HTTP.Port, ":"),
		Handler: transporthttp.NewRouter(transporthttp.RouterDeps{
			Users:       users,
			Ledger:      ledger,
			Logger:      logger.Named("http"),
			DB:          pool,
			CORSOrigins: cfg.HTTP.CORSOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("api listening", zap.String("addr", server.Addr))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}
