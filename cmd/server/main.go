package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/barathRC/databricks-mcq-copilot-agent/internal/bank"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/config"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/database"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/handler"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/logger"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/router"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/service"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/store"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/validator"
	"github.com/barathRC/databricks-mcq-copilot-agent/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Msg("Starting MCQ Assessment Agent")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Session Store ────────────────────────────────────────────
	var sessionStore store.Store
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		sessionStore = store.NewPostgresStore(pool)
	case config.StoreDriverRedis:
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		sessionStore = store.NewRedisStore(rdb)
	case config.StoreDriverFile:
		sessionStore = store.NewFileStore(cfg.StateFile, log)
	default:
		log.Fatal().Str("driver", cfg.StoreDriver).Msg("Unknown STORE_DRIVER")
	}

	// ─── Initialize Services ──────────────────────────────────────────
	loader := bank.NewLoader(cfg.BankDir, cfg.SharedBankFile, cfg.ExamCatalog, log)
	sessionService := service.NewSessionService(loader, sessionStore, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Exam:    handler.NewExamHandler(loader),
		Session: handler.NewSessionHandler(sessionService),
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Worker ──────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	autosaveWorker := worker.NewAutosaveWorker(sessionService, sessionStore,
		time.Duration(cfg.AutosaveInterval)*time.Second, log)
	go autosaveWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the worker and let its final flush run.
	workerCancel()
	time.Sleep(time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
