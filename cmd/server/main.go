package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exquiz-backend/internal/config"
	"github.com/stemsi/exquiz-backend/internal/database"
	"github.com/stemsi/exquiz-backend/internal/handler"
	"github.com/stemsi/exquiz-backend/internal/logger"
	"github.com/stemsi/exquiz-backend/internal/repository"
	"github.com/stemsi/exquiz-backend/internal/router"
	"github.com/stemsi/exquiz-backend/internal/sandbox"
	"github.com/stemsi/exquiz-backend/internal/service"
	"github.com/stemsi/exquiz-backend/internal/validator"
	"github.com/stemsi/exquiz-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("session_cache", cfg.SessionCache).
		Msg("Starting ExQuiz Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	quizRepo := repository.NewQuizRepository(pool)
	bucketRepo := repository.NewBucketRepository(pool)
	proctorRepo := repository.NewProctoringRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	participantRepo := repository.NewParticipantRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)

	// ─── Initialize Caches ─────────────────────────────────────────────
	var sessionCache service.SessionCache
	switch cfg.SessionCache {
	case config.SessionCacheRedis:
		sessionCache = service.NewRedisSessionCache(rdb, cfg.SessionCacheTTL)
	default:
		sessionCache = service.NewMemorySessionCache(cfg.SessionCacheTTL)
	}
	variantCache := service.NewRedisVariantCache(rdb, cfg.VariantTTL)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, adminRepo)
	monitorService := service.NewMonitorService(rdb, proctorRepo)
	assemblyService := service.NewAssemblyService(quizRepo, bucketRepo, variantCache, log)
	quizService := service.NewQuizService(quizRepo, log)
	bucketService := service.NewBucketService(bucketRepo, log)
	proctoringService := service.NewProctoringService(proctorRepo, sessionCache, monitorService, log)
	resultService := service.NewResultService(resultRepo, quizRepo, assemblyService, service.NewRedisResultQueue(rdb), log)
	participantService := service.NewParticipantService(participantRepo, log)
	runner := sandbox.NewRunner(cfg.SandboxURL, cfg.SandboxTimeout, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:        handler.NewAuthHandler(authService, log),
		Quiz:        handler.NewQuizHandler(quizService, assemblyService, log),
		Bucket:      handler.NewBucketHandler(bucketService, cfg.MaxImportBytes, log),
		Participant: handler.NewParticipantHandler(participantService, log),
		Result:      handler.NewResultHandler(resultService, log),
		Proctoring:  handler.NewProctoringHandler(proctoringService, log),
		WS:          handler.NewWSHandler(proctoringService, log, cfg.AllowedOrigins),
		Monitor:     handler.NewMonitorHandler(monitorService, log),
		Code:        handler.NewCodeHandler(runner, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	resultWorker := worker.NewResultWorker(resultRepo, rdb, log)
	go func() {
		defer close(workerDone)
		resultWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Let the result worker flush its buffer.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Result worker did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
