package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/promptclash/arena/config"
	"github.com/promptclash/arena/db"
	"github.com/promptclash/arena/fetcher"
	"github.com/promptclash/arena/handlers"
	"github.com/promptclash/arena/judge"
	"github.com/promptclash/arena/live"
	"github.com/promptclash/arena/repositories"
	"github.com/promptclash/arena/routes"
	"github.com/promptclash/arena/services"
	"github.com/promptclash/arena/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	var archiver *services.ResultArchiver
	if cfg.ArchiveEnabled() {
		uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = services.NewResultArchiver(uploader, logger)
		logger.Info("round-result archiver enabled", slog.String("bucket", cfg.R2BucketName))
	}

	hub := live.NewHub(logger)
	go hub.Run()

	roundRepo := repositories.NewPostgresRoundRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	progressRepo := repositories.NewPostgresProgressRepository(dbConn)
	submissionRepo := repositories.NewPostgresSubmissionRepository(dbConn)
	eventRepo := repositories.NewPostgresEventRepository(dbConn)

	answerFetcher := fetcher.New(logger)
	matchJudge := judge.New(cfg.JudgeAPIURL, cfg.JudgeAPIKey, cfg.JudgeModel, cfg.JudgeTimeout, logger)

	runner := services.NewRunner(logger)
	progressService := services.NewProgressService(progressRepo, logger)
	matchupService := services.NewMatchupService(roundRepo, matchRepo, submissionRepo, progressRepo, progressService, logger)
	evaluationService := services.NewEvaluationService(matchRepo, submissionRepo, progressService, answerFetcher, matchJudge, hub, logger)
	tournamentService := services.NewTournamentService(roundRepo, matchRepo, evaluationService, runner, hub, archiver, logger)
	logger.Info("services initialized")

	tournamentHandler := handlers.NewTournamentHandler(tournamentService, matchupService, progressService, eventRepo)
	wsHandler := handlers.NewWebSocketHandler(hub, logger)

	router := routes.SetupRoutes(routes.Config{
		JWTSecret:      cfg.JWTSecretKey,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, tournamentHandler, wsHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		}

		// Let in-flight round evaluations finish before the process exits.
		if !runner.Wait(shutdownTimeout) {
			logger.Warn("background tasks did not drain before shutdown deadline")
		}
	}
	logger.Info("application exited")
}
