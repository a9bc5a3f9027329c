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

	"github.com/Dosada05/darts-tournament-system/brackets"
	"github.com/Dosada05/darts-tournament-system/config"
	"github.com/Dosada05/darts-tournament-system/db"
	"github.com/Dosada05/darts-tournament-system/handlers"
	"github.com/Dosada05/darts-tournament-system/repositories"
	api "github.com/Dosada05/darts-tournament-system/routes"
	"github.com/Dosada05/darts-tournament-system/services"
	"github.com/Dosada05/darts-tournament-system/storage"
	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(context.Background(), cfg.DatabaseURL, cfg.DBConnectTimeout, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx, dbConn)
	cancelMigrate()
	if err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database ready")

	store := repositories.NewPostgresStore(dbConn, logger)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	wsHub := brackets.NewHub(logger)
	go wsHub.Run(hubCtx)
	logger.Info("WebSocket Hub started")

	notifiers := services.MultiNotifier{services.NewHubNotifier(wsHub, logger)}
	if cfg.AMQPURL != "" {
		amqpNotifier, err := services.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Error("failed to connect event broker", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := amqpNotifier.Close(); err != nil {
				logger.Error("failed to close event broker connection", slog.Any("error", err))
			}
		}()
		notifiers = append(notifiers, amqpNotifier)
		logger.Info("publishing events to AMQP", slog.String("exchange", cfg.AMQPExchange))
	}

	var archiver services.ResultsArchiver
	r2Config := storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if r2Config.Enabled() {
		bucket, err := storage.NewCloudflareR2Uploader(context.Background(), r2Config)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = storage.NewResultsArchive(bucket, cfg.ResultsPrefix, logger)
		logger.Info("results archive enabled", slog.String("bucket", cfg.R2BucketName))
	}

	clock := services.SystemClock()
	tournamentService := services.NewTournamentService(store, notifiers, archiver, clock, logger)
	matchService := services.NewMatchService(store, tournamentService, notifiers, archiver, clock, logger)
	leagueService := services.NewLeagueService(store, notifiers, clock, logger)

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Tournament: handlers.NewTournamentHandler(tournamentService),
		Match:      handlers.NewMatchHandler(matchService, tournamentService),
		League:     handlers.NewLeagueHandler(leagueService),
		WebSocket:  handlers.NewWebSocketHandler(wsHub, tournamentService, cfg.CORSAllowedOrigins, logger),
	}, api.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		PINs:           tournamentService,
		Logger:         logger,
	})
	logger.Info("Routes configured")

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
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
