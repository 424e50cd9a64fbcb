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

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/crickpick/prediction-league/config"
	"github.com/crickpick/prediction-league/db"
	"github.com/crickpick/prediction-league/handlers"
	"github.com/crickpick/prediction-league/live"
	"github.com/crickpick/prediction-league/repositories"
	api "github.com/crickpick/prediction-league/routes"
	"github.com/crickpick/prediction-league/services"
	"github.com/crickpick/prediction-league/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
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
	logger.Info("database connection established")

	// Хранилище аватаров (Cloudflare R2), опционально
	var avatarStore storage.FileUploader
	if cfg.R2Configured() {
		avatarStore, err = storage.NewCloudflareR2Store(storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 store", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 avatar store initialized")
	} else {
		logger.Warn("Cloudflare R2 not configured, leaderboard avatars disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := live.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub started")

	// Инициализация репозиториев
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	predictionRepo := repositories.NewPostgresPredictionRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	logger.Info("repositories initialized")

	// Инициализация сервисов
	clock := services.NewRealClock()
	authService := services.NewAuthService(userRepo)
	leaderboardService := services.NewLeaderboardService(predictionRepo, tournamentRepo, avatarStore, clock, logger)
	lifecycleService := services.NewMatchLifecycleService(
		dbConn,
		matchRepo,
		predictionRepo,
		clock,
		leaderboardService,
		wsHub,
		logger,
	)
	predictionService := services.NewPredictionService(dbConn, matchRepo, predictionRepo, wsHub, logger)
	logger.Info("services initialized")

	// Планировщик автоматического перевода матчей в ongoing
	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	sweeper := services.NewStatusSweeper(lifecycleService, cfg.SweepInterval, logger)
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sweeper.Run(sweeperCtx)
	}()

	// Инициализация обработчиков HTTP
	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	matchHandler := handlers.NewMatchHandler(lifecycleService)
	predictionHandler := handlers.NewPredictionHandler(predictionService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		authHandler,
		matchHandler,
		predictionHandler,
		leaderboardHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
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

	// Ожидание сигнала завершения
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

		// Останавливаем планировщик; идущий sweep доработает до конца.
		stopSweeper()
		<-sweeperDone

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
