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

	"github.com/Dosada05/chess-arena/config"
	"github.com/Dosada05/chess-arena/db"
	"github.com/Dosada05/chess-arena/handlers"
	"github.com/Dosada05/chess-arena/repositories"
	api "github.com/Dosada05/chess-arena/routes"
	"github.com/Dosada05/chess-arena/services"
	"github.com/Dosada05/chess-arena/storage"
	"github.com/Dosada05/chess-arena/ws"
)

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

	if err := db.Migrate(context.Background(), dbConn); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database schema up to date")

	// Game archiving is optional; without R2 credentials matches simply are
	// not uploaded.
	var uploader storage.FileUploader
	if cfg.R2AccountID != "" {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Info("match archiving disabled, no R2 configuration")
	}

	wsHub := ws.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket hub started")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)

	roomRegistry := services.NewRoomRegistry()
	matchRegistry := services.NewMatchRegistry()
	notifier := services.NewRoomNotifier(wsHub, userRepo, tournamentRepo, matchRepo, logger)

	authService := services.NewAuthService(userRepo, []byte(cfg.JWTSecretKey))
	roundService := services.NewRoundService(
		dbConn, roomRegistry, matchRegistry,
		userRepo, tournamentRepo, matchRepo,
		notifier, wsHub, logger,
	)
	matchService := services.NewMatchService(
		dbConn, roomRegistry, matchRegistry,
		userRepo, matchRepo, roundService,
		notifier, wsHub, uploader, logger,
	)
	roomService := services.NewRoomService(
		dbConn, roomRegistry, matchRegistry,
		userRepo, tournamentRepo, matchRepo,
		roundService, notifier, wsHub, logger,
	)
	logger.Info("services initialized")

	authHandler := handlers.NewAuthHandler(authService)
	roomHandler := handlers.NewRoomHandler(roomService, tournamentRepo)
	tournamentHandler := handlers.NewTournamentHandler(tournamentRepo, userRepo)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, authService, roomService, matchService, logger)

	router := chi.NewRouter()
	api.SetupRoutes(router, authService, authHandler, roomHandler, tournamentHandler, webSocketHandler)
	logger.Info("routes configured")

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
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

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
