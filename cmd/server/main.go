// Package main runs the radio platform HTTP server with WebSocket chat and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/amadeodlp/canalradionov-service/config"
	"github.com/amadeodlp/canalradionov-service/internal/auth"
	"github.com/amadeodlp/canalradionov-service/internal/broadcast"
	"github.com/amadeodlp/canalradionov-service/internal/chat"
	"github.com/amadeodlp/canalradionov-service/internal/interaction"
	"github.com/amadeodlp/canalradionov-service/internal/media"
	"github.com/amadeodlp/canalradionov-service/internal/middleware"
	"github.com/amadeodlp/canalradionov-service/internal/users"
	"github.com/amadeodlp/canalradionov-service/internal/worker"
	"github.com/amadeodlp/canalradionov-service/pkg/database"
	"github.com/amadeodlp/canalradionov-service/pkg/queue"
	"github.com/amadeodlp/canalradionov-service/pkg/redis"
	"github.com/amadeodlp/canalradionov-service/pkg/response"
	"github.com/amadeodlp/canalradionov-service/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			RecordingsBucket:     cfg.AWS.RecordingsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Users and auth
	userRepo := users.NewRepository(pool)
	userHandler := users.NewHandler(userRepo, logger)
	authHandler := auth.NewHandler(userRepo, jwtService, logger)

	// Live broadcast registry
	registry := broadcast.NewRegistry(
		userRepo,
		broadcast.StreamAllocator(cfg.Broadcast.StreamBaseURL),
		broadcast.RecordingAllocator(cfg.Broadcast.RecordingBaseURL),
		time.Duration(cfg.Broadcast.SessionHours)*time.Hour,
		logger,
	)
	archive := broadcast.NewArchive(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	broadcastHandler := broadcast.NewHandler(registry, archive, jobQueue, s3Client, logger)

	// Chat rooms fan out locally and relay across instances via Redis
	bridge := chat.NewRedisBridge(rdb.Client, logger)
	hub := chat.NewHub(registry, bridge, bridge, logger)

	// Show and episode catalog
	catalog := media.NewCatalog(logger)
	mediaHandler := media.NewHandler(catalog, s3Client, logger)

	// Comments, likes, share links
	interactionStore := interaction.NewStore(cfg.Broadcast.ShareBaseURL)
	interactionHandler := interaction.NewHandler(interactionStore, userRepo, logger)

	archiveProcessor := worker.NewArchiveProcessor(archive, s3Client, jobQueue, logger)

	jwtValidate := func(token string) (string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", err
		}
		return claims.UserID, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public catalog browsing
	router.GET("/shows", mediaHandler.ListShows)
	router.GET("/shows/live", mediaHandler.LiveShows)
	router.GET("/shows/upcoming", mediaHandler.UpcomingShows)
	router.GET("/shows/:id", mediaHandler.GetShow)
	router.GET("/shows/:id/episodes", mediaHandler.ListEpisodes)
	router.GET("/episodes/:id/stream", mediaHandler.Stream)

	// Public broadcast listing
	router.GET("/broadcasts", broadcastHandler.ListActive)
	router.GET("/broadcasts/history", broadcastHandler.History)
	router.GET("/broadcasts/history/:id", broadcastHandler.HistoryByID)
	router.GET("/broadcasts/:id", broadcastHandler.GetByID)
	router.GET("/broadcasts/:id/listeners", broadcastHandler.ListenerCount)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users
		api.GET("/users/me", userHandler.Me)
		api.PATCH("/users/me", userHandler.UpdateMe)
		api.GET("/users", middleware.RequireRole("admin"), userHandler.List)

		// Broadcasts (hosts start and drive their own sessions)
		api.POST("/broadcasts", middleware.RequireRole("admin", "host"), broadcastHandler.Start)
		api.POST("/broadcasts/:id/stop", broadcastHandler.Stop)
		api.PATCH("/broadcasts/:id", broadcastHandler.Update)
		api.POST("/broadcasts/:id/cohosts/:userId", broadcastHandler.AddCoHost)
		api.DELETE("/broadcasts/:id/cohosts/:userId", broadcastHandler.RemoveCoHost)
		api.DELETE("/broadcasts/history/:id", middleware.RequireRole("admin"), broadcastHandler.DeleteArchived)

		// Catalog management
		api.POST("/shows", middleware.RequireRole("admin"), mediaHandler.CreateShow)
		api.POST("/shows/:id/episodes/upload-url", middleware.RequireRole("admin"), mediaHandler.GenerateUploadURL)
		api.POST("/shows/:id/episodes", middleware.RequireRole("admin"), mediaHandler.RegisterEpisode)
		api.DELETE("/episodes/:id", middleware.RequireRole("admin"), mediaHandler.DeleteEpisode)
		api.GET("/episodes/:id/play", mediaHandler.Play)

		// Comments and likes
		api.POST("/comments", interactionHandler.AddComment)
		api.GET("/comments/:targetType/:targetId", interactionHandler.ListComments)
		api.DELETE("/comments/:id", interactionHandler.DeleteComment)
		api.POST("/likes/:targetType/:targetId", interactionHandler.Like)
		api.DELETE("/likes/:targetType/:targetId", interactionHandler.Unlike)
		api.GET("/likes/:targetType/:targetId", interactionHandler.LikeCount)
		api.GET("/share/:targetType/:targetId", interactionHandler.ShareURL)
	}

	// WebSocket chat (token in query; no Authorization header required)
	router.GET("/ws/chat", chat.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (archive ended broadcasts)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go archiveProcessor.Run(workerCtx)
	logger.Info("archive worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
