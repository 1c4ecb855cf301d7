package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"main/config"
	"main/handler"
	"main/logger"
	"main/middleware"
	"main/repository"
	"main/services"
	"main/usecase"
	"main/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil && os.Getenv("GO_ENV") != "test" {
		log.Printf("No .env file loaded: %v", err)
	}

	// Check required environment variables
	requiredEnvVars := []string{
		"MONGO_URI",
		"MONGO_DB",
	}
	for _, envVar := range requiredEnvVars {
		if os.Getenv(envVar) == "" && os.Getenv("GO_ENV") != "test" {
			log.Fatalf("Required environment variable %s is not set", envVar)
		}
	}

	utils.InitValidator()
}

func setupRouter(cfg config.Config) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.RequestTracingMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.CORSMiddleware())

	// The advisory cache is optional; without REDIS_URL every read goes
	// straight to the store.
	var cache *services.SessionCache
	if cfg.RedisURL != "" {
		var err error
		cache, err = services.NewSessionCache(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			log.Fatalf("Failed to initialize session cache: %v", err)
		}
	}

	sessionRepo := repository.GetSessionRepo(utils.MongoClient, cfg.Mongo, cache)
	sessionService := usecase.NewSessionService(sessionRepo, cfg.SessionTTL)

	api := router.Group("/api")
	{
		api.POST("/login", func(c *gin.Context) {
			handler.LoginHandler(c, sessionService)
		})
		api.GET("/check-session", func(c *gin.Context) {
			handler.CheckSessionHandler(c, sessionService)
		})
		api.POST("/heartbeat", func(c *gin.Context) {
			handler.HeartbeatHandler(c, sessionService)
		})
		api.POST("/logout", func(c *gin.Context) {
			handler.LogoutHandler(c, sessionService)
		})
		api.GET("/stats", handler.StatsHandler)
	}

	router.GET("/health", handler.HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	if err := utils.InitMongoClient(utils.MongoOptions{
		URI:             cfg.Mongo.URI,
		MaxPoolSize:     cfg.Mongo.MaxPoolSize,
		MinPoolSize:     cfg.Mongo.MinPoolSize,
		MaxConnIdleTime: cfg.Mongo.MaxConnIdleTime,
	}); err != nil {
		log.Fatalf("Failed to initialize MongoDB: %v", err)
	}

	router := setupRouter(cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "session_ttl", cfg.SessionTTL.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	sig := <-signalChan
	slog.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if err := utils.MongoClient.Disconnect(ctx); err != nil {
		slog.Error("mongo disconnect failed", "error", err)
	}
	slog.Info("shutdown complete")
}
