package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lifeline/config"
	"lifeline/database"
	"lifeline/routes"
	"lifeline/websocket"
	"lifeline/workers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize configuration
	cfg := config.Load()

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize logger
	setupLogger(cfg)

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatal("Failed to connect to database: ", err)
	}
	defer database.Disconnect()

	// Initialize Redis
	redisClient := config.InitRedis(cfg)
	defer redisClient.Close()

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()

	// Wire repositories, services, controllers, and routes
	deps := routes.SetupRoutes(cfg, db, redisClient, hub)

	// Rebuild in-memory geo indexes from the store before serving traffic
	if err := deps.Services.Dispatch.RebuildIndexes(context.Background()); err != nil {
		logrus.Fatal("Failed to rebuild geo indexes: ", err)
	}

	// Start sweep worker
	workerConfig := workers.DefaultExpiryWorkerConfig()
	workerConfig.PendingTimeout = time.Duration(cfg.EmergencyTimeoutSeconds) * time.Second
	workerConfig.ExpirySweepInterval = time.Duration(cfg.SweepIntervalSeconds) * time.Second
	workerConfig.RetentionPeriod = time.Duration(cfg.RetentionHours) * time.Hour

	expiryWorker := workers.NewExpiryWorker(deps.Services.Dispatch, workerConfig)
	if err := expiryWorker.Start(); err != nil {
		logrus.Fatal("Failed to start expiry worker: ", err)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        deps.Router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in goroutine
	go func() {
		logrus.Info("🚑 Lifeline Dispatch Server starting on port ", cfg.Port)
		logrus.Info("📡 WebSocket endpoint: /ws")
		logrus.Info("💖 Health Check: /health")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Fatal("Server forced to shutdown: ", err)
	}

	expiryWorker.Stop()
	hub.Shutdown()

	logrus.Info("✅ Server shutdown complete")
}

func setupLogger(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if cfg.Environment == "development" {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}
