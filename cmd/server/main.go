package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nftmarket/offchain/internal/api"
	"nftmarket/offchain/internal/blockchain/evm"
	"nftmarket/offchain/internal/config"
	"nftmarket/offchain/internal/database"
	"nftmarket/offchain/internal/service"
	"nftmarket/offchain/internal/worker"

	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := initLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting NFT Marketplace Chain Gateway")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("chain_rpc", cfg.Chain.RPCEndpoint),
		zap.Bool("monitor_enabled", cfg.Monitor.Enabled))

	// Connect to database
	db, err := database.Connect(database.Config{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		Path:     cfg.Database.Path,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	if err := database.RunMigrations(db); err != nil {
		logger.Warn("Failed to run migrations (may already be applied)", zap.Error(err))
	} else {
		logger.Info("Database migrations applied successfully")
	}

	if err := db.Ping(); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}

	// Connect to chain node
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	chainClient, err := evm.NewClient(startupCtx, cfg.Chain.RPCEndpoint, cfg.Chain.RPCTimeout, logger)
	if err != nil {
		logger.Fatal("Failed to create chain client", zap.Error(err))
	}
	defer chainClient.Close()

	// Optional metadata cache
	var cache service.MetadataCache
	if cfg.Cache.RedisURL != "" {
		redisClient, err := service.NewRedisClient(startupCtx, cfg.Cache.RedisURL)
		if err != nil {
			logger.Warn("Metadata cache unavailable, continuing without it", zap.Error(err))
		} else {
			defer redisClient.Close()
			cache = service.NewRedisMetadataCache(redisClient, cfg.Cache.MetadataTTL)
			logger.Info("Metadata cache enabled", zap.Duration("ttl", cfg.Cache.MetadataTTL))
		}
	}

	// Initialize services
	metadataService := service.NewMetadataService(cfg.IPFS.Gateway, cfg.IPFS.MetadataTimeout, cache, logger)
	chainService := service.NewChainService(chainClient, db, metadataService, logger)

	logger.Info("Services initialized")

	// Initialize API handlers
	metrics := api.NewMetrics()
	apiHandler := api.NewHandler(db, chainService, metrics, logger)
	router := api.SetupRouter(apiHandler, metrics, logger)

	// Create HTTP server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Chain.RPCTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("addr", serverAddr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	// Pending transaction monitor
	var workerManager *worker.WorkerManager
	if cfg.Monitor.Enabled {
		workerManager = worker.NewWorkerManager(db, chainService, cfg.Monitor, logger)
		workerManager.Start()
		logger.Info("Workers started")
	}

	logger.Info("Service initialized successfully",
		zap.String("status", "ready"),
		zap.Int("port", cfg.Server.Port))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for interrupt signal or server error
	select {
	case err := <-serverErrors:
		logger.Fatal("HTTP server error", zap.Error(err))
	case sig := <-quit:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	logger.Info("Shutting down service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shutdown workers first
	if workerManager != nil {
		if err := workerManager.Shutdown(10 * time.Second); err != nil {
			logger.Error("Worker shutdown error", zap.Error(err))
		}
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
		httpServer.Close()
	} else {
		logger.Info("HTTP server stopped gracefully")
	}

	logger.Info("Service stopped successfully")
}

func initLogger() (*zap.Logger, error) {
	env := os.Getenv("ENV")
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
