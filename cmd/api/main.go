package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bimakw/defi-copilot/internal/application/services"
	"github.com/bimakw/defi-copilot/internal/config"
	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/infrastructure/cache"
	"github.com/bimakw/defi-copilot/internal/infrastructure/coingecko"
	"github.com/bimakw/defi-copilot/internal/infrastructure/database"
	"github.com/bimakw/defi-copilot/internal/infrastructure/ethereum"
	"github.com/bimakw/defi-copilot/internal/infrastructure/llm"
	"github.com/bimakw/defi-copilot/internal/infrastructure/oneinch"
	"github.com/bimakw/defi-copilot/internal/presentation/handlers"
	"github.com/bimakw/defi-copilot/internal/presentation/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting defi-copilot API",
		zap.Int("port", cfg.API.Port),
	)

	registry, err := entities.ParseTokenRegistry(cfg.Balances.Tokens)
	if err != nil {
		logger.Fatal("Invalid token registry", zap.Error(err))
	}

	// Connect to database
	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	if err := db.Migrate(migrateCtx); err != nil {
		cancelMigrate()
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	cancelMigrate()

	// Connect to Redis cache (optional)
	var redisCache *cache.RedisCache
	redisCache, err = cache.NewRedisCache(cfg.Redis, cfg.API.CacheTTL, logger)
	if err != nil {
		logger.Warn("Failed to connect to Redis, running without cache", zap.Error(err))
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// Connect to Ethereum node (optional, balances read as empty without it)
	var balanceReader services.BalanceReader
	ethClient, err := ethereum.NewClient(cfg.Ethereum, logger)
	if err != nil {
		logger.Warn("Failed to connect to Ethereum node, balances unavailable", zap.Error(err))
		ethClient = nil
	} else {
		defer ethClient.Close()
		resolveTokens(ethClient, registry, logger)
		balanceReader = ethereum.NewBalanceReader(ethClient, logger)
	}

	metrics := services.NewMetrics(prometheus.DefaultRegisterer)

	// Create repositories
	txRepo := database.NewTransactionRepo(db.DB())
	chatRepo := database.NewChatRepo(db.DB())

	// Create services
	priceService := services.NewPriceService(coingecko.NewClient(cfg.Prices, logger), registry, redisCache, cfg.Prices, metrics, logger)
	balanceService := services.NewBalanceService(balanceReader, priceService, registry, redisCache, cfg.Balances, metrics, logger)
	portfolioService := services.NewPortfolioService(balanceService, txRepo, registry, redisCache, cfg.API.CacheTTL, logger)
	simulationService := services.NewSimulationService(logger)
	swapService := services.NewSwapService(oneinch.NewClient(cfg.Swap, cfg.Ethereum.ChainID, logger), priceService, registry, metrics, logger)
	chatService := services.NewChatService(chatRepo, chatRepo, balanceService, llm.NewAnthropicProvider(cfg.Chat, logger), cfg.Chat, metrics, logger)

	// Create handlers
	priceHandler := handlers.NewPriceHandler(priceService, logger)
	walletHandler := handlers.NewWalletHandler(balanceService, portfolioService, logger)
	simulationHandler := handlers.NewSimulationHandler(simulationService, logger)
	swapHandler := handlers.NewSwapHandler(swapService, logger)
	chatHandler := handlers.NewChatHandler(chatService, logger)

	var cacheChecker handlers.HealthChecker
	if redisCache != nil {
		cacheChecker = redisCache
	}
	healthHandler := handlers.NewHealthHandler(db, cacheChecker)
	if ethClient != nil {
		healthHandler.WithChecker("ethereum", ethClient)
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RateLimiter(cfg.API.RateLimitRPS))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		priceHandler.RegisterRoutes(r)
		walletHandler.RegisterRoutes(r)
		simulationHandler.RegisterRoutes(r)
		swapHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(chatRepo, logger))
			chatHandler.RegisterRoutes(r)
		})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Run server in goroutine
	go func() {
		logger.Info("API server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// resolveTokens fills in missing token decimals from the chain. Tokens that
// stay unresolved are skipped by the balance reader.
func resolveTokens(client *ethereum.Client, registry *entities.TokenRegistry, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ethereum.NewTokenResolver(client, logger).Resolve(ctx, registry); err != nil {
		logger.Warn("Failed to resolve token metadata", zap.Error(err))
	}
}

func setupLogger(cfg config.LogConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch cfg.Level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoding := "json"
	encoderConfig := zap.NewProductionEncoderConfig()
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := config.Build()
	return logger
}
