package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

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

	logger.Info("Starting defi-copilot refresher",
		zap.Strings("wallets", cfg.Refresher.TrackedWallets),
		zap.String("rpc_url", cfg.Ethereum.RPCURL),
	)

	registry, err := entities.ParseTokenRegistry(cfg.Balances.Tokens)
	if err != nil {
		logger.Fatal("Invalid token registry", zap.Error(err))
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// The refresher only pays off when the API reads what it writes
	redisCache, err := cache.NewRedisCache(cfg.Redis, cfg.API.CacheTTL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	// Connect to Ethereum node
	ethClient, err := ethereum.NewClient(cfg.Ethereum, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Ethereum node", zap.Error(err))
	}
	defer ethClient.Close()

	resolveCtx, cancelResolve := context.WithTimeout(ctx, 30*time.Second)
	if err := ethereum.NewTokenResolver(ethClient, logger).Resolve(resolveCtx, registry); err != nil {
		logger.Warn("Failed to resolve token metadata", zap.Error(err))
	}
	cancelResolve()

	metrics := services.NewMetrics(prometheus.DefaultRegisterer)

	// Create repositories
	txRepo := database.NewTransactionRepo(db.DB())
	stateRepo := database.NewSyncStateRepo(db.DB())

	// Create services
	priceService := services.NewPriceService(coingecko.NewClient(cfg.Prices, logger), registry, redisCache, cfg.Prices, metrics, logger)
	balanceService := services.NewBalanceService(ethereum.NewBalanceReader(ethClient, logger), priceService, registry, redisCache, cfg.Balances, metrics, logger)
	portfolioService := services.NewPortfolioService(balanceService, txRepo, registry, redisCache, cfg.API.CacheTTL, logger)

	fetcher := ethereum.NewFetcher(ethClient, cfg.Refresher, logger)
	historyService := services.NewHistoryService(fetcher, txRepo, stateRepo, priceService, registry, cfg.Refresher, metrics, logger)
	historyService.OnImport(portfolioService.InvalidateWallet)

	refreshService := services.NewRefreshService(priceService, balanceService, historyService, cfg.Refresher, metrics, logger)
	refreshService.Start(ctx)

	// Start metrics server
	go startMetricsServer(cfg.Refresher.MetricsPort, logger)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, stopping refresher...")

	// Graceful shutdown
	cancel()
	refreshService.Stop()

	logger.Info("Refresher stopped")
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
	if cfg.Format == "console" {
		encoding = "console"
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := config.Build()
	return logger
}

func startMetricsServer(port int, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", zap.String("addr", addr))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Metrics server error", zap.Error(err))
	}
}
