package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/defi-copilot/internal/config"
	"github.com/bimakw/defi-copilot/internal/domain/entities"
)

// PriceRefresher refreshes the shared price table
type PriceRefresher interface {
	Refresh(ctx context.Context) (map[string]entities.TokenPrice, error)
}

// HoldingsRefresher re-reads and caches a wallet's holdings
type HoldingsRefresher interface {
	RefreshHoldings(ctx context.Context, walletAddress string) *entities.Holdings
}

// WalletImporter imports a wallet's chain history
type WalletImporter interface {
	ImportWallet(ctx context.Context, walletAddress string) (int64, error)
}

// RefreshService keeps prices, tracked wallet holdings and chain history
// warm in the background. Each job runs on its own ticker.
type RefreshService struct {
	prices   PriceRefresher
	balances HoldingsRefresher
	history  WalletImporter
	wallets  []string
	config   config.RefresherConfig
	metrics  *Metrics
	logger   *zap.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewRefreshService creates a new refresh service. history may be nil to
// disable chain import.
func NewRefreshService(
	prices PriceRefresher,
	balances HoldingsRefresher,
	history WalletImporter,
	cfg config.RefresherConfig,
	metrics *Metrics,
	logger *zap.Logger,
) *RefreshService {
	wallets := make([]string, 0, len(cfg.TrackedWallets))
	for _, w := range cfg.TrackedWallets {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			wallets = append(wallets, w)
		}
	}

	return &RefreshService{
		prices:   prices,
		balances: balances,
		history:  history,
		wallets:  wallets,
		config:   cfg,
		metrics:  metrics,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the refresh loops
func (s *RefreshService) Start(ctx context.Context) {
	s.logger.Info("Starting refresh service",
		zap.Strings("wallets", s.wallets),
		zap.Duration("price_interval", s.config.PriceInterval),
		zap.Duration("balance_interval", s.config.BalanceInterval),
	)

	s.startLoop(ctx, "prices", s.config.PriceInterval, s.refreshPrices)

	if len(s.wallets) == 0 {
		s.logger.Warn("No tracked wallets configured, balance refresh and history import disabled")
		return
	}

	s.startLoop(ctx, "balances", s.config.BalanceInterval, s.refreshBalances)
	if s.history != nil {
		s.startLoop(ctx, "history", s.config.HistoryInterval, s.importHistory)
	}
}

// Stop gracefully stops all loops
func (s *RefreshService) Stop() {
	s.logger.Info("Stopping refresh service")
	close(s.stopCh)
	s.wg.Wait()
}

func (s *RefreshService) startLoop(ctx context.Context, job string, interval time.Duration, run func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Run immediately on start
		s.runJob(ctx, job, run)

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.runJob(ctx, job, run)
			}
		}
	}()
}

func (s *RefreshService) runJob(ctx context.Context, job string, run func(ctx context.Context) error) {
	start := time.Now()
	err := run(ctx)
	s.metrics.RefreshLatency.WithLabelValues(job).Observe(time.Since(start).Seconds())

	if err != nil {
		s.logger.Error("Refresh failed", zap.String("job", job), zap.Error(err))
		s.metrics.RefreshErrors.WithLabelValues(job).Inc()
	}
}

func (s *RefreshService) workerLimit() int {
	if s.config.WorkerCount < 1 {
		return 1
	}
	return s.config.WorkerCount
}

func (s *RefreshService) refreshPrices(ctx context.Context) error {
	_, err := s.prices.Refresh(ctx)
	return err
}

// refreshBalances refreshes every wallet and reports how many came back stale
func (s *RefreshService) refreshBalances(ctx context.Context) error {
	var stale atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerLimit())

	for _, wallet := range s.wallets {
		wallet := wallet
		g.Go(func() error {
			if h := s.balances.RefreshHoldings(gCtx, wallet); h.Stale {
				stale.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if n := stale.Load(); n > 0 {
		return fmt.Errorf("%w: %d of %d wallets refreshed with stale data", entities.ErrUpstreamUnavailable, n, len(s.wallets))
	}
	return nil
}

func (s *RefreshService) importHistory(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerLimit())

	for _, wallet := range s.wallets {
		wallet := wallet
		g.Go(func() error {
			n, err := s.history.ImportWallet(gCtx, wallet)
			if err != nil {
				return err
			}
			if n > 0 {
				s.logger.Info("Imported chain history",
					zap.String("wallet", wallet),
					zap.Int64("transactions", n),
				)
			}
			return nil
		})
	}

	return g.Wait()
}
