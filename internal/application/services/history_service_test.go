package services

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/defi-copilot/internal/config"
	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/infrastructure/ethereum"
	"github.com/bimakw/defi-copilot/internal/testutil"
)

type historyTestDeps struct {
	source    *testutil.MockTransferSource
	txRepo    *testutil.MockTransactionRepository
	stateRepo *testutil.MockSyncStateRepository
}

func setupHistoryServiceTest(transfers ...ethereum.TokenTransfer) (*HistoryService, historyTestDeps) {
	deps := historyTestDeps{
		source:    testutil.NewMockTransferSource(1000, transfers...),
		txRepo:    testutil.NewMockTransactionRepository(),
		stateRepo: testutil.NewMockSyncStateRepository(),
	}

	cfg := config.RefresherConfig{
		LookbackBlocks: 100,
		BatchSize:      50,
		WorkerCount:    2,
	}

	service := NewHistoryService(
		deps.source,
		deps.txRepo,
		deps.stateRepo,
		testutil.NewMockPriceSource(testutil.TestPrices()),
		testutil.NewTestTokenRegistry(),
		cfg,
		newTestMetrics(),
		zap.NewNop(),
	)
	return service, deps
}

func TestHistoryService_ImportWallet(t *testing.T) {
	service, deps := setupHistoryServiceTest(
		testutil.CreateTestTransfer(
			testutil.TransferWithTxHash(testutil.GenerateTxHash(1)),
			testutil.TransferWithBlockNumber(920),
			testutil.TransferWithParties(testutil.BobAddress, testutil.AliceAddress),
			testutil.TransferWithValue(big.NewInt(2_500_000)), // 2.5 USDC in
		),
		testutil.CreateTestTransfer(
			testutil.TransferWithTxHash(testutil.GenerateTxHash(2)),
			testutil.TransferWithBlockNumber(960),
			testutil.TransferWithToken(testutil.UNIAddress),
			testutil.TransferWithParties(testutil.AliceAddress, testutil.BobAddress),
			testutil.TransferWithValue(new(big.Int).Mul(big.NewInt(2), oneEther)), // 2 UNI out
		),
		testutil.CreateTestTransfer(
			testutil.TransferWithTxHash(testutil.GenerateTxHash(3)),
			testutil.TransferWithBlockNumber(970),
			testutil.TransferWithParties(testutil.AliceAddress, testutil.AliceAddress),
		),
		testutil.CreateTestTransfer(
			testutil.TransferWithTxHash(testutil.GenerateTxHash(4)),
			testutil.TransferWithBlockNumber(850), // before lookback window
		),
	)

	var notified []string
	service.OnImport(func(ctx context.Context, wallet string) {
		notified = append(notified, wallet)
	})

	imported, err := service.ImportWallet(context.Background(), "0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if imported != 2 {
		t.Fatalf("expected 2 imported, got %d", imported)
	}

	txs := deps.txRepo.Transactions()
	if len(txs) != 2 {
		t.Fatalf("expected 2 stored transactions, got %d", len(txs))
	}

	buy := txs[0]
	if buy.Type != entities.TransactionBuy || buy.Symbol != "USDC" {
		t.Errorf("expected USDC buy, got %s %s", buy.Type, buy.Symbol)
	}
	if !buy.Quantity.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("expected quantity 2.5, got %s", buy.Quantity)
	}
	if buy.Source != entities.SourceChain || buy.TxHash == nil || buy.LogIndex == nil {
		t.Errorf("expected chain source with tx reference, got %+v", buy)
	}

	sell := txs[1]
	if sell.Type != entities.TransactionSell || sell.Symbol != "UNI" {
		t.Errorf("expected UNI sell, got %s %s", sell.Type, sell.Symbol)
	}
	if !sell.PriceUSD.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected current UNI price 10, got %s", sell.PriceUSD)
	}

	state, _ := deps.stateRepo.Get(context.Background(), testutil.AliceAddress)
	if state == nil || state.LastIndexedBlock != 1000 {
		t.Errorf("expected checkpoint at 1000, got %+v", state)
	}

	if len(notified) != 1 || notified[0] != testutil.AliceAddress {
		t.Errorf("expected one import notification, got %v", notified)
	}
}

func TestHistoryService_ImportWallet_SplitsRanges(t *testing.T) {
	service, deps := setupHistoryServiceTest()

	if _, err := service.ImportWallet(context.Background(), testutil.AliceAddress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ranges [][2]int64
	for _, call := range deps.source.Calls {
		if call.Method == "FetchWalletTransfers" {
			ranges = append(ranges, [2]int64{call.Args[2].(int64), call.Args[3].(int64)})
		}
	}

	expected := [][2]int64{{900, 949}, {950, 999}, {1000, 1000}}
	if len(ranges) != len(expected) {
		t.Fatalf("expected %d ranges, got %d", len(expected), len(ranges))
	}
	for i, r := range expected {
		if ranges[i] != r {
			t.Errorf("range %d: expected %v, got %v", i, r, ranges[i])
		}
	}
}

func TestHistoryService_ImportWallet_ResumesFromCheckpoint(t *testing.T) {
	service, deps := setupHistoryServiceTest()
	deps.stateRepo.AddState(&entities.SyncState{WalletAddress: testutil.AliceAddress, LastIndexedBlock: 990})

	if _, err := service.ImportWallet(context.Background(), testutil.AliceAddress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, call := range deps.source.Calls {
		if call.Method == "FetchWalletTransfers" {
			if from := call.Args[2].(int64); from != 991 {
				t.Errorf("expected import from 991, got %d", from)
			}
		}
	}

	// caught up: nothing left to fetch
	deps.source.Calls = nil
	if n, err := service.ImportWallet(context.Background(), testutil.AliceAddress); err != nil || n != 0 {
		t.Fatalf("expected no-op, got %d %v", n, err)
	}
	for _, call := range deps.source.Calls {
		if call.Method == "FetchWalletTransfers" {
			t.Error("expected no fetch once caught up")
		}
	}
}

func TestHistoryService_ImportWallet_ReplayIsIdempotent(t *testing.T) {
	transfer := testutil.CreateTestTransfer(testutil.TransferWithBlockNumber(950))
	service, deps := setupHistoryServiceTest(transfer)

	if _, err := service.ImportWallet(context.Background(), testutil.AliceAddress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// lose the checkpoint and import again
	deps.stateRepo = testutil.NewMockSyncStateRepository()
	service.stateRepo = deps.stateRepo

	n, err := service.ImportWallet(context.Background(), testutil.AliceAddress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected replay to insert nothing, got %d", n)
	}
	if len(deps.txRepo.Transactions()) != 1 {
		t.Errorf("expected 1 stored transaction, got %d", len(deps.txRepo.Transactions()))
	}
}

func TestHistoryService_ImportWallet_FetchErrorKeepsCheckpoint(t *testing.T) {
	service, deps := setupHistoryServiceTest()
	deps.source.FetchWalletTransfersFunc = func(ctx context.Context, wallet string, tokens []string, from, to int64) (*ethereum.FetchResult, error) {
		if from >= 950 {
			return nil, errors.New("rpc timeout")
		}
		return &ethereum.FetchResult{FromBlock: from, ToBlock: to}, nil
	}

	_, err := service.ImportWallet(context.Background(), testutil.AliceAddress)
	if err == nil {
		t.Fatal("expected error")
	}

	state, _ := deps.stateRepo.Get(context.Background(), testutil.AliceAddress)
	if state == nil || state.LastIndexedBlock != 949 {
		t.Errorf("expected checkpoint at last completed range 949, got %+v", state)
	}
}
