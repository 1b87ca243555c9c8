package testutil

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bimakw/defi-copilot/internal/domain/entities"
	"github.com/bimakw/defi-copilot/internal/infrastructure/coingecko"
	"github.com/bimakw/defi-copilot/internal/infrastructure/ethereum"
	"github.com/bimakw/defi-copilot/internal/infrastructure/oneinch"
)

type MockCall struct {
	Method string
	Args   []interface{}
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mu     sync.RWMutex
	txs    []entities.Transaction
	nextID int64

	// Function hooks for custom behavior
	AppendFunc      func(ctx context.Context, tx *entities.Transaction) error
	AppendBatchFunc func(ctx context.Context, txs []entities.Transaction) (int64, error)
	ListFunc        func(ctx context.Context, filter entities.TransactionFilter) ([]entities.Transaction, error)
	CountFunc       func(ctx context.Context, walletAddress string) (int64, error)

	// Call tracking
	Calls []MockCall
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		txs:    make([]entities.Transaction, 0),
		nextID: 1,
		Calls:  make([]MockCall, 0),
	}
}

func (m *MockTransactionRepository) Append(ctx context.Context, tx *entities.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "Append", Args: []interface{}{*tx}})

	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx)
	}

	tx.ID = m.nextID
	m.nextID++
	m.txs = append(m.txs, *tx)
	return nil
}

func (m *MockTransactionRepository) AppendBatch(ctx context.Context, txs []entities.Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "AppendBatch", Args: []interface{}{txs}})

	if m.AppendBatchFunc != nil {
		return m.AppendBatchFunc(ctx, txs)
	}

	var inserted int64
	for _, tx := range txs {
		if tx.TxHash != nil && tx.LogIndex != nil && m.hasChainEntry(tx) {
			continue
		}
		tx.ID = m.nextID
		m.nextID++
		m.txs = append(m.txs, tx)
		inserted++
	}
	return inserted, nil
}

// hasChainEntry must be called with the lock held
func (m *MockTransactionRepository) hasChainEntry(tx entities.Transaction) bool {
	for _, existing := range m.txs {
		if existing.TxHash == nil || existing.LogIndex == nil {
			continue
		}
		if *existing.TxHash == *tx.TxHash && *existing.LogIndex == *tx.LogIndex &&
			existing.WalletAddress == tx.WalletAddress {
			return true
		}
	}
	return false
}

func (m *MockTransactionRepository) List(ctx context.Context, filter entities.TransactionFilter) ([]entities.Transaction, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "List", Args: []interface{}{filter}})
	m.mu.Unlock()

	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.Transaction, 0)
	for _, tx := range m.txs {
		if filter.WalletAddress != "" && tx.WalletAddress != filter.WalletAddress {
			continue
		}
		if filter.Symbol != nil && tx.Symbol != *filter.Symbol {
			continue
		}
		if filter.FromTime != nil && tx.Timestamp.Before(*filter.FromTime) {
			continue
		}
		if filter.ToTime != nil && tx.Timestamp.After(*filter.ToTime) {
			continue
		}
		result = append(result, tx)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	// Apply pagination
	start := filter.Offset
	if start > len(result) {
		return []entities.Transaction{}, nil
	}
	end := len(result)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	return result[start:end], nil
}

func (m *MockTransactionRepository) Count(ctx context.Context, walletAddress string) (int64, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Count", Args: []interface{}{walletAddress}})
	m.mu.Unlock()

	if m.CountFunc != nil {
		return m.CountFunc(ctx, walletAddress)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, tx := range m.txs {
		if tx.WalletAddress == walletAddress {
			count++
		}
	}
	return count, nil
}

func (m *MockTransactionRepository) AddTransactions(txs ...entities.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range txs {
		if tx.ID == 0 {
			tx.ID = m.nextID
		}
		m.nextID++
		m.txs = append(m.txs, tx)
	}
}

func (m *MockTransactionRepository) Transactions() []entities.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]entities.Transaction(nil), m.txs...)
}

func (m *MockTransactionRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = make([]entities.Transaction, 0)
	m.nextID = 1
	m.Calls = make([]MockCall, 0)
}

// MockSyncStateRepository is a mock implementation of SyncStateRepository
type MockSyncStateRepository struct {
	mu     sync.RWMutex
	states map[string]*entities.SyncState

	GetFunc             func(ctx context.Context, walletAddress string) (*entities.SyncState, error)
	UpdateLastBlockFunc func(ctx context.Context, walletAddress string, blockNumber int64) error

	Calls []MockCall
}

func NewMockSyncStateRepository() *MockSyncStateRepository {
	return &MockSyncStateRepository{
		states: make(map[string]*entities.SyncState),
		Calls:  make([]MockCall, 0),
	}
}

func (m *MockSyncStateRepository) Get(ctx context.Context, walletAddress string) (*entities.SyncState, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Get", Args: []interface{}{walletAddress}})
	m.mu.Unlock()

	if m.GetFunc != nil {
		return m.GetFunc(ctx, walletAddress)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[walletAddress]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (m *MockSyncStateRepository) UpdateLastBlock(ctx context.Context, walletAddress string, blockNumber int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "UpdateLastBlock", Args: []interface{}{walletAddress, blockNumber}})

	if m.UpdateLastBlockFunc != nil {
		return m.UpdateLastBlockFunc(ctx, walletAddress, blockNumber)
	}

	m.states[walletAddress] = &entities.SyncState{
		WalletAddress:    walletAddress,
		LastIndexedBlock: blockNumber,
		UpdatedAt:        time.Now(),
	}
	return nil
}

func (m *MockSyncStateRepository) AddState(state *entities.SyncState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.WalletAddress] = state
}

// MockConversationRepository is a mock implementation of ConversationRepository
type MockConversationRepository struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*entities.Conversation
	messages      map[uuid.UUID][]entities.ChatMessage

	GetConversationFunc func(ctx context.Context, id uuid.UUID) (*entities.Conversation, error)
	ListMessagesFunc    func(ctx context.Context, conversationID uuid.UUID, limit int) ([]entities.ChatMessage, error)
	SaveExchangeFunc    func(ctx context.Context, conv *entities.Conversation, isNew bool, messages []entities.ChatMessage) error

	Calls []MockCall
}

func NewMockConversationRepository() *MockConversationRepository {
	return &MockConversationRepository{
		conversations: make(map[uuid.UUID]*entities.Conversation),
		messages:      make(map[uuid.UUID][]entities.ChatMessage),
		Calls:         make([]MockCall, 0),
	}
}

func (m *MockConversationRepository) GetConversation(ctx context.Context, id uuid.UUID) (*entities.Conversation, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetConversation", Args: []interface{}{id}})
	m.mu.Unlock()

	if m.GetConversationFunc != nil {
		return m.GetConversationFunc(ctx, id)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, nil
	}
	copied := *conv
	return &copied, nil
}

func (m *MockConversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]entities.ChatMessage, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "ListMessages", Args: []interface{}{conversationID, limit}})
	m.mu.Unlock()

	if m.ListMessagesFunc != nil {
		return m.ListMessagesFunc(ctx, conversationID, limit)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]entities.ChatMessage{}, msgs...), nil
}

func (m *MockConversationRepository) SaveExchange(ctx context.Context, conv *entities.Conversation, isNew bool, messages []entities.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "SaveExchange", Args: []interface{}{*conv, isNew, messages}})

	if m.SaveExchangeFunc != nil {
		return m.SaveExchangeFunc(ctx, conv, isNew, messages)
	}

	if isNew {
		if _, exists := m.conversations[conv.ID]; exists {
			return errors.New("duplicate conversation")
		}
	}
	copied := *conv
	m.conversations[conv.ID] = &copied
	m.messages[conv.ID] = append(m.messages[conv.ID], messages...)
	return nil
}

func (m *MockConversationRepository) AddConversation(conv *entities.Conversation, messages ...entities.ChatMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conv.ID] = conv
	m.messages[conv.ID] = append(m.messages[conv.ID], messages...)
}

func (m *MockConversationRepository) Messages(conversationID uuid.UUID) []entities.ChatMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]entities.ChatMessage(nil), m.messages[conversationID]...)
}

func (m *MockConversationRepository) ConversationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations)
}

// MockRateLimitRepository is a mock implementation of RateLimitRepository
type MockRateLimitRepository struct {
	mu     sync.RWMutex
	counts map[string]int

	GetCountFunc func(ctx context.Context, userID string, windowStart time.Time) (int, error)
	UpsertFunc   func(ctx context.Context, userID string, windowStart time.Time, count int) error

	Calls []MockCall
}

func NewMockRateLimitRepository() *MockRateLimitRepository {
	return &MockRateLimitRepository{
		counts: make(map[string]int),
		Calls:  make([]MockCall, 0),
	}
}

func rateLimitKey(userID string, windowStart time.Time) string {
	return userID + "|" + windowStart.UTC().Format(time.RFC3339)
}

func (m *MockRateLimitRepository) GetCount(ctx context.Context, userID string, windowStart time.Time) (int, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetCount", Args: []interface{}{userID, windowStart}})
	m.mu.Unlock()

	if m.GetCountFunc != nil {
		return m.GetCountFunc(ctx, userID, windowStart)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[rateLimitKey(userID, windowStart)], nil
}

func (m *MockRateLimitRepository) Upsert(ctx context.Context, userID string, windowStart time.Time, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "Upsert", Args: []interface{}{userID, windowStart, count}})

	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, userID, windowStart, count)
	}

	m.counts[rateLimitKey(userID, windowStart)] = count
	return nil
}

func (m *MockRateLimitRepository) SetCount(userID string, windowStart time.Time, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[rateLimitKey(userID, windowStart)] = count
}

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entities.Session

	GetByTokenHashFunc func(ctx context.Context, tokenHash string) (*entities.Session, error)

	Calls []MockCall
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		sessions: make(map[string]*entities.Session),
		Calls:    make([]MockCall, 0),
	}
}

func (m *MockSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*entities.Session, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetByTokenHash", Args: []interface{}{tokenHash}})
	m.mu.Unlock()

	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[tokenHash]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (m *MockSessionRepository) AddSession(session *entities.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.TokenHash] = session
}

// MockPriceFeed is a mock implementation of the CoinGecko price feed
type MockPriceFeed struct {
	mu     sync.Mutex
	Quotes map[string]coingecko.Quote
	Err    error

	FetchPricesFunc func(ctx context.Context, ids []string) (map[string]coingecko.Quote, error)

	Calls []MockCall
}

func NewMockPriceFeed(quotes map[string]coingecko.Quote) *MockPriceFeed {
	return &MockPriceFeed{
		Quotes: quotes,
		Calls:  make([]MockCall, 0),
	}
}

func (m *MockPriceFeed) FetchPrices(ctx context.Context, ids []string) (map[string]coingecko.Quote, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "FetchPrices", Args: []interface{}{ids}})
	m.mu.Unlock()

	if m.FetchPricesFunc != nil {
		return m.FetchPricesFunc(ctx, ids)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	result := make(map[string]coingecko.Quote)
	for _, id := range ids {
		if q, ok := m.Quotes[id]; ok {
			result[id] = q
		}
	}
	return result, nil
}

func (m *MockPriceFeed) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockBalanceReader is a mock implementation of the on-chain balance reader
type MockBalanceReader struct {
	mu       sync.Mutex
	Balances map[string]map[string]*big.Int // wallet -> symbol -> raw
	Err      error

	GetBalancesFunc func(ctx context.Context, walletAddress string, tokens []entities.Token) (map[string]*big.Int, error)

	Calls []MockCall
}

func NewMockBalanceReader() *MockBalanceReader {
	return &MockBalanceReader{
		Balances: make(map[string]map[string]*big.Int),
		Calls:    make([]MockCall, 0),
	}
}

func (m *MockBalanceReader) GetBalances(ctx context.Context, walletAddress string, tokens []entities.Token) (map[string]*big.Int, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetBalances", Args: []interface{}{walletAddress, tokens}})
	m.mu.Unlock()

	if m.GetBalancesFunc != nil {
		return m.GetBalancesFunc(ctx, walletAddress, tokens)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	result := make(map[string]*big.Int)
	for symbol, raw := range m.Balances[strings.ToLower(walletAddress)] {
		result[symbol] = new(big.Int).Set(raw)
	}
	return result, nil
}

func (m *MockBalanceReader) SetBalance(walletAddress, symbol string, raw *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wallet := strings.ToLower(walletAddress)
	if m.Balances[wallet] == nil {
		m.Balances[wallet] = make(map[string]*big.Int)
	}
	m.Balances[wallet][symbol] = raw
}

func (m *MockBalanceReader) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockSwapQuoter is a mock implementation of the DEX aggregator client
type MockSwapQuoter struct {
	mu sync.Mutex

	QuoteFunc func(ctx context.Context, src, dst string, amount *big.Int) (*oneinch.Quote, error)

	Calls []MockCall
}

func NewMockSwapQuoter() *MockSwapQuoter {
	return &MockSwapQuoter{Calls: make([]MockCall, 0)}
}

func (m *MockSwapQuoter) Quote(ctx context.Context, src, dst string, amount *big.Int) (*oneinch.Quote, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Quote", Args: []interface{}{src, dst, amount}})
	m.mu.Unlock()

	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, src, dst, amount)
	}
	return nil, errors.New("no quote configured")
}

// MockChatProvider is a mock implementation of the language model provider
type MockChatProvider struct {
	mu       sync.Mutex
	Response string
	Err      error

	CompleteFunc func(ctx context.Context, system string, history []entities.ChatMessage) (string, error)

	// LastSystem and LastHistory hold the arguments of the latest call
	LastSystem  string
	LastHistory []entities.ChatMessage

	Calls []MockCall
}

func NewMockChatProvider(response string) *MockChatProvider {
	return &MockChatProvider{
		Response: response,
		Calls:    make([]MockCall, 0),
	}
}

func (m *MockChatProvider) Complete(ctx context.Context, system string, history []entities.ChatMessage) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Complete", Args: []interface{}{system, history}})
	m.LastSystem = system
	m.LastHistory = append([]entities.ChatMessage(nil), history...)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, history)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *MockChatProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockTransferSource is a mock implementation of the chain transfer fetcher
type MockTransferSource struct {
	mu        sync.Mutex
	SafeBlock int64
	Transfers []ethereum.TokenTransfer

	GetSafeBlockNumberFunc   func(ctx context.Context) (int64, error)
	FetchWalletTransfersFunc func(ctx context.Context, wallet string, tokenAddresses []string, fromBlock, toBlock int64) (*ethereum.FetchResult, error)

	Calls []MockCall
}

func NewMockTransferSource(safeBlock int64, transfers ...ethereum.TokenTransfer) *MockTransferSource {
	return &MockTransferSource{
		SafeBlock: safeBlock,
		Transfers: transfers,
		Calls:     make([]MockCall, 0),
	}
}

func (m *MockTransferSource) GetSafeBlockNumber(ctx context.Context) (int64, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetSafeBlockNumber"})
	m.mu.Unlock()

	if m.GetSafeBlockNumberFunc != nil {
		return m.GetSafeBlockNumberFunc(ctx)
	}
	return m.SafeBlock, nil
}

func (m *MockTransferSource) FetchWalletTransfers(ctx context.Context, wallet string, tokenAddresses []string, fromBlock, toBlock int64) (*ethereum.FetchResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "FetchWalletTransfers", Args: []interface{}{wallet, tokenAddresses, fromBlock, toBlock}})
	m.mu.Unlock()

	if m.FetchWalletTransfersFunc != nil {
		return m.FetchWalletTransfersFunc(ctx, wallet, tokenAddresses, fromBlock, toBlock)
	}

	result := &ethereum.FetchResult{
		Transfers: []ethereum.TokenTransfer{},
		FromBlock: fromBlock,
		ToBlock:   toBlock,
	}
	for _, t := range m.Transfers {
		if t.BlockNumber >= fromBlock && t.BlockNumber <= toBlock {
			result.Transfers = append(result.Transfers, t)
		}
	}
	return result, nil
}

// MockPriceSource is a mock implementation of PriceSource
type MockPriceSource struct {
	mu     sync.Mutex
	Prices map[string]entities.TokenPrice

	Calls []MockCall
}

func NewMockPriceSource(prices map[string]entities.TokenPrice) *MockPriceSource {
	return &MockPriceSource{
		Prices: prices,
		Calls:  make([]MockCall, 0),
	}
}

func (m *MockPriceSource) GetPrices(ctx context.Context, symbols []string) map[string]entities.TokenPrice {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "GetPrices", Args: []interface{}{symbols}})

	result := make(map[string]entities.TokenPrice)
	if len(symbols) == 0 {
		for k, v := range m.Prices {
			result[k] = v
		}
		return result
	}
	for _, s := range symbols {
		if p, ok := m.Prices[strings.ToUpper(s)]; ok {
			result[p.Symbol] = p
		}
	}
	return result
}

// MockHoldingsSource is a mock implementation of HoldingsSource
type MockHoldingsSource struct {
	mu       sync.Mutex
	Holdings map[string]*entities.Holdings

	Calls []MockCall
}

func NewMockHoldingsSource() *MockHoldingsSource {
	return &MockHoldingsSource{
		Holdings: make(map[string]*entities.Holdings),
		Calls:    make([]MockCall, 0),
	}
}

func (m *MockHoldingsSource) GetHoldings(ctx context.Context, walletAddress string) *entities.Holdings {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "GetHoldings", Args: []interface{}{walletAddress}})

	if h, ok := m.Holdings[strings.ToLower(walletAddress)]; ok {
		return h
	}
	return &entities.Holdings{
		WalletAddress: strings.ToLower(walletAddress),
		Quantities:    []entities.TokenQuantity{},
		Holdings:      []entities.ValuedHolding{},
	}
}

func (m *MockHoldingsSource) SetHoldings(h *entities.Holdings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Holdings[strings.ToLower(h.WalletAddress)] = h
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mu sync.RWMutex

	Healthy bool
	Error   error
	Calls   []MockCall
}

func NewMockHealthChecker(healthy bool) *MockHealthChecker {
	var err error
	if !healthy {
		err = errors.New("health check failed")
	}
	return &MockHealthChecker{
		Healthy: healthy,
		Error:   err,
		Calls:   make([]MockCall, 0),
	}
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "HealthCheck", Args: nil})
	m.mu.Unlock()

	return m.Error
}

func (m *MockHealthChecker) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Healthy = healthy
	if healthy {
		m.Error = nil
	} else {
		m.Error = errors.New("health check failed")
	}
}
