package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Ethereum node configuration
	Ethereum EthereumConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// API server configuration
	API APIConfig

	// Price feed configuration
	Prices PricesConfig

	// Tracked tokens and balance settings
	Balances BalancesConfig

	// Chat assistant configuration
	Chat ChatConfig

	// Swap quote configuration
	Swap SwapConfig

	// Background refresher configuration
	Refresher RefresherConfig

	// Logging configuration
	Log LogConfig
}

// EthereumConfig holds Ethereum node connection settings
type EthereumConfig struct {
	RPCURL         string        `envconfig:"ETH_RPC_URL" default:"http://localhost:8545"`
	ChainID        int64         `envconfig:"ETH_CHAIN_ID" default:"1"`
	RequestTimeout time.Duration `envconfig:"ETH_REQUEST_TIMEOUT" default:"30s"`
	MaxRetries     int           `envconfig:"ETH_MAX_RETRIES" default:"3"`
	RetryDelay     time.Duration `envconfig:"ETH_RETRY_DELAY" default:"1s"`
	RateLimit      float64       `envconfig:"ETH_RATE_LIMIT" default:"10"`
	RateBurst      int           `envconfig:"ETH_RATE_BURST" default:"5"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"copilot"`
	Password        string        `envconfig:"DB_PASSWORD" default:"copilot"`
	Name            string        `envconfig:"DB_NAME" default:"defi_copilot"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host      string `envconfig:"REDIS_HOST" default:"localhost"`
	Port      int    `envconfig:"REDIS_PORT" default:"6379"`
	Password  string `envconfig:"REDIS_PASSWORD" default:""`
	DB        int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"copilot:"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Host            string        `envconfig:"API_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"API_PORT" default:"8081"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"90s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    int           `envconfig:"API_RATE_LIMIT_RPS" default:"100"`
	CacheTTL        time.Duration `envconfig:"API_CACHE_TTL" default:"30s"`
}

// PricesConfig holds price feed settings
type PricesConfig struct {
	CoinGeckoURL   string        `envconfig:"PRICES_COINGECKO_URL" default:"https://api.coingecko.com/api/v3"`
	APIKey         string        `envconfig:"PRICES_COINGECKO_API_KEY" default:""`
	CacheTTL       time.Duration `envconfig:"PRICES_CACHE_TTL" default:"60s"`
	RequestTimeout time.Duration `envconfig:"PRICES_REQUEST_TIMEOUT" default:"10s"`
	MaxRetries     int           `envconfig:"PRICES_MAX_RETRIES" default:"2"`
	RetryDelay     time.Duration `envconfig:"PRICES_RETRY_DELAY" default:"2s"`
}

// BalancesConfig holds the tracked token registry and balance cache settings.
// Each token is "SYMBOL:address:decimals:coingecko-id"; the native token has
// an empty address and decimals may be left empty to resolve them on-chain.
type BalancesConfig struct {
	Tokens   []string      `envconfig:"BALANCES_TOKENS" default:"ETH::18:ethereum,WBTC:0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599:8:bitcoin,USDC:0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48:6:usd-coin,USDT:0xdAC17F958D2ee523a2206206994597C13D831ec7:6:tether,UNI:0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984:18:uniswap,AAVE:0x7Fc66500c84A76Ad7e9c93437bFc5Ac33E2DDaE9:18:aave"`
	CacheTTL time.Duration `envconfig:"BALANCES_CACHE_TTL" default:"30s"`
}

// ChatConfig holds chat assistant settings
type ChatConfig struct {
	AnthropicAPIKey  string        `envconfig:"ANTHROPIC_API_KEY" default:""`
	Model            string        `envconfig:"CHAT_MODEL" default:"claude-sonnet-4-20250514"`
	MaxTokens        int64         `envconfig:"CHAT_MAX_TOKENS" default:"1024"`
	RequestTimeout   time.Duration `envconfig:"CHAT_REQUEST_TIMEOUT" default:"60s"`
	RateLimitPerHour int           `envconfig:"CHAT_RATE_LIMIT_PER_HOUR" default:"50"`
	HistoryLimit     int           `envconfig:"CHAT_HISTORY_LIMIT" default:"20"`
	MaxMessageLength int           `envconfig:"CHAT_MAX_MESSAGE_LENGTH" default:"4000"`
}

// SwapConfig holds DEX aggregator settings
type SwapConfig struct {
	BaseURL        string        `envconfig:"SWAP_BASE_URL" default:"https://api.1inch.dev/swap/v5.2"`
	APIKey         string        `envconfig:"SWAP_API_KEY" default:""`
	RequestTimeout time.Duration `envconfig:"SWAP_REQUEST_TIMEOUT" default:"10s"`
}

// RefresherConfig holds background refresher settings
type RefresherConfig struct {
	MetricsPort        int           `envconfig:"REFRESHER_METRICS_PORT" default:"8080"`
	PriceInterval      time.Duration `envconfig:"REFRESHER_PRICE_INTERVAL" default:"60s"`
	BalanceInterval    time.Duration `envconfig:"REFRESHER_BALANCE_INTERVAL" default:"30s"`
	HistoryInterval    time.Duration `envconfig:"REFRESHER_HISTORY_INTERVAL" default:"1m"`
	WorkerCount        int           `envconfig:"REFRESHER_WORKER_COUNT" default:"4"`
	BatchSize          int           `envconfig:"REFRESHER_BATCH_SIZE" default:"2000"`
	BlockConfirmations int           `envconfig:"REFRESHER_BLOCK_CONFIRMATIONS" default:"12"`
	LookbackBlocks     int64         `envconfig:"REFRESHER_LOOKBACK_BLOCKS" default:"50000"`

	// Wallets kept warm and imported (comma-separated addresses)
	TrackedWallets []string `envconfig:"REFRESHER_TRACKED_WALLETS" default:""`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
