package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang-pool-streamer/internal/backfill"
	"golang-pool-streamer/internal/chain"
	"golang-pool-streamer/internal/holders"
	"golang-pool-streamer/internal/hub"
	"golang-pool-streamer/internal/retry"
	"golang-pool-streamer/internal/server"
	"golang-pool-streamer/internal/utils"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// maxRetryAttempts bounds RETRY_MAX_ATTEMPTS; the last wait is already
// BaseDelay * 2^19.
const maxRetryAttempts = 20

// Live sources for the tail listener.
const (
	LiveSourceLogs        = "logs"
	LiveSourceYellowstone = "yellowstone"
)

// Config holds all configuration for the pool streamer
type Config struct {
	// HTTP Settings
	Port         int
	HistoryCount int

	// RPC Settings
	RPCEndpoint string
	WSEndpoint  string
	Commitment  string

	// Pool Configuration
	PoolAddress string
	TokenMint   string
	BaseMint    string
	PoolInfoURL string

	// Live source
	LiveSource   string
	GRPCEndpoint string
	GRPCToken    string

	// Retry Settings
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	// Stream Settings
	HistoryCapacity int
	ReplayLimit     int
	KeepAlive       time.Duration
	HolderCacheTTL  time.Duration
	BackfillPause   time.Duration
	StreamBuffer    int

	// Logging
	LogLevel  string
	LogFile   string
	AccessLog string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	config := &Config{}

	config.Port = getEnvInt("PORT", 8080)
	config.HistoryCount = getEnvInt("HISTORY_COUNT", 1000)

	config.RPCEndpoint = getEnv("RPC_ENDPOINT", "https://api.mainnet-beta.solana.com")
	config.WSEndpoint = getEnv("WS_ENDPOINT", chain.WebSocketEndpoint(config.RPCEndpoint))
	config.Commitment = strings.ToLower(getEnv("COMMITMENT", string(rpc.CommitmentConfirmed)))

	// SOL/USDC Raydium AMM v4 pool
	config.PoolAddress = getEnv("POOL_ADDRESS", "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2")
	config.TokenMint = getEnv("TOKEN_MINT", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	config.BaseMint = getEnv("BASE_MINT", "So11111111111111111111111111111111111111112")
	config.PoolInfoURL = getEnv("POOL_INFO_URL", "https://api-v3.raydium.io/pools/info/ids?ids=%s")

	config.LiveSource = strings.ToLower(getEnv("LIVE_SOURCE", LiveSourceLogs))
	config.GRPCEndpoint = getEnv("GRPC_ENDPOINT", "")
	config.GRPCToken = getEnv("GRPC_TOKEN", "")

	config.RetryMaxAttempts = getEnvInt("RETRY_MAX_ATTEMPTS", retry.DefaultMaxAttempts)
	config.RetryBaseDelay = getEnvMillis("RETRY_BASE_DELAY_MS", retry.DefaultBaseDelay)

	config.HistoryCapacity = getEnvInt("HISTORY_CAPACITY", hub.DefaultCapacity)
	config.ReplayLimit = getEnvInt("REPLAY_LIMIT", hub.DefaultReplayLimit)
	config.KeepAlive = getEnvSeconds("KEEPALIVE_SECONDS", hub.DefaultKeepAlive)
	config.HolderCacheTTL = getEnvSeconds("HOLDER_CACHE_TTL_SECONDS", holders.DefaultTTL)
	config.BackfillPause = getEnvMillis("BACKFILL_PAUSE_MS", backfill.DefaultPause)
	config.StreamBuffer = getEnvInt("STREAM_BUFFER", server.DefaultStreamBuffer)

	config.LogLevel = getEnv("LOG_LEVEL", "info")
	config.LogFile = getEnv("LOG_FILE", "")
	config.AccessLog = getEnv("ACCESS_LOG", "")

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got: %d", c.Port)
	}

	if c.HistoryCount < 0 {
		return fmt.Errorf("HISTORY_COUNT must be non-negative, got: %d", c.HistoryCount)
	}

	for key, value := range map[string]string{
		"POOL_ADDRESS": c.PoolAddress,
		"TOKEN_MINT":   c.TokenMint,
		"BASE_MINT":    c.BaseMint,
	} {
		if _, err := solana.PublicKeyFromBase58(value); err != nil {
			return fmt.Errorf("%s is not a valid address %q: %w", key, value, err)
		}
	}

	if c.TokenMint == c.BaseMint {
		return fmt.Errorf("TOKEN_MINT and BASE_MINT must differ, got: %s", c.TokenMint)
	}

	switch rpc.CommitmentType(c.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fmt.Errorf("COMMITMENT must be processed, confirmed or finalized, got: %s", c.Commitment)
	}

	switch c.LiveSource {
	case LiveSourceLogs:
	case LiveSourceYellowstone:
		if c.GRPCEndpoint == "" {
			return fmt.Errorf("GRPC_ENDPOINT is required when LIVE_SOURCE=%s", LiveSourceYellowstone)
		}
	default:
		return fmt.Errorf("LIVE_SOURCE must be %s or %s, got: %s", LiveSourceLogs, LiveSourceYellowstone, c.LiveSource)
	}

	if c.RetryMaxAttempts < 0 || c.RetryMaxAttempts > maxRetryAttempts {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be between 0 and %d, got: %d", maxRetryAttempts, c.RetryMaxAttempts)
	}

	if c.HistoryCapacity < 1 {
		return fmt.Errorf("HISTORY_CAPACITY must be at least 1, got: %d", c.HistoryCapacity)
	}

	if c.ReplayLimit < 1 {
		return fmt.Errorf("REPLAY_LIMIT must be at least 1, got: %d", c.ReplayLimit)
	}

	if c.StreamBuffer < 1 {
		return fmt.Errorf("STREAM_BUFFER must be at least 1, got: %d", c.StreamBuffer)
	}

	return nil
}

// CommitmentType returns the configured commitment for the RPC client.
func (c *Config) CommitmentType() rpc.CommitmentType {
	return rpc.CommitmentType(c.Commitment)
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// PoolInfoEndpoint returns the pool-info URL with the pool address filled in.
func (c *Config) PoolInfoEndpoint() string {
	if strings.Contains(c.PoolInfoURL, "%s") {
		return fmt.Sprintf(c.PoolInfoURL, c.PoolAddress)
	}
	return c.PoolInfoURL
}

// LogConfig logs the current configuration
func (c *Config) LogConfig() {
	logrus.WithFields(logrus.Fields{
		"port":          c.Port,
		"rpc_endpoint":  utils.SanitizeURL(c.RPCEndpoint),
		"ws_endpoint":   utils.SanitizeURL(c.WSEndpoint),
		"pool":          utils.SanitizeAddress(c.PoolAddress),
		"token_mint":    utils.SanitizeAddress(c.TokenMint),
		"base_mint":     utils.SanitizeAddress(c.BaseMint),
		"commitment":    c.Commitment,
		"live_source":   c.LiveSource,
		"grpc_endpoint": utils.SanitizeURL(c.GRPCEndpoint),
		"grpc_token":    utils.SanitizeToken(c.GRPCToken),
		"history_count": c.HistoryCount,
		"stream_buffer": c.StreamBuffer,
		"log_file":      c.LogFile,
		"access_log":    c.AccessLog,
	}).Info("📋 Configuration loaded")
}

// Helper functions for environment variable handling

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		logrus.Warnf("Invalid integer value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	return getEnvDuration(key, time.Millisecond, defaultValue)
}

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	return getEnvDuration(key, time.Second, defaultValue)
}

func getEnvDuration(key string, unit, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n >= 0 {
			return time.Duration(n) * unit
		}
		logrus.Warnf("Invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
