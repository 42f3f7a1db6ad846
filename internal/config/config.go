// Package config loads application configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default endpoints for the public upstreams.
const (
	DefaultRPCEndpoint = "https://mainnet.helius-rpc.com"
	DefaultAPIBase     = "https://api.helius.xyz"
	DefaultOracleBase  = "https://lite-api.jup.ag"
	DefaultSolSpotURL  = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"
)

// Config holds all app configuration.
type Config struct {
	// Upstream APIs
	HeliusRPCEndpoint string
	HeliusAPIBase     string
	HeliusAPIKey      string
	HeliusRPS         int
	OracleBase        string
	SolSpotURL        string
	HTTPTimeout       time.Duration
	RetryMaxAttempts  int

	// Extraction
	PageLimit        int
	MaxEmptyPages    int
	BatchSize        int
	FetchConcurrency int
	RunTimeout       time.Duration

	// Pricing
	PriceCacheTTL time.Duration
	// PriceSources selects the active source chain, in order.
	// Known names: implied, oracle, spot.
	PriceSources []string

	// Positions
	DustThresholdUSD float64
	MinNativeBalance float64

	// Snapshot cache
	SnapshotTTL time.Duration

	// Server
	HTTPPort string

	// PostgreSQL
	PostgresDSN string

	// ClickHouse archive, optional
	ClickHouseDSN string

	// Redis snapshot cache, optional
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// App settings
	LogLevel string
	Debug    bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	// Missing .env is fine, real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		HeliusRPCEndpoint: getEnv("HELIUS_RPC_ENDPOINT", DefaultRPCEndpoint),
		HeliusAPIBase:     getEnv("HELIUS_API_BASE", DefaultAPIBase),
		HeliusAPIKey:      getEnv("HELIUS_API_KEY", ""),
		HeliusRPS:         getEnvAsInt("HELIUS_RPS", 10),
		OracleBase:        getEnv("PRICE_ORACLE_BASE", DefaultOracleBase),
		SolSpotURL:        getEnv("SOL_SPOT_URL", DefaultSolSpotURL),
		HTTPTimeout:       getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
		RetryMaxAttempts:  getEnvAsInt("RETRY_MAX_ATTEMPTS", 4),

		PageLimit:        getEnvAsInt("PAGE_LIMIT", 1000),
		MaxEmptyPages:    getEnvAsInt("MAX_EMPTY_PAGES", 3),
		BatchSize:        getEnvAsInt("BATCH_SIZE", 100),
		FetchConcurrency: getEnvAsInt("FETCH_CONCURRENCY", 10),
		RunTimeout:       getEnvAsDuration("RUN_TIMEOUT", 5*time.Minute),

		PriceCacheTTL: getEnvAsDuration("PRICE_CACHE_TTL", 30*time.Second),
		PriceSources:  getEnvAsSlice("PRICE_SOURCES", []string{"implied", "oracle", "spot"}, ","),

		DustThresholdUSD: getEnvAsFloat("DUST_THRESHOLD_USD", 0.01),
		MinNativeBalance: getEnvAsFloat("MIN_NATIVE_BALANCE", 0.001),

		SnapshotTTL: getEnvAsDuration("SNAPSHOT_TTL", 30*time.Second),

		HTTPPort: getEnv("HTTP_PORT", "8080"),

		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		ClickHouseDSN: getEnv("CLICKHOUSE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		Debug:    getEnvAsBool("DEBUG", false),
	}

	if cfg.HeliusAPIKey == "" {
		return nil, fmt.Errorf("HELIUS_API_KEY is required")
	}

	return cfg, nil
}

// Helper functions for parsing environment variables
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := getEnv(key, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultVal
	}
	return strings.Split(valStr, sep)
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	valStr := getEnv(key, "")
	if val, err := time.ParseDuration(valStr); err == nil {
		return val
	}
	return defaultVal
}
