// Package main provides the one-shot extraction CLI: walk a wallet's
// transaction history, rebuild its positions, and print the JSON report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"solana-wallet-pnl/internal/api"
	"solana-wallet-pnl/internal/config"
	"solana-wallet-pnl/internal/helius"
	"solana-wallet-pnl/internal/pipeline"
	"solana-wallet-pnl/internal/pricing"
	"solana-wallet-pnl/internal/retry"
	"solana-wallet-pnl/internal/storage/memory"
)

func main() {
	// Missing .env is fine, flags and the environment take over.
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	wallet := flag.String("wallet", "", "Wallet address to extract")
	apiKey := flag.String("api-key", os.Getenv("HELIUS_API_KEY"), "Helius API key")
	rpcEndpoint := flag.String("rpc-endpoint", envOr("HELIUS_RPC_ENDPOINT", config.DefaultRPCEndpoint), "Helius JSON-RPC endpoint")
	apiBase := flag.String("api-base", envOr("HELIUS_API_BASE", config.DefaultAPIBase), "Helius enhanced API base URL")
	oracleBase := flag.String("oracle-base", envOr("PRICE_ORACLE_BASE", config.DefaultOracleBase), "Price oracle base URL")
	solSpotURL := flag.String("sol-spot-url", envOr("SOL_SPOT_URL", config.DefaultSolSpotURL), "SOL/USD spot reference URL")
	priceSources := flag.String("price-sources", "implied,oracle,spot", "Comma-separated price source chain")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall run deadline")
	httpTimeout := flag.Duration("http-timeout", 30*time.Second, "Per-request upstream timeout")
	retryAttempts := flag.Int("retry-max-attempts", retry.DefaultMaxAttempts, "Max attempts per upstream call")
	pretty := flag.Bool("pretty", true, "Indent the JSON output")
	verbose := flag.Bool("verbose", false, "Verbose logging")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if *wallet == "" {
		logger.Fatal("--wallet is required")
	}
	if *apiKey == "" {
		logger.Fatal("--api-key or HELIUS_API_KEY is required")
	}

	// Create context with deadline and signal cancellation
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warnf("Received signal %v, cancelling extraction...", sig)
		cancel()
	}()

	policy := retry.DefaultPolicy()
	if *retryAttempts > 0 {
		policy.MaxAttempts = *retryAttempts
	}

	client := helius.NewClient(rpcURL(*rpcEndpoint, *apiKey), *apiBase, *apiKey,
		helius.WithTimeout(*httpTimeout),
		helius.WithRetryPolicy(policy),
		helius.WithLogger(logger),
	)
	oracle := pricing.NewOracleClient(*oracleBase, *solSpotURL,
		pricing.WithOracleTimeout(*httpTimeout),
		pricing.WithOracleRetryPolicy(policy),
		pricing.WithOracleLogger(logger),
	)
	implied := pricing.NewTradeImpliedSource(nil, oracle.SolSpot)
	resolver := pricing.NewResolver(pricing.ResolverOptions{
		Sources: pricing.NewChain(strings.Split(*priceSources, ","), implied, oracle),
		Logger:  logger,
	})

	tradeStore := memory.NewTradeStore()
	extractor := pipeline.New(pipeline.Options{
		Signatures:    client,
		Transactions:  client,
		Resolver:      resolver,
		Implied:       implied,
		TradeStore:    tradeStore,
		ProgressStore: memory.NewSyncProgressStore(),
		Logger:        logger,
	})

	snap, stats, err := extractor.Run(ctx, *wallet)
	if err != nil {
		logger.Fatalf("Extraction failed: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"pages":          stats.Pages,
		"signatures":     stats.Signatures,
		"parsed":         stats.Parsed,
		"open_positions": stats.OpenPositions,
		"price_coverage": stats.PriceCoverage,
		"incomplete":     stats.Incomplete,
		"duration":       stats.Duration,
	}).Info("extraction finished")

	trades, err := tradeStore.GetByWallet(ctx, *wallet)
	if err != nil {
		logger.Fatalf("Reading trades back failed: %v", err)
	}

	report := api.BuildReport(snap, trades)
	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(report); err != nil {
		logger.Fatalf("Encoding report failed: %v", err)
	}
}

// rpcURL appends the API key to the JSON-RPC endpoint unless the caller
// already put one in.
func rpcURL(endpoint, apiKey string) string {
	if strings.Contains(endpoint, "api-key=") {
		return endpoint
	}
	sep := "/?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%sapi-key=%s", strings.TrimRight(endpoint, "/"), sep, apiKey)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
