// Package main provides the wallet P&L HTTP service: on-demand extraction
// behind a snapshot cache, plus health, status, and Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"solana-wallet-pnl/internal/api"
	"solana-wallet-pnl/internal/config"
	"solana-wallet-pnl/internal/domain"
	"solana-wallet-pnl/internal/helius"
	"solana-wallet-pnl/internal/observability"
	"solana-wallet-pnl/internal/pipeline"
	"solana-wallet-pnl/internal/pricing"
	"solana-wallet-pnl/internal/retry"
	"solana-wallet-pnl/internal/snapshot"
	"solana-wallet-pnl/internal/solana"
	"solana-wallet-pnl/internal/storage"
	chstore "solana-wallet-pnl/internal/storage/clickhouse"
	"solana-wallet-pnl/internal/storage/memory"
	"solana-wallet-pnl/internal/storage/migrations"
	pgstore "solana-wallet-pnl/internal/storage/postgres"
	redisstore "solana-wallet-pnl/internal/storage/redis"
)

// Server holds the wired components of the service.
type Server struct {
	cfg       *config.Config
	stores    *allStores
	snapshots *snapshot.Service
	logger    *logrus.Logger

	// State
	mu            sync.Mutex
	started       time.Time
	reportsServed int
	lastReport    time.Time
}

// allStores holds the active storage backends. Archive and the Redis
// snapshot store stay nil when not configured.
type allStores struct {
	trades    storage.TradeStore
	progress  storage.SyncProgressStore
	snapshots storage.SnapshotStore
	archive   *chstore.TradeArchiveStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	server := newServer(cfg, stores, logger)

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.routes(),
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Infof("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("HTTP shutdown: %v", err)
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warnf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	logger.Infof("Listening on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server error: %v", err)
	}
	close(done)

	logger.Info("Shutdown complete")
}

// newServer wires the extraction pipeline and the snapshot cache.
func newServer(cfg *config.Config, stores *allStores, logger *logrus.Logger) *Server {
	policy := retry.DefaultPolicy()
	if cfg.RetryMaxAttempts > 0 {
		policy.MaxAttempts = cfg.RetryMaxAttempts
	}

	client := helius.NewClient(
		rpcURL(cfg.HeliusRPCEndpoint, cfg.HeliusAPIKey),
		cfg.HeliusAPIBase,
		cfg.HeliusAPIKey,
		helius.WithTimeout(cfg.HTTPTimeout),
		helius.WithRetryPolicy(policy),
		helius.WithRateLimit(float64(cfg.HeliusRPS)),
		helius.WithLogger(logger),
	)
	oracle := pricing.NewOracleClient(cfg.OracleBase, cfg.SolSpotURL,
		pricing.WithOracleTimeout(cfg.HTTPTimeout),
		pricing.WithOracleRetryPolicy(policy),
		pricing.WithOracleLogger(logger),
	)
	implied := pricing.NewTradeImpliedSource(nil, oracle.SolSpot)
	resolver := pricing.NewResolver(pricing.ResolverOptions{
		Sources: pricing.NewChain(cfg.PriceSources, implied, oracle),
		TTL:     cfg.PriceCacheTTL,
		Logger:  logger,
	})

	opts := pipeline.Options{
		Signatures:       client,
		Transactions:     client,
		Resolver:         resolver,
		Implied:          implied,
		TradeStore:       stores.trades,
		ProgressStore:    stores.progress,
		Metrics:          observability.DefaultMetrics,
		PageLimit:        cfg.PageLimit,
		MaxEmptyPages:    cfg.MaxEmptyPages,
		BatchSize:        cfg.BatchSize,
		Concurrency:      cfg.FetchConcurrency,
		DustThresholdUSD: cfg.DustThresholdUSD,
		MinNativeBalance: cfg.MinNativeBalance,
		Logger:           logger,
	}
	if stores.archive != nil {
		opts.Archive = stores.archive
	}
	extractor := pipeline.New(opts)

	snapshots := snapshot.NewService(snapshot.ServiceOptions{
		Computer: extractor,
		Store:    stores.snapshots,
		TTL:      cfg.SnapshotTTL,
		Logger:   logger,
		Metrics:  observability.DefaultMetrics,
	})

	return &Server{
		cfg:       cfg,
		stores:    stores,
		snapshots: snapshots,
		logger:    logger,
		started:   time.Now(),
	}
}

// createStores creates the storage backends. Without a Postgres DSN the
// service runs fully in memory; ClickHouse and Redis are each optional.
func createStores(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*allStores, func(), error) {
	stores := &allStores{
		trades:    memory.NewTradeStore(),
		progress:  memory.NewSyncProgressStore(),
		snapshots: memory.NewSnapshotStore(),
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		stores.trades = pgstore.NewTradeStore(pool)
		stores.progress = pgstore.NewSyncProgressStore(pool)
		logger.Info("Using PostgreSQL storage")
	}

	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		stores.archive = chstore.NewTradeArchiveStore(conn)
		logger.Info("Using ClickHouse trade archive")
	}

	if cfg.RedisAddr != "" {
		snapStore, err := redisstore.NewSnapshotStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 0)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		closers = append(closers, func() { snapStore.Close() })
		stores.snapshots = snapStore
		logger.Info("Using Redis snapshot cache")
	}

	return stores, cleanup, nil
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	mux.HandleFunc("GET /wallet/{address}/report", s.handleReport)
	mux.HandleFunc("POST /wallet/{address}/refresh", s.handleRefresh)

	return mux
}

// handleReport serves the wallet report from the snapshot cache, computing
// it on demand when stale or missing.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if err := solana.ValidateWalletAddress(address); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RunTimeout)
	defer cancel()

	snap, err := s.snapshots.Get(ctx, address)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"wallet": address,
			"error":  err,
		}).Error("report computation failed")
		writeError(w, statusFor(err), err.Error())
		return
	}

	trades, err := s.stores.trades.GetByWallet(ctx, address)
	if err != nil {
		// The snapshot stands on its own; serve it without the trade list.
		s.logger.WithFields(logrus.Fields{
			"wallet": address,
			"error":  err,
		}).Warn("loading trades for report failed")
		trades = nil
	}

	s.mu.Lock()
	s.reportsServed++
	s.lastReport = time.Now()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, api.BuildReport(snap, trades))
}

// handleRefresh marks the cached snapshot stale so the next report
// recomputes.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if err := solana.ValidateWalletAddress(address); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.snapshots.Invalidate(r.Context(), address); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "invalidated"})
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	ReportsServed int       `json:"reports_served"`
	LastReport    time.Time `json:"last_report,omitempty"`
	Postgres      bool      `json:"postgres"`
	ClickHouse    bool      `json:"clickhouse"`
	Redis         bool      `json:"redis"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.started).String(),
		ReportsServed: s.reportsServed,
		LastReport:    s.lastReport,
		Postgres:      s.cfg.PostgresDSN != "",
		ClickHouse:    s.cfg.ClickHouseDSN != "",
		Redis:         s.cfg.RedisAddr != "",
	})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUpstreamUnavailable), errors.Is(err, domain.ErrNoProgress):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
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
