package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"solana-wallet-pnl/internal/domain"
	"solana-wallet-pnl/internal/retry"
)

func noRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 1}
}

func TestOracleClient_TokenPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/price/v2" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		mint := r.URL.Query().Get("ids")
		fmt.Fprintf(w, `{"data":{"%s":{"id":"%s","price":"1.25"}}}`, mint, mint)
	}))
	defer server.Close()

	c := NewOracleClient(server.URL, "", WithOracleRetryPolicy(noRetry()))

	price, ok, err := c.TokenPrice(context.Background(), mintTOKA)
	if err != nil {
		t.Fatalf("TokenPrice failed: %v", err)
	}
	if !ok || price != 1.25 {
		t.Errorf("Expected (1.25, true), got (%v, %v)", price, ok)
	}
}

func TestOracleClient_UntrackedMint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{}}`)
	}))
	defer server.Close()

	c := NewOracleClient(server.URL, "", WithOracleRetryPolicy(noRetry()))

	_, ok, err := c.TokenPrice(context.Background(), mintTOKA)
	if err != nil {
		t.Fatalf("TokenPrice failed: %v", err)
	}
	if ok {
		t.Error("Expected untracked mint to report ok=false, not an error")
	}
}

func TestOracleClient_ServerErrorClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewOracleClient(server.URL, "", WithOracleRetryPolicy(noRetry()))

	_, _, err := c.TokenPrice(context.Background(), mintTOKA)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable, got: %v", err)
	}
}

func TestOracleClient_RateLimitClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewOracleClient(server.URL, "", WithOracleRetryPolicy(noRetry()))

	_, _, err := c.TokenPrice(context.Background(), mintTOKA)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got: %v", err)
	}
}

func TestOracleClient_RetriesTransientFailure(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"solana":{"usd":150.5}}`)
	}))
	defer server.Close()

	c := NewOracleClient("", server.URL, WithOracleRetryPolicy(retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
	}))

	spot, err := c.SolSpot(context.Background())
	if err != nil {
		t.Fatalf("SolSpot failed: %v", err)
	}
	if spot != 150.5 {
		t.Errorf("Expected 150.5, got %v", spot)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestOracleClient_SpotMissingRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"solana":{"usd":0}}`)
	}))
	defer server.Close()

	c := NewOracleClient("", server.URL, WithOracleRetryPolicy(noRetry()))
	if _, err := c.SolSpot(context.Background()); err == nil {
		t.Error("Expected error for zero spot rate")
	}
}

func TestOracleSource_Quote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mint := r.URL.Query().Get("ids")
		fmt.Fprintf(w, `{"data":{"%s":{"id":"%s","price":"3.5"}}}`, mint, mint)
	}))
	defer server.Close()

	src := NewOracleSource(NewOracleClient(server.URL, "", WithOracleRetryPolicy(noRetry())))

	quote, err := src.Quote(context.Background(), mintTOKA, time.Now())
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if quote.Price != 3.5 || quote.Confidence != domain.ConfidenceExact {
		t.Errorf("Unexpected quote: %+v", quote)
	}
	if quote.Source != domain.PriceSourceOracle {
		t.Errorf("Expected oracle source, got %s", quote.Source)
	}
}

func TestSpotReferenceSource_Quote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"solana":{"usd":150}}`)
	}))
	defer server.Close()

	src := NewSpotReferenceSource(NewOracleClient("", server.URL, WithOracleRetryPolicy(noRetry())))
	ctx := context.Background()

	// For SOL itself the spot rate is exact.
	quote, err := src.Quote(ctx, domain.WSOLMint, time.Now())
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if quote.Price != 150 || quote.Confidence != domain.ConfidenceExact {
		t.Errorf("Unexpected SOL quote: %+v", quote)
	}

	// For anything else it is an explicit estimate.
	quote, err = src.Quote(ctx, mintTOKA, time.Now())
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if quote.Confidence != domain.ConfidenceEstimated {
		t.Errorf("Expected estimated confidence, got %s", quote.Confidence)
	}
}
