package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"solana-wallet-pnl/internal/domain"
	"solana-wallet-pnl/internal/retry"
)

// Default oracle client values.
const (
	DefaultOracleTimeout = 15 * time.Second
	DefaultOracleRPS     = 5
)

// OracleClient calls the per-token price oracle API and the base-asset spot
// endpoint used as the last-resort fallback.
type OracleClient struct {
	priceBase string // per-token price API base URL
	spotURL   string // single SOL/USD spot endpoint
	client    *http.Client
	limiter   *rate.Limiter
	policy    retry.Policy
	logger    *logrus.Logger
}

// OracleOption configures OracleClient.
type OracleOption func(*OracleClient)

// WithOracleTimeout sets the HTTP timeout.
func WithOracleTimeout(d time.Duration) OracleOption {
	return func(c *OracleClient) {
		c.client.Timeout = d
	}
}

// WithOracleRetryPolicy sets the retry policy.
func WithOracleRetryPolicy(p retry.Policy) OracleOption {
	return func(c *OracleClient) {
		c.policy = p
	}
}

// WithOracleHTTPClient sets a custom http.Client.
func WithOracleHTTPClient(client *http.Client) OracleOption {
	return func(c *OracleClient) {
		c.client = client
	}
}

// WithOracleLogger sets the logger.
func WithOracleLogger(logger *logrus.Logger) OracleOption {
	return func(c *OracleClient) {
		c.logger = logger
	}
}

// NewOracleClient creates a price oracle client.
func NewOracleClient(priceBase, spotURL string, opts ...OracleOption) *OracleClient {
	c := &OracleClient{
		priceBase: priceBase,
		spotURL:   spotURL,
		client:    &http.Client{Timeout: DefaultOracleTimeout},
		limiter:   rate.NewLimiter(rate.Limit(DefaultOracleRPS), 1),
		policy:    retry.DefaultPolicy(),
		logger:    logrus.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// priceResponse is the oracle's per-token price payload.
type priceResponse struct {
	Data map[string]struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	} `json:"data"`
}

// TokenPrice returns the oracle's USD price for a mint, or (0, false, nil)
// when the oracle does not track it.
func (c *OracleClient) TokenPrice(ctx context.Context, mint string) (float64, bool, error) {
	u := fmt.Sprintf("%s/price/v2?ids=%s", c.priceBase, url.QueryEscape(mint))

	var resp priceResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return 0, false, err
	}

	entry, ok := resp.Data[mint]
	if !ok || entry.Price == "" {
		return 0, false, nil
	}
	price, err := strconv.ParseFloat(entry.Price, 64)
	if err != nil || price <= 0 {
		return 0, false, nil
	}
	return price, true, nil
}

// spotResponse is the base-asset spot payload.
type spotResponse struct {
	Solana struct {
		USD float64 `json:"usd"`
	} `json:"solana"`
}

// SolSpot returns the SOL/USD reference rate.
func (c *OracleClient) SolSpot(ctx context.Context) (float64, error) {
	var resp spotResponse
	if err := c.getJSON(ctx, c.spotURL, &resp); err != nil {
		return 0, err
	}
	if resp.Solana.USD <= 0 {
		return 0, fmt.Errorf("spot endpoint returned no rate")
	}
	return resp.Solana.USD, nil
}

// getJSON issues one rate-limited GET through the retry policy.
func (c *OracleClient) getJSON(ctx context.Context, u string, out interface{}) error {
	return c.policy.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read response: %v", domain.ErrUpstreamUnavailable, err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("price oracle rate limit hit")
			return domain.ErrRateLimited
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		return json.Unmarshal(body, out)
	})
}

// OracleSource adapts OracleClient's per-token endpoint to the Source chain.
type OracleSource struct {
	client *OracleClient
}

// NewOracleSource creates the oracle-backed price source.
func NewOracleSource(client *OracleClient) *OracleSource {
	return &OracleSource{client: client}
}

// Name implements Source.
func (s *OracleSource) Name() string {
	return domain.PriceSourceOracle
}

// Quote implements Source. The oracle serves spot prices only; a historical
// `at` is answered with the current price, which the pipeline accepts as a
// consistently-applied approximation.
func (s *OracleSource) Quote(ctx context.Context, mint string, _ time.Time) (*domain.PriceQuote, error) {
	price, ok, err := s.client.TokenPrice(ctx, mint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &domain.PriceQuote{
		Mint:       mint,
		Price:      price,
		Currency:   "USD",
		Source:     domain.PriceSourceOracle,
		FetchedAt:  time.Now(),
		Confidence: domain.ConfidenceExact,
	}, nil
}

var _ Source = (*OracleSource)(nil)

// SpotReferenceSource applies the single SOL/USD spot rate uniformly when
// per-token pricing is not attainable. Quotes for anything but SOL itself
// are explicitly estimated.
type SpotReferenceSource struct {
	client *OracleClient
}

// NewSpotReferenceSource creates the spot fallback source.
func NewSpotReferenceSource(client *OracleClient) *SpotReferenceSource {
	return &SpotReferenceSource{client: client}
}

// Name implements Source.
func (s *SpotReferenceSource) Name() string {
	return domain.PriceSourceSpot
}

// Quote implements Source.
func (s *SpotReferenceSource) Quote(ctx context.Context, mint string, _ time.Time) (*domain.PriceQuote, error) {
	spot, err := s.client.SolSpot(ctx)
	if err != nil {
		return nil, err
	}

	confidence := domain.ConfidenceEstimated
	if mint == domain.WSOLMint {
		confidence = domain.ConfidenceExact
	}

	return &domain.PriceQuote{
		Mint:       mint,
		Price:      spot,
		Currency:   "USD",
		Source:     domain.PriceSourceSpot,
		FetchedAt:  time.Now(),
		Confidence: confidence,
	}, nil
}

var _ Source = (*SpotReferenceSource)(nil)
