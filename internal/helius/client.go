// Package helius implements the upstream transaction index client:
// JSON-RPC signature pagination plus the enhanced transactions REST API.
package helius

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"solana-wallet-pnl/internal/domain"
	"solana-wallet-pnl/internal/observability"
	"solana-wallet-pnl/internal/retry"
)

// Default configuration values.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultRequestsPerSec = 10
	// MaxSignaturesPerPage is the upstream page cap for getSignaturesForAddress.
	MaxSignaturesPerPage = 1000
	// MaxTransactionsPerBatch is the upstream cap for one parsed-transactions call.
	MaxTransactionsPerBatch = 100
)

// Client talks to the upstream index over HTTP with retries, backoff, and a
// shared rate limiter across both endpoints.
type Client struct {
	rpcEndpoint string
	apiBase     string
	apiKey      string
	client      *http.Client
	limiter     *rate.Limiter
	policy      retry.Policy
	logger      *logrus.Logger
	requestID   atomic.Uint64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithRetryPolicy sets the retry policy for upstream calls.
func WithRetryPolicy(p retry.Policy) ClientOption {
	return func(c *Client) {
		c.policy = p
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *logrus.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new upstream index client. rpcEndpoint serves JSON-RPC
// (signature pagination), apiBase serves the enhanced transactions REST API.
func NewClient(rpcEndpoint, apiBase, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		rpcEndpoint: rpcEndpoint,
		apiBase:     apiBase,
		apiKey:      apiKey,
		client:      &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRequestsPerSec), 1),
		policy:      retry.DefaultPolicy(),
		logger:      logrus.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// GetSignaturesForAddress retrieves one page of signatures for an address,
// newest first. An empty page is a valid result, not an error.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error) {
	config := make(map[string]interface{})
	if opts != nil {
		if opts.Before != "" {
			config["before"] = opts.Before
		}
		if opts.Until != "" {
			config["until"] = opts.Until
		}
		if opts.Limit > 0 {
			config["limit"] = opts.Limit
		}
	}

	params := []interface{}{address}
	if len(config) > 0 {
		params = append(params, config)
	}

	var result []SignatureInfo
	if err := c.callRPC(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetParsedTransactions resolves a batch of signatures to enhanced
// transaction bodies. Unknown signatures are simply absent from the result.
func (c *Client) GetParsedTransactions(ctx context.Context, signatures []string) ([]EnhancedTransaction, error) {
	if len(signatures) == 0 {
		return nil, nil
	}
	if len(signatures) > MaxTransactionsPerBatch {
		return nil, fmt.Errorf("batch of %d exceeds upstream cap %d", len(signatures), MaxTransactionsPerBatch)
	}

	url := fmt.Sprintf("%s/v0/transactions?api-key=%s", c.apiBase, c.apiKey)
	reqBody, err := json.Marshal(map[string][]string{"transactions": signatures})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var txns []EnhancedTransaction
	err = c.policy.Do(ctx, func(ctx context.Context) error {
		body, err := c.post(ctx, url, reqBody)
		if err != nil {
			return err
		}
		txns = txns[:0]
		if err := json.Unmarshal(body, &txns); err != nil {
			return fmt.Errorf("unmarshal transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txns, nil
}

// callRPC performs a JSON-RPC call through the retry policy.
func (c *Client) callRPC(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return c.policy.Do(ctx, func(ctx context.Context) error {
		body, err := c.post(ctx, c.rpcEndpoint, reqBody)
		if err != nil {
			return err
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(body, &rpcResp); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		if rpcResp.Error != nil {
			// RPC-level errors are not transport failures and are not retried.
			return rpcResp.Error
		}
		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	})
}

// post issues one rate-limited HTTP POST and classifies transport failures
// into the pipeline error taxonomy.
func (c *Client) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		observability.RecordUpstreamError("transport")
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.RecordUpstreamError("transport")
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WithField("url", url).Warn("upstream rate limit hit")
		observability.RecordUpstreamError("rate_limited")
		return nil, domain.ErrRateLimited
	case resp.StatusCode >= 500:
		observability.RecordUpstreamError("unavailable")
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
