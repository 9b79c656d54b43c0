package geckoterminal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://api.geckoterminal.com/api/v2"
	defaultHTTPTimeout = 10 * time.Second
)

// Client wraps the free GeckoTerminal API. No authentication; the vendor
// rate-limits by IP, so callers lean on caching rather than retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a new Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient constructs a GeckoTerminal client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.code, e.body)
}

func (e *statusError) softMiss() bool {
	return e.code == http.StatusNotFound
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, result interface{}) error {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("geckoterminal: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("geckoterminal: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("geckoterminal: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("geckoterminal: decode response: %w", err)
		}
	}
	return nil
}

// getTokenPools fetches the top pools for a token, most liquid first.
func (c *Client) getTokenPools(ctx context.Context, network, token string) (*poolsResponse, error) {
	var out poolsResponse
	path := "/networks/" + network + "/tokens/" + token + "/pools"
	if err := c.getJSON(ctx, path, url.Values{"page": {"1"}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// getPoolOHLCV fetches one page of candles for a pool. beforeSec bounds the
// page from the newer side; side selects which pool constituent the prices
// are quoted for ("base" or "quote").
func (c *Client) getPoolOHLCV(ctx context.Context, network, pool, timeframe string, aggregate, limit int, beforeSec int64, side string) (*ohlcvResponse, error) {
	query := url.Values{}
	query.Set("aggregate", strconv.Itoa(aggregate))
	query.Set("currency", "usd")
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if beforeSec > 0 {
		query.Set("before_timestamp", strconv.FormatInt(beforeSec, 10))
	}
	if side != "" {
		query.Set("token", side)
	}
	var out ohlcvResponse
	path := "/networks/" + network + "/pools/" + pool + "/ohlcv/" + timeframe
	if err := c.getJSON(ctx, path, query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
