package moralis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://deep-index.moralis.io/api/v2.2"
	defaultHTTPTimeout = 10 * time.Second
)

// Client wraps the Moralis deep-index REST API.
type Client struct {
	baseURL    string
	apiKey     string
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

// NewClient constructs a Moralis client. The API key is mandatory and is
// validated by the source constructor, not per request.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// statusError is a non-2xx HTTP reply; 4xx replies on lookups usually mean
// "token has no pool" and are treated as soft misses by the source.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.code, e.body)
}

func (e *statusError) softMiss() bool {
	return e.code == http.StatusNotFound || e.code == http.StatusBadRequest
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, result interface{}) error {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("moralis: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("moralis: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("moralis: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("moralis: decode response: %w", err)
		}
	}
	return nil
}

// getTokenPrice fetches the USD price and best pair for a token.
func (c *Client) getTokenPrice(ctx context.Context, chainSlug, token string) (*tokenPriceResponse, error) {
	query := url.Values{}
	query.Set("chain", chainSlug)
	var out tokenPriceResponse
	if err := c.getJSON(ctx, "/erc20/"+token+"/price", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// getTokenMetadata fetches static metadata for a token.
func (c *Client) getTokenMetadata(ctx context.Context, chainSlug, token string) (*tokenMetadataResponse, error) {
	query := url.Values{}
	query.Set("chain", chainSlug)
	query.Set("addresses[0]", token)
	var out []tokenMetadataResponse
	if err := c.getJSON(ctx, "/erc20/metadata", query, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// getPairOHLCV fetches one page of pre-aggregated candles for a pair.
func (c *Client) getPairOHLCV(ctx context.Context, chainSlug, pair, timeframe string, limit int, fromSec, toSec int64) (*ohlcvResponse, error) {
	query := url.Values{}
	query.Set("chain", chainSlug)
	query.Set("timeframe", timeframe)
	query.Set("currency", "usd")
	if fromSec > 0 {
		query.Set("fromDate", time.Unix(fromSec, 0).UTC().Format(time.RFC3339))
	}
	if toSec > 0 {
		query.Set("toDate", time.Unix(toSec, 0).UTC().Format(time.RFC3339))
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}
	var out ohlcvResponse
	if err := c.getJSON(ctx, "/pairs/"+pair+"/ohlcv", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
