package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

const defaultHTTPTimeout = 12 * time.Second

// Client posts GraphQL queries against per-chain indexer endpoint lists.
// Endpoints are tried in priority order; any failure moves to the next one
// before the operation gives up.
type Client struct {
	endpoints  map[int64][]string
	httpClient *http.Client
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient constructs a client over the given per-chain endpoint lists.
func NewClient(endpoints map[int64][]string, opts ...Option) *Client {
	client := &Client{
		endpoints:  make(map[int64][]string, len(endpoints)),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for chain, list := range endpoints {
		cleaned := make([]string, 0, len(list))
		for _, endpoint := range list {
			if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			client.endpoints[chain] = cleaned
		}
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// HasChain reports whether any indexer endpoint is configured for a chain.
func (c *Client) HasChain(chainID int64) bool {
	return len(c.endpoints[chainID]) > 0
}

// query runs one GraphQL operation against the chain's endpoints, decoding
// the data payload into result.
func (c *Client) query(ctx context.Context, chainID int64, operation string, variables map[string]interface{}, result interface{}) error {
	endpoints := c.endpoints[chainID]
	if len(endpoints) == 0 {
		return fmt.Errorf("subgraph: no endpoints for chain %d", chainID)
	}
	var lastErr error
	for _, endpoint := range endpoints {
		err := c.queryEndpoint(ctx, endpoint, operation, variables, result)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		logx.WithContext(ctx).Infof("subgraph: endpoint %s failed: %v", endpoint, err)
	}
	return fmt.Errorf("subgraph: all %d endpoints failed for chain %d: %w", len(endpoints), chainID, lastErr)
}

func (c *Client) queryEndpoint(ctx context.Context, endpoint, operation string, variables map[string]interface{}, result interface{}) error {
	payload, err := json.Marshal(graphQLRequest{Query: operation, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if result != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
