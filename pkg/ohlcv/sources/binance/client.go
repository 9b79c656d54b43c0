package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	defaultMaxRetries  = 3
	defaultBackoffBase = 500 * time.Millisecond
)

// fallbackEndpoints are the public kline hosts tried after the configured
// primary. The order is fixed; a configured primary is simply prepended.
var fallbackEndpoints = []string{
	"https://api.binance.com",
	"https://api1.binance.com",
	"https://api2.binance.com",
	"https://api3.binance.com",
	"https://data-api.binance.vision",
}

// Client fetches Binance REST endpoints with endpoint fallback and bounded
// retry. One logical call walks every endpoint per attempt; transient
// failures move to the next endpoint, a 4xx aborts the whole operation.
type Client struct {
	endpoints   []string
	httpClient  *http.Client
	maxRetries  int
	backoffBase time.Duration
}

// Option configures a new Client.
type Option func(*Client)

// WithPrimaryEndpoint puts a custom base URL ahead of the public fallbacks.
func WithPrimaryEndpoint(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			c.endpoints = dedupeEndpoints(append([]string{trimmed}, c.endpoints...))
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

// WithMaxRetries adjusts the retry budget (full endpoint rounds).
func WithMaxRetries(max int) Option {
	return func(c *Client) {
		if max > 0 {
			c.maxRetries = max
		}
	}
}

// WithBackoffBase adjusts the base delay doubled between rounds.
func WithBackoffBase(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoffBase = d
		}
	}
}

// WithEndpoints replaces the endpoint list entirely, for tests.
func WithEndpoints(endpoints ...string) Option {
	return func(c *Client) {
		if len(endpoints) > 0 {
			c.endpoints = dedupeEndpoints(endpoints)
		}
	}
}

// NewClient constructs a Binance REST client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		endpoints:   append([]string(nil), fallbackEndpoints...),
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
		maxRetries:  defaultMaxRetries,
		backoffBase: defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func dedupeEndpoints(endpoints []string) []string {
	seen := make(map[string]struct{}, len(endpoints))
	out := make([]string, 0, len(endpoints))
	for _, endpoint := range endpoints {
		trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/")
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// statusError is a non-2xx HTTP reply.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.code, e.body)
}

// getJSON issues GET path?query against the endpoint list and decodes the
// reply into result. Worst-case latency is bounded by
// maxRetries * (endpoints * timeout + backoff).
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, result interface{}) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		for _, endpoint := range c.endpoints {
			err := c.tryEndpoint(ctx, endpoint, path, query, result)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !isTransient(err) {
				return fmt.Errorf("binance: %s%s: %w", endpoint, path, err)
			}
			lastErr = err
			logx.WithContext(ctx).Infof("binance: endpoint %s failed (attempt %d): %v", endpoint, attempt+1, err)
		}
		if attempt < c.maxRetries-1 {
			backoff := c.backoffBase << attempt
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("binance: all %d endpoints failed after %d attempts, last error: %w",
		len(c.endpoints), c.maxRetries, lastErr)
}

func (c *Client) tryEndpoint(ctx context.Context, endpoint, path string, query url.Values, result interface{}) error {
	requestURL := endpoint + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
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
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// isTransient classifies failures worth trying the next endpoint for:
// timeouts, resets, refused connections, DNS failures and generic network
// errors, plus 5xx replies. A 4xx means the request itself is wrong and
// retrying elsewhere cannot help.
func isTransient(err error) bool {
	var status *statusError
	if errors.As(err, &status) {
		return status.code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	// url.Error wraps most transport failures.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
