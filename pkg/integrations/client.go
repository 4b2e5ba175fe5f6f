package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pylock/pkg/cache"
	"github.com/matzehuels/pylock/pkg/httputil"
	"github.com/matzehuels/pylock/pkg/observability"
)

// Client provides shared HTTP functionality for package index clients.
// It handles caching, retry logic, and common request headers.
//
// All methods are safe for concurrent use.
type Client struct {
	http      *http.Client
	cache     cache.Cache
	keyer     cache.Keyer
	namespace string
	ttl       time.Duration
	headers   map[string]string
	attempts  int
	delay     time.Duration
	logger    *log.Logger
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithRetry sets the attempt count and initial delay for transient failures.
func WithRetry(attempts int, delay time.Duration) ClientOption {
	return func(c *Client) { c.attempts, c.delay = attempts, delay }
}

// WithKeyer sets the cache key layout, typically a [cache.ScopedKeyer] per
// index.
func WithKeyer(k cache.Keyer) ClientOption {
	return func(c *Client) { c.keyer = k }
}

// WithLogger logs retries at debug level.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client that caches responses in backend under
// namespace for ttl. Headers are applied to all requests made through this
// client; pass nil if none are needed.
func NewClient(backend cache.Cache, namespace string, ttl time.Duration, headers map[string]string, opts ...ClientOption) *Client {
	if backend == nil {
		backend = cache.NewNullCache()
	}
	c := &Client{
		http:      NewHTTPClient(),
		cache:     backend,
		keyer:     cache.NewDefaultKeyer(),
		namespace: namespace,
		ttl:       ttl,
		headers:   headers,
		attempts:  defaultAttempts,
		delay:     defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache returns the backend responses are stored in.
func (c *Client) Cache() cache.Cache { return c.cache }

// Keyer returns the key layout used by this client.
func (c *Client) Keyer() cache.Keyer { return c.keyer }

// Cached retrieves a value from cache or executes fetch and caches the result.
// If refresh is true, the cache is bypassed and fetch is always called.
// The fetch function should populate v; on success, v is stored in the cache.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	return c.cachedFor(ctx, c.keyer.HTTPKey(c.namespace, key), c.ttl, refresh, v, fetch)
}

// CachedImmutable is like [Client.Cached] for data that never changes once
// published. Entries are written without expiry.
func (c *Client) CachedImmutable(ctx context.Context, key string, v any, fetch func() error) error {
	return c.cachedFor(ctx, c.keyer.HTTPKey(c.namespace, key), 0, false, v, fetch)
}

func (c *Client) cachedFor(ctx context.Context, key string, ttl time.Duration, refresh bool, v any, fetch func() error) error {
	if !refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok && json.Unmarshal(data, v) == nil {
			return nil
		}
	}
	if err := c.Retry(ctx, fetch); err != nil {
		return err
	}
	if err := cache.SetJSON(ctx, c.cache, key, v, ttl); err != nil && c.logger != nil {
		c.logger.Debug("cache write failed", "key", key, "err", err)
	}
	return nil
}

// Retry runs fn with the client's retry policy.
func (c *Client) Retry(ctx context.Context, fn func() error) error {
	var notify httputil.Notify
	if c.logger != nil {
		notify = func(err error, next time.Duration) {
			c.logger.Debug("retrying", "namespace", c.namespace, "err", err, "in", next.Round(time.Millisecond))
		}
	}
	return httputil.RetryNotify(ctx, c.attempts, c.delay, fn, notify)
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	body, err := c.doRequest(ctx, url, headers)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// GetText performs an HTTP GET request and returns the response body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	data, err := c.GetBytes(ctx, url)
	return string(data), err
}

// GetBytes performs an HTTP GET request and returns the whole body, reading
// at most maxBody bytes.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	body, err := c.doRequest(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, maxBody))
	if err != nil {
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	return data, nil
}

func (c *Client) doRequest(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, http.MethodGet, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, http.MethodGet, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	hooks.OnResponse(ctx, http.MethodGet, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return ErrNotFound
	case code == http.StatusTooManyRequests || code >= 500:
		return httputil.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
