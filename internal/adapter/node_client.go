package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/babylon-scanner/internal/logging"
)

const (
	// maxResponseBytes bounds a single node API body
	maxResponseBytes = 16 << 20
	// errorSnippetBytes is how much of an error body is kept for diagnostics
	errorSnippetBytes = 256
)

// NodeClientConfig configures a NodeClient
type NodeClientConfig struct {
	BaseURL        string
	Timeout        time.Duration
	CacheTTL       time.Duration
	RequestsPerSec float64 // 0 disables the outbound throttle
	Burst          int
	HTTPClient     *http.Client
}

// FetchOptions controls caching for a single request
type FetchOptions struct {
	// Volatile requests (the chain head) bypass the cache in both directions
	Volatile bool
}

// NodeClient performs GET requests against the node API (LCD) and caches successful
// bodies by exact request path. It does not retry; callers decide on fallbacks.
type NodeClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	cache   *ResponseCache
	health  *healthTracker
	logger  *logging.Logger
}

// NewNodeClient creates a node API client
func NewNodeClient(cfg NodeClientConfig, logger *logging.Logger) *NodeClient {
	if logger == nil {
		logger = logging.Nop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}

	return &NodeClient{
		baseURL: cfg.BaseURL,
		http:    httpClient,
		timeout: cfg.Timeout,
		limiter: limiter,
		cache:   NewResponseCache(cfg.CacheTTL),
		health:  newHealthTracker(cfg.BaseURL),
		logger:  logger.WithField("component", "node_client"),
	}
}

// Cache exposes the response cache
func (c *NodeClient) Cache() *ResponseCache {
	return c.cache
}

// Health returns request statistics for the node API
func (c *NodeClient) Health() NodeHealth {
	h := c.health.Snapshot()
	h.Cache = c.cache.Stats()
	return h
}

// Fetch retrieves path and decodes the JSON body into out
func (c *NodeClient) Fetch(ctx context.Context, path string, opts FetchOptions, out interface{}) error {
	body, err := c.FetchRaw(ctx, path, opts)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return NewAdapterError("decode", path, 0, err)
	}
	return nil
}

// FetchRaw retrieves path and returns the raw body.
// The returned slice may be shared with other callers and must not be modified.
func (c *NodeClient) FetchRaw(ctx context.Context, path string, opts FetchOptions) ([]byte, error) {
	if opts.Volatile {
		return c.cache.Load(ctx, "volatile:"+path, func() ([]byte, error) {
			return c.do(ctx, path)
		})
	}

	if body, ok := c.cache.Get(path); ok {
		return body, nil
	}

	return c.cache.Load(ctx, path, func() ([]byte, error) {
		body, err := c.do(ctx, path)
		if err != nil {
			return nil, err
		}
		c.cache.Set(path, body)
		return body, nil
	})
}

// do issues one GET. The shared call must outlive the caller that started it,
// so it runs on a detached context bounded by the client timeout.
func (c *NodeClient) do(ctx context.Context, path string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(reqCtx); err != nil {
			return nil, NewAdapterError("throttle", path, 0, err)
		}
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, NewAdapterError("request", path, 0, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.health.RecordFailure(err)
		c.logger.WithField("path", path).WithError(err).Warn("node api request failed")
		return nil, NewAdapterError("fetch", path, 0, err)
	}
	defer func() {
		_ = resp.Body.Close() // nolint:errcheck // cleanup in defer
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.health.RecordFailure(err)
		return nil, NewAdapterError("read", path, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("unexpected status: %s", snippet(body))
		if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented {
			c.health.RecordFailure(statusErr)
		} else {
			c.health.RecordSuccess(time.Since(start))
		}
		c.logger.WithFields(map[string]interface{}{
			"path":   path,
			"status": resp.StatusCode,
		}).Debug("node api returned non-success status")
		return nil, NewAdapterError("fetch", path, resp.StatusCode, statusErr)
	}

	c.health.RecordSuccess(time.Since(start))
	return body, nil
}

func snippet(body []byte) string {
	if len(body) > errorSnippetBytes {
		return string(body[:errorSnippetBytes]) + "..."
	}
	return string(body)
}
