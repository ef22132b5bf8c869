// Package mixpanel fetches funnel data from the Mixpanel query API and shapes it
// into per-group step counts.
package mixpanel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/mixbaba/mixbaba/pkg/apis/cache"
)

const (
	DefaultEndpoint = "https://mixpanel.com/api/2.0"
	DefaultCacheTTL = time.Hour
)

// Client is a client for the Mixpanel query API, authenticated with the project's API secret.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client

	secret   string
	cache    cache.Cache
	cacheTTL time.Duration
	limiter  *rateLimiter
}

// Option is a functional option for configuring the client
type Option func(*Client)

// WithEndpoint sets the API base URL, e.g. for the EU data residency endpoint
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.Endpoint = strings.TrimSuffix(endpoint, "/")
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = httpClient
	}
}

// WithCache caches successful responses for the given duration
func WithCache(cc cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cc
		c.cacheTTL = ttl
	}
}

// WithRateLimit spaces API requests at least interval apart, backing off when
// requests fail. Cached responses are not limited.
func WithRateLimit(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.limiter = newRateLimiter(interval)
		}
	}
}

// New creates a new Mixpanel API client
func New(secret string, opts ...Option) *Client {
	client := &Client{
		Endpoint: DefaultEndpoint,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		secret:   secret,
		cacheTTL: DefaultCacheTTL,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the rate limiter, if any.
func (c *Client) Close() {
	if c.limiter != nil {
		c.limiter.close()
	}
}

// FunnelInfo identifies a saved funnel.
type FunnelInfo struct {
	ID   int64  `json:"funnel_id"`
	Name string `json:"name"`
}

// ListFunnels returns the funnels saved in the project.
func (c *Client) ListFunnels(ctx context.Context) ([]FunnelInfo, error) {
	body, err := c.get(ctx, "funnels/list", url.Values{})
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, errors.New("unexpected funnels/list response, expected an array")
	}
	var funnels []FunnelInfo
	parsed.ForEach(func(_, f gjson.Result) bool {
		funnels = append(funnels, FunnelInfo{
			ID:   f.Get("funnel_id").Int(),
			Name: f.Get("name").String(),
		})
		return true
	})
	return funnels, nil
}

// Funnel returns the funnel counts broken down by experiment group and summed over the date range.
func (c *Client) Funnel(ctx context.Context, q FunnelQuery) (StepCounts, error) {
	params, err := q.Values()
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, "funnels", params)
	if err != nil {
		return nil, err
	}
	return AggregateFunnelData(body)
}

func (c *Client) get(ctx context.Context, method string, params url.Values) ([]byte, error) {
	params.Set("format", "json")
	requestURL := c.Endpoint + "/" + method + "/?" + params.Encode()
	logger := log.WithField("method", method)

	key := cacheKey(requestURL)
	if c.cache != nil {
		data, err := c.cache.Get(ctx, key)
		if err != nil {
			logger.WithError(err).Warn("error reading response from cache")
		} else if data != nil {
			logger.Debug("using cached response")
			return data, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.wait(ctx); err != nil {
			return nil, errors.Wrap(err, "waiting for rate limiter")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.SetBasicAuth(c.secret, "")
	req.Header.Set("Accept", "application/json")

	before := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if c.limiter != nil {
		c.limiter.updateRate(err != nil || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}
	logger.WithFields(log.Fields{
		"status":  resp.StatusCode,
		"elapsed": time.Since(before),
	}).Debug("mixpanel request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg := gjson.GetBytes(body, "error"); msg.Exists() {
			return nil, errors.Errorf("mixpanel %s returned %d: %s", method, resp.StatusCode, msg.String())
		}
		return nil, errors.Errorf("mixpanel %s returned %d: %s", method, resp.StatusCode, string(body))
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.Errorf("mixpanel %s returned invalid JSON", method)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, body, c.cacheTTL); err != nil {
			logger.WithError(err).Warn("error caching response")
		}
	}
	return body, nil
}

func cacheKey(requestURL string) string {
	sum := sha256.Sum256([]byte(requestURL))
	return "mixpanel:" + hex.EncodeToString(sum[:])
}
