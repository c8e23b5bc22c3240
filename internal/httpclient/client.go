// Package httpclient is the JSON-over-HTTP client shared by the market data
// gateway and the swap client: rate limited, circuit broken, retried.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"launch-sniper/internal/logging"
	"launch-sniper/internal/observability"
	"launch-sniper/internal/retry"
)

// Default configuration values.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultRatePerSecond   = 10
	DefaultBurst           = 20
	DefaultMaxResponseSize = 4 * 1024 * 1024
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("resource not found")

// Client performs JSON requests against one upstream provider.
type Client struct {
	name            string
	httpClient      *http.Client
	rateLimiter     *rate.Limiter
	circuitBreaker  *gobreaker.CircuitBreaker
	retry           retry.Options
	maxResponseSize int64
	headers         map[string]string
	logger          *zap.Logger
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit sets requests per second and burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.rateLimiter = nil
			return
		}
		c.rateLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRetry sets retry behavior.
func WithRetry(opts retry.Options) Option {
	return func(c *Client) {
		c.retry = opts
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if value != "" {
			c.headers[key] = value
		}
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logging.OrNop(l)
	}
}

// New creates a client for the named provider.
func New(name string, opts ...Option) *Client {
	c := &Client{
		name:            name,
		httpClient:      &http.Client{Timeout: DefaultTimeout},
		rateLimiter:     rate.NewLimiter(rate.Limit(DefaultRatePerSecond), DefaultBurst),
		retry:           retry.DefaultOptions,
		maxResponseSize: DefaultMaxResponseSize,
		headers:         map[string]string{"Accept": "application/json"},
		logger:          zap.NewNop(),
	}
	c.circuitBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// GetJSON performs a GET and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	return c.do(ctx, http.MethodGet, url, nil, out)
}

// PostJSON marshals body, performs a POST and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, url string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, data, out)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, out interface{}) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	start := time.Now()
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	var respBody []byte
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, retry.Do(ctx, c.retry, func() error {
			b, err := c.once(ctx, method, url, body)
			if err != nil {
				return err
			}
			respBody = b
			return nil
		})
	})
	observability.RecordGatewayCall(c.name, time.Since(start).Seconds(), err)
	if err != nil {
		var he *retry.HTTPError
		if errors.As(err, &he) && he.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		c.logger.Debug("request failed",
			zap.String("provider", c.name),
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err))
		return fmt.Errorf("%s %s: %w", c.name, method, err)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

func (c *Client) once(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       data,
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return data, nil
}
