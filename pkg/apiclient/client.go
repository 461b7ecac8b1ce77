package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ikkim/storefront/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RefreshTokenHeaders are the response headers the backend uses to hand out a rotated credential.
var RefreshTokenHeaders = []string{"X-Refresh-Token", "X-Auth-Token"}

// Credentials is the persisted bearer credential the client attaches to each call.
type Credentials interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Client is the single chokepoint for storefront backend calls
type Client struct {
	config         Config
	httpClient     *http.Client
	creds          Credentials
	onUnauthorized func()
	log            *logger.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a new backend client with the given configuration
func NewClient(config Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.WithContext(logger.Fields{"component": "apiclient"})
	}
	return c, nil
}

// GetConfig returns the client configuration
func (c *Client) GetConfig() Config {
	return c.config
}

// Bind returns a copy of the client that reads and persists creds and calls
// onUnauthorized after any 401. The HTTP client is shared.
func (c *Client) Bind(creds Credentials, onUnauthorized func()) *Client {
	bound := *c
	bound.creds = creds
	bound.onUnauthorized = onUnauthorized
	return &bound
}

// Get issues a GET and decodes the response into out (may be nil).
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	return c.decode(c.Send(ctx, http.MethodGet, path, nil))(out)
}

// Post issues a POST with payload and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, payload, out interface{}) error {
	return c.decode(c.Send(ctx, http.MethodPost, path, payload))(out)
}

// Put issues a PUT with payload and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, payload, out interface{}) error {
	return c.decode(c.Send(ctx, http.MethodPut, path, payload))(out)
}

// Delete issues a DELETE (payload optional) and decodes the response into out.
func (c *Client) Delete(ctx context.Context, path string, payload, out interface{}) error {
	return c.decode(c.Send(ctx, http.MethodDelete, path, payload))(out)
}

func (c *Client) decode(body json.RawMessage, err error) func(out interface{}) error {
	return func(out interface{}) error {
		if err != nil {
			return err
		}
		if out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to unmarshal backend response: %w", err)
		}
		return nil
	}
}

// Send performs method on path with payload, retrying transport failures and
// idempotent 5xx responses with linear backoff. The raw 2xx body is returned.
func (c *Client) Send(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error) {
	var reqBody []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = b
	}

	url := c.config.BaseURL + "/" + strings.TrimLeft(path, "/")

	var lastErr *Error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * c.config.RetryUnit
			c.log.Warn("Retrying backend request", logger.Fields{
				"method":  method,
				"path":    path,
				"attempt": attempt + 1,
				"delay":   delay.String(),
				"status":  lastErr.Status,
			})
			if err := wait(ctx, delay); err != nil {
				return nil, newNetworkError(err)
			}
		}

		body, err := c.do(ctx, method, url, reqBody)
		if err == nil {
			return body, nil
		}

		var apiErr *Error
		if !errors.As(err, &apiErr) {
			return nil, err
		}
		lastErr = apiErr

		if apiErr.Status == http.StatusUnauthorized {
			c.handleUnauthorized(ctx, method, path)
			return nil, apiErr
		}
		if !shouldRetry(ctx, method, apiErr) {
			break
		}
	}

	c.log.Warn("Backend request failed", logger.Fields{
		"method":  method,
		"path":    path,
		"status":  lastErr.Status,
		"message": lastErr.Message,
	})
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, method, url string, reqBody []byte) (json.RawMessage, error) {
	var body io.Reader
	if reqBody != nil {
		body = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.creds != nil {
		token, err := c.creds.Token(ctx)
		if err != nil {
			c.log.Error("Failed to read credential", err)
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.log.Debug("Backend request", logger.Fields{
		"method": method,
		"url":    url,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newNetworkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newNetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(resp.StatusCode, respBody)
	}

	c.persistRefreshedToken(ctx, resp.Header)

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil
	}
	return json.RawMessage(respBody), nil
}

func (c *Client) persistRefreshedToken(ctx context.Context, header http.Header) {
	if c.creds == nil {
		return
	}
	for _, name := range RefreshTokenHeaders {
		token := strings.TrimPrefix(header.Get(name), "Bearer ")
		if token == "" {
			continue
		}
		if err := c.creds.SetToken(ctx, token); err != nil {
			c.log.Error("Failed to persist refreshed credential", err)
		}
		return
	}
}

func (c *Client) handleUnauthorized(ctx context.Context, method, path string) {
	c.log.Warn("Backend rejected credential", logger.Fields{
		"method": method,
		"path":   path,
	})
	if c.creds != nil {
		if err := c.creds.ClearToken(context.WithoutCancel(ctx)); err != nil {
			c.log.Error("Failed to clear credential", err)
		}
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}
