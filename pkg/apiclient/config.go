package apiclient

import (
	"fmt"
	"net/url"
	"time"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	defaultRetryUnit  = time.Second
)

// Config represents the configuration for the backend API client
type Config struct {
	// BaseURL is the backend origin including the API prefix, e.g. https://api.example.com/api
	BaseURL string

	// Timeout bounds a single attempt
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// RetryUnit is multiplied by the attempt number to get the backoff delay
	RetryUnit time.Duration
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("%w: base url: %v", ErrInvalidConfig, err)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.RetryUnit <= 0 {
		c.RetryUnit = defaultRetryUnit
	}
	return nil
}

// DefaultConfig returns the production retry policy for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Timeout:    defaultTimeout,
		MaxRetries: defaultMaxRetries,
		RetryUnit:  defaultRetryUnit,
	}
}
