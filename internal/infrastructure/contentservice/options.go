package contentservice

import (
	"net/http"
	"time"

	"github.com/turtacn/pathway-overlay/internal/config"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-attempt timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d, Transport: c.httpClient.Transport}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRetryMax sets the number of retries after the first attempt.
func WithRetryMax(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retryMax = n
		}
	}
}

// WithRetryWait sets the backoff bounds.  lo must be positive; hi is kept
// only when it is not below lo.
func WithRetryWait(lo, hi time.Duration) Option {
	return func(c *Client) {
		if lo <= 0 {
			return
		}
		c.retryWaitMin = lo
		if hi >= lo {
			c.retryWaitMax = hi
		} else if c.retryWaitMax < lo {
			c.retryWaitMax = lo
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewFromConfig builds a client from the interactors section.
func NewFromConfig(cfg config.InteractorsConfig, logger logging.Logger) (*Client, error) {
	opts := []Option{
		WithLogger(logger),
		WithRetryMax(cfg.RetryMax),
		WithRetryWait(cfg.RetryWait, 8*cfg.RetryWait),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	return New(cfg.ServerURL, opts...)
}
