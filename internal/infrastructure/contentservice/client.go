// Package contentservice is the HTTP client of the interaction resource
// server.  It fetches interactor payloads and the list of available
// resources, retrying transient failures with jittered exponential backoff.
package contentservice

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

// Version is reported in the User-Agent header.
const Version = "0.1.0"

const basePath = "/ContentService/interactors"

// Client talks to one ContentService deployment.  It is safe for concurrent
// use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	userAgent    string
	logger       logging.Logger
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
}

// New creates a client for baseURL, which must be an absolute http(s) URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, errors.InvalidParam("invalid content service url").WithDetail(baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.InvalidParam("content service url scheme must be http or https").WithDetail(baseURL)
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		userAgent:    "pathway-overlay/" + Version,
		logger:       logging.NewNopLogger(),
		retryMax:     3,
		retryWaitMin: 500 * time.Millisecond,
		retryWaitMax: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("contentservice")
	return c, nil
}

// get performs a GET with retries and returns the 2xx body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	fullURL := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			c.logger.Debug("retrying request",
				logging.String("path", path),
				logging.Int("attempt", attempt),
				logging.Duration("backoff", backoff))
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "building request")
		}
		requestID := uuid.NewString()
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("X-Request-ID", requestID)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.Wrap(ctxErr, errors.ErrCodeTimeout, "request abandoned")
			}
			c.logger.Warn("request failed",
				logging.String("path", path),
				logging.String(logging.FieldRequestID, requestID),
				logging.Err(err))
			lastErr = errors.Wrap(err, errors.ErrCodeResourceLoad, "interactor resource unreachable")
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = errors.Wrap(err, errors.ErrCodeResourceLoad, "reading response body")
			continue
		}
		c.logger.Debug("request completed",
			logging.String("path", path),
			logging.Int("status", resp.StatusCode),
			logging.String(logging.FieldRequestID, requestID),
			logging.Duration("elapsed", time.Since(start)))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests && attempt < c.retryMax:
			lastErr = statusError(resp, body, requestID)
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				if err := sleep(ctx, time.Duration(secs)*time.Second); err != nil {
					return nil, err
				}
			}
			continue
		case resp.StatusCode >= 500:
			lastErr = statusError(resp, body, requestID)
			continue
		default:
			return nil, statusError(resp, body, requestID)
		}
	}
	return nil, lastErr
}

func statusError(resp *http.Response, body []byte, requestID string) *errors.AppError {
	detail := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if msg := strings.TrimSpace(string(body)); msg != "" && len(msg) <= 256 {
		detail += ": " + msg
	}
	detail += " [request_id=" + requestID + "]"
	return errors.New(errors.ErrCodeResourceLoad, "interactor resource request failed").WithDetail(detail)
}

// backoff is exponential in attempt with up to 25% jitter.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.retryWaitMin * time.Duration(1<<uint(attempt-1))
	if d > c.retryWaitMax || d <= 0 {
		d = c.retryWaitMax
	}
	if q := int64(d / 4); q > 0 {
		d += time.Duration(rand.Int63n(q))
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "request abandoned")
	}
}
