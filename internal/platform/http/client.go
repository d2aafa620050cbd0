package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Default delay before retrying after HTTP 429 when the server does not
// send a usable Retry-After header.
const defaultRetryAfter = 60 * time.Second

// ErrRateLimited marks a request that kept hitting HTTP 429 until the
// retry attempts ran out.
var ErrRateLimited = errors.New("rate limited by provider")

// Client is a wrapper for HTTP client with rate limiting and retries.
// The limiter enforces a minimum interval between outbound calls across
// every caller sharing the client.
type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter

	maxAttempts    int
	backoffInitial time.Duration
	logger         zerolog.Logger
}

// ClientOptions holds options for creating a new Client
type ClientOptions struct {
	Timeout        time.Duration
	CallsPerMinute int
	MaxAttempts    int
}

// NewClient creates a new HTTP client with rate limiting
func NewClient(opts ClientOptions) *Client {
	// Set default values if not provided
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.CallsPerMinute == 0 {
		opts.CallsPerMinute = 50
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: opts.Timeout,
		},
		Limiter:        rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.CallsPerMinute)), 1),
		maxAttempts:    opts.MaxAttempts,
		backoffInitial: time.Second,
		logger:         log.With().Str("component", "http_client").Logger(),
	}
}

// DoRequest performs an HTTP request with rate limiting and retries.
// Transient network errors are retried with exponential backoff, HTTP 429
// after the server-supplied Retry-After delay; any other non-200 status
// fails immediately.
func (c *Client) DoRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	attempt := 0

	operation := func() error {
		attempt++

		// The limiter gates every attempt, not just the first one.
		if err := c.Limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		r, err := c.HTTPClient.Do(req)
		if err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Request failed")
			return err
		}

		switch {
		case r.StatusCode == http.StatusOK:
			resp = r
			return nil
		case r.StatusCode == http.StatusTooManyRequests:
			delay := retryAfterDelay(r.Header.Get("Retry-After"))
			r.Body.Close()
			c.logger.Warn().
				Dur("wait", delay).
				Int("attempt", attempt).
				Msg("Rate limited by provider, waiting before retry")
			if err := sleepContext(ctx, delay); err != nil {
				return backoff.Permanent(err)
			}
			return ErrRateLimited
		default:
			r.Body.Close()
			return backoff.Permanent(&StatusError{StatusCode: r.StatusCode})
		}
	}

	// 1s, 2s, ... between transient failures.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.backoffInitial
	expBackoff.Multiplier = 2
	expBackoff.RandomizationFactor = 0

	strategy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(c.maxAttempts-1)), ctx)
	if err := backoff.Retry(operation, strategy); err != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", attempt, err)
	}

	return resp, nil
}

// retryAfterDelay parses a Retry-After header value in seconds, falling
// back to defaultRetryAfter when absent or unparsable.
func retryAfterDelay(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StatusError represents an error due to a non-200 HTTP status code
type StatusError struct {
	StatusCode int
}

// Error implements the error interface
func (e *StatusError) Error() string {
	return "unexpected status code: " + strconv.Itoa(e.StatusCode)
}
