package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/laurel/pkg/httpclient"
	"github.com/Ramsey-B/laurel/pkg/metrics"
	"github.com/Ramsey-B/laurel/pkg/redis"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// budgetKey is the single outbound rate limit bucket; the provider applies
// one budget per credential pair, not per endpoint
const budgetKey = "provider"

// Config holds the provider client configuration
type Config struct {
	BaseURL            string
	AccessKey          string
	SecretKey          string
	RateLimit          int64
	RateWindow         time.Duration
	MaxAttempts        int
	RetryAfterFallback time.Duration
}

// OutboundBudget is the shared request budget against the provider.
// *redis.RateLimiter is the production implementation.
type OutboundBudget interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redis.RateLimitResult, error)
	BlockFor(ctx context.Context, key string, d time.Duration) error
}

// Client is the signed HTTP client for the reservation provider. Every
// request spends from the shared outbound budget before it is sent.
type Client struct {
	cfg     Config
	signer  *Signer
	http    *httpclient.Client
	limiter OutboundBudget
	logger  ectologger.Logger
}

// NewClient creates a new provider client
func NewClient(cfg Config, http *httpclient.Client, limiter OutboundBudget, logger ectologger.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryAfterFallback <= 0 {
		cfg.RetryAfterFallback = 30 * time.Second
	}

	return &Client{
		cfg:     cfg,
		signer:  NewSigner(cfg.AccessKey, cfg.SecretKey),
		http:    http,
		limiter: limiter,
		logger:  logger,
	}
}

// SearchBookings fetches the bookings departing inside the window, trying
// each search variant in order and returning the first non-empty, non-error
// result. When every variant fails the last error propagates.
func (c *Client) SearchBookings(ctx context.Context, window Window) ([]Booking, error) {
	ctx, span := tracing.StartSpan(ctx, "ProviderClient.SearchBookings")
	defer span.End()

	var lastErr error
	for _, variant := range SearchVariants {
		resp, err := c.Do(ctx, variant.Method, variant.Path(window), variant.Body(window))
		if err != nil {
			c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"variant": variant.Name,
			}).Warn("booking search variant failed")
			lastErr = err
			if IsAuthenticationError(err) {
				// Credentials are variant-independent, no point trying the rest
				return nil, err
			}
			continue
		}

		bookings, err := decodeBookings(resp.Body)
		if err != nil {
			lastErr = err
			continue
		}
		if len(bookings) == 0 {
			c.logger.WithContext(ctx).WithFields(map[string]any{
				"variant": variant.Name,
			}).Debug("booking search variant returned no results")
			continue
		}

		c.logger.WithContext(ctx).WithFields(map[string]any{
			"variant":  variant.Name,
			"bookings": len(bookings),
		}).Infof("Fetched %d bookings from provider", len(bookings))
		return bookings, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// Do sends one signed request, enforcing the outbound budget and the 429
// retry policy. The returned response always has a 2xx status.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*httpclient.Response, error) {
	ctx, span := tracing.StartSpan(ctx, "ProviderClient.Do")
	defer span.End()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	for attempt := 1; ; attempt++ {
		if err := c.spendBudget(ctx); err != nil {
			return nil, err
		}

		headers := c.signer.Headers(time.Now(), method, path)
		if len(payload) > 0 {
			headers["Content-Type"] = "application/json"
		}

		req, err := httpclient.NewRequest(ctx, method, c.cfg.BaseURL+path, payload, headers)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(ctx, req)
		if err != nil {
			return nil, &TransportError{Err: err}
		}

		metrics.ProviderRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
		metrics.ProviderRequestDuration.WithLabelValues(method).Observe(resp.Duration.Seconds())

		switch {
		case httpclient.IsSuccessStatus(resp.StatusCode):
			return resp, nil

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, &AuthenticationError{
				StatusCode: resp.StatusCode,
				Message:    extractMessage(resp.Body),
			}

		case httpclient.IsRateLimitStatus(resp.StatusCode):
			wait := c.retryAfter(resp)

			// Block the shared budget so concurrent callers back off too
			if err := c.limiter.BlockFor(ctx, budgetKey, wait); err != nil {
				c.logger.WithContext(ctx).WithError(err).Warn("failed to block outbound budget")
			}

			if attempt >= c.cfg.MaxAttempts {
				c.logger.WithContext(ctx).Warnf("Provider kept returning 429 after %d attempts", attempt)
				return nil, fmt.Errorf("%w: retries exhausted after %d attempts", ErrRateLimitExceeded, attempt)
			}

			metrics.ProviderRetries.Inc()
			c.logger.WithContext(ctx).Infof("Provider returned 429, waiting %v before attempt %d", wait, attempt+1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}

		default:
			return nil, &ProtocolError{
				StatusCode: resp.StatusCode,
				Message:    extractMessage(resp.Body),
			}
		}
	}
}

// spendBudget takes one slot from the sliding-window budget, surfacing
// ErrRateLimitExceeded instead of sending a doomed request
func (c *Client) spendBudget(ctx context.Context) error {
	result, err := c.limiter.Allow(ctx, budgetKey, c.cfg.RateLimit, c.cfg.RateWindow)
	if err != nil {
		// Redis being down should not stop the sync; the provider enforces
		// its own limit as the backstop
		c.logger.WithContext(ctx).WithError(err).Warn("outbound rate limit check failed, allowing request")
		return nil
	}
	if !result.Allowed {
		metrics.ProviderRateLimited.Inc()
		return fmt.Errorf("%w: retry in %v", ErrRateLimitExceeded, result.RetryIn)
	}
	return nil
}

// retryAfter reads the Retry-After hint off a 429, falling back to the
// configured wait when the header is absent or unparseable
func (c *Client) retryAfter(resp *httpclient.Response) time.Duration {
	value := resp.Headers.Get("Retry-After")
	if value == "" {
		return c.cfg.RetryAfterFallback
	}

	wait, err := ParseRetryAfter(value)
	if err != nil || wait <= 0 {
		return c.cfg.RetryAfterFallback
	}
	return wait
}

// ParseRetryAfter parses a Retry-After header value, either delay seconds or
// an HTTP date
func ParseRetryAfter(value string) (time.Duration, error) {
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	if t, err := time.Parse(time.RFC1123, value); err == nil {
		return time.Until(t), nil
	}

	return 0, fmt.Errorf("invalid Retry-After value: %s", value)
}

// decodeBookings unpacks a search response. Result lists arrive under
// different keys depending on the endpoint shape.
func decodeBookings(body []byte) ([]Booking, error) {
	if len(body) == 0 {
		return nil, nil
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ProtocolError{StatusCode: http.StatusOK, Message: "response is not valid JSON"}
	}

	switch doc := parsed.(type) {
	case []any:
		return toBookings(doc), nil
	case map[string]any:
		for _, key := range []string{"results", "bookings", "items"} {
			if list, ok := doc[key].([]any); ok {
				return toBookings(list), nil
			}
		}
		return nil, nil
	default:
		return nil, &ProtocolError{StatusCode: http.StatusOK, Message: "unexpected response shape"}
	}
}

func toBookings(list []any) []Booking {
	bookings := make([]Booking, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			bookings = append(bookings, Booking(m))
		}
	}
	return bookings
}

// extractMessage pulls a human-readable error out of a provider error body
func extractMessage(body []byte) string {
	if len(body) == 0 {
		return "no response body"
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err == nil {
		for _, key := range []string{"message", "error", "detail"} {
			if msg, ok := doc[key].(string); ok && msg != "" {
				return msg
			}
		}
	}

	const maxLen = 200
	if len(body) > maxLen {
		return string(body[:maxLen])
	}
	return string(body)
}
