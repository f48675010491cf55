package middleware

import (
	gocontext "context"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/laurel/pkg/context"
	"github.com/Ramsey-B/laurel/pkg/metrics"
	"github.com/Ramsey-B/laurel/pkg/models"
)

// Operation classes for inbound rate limiting. Each class carries its own
// budget so a webhook storm cannot starve manual sync triggers.
const (
	OperationSync    = "sync"
	OperationWebhook = "webhook"
	OperationRead    = "read"
)

// RateLimitStore counts requests per (client, operation) pair
type RateLimitStore interface {
	Increment(ctx gocontext.Context, clientID, operation string, window time.Duration) (*models.RateLimitCounter, error)
}

// RateLimitConfig holds one operation class budget
type RateLimitConfig struct {
	Operation string
	Limit     int
	Window    time.Duration
}

// RateLimit rejects requests past the fixed-window budget with 429. The
// counter lives in Postgres so the limit holds across instances; when the
// store is unreachable the request passes, availability over enforcement.
func RateLimit(store RateLimitStore, cfg RateLimitConfig, logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			clientID := context.GetClientID(ctx)
			if clientID == "" {
				clientID = c.RealIP()
			}

			counter, err := store.Increment(ctx, clientID, cfg.Operation, cfg.Window)
			if err != nil {
				logger.WithContext(ctx).WithError(err).Warn("rate limit check failed, allowing request")
				return next(c)
			}

			remaining := cfg.Limit - counter.Count
			if remaining < 0 {
				remaining = 0
			}
			reset := counter.WindowStartedAt.Add(cfg.Window)

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			header.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if counter.Count > cfg.Limit {
				metrics.InboundRateLimited.WithLabelValues(cfg.Operation).Inc()
				logger.WithContext(ctx).WithFields(map[string]any{
					"client_id": clientID,
					"operation": cfg.Operation,
					"count":     counter.Count,
				}).Warn("inbound rate limit exceeded")

				retryAfter := int(time.Until(reset).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				header.Set("Retry-After", strconv.Itoa(retryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			return next(c)
		}
	}
}
