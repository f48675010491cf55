package repositories

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

const rateLimitsTable = "rate_limits"

// RateLimitRepository backs the inbound fixed-window rate limiter with a
// counter row per (client, operation) pair
type RateLimitRepository struct {
	*Repository
}

// NewRateLimitRepository creates a new rate limit repository
func NewRateLimitRepository(db database.DB, logger ectologger.Logger) *RateLimitRepository {
	return &RateLimitRepository{
		Repository: NewRepository(db, logger),
	}
}

// Increment counts one request for the pair and returns the row as it stands
// after the increment. The upsert resets the window and count atomically when
// the stored window has expired, so concurrent callers can never double-count
// or reset a live window.
func (r *RateLimitRepository) Increment(ctx context.Context, clientID, operation string, window time.Duration) (*models.RateLimitCounter, error) {
	ctx, span := tracing.StartSpan(ctx, "RateLimitRepository.Increment")
	defer span.End()

	now := time.Now().UTC()
	cutoff := now.Add(-window)

	ib := database.NewInsertBuilder()
	ib.InsertInto(rateLimitsTable).
		Cols("client_id", "operation", "window_started_at", "count").
		Values(clientID, operation, now, 1)

	ub := ib.OnConflict("client_id", "operation")
	ub.Set(
		fmt.Sprintf("count = CASE WHEN %s.window_started_at <= %s THEN 1 ELSE %s.count + 1 END",
			rateLimitsTable, ub.Var(cutoff), rateLimitsTable),
		fmt.Sprintf("window_started_at = CASE WHEN %s.window_started_at <= %s THEN %s ELSE %s.window_started_at END",
			rateLimitsTable, ub.Var(cutoff), ub.Var(now), rateLimitsTable),
	)
	ib.Returning("window_started_at", "count")

	query, args := ib.Build()
	counter := models.RateLimitCounter{ClientID: clientID, Operation: operation}
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&counter.WindowStartedAt, &counter.Count)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"client_id": clientID,
			"operation": operation,
		}).Error("failed to increment rate limit counter")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to increment rate limit counter")
	}

	return &counter, nil
}

// PurgeOlderThan removes counter rows whose window started before the given
// age. Returns the number of rows removed.
func (r *RateLimitRepository) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "RateLimitRepository.PurgeOlderThan")
	defer span.End()

	cutoff := time.Now().UTC().Add(-age)

	db := database.NewDeleteBuilder()
	db.DeleteFrom(rateLimitsTable)
	db.Where(db.LessThan("window_started_at", cutoff))

	query, args := db.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to purge rate limit counters")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to purge rate limit counters")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to purge rate limit counters")
	}

	if rows > 0 {
		r.logger.WithContext(ctx).Debugf("Purged %d stale rate limit counters", rows)
	}
	return rows, nil
}
