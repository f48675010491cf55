package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

const syncLogsTable = "sync_logs"

var syncLogStruct = database.NewStruct(new(models.SyncLog))

// SyncLogRepository handles database operations for sync run records
type SyncLogRepository struct {
	*Repository
}

// NewSyncLogRepository creates a new sync log repository
func NewSyncLogRepository(db database.DB, logger ectologger.Logger) *SyncLogRepository {
	return &SyncLogRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create inserts the started record for a new run
func (r *SyncLogRepository) Create(ctx context.Context, log *models.SyncLog) error {
	ctx, span := tracing.StartSpan(ctx, "SyncLogRepository.Create")
	defer span.End()

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(syncLogsTable).
		Cols("id", "sync_type", "status", "window_start", "window_end",
			"bookings_found", "bookings_created", "bookings_updated", "bookings_failed",
			"error_summary", "triggered_by", "started_at", "completed_at", "duration_ms").
		Values(log.ID, log.SyncType, log.Status, log.WindowStart, log.WindowEnd,
			log.BookingsFound, log.BookingsCreated, log.BookingsUpdated, log.BookingsFailed,
			log.ErrorSummary, log.TriggeredBy, log.StartedAt, log.CompletedAt, log.DurationMs)

	query, args := ib.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"sync_log_id": log.ID,
		}).Error("failed to create sync log")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create sync log")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"sync_log_id": log.ID,
		"sync_type":   log.SyncType,
	}).Debugf("Created %s", syncLogsTable)
	return nil
}

// Finish writes the terminal status, counts and timing of a run
func (r *SyncLogRepository) Finish(ctx context.Context, log *models.SyncLog) error {
	ctx, span := tracing.StartSpan(ctx, "SyncLogRepository.Finish")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(syncLogsTable).
		Set(
			ub.Assign("status", log.Status),
			ub.Assign("bookings_found", log.BookingsFound),
			ub.Assign("bookings_created", log.BookingsCreated),
			ub.Assign("bookings_updated", log.BookingsUpdated),
			ub.Assign("bookings_failed", log.BookingsFailed),
			ub.Assign("error_summary", log.ErrorSummary),
			ub.Assign("completed_at", log.CompletedAt),
			ub.Assign("duration_ms", log.DurationMs),
		).
		Where(ub.Equal("id", log.ID))

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"sync_log_id": log.ID,
		}).Error("failed to finish sync log")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to finish sync log")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to finish sync log")
	}
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "sync log %s does not exist", log.ID)
	}

	return nil
}

// List returns the most recent runs, newest first
func (r *SyncLogRepository) List(ctx context.Context, limit int) ([]models.SyncLog, error) {
	ctx, span := tracing.StartSpan(ctx, "SyncLogRepository.List")
	defer span.End()

	sb := syncLogStruct.SelectFrom(syncLogsTable)
	sb.OrderBy("started_at").Desc()
	sb.Limit(limit)

	query, args := sb.Build()
	var logs []models.SyncLog
	err := r.DB().SelectContext(ctx, &logs, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list sync logs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list sync logs")
	}

	return logs, nil
}

// GetLatestCompleted returns the most recent run that reached a terminal
// status, or nil when no run has finished yet
func (r *SyncLogRepository) GetLatestCompleted(ctx context.Context) (*models.SyncLog, error) {
	ctx, span := tracing.StartSpan(ctx, "SyncLogRepository.GetLatestCompleted")
	defer span.End()

	sb := syncLogStruct.SelectFrom(syncLogsTable)
	sb.Where(sb.NotEqual("status", models.SyncStatusStarted))
	sb.OrderBy("started_at").Desc()
	sb.Limit(1)

	query, args := sb.Build()
	var log models.SyncLog
	err := r.DB().GetContext(ctx, &log, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get latest sync log")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get latest sync log")
	}

	return &log, nil
}
