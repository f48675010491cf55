package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

const toursTable = "tours"

var tourStruct = database.NewStruct(new(models.Tour))

// TourRepository handles database operations for mirrored bookings
type TourRepository struct {
	*Repository
}

// NewTourRepository creates a new tour repository
func NewTourRepository(db database.DB, logger ectologger.Logger) *TourRepository {
	return &TourRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create inserts a new tour
func (r *TourRepository) Create(ctx context.Context, tour *models.Tour) error {
	ctx, span := tracing.StartSpan(ctx, "TourRepository.Create")
	defer span.End()

	if tour.ID == uuid.Nil {
		tour.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(toursTable).
		Cols("id", "external_booking_id", "confirmation_code", "title", "date", "time",
			"duration_minutes", "participants", "customer_name", "customer_email", "customer_phone",
			"payment_status", "amount", "expected_amount", "cancelled", "rescheduled",
			"original_date", "original_time", "raw_payload", "needs_assignment", "resync_required",
			"guide_id", "group_id", "last_synced_at", "created_at", "updated_at").
		Values(tour.ID, tour.ExternalBookingID, tour.ConfirmationCode, tour.Title, tour.Date, tour.Time,
			tour.DurationMinutes, tour.Participants, tour.CustomerName, tour.CustomerEmail, tour.CustomerPhone,
			tour.PaymentStatus, tour.Amount, tour.ExpectedAmount, tour.Cancelled, tour.Rescheduled,
			tour.OriginalDate, tour.OriginalTime, tour.RawPayload, tour.NeedsAssignment, tour.ResyncRequired,
			tour.GuideID, tour.GroupID, tour.LastSyncedAt, sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&tour.CreatedAt, &tour.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tour_id": tour.ID,
		}).Error("failed to create tour")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create tour")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tour_id": tour.ID,
	}).Debugf("Created %s", toursTable)
	return nil
}

// Update rewrites the sync-owned columns of a tour by ID. Assignment columns
// (guide_id, group_id) are left to the grouping pass.
func (r *TourRepository) Update(ctx context.Context, tour *models.Tour) error {
	ctx, span := tracing.StartSpan(ctx, "TourRepository.Update")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(toursTable).
		Set(
			ub.Assign("external_booking_id", tour.ExternalBookingID),
			ub.Assign("confirmation_code", tour.ConfirmationCode),
			ub.Assign("title", tour.Title),
			ub.Assign("date", tour.Date),
			ub.Assign("time", tour.Time),
			ub.Assign("duration_minutes", tour.DurationMinutes),
			ub.Assign("participants", tour.Participants),
			ub.Assign("customer_name", tour.CustomerName),
			ub.Assign("customer_email", tour.CustomerEmail),
			ub.Assign("customer_phone", tour.CustomerPhone),
			ub.Assign("payment_status", tour.PaymentStatus),
			ub.Assign("amount", tour.Amount),
			ub.Assign("expected_amount", tour.ExpectedAmount),
			ub.Assign("cancelled", tour.Cancelled),
			ub.Assign("rescheduled", tour.Rescheduled),
			ub.Assign("original_date", tour.OriginalDate),
			ub.Assign("original_time", tour.OriginalTime),
			ub.Assign("raw_payload", tour.RawPayload),
			ub.Assign("needs_assignment", tour.NeedsAssignment),
			ub.Assign("resync_required", tour.ResyncRequired),
			ub.Assign("last_synced_at", tour.LastSyncedAt),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("id", tour.ID))

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tour_id": tour.ID,
		}).Error("failed to update tour")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update tour")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tour_id": tour.ID,
		}).Error("failed to update tour")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update tour")
	}
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "tour %s does not exist", tour.ID)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tour_id": tour.ID,
	}).Debugf("Updated %s", toursTable)
	return nil
}

// FindByBookingRef looks a tour up by external booking ID or confirmation
// code. Returns nil when no tour matches.
func (r *TourRepository) FindByBookingRef(ctx context.Context, externalBookingID *string, confirmationCode string) (*models.Tour, error) {
	ctx, span := tracing.StartSpan(ctx, "TourRepository.FindByBookingRef")
	defer span.End()

	sb := tourStruct.SelectFrom(toursTable)

	var conds []string
	if externalBookingID != nil && *externalBookingID != "" {
		conds = append(conds, sb.Equal("external_booking_id", *externalBookingID))
	}
	if confirmationCode != "" {
		conds = append(conds, sb.Equal("confirmation_code", confirmationCode))
	}
	if len(conds) == 0 {
		return nil, BadRequest("a booking reference is required")
	}
	sb.Where(sb.Or(conds...))
	sb.Limit(1)

	query, args := sb.Build()
	var tour models.Tour
	err := r.DB().GetContext(ctx, &tour, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"confirmation_code": confirmationCode,
		}).Error("failed to find tour by booking ref")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find tour")
	}

	return &tour, nil
}

// ListActiveByDateRange returns non-cancelled tours with dates inside
// [start, end], ordered by creation so grouping sees a stable order
func (r *TourRepository) ListActiveByDateRange(ctx context.Context, start, end string) ([]models.Tour, error) {
	ctx, span := tracing.StartSpan(ctx, "TourRepository.ListActiveByDateRange")
	defer span.End()

	sb := tourStruct.SelectFrom(toursTable)
	sb.Where(
		sb.GreaterEqualThan("date", start),
		sb.LessEqualThan("date", end),
		sb.Equal("cancelled", false),
	)
	sb.OrderBy("date", "time", "created_at")

	query, args := sb.Build()
	var tours []models.Tour
	err := r.DB().SelectContext(ctx, &tours, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"start": start,
			"end":   end,
		}).Error("failed to list tours by date range")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list tours")
	}

	r.logger.WithContext(ctx).Debugf("Listed %d tours in range %s..%s", len(tours), start, end)
	return tours, nil
}

// ListUnassigned returns non-cancelled tours still waiting on a guide
func (r *TourRepository) ListUnassigned(ctx context.Context) ([]models.Tour, error) {
	ctx, span := tracing.StartSpan(ctx, "TourRepository.ListUnassigned")
	defer span.End()

	sb := tourStruct.SelectFrom(toursTable)
	sb.Where(
		sb.Equal("needs_assignment", true),
		sb.Equal("cancelled", false),
	)
	sb.OrderBy("date", "time")

	query, args := sb.Build()
	var tours []models.Tour
	err := r.DB().SelectContext(ctx, &tours, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list unassigned tours")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list unassigned tours")
	}

	return tours, nil
}

// MarkCancelledByExternalID sets the cancellation flag. Returns false when no
// tour carries the external ID.
func (r *TourRepository) MarkCancelledByExternalID(ctx context.Context, externalBookingID string) (bool, error) {
	return r.setFlagByExternalID(ctx, externalBookingID, "cancelled")
}

// MarkResyncRequiredByExternalID flags a tour for pickup by the next sync
// pass. Returns false when no tour carries the external ID.
func (r *TourRepository) MarkResyncRequiredByExternalID(ctx context.Context, externalBookingID string) (bool, error) {
	return r.setFlagByExternalID(ctx, externalBookingID, "resync_required")
}

func (r *TourRepository) setFlagByExternalID(ctx context.Context, externalBookingID, column string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "TourRepository.setFlagByExternalID")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(toursTable).
		Set(
			ub.Assign(column, true),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("external_booking_id", externalBookingID))

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"external_booking_id": externalBookingID,
			"column":              column,
		}).Error("failed to flag tour")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to flag tour")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to flag tour")
	}
	return rows > 0, nil
}

// AssignGroupTx points a tour at a group (or clears it with nil) inside the
// caller's transaction
func (r *TourRepository) AssignGroupTx(ctx context.Context, tx database.Tx, tourID uuid.UUID, groupID *uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "TourRepository.AssignGroupTx")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(toursTable).
		Set(
			ub.Assign("group_id", groupID),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("id", tourID))

	query, args := ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tour_id": tourID,
		}).Error("failed to assign tour to group")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to assign tour to group")
	}
	return nil
}
