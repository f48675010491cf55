package sync

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// Outcome is the result of reconciling one booking
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
)

// TourStore is the storage surface the reconciler needs
type TourStore interface {
	FindByBookingRef(ctx context.Context, externalBookingID *string, confirmationCode string) (*models.Tour, error)
	Create(ctx context.Context, tour *models.Tour) error
	Update(ctx context.Context, tour *models.Tour) error
}

// Reconciler idempotently applies transformed upstream bookings to the local
// mirror. Each booking commits on its own; one failure never poisons the
// rest of a pass.
type Reconciler struct {
	tours  TourStore
	logger ectologger.Logger
	now    func() time.Time
}

// NewReconciler creates a new reconciler
func NewReconciler(tours TourStore, logger ectologger.Logger) *Reconciler {
	return &Reconciler{
		tours:  tours,
		logger: logger,
		now:    time.Now,
	}
}

// Reconcile looks the booking up by external ID or confirmation code and
// creates or updates the local record
func (r *Reconciler) Reconcile(ctx context.Context, incoming *models.Tour) (Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "Reconciler.Reconcile")
	defer span.End()

	existing, err := r.tours.FindByBookingRef(ctx, incoming.ExternalBookingID, incoming.ConfirmationCode)
	if err != nil {
		return "", err
	}

	now := r.now().UTC()

	if existing == nil {
		incoming.NeedsAssignment = true
		incoming.LastSyncedAt = now
		if err := r.tours.Create(ctx, incoming); err != nil {
			return "", err
		}
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"tour_id":           incoming.ID,
			"confirmation_code": incoming.ConfirmationCode,
		}).Debug("created tour from upstream booking")
		return OutcomeCreated, nil
	}

	merged := Merge(existing, incoming, now)
	if err := r.tours.Update(ctx, merged); err != nil {
		return "", err
	}

	if merged.Rescheduled && !existing.Rescheduled {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"tour_id":       merged.ID,
			"original_date": merged.OriginalDate,
			"new_date":      merged.Date,
		}).Info("detected rescheduled booking")
	}

	return OutcomeUpdated, nil
}

// Merge applies the incoming sync-owned fields onto the existing record.
// Pure; the caller persists the result.
//
// Reschedule handling: when (date, time) drift from the stored values, the
// stored values are snapshotted into original date/time, but only the first
// time. Repeated reschedules keep the first snapshot and the rescheduled
// flag is sticky.
func Merge(existing, incoming *models.Tour, now time.Time) *models.Tour {
	merged := *existing

	if existing.Date != incoming.Date || existing.Time != incoming.Time {
		if !existing.Rescheduled {
			originalDate := existing.Date
			originalTime := existing.Time
			merged.OriginalDate = &originalDate
			merged.OriginalTime = &originalTime
		}
		merged.Rescheduled = true
	}

	merged.ExternalBookingID = incoming.ExternalBookingID
	if merged.ExternalBookingID == nil {
		merged.ExternalBookingID = existing.ExternalBookingID
	}
	if incoming.ConfirmationCode != "" {
		merged.ConfirmationCode = incoming.ConfirmationCode
	}
	merged.Title = incoming.Title
	merged.Date = incoming.Date
	merged.Time = incoming.Time
	merged.DurationMinutes = incoming.DurationMinutes
	merged.Participants = incoming.Participants
	merged.CustomerName = incoming.CustomerName
	merged.CustomerEmail = incoming.CustomerEmail
	merged.CustomerPhone = incoming.CustomerPhone
	merged.PaymentStatus = incoming.PaymentStatus
	merged.Amount = incoming.Amount
	merged.ExpectedAmount = incoming.ExpectedAmount
	merged.RawPayload = incoming.RawPayload
	merged.ResyncRequired = false
	merged.LastSyncedAt = now

	return &merged
}
