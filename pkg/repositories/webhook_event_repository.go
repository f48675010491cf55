package repositories

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

const webhookEventsTable = "webhook_events"

// WebhookEventRepository records received provider deliveries. The table is
// append-only; there are no update or delete operations.
type WebhookEventRepository struct {
	*Repository
}

// NewWebhookEventRepository creates a new webhook event repository
func NewWebhookEventRepository(db database.DB, logger ectologger.Logger) *WebhookEventRepository {
	return &WebhookEventRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create appends one delivery record
func (r *WebhookEventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	ctx, span := tracing.StartSpan(ctx, "WebhookEventRepository.Create")
	defer span.End()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(webhookEventsTable).
		Cols("id", "topic", "external_booking_id", "payload", "status", "error_message", "created_at").
		Values(event.ID, event.Topic, event.ExternalBookingID, event.Payload, event.Status, event.ErrorMessage,
			sqlbuilder.Raw("NOW()")).
		Returning("created_at")

	query, args := ib.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&event.CreatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"webhook_event_id":    event.ID,
			"topic":               event.Topic,
			"external_booking_id": event.ExternalBookingID,
		}).Error("failed to record webhook event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record webhook event")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"webhook_event_id": event.ID,
		"topic":            event.Topic,
	}).Debugf("Created %s", webhookEventsTable)
	return nil
}
