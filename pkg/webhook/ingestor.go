// Package webhook ingests provider push notifications. Deliveries are
// advisory nudges between sync passes; the periodic sync remains the source
// of truth, so ingest failures are recorded and swallowed rather than
// surfaced to the provider.
package webhook

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/kafka"
	"github.com/Ramsey-B/laurel/pkg/metrics"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// TourStore is the tour storage surface the ingestor needs
type TourStore interface {
	FindByBookingRef(ctx context.Context, externalBookingID *string, confirmationCode string) (*models.Tour, error)
	Create(ctx context.Context, tour *models.Tour) error
	MarkResyncRequiredByExternalID(ctx context.Context, externalBookingID string) (bool, error)
	MarkCancelledByExternalID(ctx context.Context, externalBookingID string) (bool, error)
}

// EventStore records received deliveries
type EventStore interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
}

// EventPublisher emits booking lifecycle events for downstream consumers
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, evt *kafka.BookingEventMessage) error
}

// Ingestor applies provider deliveries to the local mirror and keeps an
// append-only audit trail of every delivery, including ones it ignores
type Ingestor struct {
	tours    TourStore
	events   EventStore
	producer EventPublisher
	logger   ectologger.Logger
}

// NewIngestor creates a new webhook ingestor
func NewIngestor(tours TourStore, events EventStore, producer EventPublisher, logger ectologger.Logger) *Ingestor {
	return &Ingestor{
		tours:    tours,
		events:   events,
		producer: producer,
		logger:   logger,
	}
}

// Ingest records and applies one delivery. The returned status reflects what
// happened to the delivery; errors are already absorbed into the audit record
// by the time Ingest returns, so callers can always acknowledge.
func (i *Ingestor) Ingest(ctx context.Context, topic, externalBookingID string, payload map[string]any) models.WebhookStatus {
	ctx, span := tracing.StartSpan(ctx, "Ingestor.Ingest")
	defer span.End()

	status, processErr := i.apply(ctx, topic, externalBookingID)

	event := &models.WebhookEvent{
		Topic:             topic,
		ExternalBookingID: externalBookingID,
		Payload:           database.JSONB[map[string]any]{Data: payload},
		Status:            status,
	}
	if processErr != nil {
		msg := processErr.Error()
		event.ErrorMessage = &msg
		i.logger.WithContext(ctx).WithError(processErr).WithFields(map[string]any{
			"topic":               topic,
			"external_booking_id": externalBookingID,
		}).Error("failed to apply webhook delivery")
	}

	if err := i.events.Create(ctx, event); err != nil {
		// The audit row is best effort too; losing it must not turn into a
		// provider-visible failure and a redelivery storm
		i.logger.WithContext(ctx).WithError(err).Error("failed to record webhook delivery")
	}

	metrics.WebhooksReceived.WithLabelValues(topic, string(status)).Inc()
	return status
}

func (i *Ingestor) apply(ctx context.Context, topic, externalBookingID string) (models.WebhookStatus, error) {
	if externalBookingID == "" {
		return models.WebhookStatusIgnored, nil
	}

	switch models.WebhookTopic(topic) {
	case models.WebhookTopicCreated:
		return i.applyCreated(ctx, externalBookingID)
	case models.WebhookTopicUpdated:
		return i.applyUpdated(ctx, externalBookingID)
	case models.WebhookTopicCancelled:
		return i.applyCancelled(ctx, externalBookingID)
	default:
		i.logger.WithContext(ctx).Debugf("Ignoring webhook with unknown topic %q", topic)
		return models.WebhookStatusIgnored, nil
	}
}

// applyCreated inserts a placeholder that the next sync pass fills in with
// real booking details. Redeliveries for a known booking are a no-op.
func (i *Ingestor) applyCreated(ctx context.Context, externalBookingID string) (models.WebhookStatus, error) {
	existing, err := i.tours.FindByBookingRef(ctx, &externalBookingID, "")
	if err != nil {
		return models.WebhookStatusFailed, err
	}
	if existing != nil {
		return models.WebhookStatusIgnored, nil
	}

	tour := &models.Tour{
		ID:                uuid.New(),
		ExternalBookingID: &externalBookingID,
		Title:             "Pending sync",
		Time:              models.PlaceholderTime,
		Participants:      1,
		PaymentStatus:     models.PaymentStatusUnpaid,
		NeedsAssignment:   true,
		ResyncRequired:    true,
		LastSyncedAt:      time.Now().UTC(),
	}
	if err := i.tours.Create(ctx, tour); err != nil {
		return models.WebhookStatusFailed, err
	}

	i.publish(ctx, "booking.created", externalBookingID, tour.ID.String())
	return models.WebhookStatusProcessed, nil
}

func (i *Ingestor) applyUpdated(ctx context.Context, externalBookingID string) (models.WebhookStatus, error) {
	found, err := i.tours.MarkResyncRequiredByExternalID(ctx, externalBookingID)
	if err != nil {
		return models.WebhookStatusFailed, err
	}
	if !found {
		return models.WebhookStatusIgnored, nil
	}

	i.publish(ctx, "booking.updated", externalBookingID, "")
	return models.WebhookStatusProcessed, nil
}

func (i *Ingestor) applyCancelled(ctx context.Context, externalBookingID string) (models.WebhookStatus, error) {
	found, err := i.tours.MarkCancelledByExternalID(ctx, externalBookingID)
	if err != nil {
		return models.WebhookStatusFailed, err
	}
	if !found {
		return models.WebhookStatusIgnored, nil
	}

	i.publish(ctx, "booking.cancelled", externalBookingID, "")
	return models.WebhookStatusProcessed, nil
}

func (i *Ingestor) publish(ctx context.Context, eventType, externalBookingID, tourID string) {
	if i.producer == nil {
		return
	}
	err := i.producer.PublishBookingEvent(ctx, &kafka.BookingEventMessage{
		Type:              eventType,
		ExternalBookingID: externalBookingID,
		TourID:            tourID,
	})
	if err != nil {
		i.logger.WithContext(ctx).WithError(err).Debugf("Failed to publish %s event", eventType)
	}
}
