package webhook

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/laurel/pkg/kafka"
	"github.com/Ramsey-B/laurel/pkg/models"
)

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

type fakeTourStore struct {
	tours     map[string]*models.Tour
	createErr error
	created   []*models.Tour
	resynced  []string
	cancelled []string
}

func newFakeTourStore() *fakeTourStore {
	return &fakeTourStore{tours: map[string]*models.Tour{}}
}

func (f *fakeTourStore) FindByBookingRef(_ context.Context, externalBookingID *string, _ string) (*models.Tour, error) {
	if externalBookingID == nil {
		return nil, nil
	}
	return f.tours[*externalBookingID], nil
}

func (f *fakeTourStore) Create(_ context.Context, tour *models.Tour) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.tours[*tour.ExternalBookingID] = tour
	f.created = append(f.created, tour)
	return nil
}

func (f *fakeTourStore) MarkResyncRequiredByExternalID(_ context.Context, id string) (bool, error) {
	if _, ok := f.tours[id]; !ok {
		return false, nil
	}
	f.resynced = append(f.resynced, id)
	return true, nil
}

func (f *fakeTourStore) MarkCancelledByExternalID(_ context.Context, id string) (bool, error) {
	if _, ok := f.tours[id]; !ok {
		return false, nil
	}
	f.cancelled = append(f.cancelled, id)
	return true, nil
}

type fakeEventStore struct {
	events []*models.WebhookEvent
	err    error
}

func (f *fakeEventStore) Create(_ context.Context, event *models.WebhookEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fakePublisher struct {
	events []*kafka.BookingEventMessage
}

func (f *fakePublisher) PublishBookingEvent(_ context.Context, evt *kafka.BookingEventMessage) error {
	f.events = append(f.events, evt)
	return nil
}

func TestIngestCreatedInsertsPlaceholder(t *testing.T) {
	tours := newFakeTourStore()
	events := &fakeEventStore{}
	publisher := &fakePublisher{}
	ingestor := NewIngestor(tours, events, publisher, testLogger())

	status := ingestor.Ingest(context.Background(), "bookings/create", "B-500", map[string]any{"bookingId": "B-500"})

	assert.Equal(t, models.WebhookStatusProcessed, status)
	require.Len(t, tours.created, 1)
	placeholder := tours.created[0]
	assert.Equal(t, "B-500", *placeholder.ExternalBookingID)
	assert.True(t, placeholder.NeedsAssignment)
	// The placeholder holds the slot until the next sync fills in details
	assert.True(t, placeholder.ResyncRequired)
	assert.Equal(t, models.PlaceholderTime, placeholder.Time)

	require.Len(t, events.events, 1)
	assert.Equal(t, models.WebhookStatusProcessed, events.events[0].Status)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "booking.created", publisher.events[0].Type)
}

func TestIngestCreatedIsIdempotent(t *testing.T) {
	tours := newFakeTourStore()
	ingestor := NewIngestor(tours, &fakeEventStore{}, &fakePublisher{}, testLogger())

	first := ingestor.Ingest(context.Background(), "bookings/create", "B-500", nil)
	second := ingestor.Ingest(context.Background(), "bookings/create", "B-500", nil)

	assert.Equal(t, models.WebhookStatusProcessed, first)
	assert.Equal(t, models.WebhookStatusIgnored, second)
	assert.Len(t, tours.created, 1)
}

func TestIngestUpdatedFlagsResync(t *testing.T) {
	tours := newFakeTourStore()
	id := "B-500"
	tours.tours[id] = &models.Tour{ID: uuid.New(), ExternalBookingID: &id}
	publisher := &fakePublisher{}
	ingestor := NewIngestor(tours, &fakeEventStore{}, publisher, testLogger())

	status := ingestor.Ingest(context.Background(), "bookings/update", "B-500", nil)

	assert.Equal(t, models.WebhookStatusProcessed, status)
	assert.Equal(t, []string{"B-500"}, tours.resynced)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, "booking.updated", publisher.events[0].Type)
}

func TestIngestCancelledFlagsTour(t *testing.T) {
	tours := newFakeTourStore()
	id := "B-500"
	tours.tours[id] = &models.Tour{ID: uuid.New(), ExternalBookingID: &id}
	ingestor := NewIngestor(tours, &fakeEventStore{}, &fakePublisher{}, testLogger())

	status := ingestor.Ingest(context.Background(), "bookings/cancel", "B-500", nil)

	assert.Equal(t, models.WebhookStatusProcessed, status)
	assert.Equal(t, []string{"B-500"}, tours.cancelled)
}

func TestIngestUnknownBookingIsIgnored(t *testing.T) {
	ingestor := NewIngestor(newFakeTourStore(), &fakeEventStore{}, &fakePublisher{}, testLogger())

	assert.Equal(t, models.WebhookStatusIgnored,
		ingestor.Ingest(context.Background(), "bookings/update", "ghost", nil))
	assert.Equal(t, models.WebhookStatusIgnored,
		ingestor.Ingest(context.Background(), "bookings/cancel", "ghost", nil))
}

func TestIngestUnknownTopicIsIgnored(t *testing.T) {
	events := &fakeEventStore{}
	ingestor := NewIngestor(newFakeTourStore(), events, &fakePublisher{}, testLogger())

	status := ingestor.Ingest(context.Background(), "bookings/refund", "B-500", nil)

	assert.Equal(t, models.WebhookStatusIgnored, status)
	// Ignored deliveries still land in the audit trail
	require.Len(t, events.events, 1)
	assert.Equal(t, "bookings/refund", events.events[0].Topic)
}

func TestIngestMissingBookingIDIsIgnored(t *testing.T) {
	ingestor := NewIngestor(newFakeTourStore(), &fakeEventStore{}, &fakePublisher{}, testLogger())

	assert.Equal(t, models.WebhookStatusIgnored,
		ingestor.Ingest(context.Background(), "bookings/create", "", nil))
}

func TestIngestStoreFailureIsRecorded(t *testing.T) {
	tours := newFakeTourStore()
	tours.createErr = errors.New("storage down")
	events := &fakeEventStore{}
	ingestor := NewIngestor(tours, events, &fakePublisher{}, testLogger())

	status := ingestor.Ingest(context.Background(), "bookings/create", "B-500", nil)

	assert.Equal(t, models.WebhookStatusFailed, status)
	require.Len(t, events.events, 1)
	require.NotNil(t, events.events[0].ErrorMessage)
	assert.Contains(t, *events.events[0].ErrorMessage, "storage down")
}
