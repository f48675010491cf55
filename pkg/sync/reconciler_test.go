package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/laurel/pkg/models"
)

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

// fakeTourStore is an in-memory TourStore
type fakeTourStore struct {
	tours   map[string]*models.Tour
	findErr error
	created int
	updated int
}

func newFakeTourStore() *fakeTourStore {
	return &fakeTourStore{tours: map[string]*models.Tour{}}
}

func (f *fakeTourStore) key(externalBookingID *string, confirmationCode string) string {
	if externalBookingID != nil && *externalBookingID != "" {
		return *externalBookingID
	}
	return confirmationCode
}

func (f *fakeTourStore) FindByBookingRef(_ context.Context, externalBookingID *string, confirmationCode string) (*models.Tour, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if externalBookingID != nil {
		if tour, ok := f.tours[*externalBookingID]; ok {
			copied := *tour
			return &copied, nil
		}
	}
	if tour, ok := f.tours[confirmationCode]; ok {
		copied := *tour
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeTourStore) Create(_ context.Context, tour *models.Tour) error {
	if tour.ID == uuid.Nil {
		tour.ID = uuid.New()
	}
	copied := *tour
	f.tours[f.key(tour.ExternalBookingID, tour.ConfirmationCode)] = &copied
	f.created++
	return nil
}

func (f *fakeTourStore) Update(_ context.Context, tour *models.Tour) error {
	copied := *tour
	f.tours[f.key(tour.ExternalBookingID, tour.ConfirmationCode)] = &copied
	f.updated++
	return nil
}

func strPtr(s string) *string { return &s }

func incomingTour(date, clock string) *models.Tour {
	return &models.Tour{
		ExternalBookingID: strPtr("B-100"),
		ConfirmationCode:  "UFF-100",
		Title:             "Uffizi Gallery Tour",
		Date:              date,
		Time:              clock,
		Participants:      4,
		PaymentStatus:     models.PaymentStatusPaid,
		Amount:            120,
		ExpectedAmount:    120,
	}
}

func TestReconcileCreatesNewTour(t *testing.T) {
	store := newFakeTourStore()
	r := NewReconciler(store, testLogger())

	outcome, err := r.Reconcile(context.Background(), incomingTour("2025-11-01", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	saved := store.tours["B-100"]
	require.NotNil(t, saved)
	assert.True(t, saved.NeedsAssignment)
	assert.False(t, saved.LastSyncedAt.IsZero())
}

func TestReconcileUpdatesExistingTour(t *testing.T) {
	store := newFakeTourStore()
	r := NewReconciler(store, testLogger())

	_, err := r.Reconcile(context.Background(), incomingTour("2025-11-01", "10:00"))
	require.NoError(t, err)

	changed := incomingTour("2025-11-01", "10:00")
	changed.Participants = 6
	outcome, err := r.Reconcile(context.Background(), changed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, 6, store.tours["B-100"].Participants)
	assert.Equal(t, 1, store.created)
	assert.Equal(t, 1, store.updated)
}

func TestReconcileIsIdempotent(t *testing.T) {
	store := newFakeTourStore()
	r := NewReconciler(store, testLogger())

	for i := 0; i < 3; i++ {
		_, err := r.Reconcile(context.Background(), incomingTour("2025-11-01", "10:00"))
		require.NoError(t, err)
	}

	assert.Len(t, store.tours, 1)
	assert.Equal(t, 1, store.created)
	saved := store.tours["B-100"]
	assert.False(t, saved.Rescheduled)
	assert.Nil(t, saved.OriginalDate)
}

func TestReconcileFindsByConfirmationCode(t *testing.T) {
	store := newFakeTourStore()
	r := NewReconciler(store, testLogger())

	// A placeholder created without an external ID
	first := incomingTour("2025-11-01", "10:00")
	first.ExternalBookingID = nil
	_, err := r.Reconcile(context.Background(), first)
	require.NoError(t, err)

	outcome, err := r.Reconcile(context.Background(), incomingTour("2025-11-01", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
}

func TestReconcilePropagatesStoreError(t *testing.T) {
	store := newFakeTourStore()
	store.findErr = errors.New("connection refused")
	r := NewReconciler(store, testLogger())

	_, err := r.Reconcile(context.Background(), incomingTour("2025-11-01", "10:00"))
	assert.Error(t, err)
}

func TestMergeDetectsReschedule(t *testing.T) {
	now := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)

	existing := incomingTour("2025-11-01", "10:00")
	existing.ID = uuid.New()

	merged := Merge(existing, incomingTour("2025-11-05", "10:00"), now)

	assert.True(t, merged.Rescheduled)
	require.NotNil(t, merged.OriginalDate)
	assert.Equal(t, "2025-11-01", *merged.OriginalDate)
	require.NotNil(t, merged.OriginalTime)
	assert.Equal(t, "10:00", *merged.OriginalTime)
	assert.Equal(t, "2025-11-05", merged.Date)
	assert.Equal(t, now, merged.LastSyncedAt)
}

func TestMergeSnapshotCapturedOnce(t *testing.T) {
	now := time.Now().UTC()

	existing := incomingTour("2025-11-01", "10:00")
	existing.ID = uuid.New()

	first := Merge(existing, incomingTour("2025-11-05", "10:00"), now)
	second := Merge(first, incomingTour("2025-11-09", "14:00"), now)

	// The snapshot keeps the first observed schedule across repeated moves
	assert.True(t, second.Rescheduled)
	assert.Equal(t, "2025-11-01", *second.OriginalDate)
	assert.Equal(t, "10:00", *second.OriginalTime)
	assert.Equal(t, "2025-11-09", second.Date)
	assert.Equal(t, "14:00", second.Time)
}

func TestMergeTimeOnlyChangeIsReschedule(t *testing.T) {
	existing := incomingTour("2025-11-01", "10:00")

	merged := Merge(existing, incomingTour("2025-11-01", "15:00"), time.Now().UTC())

	assert.True(t, merged.Rescheduled)
	assert.Equal(t, "10:00", *merged.OriginalTime)
}

func TestMergeKeepsIdentityAndAssignment(t *testing.T) {
	groupID := uuid.New()
	guideID := uuid.New()

	existing := incomingTour("2025-11-01", "10:00")
	existing.ID = uuid.New()
	existing.GroupID = &groupID
	existing.GuideID = &guideID
	existing.ResyncRequired = true

	incoming := incomingTour("2025-11-01", "10:00")
	incoming.ExternalBookingID = nil
	incoming.ConfirmationCode = ""

	merged := Merge(existing, incoming, time.Now().UTC())

	// Identity survives a sparse payload
	require.NotNil(t, merged.ExternalBookingID)
	assert.Equal(t, "B-100", *merged.ExternalBookingID)
	assert.Equal(t, "UFF-100", merged.ConfirmationCode)

	// Assignment is owned by the grouping pass, not the sync
	assert.Equal(t, &groupID, merged.GroupID)
	assert.Equal(t, &guideID, merged.GuideID)

	assert.False(t, merged.ResyncRequired)
}
