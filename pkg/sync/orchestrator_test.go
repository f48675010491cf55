package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/laurel/pkg/grouping"
	"github.com/Ramsey-B/laurel/pkg/kafka"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/provider"
)

type fakeSource struct {
	bookings []provider.Booking
	err      error
	window   provider.Window
}

func (f *fakeSource) SearchBookings(_ context.Context, window provider.Window) ([]provider.Booking, error) {
	f.window = window
	return f.bookings, f.err
}

// fakeTransformer fails bookings whose id carries a "bad" marker
type fakeTransformer struct{}

func (fakeTransformer) Transform(booking provider.Booking) (*models.Tour, error) {
	id, _ := booking["bookingId"].(string)
	if id == "" || id == "bad" {
		return nil, fmt.Errorf("booking has no usable identifier")
	}
	return &models.Tour{
		ExternalBookingID: &id,
		ConfirmationCode:  "C-" + id,
		Date:              "2025-11-01",
		Time:              "10:00",
	}, nil
}

// fakeReconciler reports "new-" prefixed bookings as created
type fakeReconciler struct {
	err   error
	calls int
}

func (f *fakeReconciler) Reconcile(_ context.Context, tour *models.Tour) (Outcome, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(*tour.ExternalBookingID) > 4 && (*tour.ExternalBookingID)[:4] == "new-" {
		return OutcomeCreated, nil
	}
	return OutcomeUpdated, nil
}

type fakeGrouper struct {
	calls int
	start string
	end   string
	err   error
}

func (f *fakeGrouper) Regroup(_ context.Context, start, end string) (*grouping.Result, error) {
	f.calls++
	f.start = start
	f.end = end
	if f.err != nil {
		return nil, f.err
	}
	return &grouping.Result{}, nil
}

type fakeRunStore struct {
	created  *models.SyncLog
	finished *models.SyncLog
}

func (f *fakeRunStore) Create(_ context.Context, log *models.SyncLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	copied := *log
	f.created = &copied
	return nil
}

func (f *fakeRunStore) Finish(_ context.Context, log *models.SyncLog) error {
	copied := *log
	f.finished = &copied
	return nil
}

type fakePublisher struct {
	messages []*kafka.SyncResultMessage
}

func (f *fakePublisher) PublishSyncResult(_ context.Context, msg *kafka.SyncResultMessage) error {
	f.messages = append(f.messages, msg)
	return nil
}

func bookingsWithIDs(ids ...string) []provider.Booking {
	out := make([]provider.Booking, 0, len(ids))
	for _, id := range ids {
		out = append(out, provider.Booking{"bookingId": id})
	}
	return out
}

func newTestOrchestrator(source *fakeSource, reconciler *fakeReconciler, grouper *fakeGrouper, runs *fakeRunStore, publisher *fakePublisher) *Orchestrator {
	o := NewOrchestrator(source, fakeTransformer{}, reconciler, grouper, runs, publisher, Config{
		LookbackDays:       7,
		RoutineHorizonDays: 120,
		FullHorizonDays:    365,
		MaxRunTime:         time.Minute,
	}, testLogger())
	o.now = func() time.Time {
		return time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	}
	return o
}

func TestRunCompleted(t *testing.T) {
	source := &fakeSource{bookings: bookingsWithIDs("new-1", "new-2", "B-3")}
	reconciler := &fakeReconciler{}
	grouper := &fakeGrouper{}
	runs := &fakeRunStore{}
	publisher := &fakePublisher{}

	o := newTestOrchestrator(source, reconciler, grouper, runs, publisher)
	run, err := o.Run(context.Background(), Options{Type: models.SyncTypeRoutine, TriggeredBy: "test"})
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusCompleted, run.Status)
	assert.Equal(t, 3, run.BookingsFound)
	assert.Equal(t, 2, run.BookingsCreated)
	assert.Equal(t, 1, run.BookingsUpdated)
	assert.Equal(t, 0, run.BookingsFailed)
	assert.Nil(t, run.ErrorSummary)
	require.NotNil(t, run.CompletedAt)
	require.NotNil(t, run.DurationMs)

	// Grouping runs exactly once, over the fetch window
	assert.Equal(t, 1, grouper.calls)
	assert.Equal(t, run.WindowStart, grouper.start)
	assert.Equal(t, run.WindowEnd, grouper.end)

	require.NotNil(t, runs.finished)
	assert.Equal(t, models.SyncStatusCompleted, runs.finished.Status)

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, "completed", publisher.messages[0].Status)
}

func TestRunWindowComputation(t *testing.T) {
	source := &fakeSource{}
	o := newTestOrchestrator(source, &fakeReconciler{}, &fakeGrouper{}, &fakeRunStore{}, &fakePublisher{})

	run, err := o.Run(context.Background(), Options{Type: models.SyncTypeRoutine})
	require.NoError(t, err)
	assert.Equal(t, "2025-10-13", run.WindowStart)
	assert.Equal(t, "2026-02-17", run.WindowEnd)

	run, err = o.Run(context.Background(), Options{Type: models.SyncTypeFull})
	require.NoError(t, err)
	assert.Equal(t, "2025-10-13", run.WindowStart)
	assert.Equal(t, "2026-10-20", run.WindowEnd)
}

func TestRunWindowOverride(t *testing.T) {
	source := &fakeSource{}
	o := newTestOrchestrator(source, &fakeReconciler{}, &fakeGrouper{}, &fakeRunStore{}, &fakePublisher{})

	run, err := o.Run(context.Background(), Options{
		Type:        models.SyncTypeRoutine,
		WindowStart: "2025-12-01",
		WindowEnd:   "2025-12-31",
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-12-01", run.WindowStart)
	assert.Equal(t, "2025-12-31", run.WindowEnd)
	assert.Equal(t, "2025-12-01", source.window.StartDate())
}

func TestRunPartialOnBookingFailures(t *testing.T) {
	source := &fakeSource{bookings: bookingsWithIDs("new-1", "bad", "B-3")}
	grouper := &fakeGrouper{}

	o := newTestOrchestrator(source, &fakeReconciler{}, grouper, &fakeRunStore{}, &fakePublisher{})
	run, err := o.Run(context.Background(), Options{Type: models.SyncTypeRoutine})
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusPartial, run.Status)
	assert.Equal(t, 1, run.BookingsFailed)
	assert.Equal(t, 1, run.BookingsCreated)
	assert.Equal(t, 1, run.BookingsUpdated)
	require.NotNil(t, run.ErrorSummary)
	assert.Contains(t, *run.ErrorSummary, "transform")

	// One bad booking never aborts the rest of the pass
	assert.Equal(t, 1, grouper.calls)
}

func TestRunFailedWhenNothingApplied(t *testing.T) {
	source := &fakeSource{bookings: bookingsWithIDs("B-1", "B-2")}
	reconciler := &fakeReconciler{err: errors.New("storage down")}
	grouper := &fakeGrouper{}

	o := newTestOrchestrator(source, reconciler, grouper, &fakeRunStore{}, &fakePublisher{})
	run, err := o.Run(context.Background(), Options{Type: models.SyncTypeRoutine})
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusFailed, run.Status)
	assert.Equal(t, 2, run.BookingsFailed)
	assert.Equal(t, 0, grouper.calls)
}

func TestRunFailedOnFetchError(t *testing.T) {
	source := &fakeSource{err: &provider.AuthenticationError{StatusCode: 401, Message: "bad signature"}}
	runs := &fakeRunStore{}

	o := newTestOrchestrator(source, &fakeReconciler{}, &fakeGrouper{}, runs, &fakePublisher{})
	run, err := o.Run(context.Background(), Options{Type: models.SyncTypeRoutine})

	require.Error(t, err)
	assert.True(t, provider.IsAuthenticationError(err))
	assert.Equal(t, models.SyncStatusFailed, run.Status)
	require.NotNil(t, runs.finished)
	require.NotNil(t, runs.finished.ErrorSummary)
	assert.Contains(t, *runs.finished.ErrorSummary, "booking search failed")
}

func TestRunSkipsGroupingWithoutChanges(t *testing.T) {
	source := &fakeSource{}
	grouper := &fakeGrouper{}

	o := newTestOrchestrator(source, &fakeReconciler{}, grouper, &fakeRunStore{}, &fakePublisher{})
	run, err := o.Run(context.Background(), Options{Type: models.SyncTypeRoutine})
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusCompleted, run.Status)
	assert.Equal(t, 0, grouper.calls)
}

func TestRunGroupingFailureIsPartial(t *testing.T) {
	source := &fakeSource{bookings: bookingsWithIDs("new-1")}
	grouper := &fakeGrouper{err: errors.New("lock lost")}

	o := newTestOrchestrator(source, &fakeReconciler{}, grouper, &fakeRunStore{}, &fakePublisher{})
	run, err := o.Run(context.Background(), Options{Type: models.SyncTypeRoutine})
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusPartial, run.Status)
	require.NotNil(t, run.ErrorSummary)
	assert.Contains(t, *run.ErrorSummary, "grouping")
}
