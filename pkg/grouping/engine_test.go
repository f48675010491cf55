package grouping

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/redis"
)

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

type fakeTx struct {
	database.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) IsOpen() bool { return !f.committed }

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	database.DB
	tx *fakeTx
}

func (f *fakeDB) GetTx(ctx context.Context, _ *sql.TxOptions) (context.Context, database.Tx, error) {
	return ctx, f.tx, nil
}

type fakeTourStore struct {
	tours       []models.Tour
	assignments map[uuid.UUID]*uuid.UUID
}

func (f *fakeTourStore) ListActiveByDateRange(context.Context, string, string) ([]models.Tour, error) {
	return f.tours, nil
}

func (f *fakeTourStore) AssignGroupTx(_ context.Context, _ database.Tx, tourID uuid.UUID, groupID *uuid.UUID) error {
	if f.assignments == nil {
		f.assignments = map[uuid.UUID]*uuid.UUID{}
	}
	f.assignments[tourID] = groupID
	return nil
}

type fakeGroupStore struct {
	groups        map[uuid.UUID]*models.TourGroup
	created       []*models.TourGroup
	updated       []*models.TourGroup
	orphansPurged bool
}

func newFakeGroupStore(groups ...*models.TourGroup) *fakeGroupStore {
	store := &fakeGroupStore{groups: map[uuid.UUID]*models.TourGroup{}}
	for _, g := range groups {
		store.groups[g.ID] = g
	}
	return store
}

func (f *fakeGroupStore) ListByIDs(_ context.Context, ids []uuid.UUID) ([]models.TourGroup, error) {
	var out []models.TourGroup
	for _, id := range ids {
		if g, ok := f.groups[id]; ok {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeGroupStore) CreateTx(_ context.Context, _ database.Tx, group *models.TourGroup) error {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	stored := *group
	f.groups[group.ID] = &stored
	f.created = append(f.created, &stored)
	return nil
}

func (f *fakeGroupStore) UpdateTx(_ context.Context, _ database.Tx, group *models.TourGroup) error {
	stored := *group
	f.groups[group.ID] = &stored
	f.updated = append(f.updated, &stored)
	return nil
}

func (f *fakeGroupStore) DeleteOrphansTx(context.Context, database.Tx) (int64, error) {
	f.orphansPurged = true
	return 0, nil
}

type fakeLock struct {
	released bool
}

func (f *fakeLock) Release(context.Context) error {
	f.released = true
	return nil
}

type fakeLocker struct {
	err  error
	lock *fakeLock
}

func (f *fakeLocker) TryAcquire(context.Context, string, time.Duration, time.Duration) (LockHandle, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.lock == nil {
		f.lock = &fakeLock{}
	}
	return f.lock, nil
}

func groupedTour(title, date, clock string, participants int, groupID *uuid.UUID) models.Tour {
	return models.Tour{
		ID:           uuid.New(),
		Title:        title,
		Date:         date,
		Time:         clock,
		Participants: participants,
		GroupID:      groupID,
	}
}

func newTestEngine(tours *fakeTourStore, groups *fakeGroupStore, locker AdvisoryLocker) (*Engine, *fakeTx) {
	tx := &fakeTx{}
	return NewEngine(&fakeDB{tx: tx}, tours, groups, locker, Config{Capacity: 9}, testLogger()), tx
}

func TestRegroupCreatesGroups(t *testing.T) {
	tours := &fakeTourStore{tours: []models.Tour{
		groupedTour("Uffizi Gallery Tour", "2025-11-01", "09:00", 4, nil),
		groupedTour("Uffizi Gallery Tour", "2025-11-01", "09:00", 3, nil),
	}}
	groups := newFakeGroupStore()
	engine, tx := newTestEngine(tours, groups, &fakeLocker{})

	result, err := engine.Regroup(context.Background(), "2025-10-25", "2026-02-22")
	require.NoError(t, err)

	assert.Equal(t, 1, result.GroupsCreated)
	assert.Equal(t, 2, result.ToursGrouped)
	assert.False(t, result.Skipped)

	require.Len(t, groups.created, 1)
	created := groups.created[0]
	assert.Equal(t, "2025-11-01", created.Date)
	assert.Equal(t, "09:00", created.Time)
	assert.Equal(t, 7, created.TotalParticipants)

	for _, tour := range tours.tours {
		require.Contains(t, tours.assignments, tour.ID)
		assert.Equal(t, created.ID, *tours.assignments[tour.ID])
	}
	assert.True(t, tx.committed)
	assert.True(t, groups.orphansPurged)
}

func TestRegroupSoloTourGetsNoGroup(t *testing.T) {
	staleID := uuid.New()
	tours := &fakeTourStore{tours: []models.Tour{
		groupedTour("Duomo Climb", "2025-11-01", "14:00", 5, &staleID),
	}}
	groups := newFakeGroupStore(&models.TourGroup{ID: staleID, TotalParticipants: 5})
	engine, _ := newTestEngine(tours, groups, &fakeLocker{})

	result, err := engine.Regroup(context.Background(), "2025-10-25", "2026-02-22")
	require.NoError(t, err)

	assert.Equal(t, 0, result.GroupsCreated)
	assert.Equal(t, 0, result.ToursGrouped)
	// The lone tour loses its stale assignment
	require.Contains(t, tours.assignments, tours.tours[0].ID)
	assert.Nil(t, tours.assignments[tours.tours[0].ID])
}

func TestRegroupReusesLiveGroup(t *testing.T) {
	groupID := uuid.New()
	tours := &fakeTourStore{tours: []models.Tour{
		groupedTour("Uffizi Gallery Tour", "2025-11-05", "10:00", 3, &groupID),
		groupedTour("Uffizi Gallery Tour", "2025-11-05", "10:00", 4, nil),
	}}
	groups := newFakeGroupStore(&models.TourGroup{
		ID:                groupID,
		Date:              "2025-11-01",
		Time:              "09:00",
		TotalParticipants: 3,
	})
	engine, _ := newTestEngine(tours, groups, &fakeLocker{})

	result, err := engine.Regroup(context.Background(), "2025-10-25", "2026-02-22")
	require.NoError(t, err)

	assert.Equal(t, 0, result.GroupsCreated)
	assert.Equal(t, 2, result.ToursGrouped)
	assert.Empty(t, groups.created)

	// Both members land in the existing group, which follows the departure
	require.Len(t, groups.updated, 1)
	reused := groups.updated[0]
	assert.Equal(t, groupID, reused.ID)
	assert.Equal(t, "2025-11-05", reused.Date)
	assert.Equal(t, "10:00", reused.Time)
	assert.Equal(t, 7, reused.TotalParticipants)
	for _, tour := range tours.tours {
		assert.Equal(t, groupID, *tours.assignments[tour.ID])
	}
}

func TestRegroupGroupClaimedOncePerPass(t *testing.T) {
	// Four members of one group grew to 4 participants each; they now need
	// two bins, and only the first may keep the old group
	groupID := uuid.New()
	tours := &fakeTourStore{tours: []models.Tour{
		groupedTour("Uffizi Gallery Tour", "2025-11-01", "09:00", 4, &groupID),
		groupedTour("Uffizi Gallery Tour", "2025-11-01", "09:00", 4, &groupID),
		groupedTour("Uffizi Gallery Tour", "2025-11-01", "09:00", 4, &groupID),
		groupedTour("Uffizi Gallery Tour", "2025-11-01", "09:00", 4, &groupID),
	}}
	groups := newFakeGroupStore(&models.TourGroup{
		ID:                groupID,
		Date:              "2025-11-01",
		Time:              "09:00",
		TotalParticipants: 8,
	})
	engine, _ := newTestEngine(tours, groups, &fakeLocker{})

	result, err := engine.Regroup(context.Background(), "2025-10-25", "2026-02-22")
	require.NoError(t, err)

	assert.Equal(t, 1, result.GroupsCreated)
	assert.Equal(t, 4, result.ToursGrouped)
	require.Len(t, groups.created, 1)
	newID := groups.created[0].ID
	require.NotEqual(t, groupID, newID)

	// Two tours per group, each group within capacity
	perGroup := map[uuid.UUID]int{}
	for _, tour := range tours.tours {
		require.Contains(t, tours.assignments, tour.ID)
		perGroup[*tours.assignments[tour.ID]] += tour.Participants
	}
	assert.Equal(t, 8, perGroup[groupID])
	assert.Equal(t, 8, perGroup[newID])
}

func TestRegroupManualGroupUntouched(t *testing.T) {
	manualID := uuid.New()
	tours := &fakeTourStore{tours: []models.Tour{
		groupedTour("Uffizi Gallery Tour", "2025-11-01", "09:00", 2, &manualID),
		groupedTour("Uffizi Gallery Tour", "2025-11-01", "09:00", 3, &manualID),
		groupedTour("Uffizi Gallery Tour", "2025-11-01", "09:00", 4, nil),
	}}
	groups := newFakeGroupStore(&models.TourGroup{ID: manualID, ManualMerge: true, TotalParticipants: 5})
	engine, _ := newTestEngine(tours, groups, &fakeLocker{})

	result, err := engine.Regroup(context.Background(), "2025-10-25", "2026-02-22")
	require.NoError(t, err)

	// The two manual members stay put; the free tour is alone in its bin
	assert.Equal(t, 0, result.GroupsCreated)
	assert.Equal(t, 0, result.ToursGrouped)
	assert.Empty(t, groups.updated)
	assert.NotContains(t, tours.assignments, tours.tours[0].ID)
	assert.NotContains(t, tours.assignments, tours.tours[1].ID)
}

func TestRegroupSkipsWhenLockHeld(t *testing.T) {
	tours := &fakeTourStore{tours: []models.Tour{
		groupedTour("Uffizi Gallery Tour", "2025-11-01", "09:00", 4, nil),
	}}
	groups := newFakeGroupStore()
	engine, tx := newTestEngine(tours, groups, &fakeLocker{err: redis.ErrLockNotAcquired})

	result, err := engine.Regroup(context.Background(), "2025-10-25", "2026-02-22")
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Empty(t, tours.assignments)
	assert.False(t, tx.committed)
}

func TestRegroupReleasesLock(t *testing.T) {
	locker := &fakeLocker{}
	engine, _ := newTestEngine(&fakeTourStore{}, newFakeGroupStore(), locker)

	_, err := engine.Regroup(context.Background(), "2025-10-25", "2026-02-22")
	require.NoError(t, err)
	assert.True(t, locker.lock.released)
}
