package grouping

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/metrics"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/redis"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// lockKey names the advisory lease; one grouping pass runs at a time across
// all instances
const lockKey = "grouping"

// TourStore is the tour storage surface the engine needs
type TourStore interface {
	ListActiveByDateRange(ctx context.Context, start, end string) ([]models.Tour, error)
	AssignGroupTx(ctx context.Context, tx database.Tx, tourID uuid.UUID, groupID *uuid.UUID) error
}

// GroupStore is the group storage surface the engine needs
type GroupStore interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.TourGroup, error)
	CreateTx(ctx context.Context, tx database.Tx, group *models.TourGroup) error
	UpdateTx(ctx context.Context, tx database.Tx, group *models.TourGroup) error
	DeleteOrphansTx(ctx context.Context, tx database.Tx) (int64, error)
}

// LockHandle is a held advisory lease
type LockHandle interface {
	Release(ctx context.Context) error
}

// AdvisoryLocker hands out the lease that serializes grouping passes.
// RedisLocker is the production implementation.
type AdvisoryLocker interface {
	TryAcquire(ctx context.Context, key string, ttl, wait time.Duration) (LockHandle, error)
}

// RedisLocker adapts the Redis locker to the engine's lease surface
type RedisLocker struct {
	Locker *redis.Locker
}

func (l RedisLocker) TryAcquire(ctx context.Context, key string, ttl, wait time.Duration) (LockHandle, error) {
	lock, err := l.Locker.TryAcquire(ctx, key, ttl, wait)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// Config holds the grouping engine configuration
type Config struct {
	Capacity int
	LockTTL  time.Duration
	LockWait time.Duration
}

// Result reports what a grouping pass did
type Result struct {
	GroupsCreated int
	ToursGrouped  int
	Skipped       bool
}

// Engine rebuilds group assignments for a date window. The whole pass is one
// database transaction under a distributed lock; when the lock is held
// elsewhere the pass is skipped rather than queued.
type Engine struct {
	db     database.DB
	tours  TourStore
	groups GroupStore
	locker AdvisoryLocker
	cfg    Config
	logger ectologger.Logger
}

// NewEngine creates a new grouping engine
func NewEngine(db database.DB, tours TourStore, groups GroupStore, locker AdvisoryLocker, cfg Config, logger ectologger.Logger) *Engine {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 5 * time.Second
	}

	return &Engine{
		db:     db,
		tours:  tours,
		groups: groups,
		locker: locker,
		cfg:    cfg,
		logger: logger,
	}
}

// Regroup rebuckets and repacks every eligible tour in [start, end]
func (e *Engine) Regroup(ctx context.Context, start, end string) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "GroupingEngine.Regroup")
	defer span.End()

	lock, err := e.locker.TryAcquire(ctx, lockKey, e.cfg.LockTTL, e.cfg.LockWait)
	if errors.Is(err, redis.ErrLockNotAcquired) {
		metrics.GroupingSkipped.Inc()
		e.logger.WithContext(ctx).Warn("grouping lock held elsewhere, skipping pass")
		return &Result{Skipped: true}, nil
	}
	if err != nil {
		return nil, err
	}
	defer lock.Release(ctx)

	tours, err := e.tours.ListActiveByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	eligible, manualTourIDs, err := e.filterEligible(ctx, tours)
	if err != nil {
		return nil, err
	}

	groupByID, err := e.memberGroups(ctx, eligible)
	if err != nil {
		return nil, err
	}

	ctxTx, tx, err := e.db.GetTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	result := &Result{}
	assigned := make(map[uuid.UUID]bool, len(eligible))
	claimed := make(map[uuid.UUID]bool)

	for _, bucket := range BucketTours(eligible) {
		for _, bin := range Pack(bucket.Tours, e.cfg.Capacity) {
			if len(bin) < 2 {
				continue
			}
			if err := e.applyBin(ctxTx, tx, bucket.Key, bin, groupByID, claimed, result, assigned); err != nil {
				return nil, err
			}
		}
	}

	// Eligible tours that ended up alone in a bin leave their old automatic
	// group; the group row itself goes in orphan cleanup below
	for _, tour := range eligible {
		if assigned[tour.ID] || tour.GroupID == nil {
			continue
		}
		if err := e.tours.AssignGroupTx(ctxTx, tx, tour.ID, nil); err != nil {
			return nil, err
		}
	}

	if _, err := e.groups.DeleteOrphansTx(ctxTx, tx); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctxTx); err != nil {
		return nil, err
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"groups_created": result.GroupsCreated,
		"tours_grouped":  result.ToursGrouped,
		"manual_tours":   len(manualTourIDs),
	}).Infof("Grouping pass complete for %s..%s", start, end)

	return result, nil
}

// applyBin assigns one bin of co-departing tours to a group, reusing a live
// automatic group when any member already has one. A group claimed by an
// earlier bin in the same pass is not reusable again; two bins sharing one
// group would put its headcount over capacity.
func (e *Engine) applyBin(ctx context.Context, tx database.Tx, key BucketKey, bin []models.Tour, groupByID map[uuid.UUID]models.TourGroup, claimed map[uuid.UUID]bool, result *Result, assigned map[uuid.UUID]bool) error {
	total := 0
	for _, tour := range bin {
		total += tour.Participants
	}

	var group *models.TourGroup
	for _, tour := range bin {
		if tour.GroupID == nil || claimed[*tour.GroupID] {
			continue
		}
		if g, ok := groupByID[*tour.GroupID]; ok && !g.ManualMerge {
			group = &g
			break
		}
	}

	if group != nil {
		group.Date = key.Date
		group.Time = key.Time
		group.Name = bin[0].Title
		group.TotalParticipants = total
		if group.GuideID == nil {
			group.GuideID = firstGuide(bin)
		}
		if err := e.groups.UpdateTx(ctx, tx, group); err != nil {
			return err
		}
	} else {
		group = &models.TourGroup{
			Date:              key.Date,
			Time:              key.Time,
			Name:              bin[0].Title,
			TotalParticipants: total,
			GuideID:           firstGuide(bin),
		}
		if err := e.groups.CreateTx(ctx, tx, group); err != nil {
			return err
		}
		metrics.GroupsCreated.Inc()
		result.GroupsCreated++
	}
	claimed[group.ID] = true

	for _, tour := range bin {
		if err := e.tours.AssignGroupTx(ctx, tx, tour.ID, &group.ID); err != nil {
			return err
		}
		assigned[tour.ID] = true
		result.ToursGrouped++
	}

	return nil
}

// filterEligible drops tours locked inside manual-merge groups. Those tours
// and their groups are untouchable to the automated pass.
func (e *Engine) filterEligible(ctx context.Context, tours []models.Tour) ([]models.Tour, map[uuid.UUID]bool, error) {
	groupByID, err := e.memberGroups(ctx, tours)
	if err != nil {
		return nil, nil, err
	}

	manualTourIDs := make(map[uuid.UUID]bool)
	eligible := make([]models.Tour, 0, len(tours))
	for _, tour := range tours {
		if tour.GroupID != nil {
			if g, ok := groupByID[*tour.GroupID]; ok && g.ManualMerge {
				manualTourIDs[tour.ID] = true
				continue
			}
		}
		eligible = append(eligible, tour)
	}

	return eligible, manualTourIDs, nil
}

// memberGroups loads the groups the given tours currently belong to
func (e *Engine) memberGroups(ctx context.Context, tours []models.Tour) (map[uuid.UUID]models.TourGroup, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, tour := range tours {
		if tour.GroupID != nil && !seen[*tour.GroupID] {
			seen[*tour.GroupID] = true
			ids = append(ids, *tour.GroupID)
		}
	}

	groups, err := e.groups.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]models.TourGroup, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}
	return byID, nil
}

// firstGuide copies a guide from the first bin member that has one. Which
// member wins when several carry different guides is arbitrary.
func firstGuide(bin []models.Tour) *uuid.UUID {
	for _, tour := range bin {
		if tour.GuideID != nil {
			return tour.GuideID
		}
	}
	return nil
}
