package repositories

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

const tourGroupsTable = "tour_groups"

var tourGroupStruct = database.NewStruct(new(models.TourGroup))

// TourGroupRepository handles database operations for tour groups. The write
// methods all run inside the grouping pass transaction.
type TourGroupRepository struct {
	*Repository
}

// NewTourGroupRepository creates a new tour group repository
func NewTourGroupRepository(db database.DB, logger ectologger.Logger) *TourGroupRepository {
	return &TourGroupRepository{
		Repository: NewRepository(db, logger),
	}
}

// ListByIDs returns the groups with the given IDs
func (r *TourGroupRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.TourGroup, error) {
	ctx, span := tracing.StartSpan(ctx, "TourGroupRepository.ListByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	sb := tourGroupStruct.SelectFrom(tourGroupsTable)
	sb.Where(sb.In("id", args...))

	query, qargs := sb.Build()
	var groups []models.TourGroup
	err := r.DB().SelectContext(ctx, &groups, query, qargs...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list groups by ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list groups")
	}

	return groups, nil
}

// CreateTx inserts a new group inside the caller's transaction
func (r *TourGroupRepository) CreateTx(ctx context.Context, tx database.Tx, group *models.TourGroup) error {
	ctx, span := tracing.StartSpan(ctx, "TourGroupRepository.CreateTx")
	defer span.End()

	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(tourGroupsTable).
		Cols("id", "date", "time", "name", "total_participants", "manual_merge", "guide_id",
			"created_at", "updated_at").
		Values(group.ID, group.Date, group.Time, group.Name, group.TotalParticipants, group.ManualMerge, group.GuideID,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := tx.QueryRowContext(ctx, query, args...).Scan(&group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"group_id": group.ID,
		}).Error("failed to create group")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create group")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"group_id": group.ID,
	}).Debugf("Created %s", tourGroupsTable)
	return nil
}

// UpdateTx rewrites a group's departure, totals and guide inside the
// caller's transaction
func (r *TourGroupRepository) UpdateTx(ctx context.Context, tx database.Tx, group *models.TourGroup) error {
	ctx, span := tracing.StartSpan(ctx, "TourGroupRepository.UpdateTx")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(tourGroupsTable).
		Set(
			ub.Assign("date", group.Date),
			ub.Assign("time", group.Time),
			ub.Assign("name", group.Name),
			ub.Assign("total_participants", group.TotalParticipants),
			ub.Assign("guide_id", group.GuideID),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("id", group.ID))

	query, args := ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"group_id": group.ID,
		}).Error("failed to update group")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update group")
	}

	return nil
}

// DeleteOrphansTx removes automatic groups that no tour points at any more.
// Manual-merge groups are never touched. Returns the number of rows removed.
func (r *TourGroupRepository) DeleteOrphansTx(ctx context.Context, tx database.Tx) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "TourGroupRepository.DeleteOrphansTx")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(tourGroupsTable)
	db.Where(
		db.Equal("manual_merge", false),
		fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s WHERE %s.group_id = %s.id)", toursTable, toursTable, tourGroupsTable),
	)

	query, args := db.Build()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to delete orphaned groups")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete orphaned groups")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete orphaned groups")
	}

	if rows > 0 {
		r.logger.WithContext(ctx).Debugf("Deleted %d orphaned groups", rows)
	}
	return rows, nil
}
