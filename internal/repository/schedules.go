package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	domain "classbook/internal/domain/schedules"
)

type SchedulesRepo struct {
	db     *sqlx.DB
	getter *trmsqlx.CtxGetter
}

func NewSchedulesRepo(db *sqlx.DB, getter *trmsqlx.CtxGetter) *SchedulesRepo {
	return &SchedulesRepo{db: db, getter: getter}
}

func (r *SchedulesRepo) CreateSchedule(ctx context.Context, schedule domain.Schedule) (uuid.UUID, error) {
	var id uuid.UUID

	query := `
		INSERT INTO schedules (
			class_id, instructor_id, resource_id, location_id,
			start_time, end_time, capacity, price_override, currency, status, is_private
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		) RETURNING id`

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, query,
		schedule.ClassId,
		schedule.InstructorId,
		schedule.ResourceId,
		schedule.LocationId,
		schedule.StartTime,
		schedule.EndTime,
		schedule.Capacity,
		schedule.PriceOverride,
		schedule.Currency,
		domain.StatusScheduled,
		schedule.IsPrivate,
	).Scan(&id)

	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	return id, nil
}

func (r *SchedulesRepo) GetSchedule(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	var schedule domain.Schedule

	query := `
		SELECT
			id, class_id, instructor_id, resource_id, location_id,
			start_time, end_time, capacity, price_override, currency, status, is_private
		FROM schedules
		WHERE id = $1`

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, query, id).Scan(
		&schedule.Id,
		&schedule.ClassId,
		&schedule.InstructorId,
		&schedule.ResourceId,
		&schedule.LocationId,
		&schedule.StartTime,
		&schedule.EndTime,
		&schedule.Capacity,
		&schedule.PriceOverride,
		&schedule.Currency,
		&schedule.Status,
		&schedule.IsPrivate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	return &schedule, nil
}

// FindOverlappingByInstructor returns the ids of non-cancelled schedules for
// the instructor whose [start_time, end_time) window intersects the
// candidate's, excluding the candidate itself.
func (r *SchedulesRepo) FindOverlappingByInstructor(
	ctx context.Context,
	instructorID uuid.UUID,
	candidate domain.Schedule,
) ([]uuid.UUID, error) {
	return r.findOverlapping(ctx, "instructor_id", instructorID, candidate)
}

func (r *SchedulesRepo) FindOverlappingByResource(
	ctx context.Context,
	resourceID uuid.UUID,
	candidate domain.Schedule,
) ([]uuid.UUID, error) {
	return r.findOverlapping(ctx, "resource_id", resourceID, candidate)
}

func (r *SchedulesRepo) findOverlapping(
	ctx context.Context,
	column string,
	subjectID uuid.UUID,
	candidate domain.Schedule,
) ([]uuid.UUID, error) {
	query := fmt.Sprintf(`
		SELECT id FROM schedules
		WHERE %s = $1
		  AND status != 'cancelled'
		  AND start_time < $2
		  AND end_time > $3
		  AND id != $4`, column)

	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryxContext(ctx, query,
		subjectID, candidate.EndTime, candidate.StartTime, candidate.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping schedules: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *SchedulesRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		UPDATE schedules SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update schedule status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}
