package repository

import (
	"context"
	"fmt"
	"time"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	domain "classbook/internal/domain/schedules"
)

type AvailabilityRepo struct {
	db     *sqlx.DB
	getter *trmsqlx.CtxGetter
}

func NewAvailabilityRepo(db *sqlx.DB, getter *trmsqlx.CtxGetter) *AvailabilityRepo {
	return &AvailabilityRepo{db: db, getter: getter}
}

func (r *AvailabilityRepo) WindowsForInstructor(ctx context.Context, instructorID uuid.UUID) ([]domain.WeeklyWindow, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryxContext(ctx, `
		SELECT instructor_id, weekday, start_minute, end_minute
		FROM instructor_availability
		WHERE instructor_id = $1`, instructorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query availability windows: %w", err)
	}
	defer rows.Close()

	var windows []domain.WeeklyWindow
	for rows.Next() {
		var w domain.WeeklyWindow
		if err := rows.Scan(&w.InstructorId, &w.Weekday, &w.StartMinute, &w.EndMinute); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}

	return windows, rows.Err()
}

func (r *AvailabilityRepo) BlackoutsForInstructor(ctx context.Context, instructorID uuid.UUID) ([]domain.Blackout, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryxContext(ctx, `
		SELECT instructor_id, blackout_date
		FROM instructor_blackouts
		WHERE instructor_id = $1`, instructorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query blackouts: %w", err)
	}
	defer rows.Close()

	var blackouts []domain.Blackout
	for rows.Next() {
		var (
			b    domain.Blackout
			date time.Time
		)
		if err := rows.Scan(&b.InstructorId, &date); err != nil {
			return nil, err
		}
		b.Date = date.UTC()
		blackouts = append(blackouts, b)
	}

	return blackouts, rows.Err()
}
