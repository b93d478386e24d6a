package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	domain "classbook/internal/domain/waitlist"
)

type WaitlistRepo struct {
	db     *sqlx.DB
	getter *trmsqlx.CtxGetter
}

func NewWaitlistRepo(db *sqlx.DB, getter *trmsqlx.CtxGetter) *WaitlistRepo {
	return &WaitlistRepo{db: db, getter: getter}
}

func (r *WaitlistRepo) Enqueue(ctx context.Context, scheduleID, studentID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID

	// Re-joining is a no-op that keeps the original queue position.
	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, `
		INSERT INTO waitlist_entries (schedule_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (schedule_id, student_id) DO UPDATE SET student_id = EXCLUDED.student_id
		RETURNING id`, scheduleID, studentID).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue waitlist entry: %w", err)
	}

	return id, nil
}

// PopNextInLine removes and returns the earliest-queued entry for the
// schedule. SKIP LOCKED keeps concurrent promoters from fighting over the
// same entry. Returns nil when the queue is empty.
func (r *WaitlistRepo) PopNextInLine(ctx context.Context, scheduleID uuid.UUID) (*domain.Entry, error) {
	var entry domain.Entry

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, `
		DELETE FROM waitlist_entries
		WHERE id = (
			SELECT id FROM waitlist_entries
			WHERE schedule_id = $1
			ORDER BY enqueued_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, schedule_id, student_id, enqueued_at`, scheduleID).Scan(
		&entry.Id,
		&entry.ScheduleId,
		&entry.StudentId,
		&entry.EnqueuedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop waitlist entry: %w", err)
	}

	return &entry, nil
}

func (r *WaitlistRepo) CountBySchedule(ctx context.Context, scheduleID uuid.UUID) (int64, error) {
	var count int64

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, `
		SELECT COUNT(*) FROM waitlist_entries WHERE schedule_id = $1`, scheduleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count waitlist entries: %w", err)
	}

	return count, nil
}
