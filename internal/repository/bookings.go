package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	domain "classbook/internal/domain/bookings"
)

type BookingsRepo struct {
	db     *sqlx.DB
	getter *trmsqlx.CtxGetter
}

func NewBookingsRepo(db *sqlx.DB, getter *trmsqlx.CtxGetter) *BookingsRepo {
	return &BookingsRepo{db: db, getter: getter}
}

const bookingColumns = `
	id, schedule_id, student_id, booking_code, amount, currency,
	status, payment_status, notes, meta, created_at`

func (r *BookingsRepo) CreateBooking(ctx context.Context, booking domain.Booking) (uuid.UUID, error) {
	var id uuid.UUID

	meta, err := json.Marshal(metaOrEmpty(booking.Meta))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal booking meta: %w", err)
	}

	query := `
		INSERT INTO bookings (
			schedule_id, student_id, booking_code, amount, currency,
			status, payment_status, notes, meta
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		) RETURNING id`

	err = r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, query,
		booking.ScheduleId,
		booking.StudentId,
		booking.BookingCode,
		booking.Amount,
		booking.Currency,
		booking.Status,
		booking.PaymentStatus,
		booking.Notes,
		meta,
	).Scan(&id)

	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create booking: %w", err)
	}

	return id, nil
}

func (r *BookingsRepo) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	row := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)

	return scanBooking(row)
}

// CountActiveBySchedule counts non-cancelled bookings, the seat usage of a
// schedule.
func (r *BookingsRepo) CountActiveBySchedule(ctx context.Context, scheduleID uuid.UUID) (int64, error) {
	var count int64

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE schedule_id = $1 AND status != 'cancelled'`, scheduleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	return count, nil
}

func (r *BookingsRepo) ActiveBookingExists(ctx context.Context, scheduleID, studentID uuid.UUID) (bool, error) {
	var exists bool

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE schedule_id = $1 AND student_id = $2 AND status != 'cancelled'
		)`, scheduleID, studentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check booking existence: %w", err)
	}

	return exists, nil
}

func (r *BookingsRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		UPDATE bookings SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	return requireAffected(res)
}

func (r *BookingsRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		UPDATE bookings SET payment_status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update booking payment status: %w", err)
	}

	return requireAffected(res)
}

// MoveToSchedule swaps the booking to a new schedule with its recomputed
// amount, used by reschedule inside the capacity transaction.
func (r *BookingsRepo) MoveToSchedule(ctx context.Context, id, newScheduleID uuid.UUID, booking domain.Booking) error {
	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		UPDATE bookings SET schedule_id = $2, amount = $3 WHERE id = $1`,
		id, newScheduleID, booking.Amount)
	if err != nil {
		return fmt.Errorf("failed to move booking: %w", err)
	}

	return requireAffected(res)
}

// ListActiveBySchedule returns the non-cancelled bookings on a schedule,
// oldest first.
func (r *BookingsRepo) ListActiveBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]domain.Booking, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryxContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE schedule_id = $1 AND status != 'cancelled'
		ORDER BY created_at ASC`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}

	return out, rows.Err()
}

// CancelExpiredPending flips pending, unpaid bookings created before the
// cutoff to cancelled and returns the victims. The conditional UPDATE makes
// concurrent sweeps idempotent: an already-cancelled row no longer matches.
func (r *BookingsRepo) CancelExpiredPending(ctx context.Context, before time.Time) ([]domain.Booking, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryxContext(ctx, `
		UPDATE bookings SET status = 'cancelled'
		WHERE status = 'pending'
		  AND payment_status != 'completed'
		  AND created_at < $1
		RETURNING `+bookingColumns, before)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel expired bookings: %w", err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}

	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var (
		b    domain.Booking
		meta []byte
	)

	err := row.Scan(
		&b.Id,
		&b.ScheduleId,
		&b.StudentId,
		&b.BookingCode,
		&b.Amount,
		&b.Currency,
		&b.Status,
		&b.PaymentStatus,
		&b.Notes,
		&meta,
		&b.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &b.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal booking meta: %w", err)
		}
	}

	return &b, nil
}

func metaOrEmpty(meta map[string]string) map[string]string {
	if meta == nil {
		return map[string]string{}
	}
	return meta
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
