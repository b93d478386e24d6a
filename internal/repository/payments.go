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
	"github.com/shopspring/decimal"

	domain "classbook/internal/domain/payments"
)

// PaymentsRepo is the payment ledger: every charge, refund and transfer is
// an append-only row, balances are derived by summing completed rows.
type PaymentsRepo struct {
	db     *sqlx.DB
	getter *trmsqlx.CtxGetter
}

func NewPaymentsRepo(db *sqlx.DB, getter *trmsqlx.CtxGetter) *PaymentsRepo {
	return &PaymentsRepo{db: db, getter: getter}
}

const paymentColumns = `
	id, booking_id, kind, amount, currency, gateway,
	external_transaction_id, status, meta, created_at`

func (r *PaymentsRepo) CreatePayment(ctx context.Context, payment domain.Payment) (uuid.UUID, error) {
	var id uuid.UUID

	meta, err := json.Marshal(paymentMetaOrEmpty(payment.Meta))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal payment meta: %w", err)
	}

	query := `
		INSERT INTO payments (
			booking_id, kind, amount, currency, gateway,
			external_transaction_id, status, meta
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		) RETURNING id`

	err = r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, query,
		payment.BookingId,
		payment.Kind,
		payment.Amount,
		payment.Currency,
		payment.Gateway,
		payment.ExternalTransactionId,
		payment.Status,
		meta,
	).Scan(&id)

	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create payment: %w", err)
	}

	return id, nil
}

func (r *PaymentsRepo) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)

	return scanPayment(row)
}

func (r *PaymentsRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.Payment, error) {
	row := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE external_transaction_id = $1`, externalID)

	return scanPayment(row)
}

// FindOpenByKind returns the oldest non-terminal payment of the given kind
// for a booking. The orchestrator checks this before issuing a new gateway
// operation so a retried request reuses the in-flight payment instead of
// charging twice.
func (r *PaymentsRepo) FindOpenByKind(ctx context.Context, bookingID uuid.UUID, kind domain.Kind) (*domain.Payment, error) {
	row := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE booking_id = $1 AND kind = $2 AND status IN ('pending', 'processing')
		ORDER BY created_at ASC
		LIMIT 1`, bookingID, kind)

	payment, err := scanPayment(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return payment, err
}

// ListOpenOlderThan returns non-terminal payments that already reached the
// gateway but have not settled within age. Polling reconciliation walks this
// list when webhooks go missing.
func (r *PaymentsRepo) ListOpenOlderThan(ctx context.Context, age time.Duration) ([]domain.Payment, error) {
	rows, err := r.getter.DefaultTrOrDB(ctx, r.db).QueryxContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE status IN ('pending', 'processing')
		  AND external_transaction_id != ''
		  AND created_at < now() - ($1 * INTERVAL '1 second')
		ORDER BY created_at ASC`, int64(age.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to list open payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}

	return payments, rows.Err()
}

// UpdateStatusFrom is the compare-and-set guard for reconciliation: the
// status only moves when the current value is one of the expected ones.
// Returns false when the row was already past the expected states, which is
// how duplicate webhook deliveries are detected.
func (r *PaymentsRepo) UpdateStatusFrom(
	ctx context.Context,
	id uuid.UUID,
	from []domain.Status,
	to domain.Status,
) (bool, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	query, args, err := sqlx.In(
		`UPDATE payments SET status = ? WHERE id = ? AND status IN (?)`,
		to, id, states)
	if err != nil {
		return false, err
	}

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return false, fmt.Errorf("failed to update payment status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// SetExternalTransactionID records the gateway's transaction id once the
// provider call has been issued.
func (r *PaymentsRepo) SetExternalTransactionID(ctx context.Context, id uuid.UUID, externalID string) error {
	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		UPDATE payments SET external_transaction_id = $2 WHERE id = $1`, id, externalID)
	if err != nil {
		return fmt.Errorf("failed to set external transaction id: %w", err)
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

// MergeMeta folds the given keys into the payment's meta document, keeping
// everything already stored there.
func (r *PaymentsRepo) MergeMeta(ctx context.Context, id uuid.UUID, meta map[string]string) error {
	doc, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal payment meta: %w", err)
	}

	res, err := r.getter.DefaultTrOrDB(ctx, r.db).ExecContext(ctx, `
		UPDATE payments SET meta = meta || $2::jsonb WHERE id = $1`, id, doc)
	if err != nil {
		return fmt.Errorf("failed to merge payment meta: %w", err)
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

// LatestCompletedCharge returns the most recent completed charge for a
// booking, or nil when the booking was never successfully charged. Refunds
// are issued against this row's gateway transaction.
func (r *PaymentsRepo) LatestCompletedCharge(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error) {
	row := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE booking_id = $1 AND kind = 'charge' AND status = 'completed'
		ORDER BY created_at DESC
		LIMIT 1`, bookingID)

	payment, err := scanPayment(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return payment, err
}

// SumCompletedCharges returns the total of completed positive charges for a
// booking.
func (r *PaymentsRepo) SumCompletedCharges(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error) {
	return r.sumCompleted(ctx, bookingID, domain.KindCharge)
}

// SumCompletedRefunds returns the total refunded magnitude (positive
// number) for a booking.
func (r *PaymentsRepo) SumCompletedRefunds(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error) {
	sum, err := r.sumCompleted(ctx, bookingID, domain.KindRefund)
	if err != nil {
		return decimal.Zero, err
	}
	return sum.Neg(), nil
}

func (r *PaymentsRepo) sumCompleted(ctx context.Context, bookingID uuid.UUID, kind domain.Kind) (decimal.Decimal, error) {
	var sum decimal.Decimal

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE booking_id = $1 AND kind = $2 AND status = 'completed'`,
		bookingID, kind).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments: %w", err)
	}

	return sum, nil
}

// TransferExists reports whether any provider transfer was ever created for
// the booking, regardless of status. Payout is at-most-once per booking.
func (r *PaymentsRepo) TransferExists(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var exists bool

	err := r.getter.DefaultTrOrDB(ctx, r.db).QueryRowxContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payments WHERE booking_id = $1 AND kind = 'transfer'
		)`, bookingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transfer existence: %w", err)
	}

	return exists, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		p    domain.Payment
		meta []byte
	)

	err := row.Scan(
		&p.Id,
		&p.BookingId,
		&p.Kind,
		&p.Amount,
		&p.Currency,
		&p.Gateway,
		&p.ExternalTransactionId,
		&p.Status,
		&meta,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment meta: %w", err)
		}
	}

	return &p, nil
}

func paymentMetaOrEmpty(meta map[string]string) map[string]string {
	if meta == nil {
		return map[string]string{}
	}
	return meta
}
