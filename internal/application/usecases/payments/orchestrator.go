package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	trmanager "github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"classbook/internal/config"
	bdomain "classbook/internal/domain/bookings"
	domain "classbook/internal/domain/payments"
	sdomain "classbook/internal/domain/schedules"
	"classbook/internal/entities"
	"classbook/internal/infrastructure/clients"
	"classbook/internal/interfaces/message/events"
	"classbook/internal/interfaces/message/outbox"
	"classbook/internal/observability/log"
)

type Ledger interface {
	CreatePayment(ctx context.Context, payment domain.Payment) (uuid.UUID, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Payment, error)
	FindOpenByKind(ctx context.Context, bookingID uuid.UUID, kind domain.Kind) (*domain.Payment, error)
	ListOpenOlderThan(ctx context.Context, age time.Duration) ([]domain.Payment, error)
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from []domain.Status, to domain.Status) (bool, error)
	SetExternalTransactionID(ctx context.Context, id uuid.UUID, externalID string) error
	MergeMeta(ctx context.Context, id uuid.UUID, meta map[string]string) error
	LatestCompletedCharge(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error)
	SumCompletedCharges(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error)
	SumCompletedRefunds(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error)
	TransferExists(ctx context.Context, bookingID uuid.UUID) (bool, error)
}

type BookingsRepo interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*bdomain.Booking, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status bdomain.PaymentStatus) error
}

type SchedulesRepo interface {
	GetSchedule(ctx context.Context, id uuid.UUID) (*sdomain.Schedule, error)
}

type Gateway interface {
	Name() string
	Configured() bool
	Charge(ctx context.Context, req clients.ChargeRequest) (*clients.ChargeResponse, error)
	Refund(ctx context.Context, externalID string, amount decimal.Decimal) (string, error)
	Transfer(ctx context.Context, amount decimal.Decimal, currency, destinationAccount string) (string, error)
	GetStatus(ctx context.Context, externalID string) (clients.GatewayStatus, error)
}

type PayoutAccounts interface {
	PayoutAccount(ctx context.Context, instructorID uuid.UUID) (string, error)
}

// Orchestrator drives every money movement through the ledger and the
// gateway. Gateway calls never run inside a database transaction: a row is
// written first, the provider is called, then the row is reconciled. A crash
// between the two leaves a pending row that reconciliation picks up, never a
// silent double charge.
type Orchestrator struct {
	ledger          Ledger
	bookingsRepo    BookingsRepo
	schedulesRepo   SchedulesRepo
	gateway         Gateway
	accounts        PayoutAccounts
	trManager       *trmanager.Manager
	trGetter        *trmsqlx.CtxGetter
	watermillLogger watermill.LoggerAdapter
	policy          config.PolicyConfig
}

func NewOrchestrator(
	ledger Ledger,
	bookingsRepo BookingsRepo,
	schedulesRepo SchedulesRepo,
	gateway Gateway,
	accounts PayoutAccounts,
	trManager *trmanager.Manager,
	trGetter *trmsqlx.CtxGetter,
	watermillLogger watermill.LoggerAdapter,
	policy config.PolicyConfig,
) *Orchestrator {
	return &Orchestrator{
		ledger:          ledger,
		bookingsRepo:    bookingsRepo,
		schedulesRepo:   schedulesRepo,
		gateway:         gateway,
		accounts:        accounts,
		trManager:       trManager,
		trGetter:        trGetter,
		watermillLogger: watermillLogger,
		policy:          policy,
	}
}

// InitiateCharge charges the amount due for a booking. Retried calls are
// safe: an open (pending or processing) charge is reused instead of issuing
// a second gateway operation, and a fully settled booking returns the
// completed charge as-is.
func (o *Orchestrator) InitiateCharge(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error) {
	if !o.gateway.Configured() {
		return nil, domain.ErrGatewayNotConfigured
	}

	booking, err := o.bookingsRepo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	due := booking.Amount
	if o.policy.PartialPaymentEnabled {
		due = booking.Amount.Mul(o.policy.DepositPercent).Div(decimal.NewFromInt(100)).Round(2)
	}
	if !due.IsPositive() {
		return nil, domain.ErrNothingDue
	}

	var payment *domain.Payment
	err = withOpenRowRetry(func(ctx context.Context) error {
		return o.trManager.Do(ctx, func(ctx context.Context) error {
			open, err := o.ledger.FindOpenByKind(ctx, bookingID, domain.KindCharge)
			if err != nil {
				return err
			}
			if open != nil {
				payment = open
				return nil
			}

			charged, err := o.ledger.SumCompletedCharges(ctx, bookingID)
			if err != nil {
				return err
			}
			if charged.GreaterThanOrEqual(due) {
				payment, err = o.ledger.LatestCompletedCharge(ctx, bookingID)
				if err != nil {
					return err
				}
				if payment == nil {
					return domain.ErrNothingDue
				}
				return nil
			}

			candidate := domain.Payment{
				BookingId: bookingID,
				Kind:      domain.KindCharge,
				Amount:    due.Sub(charged),
				Currency:  booking.Currency,
				Gateway:   o.gateway.Name(),
				Status:    domain.StatusPending,
			}

			id, err := o.ledger.CreatePayment(ctx, candidate)
			if err != nil {
				return err
			}

			candidate.Id = id
			candidate.CreatedAt = time.Now().UTC()
			payment = &candidate

			return nil
		})
	})(ctx)
	if err != nil {
		return nil, err
	}

	// A reused row that already reached the gateway needs no second call.
	if payment.Status != domain.StatusPending || payment.ExternalTransactionId != "" {
		return payment, nil
	}

	req := clients.ChargeRequest{
		Reference: booking.BookingCode,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
	}
	if o.policy.SplitPaymentsEnabled && !o.policy.PostSessionPayouts {
		if err := o.attachSplit(ctx, booking, &req); err != nil {
			log.FromContext(ctx).
				WithError(err).
				WithField("booking_id", bookingID).
				Warn("split settlement unavailable, charging without destination")
		}
	}

	resp, err := o.gateway.Charge(ctx, req)
	if err != nil {
		if failErr := o.recordRejection(ctx, payment, err); failErr != nil {
			return nil, failErr
		}
		return nil, err
	}

	err = o.trManager.Do(ctx, func(ctx context.Context) error {
		if err := o.ledger.SetExternalTransactionID(ctx, payment.Id, resp.ExternalID); err != nil {
			return err
		}
		if resp.ClientHandle != "" {
			if err := o.ledger.MergeMeta(ctx, payment.Id,
				map[string]string{"client_handle": resp.ClientHandle}); err != nil {
				return err
			}
		}
		if _, err := o.ledger.UpdateStatusFrom(ctx, payment.Id,
			[]domain.Status{domain.StatusPending}, domain.StatusProcessing); err != nil {
			return err
		}

		return o.bookingsRepo.UpdatePaymentStatus(ctx, bookingID, bdomain.PaymentProcessing)
	})
	if err != nil {
		return nil, err
	}

	payment.ExternalTransactionId = resp.ExternalID
	payment.Status = domain.StatusProcessing
	if resp.ClientHandle != "" {
		if payment.Meta == nil {
			payment.Meta = map[string]string{}
		}
		payment.Meta["client_handle"] = resp.ClientHandle
	}

	return payment, nil
}

// attachSplit turns the charge into a destination charge: the gross amount
// lands on the instructor's account minus the platform's cut.
func (o *Orchestrator) attachSplit(ctx context.Context, booking *bdomain.Booking, req *clients.ChargeRequest) error {
	schedule, err := o.schedulesRepo.GetSchedule(ctx, booking.ScheduleId)
	if err != nil {
		return err
	}
	if schedule.InstructorId == nil {
		return domain.ErrNoPayoutAccount
	}

	account, err := o.accounts.PayoutAccount(ctx, *schedule.InstructorId)
	if err != nil {
		return err
	}
	if account == "" {
		return domain.ErrNoPayoutAccount
	}

	breakdown := domain.ComputeProviderPayout(req.Amount, o.payoutPolicy())
	req.DestinationAccount = account
	req.PlatformFee = breakdown.PlatformFee

	return nil
}

// Refund issues a refund against the booking's completed charge. A nil
// amount means a full refund of the remaining refundable balance. Retried
// calls reuse an open refund row.
func (o *Orchestrator) Refund(ctx context.Context, bookingID uuid.UUID, amount *decimal.Decimal) (*domain.Payment, error) {
	if !o.gateway.Configured() {
		return nil, domain.ErrGatewayNotConfigured
	}

	var (
		payment *domain.Payment
		charge  *domain.Payment
	)
	err := withOpenRowRetry(func(ctx context.Context) error {
		return o.trManager.Do(ctx, func(ctx context.Context) error {
			open, err := o.ledger.FindOpenByKind(ctx, bookingID, domain.KindRefund)
			if err != nil {
				return err
			}
			if open != nil {
				payment = open
				return nil
			}

			charge, err = o.ledger.LatestCompletedCharge(ctx, bookingID)
			if err != nil {
				return err
			}
			if charge == nil {
				return domain.ErrNoPayment
			}

			charged, err := o.ledger.SumCompletedCharges(ctx, bookingID)
			if err != nil {
				return err
			}
			refunded, err := o.ledger.SumCompletedRefunds(ctx, bookingID)
			if err != nil {
				return err
			}

			refundable := charged.Sub(refunded)
			if !refundable.IsPositive() {
				return domain.ErrNoPayment
			}

			requested := refundable
			if amount != nil {
				requested = *amount
			}
			if requested.GreaterThan(refundable) {
				return domain.ExceedsChargedError{
					BookingId:  bookingID,
					Requested:  requested,
					Refundable: refundable,
				}
			}
			if !requested.IsPositive() {
				return domain.ExceedsChargedError{
					BookingId:  bookingID,
					Requested:  requested,
					Refundable: refundable,
				}
			}

			candidate := domain.Payment{
				BookingId: bookingID,
				Kind:      domain.KindRefund,
				Amount:    requested.Neg(),
				Currency:  charge.Currency,
				Gateway:   o.gateway.Name(),
				Status:    domain.StatusPending,
			}

			id, err := o.ledger.CreatePayment(ctx, candidate)
			if err != nil {
				return err
			}

			candidate.Id = id
			candidate.CreatedAt = time.Now().UTC()
			payment = &candidate

			return nil
		})
	})(ctx)
	if err != nil {
		return nil, err
	}

	if payment.Status != domain.StatusPending || payment.ExternalTransactionId != "" {
		return payment, nil
	}
	if charge == nil {
		// Reused open row: resolve the original charge for the gateway call.
		charge, err = o.ledger.LatestCompletedCharge(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if charge == nil {
			return nil, domain.ErrNoPayment
		}
	}

	externalID, err := o.gateway.Refund(ctx, charge.ExternalTransactionId, payment.Amount.Neg())
	if err != nil {
		if failErr := o.recordRejection(ctx, payment, err); failErr != nil {
			return nil, failErr
		}
		return nil, err
	}

	err = o.trManager.Do(ctx, func(ctx context.Context) error {
		if err := o.ledger.SetExternalTransactionID(ctx, payment.Id, externalID); err != nil {
			return err
		}
		_, err := o.ledger.UpdateStatusFrom(ctx, payment.Id,
			[]domain.Status{domain.StatusPending}, domain.StatusProcessing)
		return err
	})
	if err != nil {
		return nil, err
	}

	payment.ExternalTransactionId = externalID
	payment.Status = domain.StatusProcessing

	return payment, nil
}

// HandleRescheduleDelta settles the price difference after a booking moved
// to a differently priced schedule. Only fully paid bookings are adjusted;
// unpaid ones simply get charged the new amount when their charge runs.
func (o *Orchestrator) HandleRescheduleDelta(ctx context.Context, bookingID uuid.UUID, oldAmount, newAmount decimal.Decimal) error {
	booking, err := o.bookingsRepo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.PaymentStatus != bdomain.PaymentCompleted {
		return nil
	}

	delta := newAmount.Sub(oldAmount)
	switch {
	case delta.IsZero():
		return nil
	case delta.IsNegative():
		refund := delta.Neg()
		_, err := o.Refund(ctx, bookingID, &refund)
		return err
	default:
		_, err := o.chargeExtra(ctx, booking, delta)
		return err
	}
}

// chargeExtra issues an additional charge on top of an already settled
// booking, used for upward reschedule deltas.
func (o *Orchestrator) chargeExtra(ctx context.Context, booking *bdomain.Booking, amount decimal.Decimal) (*domain.Payment, error) {
	if !o.gateway.Configured() {
		return nil, domain.ErrGatewayNotConfigured
	}

	var payment *domain.Payment
	err := withOpenRowRetry(func(ctx context.Context) error {
		return o.trManager.Do(ctx, func(ctx context.Context) error {
			open, err := o.ledger.FindOpenByKind(ctx, booking.Id, domain.KindCharge)
			if err != nil {
				return err
			}
			if open != nil {
				payment = open
				return nil
			}

			candidate := domain.Payment{
				BookingId: booking.Id,
				Kind:      domain.KindCharge,
				Amount:    amount,
				Currency:  booking.Currency,
				Gateway:   o.gateway.Name(),
				Status:    domain.StatusPending,
			}

			id, err := o.ledger.CreatePayment(ctx, candidate)
			if err != nil {
				return err
			}

			candidate.Id = id
			payment = &candidate

			return o.bookingsRepo.UpdatePaymentStatus(ctx, booking.Id, bdomain.PaymentProcessing)
		})
	})(ctx)
	if err != nil {
		return nil, err
	}

	if payment.Status != domain.StatusPending || payment.ExternalTransactionId != "" {
		return payment, nil
	}

	resp, err := o.gateway.Charge(ctx, clients.ChargeRequest{
		Reference: booking.BookingCode,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
	})
	if err != nil {
		if failErr := o.recordRejection(ctx, payment, err); failErr != nil {
			return nil, failErr
		}
		return nil, err
	}

	err = o.trManager.Do(ctx, func(ctx context.Context) error {
		if err := o.ledger.SetExternalTransactionID(ctx, payment.Id, resp.ExternalID); err != nil {
			return err
		}
		_, err := o.ledger.UpdateStatusFrom(ctx, payment.Id,
			[]domain.Status{domain.StatusPending}, domain.StatusProcessing)
		return err
	})
	if err != nil {
		return nil, err
	}

	payment.ExternalTransactionId = resp.ExternalID
	payment.Status = domain.StatusProcessing

	return payment, nil
}

// TransferToProvider pays the instructor their net share after the session
// completed. At most one transfer ever exists per booking.
func (o *Orchestrator) TransferToProvider(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error) {
	if !o.gateway.Configured() {
		return nil, domain.ErrGatewayNotConfigured
	}

	booking, err := o.bookingsRepo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	schedule, err := o.schedulesRepo.GetSchedule(ctx, booking.ScheduleId)
	if err != nil {
		return nil, err
	}
	if schedule.InstructorId == nil {
		return nil, domain.ErrNoPayoutAccount
	}

	account, err := o.accounts.PayoutAccount(ctx, *schedule.InstructorId)
	if err != nil {
		return nil, err
	}
	if account == "" {
		return nil, domain.ErrNoPayoutAccount
	}

	var (
		payment   *domain.Payment
		breakdown domain.PayoutBreakdown
	)
	err = withOpenRowRetry(func(ctx context.Context) error {
		return o.trManager.Do(ctx, func(ctx context.Context) error {
			exists, err := o.ledger.TransferExists(ctx, bookingID)
			if err != nil {
				return err
			}
			if exists {
				return domain.ErrAlreadyPaidOut
			}

			charged, err := o.ledger.SumCompletedCharges(ctx, bookingID)
			if err != nil {
				return err
			}
			refunded, err := o.ledger.SumCompletedRefunds(ctx, bookingID)
			if err != nil {
				return err
			}

			net := charged.Sub(refunded)
			if !net.IsPositive() {
				return domain.ErrNoPayment
			}

			breakdown = domain.ComputeProviderPayout(net, o.payoutPolicy())

			candidate := domain.Payment{
				BookingId: bookingID,
				Kind:      domain.KindTransfer,
				Amount:    breakdown.NetPayout.Neg(),
				Currency:  booking.Currency,
				Gateway:   o.gateway.Name(),
				Status:    domain.StatusPending,
				Meta: map[string]string{
					"instructor_id":  schedule.InstructorId.String(),
					"payout_account": account,
				},
			}

			id, err := o.ledger.CreatePayment(ctx, candidate)
			if err != nil {
				return err
			}

			candidate.Id = id
			payment = &candidate

			return nil
		})
	})(ctx)
	if err != nil {
		return nil, err
	}

	externalID, err := o.gateway.Transfer(ctx, breakdown.NetPayout, booking.Currency, account)
	if err != nil {
		if failErr := o.recordRejection(ctx, payment, err); failErr != nil {
			return nil, failErr
		}
		return nil, err
	}

	err = o.trManager.Do(ctx, func(ctx context.Context) error {
		if err := o.ledger.SetExternalTransactionID(ctx, payment.Id, externalID); err != nil {
			return err
		}
		_, err := o.ledger.UpdateStatusFrom(ctx, payment.Id,
			[]domain.Status{domain.StatusPending}, domain.StatusProcessing)
		return err
	})
	if err != nil {
		return nil, err
	}

	payment.ExternalTransactionId = externalID
	payment.Status = domain.StatusProcessing

	return payment, nil
}

// ApplyGatewayStatus reconciles a ledger row with the provider's view of the
// transaction. It is the single entry point for both webhook deliveries and
// polling, and is idempotent: the compare-and-set on the ledger row makes a
// duplicate delivery a no-op, so side effects fire exactly once per
// transition.
func (o *Orchestrator) ApplyGatewayStatus(ctx context.Context, externalID string, status clients.GatewayStatus, reason string) error {
	return o.trManager.Do(ctx, func(ctx context.Context) error {
		payment, err := o.ledger.GetByExternalID(ctx, externalID)
		if err != nil {
			return err
		}

		switch status {
		case clients.GatewayStatusSucceeded:
			return o.completePayment(ctx, payment)
		case clients.GatewayStatusFailed:
			return o.failPayment(ctx, payment, reason)
		case clients.GatewayStatusCancelled:
			_, err := o.ledger.UpdateStatusFrom(ctx, payment.Id,
				[]domain.Status{domain.StatusPending}, domain.StatusCancelled)
			return err
		case clients.GatewayStatusPending, clients.GatewayStatusProcessing:
			_, err := o.ledger.UpdateStatusFrom(ctx, payment.Id,
				[]domain.Status{domain.StatusPending}, domain.StatusProcessing)
			return err
		default:
			return fmt.Errorf("unknown gateway status %q for transaction %s", status, externalID)
		}
	})
}

// ReconcileWithGateway polls the provider for a non-terminal payment and
// applies whatever it reports. Fallback for lost webhooks.
func (o *Orchestrator) ReconcileWithGateway(ctx context.Context, paymentID uuid.UUID) error {
	payment, err := o.ledger.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.Status.IsTerminal() || payment.ExternalTransactionId == "" {
		return nil
	}

	status, err := o.gateway.GetStatus(ctx, payment.ExternalTransactionId)
	if err != nil {
		return err
	}

	return o.ApplyGatewayStatus(ctx, payment.ExternalTransactionId, status, "")
}

// ReconcileStale polls the gateway for every payment that reached the
// provider but has not settled within age. This is the backstop for lost
// webhooks; ApplyGatewayStatus keeps each poll idempotent.
func (o *Orchestrator) ReconcileStale(ctx context.Context, age time.Duration) (int, error) {
	stale, err := o.ledger.ListOpenOlderThan(ctx, age)
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for i := range stale {
		if err := o.ReconcileWithGateway(ctx, stale[i].Id); err != nil {
			log.FromContext(ctx).
				WithError(err).
				WithField("payment_id", stale[i].Id).
				Warn("reconciliation poll failed")
			continue
		}
		reconciled++
	}

	return reconciled, nil
}

func (o *Orchestrator) completePayment(ctx context.Context, payment *domain.Payment) error {
	moved, err := o.ledger.UpdateStatusFrom(ctx, payment.Id,
		[]domain.Status{domain.StatusPending, domain.StatusProcessing}, domain.StatusCompleted)
	if err != nil {
		return err
	}
	if !moved {
		// Duplicate delivery; the first one already did the work.
		return nil
	}

	booking, err := o.bookingsRepo.GetBooking(ctx, payment.BookingId)
	if err != nil {
		return err
	}

	switch payment.Kind {
	case domain.KindCharge:
		charged, err := o.ledger.SumCompletedCharges(ctx, payment.BookingId)
		if err != nil {
			return err
		}

		bookingStatus := bdomain.PaymentProcessing
		if charged.GreaterThanOrEqual(booking.Amount) {
			bookingStatus = bdomain.PaymentCompleted
		}
		if err := o.bookingsRepo.UpdatePaymentStatus(ctx, payment.BookingId, bookingStatus); err != nil {
			return err
		}

		return o.publish(ctx, entities.PaymentCompleted_v1{
			Header:                entities.NewEventHeader(),
			PaymentID:             payment.Id,
			BookingID:             payment.BookingId,
			ExternalTransactionID: payment.ExternalTransactionId,
			Amount:                entities.Money{Amount: payment.Amount, Currency: payment.Currency},
		})

	case domain.KindRefund:
		charged, err := o.ledger.SumCompletedCharges(ctx, payment.BookingId)
		if err != nil {
			return err
		}
		refunded, err := o.ledger.SumCompletedRefunds(ctx, payment.BookingId)
		if err != nil {
			return err
		}

		partial := refunded.LessThan(charged)
		bookingStatus := bdomain.PaymentRefunded
		if partial {
			bookingStatus = bdomain.PaymentPartialRefund
		}
		if err := o.bookingsRepo.UpdatePaymentStatus(ctx, payment.BookingId, bookingStatus); err != nil {
			return err
		}

		return o.publish(ctx, entities.PaymentRefunded_v1{
			Header:    entities.NewEventHeader(),
			PaymentID: payment.Id,
			BookingID: payment.BookingId,
			Amount:    entities.Money{Amount: payment.Amount.Neg(), Currency: payment.Currency},
			Partial:   partial,
		})

	case domain.KindTransfer:
		schedule, err := o.schedulesRepo.GetSchedule(ctx, booking.ScheduleId)
		if err != nil {
			return err
		}

		instructorID := uuid.Nil
		if schedule.InstructorId != nil {
			instructorID = *schedule.InstructorId
		}

		return o.publish(ctx, entities.ProviderPaidOut_v1{
			Header:       entities.NewEventHeader(),
			PaymentID:    payment.Id,
			BookingID:    payment.BookingId,
			InstructorID: instructorID,
			Amount:       entities.Money{Amount: payment.Amount.Neg(), Currency: payment.Currency},
		})
	}

	return nil
}

func (o *Orchestrator) failPayment(ctx context.Context, payment *domain.Payment, reason string) error {
	moved, err := o.ledger.UpdateStatusFrom(ctx, payment.Id,
		[]domain.Status{domain.StatusPending, domain.StatusProcessing}, domain.StatusFailed)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}

	if payment.Kind == domain.KindCharge {
		if err := o.bookingsRepo.UpdatePaymentStatus(ctx, payment.BookingId, bdomain.PaymentFailed); err != nil {
			return err
		}
	}

	return o.publish(ctx, entities.PaymentFailed_v1{
		Header:                entities.NewEventHeader(),
		PaymentID:             payment.Id,
		BookingID:             payment.BookingId,
		ExternalTransactionID: payment.ExternalTransactionId,
		Reason:                reason,
	})
}

// markFailed records an immediate gateway rejection, before any webhook.
func (o *Orchestrator) markFailed(ctx context.Context, payment *domain.Payment, reason string) error {
	return o.trManager.Do(ctx, func(ctx context.Context) error {
		return o.failPayment(ctx, payment, reason)
	})
}

// recordRejection fails the row only when the provider itself rejected the
// operation. A transport failure has an unknown outcome: the row stays open,
// a retry re-sends the same reference and polling reconciliation resolves
// whatever the gateway actually did.
func (o *Orchestrator) recordRejection(ctx context.Context, payment *domain.Payment, err error) error {
	var gwErr domain.GatewayError
	if !errors.As(err, &gwErr) {
		return nil
	}

	return o.markFailed(ctx, payment, gwErr.Message)
}

// Breakdown exposes the fee split for a hypothetical amount, used by the
// quote endpoint.
func (o *Orchestrator) Breakdown(amount decimal.Decimal) domain.PayoutBreakdown {
	return domain.ComputeProviderPayout(amount, o.payoutPolicy())
}

func (o *Orchestrator) payoutPolicy() domain.PayoutPolicy {
	return domain.PayoutPolicy{
		PlatformFeePercent: o.policy.PlatformFeePercent,
		GatewayFeePercent:  o.policy.GatewayFeePercent,
		GatewayFixedFee:    o.policy.GatewayFixedFee,
	}
}

func (o *Orchestrator) publish(ctx context.Context, event entities.Event) error {
	tr := o.trGetter.DefaultTrOrDB(ctx, nil)
	if tr == nil {
		return fmt.Errorf("failed to get transaction from context")
	}

	publisher, err := outbox.NewPublisher(tr, o.watermillLogger)
	if err != nil {
		return fmt.Errorf("failed to create event publisher: %w", err)
	}

	eb, err := events.NewEventBus(publisher, o.watermillLogger)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}

	return eb.Publish(ctx, event)
}
