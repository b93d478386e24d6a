package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	bdomain "classbook/internal/domain/bookings"
	pdomain "classbook/internal/domain/payments"
	sdomain "classbook/internal/domain/schedules"
)

// httpError maps domain errors onto status codes: 404 for missing
// resources, 409 for state conflicts, 422 for policy/validation failures,
// 402 for payment preconditions, 502 for provider failures.
func httpError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, sdomain.ErrNotFound),
		errors.Is(err, bdomain.ErrNotFound),
		errors.Is(err, pdomain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())

	case errors.Is(err, bdomain.ErrAlreadyBooked),
		errors.Is(err, bdomain.ErrScheduleFull),
		errors.Is(err, bdomain.ErrUnavailable),
		errors.Is(err, pdomain.ErrAlreadyPaidOut):
		return echo.NewHTTPError(http.StatusConflict, err.Error())

	case errors.Is(err, pdomain.ErrNoPayment),
		errors.Is(err, pdomain.ErrNoPayoutAccount),
		errors.Is(err, pdomain.ErrGatewayNotConfigured):
		return echo.NewHTTPError(http.StatusPaymentRequired, err.Error())

	case errors.Is(err, bdomain.ErrPrerequisiteUnmet):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	var (
		conflictErr       sdomain.ConflictError
		notCancellable    bdomain.NotCancellableError
		invalidTransition bdomain.InvalidTransitionError
	)
	if errors.As(err, &conflictErr) ||
		errors.As(err, &notCancellable) ||
		errors.As(err, &invalidTransition) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}

	var (
		availabilityErr sdomain.AvailabilityError
		policyErr       bdomain.PolicyViolationError
		windowErr       bdomain.OutsideBookingWindowError
		exceedsErr      pdomain.ExceedsChargedError
		sInvalid        sdomain.ErrInvalid
		bInvalid        bdomain.ErrInvalid
	)
	if errors.As(err, &availabilityErr) ||
		errors.As(err, &policyErr) ||
		errors.As(err, &windowErr) ||
		errors.As(err, &exceedsErr) ||
		errors.As(err, &sInvalid) ||
		errors.As(err, &bInvalid) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	var gatewayErr pdomain.GatewayError
	if errors.As(err, &gatewayErr) {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return err
}
