package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderAlreadyExists    = errors.New("order already exists")
	ErrInvalidAmount         = errors.New("amount must be positive with at most 2 decimal places")
	ErrInvalidReservation    = errors.New("fund reservation is incomplete")
	ErrMissingTrackingNumber = errors.New("tracking number is required")
	ErrUnknownMilestone      = errors.New("unknown tracking milestone")
	ErrInvalidOrderState     = errors.New("invalid order state")
)

// InvalidOrderStateError is returned when a command arrives in the wrong status.
type InvalidOrderStateError struct {
	OrderID  uuid.UUID
	Expected Status
	Actual   Status
}

func (e *InvalidOrderStateError) Error() string {
	return fmt.Sprintf("order %s: expected status %s, actual %s", e.OrderID, e.Expected, e.Actual)
}

func (e *InvalidOrderStateError) Is(target error) bool {
	return target == ErrInvalidOrderState
}
