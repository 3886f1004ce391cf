package booking

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrAllocationNotFound = errors.New("booking not found")
	ErrAlreadyCancelled   = errors.New("booking is already cancelled")
	ErrInvalidStatus      = errors.New("status must be Completed or Cancelled")
	ErrInvalidSlotCount   = errors.New("slots requested must be positive")
)

// InsufficientBalanceError carries what the booking needed against what the
// account holds.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Insufficient balance. Need ₦%s, have ₦%s", e.Required.StringFixed(2), e.Available.StringFixed(2))
}

func IsInsufficientBalance(err error) bool {
	var target *InsufficientBalanceError
	return errors.As(err, &target)
}
