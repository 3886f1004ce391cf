package inventory

import (
	"errors"
	"fmt"
)

var (
	ErrPoolNotFound    = errors.New("inventory pool not found")
	ErrPoolClosed      = errors.New("inventory pool is not open for booking")
	ErrBatchNotFound   = errors.New("stock batch not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// InsufficientSlotsError reports how many slots the pool still has, so the
// client can offer the customer what is actually left.
type InsufficientSlotsError struct {
	Available int
}

func (e *InsufficientSlotsError) Error() string {
	return fmt.Sprintf("Only %d slots available", e.Available)
}

// InsufficientStockError means the physical batch ledger cannot cover the
// request even though the slot counter allowed it. Slots and batches are
// tracked separately and this is the check that keeps them from diverging.
type InsufficientStockError struct {
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Only %d units physically in stock", e.Available)
}

func IsInsufficientSlots(err error) bool {
	var target *InsufficientSlotsError
	return errors.As(err, &target)
}

func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}
