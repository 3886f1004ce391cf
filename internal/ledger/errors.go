package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountInactive     = errors.New("account is not active")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidChannel      = errors.New("unknown payment channel")
	ErrInvalidState        = errors.New("transaction is not in the required state")
	ErrAlreadyProcessed    = errors.New("transaction already processed")
	ErrInvalidApproval     = errors.New("invalid or expired approval code")
	ErrBelowMinWithdrawal  = errors.New("amount is below the minimum withdrawal")
)

// InsufficientFundsError carries the figures the client needs to react
// without guessing.
type InsufficientFundsError struct {
	Need decimal.Decimal
	Have decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("Insufficient balance. Need ₦%s, have ₦%s", e.Need.StringFixed(2), e.Have.StringFixed(2))
}

func IsInsufficientFunds(err error) bool {
	var target *InsufficientFundsError
	return errors.As(err, &target)
}
