package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindDeposit     = "Deposit"
	KindWithdrawal  = "Withdrawal"
	KindRefund      = "Refund"
	KindBookingHold = "Booking_Hold"

	ChannelCash     = "Cash"
	ChannelPaystack = "Paystack"
	ChannelTransfer = "Transfer"
	// ChannelInternal marks direct balance movements (booking holds, refunds)
	// that never touch a payment gateway. Not a valid deposit channel.
	ChannelInternal = "Internal"

	StatusPending    = "Pending"
	StatusProcessing = "Processing"
	StatusCompleted  = "Completed"
	StatusFailed     = "Failed"

	AccountActive      = "Active"
	AccountSuspended   = "Suspended"
	AccountDeactivated = "Deactivated"

	// ApprovalCodeTTL bounds how long a cash approval code stays valid.
	ApprovalCodeTTL = 15 * time.Minute
)

// Account is a user's running savings balance. The balance column is only
// ever mutated inside a ledger transaction holding the account row lock.
type Account struct {
	ID        int             `db:"id" json:"id"`
	UserID    int             `db:"user_id" json:"user_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Transaction is an immutable record of one balance-affecting event.
// Exactly one balance mutation happens per transaction, at the moment its
// status becomes Completed (withdrawals escrow-debit at creation instead,
// and compensate on failure).
type Transaction struct {
	ID                    int             `db:"id" json:"id"`
	AccountID             int             `db:"account_id" json:"account_id"`
	UserID                int             `db:"user_id" json:"user_id"`
	Amount                decimal.Decimal `db:"amount" json:"amount"`
	Kind                  string          `db:"kind" json:"kind"`
	Channel               string          `db:"channel" json:"channel"`
	Status                string          `db:"status" json:"status"`
	Reference             string          `db:"reference" json:"reference"`
	GatewayRef            *string         `db:"gateway_ref" json:"gateway_ref,omitempty"`
	ApprovalCode          *string         `db:"approval_code" json:"-"`
	ApprovalCodeExpiresAt *time.Time      `db:"approval_code_expires_at" json:"-"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
}

func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// canTransition encodes the transaction state machine:
// Pending -> {Processing, Completed, Failed}; Processing -> {Completed, Failed}.
// Terminal states admit no transition.
func canTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCompleted || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Reconciliation is the owner-facing money summary across the whole ledger.
type Reconciliation struct {
	TotalDeposits           decimal.Decimal `db:"total_deposits" json:"total_deposits"`
	TotalWithdrawals        decimal.Decimal `db:"total_withdrawals" json:"total_withdrawals"`
	TotalBookingHolds       decimal.Decimal `db:"total_booking_holds" json:"total_booking_holds"`
	TotalRefunds            decimal.Decimal `db:"total_refunds" json:"total_refunds"`
	TotalPendingDeposits    decimal.Decimal `db:"total_pending_deposits" json:"total_pending_deposits"`
	TotalPendingWithdrawals decimal.Decimal `db:"total_pending_withdrawals" json:"total_pending_withdrawals"`
}
