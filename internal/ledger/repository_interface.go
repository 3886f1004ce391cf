package ledger

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Repository exposes row-level ledger primitives. Methods taking a
// sqlx.ExtContext run against whatever executor the caller holds — the
// pooled DB for single reads, an open transaction for anything that
// locks or mutates. Lock-then-mutate methods must only be called with a
// transaction executor.
type Repository interface {
	CreateAccount(ctx context.Context, q sqlx.ExtContext, userID int) (*Account, error)
	GetAccountByUserID(ctx context.Context, q sqlx.ExtContext, userID int) (*Account, error)
	GetAccountForUpdate(ctx context.Context, q sqlx.ExtContext, accountID int) (*Account, error)
	CreditBalance(ctx context.Context, q sqlx.ExtContext, accountID int, amount decimal.Decimal) (decimal.Decimal, error)
	DebitBalance(ctx context.Context, q sqlx.ExtContext, accountID int, amount decimal.Decimal) (decimal.Decimal, error)

	InsertTransaction(ctx context.Context, q sqlx.ExtContext, txn *Transaction) (*Transaction, error)
	GetTransactionByReference(ctx context.Context, q sqlx.ExtContext, reference string) (*Transaction, error)
	GetTransactionByReferenceForUpdate(ctx context.Context, q sqlx.ExtContext, reference string) (*Transaction, error)
	GetTransactionForUpdate(ctx context.Context, q sqlx.ExtContext, id int) (*Transaction, error)
	SetTransactionStatus(ctx context.Context, q sqlx.ExtContext, id int, status string) error
	SetGatewayRef(ctx context.Context, q sqlx.ExtContext, id int, gatewayRef string) error
	SetApprovalCode(ctx context.Context, q sqlx.ExtContext, id int, code string, ttl time.Duration) error
	CompleteWithApproval(ctx context.Context, q sqlx.ExtContext, id int) error

	ListTransactions(ctx context.Context, q sqlx.ExtContext, accountID, limit, offset int) ([]Transaction, error)
	ListPendingTransactions(ctx context.Context, q sqlx.ExtContext) ([]Transaction, error)
	ReconciliationSummary(ctx context.Context, q sqlx.ExtContext) (*Reconciliation, error)
}
