package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const accountColumns = `id, user_id, balance, status, created_at, updated_at`

func (r *repository) CreateAccount(ctx context.Context, q sqlx.ExtContext, userID int) (*Account, error) {
	query := `
		INSERT INTO accounts (user_id)
		VALUES ($1)
		RETURNING ` + accountColumns

	var account Account
	err := sqlx.GetContext(ctx, q, &account, query, userID)
	if err != nil {
		return nil, err
	}

	return &account, nil
}

func (r *repository) GetAccountByUserID(ctx context.Context, q sqlx.ExtContext, userID int) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`

	var account Account
	err := sqlx.GetContext(ctx, q, &account, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	return &account, nil
}

func (r *repository) GetAccountForUpdate(ctx context.Context, q sqlx.ExtContext, accountID int) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	var account Account
	err := sqlx.GetContext(ctx, q, &account, query, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	return &account, nil
}

func (r *repository) CreditBalance(ctx context.Context, q sqlx.ExtContext, accountID int, amount decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance`

	var balance decimal.Decimal
	err := sqlx.GetContext(ctx, q, &balance, query, amount, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}

	return balance, nil
}

func (r *repository) DebitBalance(ctx context.Context, q sqlx.ExtContext, accountID int, amount decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE accounts
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance`

	var balance decimal.Decimal
	err := sqlx.GetContext(ctx, q, &balance, query, amount, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}

	return balance, nil
}

const transactionColumns = `t.id, t.account_id, a.user_id, t.amount, t.kind, t.channel, t.status,
	t.reference, t.gateway_ref, t.approval_code, t.approval_code_expires_at, t.created_at, t.updated_at`

func (r *repository) InsertTransaction(ctx context.Context, q sqlx.ExtContext, txn *Transaction) (*Transaction, error) {
	query := `
		INSERT INTO transactions (account_id, amount, kind, channel, status, reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, account_id, amount, kind, channel, status, reference, gateway_ref,
		          approval_code, approval_code_expires_at, created_at, updated_at`

	var inserted Transaction
	err := sqlx.GetContext(ctx, q, &inserted, query,
		txn.AccountID, txn.Amount, txn.Kind, txn.Channel, txn.Status, txn.Reference)
	if err != nil {
		return nil, err
	}
	inserted.UserID = txn.UserID

	return &inserted, nil
}

func (r *repository) getTransaction(ctx context.Context, q sqlx.ExtContext, where string, forUpdate bool, arg interface{}) (*Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN accounts a ON t.account_id = a.id
		WHERE ` + where
	if forUpdate {
		query += ` FOR UPDATE OF t`
	}

	var txn Transaction
	err := sqlx.GetContext(ctx, q, &txn, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	return &txn, nil
}

func (r *repository) GetTransactionByReference(ctx context.Context, q sqlx.ExtContext, reference string) (*Transaction, error) {
	return r.getTransaction(ctx, q, `t.reference = $1`, false, reference)
}

func (r *repository) GetTransactionByReferenceForUpdate(ctx context.Context, q sqlx.ExtContext, reference string) (*Transaction, error) {
	return r.getTransaction(ctx, q, `t.reference = $1`, true, reference)
}

func (r *repository) GetTransactionForUpdate(ctx context.Context, q sqlx.ExtContext, id int) (*Transaction, error) {
	return r.getTransaction(ctx, q, `t.id = $1`, true, id)
}

func (r *repository) SetTransactionStatus(ctx context.Context, q sqlx.ExtContext, id int, status string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	return err
}

func (r *repository) SetGatewayRef(ctx context.Context, q sqlx.ExtContext, id int, gatewayRef string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE transactions SET gateway_ref = $1, updated_at = NOW() WHERE id = $2`,
		gatewayRef, id,
	)
	return err
}

func (r *repository) SetApprovalCode(ctx context.Context, q sqlx.ExtContext, id int, code string, ttl time.Duration) error {
	_, err := q.ExecContext(ctx,
		`UPDATE transactions
		 SET approval_code = $1, approval_code_expires_at = NOW() + $2::interval, updated_at = NOW()
		 WHERE id = $3`,
		code, ttl.String(), id,
	)
	return err
}

// CompleteWithApproval flips a cash deposit to Completed and clears the
// one-time code in the same statement.
func (r *repository) CompleteWithApproval(ctx context.Context, q sqlx.ExtContext, id int) error {
	_, err := q.ExecContext(ctx,
		`UPDATE transactions
		 SET status = 'Completed', approval_code = NULL, approval_code_expires_at = NULL, updated_at = NOW()
		 WHERE id = $1`,
		id,
	)
	return err
}

func (r *repository) ListTransactions(ctx context.Context, q sqlx.ExtContext, accountID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN accounts a ON t.account_id = a.id
		WHERE t.account_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2 OFFSET $3`

	var txns []Transaction
	err := sqlx.SelectContext(ctx, q, &txns, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}

	return txns, nil
}

func (r *repository) ListPendingTransactions(ctx context.Context, q sqlx.ExtContext) ([]Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		JOIN accounts a ON t.account_id = a.id
		WHERE t.status = 'Pending'
		ORDER BY t.created_at ASC`

	var txns []Transaction
	err := sqlx.SelectContext(ctx, q, &txns, query)
	if err != nil {
		return nil, err
	}

	return txns, nil
}

func (r *repository) ReconciliationSummary(ctx context.Context, q sqlx.ExtContext) (*Reconciliation, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'Deposit'      AND status = 'Completed' THEN amount ELSE 0 END), 0) AS total_deposits,
			COALESCE(SUM(CASE WHEN kind = 'Withdrawal'   AND status IN ('Completed', 'Processing') THEN amount ELSE 0 END), 0) AS total_withdrawals,
			COALESCE(SUM(CASE WHEN kind = 'Booking_Hold' AND status = 'Completed' THEN amount ELSE 0 END), 0) AS total_booking_holds,
			COALESCE(SUM(CASE WHEN kind = 'Refund'       AND status = 'Completed' THEN amount ELSE 0 END), 0) AS total_refunds,
			COALESCE(SUM(CASE WHEN kind = 'Deposit'      AND status = 'Pending' THEN amount ELSE 0 END), 0) AS total_pending_deposits,
			COALESCE(SUM(CASE WHEN kind = 'Withdrawal'   AND status = 'Pending' THEN amount ELSE 0 END), 0) AS total_pending_withdrawals
		FROM transactions`

	var summary Reconciliation
	err := sqlx.GetContext(ctx, q, &summary, query)
	if err != nil {
		return nil, err
	}

	return &summary, nil
}
