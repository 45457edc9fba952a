package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ApplyMutation updates the account if its version is unchanged and appends
// the transaction with its journal entries, in one database transaction.
func (s *Store) ApplyMutation(ctx context.Context, params store.MutationParams) (*models.CreditTransaction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	transaction := params.Transaction
	if transaction.Id == "" {
		transaction.Id = uuid.New().String()
	}
	now := time.Now().UTC()
	if transaction.CreatedAt.IsZero() {
		transaction.CreatedAt = now
	}
	transaction.AccountId = params.Current.Id
	transaction.UserId = params.Current.UserId
	transaction.BalanceAfter = params.Next.TotalCredits

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, mapError("begin transaction", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			zap.L().Warn("Failed to roll back transaction", zap.Error(err))
		}
	}()

	next := params.Next
	tag, err := tx.Exec(ctx, `
		UPDATE credit_accounts
		SET total_credits = $1, total_earned = $2, total_spent = $3, last_daily_bonus_date = $4,
		    version = version + 1, updated_at = $5
		WHERE user_id = $6 AND version = $7`,
		next.TotalCredits, next.TotalEarned, next.TotalSpent, nullString(next.LastDailyBonusDate), now,
		params.Current.UserId, params.Current.Version)
	if err != nil {
		return nil, mapError("update account", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("account update failed - %w", store.ErrConcurrentModification)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO credit_transactions (
			id, account_id, user_id, transaction_type, amount, balance_after,
			description, external_payment_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq`,
		transaction.Id, transaction.AccountId, transaction.UserId, string(transaction.Type),
		transaction.Amount, transaction.BalanceAfter, transaction.Description,
		nullString(transaction.ExternalPaymentId), transaction.CreatedAt).
		Scan(&transaction.Sequence)
	if err != nil {
		return nil, mapError("insert transaction", err)
	}

	batch := &pgx.Batch{}
	for _, entry := range store.JournalEntriesFor(&transaction) {
		batch.Queue(`
			INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New().String(), transaction.Id, entry.AccountType, entry.AccountId,
			entry.DebitAmount, entry.CreditAmount, transaction.CreatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, mapError("add journal entries", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapError("commit transaction", err)
	}

	zap.L().Info("Transaction processed successfully",
		zap.String("transaction_id", transaction.Id),
		zap.String("user_id", transaction.UserId),
		zap.String("type", string(transaction.Type)),
		zap.Int64("new_balance", next.TotalCredits),
		zap.Int64("version", params.Current.Version+1))
	return &transaction, nil
}

// FindTransactionByExternalId fetches the transaction recorded for a payment.
func (s *Store) FindTransactionByExternalId(ctx context.Context, externalPaymentId string) (*models.CreditTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM credit_transactions WHERE external_payment_id = $1`
	transaction, err := scanTransaction(s.pool.QueryRow(ctx, query, externalPaymentId))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: external_payment_id %s", store.ErrTransactionNotFound, externalPaymentId)
	}
	if err != nil {
		return nil, mapError("find transaction by external id", err)
	}
	return transaction, nil
}

// ListTransactions returns a user's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, userId string, limit int, beforeSeq int64) ([]models.CreditTransaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM credit_transactions
		WHERE user_id = $1 AND ($2::BIGINT <= 0 OR seq < $2)
		ORDER BY seq DESC
		LIMIT $3`
	rows, err := s.pool.Query(ctx, query, userId, beforeSeq, limit)
	if err != nil {
		return nil, mapError("get transaction history", err)
	}
	defer rows.Close()

	transactions := make([]models.CreditTransaction, 0, limit)
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate transaction rows", err)
	}
	return transactions, nil
}
