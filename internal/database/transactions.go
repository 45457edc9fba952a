/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ApplyMutation atomically updates the account (with optimistic locking) and records the transaction
func (s *Service) ApplyMutation(ctx context.Context, params store.MutationParams) (*models.CreditTransaction, error) {
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

	zap.L().Debug("Applying mutation",
		zap.String("user_id", transaction.UserId),
		zap.String("type", string(transaction.Type)),
		zap.Int64("amount", transaction.Amount),
		zap.Int64("expected_version", params.Current.Version),
		zap.String("external_payment_id", transaction.ExternalPaymentId))

	// Start database transaction for atomicity
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError("begin transaction", err)
	}
	defer tx.Rollback()

	// Update account (with optimistic locking)
	next := params.Next
	result, err := tx.ExecContext(ctx, queryUpdateAccount,
		next.TotalCredits, next.TotalEarned, next.TotalSpent, nullString(next.LastDailyBonusDate), now,
		params.Current.UserId, params.Current.Version)
	if err != nil {
		return nil, mapError("update account", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, mapError("check rows affected", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("account update failed - %w", store.ErrConcurrentModification)
	}

	err = tx.QueryRowContext(ctx, queryInsertTransaction,
		transaction.Id, transaction.AccountId, transaction.UserId, string(transaction.Type),
		transaction.Amount, transaction.BalanceAfter, transaction.Description,
		nullString(transaction.ExternalPaymentId), transaction.CreatedAt).
		Scan(&transaction.Sequence)
	if err != nil {
		return nil, mapError("insert transaction", err)
	}

	if err := s.addJournalEntries(ctx, tx, &transaction); err != nil {
		return nil, mapError("add journal entries", err)
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		return nil, mapError("commit transaction", err)
	}

	zap.L().Info("Transaction processed successfully",
		zap.String("transaction_id", transaction.Id),
		zap.String("user_id", transaction.UserId),
		zap.String("type", string(transaction.Type)),
		zap.Int64("old_balance", params.Current.TotalCredits),
		zap.Int64("new_balance", next.TotalCredits),
		zap.Int64("version", params.Current.Version+1))

	return &transaction, nil
}

// addJournalEntries creates double-entry bookkeeping entries
func (s *Service) addJournalEntries(ctx context.Context, tx *sql.Tx, transaction *models.CreditTransaction) error {
	for _, entry := range store.JournalEntriesFor(transaction) {
		_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), transaction.Id, entry.AccountType, entry.AccountId,
			entry.DebitAmount, entry.CreditAmount, transaction.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func scanTransaction(row rowScanner) (*models.CreditTransaction, error) {
	var transaction models.CreditTransaction
	var transactionType string
	var externalId sql.NullString
	err := row.Scan(&transaction.Sequence, &transaction.Id, &transaction.AccountId, &transaction.UserId,
		&transactionType, &transaction.Amount, &transaction.BalanceAfter,
		&transaction.Description, &externalId, &transaction.CreatedAt)
	if err != nil {
		return nil, err
	}
	transaction.Type = models.TransactionType(transactionType)
	transaction.ExternalPaymentId = externalId.String
	return &transaction, nil
}

// FindTransactionByExternalId looks up the transaction recorded for a payment
func (s *Service) FindTransactionByExternalId(ctx context.Context, externalPaymentId string) (*models.CreditTransaction, error) {
	transaction, err := scanTransaction(s.db.QueryRowContext(ctx, queryFindTransactionByExternalId, externalPaymentId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: external_payment_id %s", store.ErrTransactionNotFound, externalPaymentId)
	}
	if err != nil {
		return nil, mapError("find transaction by external id", err)
	}
	return transaction, nil
}

// ListTransactions returns a page of transaction history for a user, newest first
func (s *Service) ListTransactions(ctx context.Context, userId string, limit int, beforeSeq int64) ([]models.CreditTransaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.String("user_id", userId),
		zap.Int("limit", limit),
		zap.Int64("before_seq", beforeSeq))

	rows, err := s.db.QueryContext(ctx, queryListTransactions, userId, beforeSeq, beforeSeq, limit)
	if err != nil {
		return nil, mapError("get transaction history", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	transactions := make([]models.CreditTransaction, 0, limit)
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *transaction)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, mapError("iterate transaction rows", err)
	}

	return transactions, nil
}
