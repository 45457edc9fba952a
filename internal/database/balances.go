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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.CreditAccount, error) {
	var account models.CreditAccount
	var bonusDate sql.NullString
	err := row.Scan(&account.Id, &account.UserId, &account.TotalCredits, &account.TotalEarned,
		&account.TotalSpent, &bonusDate, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	account.LastDailyBonusDate = bonusDate.String
	return &account, nil
}

// GetAccount returns the current account state for a user
func (s *Service) GetAccount(ctx context.Context, userId string) (*models.CreditAccount, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, queryGetAccount, userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, userId)
	}
	if err != nil {
		zap.L().Error("Failed to get account", zap.String("user_id", userId), zap.Error(err))
		return nil, mapError("get account", err)
	}

	zap.L().Debug("Retrieved account",
		zap.String("user_id", userId),
		zap.Int64("total_credits", account.TotalCredits),
		zap.Int64("version", account.Version))
	return account, nil
}

// CreateAccount opens a zero-balance account. Creating an account that already
// exists returns the existing one.
func (s *Service) CreateAccount(ctx context.Context, userId string) (*models.CreditAccount, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, queryInsertAccount, uuid.New().String(), userId, now, now)
	if err != nil {
		return nil, mapError("create account", err)
	}

	if rowsAffected, err := result.RowsAffected(); err == nil && rowsAffected > 0 {
		zap.L().Info("Credit account created", zap.String("user_id", userId))
	}

	return s.GetAccount(ctx, userId)
}

// ListAccounts returns every account, oldest first
func (s *Service) ListAccounts(ctx context.Context) ([]models.CreditAccount, error) {
	rows, err := s.db.QueryContext(ctx, queryListAccounts)
	if err != nil {
		return nil, mapError("list accounts", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var accounts []models.CreditAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during account row iteration", zap.Error(err))
		return nil, mapError("iterate account rows", err)
	}

	return accounts, nil
}

// ReconcileAccount verifies that the stored counters match the transaction log
func (s *Service) ReconcileAccount(ctx context.Context, userId string) error {
	zap.L().Info("Reconciling balance", zap.String("user_id", userId))

	var account models.CreditAccount
	var sum, earned, spent int64
	err := s.db.QueryRowContext(ctx, queryReconcileAccount, userId).Scan(
		&account.TotalCredits, &account.TotalEarned, &account.TotalSpent,
		&sum, &earned, &spent)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", store.ErrAccountNotFound, userId)
	}
	if err != nil {
		return mapError("calculate balance from transactions", err)
	}

	if sum != account.TotalCredits || earned != account.TotalEarned || spent != account.TotalSpent || !account.Consistent() {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.Int64("total_credits", account.TotalCredits),
			zap.Int64("calculated_credits", sum),
			zap.Int64("total_earned", account.TotalEarned),
			zap.Int64("calculated_earned", earned),
			zap.Int64("total_spent", account.TotalSpent),
			zap.Int64("calculated_spent", spent))
		return fmt.Errorf("%w: user %s credits=%d calculated=%d earned=%d/%d spent=%d/%d",
			store.ErrReconciliationMismatch, userId,
			account.TotalCredits, sum, account.TotalEarned, earned, account.TotalSpent, spent)
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("user_id", userId),
		zap.Int64("total_credits", account.TotalCredits))
	return nil
}
