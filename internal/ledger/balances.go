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

package ledger

import (
	"context"
	"fmt"
	"strconv"

	"credit-ledger-go/internal/cache"
	"credit-ledger-go/internal/models"

	"go.uber.org/zap"
)

// GetBalance returns the account for a user, from cache when fresh
func (s *Service) GetBalance(ctx context.Context, userId string) (account *models.CreditAccount, err error) {
	defer func() { s.observe("get_balance", err) }()

	if err := validateUserId(userId); err != nil {
		return nil, err
	}

	account, err = s.cachedAccount(ctx, userId)
	if err != nil {
		return nil, err
	}

	if s.bonusOnRead && s.granter.Eligible(account.LastDailyBonusDate, s.now()) {
		_, granted, bonusErr := s.ClaimDailyBonus(ctx, userId)
		if bonusErr != nil {
			zap.L().Warn("Daily bonus on read failed",
				zap.String("user_id", userId),
				zap.Error(bonusErr))
		} else if granted {
			return s.cachedAccount(ctx, userId)
		}
	}

	return account, nil
}

func (s *Service) cachedAccount(ctx context.Context, userId string) (*models.CreditAccount, error) {
	key := cache.BalanceKey(userId)
	if cached, ok := s.cache.Get(key); ok {
		if account, ok := cached.(models.CreditAccount); ok {
			s.metrics.ObserveCache("balance", true)
			return &account, nil
		}
	}
	s.metrics.ObserveCache("balance", false)

	loaded, err := s.fill(ctx, key, func(ctx context.Context) (any, error) {
		account, err := s.loadAccount(ctx, userId)
		if err != nil {
			return nil, err
		}
		return *account, nil
	})
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balance: %w", err)
	}

	account := loaded.(models.CreditAccount)
	return &account, nil
}

// ListTransactions returns one page of history, newest first. cursor is the
// NextCursor of the previous page, or empty for the first page.
func (s *Service) ListTransactions(ctx context.Context, userId string, limit int, cursor string) (page *models.TransactionPage, err error) {
	defer func() { s.observe("list_transactions", err) }()

	if err := validateUserId(userId); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	if cursor == "" {
		rows, err := s.cachedHistory(ctx, userId)
		if err != nil {
			return nil, err
		}
		n := min(limit, len(rows))
		hasMore := len(rows) > limit || (n == limit && len(rows) == cachedTransactionRows)
		return newPage(rows[:n], hasMore), nil
	}

	beforeSeq, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil || beforeSeq <= 0 {
		return nil, fmt.Errorf("%w: malformed cursor %q", ErrInvalidArgument, cursor)
	}

	rows, err := s.store.ListTransactions(ctx, userId, limit+1, beforeSeq)
	if err != nil {
		zap.L().Error("Failed to get transaction history",
			zap.String("user_id", userId),
			zap.String("cursor", cursor),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}
	if len(rows) > limit {
		return newPage(rows[:limit], true), nil
	}
	return newPage(rows, false), nil
}

func (s *Service) cachedHistory(ctx context.Context, userId string) ([]models.CreditTransaction, error) {
	key := cache.TransactionsKey(userId)
	if cached, ok := s.cache.Get(key); ok {
		if rows, ok := cached.([]models.CreditTransaction); ok {
			s.metrics.ObserveCache("transactions", true)
			return rows, nil
		}
	}
	s.metrics.ObserveCache("transactions", false)

	loaded, err := s.fill(ctx, key, func(ctx context.Context) (any, error) {
		rows, err := s.store.ListTransactions(ctx, userId, cachedTransactionRows, 0)
		if err != nil {
			return nil, err
		}
		return rows, nil
	})
	if err != nil {
		zap.L().Error("Failed to get transaction history", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history: %w", err)
	}
	return loaded.([]models.CreditTransaction), nil
}

// newPage copies rows so callers never share the cached slice
func newPage(rows []models.CreditTransaction, hasMore bool) *models.TransactionPage {
	page := &models.TransactionPage{Transactions: make([]models.CreditTransaction, len(rows))}
	copy(page.Transactions, rows)
	if hasMore && len(rows) > 0 {
		page.NextCursor = strconv.FormatInt(rows[len(rows)-1].Sequence, 10)
	}
	return page
}

// Reconcile checks the stored counters of a user against their transaction log
func (s *Service) Reconcile(ctx context.Context, userId string) (err error) {
	defer func() { s.observe("reconcile", err) }()

	if err := validateUserId(userId); err != nil {
		return err
	}
	return s.store.ReconcileAccount(ctx, userId)
}

// ListAccounts returns every account straight from the store
func (s *Service) ListAccounts(ctx context.Context) ([]models.CreditAccount, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}
