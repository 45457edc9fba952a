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
	"errors"
	"fmt"

	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"go.uber.org/zap"
)

// CreditParams describes a credit to an account
type CreditParams struct {
	UserId            string
	Amount            int64
	Type              models.TransactionType
	Description       string
	ExternalPaymentId string
}

func (p CreditParams) validate() error {
	if p.UserId == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	if p.Amount <= 0 {
		return fmt.Errorf("%w: credit amount must be positive, got %d", ErrInvalidArgument, p.Amount)
	}
	if !p.Type.IsCredit() {
		return fmt.Errorf("%w: %q is not a credit type", ErrInvalidArgument, p.Type)
	}
	if p.Type == models.TransactionPurchased && p.ExternalPaymentId == "" {
		return fmt.Errorf("%w: purchases require an external payment id", ErrInvalidArgument)
	}
	if p.Type != models.TransactionPurchased && p.ExternalPaymentId != "" {
		return fmt.Errorf("%w: only purchases carry an external payment id", ErrInvalidArgument)
	}
	return nil
}

// Credit adds credits to an account. A purchase whose external payment id was
// already credited returns the stored transaction with Replayed set.
func (s *Service) Credit(ctx context.Context, params CreditParams) (transaction *models.CreditTransaction, err error) {
	defer func() { s.observe("credit", err) }()

	if err := params.validate(); err != nil {
		return nil, err
	}

	if params.ExternalPaymentId != "" {
		existing, err := s.replay(ctx, params.UserId, params.ExternalPaymentId)
		if err != nil || existing != nil {
			return existing, err
		}
	}

	transaction, err = s.mutate(ctx, "credit", params.UserId, func(current *models.CreditAccount) (*store.MutationParams, error) {
		next := *current
		next.TotalCredits += params.Amount
		next.TotalEarned += params.Amount
		return &store.MutationParams{
			Current: *current,
			Next:    next,
			Transaction: models.CreditTransaction{
				Type:              params.Type,
				Amount:            params.Amount,
				Description:       params.Description,
				ExternalPaymentId: params.ExternalPaymentId,
			},
		}, nil
	})

	// A concurrent redelivery committed first
	if errors.Is(err, store.ErrDuplicateTransaction) {
		existing, replayErr := s.replay(ctx, params.UserId, params.ExternalPaymentId)
		if replayErr != nil {
			return nil, replayErr
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		zap.L().Error("Failed to credit account",
			zap.String("user_id", params.UserId),
			zap.String("type", string(params.Type)),
			zap.Int64("amount", params.Amount),
			zap.Error(err))
		return nil, err
	}

	s.metrics.ObserveCredit(string(params.Type), params.Amount)
	return transaction, nil
}

// replay returns the transaction already recorded for a payment, or nil when there is none
func (s *Service) replay(ctx context.Context, userId, externalPaymentId string) (*models.CreditTransaction, error) {
	existing, err := s.store.FindTransactionByExternalId(ctx, externalPaymentId)
	if errors.Is(err, store.ErrTransactionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up payment %s: %w", externalPaymentId, err)
	}

	if existing.UserId != userId {
		zap.L().Error("Payment already credited to another account",
			zap.String("external_payment_id", externalPaymentId),
			zap.String("user_id", userId),
			zap.String("credited_user_id", existing.UserId))
		return nil, fmt.Errorf("%w: %s", ErrPaymentAccountMismatch, externalPaymentId)
	}

	zap.L().Info("Payment already credited, skipping",
		zap.String("external_payment_id", externalPaymentId),
		zap.String("user_id", userId),
		zap.String("transaction_id", existing.Id))
	existing.Replayed = true
	return existing, nil
}

// Debit spends credits. The balance never goes below zero.
func (s *Service) Debit(ctx context.Context, userId string, amount int64, description string) (transaction *models.CreditTransaction, err error) {
	defer func() { s.observe("debit", err) }()

	if err := validateUserId(userId); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: debit amount must be positive, got %d", ErrInvalidArgument, amount)
	}

	transaction, err = s.mutate(ctx, "debit", userId, func(current *models.CreditAccount) (*store.MutationParams, error) {
		if current.TotalCredits < amount {
			return nil, fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientCredits, current.TotalCredits, amount)
		}
		next := *current
		next.TotalCredits -= amount
		next.TotalSpent += amount
		return &store.MutationParams{
			Current: *current,
			Next:    next,
			Transaction: models.CreditTransaction{
				Type:        models.TransactionSpent,
				Amount:      -amount,
				Description: description,
			},
		}, nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			zap.L().Info("Debit rejected",
				zap.String("user_id", userId),
				zap.Int64("amount", amount),
				zap.Error(err))
		} else {
			zap.L().Error("Failed to debit account",
				zap.String("user_id", userId),
				zap.Int64("amount", amount),
				zap.Error(err))
		}
		return nil, err
	}

	s.metrics.ObserveDebit(amount)
	return transaction, nil
}

// ClaimDailyBonus grants the daily bonus if the user has not had one today in
// the reference timezone. The credit and the claim date are written together.
func (s *Service) ClaimDailyBonus(ctx context.Context, userId string) (transaction *models.CreditTransaction, granted bool, err error) {
	defer func() { s.observe("daily_bonus", err) }()

	if err := validateUserId(userId); err != nil {
		return nil, false, err
	}

	transaction, err = s.mutate(ctx, "daily_bonus", userId, func(current *models.CreditAccount) (*store.MutationParams, error) {
		now := s.now()
		if !s.granter.Eligible(current.LastDailyBonusDate, now) {
			return nil, nil
		}
		next := *current
		next.TotalCredits += s.granter.Amount
		next.TotalEarned += s.granter.Amount
		next.LastDailyBonusDate = s.granter.Today(now)
		return &store.MutationParams{
			Current: *current,
			Next:    next,
			Transaction: models.CreditTransaction{
				Type:        models.TransactionDailyBonus,
				Amount:      s.granter.Amount,
				Description: "Daily login bonus",
			},
		}, nil
	})
	if err != nil {
		zap.L().Error("Failed to grant daily bonus", zap.String("user_id", userId), zap.Error(err))
		return nil, false, err
	}
	if transaction == nil {
		return nil, false, nil
	}

	zap.L().Info("Daily bonus granted",
		zap.String("user_id", userId),
		zap.Int64("amount", transaction.Amount),
		zap.Int64("balance_after", transaction.BalanceAfter))
	s.metrics.ObserveCredit(string(models.TransactionDailyBonus), transaction.Amount)
	return transaction, true, nil
}
