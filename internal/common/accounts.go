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

package common

import (
	"context"
	"fmt"

	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"go.uber.org/zap"
)

// InitializeAccounts retrieves accounts based on an optional user filter.
// If userFilter is provided, returns the single account of that user.
// If userFilter is empty, returns all accounts.
func InitializeAccounts(ctx context.Context, creditStore store.CreditStore, userFilter string, logger *zap.Logger) ([]models.CreditAccount, error) {
	var accounts []models.CreditAccount

	if userFilter != "" {
		logger.Info("Looking up account by user", zap.String("user_id", userFilter))
		account, err := creditStore.GetAccount(ctx, userFilter)
		if err != nil {
			return nil, fmt.Errorf("account not found: %w", err)
		}
		accounts = append(accounts, *account)
	} else {
		all, err := creditStore.ListAccounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get accounts: %w", err)
		}
		accounts = all
	}

	logger.Info("Retrieved accounts", zap.Int("count", len(accounts)))
	return accounts, nil
}
