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

package store

import (
	"context"
	"errors"

	"credit-ledger-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrAccountNotFound        = errors.New("credit account not found")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrSessionNotFound        = errors.New("checkout session not found")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrReconciliationMismatch = errors.New("balance does not match transaction log")
)

// MutationParams describes one conditional read-modify-write of an account.
// Current is the snapshot the caller read; its Version is the compare-and-swap
// token. Next carries the counters to persist. Transaction is appended in the
// same storage transaction; Id and CreatedAt are filled in when empty.
type MutationParams struct {
	Current     models.CreditAccount
	Next        models.CreditAccount
	Transaction models.CreditTransaction
}

// CreditStore defines the contract that every backend (SQLite, Postgres, ...) must satisfy.
type CreditStore interface {
	// --- Accounts ---
	GetAccount(ctx context.Context, userId string) (*models.CreditAccount, error)
	CreateAccount(ctx context.Context, userId string) (*models.CreditAccount, error)
	ListAccounts(ctx context.Context) ([]models.CreditAccount, error)

	// --- Transactions ---
	// ApplyMutation updates the account only if its version still equals
	// Current.Version and appends the transaction, atomically. A stale version
	// returns ErrConcurrentModification; a reused external payment id returns
	// ErrDuplicateTransaction. Nothing is persisted on error.
	ApplyMutation(ctx context.Context, params MutationParams) (*models.CreditTransaction, error)
	FindTransactionByExternalId(ctx context.Context, externalPaymentId string) (*models.CreditTransaction, error)
	// ListTransactions returns rows newest first. beforeSeq <= 0 starts at the newest row.
	ListTransactions(ctx context.Context, userId string, limit int, beforeSeq int64) ([]models.CreditTransaction, error)
	ReconcileAccount(ctx context.Context, userId string) error

	// --- Checkout sessions ---
	CreateCheckoutSession(ctx context.Context, session models.CheckoutSession) (*models.CheckoutSession, error)
	CompleteCheckoutSession(ctx context.Context, sessionId string) error

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}

// IsRetryable reports whether err is a transient conflict worth re-running the
// whole read-modify-write for.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
