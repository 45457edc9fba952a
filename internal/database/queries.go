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

const (
	accountColumns = `id, user_id, total_credits, total_earned, total_spent, last_daily_bonus_date, version, created_at, updated_at`

	transactionColumns = `seq, id, account_id, user_id, transaction_type, amount, balance_after,
		description, external_payment_id, created_at`

	// Account queries
	queryGetAccount = `
		SELECT ` + accountColumns + `
		FROM credit_accounts
		WHERE user_id = ?`

	queryListAccounts = `
		SELECT ` + accountColumns + `
		FROM credit_accounts
		ORDER BY created_at, user_id`

	queryInsertAccount = `
		INSERT INTO credit_accounts (id, user_id, total_credits, total_earned, total_spent, version, created_at, updated_at)
		VALUES (?, ?, 0, 0, 0, 1, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`

	queryUpdateAccount = `
		UPDATE credit_accounts
		SET total_credits = ?, total_earned = ?, total_spent = ?, last_daily_bonus_date = ?,
		    version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`

	// One statement so the counters and the sums come from the same snapshot
	queryReconcileAccount = `
		SELECT a.total_credits, a.total_earned, a.total_spent,
		       COALESCE(SUM(t.amount), 0),
		       COALESCE(SUM(CASE WHEN t.amount > 0 THEN t.amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN t.amount < 0 THEN -t.amount ELSE 0 END), 0)
		FROM credit_accounts a
		LEFT JOIN credit_transactions t ON t.account_id = a.id
		WHERE a.user_id = ?
		GROUP BY a.id`

	// Transaction queries
	queryInsertTransaction = `
		INSERT INTO credit_transactions (
			id, account_id, user_id, transaction_type, amount, balance_after,
			description, external_payment_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq`

	queryFindTransactionByExternalId = `
		SELECT ` + transactionColumns + `
		FROM credit_transactions
		WHERE external_payment_id = ?
		LIMIT 1`

	queryListTransactions = `
		SELECT ` + transactionColumns + `
		FROM credit_transactions
		WHERE user_id = ? AND (? <= 0 OR seq < ?)
		ORDER BY seq DESC
		LIMIT ?`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	// Checkout session queries
	queryInsertCheckoutSession = `
		INSERT INTO checkout_sessions (id, user_id, user_email, package_id, price_usd, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryCompleteCheckoutSession = `
		UPDATE checkout_sessions
		SET status = 'completed', completed_at = ?
		WHERE id = ? AND status = 'open'`

	queryGetCheckoutSessionStatus = `
		SELECT status FROM checkout_sessions WHERE id = ?`
)
