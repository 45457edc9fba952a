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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the business reason recorded on a ledger row
type TransactionType string

const (
	TransactionEarned     TransactionType = "earned"
	TransactionSpent      TransactionType = "spent"
	TransactionPurchased  TransactionType = "purchased"
	TransactionDailyBonus TransactionType = "daily_bonus"
)

// IsCredit reports whether the type increases a balance
func (t TransactionType) IsCredit() bool {
	switch t {
	case TransactionEarned, TransactionPurchased, TransactionDailyBonus:
		return true
	}
	return false
}

// Valid reports whether t is one of the known transaction types
func (t TransactionType) Valid() bool {
	return t == TransactionSpent || t.IsCredit()
}

// CreditAccount represents current balance state (hot data).
// TotalCredits always equals TotalEarned - TotalSpent and is never negative.
type CreditAccount struct {
	Id                 string    `db:"id" json:"id"`
	UserId             string    `db:"user_id" json:"user_id"`
	TotalCredits       int64     `db:"total_credits" json:"total_credits"`
	TotalEarned        int64     `db:"total_earned" json:"total_earned"`
	TotalSpent         int64     `db:"total_spent" json:"total_spent"`
	LastDailyBonusDate string    `db:"last_daily_bonus_date" json:"last_daily_bonus_date,omitempty"` // YYYY-MM-DD in the bonus timezone, empty if never granted
	Version            int64     `db:"version" json:"version"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Consistent reports whether the balance counters agree with each other
func (a CreditAccount) Consistent() bool {
	return a.TotalCredits >= 0 && a.TotalCredits == a.TotalEarned-a.TotalSpent
}

// CreditTransaction represents immutable transaction history (cold data)
type CreditTransaction struct {
	Id                string          `db:"id" json:"id"`
	Sequence          int64           `db:"seq" json:"sequence"`
	AccountId         string          `db:"account_id" json:"account_id"`
	UserId            string          `db:"user_id" json:"user_id"`
	Type              TransactionType `db:"transaction_type" json:"type"`
	Amount            int64           `db:"amount" json:"amount"`
	BalanceAfter      int64           `db:"balance_after" json:"balance_after"`
	Description       string          `db:"description" json:"description"`
	ExternalPaymentId string          `db:"external_payment_id" json:"external_payment_id,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`

	// Replayed is set when an idempotent credit returned an already stored row.
	Replayed bool `db:"-" json:"replayed,omitempty"`
}

// TransactionPage is one page of history, newest first
type TransactionPage struct {
	Transactions []CreditTransaction `json:"transactions"`
	NextCursor   string              `json:"next_cursor,omitempty"`
}

// PackageCatalogEntry is a purchasable credit package
type PackageCatalogEntry struct {
	Id           string          `yaml:"id" toml:"id" json:"id"`
	DisplayName  string          `yaml:"display_name" toml:"display_name" json:"display_name"`
	BaseCredits  int64           `yaml:"base_credits" toml:"base_credits" json:"base_credits"`
	BonusCredits int64           `yaml:"bonus_credits" toml:"bonus_credits" json:"bonus_credits"`
	PriceUSD     decimal.Decimal `yaml:"-" toml:"-" json:"price_usd"`
}

// TotalCredits is the amount credited when the package is purchased
func (p PackageCatalogEntry) TotalCredits() int64 {
	return p.BaseCredits + p.BonusCredits
}

// Checkout session statuses
const (
	CheckoutStatusOpen      = "open"
	CheckoutStatusCompleted = "completed"
)

// CheckoutSession records a checkout started for a package
type CheckoutSession struct {
	Id        string          `db:"id" json:"id"`
	UserId    string          `db:"user_id" json:"user_id"`
	UserEmail string          `db:"user_email" json:"user_email"`
	PackageId string          `db:"package_id" json:"package_id"`
	PriceUSD  decimal.Decimal `db:"price_usd" json:"price_usd"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
