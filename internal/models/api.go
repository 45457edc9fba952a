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
	"github.com/shopspring/decimal"
)

// CheckoutRequest is sent by the UI to start a package purchase
type CheckoutRequest struct {
	PackageId string `json:"packageId"`
	UserId    string `json:"userId"`
	UserEmail string `json:"userEmail"`
}

// CheckoutResponse carries the processor session to redirect to
type CheckoutResponse struct {
	SessionId string `json:"sessionId"`
}

// PurchaseWebhook is the confirmation payload delivered by the payment processor
type PurchaseWebhook struct {
	ExternalPaymentId string          `json:"externalPaymentId"`
	UserId            string          `json:"userId"`
	PackageId         string          `json:"packageId"`
	AmountPaidUSD     decimal.Decimal `json:"amountPaidUSD"`
	SessionId         string          `json:"sessionId,omitempty"`
}

// DebitRequest is sent by metered features to spend credits
type DebitRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// BonusResult reports the outcome of a daily bonus check
type BonusResult struct {
	Granted     bool               `json:"granted"`
	Transaction *CreditTransaction `json:"transaction,omitempty"`
	Account     *CreditAccount     `json:"account,omitempty"`
}
