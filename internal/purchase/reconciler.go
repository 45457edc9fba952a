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

package purchase

import (
	"context"
	"fmt"

	"credit-ledger-go/internal/catalog"
	"credit-ledger-go/internal/ledger"
	"credit-ledger-go/internal/metrics"
	"credit-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrInvalidEvent = fmt.Errorf("invalid purchase event: %w", ledger.ErrInvalidArgument)

// unknownPackageLabel stands in for package ids outside the catalog so
// webhook input cannot grow the metric's label set
const unknownPackageLabel = "unknown"

// Event is a payment confirmation from the processor
type Event struct {
	ExternalPaymentId string
	UserId            string
	PackageId         string
	AmountPaidUSD     decimal.Decimal
}

func (e Event) validate() error {
	if e.ExternalPaymentId == "" {
		return fmt.Errorf("%w: external payment id is required", ErrInvalidEvent)
	}
	if e.UserId == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidEvent)
	}
	if e.PackageId == "" {
		return fmt.Errorf("%w: package id is required", ErrInvalidEvent)
	}
	return nil
}

// Crediter is the part of the ledger the reconciler writes through
type Crediter interface {
	Credit(ctx context.Context, params ledger.CreditParams) (*models.CreditTransaction, error)
}

// Reconciler turns confirmed payments into purchased credits. It keeps no
// state; redelivered events are absorbed by the ledger's payment id check.
type Reconciler struct {
	ledger  Crediter
	catalog *catalog.Catalog
	metrics *metrics.Metrics
}

func NewReconciler(crediter Crediter, packages *catalog.Catalog, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		ledger:  crediter,
		catalog: packages,
		metrics: m,
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, event Event) (*models.CreditTransaction, error) {
	if err := event.validate(); err != nil {
		r.metrics.ObservePurchase(unknownPackageLabel, "invalid")
		return nil, err
	}

	pkg, err := r.catalog.Get(event.PackageId)
	if err != nil {
		r.metrics.ObservePurchase(unknownPackageLabel, "unknown_package")
		zap.L().Error("Purchase for unknown package",
			zap.String("external_payment_id", event.ExternalPaymentId),
			zap.String("user_id", event.UserId),
			zap.String("package_id", event.PackageId))
		return nil, err
	}

	if !event.AmountPaidUSD.Equal(pkg.PriceUSD) {
		zap.L().Warn("Paid amount differs from catalog price",
			zap.String("external_payment_id", event.ExternalPaymentId),
			zap.String("package_id", pkg.Id),
			zap.String("amount_paid_usd", event.AmountPaidUSD.StringFixed(2)),
			zap.String("price_usd", pkg.PriceUSD.StringFixed(2)))
	}

	transaction, err := r.ledger.Credit(ctx, ledger.CreditParams{
		UserId:            event.UserId,
		Amount:            pkg.TotalCredits(),
		Type:              models.TransactionPurchased,
		Description:       fmt.Sprintf("Purchased %s package (%d + %d bonus credits)", pkg.DisplayName, pkg.BaseCredits, pkg.BonusCredits),
		ExternalPaymentId: event.ExternalPaymentId,
	})
	if err != nil {
		r.metrics.ObservePurchase(pkg.Id, ledger.Kind(err))
		return nil, fmt.Errorf("failed to credit purchase %s: %w", event.ExternalPaymentId, err)
	}

	if transaction.Replayed {
		r.metrics.ObservePurchase(pkg.Id, "replayed")
	} else {
		r.metrics.ObservePurchase(pkg.Id, "credited")
		zap.L().Info("Purchase credited",
			zap.String("external_payment_id", event.ExternalPaymentId),
			zap.String("user_id", event.UserId),
			zap.String("package_id", pkg.Id),
			zap.Int64("credits", pkg.TotalCredits()),
			zap.Int64("balance_after", transaction.BalanceAfter))
	}
	return transaction, nil
}
