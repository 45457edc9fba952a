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
	"fmt"
	"io"
	"strings"

	"credit-ledger-go/internal/models"
)

const (
	ReportWidth = 80

	boxWidth   = 78
	timeLayout = "2006-01-02 15:04:05"
)

// PrintHeader prints a report title between two rules
func PrintHeader(w io.Writer, title string) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", ReportWidth))
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", ReportWidth))
}

// PrintFooter prints a report summary line between two rules
func PrintFooter(w io.Writer, summary string) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", ReportWidth))
	fmt.Fprintln(w, summary)
	fmt.Fprintln(w, strings.Repeat("=", ReportWidth)+"\n")
}

func boxRule(w io.Writer) {
	fmt.Fprintln(w, "├"+strings.Repeat("─", boxWidth))
}

func boxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

func boxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// ShortId abbreviates a row id for tables
func ShortId(id string) string {
	if id == "" {
		return "none"
	}
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

// PrintAccountSummary prints one account's counters as a box
func PrintAccountSummary(w io.Writer, account models.CreditAccount) {
	fmt.Fprintf(w, "\n┌─ User: %s\n", account.UserId)
	fmt.Fprintf(w, "│  Account: %s\n", account.Id)
	fmt.Fprintf(w, "│  Version: %d\n", account.Version)
	boxRule(w)
	fmt.Fprintf(w, "%s %-15s: %12d\n", boxPrefix(false), "Balance", account.TotalCredits)
	fmt.Fprintf(w, "%s %-15s: %12d\n", boxPrefix(false), "Earned", account.TotalEarned)
	fmt.Fprintf(w, "%s %-15s: %12d\n", boxPrefix(false), "Spent", account.TotalSpent)

	lastBonus := account.LastDailyBonusDate
	if lastBonus == "" {
		lastBonus = "never"
	}
	fmt.Fprintf(w, "%s %-15s: %12s (updated: %s)\n", boxPrefix(true), "Last bonus", lastBonus,
		account.UpdatedAt.Format(timeLayout))
}

// PrintTransactions prints a page of a user's history, one row per transaction.
// Purchases get a detail line with their payment id.
func PrintTransactions(w io.Writer, userId string, transactions []models.CreditTransaction) {
	fmt.Fprintf(w, "\n┌─ User: %s\n", userId)
	fmt.Fprintf(w, "│  Transactions: %d\n", len(transactions))
	boxRule(w)
	for i, tx := range transactions {
		isLast := i == len(transactions)-1
		fmt.Fprintf(w, "%s #%-6d %-12s %+8d → %8d  %s  %s\n",
			boxPrefix(isLast),
			tx.Sequence,
			tx.Type,
			tx.Amount,
			tx.BalanceAfter,
			tx.CreatedAt.Format(timeLayout),
			tx.Description)
		if tx.ExternalPaymentId != "" {
			fmt.Fprintf(w, "%s          payment: %s (tx %s)\n", boxDetailPrefix(isLast), tx.ExternalPaymentId, ShortId(tx.Id))
		}
	}
}

// PrintPackages prints the purchasable packages with their prices
func PrintPackages(w io.Writer, packages []models.PackageCatalogEntry) {
	for i, pkg := range packages {
		fmt.Fprintf(w, "%s %-10s %-12s %6d + %-5d credits  $%s\n",
			boxPrefix(i == len(packages)-1),
			pkg.Id,
			pkg.DisplayName,
			pkg.BaseCredits,
			pkg.BonusCredits,
			pkg.PriceUSD.StringFixed(2))
	}
}
