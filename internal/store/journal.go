package store

import (
	"fmt"

	"credit-ledger-go/internal/models"
)

// Validate checks that a mutation keeps the account consistent and that the
// transaction amount matches the balance change.
func (p MutationParams) Validate() error {
	if p.Current.UserId == "" || p.Current.Id == "" {
		return fmt.Errorf("mutation requires a loaded account")
	}
	if p.Next.UserId != "" && p.Next.UserId != p.Current.UserId {
		return fmt.Errorf("mutation cannot move account %s to user %s", p.Current.UserId, p.Next.UserId)
	}
	if !p.Transaction.Type.Valid() {
		return fmt.Errorf("unknown transaction type %q", p.Transaction.Type)
	}
	if !p.Next.Consistent() {
		return fmt.Errorf("mutation would leave account %s inconsistent (credits=%d earned=%d spent=%d)",
			p.Current.UserId, p.Next.TotalCredits, p.Next.TotalEarned, p.Next.TotalSpent)
	}
	if p.Next.TotalEarned < p.Current.TotalEarned || p.Next.TotalSpent < p.Current.TotalSpent {
		return fmt.Errorf("mutation cannot decrease earned or spent totals for account %s", p.Current.UserId)
	}
	if p.Next.TotalCredits-p.Current.TotalCredits != p.Transaction.Amount {
		return fmt.Errorf("transaction amount %d does not match balance change %d",
			p.Transaction.Amount, p.Next.TotalCredits-p.Current.TotalCredits)
	}
	return nil
}

// JournalEntry is one side of a double-entry posting
type JournalEntry struct {
	AccountType  string
	AccountId    string
	DebitAmount  int64
	CreditAmount int64
}

// JournalEntriesFor derives the double-entry pair for a ledger row.
// User credit balances are a liability: credits increase it, spending releases it.
func JournalEntriesFor(transaction *models.CreditTransaction) []JournalEntry {
	userAccount := "user_credits_" + transaction.UserId

	switch transaction.Type {
	case models.TransactionPurchased:
		return []JournalEntry{
			{"system_revenue", "credit_sales", transaction.Amount, 0},
			{"user_liability", userAccount, 0, transaction.Amount},
		}
	case models.TransactionEarned, models.TransactionDailyBonus:
		return []JournalEntry{
			{"system_expense", "credit_promotions", transaction.Amount, 0},
			{"user_liability", userAccount, 0, transaction.Amount},
		}
	case models.TransactionSpent:
		return []JournalEntry{
			{"user_liability", userAccount, -transaction.Amount, 0},
			{"system_revenue", "credit_consumption", 0, -transaction.Amount},
		}
	}
	return nil
}
