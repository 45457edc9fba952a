package common

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"credit-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

func TestShortId(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"", "none"},
		{"0123456789", "01234567..."},
		{"short", "short"},
		{"01234567", "01234567"},
	}

	for _, tt := range tests {
		if got := ShortId(tt.id); got != tt.want {
			t.Errorf("ShortId(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestPrintAccountSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintAccountSummary(&buf, models.CreditAccount{
		Id:           "acct-1",
		UserId:       "user1",
		TotalCredits: 30,
		TotalEarned:  50,
		TotalSpent:   20,
		Version:      3,
		UpdatedAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	out := buf.String()
	for _, want := range []string{"User: user1", "Version: 3", "Balance", "30", "never", "2025-01-02 03:04:05"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestPrintTransactions(t *testing.T) {
	var buf bytes.Buffer
	PrintTransactions(&buf, "user1", []models.CreditTransaction{
		{Id: "tx-abcdefghij", Sequence: 2, Type: models.TransactionPurchased, Amount: 100, BalanceAfter: 150,
			Description: "starter pack", ExternalPaymentId: "pay_123"},
		{Id: "tx-2", Sequence: 1, Type: models.TransactionEarned, Amount: 50, BalanceAfter: 50, Description: "signup"},
	})

	out := buf.String()
	if !strings.Contains(out, "Transactions: 2") {
		t.Errorf("Expected row count, got:\n%s", out)
	}
	if !strings.Contains(out, "payment: pay_123 (tx tx-abcde...)") {
		t.Errorf("Expected payment detail line, got:\n%s", out)
	}
	if strings.Count(out, "payment:") != 1 {
		t.Errorf("Expected one payment line, got:\n%s", out)
	}
	if !strings.Contains(out, "└   #1") {
		t.Errorf("Expected the last row to close the box, got:\n%s", out)
	}
}

func TestPrintPackages(t *testing.T) {
	var buf bytes.Buffer
	PrintPackages(&buf, []models.PackageCatalogEntry{
		{Id: "starter", DisplayName: "Starter", BaseCredits: 100, BonusCredits: 10, PriceUSD: decimal.RequireFromString("4.99")},
	})

	if out := buf.String(); !strings.Contains(out, "starter") || !strings.Contains(out, "$4.99") {
		t.Errorf("Unexpected package listing:\n%s", out)
	}
}

func TestPrintHeaderAndFooter(t *testing.T) {
	var buf bytes.Buffer
	PrintHeader(&buf, "REPORT")
	PrintFooter(&buf, "SUMMARY: ok")

	out := buf.String()
	if strings.Count(out, strings.Repeat("=", ReportWidth)) != 4 {
		t.Errorf("Expected four rules, got:\n%s", out)
	}
	if !strings.Contains(out, "REPORT") || !strings.Contains(out, "SUMMARY: ok") {
		t.Errorf("Missing title or summary:\n%s", out)
	}
}
