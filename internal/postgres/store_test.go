package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"duplicate payment", &pgconn.PgError{Code: "23505", ConstraintName: "idx_credit_transactions_external_payment_id"}, store.ErrDuplicateTransaction},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, store.ErrConcurrentModification},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, store.ErrConcurrentModification},
		{"connection refused", errors.New("dial tcp: connection refused"), store.ErrStoreUnavailable},
		{"deadline", context.DeadlineExceeded, context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapError("op", tt.err); !errors.Is(got, tt.want) {
				t.Errorf("mapError() = %v, want %v", got, tt.want)
			}
		})
	}

	other := mapError("op", &pgconn.PgError{Code: "23505", ConstraintName: "credit_accounts_user_id_key"})
	if errors.Is(other, store.ErrDuplicateTransaction) {
		t.Error("Only the payment id index should map to a duplicate transaction")
	}
}

// TestStoreIntegration exercises the store against a live Postgres.
func TestStoreIntegration(t *testing.T) {
	if os.Getenv("RUN_POSTGRES_INTEGRATION") != "true" {
		t.Skip("set RUN_POSTGRES_INTEGRATION=true to run this integration test")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	s, err := NewStore(ctx, models.PostgresConfig{URL: dbURL, MaxConns: 4, PingTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	defer s.Close()

	userId := fmt.Sprintf("it_%d", time.Now().UnixNano())
	current, err := s.CreateAccount(ctx, userId)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	next := *current
	next.TotalCredits, next.TotalEarned = 175, 175
	paymentId := "pi_" + userId
	params := store.MutationParams{
		Current: *current,
		Next:    next,
		Transaction: models.CreditTransaction{
			Type: models.TransactionPurchased, Amount: 175, ExternalPaymentId: paymentId,
		},
	}
	if _, err := s.ApplyMutation(ctx, params); err != nil {
		t.Fatalf("apply mutation: %v", err)
	}
	if _, err := s.ApplyMutation(ctx, params); !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("expected conflict on stale version, got: %v", err)
	}

	found, err := s.FindTransactionByExternalId(ctx, paymentId)
	if err != nil || found.Amount != 175 {
		t.Fatalf("find by external id: %+v, %v", found, err)
	}

	rows, err := s.ListTransactions(ctx, userId, 10, 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("list transactions: %d rows, %v", len(rows), err)
	}
	if err := s.ReconcileAccount(ctx, userId); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
}
