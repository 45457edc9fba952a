package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"credit-ledger-go/internal/cache"
	"credit-ledger-go/internal/database"
	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/retry"
	"credit-ledger-go/internal/store"
)

func setupTestDb(t *testing.T) (*database.Service, func()) {
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 8,
		MaxIdleConns: 8,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	return db, db.Close
}

func setupTestLedger(t *testing.T, opts ...Option) (*Service, *database.Service, func()) {
	db, cleanup := setupTestDb(t)
	return New(db, cache.New[any](), opts...), db, cleanup
}

func grant(t *testing.T, s *Service, userId string, amount int64) {
	t.Helper()
	_, err := s.Credit(context.Background(), CreditParams{
		UserId: userId, Amount: amount, Type: models.TransactionEarned, Description: "test grant",
	})
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
}

// conflictStore rejects every write as stale
type conflictStore struct {
	store.CreditStore
	attempts int
	mu       sync.Mutex
}

func (c *conflictStore) ApplyMutation(ctx context.Context, params store.MutationParams) (*models.CreditTransaction, error) {
	c.mu.Lock()
	c.attempts++
	c.mu.Unlock()
	return nil, store.ErrConcurrentModification
}

// downStore fails every read
type downStore struct {
	store.CreditStore
}

func (d *downStore) GetAccount(ctx context.Context, userId string) (*models.CreditAccount, error) {
	return nil, fmt.Errorf("failed to get account: %w", store.ErrStoreUnavailable)
}

// blockingStore parks the next GetAccount after its read until released
type blockingStore struct {
	store.CreditStore
	armed   atomic.Bool
	reached chan struct{}
	release chan struct{}
}

func newBlockingStore(inner store.CreditStore) *blockingStore {
	return &blockingStore{CreditStore: inner, reached: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingStore) GetAccount(ctx context.Context, userId string) (*models.CreditAccount, error) {
	account, err := b.CreditStore.GetAccount(ctx, userId)
	if !b.armed.CompareAndSwap(true, false) {
		return account, err
	}
	close(b.reached)
	select {
	case <-b.release:
		return account, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestGetBalance_ProvisionsAccount(t *testing.T) {
	s, _, cleanup := setupTestLedger(t)
	defer cleanup()

	account, err := s.GetBalance(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if account.TotalCredits != 0 || account.UserId != "new-user" {
		t.Errorf("Unexpected account: %+v", account)
	}
}

func TestGetBalance_InvalidUser(t *testing.T) {
	s, _, cleanup := setupTestLedger(t)
	defer cleanup()

	_, err := s.GetBalance(context.Background(), "")
	if Kind(err) != KindInvalidArgument {
		t.Errorf("Expected invalid argument, got: %v", err)
	}
}

func TestGetBalance_CachedUntilWrite(t *testing.T) {
	s, db, cleanup := setupTestLedger(t)
	defer cleanup()

	ctx := context.Background()
	grant(t, s, "user1", 30)

	account, err := s.GetBalance(ctx, "user1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if account.TotalCredits != 30 {
		t.Fatalf("Expected 30, got %d", account.TotalCredits)
	}

	// A write behind the ledger's back is not visible while the entry is fresh
	current, _ := db.GetAccount(ctx, "user1")
	next := *current
	next.TotalCredits, next.TotalEarned = 31, 31
	if _, err := db.ApplyMutation(ctx, store.MutationParams{Current: *current, Next: next,
		Transaction: models.CreditTransaction{Type: models.TransactionEarned, Amount: 1}}); err != nil {
		t.Fatalf("ApplyMutation failed: %v", err)
	}
	account, _ = s.GetBalance(ctx, "user1")
	if account.TotalCredits != 30 {
		t.Errorf("Expected cached 30, got %d", account.TotalCredits)
	}

	// A write through the ledger invalidates it
	if _, err := s.Debit(ctx, "user1", 1, "chat"); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	account, _ = s.GetBalance(ctx, "user1")
	if account.TotalCredits != 30 {
		t.Errorf("Expected 30 after debit from 31, got %d", account.TotalCredits)
	}
}

func TestGetBalance_StoreUnavailable(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()

	s := New(&downStore{CreditStore: db}, cache.New[any]())
	_, err := s.GetBalance(context.Background(), "user1")
	if !errors.Is(err, store.ErrStoreUnavailable) {
		t.Fatalf("Expected store unavailable, got: %v", err)
	}
	if Kind(err) != KindStoreUnavailable || !IsRetryable(err) {
		t.Errorf("Unexpected classification kind=%s retryable=%v", Kind(err), IsRetryable(err))
	}
}

func TestDebit_InsufficientCredits(t *testing.T) {
	s, _, cleanup := setupTestLedger(t)
	defer cleanup()

	ctx := context.Background()
	grant(t, s, "user1", 10)

	_, err := s.Debit(ctx, "user1", 11, "chat")
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("Expected insufficient credits, got: %v", err)
	}
	if Kind(err) != KindInsufficientCredits {
		t.Errorf("Expected kind %s, got %s", KindInsufficientCredits, Kind(err))
	}

	account, err := s.GetBalance(ctx, "user1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if account.TotalCredits != 10 || account.TotalSpent != 0 {
		t.Errorf("Rejected debit changed the account: %+v", account)
	}

	page, err := s.ListTransactions(ctx, "user1", 10, "")
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(page.Transactions) != 1 {
		t.Errorf("Expected only the grant in history, got %d rows", len(page.Transactions))
	}
}

func TestDebit_InvalidAmount(t *testing.T) {
	s, _, cleanup := setupTestLedger(t)
	defer cleanup()

	for _, amount := range []int64{0, -5} {
		if _, err := s.Debit(context.Background(), "user1", amount, "chat"); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Debit(%d): expected invalid argument, got: %v", amount, err)
		}
	}
}

func TestDebit_ConcurrentOnlyOneSucceeds(t *testing.T) {
	s, _, cleanup := setupTestLedger(t)
	defer cleanup()

	ctx := context.Background()
	grant(t, s, "user1", 50)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Debit(ctx, "user1", 40, "chat")
		}(i)
	}
	wg.Wait()

	successes, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInsufficientCredits):
			insufficient++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if successes != 1 || insufficient != 1 {
		t.Fatalf("Expected one success and one rejection, got %d/%d", successes, insufficient)
	}

	account, err := s.GetBalance(ctx, "user1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if account.TotalCredits != 10 {
		t.Errorf("Expected balance 10, got %d", account.TotalCredits)
	}
}

func TestConcurrentMutations_PreserveInvariant(t *testing.T) {
	s, db, cleanup := setupTestLedger(t, WithRetryPolicy(retry.Policy{MaxAttempts: 200, Retryable: store.IsRetryable}))
	defer cleanup()

	ctx := context.Background()
	grant(t, s, "user1", 100)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		credited int64
		debited  int64
	)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := s.Credit(ctx, CreditParams{UserId: "user1", Amount: 3, Type: models.TransactionEarned}); err == nil {
				mu.Lock()
				credited += 3
				mu.Unlock()
			} else if !errors.Is(err, ErrConcurrencyExhausted) {
				t.Errorf("Credit failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			_, err := s.Debit(ctx, "user1", 7, "chat")
			switch {
			case err == nil:
				mu.Lock()
				debited += 7
				mu.Unlock()
			case errors.Is(err, ErrInsufficientCredits), errors.Is(err, ErrConcurrencyExhausted):
			default:
				t.Errorf("Debit failed: %v", err)
			}
		}()
	}
	wg.Wait()

	account, err := db.GetAccount(ctx, "user1")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if !account.Consistent() {
		t.Errorf("Invariant broken: %+v", account)
	}
	if account.TotalCredits != 100+credited-debited {
		t.Errorf("Expected balance %d, got %d", 100+credited-debited, account.TotalCredits)
	}
	if err := s.Reconcile(ctx, "user1"); err != nil {
		t.Errorf("Reconcile failed: %v", err)
	}
}

func TestMutate_ConcurrencyExhausted(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()

	conflicts := &conflictStore{CreditStore: db}
	s := New(conflicts, cache.New[any](), WithRetryPolicy(retry.Policy{MaxAttempts: 3, Retryable: store.IsRetryable}))

	_, err := s.Credit(context.Background(), CreditParams{UserId: "user1", Amount: 5, Type: models.TransactionEarned})
	if !errors.Is(err, ErrConcurrencyExhausted) {
		t.Fatalf("Expected concurrency exhausted, got: %v", err)
	}
	if Kind(err) != KindConcurrencyExhausted {
		t.Errorf("Expected kind %s, got %s", KindConcurrencyExhausted, Kind(err))
	}
	if conflicts.attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", conflicts.attempts)
	}
}

func TestCredit_Validation(t *testing.T) {
	s, _, cleanup := setupTestLedger(t)
	defer cleanup()

	tests := []struct {
		name   string
		params CreditParams
	}{
		{"missing user", CreditParams{Amount: 1, Type: models.TransactionEarned}},
		{"zero amount", CreditParams{UserId: "u", Type: models.TransactionEarned}},
		{"spent is not a credit", CreditParams{UserId: "u", Amount: 1, Type: models.TransactionSpent}},
		{"purchase without payment id", CreditParams{UserId: "u", Amount: 1, Type: models.TransactionPurchased}},
		{"payment id on earned", CreditParams{UserId: "u", Amount: 1, Type: models.TransactionEarned, ExternalPaymentId: "pi_1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Credit(context.Background(), tt.params); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Expected invalid argument, got: %v", err)
			}
		})
	}
}

func TestCredit_RedeliveriesCreditOnce(t *testing.T) {
	s, db, cleanup := setupTestLedger(t)
	defer cleanup()

	ctx := context.Background()
	params := CreditParams{
		UserId:            "user1",
		Amount:            175,
		Type:              models.TransactionPurchased,
		Description:       "Popular pack",
		ExternalPaymentId: "pi_redeliver",
	}

	const deliveries = 10
	var wg sync.WaitGroup
	results := make([]*models.CreditTransaction, deliveries)
	errs := make([]error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Credit(ctx, params)
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i, err := range errs {
		if err != nil {
			t.Fatalf("Delivery %d failed: %v", i, err)
		}
		if !results[i].Replayed {
			fresh++
		}
		if results[i].Id != results[0].Id {
			t.Errorf("Delivery %d returned a different transaction", i)
		}
	}
	if fresh != 1 {
		t.Errorf("Expected exactly one non-replayed result, got %d", fresh)
	}

	account, err := db.GetAccount(ctx, "user1")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account.TotalCredits != 175 {
		t.Errorf("Expected balance 175, got %d", account.TotalCredits)
	}
}

func TestCredit_PaymentAccountMismatch(t *testing.T) {
	s, _, cleanup := setupTestLedger(t)
	defer cleanup()

	ctx := context.Background()
	params := CreditParams{UserId: "user1", Amount: 50, Type: models.TransactionPurchased, ExternalPaymentId: "pi_shared"}
	if _, err := s.Credit(ctx, params); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	params.UserId = "user2"
	_, err := s.Credit(ctx, params)
	if !errors.Is(err, ErrPaymentAccountMismatch) {
		t.Fatalf("Expected payment account mismatch, got: %v", err)
	}
	if Kind(err) != KindPaymentAccountMismatch {
		t.Errorf("Expected kind %s, got %s", KindPaymentAccountMismatch, Kind(err))
	}
}

func TestListTransactions_Paging(t *testing.T) {
	s, _, cleanup := setupTestLedger(t)
	defer cleanup()

	ctx := context.Background()
	for i := int64(1); i <= 25; i++ {
		grant(t, s, "user1", i)
	}

	first, err := s.ListTransactions(ctx, "user1", 0, "")
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(first.Transactions) != defaultPageSize {
		t.Fatalf("Expected default page size %d, got %d", defaultPageSize, len(first.Transactions))
	}
	if first.Transactions[0].Amount != 25 {
		t.Errorf("Expected newest first, got amount %d", first.Transactions[0].Amount)
	}
	if first.NextCursor == "" {
		t.Fatal("Expected a next cursor")
	}

	second, err := s.ListTransactions(ctx, "user1", 20, first.NextCursor)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(second.Transactions) != 5 {
		t.Fatalf("Expected 5 rows on the last page, got %d", len(second.Transactions))
	}
	if second.NextCursor != "" {
		t.Errorf("Expected no cursor on the last page, got %q", second.NextCursor)
	}
	if second.Transactions[4].Amount != 1 {
		t.Errorf("Expected the oldest row last, got amount %d", second.Transactions[4].Amount)
	}

	// Mutating a returned page must not corrupt the cached one
	first.Transactions[0].Amount = -1
	again, _ := s.ListTransactions(ctx, "user1", 5, "")
	if again.Transactions[0].Amount != 25 {
		t.Errorf("Cached history was modified through a returned page")
	}
}

func TestListTransactions_BadCursor(t *testing.T) {
	s, _, cleanup := setupTestLedger(t)
	defer cleanup()

	for _, cursor := range []string{"abc", "-3", "0"} {
		if _, err := s.ListTransactions(context.Background(), "user1", 10, cursor); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("cursor %q: expected invalid argument, got: %v", cursor, err)
		}
	}
}

func TestListTransactions_FirstPageRefreshedAfterWrite(t *testing.T) {
	s, _, cleanup := setupTestLedger(t)
	defer cleanup()

	ctx := context.Background()
	grant(t, s, "user1", 5)
	if _, err := s.ListTransactions(ctx, "user1", 10, ""); err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}

	grant(t, s, "user1", 6)
	page, err := s.ListTransactions(ctx, "user1", 10, "")
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(page.Transactions) != 2 || page.Transactions[0].Amount != 6 {
		t.Errorf("Expected the new row at the top, got %+v", page.Transactions)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("wrapped: %w", ErrInsufficientCredits), KindInsufficientCredits},
		{fmt.Errorf("wrapped: %w", store.ErrAccountNotFound), KindNotFound},
		{fmt.Errorf("wrapped: %w", store.ErrStoreUnavailable), KindStoreUnavailable},
		{fmt.Errorf("%w: %w", ErrConcurrencyExhausted, store.ErrConcurrentModification), KindConcurrencyExhausted},
		{errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestGetBalance_WriteDuringLoadIsNotCachedStale(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()

	blocking := newBlockingStore(db)
	s := New(blocking, cache.New[any]())
	ctx := context.Background()
	grant(t, s, "user1", 50)

	blocking.armed.Store(true)
	done := make(chan error, 1)
	go func() {
		_, err := s.GetBalance(ctx, "user1")
		done <- err
	}()
	<-blocking.reached

	// The pending read saw 50; this debit lands before it can be cached
	if _, err := s.Debit(ctx, "user1", 40, "spend"); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	close(blocking.release)
	if err := <-done; err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}

	account, err := s.GetBalance(ctx, "user1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if account.TotalCredits != 10 {
		t.Errorf("Expected 10 after debit, got %d", account.TotalCredits)
	}
}

func TestGetBalance_CancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	db, cleanup := setupTestDb(t)
	defer cleanup()

	blocking := newBlockingStore(db)
	s := New(blocking, cache.New[any]())
	grant(t, s, "user1", 25)

	blocking.armed.Store(true)
	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	leaderDone := make(chan error, 1)
	go func() {
		_, err := s.GetBalance(leaderCtx, "user1")
		leaderDone <- err
	}()
	<-blocking.reached

	type result struct {
		account *models.CreditAccount
		err     error
	}
	followerDone := make(chan result, 1)
	go func() {
		account, err := s.GetBalance(context.Background(), "user1")
		followerDone <- result{account, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-leaderDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected the cancelled caller to see context.Canceled, got: %v", err)
	}

	close(blocking.release)
	res := <-followerDone
	if res.err != nil {
		t.Fatalf("Follower failed: %v", res.err)
	}
	if res.account.TotalCredits != 25 {
		t.Errorf("Expected 25, got %d", res.account.TotalCredits)
	}
}
