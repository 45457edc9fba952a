package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Ensure Store satisfies the store.CreditStore interface at compile time.
var _ store.CreditStore = (*Store)(nil)

// Store provides Postgres-backed persistence for credit accounts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and runs migrations.
func NewStore(ctx context.Context, cfg models.PostgresConfig) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url cannot be empty")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	zap.L().Info("Postgres store initialized", zap.Int32("max_conns", poolCfg.MaxConns))
	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return mapError("ping database", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS credit_accounts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			total_credits BIGINT NOT NULL DEFAULT 0 CHECK (total_credits >= 0),
			total_earned BIGINT NOT NULL DEFAULT 0,
			total_spent BIGINT NOT NULL DEFAULT 0,
			last_daily_bonus_date TEXT,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (total_credits = total_earned - total_spent)
		);`,
		`CREATE TABLE IF NOT EXISTS credit_transactions (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			account_id TEXT NOT NULL REFERENCES credit_accounts(id),
			user_id TEXT NOT NULL,
			transaction_type TEXT NOT NULL,
			amount BIGINT NOT NULL,
			balance_after BIGINT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			external_payment_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_credit_transactions_user_seq ON credit_transactions (user_id, seq);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_credit_transactions_external_payment_id
			ON credit_transactions (external_payment_id) WHERE external_payment_id IS NOT NULL;`,
		`CREATE TABLE IF NOT EXISTS journal_entries (
			id TEXT PRIMARY KEY,
			transaction_id TEXT NOT NULL,
			account_type TEXT NOT NULL,
			account_id TEXT NOT NULL,
			debit_amount BIGINT NOT NULL DEFAULT 0,
			credit_amount BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_journal_transaction_id ON journal_entries (transaction_id);`,
		`CREATE TABLE IF NOT EXISTS checkout_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			user_email TEXT NOT NULL,
			package_id TEXT NOT NULL,
			price_usd NUMERIC(12,2) NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// mapError translates pgx errors into the store sentinels.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			if pgErr.ConstraintName == "idx_credit_transactions_external_payment_id" {
				return fmt.Errorf("failed to %s: %w", op, store.ErrDuplicateTransaction)
			}
			return fmt.Errorf("failed to %s: constraint violated: %w", op, err)
		case "40001", "40P01", "55P03":
			return fmt.Errorf("failed to %s: %w", op, store.ErrConcurrentModification)
		case "23514", "23503":
			return fmt.Errorf("failed to %s: constraint violated: %w", op, err)
		}
	}

	return fmt.Errorf("failed to %s: %w: %w", op, store.ErrStoreUnavailable, err)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

const accountColumns = `id, user_id, total_credits, total_earned, total_spent, last_daily_bonus_date, version, created_at, updated_at`

const transactionColumns = `seq, id, account_id, user_id, transaction_type, amount, balance_after, description, external_payment_id, created_at`

func scanAccount(row pgx.Row) (*models.CreditAccount, error) {
	var account models.CreditAccount
	var bonusDate *string
	err := row.Scan(&account.Id, &account.UserId, &account.TotalCredits, &account.TotalEarned,
		&account.TotalSpent, &bonusDate, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if bonusDate != nil {
		account.LastDailyBonusDate = *bonusDate
	}
	return &account, nil
}

func scanTransaction(row pgx.Row) (*models.CreditTransaction, error) {
	var transaction models.CreditTransaction
	var transactionType string
	var externalId *string
	err := row.Scan(&transaction.Sequence, &transaction.Id, &transaction.AccountId, &transaction.UserId,
		&transactionType, &transaction.Amount, &transaction.BalanceAfter, &transaction.Description,
		&externalId, &transaction.CreatedAt)
	if err != nil {
		return nil, err
	}
	transaction.Type = models.TransactionType(transactionType)
	if externalId != nil {
		transaction.ExternalPaymentId = *externalId
	}
	return &transaction, nil
}
