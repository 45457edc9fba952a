package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// GetAccount fetches the account of a user.
func (s *Store) GetAccount(ctx context.Context, userId string) (*models.CreditAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM credit_accounts WHERE user_id = $1`
	account, err := scanAccount(s.pool.QueryRow(ctx, query, userId))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, userId)
	}
	if err != nil {
		return nil, mapError("get account", err)
	}
	return account, nil
}

// CreateAccount inserts a zero-balance account unless one already exists.
func (s *Store) CreateAccount(ctx context.Context, userId string) (*models.CreditAccount, error) {
	const query = `
		INSERT INTO credit_accounts (id, user_id, total_credits, total_earned, total_spent, version, created_at, updated_at)
		VALUES ($1, $2, 0, 0, 0, 1, $3, $3)
		ON CONFLICT (user_id) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query, uuid.New().String(), userId, time.Now().UTC())
	if err != nil {
		return nil, mapError("create account", err)
	}
	if tag.RowsAffected() > 0 {
		zap.L().Info("Credit account created", zap.String("user_id", userId))
	}
	return s.GetAccount(ctx, userId)
}

// ListAccounts returns every account, oldest first.
func (s *Store) ListAccounts(ctx context.Context) ([]models.CreditAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM credit_accounts ORDER BY created_at, user_id`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, mapError("list accounts", err)
	}
	defer rows.Close()

	var accounts []models.CreditAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate account rows", err)
	}
	return accounts, nil
}

// ReconcileAccount compares the account counters with the transaction log.
func (s *Store) ReconcileAccount(ctx context.Context, userId string) error {
	const query = `
		SELECT a.total_credits, a.total_earned, a.total_spent,
		       COALESCE(SUM(t.amount), 0)::BIGINT,
		       COALESCE(SUM(t.amount) FILTER (WHERE t.amount > 0), 0)::BIGINT,
		       COALESCE(-SUM(t.amount) FILTER (WHERE t.amount < 0), 0)::BIGINT
		FROM credit_accounts a
		LEFT JOIN credit_transactions t ON t.account_id = a.id
		WHERE a.user_id = $1
		GROUP BY a.id`
	var account models.CreditAccount
	var sum, earned, spent int64
	err := s.pool.QueryRow(ctx, query, userId).Scan(
		&account.TotalCredits, &account.TotalEarned, &account.TotalSpent,
		&sum, &earned, &spent)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", store.ErrAccountNotFound, userId)
	}
	if err != nil {
		return mapError("calculate balance from transactions", err)
	}

	if sum != account.TotalCredits || earned != account.TotalEarned || spent != account.TotalSpent || !account.Consistent() {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.Int64("total_credits", account.TotalCredits),
			zap.Int64("calculated_credits", sum))
		return fmt.Errorf("%w: user %s credits=%d calculated=%d earned=%d/%d spent=%d/%d",
			store.ErrReconciliationMismatch, userId,
			account.TotalCredits, sum, account.TotalEarned, earned, account.TotalSpent, spent)
	}
	return nil
}

// CreateCheckoutSession records a new open checkout session.
func (s *Store) CreateCheckoutSession(ctx context.Context, session models.CheckoutSession) (*models.CheckoutSession, error) {
	if session.Id == "" {
		session.Id = "cs_" + uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.Status = models.CheckoutStatusOpen

	const query = `
		INSERT INTO checkout_sessions (id, user_id, user_email, package_id, price_usd, status, created_at)
		VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7)`
	_, err := s.pool.Exec(ctx, query, session.Id, session.UserId, session.UserEmail, session.PackageId,
		session.PriceUSD.StringFixed(2), session.Status, session.CreatedAt)
	if err != nil {
		return nil, mapError("create checkout session", err)
	}
	return &session, nil
}

// CompleteCheckoutSession marks a session completed; repeating it is a no-op.
func (s *Store) CompleteCheckoutSession(ctx context.Context, sessionId string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE checkout_sessions SET status = 'completed', completed_at = $1 WHERE id = $2 AND status = 'open'`,
		time.Now().UTC(), sessionId)
	if err != nil {
		return mapError("complete checkout session", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM checkout_sessions WHERE id = $1`, sessionId).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", store.ErrSessionNotFound, sessionId)
	}
	if err != nil {
		return mapError("get checkout session", err)
	}
	return nil
}
