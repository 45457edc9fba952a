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

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-ledger-go/internal/bonus"
	"credit-ledger-go/internal/cache"
	"credit-ledger-go/internal/metrics"
	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/retry"
	"credit-ledger-go/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL = 2 * time.Minute

	// cachedTransactionRows is how much of the newest history the first page cache holds
	cachedTransactionRows = 100
	defaultPageSize       = 20
	maxPageSize           = 100

	// sharedLoadTimeout bounds a cache fill once it no longer follows any one caller
	sharedLoadTimeout = 10 * time.Second
)

// Service is the credit ledger: balances, credits, debits and history for every user
type Service struct {
	store    store.CreditStore
	cache    *cache.Cache[any]
	loads    singleflight.Group
	policy   retry.Policy
	granter  *bonus.Granter
	metrics  *metrics.Metrics
	now      func() time.Time
	cacheTTL time.Duration

	bonusOnRead bool
}

type Option func(*Service)

// WithCacheTTL sets how long balance and first-page history entries stay cached
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithRetryPolicy(policy retry.Policy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

func WithGranter(granter *bonus.Granter) Option {
	return func(s *Service) {
		if granter != nil {
			s.granter = granter
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source used for bonus dates
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBonusOnRead grants an eligible daily bonus whenever a balance is read
func WithBonusOnRead(enabled bool) Option {
	return func(s *Service) {
		s.bonusOnRead = enabled
	}
}

func New(creditStore store.CreditStore, creditCache *cache.Cache[any], opts ...Option) *Service {
	if creditCache == nil {
		creditCache = cache.New[any]()
	}

	s := &Service{
		store:    creditStore,
		cache:    creditCache,
		policy:   retry.Default(),
		now:      time.Now,
		cacheTTL: DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.granter == nil {
		granter, err := bonus.NewGranter(bonus.DefaultTimezone, bonus.DefaultAmount)
		if err != nil {
			zap.L().Warn("Falling back to UTC for daily bonus dates", zap.Error(err))
			granter = &bonus.Granter{Location: time.UTC, Amount: bonus.DefaultAmount}
		}
		s.granter = granter
	}

	return s
}

func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Granter exposes the daily bonus rules in use
func (s *Service) Granter() *bonus.Granter {
	return s.granter
}

// loadAccount reads the account from the store, opening it on first sight
func (s *Service) loadAccount(ctx context.Context, userId string) (*models.CreditAccount, error) {
	account, err := s.store.GetAccount(ctx, userId)
	if errors.Is(err, store.ErrAccountNotFound) {
		return s.store.CreateAccount(ctx, userId)
	}
	return account, err
}

// mutation builds the write for one attempt from the freshly read account.
// A nil result with a nil error means there is nothing to write.
type mutation func(current *models.CreditAccount) (*store.MutationParams, error)

// mutate runs read-compute-write under the retry policy, using the version
// read in each attempt as the compare-and-swap token.
func (s *Service) mutate(ctx context.Context, operation, userId string, build mutation) (*models.CreditTransaction, error) {
	var result *models.CreditTransaction

	err := s.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		result = nil

		current, err := s.loadAccount(ctx, userId)
		if err != nil {
			return err
		}

		params, err := build(current)
		if err != nil || params == nil {
			return err
		}

		transaction, err := s.store.ApplyMutation(ctx, *params)
		if err != nil {
			if store.IsRetryable(err) {
				s.metrics.ObserveConflict(operation)
				zap.L().Debug("Version conflict",
					zap.String("operation", operation),
					zap.String("user_id", userId),
					zap.Int64("version", current.Version),
					zap.Int("attempt", attempt))
			}
			return err
		}

		result = transaction
		return nil
	})

	if errors.Is(err, retry.ErrAttemptsExhausted) {
		zap.L().Warn("Giving up after repeated conflicts",
			zap.String("operation", operation),
			zap.String("user_id", userId),
			zap.Error(err))
		return nil, fmt.Errorf("failed to %s for %s: %w: %w", operation, userId, ErrConcurrencyExhausted, err)
	}
	if err != nil {
		return nil, err
	}

	if result != nil {
		s.invalidate(userId)
	}
	return result, nil
}

func (s *Service) invalidate(userId string) {
	for _, key := range []string{cache.BalanceKey(userId), cache.TransactionsKey(userId)} {
		s.cache.Invalidate(key)
		s.loads.Forget(key)
	}
}

// fill loads key once for every concurrent caller and caches the result
// unless the key was invalidated while the store read was in flight. The
// load runs detached from the caller that started it, so a cancelled caller
// only abandons its own wait.
func (s *Service) fill(ctx context.Context, key string, read func(context.Context) (any, error)) (any, error) {
	results := s.loads.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()

		gen := s.cache.Generation(key)
		value, err := read(loadCtx)
		if err != nil {
			return nil, err
		}
		s.cache.SetIfUnchanged(key, value, s.cacheTTL, gen)
		return value, nil
	})

	select {
	case res := <-results:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) observe(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = Kind(err)
	}
	s.metrics.ObserveOperation(operation, outcome)
}

func validateUserId(userId string) error {
	if userId == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	return nil
}
