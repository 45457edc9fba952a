package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Reconciler is the part of the ledger the auditor checks accounts through
type Reconciler interface {
	ListAccounts(ctx context.Context) ([]models.CreditAccount, error)
	Reconcile(ctx context.Context, userId string) error
}

// Report summarizes one sweep over all accounts
type Report struct {
	Checked    int
	Mismatched []string
	Failed     map[string]error
}

// OK reports whether every account matched its transaction log
func (r Report) OK() bool {
	return len(r.Mismatched) == 0 && len(r.Failed) == 0
}

// Auditor periodically reconciles every account against its transaction log
type Auditor struct {
	ledger      Reconciler
	interval    time.Duration
	concurrency int

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

func NewAuditor(ledger Reconciler, interval time.Duration) *Auditor {
	return &Auditor{
		ledger:      ledger,
		interval:    interval,
		concurrency: defaultConcurrency,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// Start runs a sweep immediately and then on every interval until Stop
func (a *Auditor) Start(ctx context.Context) error {
	if a.interval <= 0 {
		return fmt.Errorf("audit interval must be positive, got %s", a.interval)
	}

	go a.pollLoop(ctx)

	zap.L().Info("Balance auditor started", zap.Duration("interval", a.interval))
	return nil
}

// Stop waits for the running sweep to finish
func (a *Auditor) Stop() {
	a.stopOnce.Do(func() {
		zap.L().Info("Stopping balance auditor")
		close(a.stopChan)
		<-a.doneChan
		zap.L().Info("Balance auditor stopped")
	})
}

func (a *Auditor) pollLoop(ctx context.Context) {
	defer close(a.doneChan)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logSweep(ctx)

	for {
		select {
		case <-ticker.C:
			a.logSweep(ctx)
		case <-a.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (a *Auditor) logSweep(ctx context.Context) {
	start := time.Now()
	report, err := a.Sweep(ctx)
	if err != nil {
		zap.L().Error("Balance audit failed", zap.Error(err))
		return
	}

	if report.OK() {
		zap.L().Info("Balance audit clean",
			zap.Int("accounts", report.Checked),
			zap.Duration("duration", time.Since(start)))
		return
	}
	zap.L().Error("Balance audit found problems",
		zap.Int("accounts", report.Checked),
		zap.Strings("mismatched_users", report.Mismatched),
		zap.Int("failed", len(report.Failed)))
}

// Sweep reconciles every account once
func (a *Auditor) Sweep(ctx context.Context) (Report, error) {
	accounts, err := a.ledger.ListAccounts(ctx)
	if err != nil {
		return Report{}, err
	}

	report := Report{Checked: len(accounts), Failed: map[string]error{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, account := range accounts {
		userId := account.UserId
		g.Go(func() error {
			err := a.ledger.Reconcile(gctx, userId)
			if err == nil {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, store.ErrReconciliationMismatch) {
				report.Mismatched = append(report.Mismatched, userId)
				zap.L().Error("Balance does not match transaction log",
					zap.String("user_id", userId),
					zap.Error(err))
			} else {
				report.Failed[userId] = err
				zap.L().Warn("Failed to reconcile account",
					zap.String("user_id", userId),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return report, ctx.Err()
}
