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
	"context"
	"fmt"
	"log"
	"strings"

	"credit-ledger-go/internal/bonus"
	"credit-ledger-go/internal/cache"
	"credit-ledger-go/internal/catalog"
	"credit-ledger-go/internal/checkout"
	"credit-ledger-go/internal/database"
	"credit-ledger-go/internal/ledger"
	"credit-ledger-go/internal/metrics"
	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/postgres"
	"credit-ledger-go/internal/purchase"
	"credit-ledger-go/internal/retry"
	"credit-ledger-go/internal/server"
	"credit-ledger-go/internal/store"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// A missing .env is fine; variables may come from the shell or the container
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	Store      store.CreditStore
	Catalog    *catalog.Catalog
	Ledger     *ledger.Service
	Reconciler *purchase.Reconciler
	Checkout   *checkout.Service
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeStore opens the backend selected by cfg.Backend
func InitializeStore(ctx context.Context, cfg *models.Config) (store.CreditStore, error) {
	switch cfg.Backend {
	case models.BackendPostgres:
		zap.L().Info("Using Postgres backend")
		pgStore, err := postgres.NewStore(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return pgStore, nil
	case models.BackendSQLite, "":
		zap.L().Info("Using SQLite backend", zap.String("path", cfg.Database.Path))
		dbService, err := database.NewService(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return dbService, nil
	}
	return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	creditStore, err := InitializeStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	packages, err := catalog.Load(cfg.Ledger.CatalogFile)
	if err != nil {
		creditStore.Close()
		return nil, err
	}
	zap.L().Info("Loaded package catalog",
		zap.String("file", cfg.Ledger.CatalogFile),
		zap.Int("packages", len(packages.List())))

	granter, err := bonus.NewGranter(cfg.Ledger.DailyBonusTimezone, cfg.Ledger.DailyBonusAmount)
	if err != nil {
		creditStore.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	policy := retry.Default()
	if cfg.Ledger.RetryMaxAttempts > 0 {
		policy.MaxAttempts = cfg.Ledger.RetryMaxAttempts
	}

	ledgerService := ledger.New(creditStore, cache.New[any](),
		ledger.WithCacheTTL(cfg.Ledger.CacheTTL),
		ledger.WithRetryPolicy(policy),
		ledger.WithGranter(granter),
		ledger.WithMetrics(m),
		ledger.WithBonusOnRead(cfg.Ledger.DailyBonusOnRead),
	)

	return &Services{
		Store:      creditStore,
		Catalog:    packages,
		Ledger:     ledgerService,
		Reconciler: purchase.NewReconciler(ledgerService, packages, m),
		Checkout:   checkout.NewService(creditStore, packages),
		Metrics:    m,
		Registry:   registry,
	}, nil
}

// NewServer builds the HTTP boundary over the initialized services
func (cs *Services) NewServer(cfg models.HTTPConfig) *server.Server {
	return server.New(cfg, server.Dependencies{
		Ledger:     cs.Ledger,
		Reconciler: cs.Reconciler,
		Checkout:   cs.Checkout,
		Catalog:    cs.Catalog,
		Metrics:    cs.Metrics,
		Gatherer:   cs.Registry,
	})
}

func (cs *Services) Close() {
	if cs.Store != nil {
		cs.Store.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
