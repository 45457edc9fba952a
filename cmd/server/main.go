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

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"credit-ledger-go/internal/audit"
	"credit-ledger-go/internal/common"
	"credit-ledger-go/internal/config"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "time/tzdata"
)

func main() {
	addr := flag.String("addr", "", "Listen address (overrides HTTP_ADDR)")
	noAudit := flag.Bool("no-audit", false, "Disable the periodic balance audit")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zap.L().Info("Starting credit ledger", zap.String("backend", cfg.Backend))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	srv := services.NewServer(cfg.HTTP)

	var auditor *audit.Auditor
	if !*noAudit && cfg.Ledger.AuditInterval > 0 {
		auditor = audit.NewAuditor(services.Ledger, cfg.Ledger.AuditInterval)
		if err := auditor.Start(ctx); err != nil {
			zap.L().Fatal("Failed to start balance auditor", zap.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("Shutdown signal received, draining requests")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		if auditor != nil {
			auditor.Stop()
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("Server stopped with error", zap.Error(err))
		return
	}
	zap.L().Info("Server stopped gracefully")
}
