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

package server

import (
	"context"
	"net/http"
	"time"

	"credit-ledger-go/internal/auth"
	"credit-ledger-go/internal/catalog"
	"credit-ledger-go/internal/ledger"
	"credit-ledger-go/internal/metrics"
	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/purchase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"go.uber.org/zap"
)

// Ledger is the part of the ledger service exposed over HTTP
type Ledger interface {
	GetBalance(ctx context.Context, userId string) (*models.CreditAccount, error)
	Debit(ctx context.Context, userId string, amount int64, description string) (*models.CreditTransaction, error)
	ListTransactions(ctx context.Context, userId string, limit int, cursor string) (*models.TransactionPage, error)
	ClaimDailyBonus(ctx context.Context, userId string) (*models.CreditTransaction, bool, error)
	HealthCheck(ctx context.Context) error
}

// Reconciler credits confirmed purchases
type Reconciler interface {
	Reconcile(ctx context.Context, event purchase.Event) (*models.CreditTransaction, error)
}

// Checkout opens and completes checkout sessions
type Checkout interface {
	Start(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResponse, error)
	Complete(ctx context.Context, sessionId string) error
}

var (
	_ Ledger     = (*ledger.Service)(nil)
	_ Reconciler = (*purchase.Reconciler)(nil)
)

// Dependencies are the services the HTTP boundary calls into
type Dependencies struct {
	Ledger     Ledger
	Reconciler Reconciler
	Checkout   Checkout
	Catalog    *catalog.Catalog
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
}

// Server wraps an http.Server with configured routes.
type Server struct {
	deps    Dependencies
	cfg     models.HTTPConfig
	tokens  *auth.TokenManager
	metrics *metrics.Metrics
	inner   *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg models.HTTPConfig, deps Dependencies) *Server {
	s := &Server{
		deps:    deps,
		cfg:     cfg,
		metrics: deps.Metrics,
	}
	if cfg.JWTSecret != "" {
		s.tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer)
	} else {
		zap.L().Warn("JWT_SECRET not set, credit routes are unauthenticated")
	}
	if cfg.WebhookSecret == "" {
		zap.L().Warn("WEBHOOK_SECRET not set, purchase webhook signatures are not checked")
	}

	s.inner = &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors(s.cfg.CORSOrigins))

	r.Get("/health", s.handleHealth)
	if s.cfg.MetricsEnabled && s.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/packages", s.handleListPackages)
		r.Post("/checkout", s.handleCheckout)
		r.Post("/webhooks/purchase", s.handlePurchaseWebhook)

		r.Route("/credits/{userId}", func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/", s.handleGetBalance)
			r.Get("/transactions", s.handleListTransactions)
			r.Post("/debit", s.handleDebit)
			r.Post("/daily-bonus", s.handleDailyBonus)
		})
	})

	return r
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	zap.L().Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
