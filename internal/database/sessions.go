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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"credit-ledger-go/internal/models"
	"credit-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateCheckoutSession records a checkout opened for a package
func (s *Service) CreateCheckoutSession(ctx context.Context, session models.CheckoutSession) (*models.CheckoutSession, error) {
	if session.Id == "" {
		session.Id = "cs_" + uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.Status = models.CheckoutStatusOpen

	_, err := s.db.ExecContext(ctx, queryInsertCheckoutSession,
		session.Id, session.UserId, session.UserEmail, session.PackageId,
		session.PriceUSD.StringFixed(2), session.Status, session.CreatedAt)
	if err != nil {
		return nil, mapError("create checkout session", err)
	}

	zap.L().Info("Checkout session created",
		zap.String("session_id", session.Id),
		zap.String("user_id", session.UserId),
		zap.String("package_id", session.PackageId))
	return &session, nil
}

// CompleteCheckoutSession marks a session completed. Completing it twice is a no-op.
func (s *Service) CompleteCheckoutSession(ctx context.Context, sessionId string) error {
	result, err := s.db.ExecContext(ctx, queryCompleteCheckoutSession, time.Now().UTC(), sessionId)
	if err != nil {
		return mapError("complete checkout session", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError("check rows affected", err)
	}
	if rowsAffected > 0 {
		zap.L().Info("Checkout session completed", zap.String("session_id", sessionId))
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, queryGetCheckoutSessionStatus, sessionId).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", store.ErrSessionNotFound, sessionId)
	}
	if err != nil {
		return mapError("get checkout session", err)
	}

	zap.L().Debug("Checkout session already completed",
		zap.String("session_id", sessionId),
		zap.String("status", status))
	return nil
}
