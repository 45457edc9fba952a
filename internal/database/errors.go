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
	"errors"
	"fmt"
	"strings"

	"credit-ledger-go/internal/store"

	"github.com/mattn/go-sqlite3"
)

// mapError translates driver errors into the store sentinels. Lock contention
// is reported as a concurrent modification so callers retry it like a stale
// version.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique && strings.Contains(sqliteErr.Error(), "external_payment_id"):
			return fmt.Errorf("failed to %s: %w", op, store.ErrDuplicateTransaction)
		case sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("failed to %s: %w", op, store.ErrConcurrentModification)
		case sqliteErr.Code == sqlite3.ErrConstraint:
			return fmt.Errorf("failed to %s: constraint violated: %w", op, err)
		}
	}

	return fmt.Errorf("failed to %s: %w: %w", op, store.ErrStoreUnavailable, err)
}

// nullString stores empty strings as NULL so partial unique indexes skip them
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
