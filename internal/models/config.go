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

package models

import "time"

// Backends selectable through LEDGER_BACKEND
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config represents the application configuration
type Config struct {
	Backend  string
	Database DatabaseConfig
	Postgres PostgresConfig
	HTTP     HTTPConfig
	Ledger   LedgerConfig
}

// DatabaseConfig holds SQLite connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL         string
	MaxConns    int32
	PingTimeout time.Duration
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	JWTSecret       string
	JWTIssuer       string
	WebhookSecret   string
	MetricsEnabled  bool
}

// LedgerConfig holds credit ledger settings
type LedgerConfig struct {
	CatalogFile        string
	CacheTTL           time.Duration
	RetryMaxAttempts   int
	DailyBonusAmount   int64
	DailyBonusTimezone string
	DailyBonusOnRead   bool
	AuditInterval      time.Duration
}
