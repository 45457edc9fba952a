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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"credit-ledger-go/internal/models"
)

func Load() (*models.Config, error) {
	backend := strings.ToLower(getEnvString("LEDGER_BACKEND", models.BackendSQLite))
	if backend != models.BackendSQLite && backend != models.BackendPostgres {
		return nil, fmt.Errorf("invalid LEDGER_BACKEND: %q (expected %s or %s)", backend, models.BackendSQLite, models.BackendPostgres)
	}

	durations := map[string]time.Duration{}
	defaults := []struct {
		key   string
		value time.Duration
	}{
		{"DB_CONN_MAX_LIFETIME", 5 * time.Minute},
		{"DB_CONN_MAX_IDLE_TIME", 30 * time.Second},
		{"DB_PING_TIMEOUT", 5 * time.Second},
		{"DB_BUSY_TIMEOUT", 5 * time.Second},
		{"HTTP_READ_TIMEOUT", 15 * time.Second},
		{"HTTP_WRITE_TIMEOUT", 15 * time.Second},
		{"HTTP_SHUTDOWN_TIMEOUT", 30 * time.Second},
		{"CACHE_TTL", 2 * time.Minute},
		{"AUDIT_INTERVAL", time.Hour},
	}
	for _, d := range defaults {
		value, err := getEnvDuration(d.key, d.value)
		if err != nil {
			return nil, err
		}
		durations[d.key] = value
	}

	cfg := &models.Config{
		Backend: backend,
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "credits.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: durations["DB_CONN_MAX_LIFETIME"],
			ConnMaxIdleTime: durations["DB_CONN_MAX_IDLE_TIME"],
			PingTimeout:     durations["DB_PING_TIMEOUT"],
			BusyTimeout:     durations["DB_BUSY_TIMEOUT"],
		},
		Postgres: models.PostgresConfig{
			URL:         getEnvString("DATABASE_URL", ""),
			MaxConns:    int32(getEnvInt("PG_MAX_CONNS", 10)),
			PingTimeout: durations["DB_PING_TIMEOUT"],
		},
		HTTP: models.HTTPConfig{
			Addr:            getEnvString("HTTP_ADDR", ":8080"),
			ReadTimeout:     durations["HTTP_READ_TIMEOUT"],
			WriteTimeout:    durations["HTTP_WRITE_TIMEOUT"],
			ShutdownTimeout: durations["HTTP_SHUTDOWN_TIMEOUT"],
			CORSOrigins:     getEnvList("CORS_ALLOWED_ORIGINS"),
			JWTSecret:       getEnvString("JWT_SECRET", ""),
			JWTIssuer:       getEnvString("JWT_ISSUER", "credit-ledger"),
			WebhookSecret:   getEnvString("WEBHOOK_SECRET", ""),
			MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		},
		Ledger: models.LedgerConfig{
			CatalogFile:        getEnvString("CATALOG_FILE", ""),
			CacheTTL:           durations["CACHE_TTL"],
			RetryMaxAttempts:   getEnvInt("RETRY_MAX_ATTEMPTS", 5),
			DailyBonusAmount:   int64(getEnvInt("DAILY_BONUS_AMOUNT", 10)),
			DailyBonusTimezone: getEnvString("DAILY_BONUS_TIMEZONE", "America/New_York"),
			DailyBonusOnRead:   getEnvBool("DAILY_BONUS_ON_READ", false),
			AuditInterval:      durations["AUDIT_INTERVAL"],
		},
	}

	if cfg.Backend == models.BackendPostgres && cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when LEDGER_BACKEND=%s", models.BackendPostgres)
	}
	if cfg.Ledger.DailyBonusAmount <= 0 {
		return nil, fmt.Errorf("invalid DAILY_BONUS_AMOUNT: %d (must be positive)", cfg.Ledger.DailyBonusAmount)
	}

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
