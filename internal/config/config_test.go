package config

import (
	"testing"
	"time"

	"credit-ledger-go/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Backend != models.BackendSQLite {
		t.Errorf("Expected sqlite backend, got %s", cfg.Backend)
	}
	if cfg.Database.Path != "credits.db" {
		t.Errorf("Unexpected database path %s", cfg.Database.Path)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.HTTP.ShutdownTimeout != 30*time.Second {
		t.Errorf("Unexpected HTTP config: %+v", cfg.HTTP)
	}
	if cfg.Ledger.DailyBonusAmount != 10 || cfg.Ledger.DailyBonusTimezone != "America/New_York" {
		t.Errorf("Unexpected bonus config: %+v", cfg.Ledger)
	}
	if cfg.Ledger.RetryMaxAttempts != 5 || cfg.Ledger.CacheTTL != 2*time.Minute {
		t.Errorf("Unexpected ledger config: %+v", cfg.Ledger)
	}
	if len(cfg.HTTP.CORSOrigins) != 0 {
		t.Errorf("Expected no CORS origins, got %v", cfg.HTTP.CORSOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "POSTGRES")
	t.Setenv("DATABASE_URL", "postgres://localhost/credits")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("DAILY_BONUS_ON_READ", "true")
	t.Setenv("RETRY_MAX_ATTEMPTS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Backend != models.BackendPostgres || cfg.Postgres.URL != "postgres://localhost/credits" {
		t.Errorf("Unexpected backend config: %s %+v", cfg.Backend, cfg.Postgres)
	}
	if cfg.Ledger.CacheTTL != 30*time.Second {
		t.Errorf("Expected 30s cache TTL, got %s", cfg.Ledger.CacheTTL)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 || cfg.HTTP.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("Unexpected CORS origins %v", cfg.HTTP.CORSOrigins)
	}
	if !cfg.Ledger.DailyBonusOnRead {
		t.Error("Expected bonus on read to be enabled")
	}
	if cfg.Ledger.RetryMaxAttempts != 5 {
		t.Errorf("Expected default attempts for an unparsable value, got %d", cfg.Ledger.RetryMaxAttempts)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"CACHE_TTL": "soon"}},
		{"unknown backend", map[string]string{"LEDGER_BACKEND": "mysql"}},
		{"postgres without url", map[string]string{"LEDGER_BACKEND": "postgres"}},
		{"non positive bonus", map[string]string{"DAILY_BONUS_AMOUNT": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}
