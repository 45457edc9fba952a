package bonus

import (
	"testing"
	"time"
)

func TestDateIn(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name string
		t    time.Time
		loc  *time.Location
		want string
	}{
		{"utc evening is still the same day in new york", time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC), newYork, "2026-03-14"},
		{"utc early morning is the previous day in new york", time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC), newYork, "2026-03-14"},
		{"utc afternoon is the next day in tokyo", time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC), tokyo, "2026-03-15"},
		{"nil location means utc", time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC), nil, "2026-03-14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DateIn(tt.t, tt.loc); got != tt.want {
				t.Errorf("DateIn() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDateIn_IgnoresInputZone(t *testing.T) {
	instant := time.Date(2026, 7, 1, 2, 0, 0, 0, time.UTC)
	shifted := instant.In(time.FixedZone("UTC+14", 14*3600))

	if DateIn(instant, time.UTC) != DateIn(shifted, time.UTC) {
		t.Error("Same instant must map to the same date regardless of its zone")
	}
}

func TestGranter_Eligible(t *testing.T) {
	g, err := NewGranter("America/New_York", DefaultAmount)
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	today := g.Today(now)

	if !g.Eligible("", now) {
		t.Error("Never-claimed account should be eligible")
	}
	if g.Eligible(today, now) {
		t.Error("Account claimed today should not be eligible")
	}
	if !g.Eligible("2026-03-13", now) {
		t.Error("Account claimed yesterday should be eligible")
	}
}

func TestNewGranter_Validation(t *testing.T) {
	if _, err := NewGranter("Not/AZone", 10); err == nil {
		t.Error("Expected an error for an unknown timezone")
	}
	if _, err := NewGranter("UTC", 0); err == nil {
		t.Error("Expected an error for a zero amount")
	}

	g, err := NewGranter("", 10)
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	if g.Location.String() != DefaultTimezone {
		t.Errorf("Expected default timezone %s, got %s", DefaultTimezone, g.Location)
	}
}
