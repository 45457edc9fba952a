package bonus

import (
	"fmt"
	"time"
)

const (
	DefaultTimezone = "America/New_York"
	DefaultAmount   = int64(10)

	dateLayout = "2006-01-02"
)

// DateIn returns the calendar date of t in loc as YYYY-MM-DD. The host's local
// timezone plays no part.
func DateIn(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

// Granter decides daily bonus eligibility against a reference timezone
type Granter struct {
	Location *time.Location
	Amount   int64
}

// NewGranter resolves timezone by IANA name
func NewGranter(timezone string, amount int64) (*Granter, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	if amount <= 0 {
		return nil, fmt.Errorf("daily bonus amount must be positive, got %d", amount)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load bonus timezone %q: %w", timezone, err)
	}
	return &Granter{Location: loc, Amount: amount}, nil
}

// Today is the reference-timezone date for now
func (g *Granter) Today(now time.Time) string {
	return DateIn(now, g.Location)
}

// Eligible reports whether an account last granted on lastDate may claim again.
// An account that never claimed is eligible.
func (g *Granter) Eligible(lastDate string, now time.Time) bool {
	return lastDate == "" || lastDate != g.Today(now)
}
