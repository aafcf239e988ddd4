package tiers

import "testing"

func TestDefaultCatalog_Monotonic(t *testing.T) {
	c := DefaultCatalog()

	for i := 1; i < len(Ordering); i++ {
		lower, _ := c.Lookup(Ordering[i-1])
		upper, _ := c.Lookup(Ordering[i])

		for _, w := range []Window{WindowMinute, WindowHour, WindowDay} {
			if upper.RequestLimit(w) < lower.RequestLimit(w) {
				t.Errorf("tier %q %s limit %d < tier %q %d",
					Ordering[i], w, upper.RequestLimit(w), Ordering[i-1], lower.RequestLimit(w))
			}
		}
		if upper.TokensPerMinute < lower.TokensPerMinute {
			t.Errorf("tier %q tokens_per_minute %d < tier %q %d",
				Ordering[i], upper.TokensPerMinute, Ordering[i-1], lower.TokensPerMinute)
		}
		if upper.TokensPerDay < lower.TokensPerDay {
			t.Errorf("tier %q tokens_per_day %d < tier %q %d",
				Ordering[i], upper.TokensPerDay, Ordering[i-1], lower.TokensPerDay)
		}
	}
}

func TestNewCatalog_RejectsInvertedLimits(t *testing.T) {
	limits := DefaultLimits()

	// Make premium stricter than basic, which violates the ordering.
	l := limits[TierPremium]
	l.RequestsPerMinute = limits[TierBasic].RequestsPerMinute - 1
	limits[TierPremium] = l

	if _, err := NewCatalog(limits); err == nil {
		t.Fatal("expected validation error for inverted requests_per_minute")
	}
}

func TestNewCatalog_RejectsMissingTier(t *testing.T) {
	limits := DefaultLimits()
	delete(limits, TierBasic)

	if _, err := NewCatalog(limits); err == nil {
		t.Fatal("expected validation error for missing tier")
	}
}

func TestLookup_UnknownFailsClosed(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		name  string
		tier  string
		known bool
	}{
		{"known tier", TierPremium, true},
		{"unknown tier", "platinum", false},
		{"empty name", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, known := c.Lookup(tt.tier)
			if known != tt.known {
				t.Errorf("Lookup(%q) known = %v, want %v", tt.tier, known, tt.known)
			}
			if !tt.known && l.Name != TierLimited {
				t.Errorf("Lookup(%q) = tier %q, want fail-closed to %q", tt.tier, l.Name, TierLimited)
			}
		})
	}
}

func TestWindowDuration(t *testing.T) {
	if WindowMinute.Duration().Seconds() != 60 {
		t.Errorf("minute window = %v", WindowMinute.Duration())
	}
	if WindowDay.Duration().Hours() != 24 {
		t.Errorf("day window = %v", WindowDay.Duration())
	}
}
