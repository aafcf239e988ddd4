package tiers

import (
	"fmt"
	"time"
)

// Window identifies a rate limit window within a tier.
type Window string

const (
	// WindowMinute is the rolling 60-second request window.
	WindowMinute Window = "minute"

	// WindowHour is the rolling 1-hour request window.
	WindowHour Window = "hour"

	// WindowDay is the rolling 24-hour request window.
	WindowDay Window = "day"
)

// Duration returns the time span covered by the window.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowMinute:
		return time.Minute
	case WindowHour:
		return time.Hour
	case WindowDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Tier names in ascending order of privilege.
const (
	TierLimited   = "limited"
	TierFree      = "free"
	TierBasic     = "basic"
	TierPremium   = "premium"
	TierUnlimited = "unlimited"
)

// Ordering is the fixed tier ordering from most to least restrictive.
// Limit validation and catalog listing both follow this order.
var Ordering = []string{TierLimited, TierFree, TierBasic, TierPremium, TierUnlimited}

// Limits contains the per-window ceilings for a single tier.
// All values are per identifier (user or IP pseudo-identity).
type Limits struct {
	// Name is the tier name (limited, free, basic, premium, unlimited).
	Name string `yaml:"-"`

	// RequestsPerMinute is the rolling 60-second request ceiling.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// RequestsPerHour is the rolling 1-hour request ceiling.
	RequestsPerHour int `yaml:"requests_per_hour"`

	// RequestsPerDay is the rolling 24-hour request ceiling.
	RequestsPerDay int `yaml:"requests_per_day"`

	// TokensPerMinute is the rolling 60-second token budget.
	TokensPerMinute int `yaml:"tokens_per_minute"`

	// TokensPerDay is the rolling 24-hour token budget.
	TokensPerDay int `yaml:"tokens_per_day"`

	// BurstSize is the one-time extra allowance above RequestsPerMinute
	// granted while the nominal minute ceiling has not been reached.
	BurstSize int `yaml:"burst_size"`
}

// RequestLimit returns the request ceiling for the given window.
func (l Limits) RequestLimit(w Window) int {
	switch w {
	case WindowMinute:
		return l.RequestsPerMinute
	case WindowHour:
		return l.RequestsPerHour
	case WindowDay:
		return l.RequestsPerDay
	default:
		return 0
	}
}

// Catalog is an immutable table mapping tier names to their limits.
// Construct with NewCatalog (or DefaultCatalog) once at process start
// and share it by reference; it performs no locking because it is
// never mutated after construction.
type Catalog struct {
	byName map[string]Limits
}

// DefaultLimits returns the built-in limits for every known tier.
// Configuration may override individual values; the monotonicity
// invariant is re-validated after overrides are applied.
func DefaultLimits() map[string]Limits {
	return map[string]Limits{
		TierLimited: {
			RequestsPerMinute: 5,
			RequestsPerHour:   50,
			RequestsPerDay:    200,
			TokensPerMinute:   5000,
			TokensPerDay:      50000,
			BurstSize:         2,
		},
		TierFree: {
			RequestsPerMinute: 10,
			RequestsPerHour:   100,
			RequestsPerDay:    500,
			TokensPerMinute:   10000,
			TokensPerDay:      100000,
			BurstSize:         5,
		},
		TierBasic: {
			RequestsPerMinute: 30,
			RequestsPerHour:   500,
			RequestsPerDay:    2000,
			TokensPerMinute:   50000,
			TokensPerDay:      500000,
			BurstSize:         10,
		},
		TierPremium: {
			RequestsPerMinute: 100,
			RequestsPerHour:   2000,
			RequestsPerDay:    10000,
			TokensPerMinute:   200000,
			TokensPerDay:      2000000,
			BurstSize:         25,
		},
		TierUnlimited: {
			RequestsPerMinute: 1000,
			RequestsPerHour:   20000,
			RequestsPerDay:    100000,
			TokensPerMinute:   2000000,
			TokensPerDay:      20000000,
			BurstSize:         100,
		},
	}
}

// NewCatalog builds a catalog from the given limits table and validates
// it. The table must contain exactly the five known tiers and every
// limit must be monotonically non-decreasing across the tier ordering.
func NewCatalog(limits map[string]Limits) (*Catalog, error) {
	byName := make(map[string]Limits, len(Ordering))
	for _, name := range Ordering {
		l, ok := limits[name]
		if !ok {
			return nil, fmt.Errorf("tier catalog: missing tier %q", name)
		}
		l.Name = name
		byName[name] = l
	}

	c := &Catalog{byName: byName}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultCatalog returns a catalog built from DefaultLimits.
// The built-in defaults always satisfy the monotonicity invariant.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultLimits())
	if err != nil {
		// Defaults are defined in this package and validated by tests.
		panic(fmt.Sprintf("tiers: invalid built-in defaults: %v", err))
	}
	return c
}

// Lookup returns the limits for the named tier.
//
// An unknown or empty name fails closed to the "limited" tier so that a
// misconfigured caller can never escape the most restrictive ceilings.
// The second return value reports whether the name was known.
func (c *Catalog) Lookup(name string) (Limits, bool) {
	if l, ok := c.byName[name]; ok {
		return l, true
	}
	return c.byName[TierLimited], false
}

// Names returns the tier names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(Ordering))
	copy(names, Ordering)
	return names
}

// validate enforces the monotonicity invariant: for consecutive tiers
// in Ordering, every limit of the higher tier must be >= the lower one.
func (c *Catalog) validate() error {
	for i := 1; i < len(Ordering); i++ {
		lower := c.byName[Ordering[i-1]]
		upper := c.byName[Ordering[i]]

		checks := []struct {
			field string
			lo    int
			hi    int
		}{
			{"requests_per_minute", lower.RequestsPerMinute, upper.RequestsPerMinute},
			{"requests_per_hour", lower.RequestsPerHour, upper.RequestsPerHour},
			{"requests_per_day", lower.RequestsPerDay, upper.RequestsPerDay},
			{"tokens_per_minute", lower.TokensPerMinute, upper.TokensPerMinute},
			{"tokens_per_day", lower.TokensPerDay, upper.TokensPerDay},
		}
		for _, chk := range checks {
			if chk.hi < chk.lo {
				return fmt.Errorf("tier catalog: %s of tier %q (%d) is lower than tier %q (%d)",
					chk.field, Ordering[i], chk.hi, Ordering[i-1], chk.lo)
			}
		}
	}

	for _, name := range Ordering {
		l := c.byName[name]
		if l.RequestsPerMinute <= 0 || l.RequestsPerHour <= 0 || l.RequestsPerDay <= 0 {
			return fmt.Errorf("tier catalog: tier %q has a non-positive request limit", name)
		}
		if l.BurstSize < 0 {
			return fmt.Errorf("tier catalog: tier %q has a negative burst size", name)
		}
	}

	return nil
}
