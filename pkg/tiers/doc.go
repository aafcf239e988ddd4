// Package tiers defines the fixed catalog of quota tiers.
//
// A tier is a named bucket of request and token ceilings assigned to a
// caller (limited, free, basic, premium, unlimited). The catalog is
// loaded once at startup and is immutable afterwards. Limits are
// validated to be monotonically non-decreasing across the tier
// ordering, so upgrading a caller's tier can never reduce any ceiling.
//
// Unknown tier names fail closed to the lowest tier rather than
// producing an error.
package tiers
