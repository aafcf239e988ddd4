package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"edustack-hq/turnstile/pkg/admission"
	"edustack-hq/turnstile/pkg/admission/identity"
	"edustack-hq/turnstile/pkg/admission/ratelimit"
	"edustack-hq/turnstile/pkg/tiers"
)

// tierDenialBody is the JSON payload for a 429 produced by the
// per-tier limiter. Field names are wire-stable.
type tierDenialBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Tier       string `json:"tier"`
	Limit      int    `json:"limit"`
	Window     string `json:"window"`
	RetryAfter int    `json:"retry_after"`
}

// TierLimitConfig configures a TierLimiter.
type TierLimitConfig struct {
	// Capacity bounds the per-identifier record history.
	// Default: 10000.
	Capacity int

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

// TierLimiter enforces only the caller's tier ceilings on the routes
// it wraps. It keeps its own counter, so decorating a route with both
// TierLimiter and Admission double-counts attempts on that route by
// design of the separate scopes; the expected deployment picks one
// per route group.
type TierLimiter struct {
	counter  *ratelimit.Counter
	catalog  *tiers.Catalog
	resolver *identity.Resolver
}

// NewTierLimiter creates a standalone per-tier limiter.
func NewTierLimiter(cfg TierLimitConfig, catalog *tiers.Catalog, resolver *identity.Resolver) *TierLimiter {
	return &TierLimiter{
		counter: ratelimit.NewCounter(ratelimit.Config{
			Capacity:  cfg.Capacity,
			Retention: 24 * time.Hour,
			Now:       cfg.Now,
		}),
		catalog:  catalog,
		resolver: resolver,
	}
}

// Retry hints per violated window, in seconds.
const (
	tierRetryMinute = 60
	tierRetryHour   = 300
	tierRetryDay    = 3600
)

// Middleware returns the enforcement middleware. Every attempt is
// recorded, allowed or denied, and the counts are checked against the
// caller's tier ceilings in window order minute, hour, day. Ceilings
// of zero or below are treated as unlimited for that window.
func (tl *TierLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentity(r.Context())
		if !ok {
			id = tl.resolver.Resolve(identity.RequestInfo{
				User:          principalFrom(r.Context()),
				Authorization: r.Header.Get("Authorization"),
				APIKey:        r.Header.Get("X-API-Key"),
				ForwardedFor:  r.Header.Get("X-Forwarded-For"),
				RemoteAddr:    r.RemoteAddr,
			})
		}
		limits, _ := tl.catalog.Lookup(id.Tier)

		counts := tl.counter.AddAndCount(id.Identifier(), r.URL.Path,
			time.Minute, time.Hour, 24*time.Hour)

		checks := []struct {
			window  tiers.Window
			count   int
			message string
			retry   int
		}{
			{tiers.WindowMinute, counts[0], admission.MsgUserMinute, tierRetryMinute},
			{tiers.WindowHour, counts[1], admission.MsgUserHour, tierRetryHour},
			{tiers.WindowDay, counts[2], admission.MsgUserDay, tierRetryDay},
		}
		for _, chk := range checks {
			ceiling := limits.RequestLimit(chk.window)
			if ceiling > 0 && chk.count > ceiling {
				writeTierDenial(w, tierDenialBody{
					Error:      admission.ReasonRateLimit,
					Message:    chk.message,
					Tier:       limits.Name,
					Limit:      ceiling,
					Window:     string(chk.window),
					RetryAfter: chk.retry,
				})
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func writeTierDenial(w http.ResponseWriter, body tierDenialBody) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(body)
}
