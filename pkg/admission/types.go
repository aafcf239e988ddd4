package admission

import "edustack-hq/turnstile/pkg/admission/identity"

// Denial reason codes. These are wire-stable: route handlers and the
// middleware map them straight into 429 response bodies.
const (
	// ReasonBlocked denies a request from a temporarily blocked
	// identifier.
	ReasonBlocked = "temporarily_blocked"

	// ReasonGlobal denies a request shed because aggregate traffic
	// exceeded a global ceiling.
	ReasonGlobal = "system_overloaded"

	// ReasonRateLimit denies a request that exceeded a per-user or
	// per-IP ceiling.
	ReasonRateLimit = "rate_limit_exceeded"
)

// Denial messages. Exact wordings are part of the API contract with
// existing clients and dashboards; do not rephrase.
const (
	MsgBlocked    = "Too many requests - temporarily blocked"
	MsgGlobalLoad = "System is experiencing high load. Please try again later."
	MsgUserMinute = "Rate limit exceeded"
	MsgUserHour   = "Hourly rate limit exceeded"
	MsgUserDay    = "Daily rate limit exceeded"
	MsgIPMinute   = "IP rate limit exceeded"
	MsgIPHour     = "IP hourly rate limit exceeded"
)

// Limit window names used in denial details.
const (
	LimitPerMinute = "per_minute"
	LimitPerHour   = "per_hour"
	LimitPerDay    = "per_day"
)

// Decision is the structured outcome of an admission check.
// Denials always carry a positive RetryAfter.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Error is the machine-readable reason code for a denial.
	Error string

	// Message is the human-readable denial message.
	Message string

	// Limit names the violated window (per_minute, per_hour,
	// per_day) for user-scope denials; empty otherwise.
	Limit string

	// RetryAfter is the suggested wait in seconds before retrying.
	// Always > 0 when Allowed is false.
	RetryAfter int

	// Identity is the resolved identity the decision applied to.
	Identity identity.Identity
}

// allow builds an approving decision.
func allow(id identity.Identity) Decision {
	return Decision{Allowed: true, Identity: id}
}

// deny builds a denying decision.
func deny(id identity.Identity, code, message, limit string, retryAfter int) Decision {
	if retryAfter < 1 {
		retryAfter = 1
	}
	return Decision{
		Allowed:    false,
		Error:      code,
		Message:    message,
		Limit:      limit,
		RetryAfter: retryAfter,
		Identity:   id,
	}
}

// WindowUtilization is the current used/limit ratio for one window.
// Health checks classify these ratios into healthy/warning/critical.
type WindowUtilization struct {
	// Scope is "global", "user", or "ip".
	Scope string `json:"scope"`

	// Window is "minute", "hour", or "day".
	Window string `json:"window"`

	// Used is the current count in the window.
	Used int `json:"used"`

	// Limit is the configured ceiling.
	Limit int `json:"limit"`

	// Ratio is Used/Limit, 0 when no limit is configured.
	Ratio float64 `json:"ratio"`
}
