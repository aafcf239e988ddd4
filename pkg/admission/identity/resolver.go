// Package identity derives the governing identity for a request.
//
// The resolver turns request context handed over by the authentication
// layer (an already-authenticated principal, raw Authorization and
// X-API-Key headers, forwarded-for chain) into the single identifier
// and tier that drive admission decisions. Resolution never fails: a
// request with no usable identity degrades to an anonymous, IP-only
// identity on the most restrictive tier.
package identity

import (
	"strings"

	"edustack-hq/turnstile/pkg/tiers"
)

// Principal is an authenticated caller as provided by the external
// authentication collaborator.
type Principal struct {
	// UserID is the stable user identifier.
	UserID string

	// Role is the platform role (student, teacher, admin). Carried
	// for audit context; admission decisions key off the tier.
	Role string

	// Tier is the quota tier assigned to the user.
	Tier string
}

// TokenDecoder validates a bearer token and returns the principal it
// represents. Implemented by the external authentication layer; the
// resolver treats any error as "no identity from this token".
type TokenDecoder interface {
	Decode(token string) (*Principal, error)
}

// RequestInfo is the raw per-request context the resolver works from.
type RequestInfo struct {
	// User is the already-authenticated principal, if middleware
	// upstream established one. Highest resolution priority.
	User *Principal

	// Authorization is the raw Authorization header value.
	Authorization string

	// APIKey is the raw X-API-Key header value.
	APIKey string

	// ForwardedFor is the raw X-Forwarded-For header value.
	ForwardedFor string

	// RemoteAddr is the peer address ("host:port" or bare host).
	RemoteAddr string
}

// Identity is the resolved governing identity for one request.
type Identity struct {
	// UserID is empty for anonymous callers.
	UserID string

	// IP is the client address used for IP-scope limiting.
	IP string

	// Tier is the resolved quota tier, "limited" when no user was
	// identified or the principal carried no tier.
	Tier string
}

// Identifier returns the single identifier governing a check:
// the user ID when present, otherwise the IP address.
func (id Identity) Identifier() string {
	if id.UserID != "" {
		return id.UserID
	}
	return id.IP
}

// Anonymous reports whether no user was identified.
func (id Identity) Anonymous() bool {
	return id.UserID == ""
}

// apiKeyPrefixLen is how much of an API key goes into the derived
// pseudo-identifier. Long enough to keep distinct keys distinct,
// short enough that the full credential never lands in counters,
// logs, or audit rows.
const apiKeyPrefixLen = 12

// Resolver derives identities from request context.
type Resolver struct {
	decoder TokenDecoder
}

// NewResolver creates a resolver. The decoder may be nil, in which
// case bearer tokens are ignored and resolution falls through to the
// API-key and anonymous paths.
func NewResolver(decoder TokenDecoder) *Resolver {
	return &Resolver{decoder: decoder}
}

// Resolve derives the identity for a request. Resolution priority:
//
//  1. an already-authenticated principal
//  2. a principal decoded from the Authorization bearer token
//  3. a stable pseudo-identifier derived from a truncated API key
//  4. anonymous (IP only, "limited" tier)
//
// Resolve never returns an error.
func (r *Resolver) Resolve(info RequestInfo) Identity {
	ip := clientIP(info)

	if info.User != nil && info.User.UserID != "" {
		return Identity{
			UserID: info.User.UserID,
			IP:     ip,
			Tier:   tierOrLimited(info.User.Tier),
		}
	}

	if token := bearerToken(info.Authorization); token != "" && r.decoder != nil {
		if p, err := r.decoder.Decode(token); err == nil && p != nil && p.UserID != "" {
			return Identity{
				UserID: p.UserID,
				IP:     ip,
				Tier:   tierOrLimited(p.Tier),
			}
		}
	}

	if key := strings.TrimSpace(info.APIKey); key != "" {
		return Identity{
			UserID: pseudoID(key),
			IP:     ip,
			Tier:   tiers.TierLimited,
		}
	}

	return Identity{IP: ip, Tier: tiers.TierLimited}
}

// clientIP picks the first entry of a comma-separated forwarded-for
// header, falling back to the peer address with any port stripped.
func clientIP(info RequestInfo) string {
	if info.ForwardedFor != "" {
		first, _, _ := strings.Cut(info.ForwardedFor, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	addr := info.RemoteAddr
	// Strip the port but leave IPv6 host-only addresses alone.
	if i := strings.LastIndex(addr, ":"); i >= 0 && strings.Count(addr, ":") == 1 {
		addr = addr[:i]
	} else if strings.HasPrefix(addr, "[") {
		if j := strings.Index(addr, "]"); j > 0 {
			addr = addr[1:j]
		}
	}
	if addr == "" {
		addr = "unknown"
	}
	return addr
}

// bearerToken extracts the token from "Bearer <token>".
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// pseudoID derives a stable identifier from a truncated API key.
func pseudoID(key string) string {
	if len(key) > apiKeyPrefixLen {
		key = key[:apiKeyPrefixLen]
	}
	return "apikey:" + key
}

// tierOrLimited fails closed to the lowest tier for empty tier names.
// Unknown (non-empty) names are passed through; the tier catalog fails
// them closed at lookup time.
func tierOrLimited(tier string) string {
	if tier == "" {
		return tiers.TierLimited
	}
	return tier
}
