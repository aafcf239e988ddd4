package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"edustack-hq/turnstile/pkg/admission"
	"edustack-hq/turnstile/pkg/admission/identity"
	"edustack-hq/turnstile/pkg/audit"
)

// denialBody is the JSON payload for a 429 produced by the admission
// middleware. Field names are wire-stable.
type denialBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Limit      string `json:"limit,omitempty"`
	RetryAfter int    `json:"retry_after"`
}

// Admission runs the admission controller's layered check before the
// wrapped handler. Denials become HTTP 429 with a Retry-After header
// and a structured JSON body; allowed requests proceed with the
// resolved identity stored in the request context.
//
// The recorder may be nil, in which case denials are not audited.
func Admission(ctrl *admission.Controller, recorder *audit.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := requestInfo(r)
			decision := ctrl.Check(r.URL.Path, info)

			if !decision.Allowed {
				if recorder != nil {
					recorder.Record(audit.Event{
						Kind:       audit.KindDenial,
						Identifier: decision.Identity.Identifier(),
						UserID:     decision.Identity.UserID,
						IP:         decision.Identity.IP,
						Endpoint:   r.URL.Path,
						Reason:     decision.Error,
						Message:    decision.Message,
						RetryAfter: decision.RetryAfter,
					})
				}
				writeDenial(w, decision)
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, decision.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestInfo collects the identity-bearing request context. An
// identity stored upstream (by an authentication layer using
// GetIdentity's counterpart) takes priority inside the resolver via
// the principal field; here we only forward raw headers.
func requestInfo(r *http.Request) identity.RequestInfo {
	return identity.RequestInfo{
		User:          principalFrom(r.Context()),
		Authorization: r.Header.Get("Authorization"),
		APIKey:        r.Header.Get("X-API-Key"),
		ForwardedFor:  r.Header.Get("X-Forwarded-For"),
		RemoteAddr:    r.RemoteAddr,
	}
}

// PrincipalKey stores an authenticated principal placed in the context
// by the authentication layer, upstream of the enforcement middleware.
const PrincipalKey contextKey = "principal"

func principalFrom(ctx context.Context) *identity.Principal {
	if p, ok := ctx.Value(PrincipalKey).(*identity.Principal); ok {
		return p
	}
	return nil
}

func writeDenial(w http.ResponseWriter, d admission.Decision) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(denialBody{
		Error:      d.Error,
		Message:    d.Message,
		Limit:      d.Limit,
		RetryAfter: d.RetryAfter,
	})
}
