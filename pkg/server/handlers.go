package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"edustack-hq/turnstile/pkg/audit"
	"edustack-hq/turnstile/pkg/quota"
	"edustack-hq/turnstile/pkg/quota/export"
)

// Query result caps for the audit listing.
const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}

// periodFromQuery resolves the period type and start instant from the
// request. An explicit start date (YYYY-MM-DD) selects a past period;
// otherwise the current one is used.
func periodFromQuery(r *http.Request, now time.Time) (periodType string, start time.Time, err error) {
	periodType = r.URL.Query().Get("period")
	if periodType == "" {
		periodType = quota.PeriodDaily
	}

	at := now
	if raw := r.URL.Query().Get("start"); raw != "" {
		at, err = time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("invalid start date %q (expected YYYY-MM-DD)", raw)
		}
	}

	start, _, err = quota.PeriodBounds(periodType, at)
	if err != nil {
		return "", time.Time{}, err
	}
	return periodType, start, nil
}

// handleListUsage returns the usage records for one period, most
// expensive first, as JSON or CSV.
func (s *Server) handleListUsage(w http.ResponseWriter, r *http.Request) {
	periodType, start, err := periodFromQuery(r, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	records, err := s.deps.Ledger.ListUsage(r.Context(), periodType, start)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to list usage records")
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		pretty, _ := strconv.ParseBool(r.URL.Query().Get("pretty"))
		w.Header().Set("Content-Type", "application/json")
		if err := export.NewJSONExporter(pretty).Export(r.Context(), records, w); err != nil {
			slog.Error("usage export failed", "format", "json", "error", err)
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=usage-%s-%s.csv", periodType, start.Format("2006-01-02")))
		if err := export.NewCSVExporter(true).Export(r.Context(), records, w); err != nil {
			slog.Error("usage export failed", "format", "csv", "error", err)
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid_request",
			fmt.Sprintf("unknown format %q (expected json or csv)", format))
	}
}

// userUsage is the per-user view combining both current periods.
type userUsage struct {
	UserID  string             `json:"user_id"`
	Daily   *quota.UsageRecord `json:"daily"`
	Monthly *quota.UsageRecord `json:"monthly"`
}

// handleGetUsage returns one user's current daily and monthly records.
// Periods with no tracked usage are null.
func (s *Server) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	daily, err := s.deps.Ledger.GetUsage(r.Context(), userID, quota.PeriodDaily)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to read usage record")
		return
	}
	monthly, err := s.deps.Ledger.GetUsage(r.Context(), userID, quota.PeriodMonthly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to read usage record")
		return
	}

	writeJSON(w, http.StatusOK, userUsage{
		UserID:  userID,
		Daily:   daily,
		Monthly: monthly,
	})
}

// activeBlock is one temporarily blocked identifier.
type activeBlock struct {
	Identifier string    `json:"identifier"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// handleListBlocks returns the currently blocked identifiers.
func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	active := s.deps.Controller.ActiveBlocks()

	blocks := make([]activeBlock, 0, len(active))
	for identifier, expiresAt := range active {
		blocks = append(blocks, activeBlock{Identifier: identifier, ExpiresAt: expiresAt})
	}
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Identifier < blocks[j].Identifier
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"blocks": blocks,
		"count":  len(blocks),
	})
}

// handleUnblock lifts a temporary block early.
func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	identifier := r.PathValue("identifier")

	if _, blocked := s.deps.Controller.ActiveBlocks()[identifier]; !blocked {
		writeError(w, http.StatusNotFound, "not_found",
			fmt.Sprintf("identifier %q is not blocked", identifier))
		return
	}

	s.deps.Controller.Unblock(identifier)
	if s.deps.Recorder != nil {
		s.deps.Recorder.Record(audit.Event{
			Kind:       audit.KindUnblock,
			Identifier: identifier,
		})
	}

	slog.Info("block lifted by operator", "identifier", identifier)
	writeJSON(w, http.StatusOK, map[string]any{
		"identifier": identifier,
		"unblocked":  true,
	})
}

// handleListAudit returns recent audit events, newest first.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.deps.AuditStore == nil {
		writeError(w, http.StatusNotFound, "audit_disabled", "audit trail is not enabled")
		return
	}

	q := audit.Query{
		Identifier: r.URL.Query().Get("identifier"),
		Kind:       r.URL.Query().Get("kind"),
		Limit:      defaultAuditLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request",
				fmt.Sprintf("invalid limit %q", raw))
			return
		}
		if n > maxAuditLimit {
			n = maxAuditLimit
		}
		q.Limit = n
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request",
				fmt.Sprintf("invalid since timestamp %q (expected RFC3339)", raw))
			return
		}
		q.Since = since
	}

	events, err := s.deps.AuditStore.Query(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", "failed to query audit events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}
