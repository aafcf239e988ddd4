package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"edustack-hq/turnstile/pkg/admission"
	"edustack-hq/turnstile/pkg/admission/identity"
	"edustack-hq/turnstile/pkg/audit"
	"edustack-hq/turnstile/pkg/config"
	"edustack-hq/turnstile/pkg/quota"
	"edustack-hq/turnstile/pkg/quota/costs"
	"edustack-hq/turnstile/pkg/quota/storage"
	"edustack-hq/turnstile/pkg/tiers"
)

type testEnv struct {
	server *Server
	ctrl   *admission.Controller
	ledger *quota.Ledger
	store  *audit.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctrl := admission.NewController(admission.Config{
		IPPerMinute: 100000,
		IPPerHour:   100000,
	}, tiers.DefaultCatalog(), identity.NewResolver(nil), nil)
	t.Cleanup(func() { _ = ctrl.Close() })

	ledger := quota.NewLedger(storage.NewMemoryBackend(),
		costs.NewModel(costs.DefaultRates()), quota.LedgerConfig{})

	store := audit.NewMemoryStore()
	recorder := audit.NewRecorder(store, audit.RecorderConfig{})
	t.Cleanup(func() { _ = recorder.Close() })

	cfg := config.Default()
	srv := NewServer(&cfg.Server, Deps{
		Controller: ctrl,
		Ledger:     ledger,
		Recorder:   recorder,
		AuditStore: store,
		Build:      BuildInfo{Version: "test"},
	})

	return &testEnv{server: srv, ctrl: ctrl, ledger: ledger, store: store}
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.get(t, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", rec.Code)
	}
	if rec := env.get(t, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("/readyz status = %d, want 200", rec.Code)
	}
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/version")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["version"] != "test" {
		t.Errorf("version = %q, want test", body["version"])
	}
}

func TestListUsage_Empty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/admin/usage")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

func TestListUsage_JSONAndCSV(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.TrackUsage(context.Background(), "user-1", 1000, 500, "/chat")

	rec := env.get(t, "/admin/usage?period=daily")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var records []*quota.UsageRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(records) != 1 || records[0].UserID != "user-1" {
		t.Fatalf("records = %+v, want one for user-1", records)
	}

	rec = env.get(t, "/admin/usage?format=csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("csv status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("csv lines = %d, want header plus one record", len(lines))
	}
	if !strings.HasPrefix(lines[0], "user_id,") {
		t.Errorf("csv header = %q", lines[0])
	}
}

func TestListUsage_BadInput(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.get(t, "/admin/usage?period=weekly"); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown period: status = %d, want 400", rec.Code)
	}
	if rec := env.get(t, "/admin/usage?format=xml"); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format: status = %d, want 400", rec.Code)
	}
	if rec := env.get(t, "/admin/usage?start=yesterday"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad start date: status = %d, want 400", rec.Code)
	}
}

func TestGetUsage(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.TrackUsage(context.Background(), "user-2", 2000, 1000, "/chat")

	rec := env.get(t, "/admin/usage/user-2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body userUsage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Daily == nil || body.Monthly == nil {
		t.Fatalf("body = %+v, want both periods present", body)
	}
	if body.Daily.TotalTokens != 3000 {
		t.Errorf("daily tokens = %d, want 3000", body.Daily.TotalTokens)
	}

	rec = env.get(t, "/admin/usage/nobody")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for untracked user", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Daily != nil || body.Monthly != nil {
		t.Errorf("body = %+v, want null periods for untracked user", body)
	}
}

// escalate drives anonymous traffic from one address far enough past
// the limited tier's minute ceiling to trigger a temporary block.
func escalate(env *testEnv, ip string) {
	info := identity.RequestInfo{RemoteAddr: ip + ":4000"}
	for i := 0; i < 12; i++ {
		env.ctrl.Check("/chat", info)
	}
}

func TestBlocks_ListAndUnblock(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/admin/blocks")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Blocks []activeBlock `json:"blocks"`
		Count  int           `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Count != 0 {
		t.Fatalf("count = %d, want 0 before escalation", body.Count)
	}

	escalate(env, "10.1.1.1")

	rec = env.get(t, "/admin/blocks")
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Count != 1 || body.Blocks[0].Identifier != "10.1.1.1" {
		t.Fatalf("blocks = %+v, want 10.1.1.1 blocked", body)
	}
	if !body.Blocks[0].ExpiresAt.After(time.Now()) {
		t.Error("block expiry should be in the future")
	}

	del := httptest.NewRequest(http.MethodDelete, "/admin/blocks/10.1.1.1", nil)
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, del)
	if rec.Code != http.StatusOK {
		t.Fatalf("unblock status = %d, want 200", rec.Code)
	}

	if blocks := env.ctrl.ActiveBlocks(); len(blocks) != 0 {
		t.Errorf("active blocks after unblock = %v, want none", blocks)
	}

	// Unblocking again is a 404.
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/blocks/10.1.1.1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second unblock status = %d, want 404", rec.Code)
	}
}

func TestListAudit(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		if err := env.store.Insert(context.Background(), &audit.Event{
			ID:         "evt-" + string(rune('a'+i)),
			Timestamp:  time.Now().Add(time.Duration(i) * time.Second),
			Kind:       audit.KindDenial,
			Identifier: "user-9",
		}); err != nil {
			t.Fatal(err)
		}
	}

	rec := env.get(t, "/admin/audit?kind=denial")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Events []*audit.Event `json:"events"`
		Count  int            `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Count != 3 {
		t.Errorf("count = %d, want 3", body.Count)
	}

	if rec := env.get(t, "/admin/audit?limit=zero"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d, want 400", rec.Code)
	}
}

func TestListAudit_Disabled(t *testing.T) {
	env := newTestEnv(t)
	env.server.deps.AuditStore = nil

	if rec := env.get(t, "/admin/audit"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when audit is disabled", rec.Code)
	}
}
