package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"edustack-hq/turnstile/pkg/quota"
)

func sampleRecord() *quota.UsageRecord {
	return &quota.UsageRecord{
		UserID:            "u1",
		PeriodType:        quota.PeriodDaily,
		PeriodStart:       time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		PeriodEnd:         time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		TotalRequests:     3,
		TotalInputTokens:  600,
		TotalOutputTokens: 300,
		TotalTokens:       900,
		TotalCost:         0.000135,
		Endpoints: map[string]quota.EndpointUsage{
			"/api/generate": {
				Requests:     3,
				InputTokens:  600,
				OutputTokens: 300,
				TotalTokens:  900,
				Cost:         0.000135,
			},
		},
	}
}

func TestCSVExporter_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(true).Export(context.Background(), nil, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected header only, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "user_id,period_type") {
		t.Errorf("unexpected header: %q", lines[0])
	}
}

func TestCSVExporter_Records(t *testing.T) {
	var buf bytes.Buffer
	records := []*quota.UsageRecord{sampleRecord()}
	if err := NewCSVExporter(true).Export(context.Background(), records, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	row := lines[1]
	if !strings.HasPrefix(row, "u1,daily,2026-03-15T00:00:00Z") {
		t.Errorf("unexpected row prefix: %q", row)
	}
	if !strings.Contains(row, "/api/generate") {
		t.Error("endpoint breakdown missing from row")
	}
}

func TestCSVExporter_NoHeader(t *testing.T) {
	var buf bytes.Buffer
	records := []*quota.UsageRecord{sampleRecord()}
	if err := NewCSVExporter(false).Export(context.Background(), records, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 data row, got %d lines", len(lines))
	}
}

func TestJSONExporter_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(false).Export(context.Background(), nil, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if buf.String() != "[]" {
		t.Errorf("empty export = %q, want []", buf.String())
	}
}

func TestJSONExporter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	records := []*quota.UsageRecord{sampleRecord()}
	if err := NewJSONExporter(true).Export(context.Background(), records, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	var decoded []*quota.UsageRecord
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("got %d records, want 1", len(decoded))
	}
	if decoded[0].UserID != "u1" || decoded[0].TotalTokens != 900 {
		t.Errorf("decoded record = %+v", decoded[0])
	}
	if decoded[0].Endpoints["/api/generate"].Requests != 3 {
		t.Errorf("endpoint breakdown lost: %+v", decoded[0].Endpoints)
	}
}

func TestJSONExporter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	if err := NewJSONExporter(false).Export(ctx, []*quota.UsageRecord{sampleRecord()}, &buf); err == nil {
		t.Fatal("expected context error")
	}
}
