package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("should be filtered")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn message missing")
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("hello", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "hello" || entry["key"] != "value" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("unexpected text output: %q", buf.String())
	}
}

func TestNew_InvalidInputs(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestNew_Defaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatalf("New with empty config: %v", err)
	}

	logger.Debug("hidden at default level")
	logger.Info("visible")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug logged at default info level")
	}
	if !strings.Contains(buf.String(), "visible") {
		t.Error("info message missing")
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = WithUser(ctx, "u1")
	ctx = WithTier(ctx, "premium")

	logger.WithContext(ctx).Info("handled")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["request_id"] != "req-123" || entry["user"] != "u1" || entry["tier"] != "premium" {
		t.Errorf("context fields missing: %v", entry)
	}
}

func TestWithContext_EmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Writer: &buf})

	if got := logger.WithContext(context.Background()); got != logger {
		t.Error("expected same logger for context without fields")
	}
}
