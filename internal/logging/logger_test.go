package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	return entry
}

func TestLoggerWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithService("testsvc"))

	logger.Info("something happened", "account_id", "a1", "count", 3)

	entry := decodeLine(t, &buf)
	if entry["level"] != "info" {
		t.Errorf("expected level info, got %v", entry["level"])
	}
	if entry["service"] != "testsvc" {
		t.Errorf("expected service testsvc, got %v", entry["service"])
	}
	if entry["message"] != "something happened" {
		t.Errorf("unexpected message: %v", entry["message"])
	}
	fields, ok := entry["fields"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing fields object: %v", entry)
	}
	if fields["account_id"] != "a1" {
		t.Errorf("missing field account_id: %v", fields)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithLevel(LevelWarn))

	logger.Debug("hidden")
	logger.Info("hidden too")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}

	logger.Warn("visible")
	if buf.Len() == 0 {
		t.Fatal("expected warn output")
	}
}

func TestLoggerCorrelationIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf))

	ctx := WithCorrelationID(context.Background(), "corr-123")
	logger.InfoWithContext(ctx, "with context")

	entry := decodeLine(t, &buf)
	if entry["correlation_id"] != "corr-123" {
		t.Errorf("expected correlation id, got %v", entry["correlation_id"])
	}
}

func TestLoggerCorrelationIDFromFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf))

	logger.Info("tagged", "correlation_id", "corr-456")

	entry := decodeLine(t, &buf)
	if entry["correlation_id"] != "corr-456" {
		t.Errorf("expected correlation id from fields, got %v", entry["correlation_id"])
	}
}

func TestGenerateCorrelationID(t *testing.T) {
	a := GenerateCorrelationID()
	b := GenerateCorrelationID()
	if a == "" || a == b {
		t.Fatalf("correlation IDs must be unique and non-empty: %q %q", a, b)
	}
}

func TestGetCorrelationIDMissing(t *testing.T) {
	if got := GetCorrelationID(context.Background()); got != "" {
		t.Fatalf("expected empty correlation id, got %q", got)
	}
}
