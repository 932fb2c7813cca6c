package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNew_Defaults(t *testing.T) {
	logger, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.level != slog.LevelInfo {
		t.Errorf("default level = %v, want %v", logger.level, slog.LevelInfo)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	if err == nil {
		t.Fatal("New() with invalid level should return error")
	}
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := New(Config{Format: "xml"})
	if err == nil {
		t.Fatal("New() with invalid format should return error")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := parseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// =============================================================================
// Output Format Tests
// =============================================================================

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("request governed", "status", 200)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "request governed" {
		t.Errorf("msg = %v, want %q", entry["msg"], "request governed")
	}
	if entry["status"] != float64(200) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
}

func TestLogger_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Warn("bucket evicted", "key", "user:u-1")

	out := buf.String()
	if !strings.Contains(out, "bucket evicted") {
		t.Errorf("output missing message: %s", out)
	}
	if !strings.Contains(out, "key=user:u-1") {
		t.Errorf("output missing attribute: %s", out)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Debug("should be filtered")
	logger.Info("should be filtered")
	if buf.Len() != 0 {
		t.Errorf("below-threshold logs should produce no output, got: %s", buf.String())
	}

	logger.Error("should appear")
	if buf.Len() == 0 {
		t.Error("error log should produce output")
	}
}

// =============================================================================
// Context Enrichment Tests
// =============================================================================

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-42")
	ctx = WithTenant(ctx, "acme")

	logger.WithContext(ctx).Info("handled")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["request_id"] != "req-42" {
		t.Errorf("request_id = %v, want req-42", entry["request_id"])
	}
	if entry["tenant"] != "acme" {
		t.Errorf("tenant = %v, want acme", entry["tenant"])
	}
}

func TestLogger_WithContext_Empty(t *testing.T) {
	logger, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Context with no known fields returns the same logger.
	got := logger.WithContext(context.Background())
	if got != logger {
		t.Error("WithContext with empty context should return receiver")
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	child := logger.With("component", "limiter")
	child.Info("evicted")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["component"] != "limiter" {
		t.Errorf("component = %v, want limiter", entry["component"])
	}
}
