package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tc := range testCases {
		if got := ParseLevel(tc.input); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	logger.Debug("表示されない")
	logger.Info("開始", "page", "practice")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Expected JSON output: %v", err)
	}
	if entry["msg"] != "開始" || entry["page"] != "practice" {
		t.Errorf("Unexpected entry: %v", entry)
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug", "text")

	logger.Debug("詳細", "device", "/dev/video0")

	if !strings.Contains(buf.String(), "device=/dev/video0") {
		t.Errorf("Expected text output, got %q", buf.String())
	}
}

func TestValid(t *testing.T) {
	if !ValidLevel("Warn") || ValidLevel("trace") {
		t.Error("ValidLevel returned unexpected result")
	}
	if !ValidFormat("JSON") || ValidFormat("xml") {
		t.Error("ValidFormat returned unexpected result")
	}
}
