package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sandbox-term/internal/infra/config"
)

func TestJSONHandlerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newHandler(&buf, config.LoggerConfig{Level: "info", Format: "json"}))

	log.Info("dialing", "session_id", "s-1", "token", "abc123", "Authorization", "Bearer abc123")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v, output: %s", err, buf.String())
	}
	if entry["msg"] != "dialing" {
		t.Errorf("msg = %q, want %q", entry["msg"], "dialing")
	}
	if entry["token"] != Redacted || entry["Authorization"] != Redacted {
		t.Errorf("secrets not redacted: %s", buf.String())
	}
	if entry["session_id"] != "s-1" {
		t.Errorf("session_id = %v", entry["session_id"])
	}
}

func TestTextHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newHandler(&buf, config.LoggerConfig{Level: "warn", Format: "text"}))

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	log, closer, err := New(config.LoggerConfig{Level: "info", Format: "text", Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("file test")
	if err := closer(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "file test") {
		t.Errorf("log file missing message: %s", data)
	}
}

func TestForConsoleDivertsTerminalOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "console.log")
	log, closer, err := ForConsole(config.LoggerConfig{Level: "info", Format: "text", Output: "stderr"}, path)
	if err != nil {
		t.Fatalf("ForConsole: %v", err)
	}
	log.Info("diverted")
	if err := closer(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "diverted") {
		t.Errorf("log file missing message: %s", data)
	}
}

func TestForConsoleWithoutFileDiscards(t *testing.T) {
	log, closer, err := ForConsole(config.LoggerConfig{Level: "debug", Output: "stdout"}, "")
	if err != nil {
		t.Fatalf("ForConsole: %v", err)
	}
	defer closer()
	if log.Enabled(nil, slog.LevelError) {
		t.Error("expected discard logger")
	}
}

func TestOpenOutputStdout(t *testing.T) {
	w, closer, err := openOutput("stdout")
	if err != nil {
		t.Fatal(err)
	}
	defer closer()
	if w != os.Stdout {
		t.Error("expected os.Stdout")
	}
}

func TestOpenOutputInvalidPath(t *testing.T) {
	if _, _, err := openOutput("/nonexistent/dir/test.log"); err == nil {
		t.Error("expected error for invalid path")
	}
}
