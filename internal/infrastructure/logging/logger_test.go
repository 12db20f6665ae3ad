package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/benchlink-core/internal/infrastructure/config"
)

func TestNew(t *testing.T) {
	for _, cfg := range []config.LoggingConfig{
		{Level: "info", Format: "json", Output: "stdout"},
		{Level: "debug", Format: "text", Output: "stderr"},
	} {
		if New(cfg, "1.0.0") == nil {
			t.Fatalf("New(%+v) = nil", cfg)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{input: "debug", expected: slog.LevelDebug},
		{input: "info", expected: slog.LevelInfo},
		{input: "warn", expected: slog.LevelWarn},
		{input: "warning", expected: slog.LevelWarn},
		{input: "error", expected: slog.LevelError},
		{input: "unknown", expected: slog.LevelInfo},
		{input: "", expected: slog.LevelInfo},
		{input: "DEBUG", expected: slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewWithWriter_JSONDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "json"}, "test")

	logger.Component("drivers").Info("valve moved", "device_id", "hplc")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	want := map[string]string{
		"msg":       "valve moved",
		"service":   ServiceName,
		"version":   "test",
		"component": "drivers",
		"device_id": "hplc",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("entry[%q] = %v, want %q", k, entry[k], v)
		}
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "warn", Format: "text"}, "test")

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info entry written at warn level")
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "service="+ServiceName) {
		t.Errorf("text output = %q", out)
	}
}

func TestLogger_SetLevelSharedWithChildren(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "text"}, "test")
	child := root.Component("registry")

	child.Debug("before")
	if !root.SetLevel("debug") {
		t.Fatal("SetLevel(debug) = false")
	}
	child.Debug("after")

	out := buf.String()
	if strings.Contains(out, "msg=before") {
		t.Error("debug entry written at info level")
	}
	if !strings.Contains(out, "msg=after") || !strings.Contains(out, "component=registry") {
		t.Errorf("child did not follow root level: %q", out)
	}

	if root.SetLevel("verbose") {
		t.Error("SetLevel(verbose) = true, want false")
	}
	if child.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v after rejected SetLevel, want debug", child.Level())
	}
}

func TestNewWithWriter_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "json"}, "test")

	logger.Info("broker configured",
		"username", "bench",
		"password", "hunter2",
		slog.Group("influx", slog.String("Token", "abc")),
	)

	out := buf.String()
	for _, secret := range []string{"hunter2", "abc"} {
		if strings.Contains(out, secret) {
			t.Errorf("output leaks %q: %s", secret, out)
		}
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if entry["username"] != "bench" || entry["password"] != Redacted {
		t.Errorf("entry = %v", entry)
	}
}
